// Package dashboard serves the web UI: the security overview with its
// charts, the quarantine review table and the notification pop-ups.
package dashboard

import (
	"fmt"
	"html/template"
	"strings"
	"sync/atomic"
	"unicode"
	"unicode/utf8"
)

// Muted tones that stay readable under a white initial.
var avatarPalette = [...]string{
	"#2563eb",
	"#7c3aed",
	"#db2777",
	"#ea580c",
	"#0d9488",
	"#4d7c0f",
	"#0891b2",
	"#9333ea",
}

var avatarSeq uint64

// senderAvatar returns an inline SVG avatar for an email sender: the first
// letter of the address on a two-tone background derived from the domain,
// so every sender of one domain shares colours.
func senderAvatar(sender string, size int) template.HTML {
	sender = strings.TrimSpace(sender)
	if sender == "" {
		return ""
	}
	local, domain, ok := strings.Cut(strings.ToLower(sender), "@")
	if !ok {
		domain = local
	}
	h := fnv32a(domain)
	uid := fmt.Sprintf("sa%d", atomic.AddUint64(&avatarSeq, 1))

	n := uint32(len(avatarPalette))
	c1 := avatarPalette[h%n]
	c2 := avatarPalette[(h/n+1+h%n)%n]

	initial := "?"
	if r, _ := utf8.DecodeRuneInString(local); r != utf8.RuneError && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
		initial = string(unicode.ToUpper(r))
	}

	var bg string
	switch (h >> 16) % 3 {
	case 0: // linear gradient
		bg = `<defs><linearGradient id="` + uid + `" x1="0" y1="0" x2="1" y2="1">` +
			`<stop offset="0%" stop-color="` + c1 + `"/><stop offset="100%" stop-color="` + c2 + `"/>` +
			`</linearGradient></defs><circle cx="20" cy="20" r="20" fill="url(#` + uid + `)"/>`
	case 1: // split
		bg = `<defs><clipPath id="` + uid + `"><circle cx="20" cy="20" r="20"/></clipPath></defs>` +
			`<g clip-path="url(#` + uid + `)"><rect width="40" height="40" fill="` + c1 + `"/>` +
			`<rect y="22" width="40" height="18" fill="` + c2 + `"/></g>`
	default: // ring
		bg = `<circle cx="20" cy="20" r="20" fill="` + c2 + `"/><circle cx="20" cy="20" r="16" fill="` + c1 + `"/>`
	}

	return template.HTML(fmt.Sprintf(
		`<svg class="avatar" width="%d" height="%d" viewBox="0 0 40 40">%s`+
			`<text x="20" y="26" text-anchor="middle" font-size="17" font-weight="600" fill="#fff" font-family="sans-serif">%s</text></svg>`,
		size, size, bg, template.HTMLEscapeString(initial)))
}

// senderCell returns avatar + address wrapped for table cell display.
func senderCell(sender string) template.HTML {
	if strings.TrimSpace(sender) == "" {
		return `<span class="sender-cell">Unknown</span>`
	}
	return template.HTML(fmt.Sprintf(
		`<span class="sender-cell">%s %s</span>`,
		senderAvatar(sender, 24), template.HTMLEscapeString(sender)))
}

// fnv32a implements the FNV-1a hash.
func fnv32a(s string) uint32 {
	h := uint32(2166136261)
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= 16777619
	}
	return h
}
