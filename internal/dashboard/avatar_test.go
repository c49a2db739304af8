package dashboard

import (
	"regexp"
	"strings"
	"testing"
)

var avatarID = regexp.MustCompile(`sa\d+`)

func TestSenderAvatar_DeterministicPerDomain(t *testing.T) {
	strip := func(s string) string { return avatarID.ReplaceAllString(s, "saN") }

	a1 := strip(string(senderAvatar("security@paypa1-verify.com", 20)))
	a2 := strip(string(senderAvatar("security@paypa1-verify.com", 20)))
	if a1 != a2 {
		t.Errorf("same sender produced different avatars:\n  %s\n  %s", a1, a2)
	}

	// Same domain, same initial: identical picture.
	b := strip(string(senderAvatar("support@paypa1-verify.com", 20)))
	if a1 != b {
		t.Errorf("senders of one domain should share an avatar")
	}
}

func TestSenderAvatar_Shape(t *testing.T) {
	senders := []string{
		"security@paypa1-verify.com", "hr-department@company-benefits.net",
		"it-support@microsoft-helpdesk.org", "invoice@quickbooks-billing.co",
		"no-reply@dropbox-share.info", "admin@linkedin-security.net",
	}
	for _, s := range senders {
		svg := string(senderAvatar(s, 20))
		if !strings.Contains(svg, `<svg class="avatar"`) {
			t.Errorf("avatar for %q missing SVG wrapper", s)
		}
		if !strings.Contains(svg, `viewBox="0 0 40 40"`) {
			t.Errorf("avatar for %q missing viewBox", s)
		}
		want := ">" + strings.ToUpper(s[:1]) + "</text>"
		if !strings.Contains(svg, want) {
			t.Errorf("avatar for %q missing initial, got %s", s, svg)
		}
	}
}

func TestSenderAvatar_Empty(t *testing.T) {
	if got := senderAvatar("  ", 20); got != "" {
		t.Errorf("expected empty string for empty sender, got %q", got)
	}
	if got := string(senderAvatar("@nowhere", 20)); !strings.Contains(got, ">?</text>") {
		t.Errorf("expected placeholder initial, got %q", got)
	}
}

func TestSenderCell(t *testing.T) {
	cell := string(senderCell("<b>@evil.com"))
	if !strings.Contains(cell, `class="sender-cell"`) {
		t.Error("missing sender-cell class")
	}
	if strings.Contains(cell, "<b>") {
		t.Error("sender must be escaped")
	}
	if got := string(senderCell("")); !strings.Contains(got, "Unknown") {
		t.Errorf("empty sender cell = %q", got)
	}
}

func TestFnv32a(t *testing.T) {
	if h := fnv32a(""); h != 2166136261 {
		t.Errorf("fnv32a('') = %d, want 2166136261", h)
	}
	if fnv32a("a") == fnv32a("b") {
		t.Error("fnv32a('a') == fnv32a('b')")
	}
}
