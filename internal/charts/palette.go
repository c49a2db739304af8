package charts

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// Palette holds the named chart colours.
type Palette struct {
	Malicious  string `json:"malicious"`
	Phishing   string `json:"phishing"`
	Suspicious string `json:"suspicious"`
	Detected   string `json:"detected"`
	Malware    string `json:"malware"`
	Primary    string `json:"primary"`
	Success    string `json:"success"`
	Warning    string `json:"warning"`
	Danger     string `json:"danger"`
}

// DefaultPalette returns the stock dashboard colours.
func DefaultPalette() Palette {
	return Palette{
		Malicious:  "#1e40af",
		Phishing:   "#be185d",
		Suspicious: "#a16207",
		Detected:   "#059669",
		Malware:    "#0891b2",
		Primary:    "#3b82f6",
		Success:    "#10b981",
		Warning:    "#f59e0b",
		Danger:     "#ef4444",
	}
}

var hexColor = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

func (p *Palette) field(name string) *string {
	switch name {
	case "malicious":
		return &p.Malicious
	case "phishing":
		return &p.Phishing
	case "suspicious":
		return &p.Suspicious
	case "detected":
		return &p.Detected
	case "malware":
		return &p.Malware
	case "primary":
		return &p.Primary
	case "success":
		return &p.Success
	case "warning":
		return &p.Warning
	case "danger":
		return &p.Danger
	}
	return nil
}

// With returns a copy of p with the named colours replaced. Colours must be
// six-digit hex so that the "20" alpha suffix used for fills stays valid.
func (p Palette) With(overrides map[string]string) (Palette, error) {
	names := make([]string, 0, len(overrides))
	for name := range overrides {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		color := strings.TrimSpace(overrides[name])
		f := p.field(strings.ToLower(name))
		if f == nil {
			return p, fmt.Errorf("unknown chart colour %q", name)
		}
		if !hexColor.MatchString(color) {
			return p, fmt.Errorf("chart colour %s: %q is not a #rrggbb value", name, color)
		}
		*f = color
	}
	return p, nil
}

// Threats returns the doughnut segment colours in label order.
func (p Palette) Threats() []string {
	return []string{p.Malicious, p.Phishing, p.Suspicious, p.Detected, p.Malware}
}

// fill is the translucent variant of a colour used under line charts.
func fill(color string) string {
	return color + "20"
}
