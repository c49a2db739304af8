package quarantine

import "strings"

// Tag is the active filter tab.
type Tag string

const (
	TagAll    Tag = "all"
	TagHigh   Tag = "high"
	TagMedium Tag = "medium"
	// TagReleased matches every row. No row ever carries a released status.
	TagReleased Tag = "released"
)

// Tags lists the filter tabs in display order.
var Tags = []Tag{TagAll, TagHigh, TagMedium, TagReleased}

// ParseTag returns the tag named by s and whether it was recognized.
// Unrecognized input yields TagAll.
func ParseTag(s string) (Tag, bool) {
	switch t := Tag(strings.ToLower(strings.TrimSpace(s))); t {
	case TagAll, TagHigh, TagMedium, TagReleased:
		return t, true
	default:
		return TagAll, false
	}
}

// Label is the tab caption without its count.
func (t Tag) Label() string {
	switch t {
	case TagHigh:
		return "High Risk"
	case TagMedium:
		return "Medium Risk"
	case TagReleased:
		return "Released"
	default:
		return "All"
	}
}

// Filter is the tab and search query pair that decides row visibility.
type Filter struct {
	Tag   Tag    `json:"tag"`
	Query string `json:"query"`
}

// Matches reports whether r passes both the tag test and the search test.
func (f Filter) Matches(r Row) bool {
	return f.MatchesTag(r) && f.MatchesQuery(r)
}

// MatchesTag is the tab half of Matches.
func (f Filter) MatchesTag(r Row) bool {
	switch f.Tag {
	case "", TagAll, TagReleased:
		return true
	default:
		return string(r.Risk) == string(f.Tag)
	}
}

// MatchesQuery is a case-insensitive substring test against sender and
// subject. A blank query matches everything.
func (f Filter) MatchesQuery(r Row) bool {
	q := strings.ToLower(strings.TrimSpace(f.Query))
	if q == "" {
		return true
	}
	return strings.Contains(strings.ToLower(r.Sender), q) ||
		strings.Contains(strings.ToLower(r.Subject), q)
}
