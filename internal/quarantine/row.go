// Package quarantine holds the state behind the quarantine table: the row
// registry, the filter and search predicate, the selection set with its
// derived select-all state, and the release/delete actions.
package quarantine

import (
	"strings"
	"time"
)

// Risk is the severity tag of a quarantined email.
type Risk string

const (
	RiskHigh   Risk = "high"
	RiskMedium Risk = "medium"
	RiskLow    Risk = "low"
)

// ParseRisk normalizes s. Anything unrecognized is treated as low risk.
func ParseRisk(s string) Risk {
	switch Risk(strings.ToLower(strings.TrimSpace(s))) {
	case RiskHigh:
		return RiskHigh
	case RiskMedium:
		return RiskMedium
	default:
		return RiskLow
	}
}

// Label is the badge text rendered for the risk level.
func (r Risk) Label() string {
	switch r {
	case RiskHigh:
		return "High Risk"
	case RiskMedium:
		return "Medium Risk"
	case RiskLow:
		return "Low Risk"
	default:
		return ""
	}
}

// Row is one quarantined email.
type Row struct {
	ID       string    `json:"id" yaml:"id"`
	Sender   string    `json:"sender" yaml:"sender"`
	Subject  string    `json:"subject" yaml:"subject"`
	Received time.Time `json:"received" yaml:"received"`
	Risk     Risk      `json:"risk" yaml:"risk"`
}

// DateLayout and TimeLayout split Received into the two lines of the date
// column.
const (
	DateLayout = "Jan 2, 2006"
	TimeLayout = "3:04 PM"
)

// Preview is the content of the email preview modal.
type Preview struct {
	ID      string `json:"id"`
	Sender  string `json:"sender"`
	Subject string `json:"subject"`
	Date    string `json:"date"`
	Risk    string `json:"risk"`
}

func newPreview(r Row) Preview {
	p := Preview{
		ID:      r.ID,
		Sender:  r.Sender,
		Subject: r.Subject,
		Risk:    r.Risk.Label(),
	}
	if strings.TrimSpace(p.Sender) == "" {
		p.Sender = "Unknown"
	}
	if strings.TrimSpace(p.Subject) == "" {
		p.Subject = "No Subject"
	}
	if p.Risk == "" {
		p.Risk = "Unknown"
	}
	if !r.Received.IsZero() {
		p.Date = r.Received.Format(DateLayout) + " " + r.Received.Format(TimeLayout)
	}
	return p
}

// Counts is the per-risk breakdown of the registered rows.
type Counts struct {
	Total  int `json:"total"`
	High   int `json:"high"`
	Medium int `json:"medium"`
	Low    int `json:"low"`
}

// ForTag returns the count shown next to a filter tab.
func (c Counts) ForTag(t Tag) int {
	switch t {
	case TagHigh:
		return c.High
	case TagMedium:
		return c.Medium
	default:
		return c.Total
	}
}

func countRows(rows []Row) Counts {
	var c Counts
	for _, r := range rows {
		c.Total++
		switch r.Risk {
		case RiskHigh:
			c.High++
		case RiskMedium:
			c.Medium++
		default:
			c.Low++
		}
	}
	return c
}
