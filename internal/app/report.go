package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/sithafal/sithafal/internal/charts"
	"github.com/sithafal/sithafal/internal/notify"
	"github.com/sithafal/sithafal/internal/quarantine"
)

// Report is the exported dashboard summary.
type Report struct {
	Timestamp  time.Time          `json:"timestamp"`
	Period     charts.Period      `json:"period"`
	Stats      Stats              `json:"stats"`
	Threats    Threats            `json:"threats"`
	Quarantine *quarantine.Counts `json:"quarantine,omitempty"`
}

// Threats is the threat breakdown keyed by segment.
type Threats struct {
	Malicious  int `json:"malicious"`
	Phishing   int `json:"phishing"`
	Suspicious int `json:"suspicious"`
	Detected   int `json:"detected"`
	Malware    int `json:"malware"`
}

func threatsOf(series []int) Threats {
	v := make([]int, len(charts.ThreatLabels))
	copy(v, series)
	return Threats{Malicious: v[0], Phishing: v[1], Suspicious: v[2], Detected: v[3], Malware: v[4]}
}

// Report snapshots the session. Quarantine counts are included while the
// quarantine page is open.
func (s *State) Report() Report {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := Report{
		Timestamp: time.Now().UTC(),
		Period:    s.period,
		Stats:     s.stats,
		Threats:   threatsOf(s.threat),
	}
	if s.ctrl != nil {
		c := s.ctrl.Counts()
		r.Quarantine = &c
	}
	return r
}

// ExportReport writes the report as indented JSON to w and announces it.
func (s *State) ExportReport(ctx context.Context, w io.Writer) (Report, error) {
	r := s.Report()
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r); err != nil {
		s.notes.NotifyContext(ctx, notify.LevelError, "Report export failed")
		return r, fmt.Errorf("encoding report: %w", err)
	}
	s.notes.NotifyContext(ctx, notify.LevelSuccess, "Report exported successfully!")
	return r, nil
}
