package quarantine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseRisk(t *testing.T) {
	tests := []struct {
		in   string
		want Risk
	}{
		{"high", RiskHigh},
		{" HIGH ", RiskHigh},
		{"Medium", RiskMedium},
		{"low", RiskLow},
		{"", RiskLow},
		{"critical", RiskLow},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseRisk(tt.in), "ParseRisk(%q)", tt.in)
	}
}

func TestParseTag(t *testing.T) {
	tag, ok := ParseTag("High")
	assert.True(t, ok)
	assert.Equal(t, TagHigh, tag)

	tag, ok = ParseTag("released")
	assert.True(t, ok)
	assert.Equal(t, TagReleased, tag)

	tag, ok = ParseTag("spam")
	assert.False(t, ok)
	assert.Equal(t, TagAll, tag)
}

func TestFilterMatches(t *testing.T) {
	high := Row{ID: "1", Sender: "Alerts@PayPa1.com", Subject: "Account Suspended", Risk: RiskHigh}
	medium := Row{ID: "2", Sender: "news@shop.example", Subject: "Weekly deals", Risk: RiskMedium}
	bare := Row{ID: "3", Risk: RiskLow}

	tests := []struct {
		name   string
		filter Filter
		row    Row
		want   bool
	}{
		{"all matches high", Filter{Tag: TagAll}, high, true},
		{"zero tag matches", Filter{}, medium, true},
		{"high tag hides medium", Filter{Tag: TagHigh}, medium, false},
		{"medium tag shows medium", Filter{Tag: TagMedium}, medium, true},
		{"released behaves like all", Filter{Tag: TagReleased}, bare, true},
		{"query on sender is case-insensitive", Filter{Tag: TagAll, Query: "paypa1"}, high, true},
		{"query on subject", Filter{Tag: TagAll, Query: "SUSPENDED"}, high, true},
		{"query is trimmed", Filter{Tag: TagAll, Query: "  deals  "}, medium, true},
		{"blank query matches all", Filter{Tag: TagAll, Query: "   "}, bare, true},
		{"missing fields never match a query", Filter{Tag: TagAll, Query: "x"}, bare, false},
		{"tag and query are ANDed", Filter{Tag: TagHigh, Query: "deals"}, medium, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.filter.Matches(tt.row))
			assert.Equal(t, tt.filter.MatchesTag(tt.row) && tt.filter.MatchesQuery(tt.row), tt.filter.Matches(tt.row))
		})
	}
}

func TestPreviewDefaults(t *testing.T) {
	p := newPreview(Row{ID: "x", Risk: Risk("")})
	assert.Equal(t, "Unknown", p.Sender)
	assert.Equal(t, "No Subject", p.Subject)
	assert.Equal(t, "Unknown", p.Risk)
	assert.Empty(t, p.Date)
}

func TestCountsForTag(t *testing.T) {
	c := Counts{Total: 5, High: 2, Medium: 1, Low: 2}
	assert.Equal(t, 5, c.ForTag(TagAll))
	assert.Equal(t, 2, c.ForTag(TagHigh))
	assert.Equal(t, 1, c.ForTag(TagMedium))
	assert.Equal(t, 5, c.ForTag(TagReleased))
}
