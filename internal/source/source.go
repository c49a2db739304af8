// Package source loads the quarantined rows a quarantine page starts from.
// Every source is read-only: releases and deletes never write back, so a
// reload always restores the original rows.
package source

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sithafal/sithafal/internal/quarantine"
)

// ErrUnsupportedSource is returned by Open for specs it cannot interpret.
var ErrUnsupportedSource = errors.New("unsupported row source")

// Builtin names the embedded seed rows.
const Builtin = "builtin"

// Source yields the rows of one page load.
type Source interface {
	Name() string
	Load(ctx context.Context) ([]quarantine.Row, error)
	Close() error
}

// Record is the storage shape of a row. Every field is optional.
type Record struct {
	ID       string `yaml:"id"`
	Sender   string `yaml:"sender"`
	Subject  string `yaml:"subject"`
	Received string `yaml:"received"`
	Risk     string `yaml:"risk"`
}

var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

func parseTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// recordNamespace seeds the ids derived for records stored without one.
var recordNamespace = uuid.MustParse("6f1c3a52-9d4e-4b7a-8e21-5c0d9f7b3e14")

// derivedID names a record without an id after its content, so the same
// record gets the same id on every load. nth tells apart identical records.
func (r Record) derivedID(nth int) string {
	key := strings.Join([]string{
		strings.TrimSpace(r.Sender),
		strings.TrimSpace(r.Subject),
		strings.TrimSpace(r.Received),
		strings.TrimSpace(r.Risk),
		strconv.Itoa(nth),
	}, "\x00")
	return uuid.NewSHA1(recordNamespace, []byte(key)).String()
}

// Row converts a record, filling in what is missing: an id derived from
// the content, a zero time for unparseable dates and low risk for unknown
// levels.
func (r Record) Row() quarantine.Row {
	return r.row(0)
}

func (r Record) row(nth int) quarantine.Row {
	id := strings.TrimSpace(r.ID)
	if id == "" {
		id = r.derivedID(nth)
	}
	received, _ := parseTime(r.Received)
	return quarantine.Row{
		ID:       id,
		Sender:   strings.TrimSpace(r.Sender),
		Subject:  strings.TrimSpace(r.Subject),
		Received: received,
		Risk:     quarantine.ParseRisk(r.Risk),
	}
}

// Rows converts records in order. Identical records without an id still
// get distinct ids.
func Rows(records []Record) []quarantine.Row {
	rows := make([]quarantine.Row, 0, len(records))
	seen := make(map[string]int)
	for _, r := range records {
		nth := 0
		if strings.TrimSpace(r.ID) == "" {
			id := r.derivedID(0)
			nth = seen[id]
			seen[id]++
		}
		rows = append(rows, r.row(nth))
	}
	return rows
}

// Open interprets spec:
//
//	"" or "builtin"                 embedded seed rows
//	path ending in .yaml / .yml      YAML fixture
//	"sqlite:<path>" or .db/.sqlite   SQLite table
//	postgres:// or postgresql://     PostgreSQL table
func Open(ctx context.Context, spec string, logger *slog.Logger) (Source, error) {
	if logger == nil {
		logger = slog.Default()
	}
	spec = strings.TrimSpace(spec)

	switch {
	case spec == "" || spec == Builtin:
		return NewSeed(), nil
	case strings.HasPrefix(spec, "postgres://"), strings.HasPrefix(spec, "postgresql://"):
		return OpenPostgres(ctx, spec, logger)
	case strings.HasPrefix(spec, "sqlite:"):
		return OpenSQLite(strings.TrimPrefix(spec, "sqlite:"), logger)
	}

	switch strings.ToLower(filepath.Ext(spec)) {
	case ".yaml", ".yml":
		return NewYAMLFile(spec), nil
	case ".db", ".sqlite", ".sqlite3":
		return OpenSQLite(spec, logger)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedSource, spec)
}
