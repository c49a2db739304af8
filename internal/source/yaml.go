package source

import (
	"context"
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/sithafal/sithafal/internal/quarantine"
	"github.com/sithafal/sithafal/internal/safefile"
)

//go:embed seed.yaml
var seedYAML []byte

type fixture struct {
	Rows []Record `yaml:"rows"`
}

func decodeFixture(data []byte) ([]quarantine.Row, error) {
	var f fixture
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing rows: %w", err)
	}
	return Rows(f.Rows), nil
}

// Seed serves the embedded demo rows.
type Seed struct{}

func NewSeed() *Seed { return &Seed{} }

func (*Seed) Name() string { return Builtin }

func (*Seed) Load(context.Context) ([]quarantine.Row, error) {
	return decodeFixture(seedYAML)
}

func (*Seed) Close() error { return nil }

// YAMLFile reads rows from a fixture file on every Load.
type YAMLFile struct {
	path string
}

func NewYAMLFile(path string) *YAMLFile {
	return &YAMLFile{path: path}
}

func (y *YAMLFile) Name() string { return y.path }

// Path returns the fixture location.
func (y *YAMLFile) Path() string { return y.path }

func (y *YAMLFile) Load(ctx context.Context) ([]quarantine.Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := safefile.ReadFile(y.path, safefile.MaxFixtureBytes)
	if err != nil {
		return nil, fmt.Errorf("reading rows: %w", err)
	}
	rows, err := decodeFixture(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", y.path, err)
	}
	return rows, nil
}

func (y *YAMLFile) Close() error { return nil }

// WriteYAML saves rows as a fixture file that YAMLFile can read back.
func WriteYAML(path string, rows []quarantine.Row) error {
	f := fixture{Rows: make([]Record, 0, len(rows))}
	for _, r := range rows {
		f.Rows = append(f.Rows, recordOf(r))
	}
	data, err := yaml.Marshal(f)
	if err != nil {
		return fmt.Errorf("encoding rows: %w", err)
	}
	if err := safefile.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing rows: %w", err)
	}
	return nil
}

func recordOf(r quarantine.Row) Record {
	rec := Record{ID: r.ID, Sender: r.Sender, Subject: r.Subject, Risk: string(r.Risk)}
	if !r.Received.IsZero() {
		rec.Received = r.Received.Format("2006-01-02 15:04")
	}
	return rec
}
