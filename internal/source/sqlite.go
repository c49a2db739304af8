package source

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	_ "modernc.org/sqlite"

	"github.com/sithafal/sithafal/internal/quarantine"
)

// Schema is the table both SQL sources read from.
const Schema = `
CREATE TABLE IF NOT EXISTS quarantined_emails (
	id TEXT PRIMARY KEY,
	sender TEXT,
	subject TEXT,
	received_at TEXT,
	risk TEXT
);

CREATE INDEX IF NOT EXISTS idx_quarantined_received ON quarantined_emails(received_at);
`

const selectRows = "SELECT id, sender, subject, received_at, risk FROM quarantined_emails ORDER BY received_at DESC, id"

// SQLite reads rows from a database file opened read-only.
type SQLite struct {
	path   string
	db     *sql.DB
	logger *slog.Logger
}

// OpenSQLite opens path in read-only mode. The file must already exist.
func OpenSQLite(path string, logger *slog.Logger) (*SQLite, error) {
	db, err := sql.Open("sqlite", "file:"+path+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("opening row db: %w", err)
	}
	if err := db.Ping(); err != nil {
		if cerr := db.Close(); cerr != nil {
			return nil, fmt.Errorf("opening row db %s: %w (also: close: %v)", path, err, cerr)
		}
		return nil, fmt.Errorf("opening row db %s: %w", path, err)
	}
	return &SQLite{path: path, db: db, logger: logger}, nil
}

func (s *SQLite) Name() string { return "sqlite:" + s.path }

func (s *SQLite) Load(ctx context.Context) ([]quarantine.Row, error) {
	rows, err := s.db.QueryContext(ctx, selectRows)
	if err != nil {
		return nil, fmt.Errorf("querying quarantined emails: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []Record
	for rows.Next() {
		var rec Record
		var sender, subject, received, risk sql.NullString
		if err := rows.Scan(&rec.ID, &sender, &subject, &received, &risk); err != nil {
			return nil, fmt.Errorf("scanning quarantined email: %w", err)
		}
		rec.Sender, rec.Subject, rec.Received, rec.Risk = sender.String, subject.String, received.String, risk.String
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating quarantined emails: %w", err)
	}
	s.logger.Debug("rows loaded", "source", s.Name(), "count", len(records))
	return Rows(records), nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

// WriteSQLite creates (or extends) a database at path with rows. The file
// stays in rollback-journal mode so OpenSQLite can read it with mode=ro.
func WriteSQLite(ctx context.Context, path string, rows []quarantine.Row) error {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("opening row db: %w", err)
	}
	defer func() { _ = db.Close() }()

	if _, err := db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT OR REPLACE INTO quarantined_emails (id, sender, subject, received_at, risk) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, r := range rows {
		rec := recordOf(r)
		if _, err := stmt.ExecContext(ctx, rec.ID, rec.Sender, rec.Subject, rec.Received, rec.Risk); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("inserting %s: %w", r.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
