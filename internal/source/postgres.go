package source

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sithafal/sithafal/internal/quarantine"
)

const selectRowsPostgres = "SELECT id, sender, subject, received_at, risk FROM quarantined_emails ORDER BY received_at DESC NULLS LAST, id"

// Postgres reads rows from a shared mail-gateway database. received_at is
// expected to be a timestamptz column; everything else is text.
type Postgres struct {
	pool   *pgxpool.Pool
	name   string
	logger *slog.Logger
}

// OpenPostgres connects to dsn and verifies the connection.
func OpenPostgres(ctx context.Context, dsn string, logger *slog.Logger) (*Postgres, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parsing postgres dsn: %w", err)
	}
	cfg.MaxConns = 4

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}
	name := fmt.Sprintf("postgres://%s/%s", cfg.ConnConfig.Host, cfg.ConnConfig.Database)
	return &Postgres{pool: pool, name: name, logger: logger}, nil
}

// Name omits credentials from the DSN.
func (p *Postgres) Name() string { return p.name }

func (p *Postgres) Load(ctx context.Context) ([]quarantine.Row, error) {
	rows, err := p.pool.Query(ctx, selectRowsPostgres)
	if err != nil {
		return nil, fmt.Errorf("querying quarantined emails: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var (
			id                    string
			sender, subject, risk *string
			received              *time.Time
		)
		if err := rows.Scan(&id, &sender, &subject, &received, &risk); err != nil {
			return nil, fmt.Errorf("scanning quarantined email: %w", err)
		}
		rec := Record{ID: id, Sender: deref(sender), Subject: deref(subject), Risk: deref(risk)}
		if received != nil {
			rec.Received = received.UTC().Format(time.RFC3339)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating quarantined emails: %w", err)
	}
	p.logger.Debug("rows loaded", "source", p.name, "count", len(records))
	return Rows(records), nil
}

func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
