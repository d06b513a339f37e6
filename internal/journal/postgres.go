package journal

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"stagecast/internal/observability/metrics"
)

// PostgresConfig describes how the journal initialises its Postgres
// connection pool.
type PostgresConfig struct {
	DSN                 string
	Table               string
	MaxConnections      int32
	MinConnections      int32
	MaxConnLifetime     time.Duration
	MaxConnIdleTime     time.Duration
	HealthCheckInterval time.Duration
	ConnectTimeout      time.Duration
	ApplicationName     string
}

type postgresJournal struct {
	pool  *pgxpool.Pool
	table string
}

// NewPostgresJournal opens a Postgres-backed journal and ensures the backing
// table exists.
func NewPostgresJournal(ctx context.Context, cfg PostgresConfig) (Journal, error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, fmt.Errorf("postgres dsn required")
	}
	table := strings.TrimSpace(cfg.Table)
	if table == "" {
		table = "broadcast_actions"
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres config: %w", err)
	}
	if cfg.MaxConnections > 0 {
		poolCfg.MaxConns = cfg.MaxConnections
	}
	if cfg.MinConnections >= 0 {
		poolCfg.MinConns = cfg.MinConnections
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.MaxConnIdleTime > 0 {
		poolCfg.MaxConnIdleTime = cfg.MaxConnIdleTime
	}
	if cfg.HealthCheckInterval > 0 {
		poolCfg.HealthCheckPeriod = cfg.HealthCheckInterval
	}
	if cfg.ConnectTimeout > 0 {
		poolCfg.ConnConfig.ConnectTimeout = cfg.ConnectTimeout
	}
	if cfg.ApplicationName != "" {
		if poolCfg.ConnConfig.RuntimeParams == nil {
			poolCfg.ConnConfig.RuntimeParams = make(map[string]string)
		}
		poolCfg.ConnConfig.RuntimeParams["application_name"] = cfg.ApplicationName
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("open postgres pool: %w", err)
	}

	j := &postgresJournal{pool: pool, table: table}
	if err := j.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return j, nil
}

func (j *postgresJournal) ensureSchema(ctx context.Context) error {
	schema := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
    sequence BIGINT NOT NULL,
    kind TEXT NOT NULL,
    payload JSONB,
    occurred_at TIMESTAMPTZ NOT NULL,
    PRIMARY KEY (sequence)
)`, j.table)
	if _, err := j.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure journal table: %w", err)
	}
	return nil
}

func (j *postgresJournal) Append(ctx context.Context, entry Entry) error {
	if entry.OccurredAt.IsZero() {
		entry.OccurredAt = time.Now().UTC()
	}
	query := fmt.Sprintf(
		"INSERT INTO %s (sequence, kind, payload, occurred_at) VALUES ($1, $2, $3, $4) ON CONFLICT (sequence) DO NOTHING",
		j.table,
	)
	var payload any
	if len(entry.Payload) > 0 {
		payload = []byte(entry.Payload)
	}
	if _, err := j.pool.Exec(ctx, query, int64(entry.Sequence), entry.Kind, payload, entry.OccurredAt); err != nil {
		metrics.Default().ObserveJournalFailure("postgres")
		return fmt.Errorf("append journal entry: %w", err)
	}
	metrics.Default().ObserveJournalAppend("postgres")
	return nil
}

func (j *postgresJournal) Close(ctx context.Context) error {
	if j == nil || j.pool == nil {
		return nil
	}
	done := make(chan struct{})
	go func() {
		j.pool.Close()
		close(done)
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}
