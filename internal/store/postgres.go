package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/chemtrace/sds-cli/internal/db"
	"github.com/chemtrace/sds-cli/internal/model"
	"github.com/chemtrace/sds-cli/internal/resilience"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the most frequently used store operations.
var preparedStatements = map[string]string{
	"save_record": `INSERT INTO extraction_records (document_id, profile_used, fields, outcome, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (document_id) DO UPDATE SET
		  profile_used = EXCLUDED.profile_used,
		  fields       = EXCLUDED.fields,
		  outcome      = EXCLUDED.outcome,
		  created_at   = EXCLUDED.created_at`,
	"get_record": `SELECT document_id, profile_used, fields, outcome, created_at
		FROM extraction_records WHERE document_id = $1`,
	"remove_dlq": `DELETE FROM dlq WHERE id = $1`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS extraction_records (
	document_id  TEXT PRIMARY KEY,
	profile_used TEXT NOT NULL,
	fields       JSONB NOT NULL,
	outcome      TEXT NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS dlq (
	id             TEXT PRIMARY KEY,
	document_id    TEXT NOT NULL,
	error          TEXT NOT NULL,
	error_type     TEXT NOT NULL,
	retry_count    INT NOT NULL DEFAULT 0,
	max_retries    INT NOT NULL DEFAULT 3,
	created_at     TIMESTAMPTZ NOT NULL,
	last_failed_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_records_outcome ON extraction_records(outcome);
CREATE INDEX IF NOT EXISTS idx_records_profile ON extraction_records(profile_used);
CREATE INDEX IF NOT EXISTS idx_records_created ON extraction_records(created_at);
CREATE INDEX IF NOT EXISTS idx_dlq_document ON dlq(document_id);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) SaveRecord(ctx context.Context, rec *model.ExtractionRecord) error {
	fieldsJSON, createdAt, err := encodeRecord(rec)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, preparedStatements["save_record"],
		rec.DocumentID, rec.ProfileUsed, fieldsJSON, rec.Outcome, createdAt)
	return eris.Wrap(err, "postgres: save record")
}

// SaveRecords bulk-upserts a batch of records through a temp-table COPY,
// which is considerably faster than row-at-a-time inserts for large runs.
func (s *PostgresStore) SaveRecords(ctx context.Context, recs []*model.ExtractionRecord) error {
	if len(recs) == 0 {
		return nil
	}
	rows := make([][]any, 0, len(recs))
	for _, rec := range recs {
		fieldsJSON, createdAt, err := encodeRecord(rec)
		if err != nil {
			return err
		}
		rows = append(rows, []any{rec.DocumentID, rec.ProfileUsed, fieldsJSON, rec.Outcome, createdAt})
	}

	_, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "extraction_records",
		Columns:      []string{"document_id", "profile_used", "fields", "outcome", "created_at"},
		ConflictKeys: []string{"document_id"},
	}, rows)
	return eris.Wrap(err, "postgres: save records")
}

func (s *PostgresStore) GetRecord(ctx context.Context, documentID string) (*model.ExtractionRecord, error) {
	row := s.pool.QueryRow(ctx, preparedStatements["get_record"], documentID)
	rec, err := scanRecord(row.Scan)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get record")
	}
	return rec, nil
}

func (s *PostgresStore) ListRecords(ctx context.Context, filter RecordFilter) ([]model.ExtractionRecord, error) {
	query, args := buildListQuery(filter, "$")
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list records")
	}
	defer rows.Close()

	var out []model.ExtractionRecord
	for rows.Next() {
		rec, err := scanRecord(rows.Scan)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan record")
		}
		out = append(out, *rec)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list records")
}

func (s *PostgresStore) AddDLQ(ctx context.Context, entry *resilience.DLQEntry) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO dlq (id, document_id, error, error_type, retry_count, max_retries, created_at, last_failed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (id) DO UPDATE SET
		   error          = EXCLUDED.error,
		   retry_count    = EXCLUDED.retry_count,
		   last_failed_at = EXCLUDED.last_failed_at`,
		entry.ID, entry.DocumentID, entry.Error, entry.ErrorType,
		entry.RetryCount, entry.MaxRetries, entry.CreatedAt, entry.LastFailedAt)
	return eris.Wrap(err, "postgres: add dlq entry")
}

func (s *PostgresStore) ListDLQ(ctx context.Context, retryableOnly bool) ([]resilience.DLQEntry, error) {
	query := `SELECT id, document_id, error, error_type, retry_count, max_retries, created_at, last_failed_at FROM dlq`
	if retryableOnly {
		query += ` WHERE retry_count < max_retries`
	}
	query += ` ORDER BY last_failed_at DESC`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list dlq")
	}
	defer rows.Close()

	var out []resilience.DLQEntry
	for rows.Next() {
		var e resilience.DLQEntry
		if err := rows.Scan(&e.ID, &e.DocumentID, &e.Error, &e.ErrorType,
			&e.RetryCount, &e.MaxRetries, &e.CreatedAt, &e.LastFailedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan dlq entry")
		}
		out = append(out, e)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list dlq")
}

func (s *PostgresStore) RemoveDLQ(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx, preparedStatements["remove_dlq"], id)
	return eris.Wrap(err, "postgres: remove dlq entry")
}

func encodeRecord(rec *model.ExtractionRecord) (string, time.Time, error) {
	fieldsJSON, err := json.Marshal(rec.Fields)
	if err != nil {
		return "", time.Time{}, eris.Wrap(err, "postgres: marshal fields")
	}
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	return string(fieldsJSON), createdAt, nil
}
