package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/chemtrace/sds-cli/internal/model"
	"github.com/chemtrace/sds-cli/internal/resilience"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	if dsn == "" {
		dsn = "sds.db"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS extraction_records (
	document_id  TEXT PRIMARY KEY,
	profile_used TEXT NOT NULL,
	fields       TEXT NOT NULL,
	outcome      TEXT NOT NULL,
	created_at   DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS dlq (
	id             TEXT PRIMARY KEY,
	document_id    TEXT NOT NULL,
	error          TEXT NOT NULL,
	error_type     TEXT NOT NULL,
	retry_count    INTEGER NOT NULL DEFAULT 0,
	max_retries    INTEGER NOT NULL DEFAULT 3,
	created_at     DATETIME NOT NULL,
	last_failed_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_records_outcome ON extraction_records(outcome);
CREATE INDEX IF NOT EXISTS idx_records_profile ON extraction_records(profile_used);
CREATE INDEX IF NOT EXISTS idx_records_created ON extraction_records(created_at);
CREATE INDEX IF NOT EXISTS idx_dlq_document ON dlq(document_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) SaveRecord(ctx context.Context, rec *model.ExtractionRecord) error {
	fieldsJSON, err := json.Marshal(rec.Fields)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal fields")
	}
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO extraction_records (document_id, profile_used, fields, outcome, created_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(document_id) DO UPDATE SET
		   profile_used = excluded.profile_used,
		   fields       = excluded.fields,
		   outcome      = excluded.outcome,
		   created_at   = excluded.created_at`,
		rec.DocumentID, rec.ProfileUsed, string(fieldsJSON), rec.Outcome, createdAt,
	)
	return eris.Wrap(err, "sqlite: save record")
}

func (s *SQLiteStore) SaveRecords(ctx context.Context, recs []*model.ExtractionRecord) error {
	for _, rec := range recs {
		if err := s.SaveRecord(ctx, rec); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteStore) GetRecord(ctx context.Context, documentID string) (*model.ExtractionRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT document_id, profile_used, fields, outcome, created_at
		 FROM extraction_records WHERE document_id = ?`, documentID)

	rec, err := scanRecord(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get record")
	}
	return rec, nil
}

func (s *SQLiteStore) ListRecords(ctx context.Context, filter RecordFilter) ([]model.ExtractionRecord, error) {
	query, args := buildListQuery(filter, "?")
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list records")
	}
	defer rows.Close()

	var out []model.ExtractionRecord
	for rows.Next() {
		rec, err := scanRecord(rows.Scan)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan record")
		}
		out = append(out, *rec)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list records")
}

func (s *SQLiteStore) AddDLQ(ctx context.Context, entry *resilience.DLQEntry) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO dlq (id, document_id, error, error_type, retry_count, max_retries, created_at, last_failed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   error          = excluded.error,
		   retry_count    = excluded.retry_count,
		   last_failed_at = excluded.last_failed_at`,
		entry.ID, entry.DocumentID, entry.Error, entry.ErrorType,
		entry.RetryCount, entry.MaxRetries, entry.CreatedAt, entry.LastFailedAt,
	)
	return eris.Wrap(err, "sqlite: add dlq entry")
}

func (s *SQLiteStore) ListDLQ(ctx context.Context, retryableOnly bool) ([]resilience.DLQEntry, error) {
	query := `SELECT id, document_id, error, error_type, retry_count, max_retries, created_at, last_failed_at
	          FROM dlq`
	if retryableOnly {
		query += ` WHERE retry_count < max_retries`
	}
	query += ` ORDER BY last_failed_at DESC`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list dlq")
	}
	defer rows.Close()

	var out []resilience.DLQEntry
	for rows.Next() {
		var e resilience.DLQEntry
		if err := rows.Scan(&e.ID, &e.DocumentID, &e.Error, &e.ErrorType,
			&e.RetryCount, &e.MaxRetries, &e.CreatedAt, &e.LastFailedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan dlq entry")
		}
		out = append(out, e)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list dlq")
}

func (s *SQLiteStore) RemoveDLQ(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM dlq WHERE id = ?`, id)
	return eris.Wrap(err, "sqlite: remove dlq entry")
}

// scanRecord decodes one record row; the scan function abstracts over
// sql.Row and sql.Rows.
func scanRecord(scan func(dest ...any) error) (*model.ExtractionRecord, error) {
	var (
		rec        model.ExtractionRecord
		fieldsJSON string
	)
	if err := scan(&rec.DocumentID, &rec.ProfileUsed, &fieldsJSON, &rec.Outcome, &rec.CreatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(fieldsJSON), &rec.Fields); err != nil {
		return nil, eris.Wrap(err, "decode fields")
	}
	return &rec, nil
}

// buildListQuery renders the filtered list statement for either placeholder
// style ("?" for sqlite, "$" for postgres).
func buildListQuery(filter RecordFilter, style string) (string, []any) {
	var (
		where []string
		args  []any
	)
	add := func(clause string, arg any) {
		args = append(args, arg)
		if style == "?" {
			where = append(where, clause+" ?")
		} else {
			where = append(where, clause+" $"+strconv.Itoa(len(args)))
		}
	}

	if filter.Outcome != "" {
		add("outcome =", filter.Outcome)
	}
	if filter.Profile != "" {
		add("profile_used =", filter.Profile)
	}
	if !filter.CreatedAfter.IsZero() {
		add("created_at >", filter.CreatedAfter)
	}

	query := `SELECT document_id, profile_used, fields, outcome, created_at FROM extraction_records`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC"

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	if style == "?" {
		query += " LIMIT ? OFFSET ?"
		args = append(args, limit, filter.Offset)
	} else {
		args = append(args, limit)
		query += " LIMIT $" + strconv.Itoa(len(args))
		args = append(args, filter.Offset)
		query += " OFFSET $" + strconv.Itoa(len(args))
	}
	return query, args
}

