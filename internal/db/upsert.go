package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
)

// UpsertConfig describes a bulk upsert target. ConflictKeys must be covered
// by a unique index on the table.
type UpsertConfig struct {
	Table        string
	Columns      []string
	ConflictKeys []string
}

// BulkUpsert loads rows into a temp table via COPY and merges them into the
// target with INSERT ... ON CONFLICT DO UPDATE. Returns the number of rows
// merged. Rows must match cfg.Columns in order.
func BulkUpsert(ctx context.Context, pool Pool, cfg UpsertConfig, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	if len(cfg.Columns) == 0 {
		return 0, eris.New("db: bulk upsert requires columns")
	}
	if len(cfg.ConflictKeys) == 0 {
		return 0, eris.New("db: bulk upsert requires conflict keys")
	}
	table, err := sanitizeTable(cfg.Table)
	if err != nil {
		return 0, err
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "db: begin upsert transaction")
	}
	defer tx.Rollback(ctx)

	tmpTable := "tmp_" + table + "_upsert"
	createSQL := fmt.Sprintf(
		`CREATE TEMP TABLE %s (LIKE %s INCLUDING DEFAULTS) ON COMMIT DROP`,
		tmpTable, table,
	)
	if _, err := tx.Exec(ctx, createSQL); err != nil {
		return 0, eris.Wrap(err, "db: create temp table")
	}

	if _, err := tx.CopyFrom(ctx, pgx.Identifier{tmpTable}, cfg.Columns, pgx.CopyFromRows(rows)); err != nil {
		return 0, eris.Wrap(err, "db: copy rows")
	}

	updates := make([]string, 0, len(cfg.Columns))
	for _, col := range cfg.Columns {
		if contains(cfg.ConflictKeys, col) {
			continue
		}
		updates = append(updates, fmt.Sprintf(`%q = EXCLUDED.%q`, col, col))
	}

	mergeSQL := fmt.Sprintf(
		`INSERT INTO %s (%s) SELECT %s FROM %s ON CONFLICT (%s) DO UPDATE SET %s`,
		table, quoteAndJoin(cfg.Columns), quoteAndJoin(cfg.Columns),
		tmpTable, quoteAndJoin(cfg.ConflictKeys), strings.Join(updates, ", "),
	)
	tag, err := tx.Exec(ctx, mergeSQL)
	if err != nil {
		return 0, eris.Wrap(err, "db: merge rows")
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, eris.Wrap(err, "db: commit upsert")
	}
	return tag.RowsAffected(), nil
}

// sanitizeTable rejects identifiers that cannot be embedded in DDL safely.
func sanitizeTable(name string) (string, error) {
	if name == "" {
		return "", eris.New("db: empty table name")
	}
	for _, r := range name {
		if r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '_' {
			continue
		}
		return "", eris.Errorf("db: invalid table name %q", name)
	}
	return name, nil
}

func quoteAndJoin(cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = fmt.Sprintf("%q", c)
	}
	return strings.Join(quoted, ", ")
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
