package db

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBulkUpsert_EmptyRows(t *testing.T) {
	n, err := BulkUpsert(context.Background(), nil, UpsertConfig{
		Table:        "extraction_records",
		Columns:      []string{"document_id"},
		ConflictKeys: []string{"document_id"},
	}, nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestBulkUpsert_NoColumns(t *testing.T) {
	_, err := BulkUpsert(context.Background(), nil, UpsertConfig{
		Table:        "extraction_records",
		ConflictKeys: []string{"document_id"},
	}, [][]any{{"doc-1"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "columns")
}

func TestBulkUpsert_NoConflictKeys(t *testing.T) {
	_, err := BulkUpsert(context.Background(), nil, UpsertConfig{
		Table:   "extraction_records",
		Columns: []string{"document_id"},
	}, [][]any{{"doc-1"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "conflict keys")
}

func TestBulkUpsert_InvalidTable(t *testing.T) {
	_, err := BulkUpsert(context.Background(), nil, UpsertConfig{
		Table:        "extraction_records; DROP TABLE x",
		Columns:      []string{"document_id"},
		ConflictKeys: []string{"document_id"},
	}, [][]any{{"doc-1"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid table name")
}

func TestBulkUpsert_MergesRows(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	cols := []string{"document_id", "profile_used", "fields", "outcome", "created_at"}
	rows := [][]any{
		{"doc-1", "sigma-aldrich", "{}", "complete", "2026-08-01T00:00:00Z"},
		{"doc-2", "fisher", "{}", "partial", "2026-08-01T00:00:00Z"},
	}

	mock.ExpectBegin()
	mock.ExpectExec("CREATE TEMP TABLE tmp_extraction_records_upsert").
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"tmp_extraction_records_upsert"}, cols).
		WillReturnResult(2)
	mock.ExpectExec("INSERT INTO extraction_records").
		WillReturnResult(pgxmock.NewResult("INSERT", 2))
	mock.ExpectCommit()

	n, err := BulkUpsert(context.Background(), mock, UpsertConfig{
		Table:        "extraction_records",
		Columns:      cols,
		ConflictKeys: []string{"document_id"},
	}, rows)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSanitizeTable(t *testing.T) {
	got, err := sanitizeTable("extraction_records")
	require.NoError(t, err)
	assert.Equal(t, "extraction_records", got)

	_, err = sanitizeTable("")
	assert.Error(t, err)

	_, err = sanitizeTable(`records"; --`)
	assert.Error(t, err)
}

func TestQuoteAndJoin(t *testing.T) {
	assert.Equal(t, `"a", "b"`, quoteAndJoin([]string{"a", "b"}))
	assert.Equal(t, `"document_id"`, quoteAndJoin([]string{"document_id"}))
}
