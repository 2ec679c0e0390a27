package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/chemtrace/sds-cli/internal/config"
	"github.com/chemtrace/sds-cli/internal/model"
	"github.com/chemtrace/sds-cli/internal/resilience"
)

// ErrNotFound is returned when no record exists for a document id.
var ErrNotFound = eris.New("store: record not found")

// RecordFilter specifies criteria for listing extraction records.
type RecordFilter struct {
	Outcome      string    `json:"outcome,omitempty"`
	Profile      string    `json:"profile,omitempty"`
	CreatedAfter time.Time `json:"created_after,omitempty"`
	Limit        int       `json:"limit,omitempty"`
	Offset       int       `json:"offset,omitempty"`
}

// Store persists extraction records and the dead-letter queue of failed
// documents.
type Store interface {
	// Records
	SaveRecord(ctx context.Context, rec *model.ExtractionRecord) error
	SaveRecords(ctx context.Context, recs []*model.ExtractionRecord) error
	GetRecord(ctx context.Context, documentID string) (*model.ExtractionRecord, error)
	ListRecords(ctx context.Context, filter RecordFilter) ([]model.ExtractionRecord, error)

	// Dead-letter queue
	AddDLQ(ctx context.Context, entry *resilience.DLQEntry) error
	ListDLQ(ctx context.Context, retryableOnly bool) ([]resilience.DLQEntry, error)
	RemoveDLQ(ctx context.Context, id string) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// Open creates a store for the configured driver and runs migrations.
func Open(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	var (
		s   Store
		err error
	)
	switch cfg.Driver {
	case "", "sqlite":
		s, err = NewSQLite(cfg.SQLitePath)
	case "postgres":
		s, err = NewPostgres(ctx, cfg.DatabaseURL, nil)
	default:
		return nil, eris.Errorf("store: unknown driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}
	if err := s.Migrate(ctx); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}
