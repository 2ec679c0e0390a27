// Package pipeline orchestrates document extraction: profile routing,
// heuristic pattern extraction, model gateway calls, candidate aggregation
// and external validation, producing one extraction record per document.
package pipeline

import (
	"context"
	"runtime"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/chemtrace/sds-cli/internal/aggregate"
	"github.com/chemtrace/sds-cli/internal/catalog"
	"github.com/chemtrace/sds-cli/internal/config"
	"github.com/chemtrace/sds-cli/internal/gateway"
	"github.com/chemtrace/sds-cli/internal/heuristic"
	"github.com/chemtrace/sds-cli/internal/model"
	"github.com/chemtrace/sds-cli/internal/monitoring"
	"github.com/chemtrace/sds-cli/internal/resilience"
	"github.com/chemtrace/sds-cli/internal/router"
)

// modelCaller abstracts the gateway for tests.
type modelCaller interface {
	ExtractField(ctx context.Context, text, fieldName string, opts gateway.Options) (model.FieldCandidate, error)
}

// validator abstracts external validation for tests.
type validator interface {
	ValidateAndEnrich(ctx context.Context, rec *model.ExtractionRecord) *model.ExtractionRecord
}

// Orchestrator runs the extraction stages for single documents and batches.
type Orchestrator struct {
	snapshot  *catalog.Snapshot
	fields    *model.FieldRegistry
	router    *router.Router
	extractor *heuristic.Extractor
	gw        modelCaller
	agg       *aggregate.Aggregator
	val       validator
	metrics   *monitoring.Recorder
	modelIDs  []string
	fewShot   bool
	batch     config.BatchConfig
	logger    *zap.Logger
}

// Options configures an Orchestrator.
type Options struct {
	Snapshot   *catalog.Snapshot
	Fields     *model.FieldRegistry
	Gateway    modelCaller
	Aggregator *aggregate.Aggregator
	Validator  validator // nil disables external validation
	Metrics    *monitoring.Recorder
	ModelIDs   []string
	FewShot    bool
	Batch      config.BatchConfig
}

// New creates an Orchestrator. The heuristic extractor and router are built
// against the given catalog snapshot.
func New(opts Options) *Orchestrator {
	extractor := heuristic.New()
	metrics := opts.Metrics
	if metrics == nil {
		metrics = monitoring.NewRecorder()
	}
	return &Orchestrator{
		snapshot:  opts.Snapshot,
		fields:    opts.Fields,
		router:    router.New(opts.Snapshot, extractor),
		extractor: extractor,
		gw:        opts.Gateway,
		agg:       opts.Aggregator,
		val:       opts.Validator,
		metrics:   metrics,
		modelIDs:  opts.ModelIDs,
		fewShot:   opts.FewShot,
		batch:     opts.Batch,
		logger:    zap.L().Named("pipeline"),
	}
}

// Metrics exposes the orchestrator's recorder.
func (o *Orchestrator) Metrics() *monitoring.Recorder {
	return o.metrics
}

// Process extracts every registry field from one document. Field-level
// failures degrade to unresolved candidates; Process itself fails only on
// empty input or context cancellation.
func (o *Orchestrator) Process(ctx context.Context, doc model.Document) (*model.ExtractionRecord, error) {
	if strings.TrimSpace(doc.Text) == "" {
		return nil, eris.Errorf("pipeline: document %q has no text", doc.ID)
	}
	docID := doc.ID
	if docID == "" {
		docID = uuid.NewString()
	}

	profileName := o.router.Route(doc.Text, doc.VendorHint)
	profile := o.snapshot.Profile(profileName)
	if profile == nil {
		profile = o.snapshot.Default()
		profileName = profile.Name
	}

	heurByField := make(map[string]model.FieldCandidate)
	for _, c := range o.extractor.Extract(doc.Text, profile) {
		heurByField[c.FieldName] = c
	}

	keys := o.fields.Keys()
	combined := make([]model.FieldCandidate, len(keys))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.fieldWorkers())
	for i, key := range keys {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			start := time.Now()
			combined[i] = o.extractField(gctx, doc.Text, key, heurByField)
			o.metrics.Observe(key, time.Since(start), combined[i].Value != nil)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, eris.Wrapf(err, "pipeline: document %s", docID)
	}

	rec := &model.ExtractionRecord{
		DocumentID:  docID,
		ProfileUsed: profileName,
		Fields:      make(map[string]model.FieldCandidate, len(combined)),
		CreatedAt:   time.Now().UTC(),
	}
	for _, c := range combined {
		rec.Fields[c.FieldName] = c
	}

	if o.val != nil {
		rec = o.val.ValidateAndEnrich(ctx, rec)
	}
	rec.Outcome = rec.ComputeOutcome()
	o.metrics.ObserveDocument()

	o.logger.Info("document processed",
		zap.String("document_id", docID),
		zap.String("profile", profileName),
		zap.String("outcome", rec.Outcome),
	)
	return rec, nil
}

// extractField runs the heuristic/model cascade for one field and combines
// the surviving candidates.
func (o *Orchestrator) extractField(ctx context.Context, text, key string, heurByField map[string]model.FieldCandidate) model.FieldCandidate {
	var cands []model.FieldCandidate
	opts := gateway.Options{ModelIDs: o.modelIDs, FewShot: o.fewShot}

	heur, hasHeur := heurByField[key]
	if hasHeur {
		cands = append(cands, heur)
		opts.Fallback = &heur
	}

	mc, err := o.gw.ExtractField(ctx, text, key, opts)
	switch {
	case err == nil:
		cands = append(cands, mc)
	case hasHeur:
		// Heuristic candidate carries the field on its own.
		o.logger.Debug("model extraction failed, keeping heuristic",
			zap.String("field", key), zap.Error(err))
	default:
		o.logger.Warn("field unresolved", zap.String("field", key), zap.Error(err))
		return model.FieldCandidate{FieldName: key, ValidationStatus: model.StatusUnresolved}
	}

	return o.agg.Combine(key, cands)
}

// BatchResult summarizes a batch run.
type BatchResult struct {
	Records []*model.ExtractionRecord
	Dead    []resilience.DLQEntry
}

// ProcessBatch extracts a set of documents concurrently. Failed documents
// land in the result's dead-letter entries instead of aborting the batch;
// only context cancellation stops the run early.
func (o *Orchestrator) ProcessBatch(ctx context.Context, docs []model.Document) (*BatchResult, error) {
	records := make([]*model.ExtractionRecord, len(docs))
	dead := make([]resilience.DLQEntry, len(docs))
	hasDead := make([]bool, len(docs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.docWorkers())
	for i, doc := range docs {
		g.Go(func() error {
			rec, err := o.Process(gctx, doc)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				now := time.Now().UTC()
				dead[i] = resilience.DLQEntry{
					ID:           uuid.NewString(),
					DocumentID:   doc.ID,
					Error:        err.Error(),
					ErrorType:    resilience.ClassifyError(err),
					MaxRetries:   3,
					CreatedAt:    now,
					LastFailedAt: now,
				}
				hasDead[i] = true
				return nil
			}
			records[i] = rec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "pipeline: batch aborted")
	}

	out := &BatchResult{}
	for i := range docs {
		if records[i] != nil {
			out.Records = append(out.Records, records[i])
		}
		if hasDead[i] {
			out.Dead = append(out.Dead, dead[i])
		}
	}
	o.logger.Info("batch complete",
		zap.Int("documents", len(docs)),
		zap.Int("succeeded", len(out.Records)),
		zap.Int("failed", len(out.Dead)),
	)
	return out, nil
}

func (o *Orchestrator) fieldWorkers() int {
	if o.batch.FieldWorkers > 0 {
		return o.batch.FieldWorkers
	}
	return 4
}

func (o *Orchestrator) docWorkers() int {
	if o.batch.DocWorkers > 0 {
		return o.batch.DocWorkers
	}
	n := runtime.NumCPU()
	if n > 8 {
		n = 8
	}
	return n
}
