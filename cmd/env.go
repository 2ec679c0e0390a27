package main

import (
	"context"
	"os"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/chemtrace/sds-cli/internal/aggregate"
	"github.com/chemtrace/sds-cli/internal/catalog"
	"github.com/chemtrace/sds-cli/internal/gateway"
	"github.com/chemtrace/sds-cli/internal/model"
	"github.com/chemtrace/sds-cli/internal/monitoring"
	"github.com/chemtrace/sds-cli/internal/pipeline"
	"github.com/chemtrace/sds-cli/internal/store"
	"github.com/chemtrace/sds-cli/internal/validate"
	anthropicpkg "github.com/chemtrace/sds-cli/pkg/anthropic"
	"github.com/chemtrace/sds-cli/pkg/perplexity"
	"github.com/chemtrace/sds-cli/pkg/pubchem"
)

// extractEnv holds the initialized store, catalog, gateway and orchestrator
// shared by the extract/batch/serve/export commands.
type extractEnv struct {
	Store        store.Store
	Catalog      *catalog.Catalog
	Fields       *model.FieldRegistry
	Gateway      *gateway.Gateway
	Metrics      *monitoring.Recorder
	Orchestrator *pipeline.Orchestrator
}

// Close releases resources held by the environment.
func (e *extractEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// modelIDs returns the configured backend models: the consensus set when
// present, otherwise the single Anthropic model.
func modelIDs() []string {
	if len(cfg.Gateway.ConsensusModels) > 0 {
		return cfg.Gateway.ConsensusModels
	}
	return []string{cfg.Anthropic.Model}
}

// initEnv sets up the store, profile catalog, model gateway and orchestrator.
// Callers should defer env.Close(). External validation is skipped when
// validateFields is false.
func initEnv(ctx context.Context, fewShot, validateFields bool) (*extractEnv, error) {
	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}

	fields := model.DefaultFieldRegistry()
	cat, err := catalog.New(fields)
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	if dir := cfg.Catalog.ProfileDir; dir != "" {
		if _, statErr := os.Stat(dir); statErr == nil {
			if err := cat.LoadDir(dir); err != nil {
				_ = st.Close()
				return nil, err
			}
		} else {
			zap.L().Debug("profile dir not found, using built-in default only",
				zap.String("dir", dir))
		}
	}

	ids := modelIDs()
	registry, err := gateway.NewRegistry(ids,
		anthropicpkg.NewClient(cfg.Anthropic.Key),
		perplexity.NewClient(cfg.Perplexity.Key,
			perplexity.WithBaseURL(cfg.Perplexity.BaseURL),
			perplexity.WithModel(cfg.Perplexity.Model)),
	)
	if err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "init model backends")
	}
	gw := gateway.New(cfg.Gateway, registry, fields)

	var val *validate.Validator
	if validateFields {
		pubchemOpts := []pubchem.Option{
			pubchem.WithRateLimit(cfg.PubChem.RateLimit),
			pubchem.WithCacheTTL(cfg.PubChem.LookupCacheTTL),
		}
		if cfg.PubChem.BaseURL != "" {
			pubchemOpts = append(pubchemOpts, pubchem.WithBaseURL(cfg.PubChem.BaseURL))
		}
		val = validate.New(pubchem.NewClient(pubchemOpts...), cfg.PubChem)
	}

	metrics := monitoring.NewRecorder()
	opts := pipeline.Options{
		Snapshot:   cat.Snapshot(),
		Fields:     fields,
		Gateway:    gw,
		Aggregator: aggregate.New(cfg.Aggregate),
		Metrics:    metrics,
		ModelIDs:   ids,
		FewShot:    fewShot,
		Batch:      cfg.Batch,
	}
	if val != nil {
		opts.Validator = val
	}

	return &extractEnv{
		Store:        st,
		Catalog:      cat,
		Fields:       fields,
		Gateway:      gw,
		Metrics:      metrics,
		Orchestrator: pipeline.New(opts),
	}, nil
}
