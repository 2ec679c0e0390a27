package gateway

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/chemtrace/sds-cli/internal/config"
	"github.com/chemtrace/sds-cli/internal/model"
	"github.com/chemtrace/sds-cli/internal/resilience"
)

// UnavailableError reports that every attempted model failed for a field
// after retries were exhausted. The orchestrator treats it as "no candidate
// from this source", not as a document failure.
type UnavailableError struct {
	FieldName string
	Err       error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("gateway unavailable for field %q: %v", e.FieldName, e.Err)
}

func (e *UnavailableError) Unwrap() error {
	return e.Err
}

// IsUnavailable reports whether err is a gateway-unavailable condition.
func IsUnavailable(err error) bool {
	var ue *UnavailableError
	return eris.As(err, &ue)
}

// Options selects the gateway modes for one extract call.
type Options struct {
	// ModelIDs to query. One id is a plain single-model call; several run
	// in parallel and go through consensus comparison.
	ModelIDs []string
	// FewShot injects curated example pairs for the field into the prompt.
	FewShot bool
	// Fallback, when set, is returned unchanged if the model path fails
	// entirely or lands below the confidence threshold.
	Fallback *model.FieldCandidate
}

// Gateway wraps the inference backends with retries, circuit breaking,
// response caching and consensus.
type Gateway struct {
	cfg      config.GatewayConfig
	registry *Registry
	fields   *model.FieldRegistry
	cache    *responseCache
	sf       singleflight.Group
	breakers *resilience.ServiceBreakers
	limiter  *rate.Limiter
	retry    resilience.RetryConfig
	logger   *zap.Logger
}

// New builds a gateway. Every model id the caller may use must already be in
// the registry; unknown ids were rejected when the registry was built.
func New(cfg config.GatewayConfig, registry *Registry, fields *model.FieldRegistry) *Gateway {
	g := &Gateway{
		cfg:      cfg,
		registry: registry,
		fields:   fields,
		cache:    newResponseCache(cfg.CacheCapacity, cfg.CacheTTL),
		breakers: resilience.NewServiceBreakers(resilience.CircuitBreakerConfig{
			// Only service-side trouble trips the breaker; malformed
			// requests say nothing about backend health.
			ShouldTrip: resilience.IsTransient,
		}),
		retry:    resilience.FromRetryValues(cfg.Retry.MaxAttempts, cfg.Retry.BaseDelay, cfg.Retry.Multiplier),
		logger:   zap.L().Named("gateway"),
	}
	if cfg.BackendRateLimit > 0 {
		g.limiter = rate.NewLimiter(rate.Limit(cfg.BackendRateLimit), int(cfg.BackendRateLimit)+1)
	}
	return g
}

// ExtractField asks the configured models for one field's value and returns
// exactly one candidate, applying cache, consensus and the fallback gate.
func (g *Gateway) ExtractField(ctx context.Context, text, fieldName string, opts Options) (model.FieldCandidate, error) {
	spec := g.fields.ByKey(fieldName)
	if spec == nil {
		return model.FieldCandidate{}, eris.Errorf("gateway: unknown field %q", fieldName)
	}
	if len(opts.ModelIDs) == 0 {
		return model.FieldCandidate{}, eris.Errorf("gateway: no model ids for field %q", fieldName)
	}

	exampleCount := 0
	if opts.FewShot {
		exampleCount = g.cfg.FewShotExampleCount
		if exampleCount <= 0 {
			exampleCount = 2
		}
	}
	templateID, prompt := buildPrompt(spec, text, exampleCount)
	normText := model.NormalizeValue(text)

	var (
		cand model.FieldCandidate
		err  error
	)
	if len(opts.ModelIDs) == 1 {
		cand, err = g.singleModel(ctx, normText, prompt, templateID, spec, opts.ModelIDs[0])
	} else {
		cand, err = g.consensus(ctx, normText, prompt, templateID, spec, opts.ModelIDs)
	}

	if err != nil {
		unavailable := &UnavailableError{FieldName: fieldName, Err: err}
		if opts.Fallback != nil {
			g.logger.Debug("model path failed, using fallback",
				zap.String("field", fieldName),
				zap.Error(err))
			return *opts.Fallback, nil
		}
		return model.FieldCandidate{}, unavailable
	}

	// Fallback gate: strictly-below-threshold results yield to the fallback;
	// a result exactly at the threshold is kept.
	if opts.Fallback != nil && cand.Confidence < g.cfg.ConfidenceThreshold {
		g.logger.Debug("model confidence below threshold, using fallback",
			zap.String("field", fieldName),
			zap.Float64("confidence", cand.Confidence),
			zap.Float64("threshold", g.cfg.ConfidenceThreshold))
		return *opts.Fallback, nil
	}
	return cand, nil
}

// CacheStats exposes the response cache counters.
func (g *Gateway) CacheStats() CacheStats {
	return g.cache.Stats()
}

// InvalidateCache drops all cached responses and returns how many were held.
func (g *Gateway) InvalidateCache() int {
	n := g.cache.Invalidate()
	g.logger.Info("response cache invalidated", zap.Int("entries", n))
	return n
}

// BreakerStates reports the current per-backend circuit states.
func (g *Gateway) BreakerStates() map[string]resilience.CircuitState {
	return g.breakers.States()
}

type flightResult struct {
	cand      model.FieldCandidate
	fromCache bool
}

// singleModel serves one model id through the cache. Concurrent misses for
// the same key share one upstream call.
func (g *Gateway) singleModel(ctx context.Context, normText, prompt, templateID string, spec *model.FieldSpec, modelID string) (model.FieldCandidate, error) {
	key := cacheKey(normText, spec.Key, modelID, templateID)

	v, err, _ := g.sf.Do(key, func() (any, error) {
		if cached, ok := g.cache.Get(key); ok {
			return flightResult{cand: cached, fromCache: true}, nil
		}
		cand, err := g.callModel(ctx, modelID, prompt, templateID, spec)
		if err != nil {
			return nil, err
		}
		g.cache.Put(key, cand)
		return flightResult{cand: cand}, nil
	})
	if err != nil {
		return model.FieldCandidate{}, err
	}

	fr := v.(flightResult)
	if fr.fromCache {
		return fr.cand.AnnotateCached(), nil
	}
	return fr.cand, nil
}

// consensus queries every model id in parallel (bounded by the worker cap)
// and reconciles the answers.
func (g *Gateway) consensus(ctx context.Context, normText, prompt, templateID string, spec *model.FieldSpec, modelIDs []string) (model.FieldCandidate, error) {
	workers := g.cfg.ConsensusWorkers
	if workers <= 0 {
		workers = 4
	}

	cands := make([]*model.FieldCandidate, len(modelIDs))
	errs := make([]error, len(modelIDs))

	var eg errgroup.Group
	eg.SetLimit(workers)
	for i, id := range modelIDs {
		eg.Go(func() error {
			cand, err := g.singleModel(ctx, normText, prompt, templateID, spec, id)
			if err != nil {
				errs[i] = err
				return nil
			}
			cands[i] = &cand
			return nil
		})
	}
	_ = eg.Wait()

	var ok []model.FieldCandidate
	for _, c := range cands {
		if c != nil {
			ok = append(ok, *c)
		}
	}
	if len(ok) == 0 {
		joined := make([]string, 0, len(errs))
		for _, e := range errs {
			if e != nil {
				joined = append(joined, e.Error())
			}
		}
		return model.FieldCandidate{}, eris.Errorf("all models failed: %s", strings.Join(joined, "; "))
	}
	if len(ok) == 1 {
		return ok[0], nil
	}

	best := ok[0]
	agree := true
	for _, c := range ok[1:] {
		if c.Confidence > best.Confidence {
			best = c
		}
		if model.NormalizeValue(c.Value) != model.NormalizeValue(ok[0].Value) {
			agree = false
		}
	}

	if agree {
		out := best
		out.Source = model.SourceLLMConsensus
		out.Confidence = model.ClampConfidence(best.Confidence + g.agreementBonus())
		return out, nil
	}

	// Disagreement: keep the most confident answer, penalized, and record
	// the alternatives for audit.
	values := make([]string, 0, len(ok))
	for _, c := range ok {
		if rendered := fmt.Sprintf("%v", c.Value); rendered != fmt.Sprintf("%v", best.Value) {
			values = append(values, rendered)
		}
	}
	sort.Strings(values)

	out := best
	out.Source = model.SourceBestEffort
	out.Confidence = model.ClampConfidence(best.Confidence - g.disagreementPenalty())
	out = out.WithIssue("consensus disagreement, other values: " + strings.Join(values, " | "))
	return out, nil
}

// callModel performs the retried backend call for one model.
func (g *Gateway) callModel(ctx context.Context, modelID, prompt, templateID string, spec *model.FieldSpec) (model.FieldCandidate, error) {
	backend, err := g.registry.Backend(modelID)
	if err != nil {
		return model.FieldCandidate{}, err
	}
	breaker := g.breakers.Get(backend.Name())

	retryCfg := g.retry
	retryCfg.OnRetry = resilience.RetryLogger(backend.Name(), "extract "+spec.Key)

	source := model.SourceLLM
	if templateID == templateFewShotV1 {
		source = model.SourceLLMFewShot
	}

	start := time.Now()
	cand, err := resilience.DoVal(ctx, retryCfg, func(ctx context.Context) (model.FieldCandidate, error) {
		if err := breaker.Allow(); err != nil {
			return model.FieldCandidate{}, resilience.NewTransientError(err, 0)
		}
		if g.limiter != nil {
			if err := g.limiter.Wait(ctx); err != nil {
				return model.FieldCandidate{}, eris.Wrap(err, "gateway: rate limiter")
			}
		}

		callCtx := ctx
		if g.cfg.RequestTimeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, g.cfg.RequestTimeout)
			defer cancel()
		}

		res, err := backend.Generate(callCtx, GenerateRequest{
			ModelID:     modelID,
			System:      systemPrompt,
			Prompt:      prompt,
			MaxTokens:   1024,
			Temperature: 0,
			FieldName:   spec.Key,
		})
		breaker.Record(err)
		if err != nil {
			return model.FieldCandidate{}, err
		}

		ans, err := parseAnswer(res.Text)
		if err != nil {
			return model.FieldCandidate{}, resilience.NewPermanentError(err)
		}
		if ans.Value == nil {
			return model.FieldCandidate{}, resilience.NewPermanentError(
				eris.Errorf("model reported field %q absent", spec.Key))
		}

		return model.FieldCandidate{
			FieldName:  spec.Key,
			Value:      ans.Value,
			Confidence: model.ClampConfidence(ans.Confidence),
			Source:     source,
		}, nil
	})
	if err != nil {
		return model.FieldCandidate{}, err
	}

	g.logger.Debug("model call complete",
		zap.String("model", modelID),
		zap.String("field", spec.Key),
		zap.Duration("elapsed", time.Since(start)),
		zap.Float64("confidence", cand.Confidence))
	return cand, nil
}

func (g *Gateway) agreementBonus() float64 {
	if g.cfg.AgreementBonus > 0 {
		return g.cfg.AgreementBonus
	}
	return 0.10
}

func (g *Gateway) disagreementPenalty() float64 {
	if g.cfg.DisagreementPenalty > 0 {
		return g.cfg.DisagreementPenalty
	}
	return 0.15
}
