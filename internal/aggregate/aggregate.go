package aggregate

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/chemtrace/sds-cli/internal/config"
	"github.com/chemtrace/sds-cli/internal/model"
)

// Aggregator reconciles per-field candidates from the heuristic and model
// paths into exactly one candidate.
type Aggregator struct {
	modelFloor     float64
	agreementBonus float64
	logger         *zap.Logger
}

// New creates an aggregator from configuration, applying defaults for
// unset knobs.
func New(cfg config.AggregateConfig) *Aggregator {
	a := &Aggregator{
		modelFloor:     cfg.ModelFloor,
		agreementBonus: cfg.AgreementBonus,
		logger:         zap.L().Named("aggregate"),
	}
	if a.modelFloor <= 0 {
		a.modelFloor = 0.5
	}
	if a.agreementBonus <= 0 {
		a.agreementBonus = 0.1
	}
	return a
}

// Combine is total: it always returns exactly one candidate for the field.
// No candidates at all yields an unresolved placeholder; a single candidate
// passes through untouched.
func (a *Aggregator) Combine(fieldName string, cands []model.FieldCandidate) model.FieldCandidate {
	switch len(cands) {
	case 0:
		return model.FieldCandidate{
			FieldName:        fieldName,
			Value:            nil,
			ValidationStatus: model.StatusUnresolved,
		}
	case 1:
		return cands[0]
	}

	heur, mod := split(cands)
	if heur == nil {
		return *mod
	}
	if mod == nil {
		return *heur
	}

	if model.NormalizeValue(heur.Value) == model.NormalizeValue(mod.Value) {
		out := *mod
		out.Source = model.SourceAgreed
		out.Confidence = model.ClampConfidence(maxConf(heur.Confidence, mod.Confidence) + a.agreementBonus)
		out.Issues = mergeIssues(heur.Issues, mod.Issues)
		return out
	}

	// Disagreement: the model answer wins unless it sits below the floor.
	winner, loser := mod, heur
	if mod.Confidence < a.modelFloor {
		winner, loser = heur, mod
	}
	a.logger.Debug("candidates disagree",
		zap.String("field", fieldName),
		zap.String("winner_source", winner.Source),
		zap.Float64("winner_confidence", winner.Confidence))

	out := *winner
	out.Issues = mergeIssues(winner.Issues, loser.Issues)
	return out.WithIssue(fmt.Sprintf("%s value %q rejected in favor of %s value %q",
		loser.Source, render(loser.Value), winner.Source, render(winner.Value)))
}

// split partitions candidates into the best heuristic-path and the best
// model-path candidate by confidence.
func split(cands []model.FieldCandidate) (heur, mod *model.FieldCandidate) {
	for i := range cands {
		c := &cands[i]
		if isHeuristicSource(c.Source) {
			if heur == nil || c.Confidence > heur.Confidence {
				heur = c
			}
			continue
		}
		if mod == nil || c.Confidence > mod.Confidence {
			mod = c
		}
	}
	return heur, mod
}

func isHeuristicSource(source string) bool {
	base := strings.TrimSuffix(source, model.CachedSuffix)
	return base == model.SourceHeuristic || base == model.SourceFallback
}

func maxConf(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func mergeIssues(a, b []string) []string {
	if len(a) == 0 && len(b) == 0 {
		return nil
	}
	out := make([]string, 0, len(a)+len(b))
	seen := make(map[string]struct{}, len(a)+len(b))
	for _, issue := range append(append([]string(nil), a...), b...) {
		if _, ok := seen[issue]; ok {
			continue
		}
		seen[issue] = struct{}{}
		out = append(out, issue)
	}
	return out
}

func render(v any) string {
	if v == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%v", v)
}
