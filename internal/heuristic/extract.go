// Package heuristic applies a profile's extraction patterns to document text,
// producing field candidates scored by match strength. Extraction is pure and
// CPU-bound: the same text and profile always yield the same candidates.
package heuristic

import (
	"strings"

	"go.uber.org/zap"

	"github.com/chemtrace/sds-cli/internal/catalog"
	"github.com/chemtrace/sds-cli/internal/model"
)

// Ambiguity penalty: each extra distinct match reduces confidence by
// ambiguityPenalty, capped at maxAmbiguityPenalty.
const (
	ambiguityPenalty    = 0.15
	maxAmbiguityPenalty = 0.30
)

// maxMatchesScanned bounds how many matches are examined per field.
const maxMatchesScanned = 16

// Extractor runs pattern extraction against a catalog snapshot's profiles.
type Extractor struct{}

// New creates a heuristic extractor.
func New() *Extractor {
	return &Extractor{}
}

// Extract applies every pattern rule in the profile to text. Unmatched fields
// produce no candidate. All candidates carry source=heuristic.
func (e *Extractor) Extract(text string, profile *catalog.Profile) []model.FieldCandidate {
	if profile == nil || text == "" {
		return nil
	}

	candidates := make([]model.FieldCandidate, 0, len(profile.Fields))
	for field, rule := range profile.Fields {
		if c, ok := extractField(text, field, rule); ok {
			candidates = append(candidates, c)
		}
	}

	zap.L().Debug("heuristic: extraction complete",
		zap.String("profile", profile.Name),
		zap.Int("fields_matched", len(candidates)),
	)
	return candidates
}

// MeanConfidence returns the mean confidence across candidates, 0 when empty.
// The router uses this to rank profiles in the trial-all fallback.
func MeanConfidence(candidates []model.FieldCandidate) float64 {
	if len(candidates) == 0 {
		return 0
	}
	var sum float64
	for _, c := range candidates {
		sum += c.Confidence
	}
	return sum / float64(len(candidates))
}

// extractField evaluates one rule. The winning match is the first one unless
// a later match captures a strictly longer value; among equals the earliest
// wins. Multiple distinct captured values reduce confidence.
func extractField(text, field string, rule catalog.PatternRule) (model.FieldCandidate, bool) {
	re := rule.Regexp()
	if re == nil {
		return model.FieldCandidate{}, false
	}

	matches := re.FindAllStringSubmatchIndex(text, maxMatchesScanned)
	if len(matches) == 0 {
		return model.FieldCandidate{}, false
	}

	type span struct {
		value      string
		matchLen   int
		captureLen int
	}

	best := -1
	spans := make([]span, 0, len(matches))
	distinct := make(map[string]bool)

	for _, m := range matches {
		matchStart, matchEnd := m[0], m[1]
		capStart, capEnd := matchStart, matchEnd
		// Prefer the first capture group when the pattern defines one.
		if len(m) >= 4 && m[2] >= 0 {
			capStart, capEnd = m[2], m[3]
		}

		val := strings.TrimSpace(text[capStart:capEnd])
		if val == "" {
			continue
		}

		spans = append(spans, span{
			value:      val,
			matchLen:   matchEnd - matchStart,
			captureLen: capEnd - capStart,
		})
		distinct[val] = true

		cur := len(spans) - 1
		if best < 0 || spans[cur].captureLen > spans[best].captureLen {
			best = cur
		}
	}

	if best < 0 {
		return model.FieldCandidate{}, false
	}

	win := spans[best]
	base := baseConfidence(win.captureLen, win.matchLen)

	// Ambiguity: extra distinct values beyond the winner cost confidence.
	extras := len(distinct) - 1
	penalty := float64(extras) * ambiguityPenalty
	if penalty > maxAmbiguityPenalty {
		penalty = maxAmbiguityPenalty
	}

	conf := model.ClampConfidence(base*rule.Weight - penalty)
	if conf <= 0 {
		return model.FieldCandidate{}, false
	}

	c := model.FieldCandidate{
		FieldName:  field,
		Value:      win.value,
		Confidence: conf,
		Source:     model.SourceHeuristic,
	}
	if extras > 0 {
		c = c.WithIssue("multiple distinct matches in source text")
	}
	return c, true
}

// baseConfidence scores a match by how much of it the capture group covers:
// a capture spanning the whole match scores 1.0, a sliver inside a long match
// scores closer to 0.5.
func baseConfidence(captureLen, matchLen int) float64 {
	if matchLen <= 0 || captureLen <= 0 {
		return 0
	}
	ratio := float64(captureLen) / float64(matchLen)
	if ratio > 1 {
		ratio = 1
	}
	return 0.5 + 0.5*ratio
}
