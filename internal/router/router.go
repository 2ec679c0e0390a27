// Package router chooses the extraction profile for a document. Routing is a
// pure function of the text and a catalog snapshot: signature match first,
// then header match, then a trial-all ranking, then the default profile.
package router

import (
	"crypto/sha256"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/chemtrace/sds-cli/internal/catalog"
	"github.com/chemtrace/sds-cli/internal/heuristic"
)

// headerWindow is how much of the document start a header pattern may match.
const headerWindow = 512

// trialCacheLimit bounds the trial-all memo. The trial-all path is
// O(profiles × fields), so results are memoized per text within a batch.
const trialCacheLimit = 4096

// Router routes documents to profiles over a fixed catalog snapshot.
type Router struct {
	snap      *catalog.Snapshot
	extractor *heuristic.Extractor

	mu         sync.Mutex
	trialCache map[[32]byte]string
}

// New creates a router over the given snapshot.
func New(snap *catalog.Snapshot, extractor *heuristic.Extractor) *Router {
	return &Router{
		snap:       snap,
		extractor:  extractor,
		trialCache: make(map[[32]byte]string),
	}
}

// Route returns the best profile name for text. The vendor hint, when
// present, participates in signature matching before the text itself.
// Route never fails; the worst case is the reserved default profile.
func (r *Router) Route(text, vendorHint string) string {
	if name, ok := r.bySignature(text, vendorHint); ok {
		return name
	}
	if name, ok := r.byHeader(text); ok {
		return name
	}
	return r.byTrialAll(text)
}

// bySignature returns the first profile (in priority order) with a
// manufacturer signature found in the vendor hint or the text,
// case-insensitively.
func (r *Router) bySignature(text, vendorHint string) (string, bool) {
	lowerHint := strings.ToLower(vendorHint)
	lowerText := strings.ToLower(text)

	for _, p := range r.snap.Profiles() {
		for _, sig := range p.Signatures {
			if sig == "" {
				continue
			}
			if (lowerHint != "" && strings.Contains(lowerHint, sig)) || strings.Contains(lowerText, sig) {
				zap.L().Debug("router: signature match",
					zap.String("profile", p.Name),
					zap.String("signature", sig),
				)
				return p.Name, true
			}
		}
	}
	return "", false
}

// byHeader returns the first profile whose header pattern matches near the
// start of the text.
func (r *Router) byHeader(text string) (string, bool) {
	head := text
	if len(head) > headerWindow {
		head = head[:headerWindow]
	}
	for _, p := range r.snap.Profiles() {
		re := p.HeaderRegexp()
		if re != nil && re.MatchString(head) {
			zap.L().Debug("router: header match", zap.String("profile", p.Name))
			return p.Name, true
		}
	}
	return "", false
}

// byTrialAll runs the heuristic extractor with every profile and returns the
// one with the highest mean field confidence; ties break by priority
// (higher wins), then name. Falls back to the default profile when no
// profile matches any field. Results are memoized per text.
func (r *Router) byTrialAll(text string) string {
	key := sha256.Sum256([]byte(text))

	r.mu.Lock()
	if name, ok := r.trialCache[key]; ok {
		r.mu.Unlock()
		return name
	}
	r.mu.Unlock()

	bestName := catalog.DefaultProfileName
	bestMean := 0.0
	matched := false

	// Profiles() is already ordered by priority desc then name asc, so a
	// strict improvement check yields the documented tie-breaking.
	for _, p := range r.snap.Profiles() {
		candidates := r.extractor.Extract(text, p)
		if len(candidates) == 0 {
			continue
		}
		mean := heuristic.MeanConfidence(candidates)
		if !matched || mean > bestMean {
			matched = true
			bestMean = mean
			bestName = p.Name
		}
	}

	r.mu.Lock()
	if len(r.trialCache) < trialCacheLimit {
		r.trialCache[key] = bestName
	}
	r.mu.Unlock()

	zap.L().Debug("router: trial-all result",
		zap.String("profile", bestName),
		zap.Float64("mean_confidence", bestMean),
		zap.Bool("matched", matched),
	)
	return bestName
}

// ResetTrialCache clears the trial-all memo, typically between batches.
func (r *Router) ResetTrialCache() {
	r.mu.Lock()
	r.trialCache = make(map[[32]byte]string)
	r.mu.Unlock()
}
