package model

import "strings"

// Candidate sources, in rough order of trust.
const (
	SourceHeuristic    = "heuristic"
	SourceLLM          = "llm"
	SourceLLMFewShot   = "llm-few-shot"
	SourceLLMConsensus = "llm-consensus"
	SourceBestEffort   = "best-effort"
	SourceAgreed       = "agreed"
	SourceEnriched     = "enriched"
	SourceFallback     = "fallback"
)

// CachedSuffix is appended to a candidate's source when it was served from
// the gateway response cache.
const CachedSuffix = "+cached"

// Validation statuses attached by the external validator and the orchestrator.
const (
	StatusValidated   = "validated"
	StatusWarning     = "warning"
	StatusUnvalidated = "unvalidated"
	StatusUnresolved  = "unresolved"
)

// FieldCandidate is a single extracted value for a field, annotated with the
// source that produced it and a confidence in [0,1]. Candidates are treated
// as immutable once produced: methods that change one return a copy.
type FieldCandidate struct {
	FieldName        string   `json:"field_name"`
	Value            any      `json:"value"`
	Confidence       float64  `json:"confidence"`
	Source           string   `json:"source"`
	Issues           []string `json:"issues,omitempty"`
	ValidationStatus string   `json:"validation_status,omitempty"`
}

// WithIssue returns a copy of the candidate with an issue appended.
func (c FieldCandidate) WithIssue(issue string) FieldCandidate {
	out := c
	out.Issues = append(append([]string(nil), c.Issues...), issue)
	return out
}

// WithStatus returns a copy of the candidate with the validation status set.
func (c FieldCandidate) WithStatus(status string) FieldCandidate {
	out := c
	out.ValidationStatus = status
	return out
}

// WithConfidence returns a copy with the confidence clamped to [0,1].
func (c FieldCandidate) WithConfidence(conf float64) FieldCandidate {
	out := c
	out.Confidence = ClampConfidence(conf)
	return out
}

// AnnotateCached returns a copy whose source carries the cached suffix.
// Idempotent: an already-annotated source is left alone.
func (c FieldCandidate) AnnotateCached() FieldCandidate {
	out := c
	if !strings.HasSuffix(out.Source, CachedSuffix) {
		out.Source += CachedSuffix
	}
	return out
}

// ClampConfidence bounds a confidence score to [0,1].
func ClampConfidence(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
