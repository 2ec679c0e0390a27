package model

import "time"

// Document outcomes for a batch run.
const (
	OutcomeSuccess = "success"
	OutcomePartial = "partial"
	OutcomeFailed  = "failed"
)

// Document is the unit of input: plain UTF-8 text plus an optional vendor
// hint from the upstream PDF/OCR collaborator.
type Document struct {
	ID         string `json:"id"`
	Text       string `json:"text"`
	VendorHint string `json:"vendor_hint,omitempty"`
}

// ExtractionRecord is the final per-document result: one confidence-annotated
// candidate per field, the profile that was used, and a computed outcome.
// The orchestrator owns the record until it is handed to the store.
type ExtractionRecord struct {
	DocumentID  string                    `json:"document_id"`
	ProfileUsed string                    `json:"profile_used"`
	Fields      map[string]FieldCandidate `json:"fields"`
	Outcome     string                    `json:"outcome"`
	CreatedAt   time.Time                 `json:"created_at"`
}

// ComputeOutcome derives the document outcome from its field candidates:
// failed when every field is unresolved, partial when some are, success when
// none are. An empty record is failed.
func (r *ExtractionRecord) ComputeOutcome() string {
	if len(r.Fields) == 0 {
		return OutcomeFailed
	}
	unresolved := 0
	for _, fc := range r.Fields {
		if fc.ValidationStatus == StatusUnresolved {
			unresolved++
		}
	}
	switch {
	case unresolved == len(r.Fields):
		return OutcomeFailed
	case unresolved > 0:
		return OutcomePartial
	default:
		return OutcomeSuccess
	}
}

// Clone returns a deep copy of the record. The external validator never
// mutates its input; it operates on a clone and returns it.
func (r *ExtractionRecord) Clone() *ExtractionRecord {
	out := &ExtractionRecord{
		DocumentID:  r.DocumentID,
		ProfileUsed: r.ProfileUsed,
		Outcome:     r.Outcome,
		CreatedAt:   r.CreatedAt,
		Fields:      make(map[string]FieldCandidate, len(r.Fields)),
	}
	for k, fc := range r.Fields {
		fc.Issues = append([]string(nil), fc.Issues...)
		out.Fields[k] = fc
	}
	return out
}
