package model

import "regexp"

// Canonical field keys extracted from SDS text.
const (
	FieldProductName      = "product_name"
	FieldCASNumber        = "cas_number"
	FieldECNumber         = "ec_number"
	FieldMolecularFormula = "molecular_formula"
	FieldMolecularWeight  = "molecular_weight"
	FieldHStatements      = "h_statements"
	FieldPStatements      = "p_statements"
	FieldSignalWord       = "signal_word"
	FieldFlashPoint       = "flash_point"
	FieldBoilingPoint     = "boiling_point"
	FieldExposureLimitTWA = "exposure_limit_twa"
	FieldUNNumber         = "un_number"
	FieldManufacturer     = "manufacturer"
)

// FieldSpec describes a canonical field: its data type, whether it is a
// set-valued safety-statement field (unioned during validation, never
// replaced), and guidance text injected into extraction prompts.
type FieldSpec struct {
	Key             string         `json:"key"`
	DataType        string         `json:"data_type"` // string, number, codes
	StatementSet    bool           `json:"statement_set"`
	PromptGuidance  string         `json:"prompt_guidance"`
	Validation      string         `json:"validation,omitempty"`
	ValidationRegex *regexp.Regexp `json:"-"` // pre-compiled at registry build
}

// FieldRegistry is an indexed collection of field specs.
type FieldRegistry struct {
	Specs []FieldSpec
	byKey map[string]*FieldSpec
}

// NewFieldRegistry builds an indexed registry and pre-compiles validation
// patterns. Specs with uncompilable patterns keep a nil regex; the catalog
// loader rejects those before any document is processed.
func NewFieldRegistry(specs []FieldSpec) *FieldRegistry {
	r := &FieldRegistry{
		Specs: specs,
		byKey: make(map[string]*FieldSpec, len(specs)),
	}
	for i := range r.Specs {
		s := &r.Specs[i]
		if s.Validation != "" {
			if re, err := regexp.Compile(s.Validation); err == nil {
				s.ValidationRegex = re
			}
		}
		r.byKey[s.Key] = s
	}
	return r
}

// ByKey returns the spec for a field key, or nil if unknown.
func (r *FieldRegistry) ByKey(key string) *FieldSpec {
	return r.byKey[key]
}

// Keys returns all canonical field keys in declaration order.
func (r *FieldRegistry) Keys() []string {
	keys := make([]string, len(r.Specs))
	for i, s := range r.Specs {
		keys[i] = s.Key
	}
	return keys
}

// DefaultFieldRegistry returns the built-in SDS field registry.
func DefaultFieldRegistry() *FieldRegistry {
	return NewFieldRegistry([]FieldSpec{
		{
			Key:            FieldProductName,
			DataType:       "string",
			PromptGuidance: "The commercial product or trade name from Section 1 of the SDS.",
		},
		{
			Key:            FieldCASNumber,
			DataType:       "string",
			Validation:     `^\d{2,7}-\d{2}-\d$`,
			PromptGuidance: "The CAS registry number, formatted like 67-64-1.",
		},
		{
			Key:            FieldECNumber,
			DataType:       "string",
			Validation:     `^\d{3}-\d{3}-\d$`,
			PromptGuidance: "The EC (EINECS) number, formatted like 200-662-2.",
		},
		{
			Key:            FieldMolecularFormula,
			DataType:       "string",
			Validation:     `^[A-Za-z0-9().·\-]+$`,
			PromptGuidance: "The molecular formula in Hill notation, e.g. C3H6O.",
		},
		{
			Key:            FieldMolecularWeight,
			DataType:       "number",
			PromptGuidance: "The molecular weight in g/mol as a plain number.",
		},
		{
			Key:            FieldHStatements,
			DataType:       "codes",
			StatementSet:   true,
			PromptGuidance: "All GHS hazard statement codes (H-codes like H225), comma separated.",
		},
		{
			Key:            FieldPStatements,
			DataType:       "codes",
			StatementSet:   true,
			PromptGuidance: "All GHS precautionary statement codes (P-codes like P210), comma separated.",
		},
		{
			Key:            FieldSignalWord,
			DataType:       "string",
			PromptGuidance: "The GHS signal word: Danger or Warning.",
		},
		{
			Key:            FieldFlashPoint,
			DataType:       "string",
			PromptGuidance: "The flash point including unit, e.g. -17 °C (closed cup).",
		},
		{
			Key:            FieldBoilingPoint,
			DataType:       "string",
			PromptGuidance: "The boiling point or boiling range including unit.",
		},
		{
			Key:            FieldExposureLimitTWA,
			DataType:       "string",
			PromptGuidance: "The occupational exposure limit as 8h TWA, including unit and issuing body if stated.",
		},
		{
			Key:            FieldUNNumber,
			DataType:       "string",
			Validation:     `^(UN)?\d{4}$`,
			PromptGuidance: "The UN transport number from Section 14, e.g. UN1090.",
		},
		{
			Key:            FieldManufacturer,
			DataType:       "string",
			PromptGuidance: "The manufacturer or supplier name from Section 1.",
		},
	})
}
