package catalog

import "github.com/chemtrace/sds-cli/internal/model"

// builtinDefaultProfile returns the reserved default profile with generic
// patterns that match the labeled-field layout common to most SDS formats.
// Vendor profiles in the profile directory override or extend these.
func builtinDefaultProfile() *Profile {
	return &Profile{
		Name:     DefaultProfileName,
		Priority: 0,
		Fields: map[string]PatternRule{
			model.FieldProductName: {
				Pattern: `(?:product\s+name|trade\s+name|product)\s*[:\-]\s*([^\r\n:]{2,80})`,
				Flags:   "i",
				Weight:  1.0,
			},
			model.FieldCASNumber: {
				Pattern: `CAS[\s\-]*(?:no\.?|number|#)?\s*[:\-]?\s*(\d{2,7}-\d{2}-\d)`,
				Flags:   "i",
				Weight:  1.2,
			},
			model.FieldECNumber: {
				Pattern: `EC[\s\-]*(?:no\.?|number)?\s*[:\-]?\s*(\d{3}-\d{3}-\d)`,
				Flags:   "i",
				Weight:  1.1,
			},
			model.FieldMolecularFormula: {
				Pattern: `(?:molecular|chemical)\s+formula\s*[:\-]?\s*([A-Za-z0-9().·]{2,40})`,
				Flags:   "i",
				Weight:  1.0,
			},
			model.FieldMolecularWeight: {
				Pattern: `molecular\s+weight\s*[:\-]?\s*([0-9]+(?:\.[0-9]+)?)\s*(?:g/mol)?`,
				Flags:   "i",
				Weight:  1.0,
			},
			model.FieldHStatements: {
				Pattern: `\b(H[23]\d{2}(?:\s*[,;+]\s*H[23]\d{2})*)`,
				Weight:  1.0,
			},
			model.FieldPStatements: {
				Pattern: `\b(P\d{3}(?:\s*[,;+]\s*P\d{3})*)`,
				Weight:  1.0,
			},
			model.FieldSignalWord: {
				Pattern: `signal\s+word\s*[:\-]?\s*(danger|warning)`,
				Flags:   "i",
				Weight:  1.2,
			},
			model.FieldFlashPoint: {
				Pattern: `flash\s*point\s*[:\-]?\s*([^\r\n]{1,60})`,
				Flags:   "i",
				Weight:  0.9,
			},
			model.FieldBoilingPoint: {
				Pattern: `boiling\s+(?:point|range)(?:/boiling\s+range)?\s*[:\-]?\s*([^\r\n]{1,60})`,
				Flags:   "i",
				Weight:  0.9,
			},
			model.FieldExposureLimitTWA: {
				Pattern: `TWA\s*[:\-]?\s*([0-9][^\r\n]{0,50})`,
				Flags:   "i",
				Weight:  0.8,
			},
			model.FieldUNNumber: {
				Pattern: `UN[\s\-]?(?:no\.?|number)?\s*[:\-]?\s*(\d{4})\b`,
				Flags:   "i",
				Weight:  1.1,
			},
			model.FieldManufacturer: {
				Pattern: `(?:manufacturer|supplier|company)(?:\s+name)?\s*[:\-]\s*([^\r\n:]{2,80})`,
				Flags:   "i",
				Weight:  0.9,
			},
		},
	}
}
