package validate

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/chemtrace/sds-cli/internal/config"
	"github.com/chemtrace/sds-cli/internal/model"
	"github.com/chemtrace/sds-cli/pkg/pubchem"
)

// identityFields are the fields usable as lookup keys, in lookup order.
var identityFields = []struct {
	fieldKey string
	idType   string
}{
	{model.FieldCASNumber, model.IdentifierCAS},
	{model.FieldProductName, model.IdentifierName},
	{model.FieldMolecularFormula, model.IdentifierFormula},
}

// Validator cross-checks extraction records against the authoritative
// chemical database and enriches missing fields.
type Validator struct {
	client        pubchem.Client
	authorityConf float64
	logger        *zap.Logger
}

// New creates a validator. The authority confidence is attached to every
// field the validator fills in.
func New(client pubchem.Client, cfg config.PubChemConfig) *Validator {
	conf := cfg.AuthorityConf
	if conf <= 0 {
		conf = 0.9
	}
	return &Validator{
		client:        client,
		authorityConf: conf,
		logger:        zap.L().Named("validate"),
	}
}

// ValidateAndEnrich cross-checks a record against the external database and
// returns an updated copy; the input record is never modified. Identifiers
// are tried CAS, then name, then formula; the first successful lookup wins.
// A failed or not-found lookup marks the identity fields unvalidated and
// leaves everything else untouched.
func (v *Validator) ValidateAndEnrich(ctx context.Context, rec *model.ExtractionRecord) *model.ExtractionRecord {
	out := rec.Clone()

	props, err := v.lookup(ctx, out)
	if err != nil {
		if !errors.Is(err, errNoIdentity) {
			v.markUnvalidated(out)
		}
		return out
	}

	v.checkCAS(out, props)
	v.checkFormula(out, props)
	v.checkName(out, props)
	v.fillScalars(out, props)
	v.unionStatements(out, model.FieldHStatements, props.HStatements, props)
	v.unionStatements(out, model.FieldPStatements, props.PStatements, props)
	return out
}

var errNoIdentity = errors.New("validate: no identity field present")

func (v *Validator) lookup(ctx context.Context, rec *model.ExtractionRecord) (*model.ChemicalProperties, error) {
	tried := false
	for _, id := range identityFields {
		value, ok := fieldValue(rec, id.fieldKey)
		if !ok {
			continue
		}
		tried = true

		identifier := fmt.Sprintf("%v", value)
		if id.idType == model.IdentifierCAS {
			identifier = model.NormalizeCAS(value)
			if identifier == "" {
				continue
			}
		}

		props, err := v.client.Lookup(ctx, id.idType, identifier)
		if err == nil {
			v.logger.Debug("authoritative lookup resolved",
				zap.String("document", rec.DocumentID),
				zap.String("identifier_type", id.idType),
				zap.Int64("cid", props.CID))
			return props, nil
		}
		if !errors.Is(err, pubchem.ErrNotFound) {
			v.logger.Warn("authoritative lookup failed",
				zap.String("document", rec.DocumentID),
				zap.String("identifier_type", id.idType),
				zap.Error(err))
			return nil, err
		}
	}
	if !tried {
		return nil, errNoIdentity
	}
	return nil, pubchem.ErrNotFound
}

// markUnvalidated tags the identity fields that carry values but could not
// be checked. Their values and confidences stay as extracted.
func (v *Validator) markUnvalidated(rec *model.ExtractionRecord) {
	for _, id := range identityFields {
		if fc, ok := rec.Fields[id.fieldKey]; ok && fc.Value != nil && fc.ValidationStatus == "" {
			rec.Fields[id.fieldKey] = fc.WithStatus(model.StatusUnvalidated)
		}
	}
}

func (v *Validator) checkCAS(rec *model.ExtractionRecord, props *model.ChemicalProperties) {
	fc, ok := rec.Fields[model.FieldCASNumber]
	if !ok || fc.Value == nil {
		if props.CAS != "" {
			rec.Fields[model.FieldCASNumber] = v.enriched(model.FieldCASNumber, props.CAS)
		}
		return
	}
	if props.CAS == "" {
		rec.Fields[model.FieldCASNumber] = fc.WithStatus(model.StatusUnvalidated)
		return
	}
	if model.NormalizeCAS(fc.Value) == model.NormalizeCAS(props.CAS) {
		rec.Fields[model.FieldCASNumber] = fc.WithStatus(model.StatusValidated)
		return
	}
	rec.Fields[model.FieldCASNumber] = fc.
		WithStatus(model.StatusWarning).
		WithIssue(fmt.Sprintf("extracted CAS %v does not match authoritative CAS %s for %s",
			fc.Value, props.CAS, props.Name))
}

func (v *Validator) checkFormula(rec *model.ExtractionRecord, props *model.ChemicalProperties) {
	fc, ok := rec.Fields[model.FieldMolecularFormula]
	if !ok || fc.Value == nil {
		if props.MolecularFormula != "" {
			rec.Fields[model.FieldMolecularFormula] = v.enriched(model.FieldMolecularFormula, props.MolecularFormula)
		}
		return
	}
	if props.MolecularFormula == "" {
		rec.Fields[model.FieldMolecularFormula] = fc.WithStatus(model.StatusUnvalidated)
		return
	}
	if normalizeFormula(fc.Value) == normalizeFormula(props.MolecularFormula) {
		rec.Fields[model.FieldMolecularFormula] = fc.WithStatus(model.StatusValidated)
		return
	}
	rec.Fields[model.FieldMolecularFormula] = fc.
		WithStatus(model.StatusWarning).
		WithIssue(fmt.Sprintf("extracted formula %v does not match authoritative formula %s",
			fc.Value, props.MolecularFormula))
}

// checkName validates the product name when it matches the authoritative
// title or a synonym. Trade names legitimately differ from database titles,
// so a non-matching name is left alone rather than flagged.
func (v *Validator) checkName(rec *model.ExtractionRecord, props *model.ChemicalProperties) {
	fc, ok := rec.Fields[model.FieldProductName]
	if !ok || fc.Value == nil {
		if props.Name != "" {
			rec.Fields[model.FieldProductName] = v.enriched(model.FieldProductName, props.Name)
		}
		return
	}
	extracted := model.NormalizeValue(fc.Value)
	if extracted == model.NormalizeValue(props.Name) {
		rec.Fields[model.FieldProductName] = fc.WithStatus(model.StatusValidated)
		return
	}
	for _, syn := range props.Synonyms {
		if extracted == model.NormalizeValue(syn) {
			rec.Fields[model.FieldProductName] = fc.WithStatus(model.StatusValidated)
			return
		}
	}
}

func (v *Validator) fillScalars(rec *model.ExtractionRecord, props *model.ChemicalProperties) {
	if _, ok := fieldValue(rec, model.FieldMolecularWeight); !ok && props.MolecularWeight > 0 {
		rec.Fields[model.FieldMolecularWeight] = v.enriched(model.FieldMolecularWeight, props.MolecularWeight)
	}
	if _, ok := fieldValue(rec, model.FieldSignalWord); !ok && props.SignalWord != "" {
		rec.Fields[model.FieldSignalWord] = v.enriched(model.FieldSignalWord, props.SignalWord)
	}
}

// unionStatements merges authoritative safety-statement codes into the
// extracted set. Extracted codes are never removed, so the result is always
// a superset of what was extracted.
func (v *Validator) unionStatements(rec *model.ExtractionRecord, fieldKey string, authoritative []string, props *model.ChemicalProperties) {
	if len(authoritative) == 0 {
		return
	}

	fc, ok := rec.Fields[fieldKey]
	if !ok || fc.Value == nil {
		rec.Fields[fieldKey] = v.enriched(fieldKey, strings.Join(authoritative, ", "))
		return
	}

	existing := model.NormalizeCodeSet(fc.Value)
	have := make(map[string]struct{}, len(existing))
	for _, code := range existing {
		have[code] = struct{}{}
	}

	var added []string
	union := append([]string(nil), existing...)
	for _, code := range model.NormalizeCodeSet(authoritative) {
		if _, ok := have[code]; ok {
			continue
		}
		union = append(union, code)
		added = append(added, code)
	}
	if len(added) == 0 {
		rec.Fields[fieldKey] = fc.WithStatus(model.StatusValidated)
		return
	}

	out := fc.WithIssue(fmt.Sprintf("codes %s added from authoritative record for %s",
		strings.Join(added, ", "), props.Name))
	out.Value = strings.Join(union, ", ")
	out.ValidationStatus = model.StatusValidated
	rec.Fields[fieldKey] = out
}

func (v *Validator) enriched(fieldKey string, value any) model.FieldCandidate {
	return model.FieldCandidate{
		FieldName:        fieldKey,
		Value:            value,
		Confidence:       v.authorityConf,
		Source:           model.SourceEnriched,
		ValidationStatus: model.StatusValidated,
	}
}

func fieldValue(rec *model.ExtractionRecord, key string) (any, bool) {
	fc, ok := rec.Fields[key]
	if !ok || fc.Value == nil {
		return nil, false
	}
	if s, isStr := fc.Value.(string); isStr && strings.TrimSpace(s) == "" {
		return nil, false
	}
	return fc.Value, true
}

func normalizeFormula(v any) string {
	s := model.NormalizeValue(v)
	return strings.ToUpper(strings.ReplaceAll(s, " ", ""))
}
