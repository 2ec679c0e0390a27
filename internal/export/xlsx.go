// Package export renders extraction records as spreadsheet reports.
package export

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/chemtrace/sds-cli/internal/model"
)

const (
	sheetExtractions = "Extractions"
	sheetSummary     = "Summary"
)

// WriteXLSX writes one row per record to an Extractions sheet, with
// value/confidence/status columns per canonical field, plus a Summary sheet
// of outcome and per-field resolution counts.
func WriteXLSX(records []model.ExtractionRecord, fields *model.FieldRegistry, path string) error {
	f := xlsx.NewFile()

	if err := writeExtractions(f, records, fields); err != nil {
		return err
	}
	if err := writeSummary(f, records, fields); err != nil {
		return err
	}
	return eris.Wrap(f.Save(path), "export: save xlsx")
}

func writeExtractions(f *xlsx.File, records []model.ExtractionRecord, fields *model.FieldRegistry) error {
	sheet, err := f.AddSheet(sheetExtractions)
	if err != nil {
		return eris.Wrap(err, "export: add extractions sheet")
	}

	keys := fields.Keys()
	header := sheet.AddRow()
	for _, h := range []string{"Document ID", "Profile", "Outcome", "Created At"} {
		header.AddCell().SetString(h)
	}
	for _, key := range keys {
		header.AddCell().SetString(key)
		header.AddCell().SetString(key + " (confidence)")
		header.AddCell().SetString(key + " (status)")
	}

	for _, rec := range records {
		row := sheet.AddRow()
		row.AddCell().SetString(rec.DocumentID)
		row.AddCell().SetString(rec.ProfileUsed)
		row.AddCell().SetString(rec.Outcome)
		row.AddCell().SetString(rec.CreatedAt.UTC().Format("2006-01-02 15:04:05"))

		for _, key := range keys {
			c, ok := rec.Fields[key]
			if !ok || c.Value == nil {
				row.AddCell()
				row.AddCell()
				row.AddCell().SetString(c.ValidationStatus)
				continue
			}
			row.AddCell().SetString(renderValue(c.Value))
			row.AddCell().SetString(fmt.Sprintf("%.2f", c.Confidence))
			row.AddCell().SetString(c.ValidationStatus)
		}
	}
	return nil
}

func writeSummary(f *xlsx.File, records []model.ExtractionRecord, fields *model.FieldRegistry) error {
	sheet, err := f.AddSheet(sheetSummary)
	if err != nil {
		return eris.Wrap(err, "export: add summary sheet")
	}

	outcomes := make(map[string]int)
	resolved := make(map[string]int)
	for _, rec := range records {
		outcomes[rec.Outcome]++
		for key, c := range rec.Fields {
			if c.Value != nil {
				resolved[key]++
			}
		}
	}

	row := sheet.AddRow()
	row.AddCell().SetString("Documents")
	row.AddCell().SetInt(len(records))

	for _, outcome := range []string{model.OutcomeSuccess, model.OutcomePartial, model.OutcomeFailed} {
		row = sheet.AddRow()
		row.AddCell().SetString("Outcome: " + outcome)
		row.AddCell().SetInt(outcomes[outcome])
	}

	sheet.AddRow()
	hdr := sheet.AddRow()
	hdr.AddCell().SetString("Field")
	hdr.AddCell().SetString("Resolved")

	for _, key := range fields.Keys() {
		row = sheet.AddRow()
		row.AddCell().SetString(key)
		row.AddCell().SetInt(resolved[key])
	}
	return nil
}

// renderValue flattens list values to a comma-separated string.
func renderValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case []string:
		return strings.Join(val, ", ")
	case []any:
		parts := make([]string, len(val))
		for i, p := range val {
			parts[i] = fmt.Sprint(p)
		}
		return strings.Join(parts, ", ")
	default:
		return fmt.Sprint(v)
	}
}
