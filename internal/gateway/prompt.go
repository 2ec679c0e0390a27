package gateway

import (
	"fmt"
	"strings"

	"github.com/chemtrace/sds-cli/internal/model"
)

// Prompt template identifiers. These participate in the cache key, so a
// template change never serves stale responses.
const (
	templateExtractV1 = "extract-v1"
	templateFewShotV1 = "extract-fewshot-v1"
)

const systemPrompt = `You are a precise extraction engine for chemical Safety Data Sheets (SDS).
Given SDS text and a target field, respond with exactly one JSON object:
{"value": <extracted value or null>, "confidence": <float 0.0-1.0>}
Use null when the field is absent. Never invent values. No prose, no markdown fences.`

// fewShotExample is a curated SDS excerpt with its known-correct extraction.
type fewShotExample struct {
	Excerpt string
	Value   string
}

var fewShotExamples = map[string][]fewShotExample{
	model.FieldProductName: {
		{Excerpt: "SECTION 1: Identification\nProduct identifier: Toluene, ACS reagent\nProduct Number: 179418", Value: "Toluene, ACS reagent"},
		{Excerpt: "1.1 Product identifier\nTrade name: EthaPure 96\nSynonyms: Ethanol solution 96%", Value: "EthaPure 96"},
		{Excerpt: "Identification of the substance\nName of substance: Sodium hydroxide\nArticle no: 6771", Value: "Sodium hydroxide"},
	},
	model.FieldCASNumber: {
		{Excerpt: "CAS-No. : 108-88-3\nEC-No. : 203-625-9", Value: "108-88-3"},
		{Excerpt: "Components: Ethanol (CAS 64-17-5) 96%, Water (CAS 7732-18-5) 4%", Value: "64-17-5"},
		{Excerpt: "Chemical characterization: Sodium hydroxide\nCAS number: 1310-73-2", Value: "1310-73-2"},
	},
	model.FieldMolecularFormula: {
		{Excerpt: "Formula : C7H8\nMolecular weight : 92.14 g/mol", Value: "C7H8"},
		{Excerpt: "Molecular formula: NaOH (40.00 g/mol)", Value: "NaOH"},
	},
	model.FieldHStatements: {
		{Excerpt: "Hazard statements: H225 Highly flammable liquid and vapour. H361d Suspected of damaging the unborn child.", Value: "H225, H361d"},
		{Excerpt: "GHS label elements\nH314 - Causes severe skin burns and eye damage", Value: "H314"},
	},
	model.FieldPStatements: {
		{Excerpt: "Precautionary statements: P210, P240, P305+P351+P338", Value: "P210, P240, P305+P351+P338"},
	},
	model.FieldSignalWord: {
		{Excerpt: "Signal word: Danger\nHazard pictograms: GHS02, GHS08", Value: "Danger"},
		{Excerpt: "2.2 Label elements\nSignal word Warning", Value: "Warning"},
	},
	model.FieldFlashPoint: {
		{Excerpt: "Flash point : 4.0 °C - closed cup", Value: "4.0 °C"},
		{Excerpt: "Flash point: 13 °C (55.4 °F)", Value: "13 °C"},
	},
	model.FieldUNNumber: {
		{Excerpt: "14.1 UN number\nADR/RID: UN 1294  IMDG: UN 1294", Value: "UN 1294"},
	},
	model.FieldManufacturer: {
		{Excerpt: "1.3 Details of the supplier\nCompany: Merck KGaA, 64271 Darmstadt, Germany", Value: "Merck KGaA"},
	},
}

// buildPrompt renders the user prompt for a field. The returned template id
// distinguishes zero-shot from few-shot renditions for cache keying.
func buildPrompt(spec *model.FieldSpec, text string, exampleCount int) (templateID, prompt string) {
	var b strings.Builder

	fmt.Fprintf(&b, "Target field: %s\n", spec.Key)
	if spec.PromptGuidance != "" {
		fmt.Fprintf(&b, "Guidance: %s\n", spec.PromptGuidance)
	}
	fmt.Fprintf(&b, "Expected type: %s\n", spec.DataType)

	templateID = templateExtractV1
	if exampleCount > 0 {
		if examples := fewShotExamples[spec.Key]; len(examples) > 0 {
			if exampleCount > len(examples) {
				exampleCount = len(examples)
			}
			templateID = templateFewShotV1
			b.WriteString("\nExamples:\n")
			for _, ex := range examples[:exampleCount] {
				fmt.Fprintf(&b, "---\nText:\n%s\nAnswer: {\"value\": %q, \"confidence\": 0.95}\n", ex.Excerpt, ex.Value)
			}
		}
	}

	fmt.Fprintf(&b, "\nDocument text:\n%s\n", text)
	return templateID, b.String()
}
