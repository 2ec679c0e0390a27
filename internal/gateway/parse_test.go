package gateway

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chemtrace/sds-cli/internal/model"
)

func TestParseAnswer(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		wantVal  any
		wantConf float64
		wantErr  bool
	}{
		{
			name:     "plain object",
			raw:      `{"value": "67-64-1", "confidence": 0.9}`,
			wantVal:  "67-64-1",
			wantConf: 0.9,
		},
		{
			name:     "fenced markdown",
			raw:      "```json\n{\"value\": \"Acetone\", \"confidence\": 0.85}\n```",
			wantVal:  "Acetone",
			wantConf: 0.85,
		},
		{
			name:     "surrounding prose",
			raw:      `Here is the extraction: {"value": "H225, H319", "confidence": 0.8} as requested.`,
			wantVal:  "H225, H319",
			wantConf: 0.8,
		},
		{
			name:     "missing confidence defaults",
			raw:      `{"value": "C3H6O"}`,
			wantVal:  "C3H6O",
			wantConf: 0.5,
		},
		{
			name:     "null value",
			raw:      `{"value": null, "confidence": 0.9}`,
			wantVal:  nil,
			wantConf: 0.9,
		},
		{
			name:     "blank string treated as absent",
			raw:      `{"value": "   ", "confidence": 0.9}`,
			wantVal:  nil,
			wantConf: 0.9,
		},
		{
			name:     "value is trimmed",
			raw:      `{"value": "  58.08 g/mol ", "confidence": 0.7}`,
			wantVal:  "58.08 g/mol",
			wantConf: 0.7,
		},
		{
			name:     "numeric value",
			raw:      `{"value": 58.08, "confidence": 0.7}`,
			wantVal:  58.08,
			wantConf: 0.7,
		},
		{
			name:    "no object at all",
			raw:     "I am unable to extract that field.",
			wantErr: true,
		},
		{
			name:    "broken json",
			raw:     `{"value": "x", "confidence":`,
			wantErr: true,
		},
		{
			name:    "empty response",
			raw:     "",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ans, err := parseAnswer(tt.raw)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantVal, ans.Value)
			assert.InDelta(t, tt.wantConf, ans.Confidence, 0.001)
		})
	}
}

func TestBuildPrompt_TemplateIDs(t *testing.T) {
	registry := model.DefaultFieldRegistry()
	spec := registry.ByKey(model.FieldCASNumber)
	require.NotNil(t, spec)

	id, prompt := buildPrompt(spec, "some text", 0)
	assert.Equal(t, templateExtractV1, id)
	assert.NotContains(t, prompt, "Examples:")

	id, prompt = buildPrompt(spec, "some text", 2)
	assert.Equal(t, templateFewShotV1, id)
	assert.Contains(t, prompt, "Examples:")
	assert.Contains(t, prompt, "108-88-3")
}

func TestBuildPrompt_FewShotFallsBackWithoutExamples(t *testing.T) {
	registry := model.DefaultFieldRegistry()
	spec := registry.ByKey(model.FieldExposureLimitTWA)
	require.NotNil(t, spec)

	// No curated examples exist for this field, so the zero-shot template
	// is used even when few-shot was requested.
	id, _ := buildPrompt(spec, "some text", 2)
	assert.Equal(t, templateExtractV1, id)
}

func TestBuildPrompt_ExampleCountCapped(t *testing.T) {
	registry := model.DefaultFieldRegistry()
	spec := registry.ByKey(model.FieldUNNumber)
	require.NotNil(t, spec)

	id, prompt := buildPrompt(spec, "text", 10)
	assert.Equal(t, templateFewShotV1, id)
	assert.Contains(t, prompt, "UN 1294")
}
