package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeOutcome(t *testing.T) {
	resolved := FieldCandidate{FieldName: FieldProductName, Value: "Acetone", Confidence: 0.9}
	unresolved := FieldCandidate{FieldName: FieldUNNumber, ValidationStatus: StatusUnresolved}

	tests := []struct {
		name   string
		fields map[string]FieldCandidate
		want   string
	}{
		{"empty record", nil, OutcomeFailed},
		{"all unresolved", map[string]FieldCandidate{FieldUNNumber: unresolved}, OutcomeFailed},
		{"mixed", map[string]FieldCandidate{
			FieldProductName: resolved,
			FieldUNNumber:    unresolved,
		}, OutcomePartial},
		{"all resolved", map[string]FieldCandidate{FieldProductName: resolved}, OutcomeSuccess},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &ExtractionRecord{Fields: tt.fields}
			assert.Equal(t, tt.want, rec.ComputeOutcome())
		})
	}
}

func TestCloneIsDeep(t *testing.T) {
	rec := &ExtractionRecord{
		DocumentID:  "doc-1",
		ProfileUsed: "default",
		Outcome:     OutcomePartial,
		CreatedAt:   time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
		Fields: map[string]FieldCandidate{
			FieldCASNumber: {FieldName: FieldCASNumber, Value: "67-64-1", Issues: []string{"original"}},
		},
	}

	clone := rec.Clone()
	require.Equal(t, rec, clone)

	c := clone.Fields[FieldCASNumber]
	c.Issues[0] = "changed"
	clone.Fields[FieldCASNumber] = c.WithStatus(StatusWarning)
	clone.Fields[FieldSignalWord] = FieldCandidate{FieldName: FieldSignalWord}

	assert.Equal(t, []string{"original"}, rec.Fields[FieldCASNumber].Issues)
	assert.Empty(t, rec.Fields[FieldCASNumber].ValidationStatus)
	assert.Len(t, rec.Fields, 1)
}
