package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeValue(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want string
	}{
		{"nil", nil, ""},
		{"lowercases", "Acetone", "acetone"},
		{"trims and collapses whitespace", "  2-Propanone \t (acetone) ", "2-propanone (acetone)"},
		{"compatibility forms", "C₃H₆O", "c3h6o"}, // subscript digits
		{"numbers", 58.08, "58.08"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeValue(tt.in))
		})
	}
}

func TestNormalizeValueEquatesVariants(t *testing.T) {
	assert.Equal(t, NormalizeValue("Acetone "), NormalizeValue("  acetone"))
	assert.Equal(t, NormalizeValue("H314,  H290"), NormalizeValue("h314, h290"))
}

func TestNormalizeCAS(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{"67-64-1", "67-64-1"},
		{"CAS No: 67-64-1", "67-64-1"},
		{" 7664-93-9 ", "7664-93-9"},
		{"CAS 108-88-3", "108-88-3"},
		{nil, ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeCAS(tt.in), "input %v", tt.in)
	}
}

func TestNormalizeCodeSet(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want []string
	}{
		{"nil", nil, nil},
		{"comma string", "H225, H319, H336", []string{"H225", "H319", "H336"}},
		{"dedup keeps first order", "H225; h225, H319", []string{"H225", "H319"}},
		{"slice input", []string{" h225 ", "H319."}, []string{"H225", "H319"}},
		{"any slice", []any{"P210", "p233"}, []string{"P210", "P233"}},
		{"combined codes survive", "P305+P351+P338", []string{"P305+P351+P338"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeCodeSet(tt.in))
		})
	}
}
