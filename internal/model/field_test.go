package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultFieldRegistry(t *testing.T) {
	reg := DefaultFieldRegistry()

	keys := reg.Keys()
	assert.Len(t, keys, 13)
	assert.Equal(t, FieldProductName, keys[0])

	spec := reg.ByKey(FieldCASNumber)
	require.NotNil(t, spec)
	assert.Equal(t, FieldCASNumber, spec.Key)

	assert.Nil(t, reg.ByKey("not_a_field"))
}

func TestStatementFieldsAreSets(t *testing.T) {
	reg := DefaultFieldRegistry()
	assert.True(t, reg.ByKey(FieldHStatements).StatementSet)
	assert.True(t, reg.ByKey(FieldPStatements).StatementSet)
	assert.False(t, reg.ByKey(FieldProductName).StatementSet)
}
