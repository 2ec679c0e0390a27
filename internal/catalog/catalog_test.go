package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chemtrace/sds-cli/internal/model"
)

func newTestCatalog(t *testing.T) *Catalog {
	t.Helper()
	c, err := New(model.DefaultFieldRegistry())
	require.NoError(t, err)
	return c
}

func TestNew_InstallsBuiltinDefault(t *testing.T) {
	c := newTestCatalog(t)

	snap := c.Snapshot()
	require.NotNil(t, snap)
	assert.Equal(t, 1, snap.Version)

	def := snap.Default()
	require.NotNil(t, def)
	assert.Equal(t, DefaultProfileName, def.Name)

	// Every rule in the default profile compiled.
	for field, rule := range def.Fields {
		assert.NotNil(t, rule.Regexp(), "field %s", field)
	}
}

func TestUpdate_CopyOnWrite(t *testing.T) {
	c := newTestCatalog(t)
	old := c.Snapshot()

	err := c.Update([]*Profile{{
		Name:       "sigma-aldrich",
		Priority:   10,
		Signatures: []string{"Sigma-Aldrich"},
		Fields: map[string]PatternRule{
			model.FieldCASNumber: {Pattern: `CAS-No\.\s*(\d{2,7}-\d{2}-\d)`, Weight: 1.5},
		},
	}})
	require.NoError(t, err)

	snap := c.Snapshot()
	assert.Equal(t, old.Version+1, snap.Version)
	assert.NotNil(t, snap.Profile("sigma-aldrich"))
	assert.NotNil(t, snap.Default(), "default is injected when absent")

	// The old snapshot is untouched.
	assert.Nil(t, old.Profile("sigma-aldrich"))
	assert.Equal(t, []string{"sigma-aldrich"}, snap.Profile("sigma-aldrich").Signatures,
		"signatures lowercased at load")
}

func TestUpdate_RejectsBadRegex(t *testing.T) {
	c := newTestCatalog(t)
	before := c.Snapshot()

	err := c.Update([]*Profile{{
		Name: "broken",
		Fields: map[string]PatternRule{
			model.FieldCASNumber: {Pattern: `([unclosed`, Weight: 1.0},
		},
	}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not compile")
	assert.Same(t, before, c.Snapshot(), "failed update must not change the snapshot")
}

func TestUpdate_RejectsBadWeight(t *testing.T) {
	c := newTestCatalog(t)

	for _, weight := range []float64{0, -1, 2.1} {
		err := c.Update([]*Profile{{
			Name: "badweight",
			Fields: map[string]PatternRule{
				model.FieldCASNumber: {Pattern: `(\d+)`, Weight: weight},
			},
		}})
		assert.Error(t, err, "weight %v", weight)
	}
}

func TestUpdate_RejectsUnknownField(t *testing.T) {
	c := newTestCatalog(t)
	err := c.Update([]*Profile{{
		Name: "typo",
		Fields: map[string]PatternRule{
			"cas_numbre": {Pattern: `(\d+)`, Weight: 1.0},
		},
	}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown field")
}

func TestUpdate_RejectsDuplicateProfiles(t *testing.T) {
	c := newTestCatalog(t)
	p := func() *Profile {
		return &Profile{
			Name:   "dup",
			Fields: map[string]PatternRule{model.FieldCASNumber: {Pattern: `(\d+)`, Weight: 1.0}},
		}
	}
	err := c.Update([]*Profile{p(), p()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate")
}

func TestSnapshot_ProfileOrdering(t *testing.T) {
	c := newTestCatalog(t)
	mk := func(name string, prio int) *Profile {
		return &Profile{
			Name:     name,
			Priority: prio,
			Fields:   map[string]PatternRule{model.FieldCASNumber: {Pattern: `(\d+)`, Weight: 1.0}},
		}
	}
	require.NoError(t, c.Update([]*Profile{mk("beta", 5), mk("alpha", 5), mk("gamma", 9)}))

	names := c.Snapshot().Names()
	// Priority desc, then name asc; builtin default (priority 0) last.
	assert.Equal(t, []string{"gamma", "alpha", "beta", "default"}, names)
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	good := `
profiles:
  - name: fisher
    priority: 8
    signatures: ["Fisher Scientific"]
    header_pattern: '(?i)^\s*fisher'
    fields:
      cas_number:
        pattern: 'CAS\s+(\d{2,7}-\d{2}-\d)'
        flags: i
        weight: 1.3
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "fisher.yaml"), []byte(good), 0o644))

	c := newTestCatalog(t)
	require.NoError(t, c.LoadDir(dir))

	p := c.Snapshot().Profile("fisher")
	require.NotNil(t, p)
	assert.NotNil(t, p.HeaderRegexp())
	assert.Equal(t, 8, p.Priority)
}

func TestLoadDir_StrictDecoding(t *testing.T) {
	dir := t.TempDir()
	bad := `
profiles:
  - name: typo
    prioritee: 3
    fields:
      cas_number:
        pattern: '(\d+)'
        weight: 1.0
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.yaml"), []byte(bad), 0o644))

	c := newTestCatalog(t)
	err := c.LoadDir(dir)
	require.Error(t, err, "unknown YAML keys are rejected")
}
