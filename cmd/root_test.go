package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandsRegistered(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"extract", "batch", "profiles", "cache", "serve", "export"} {
		assert.True(t, names[want], "missing command %s", want)
	}
}

func TestDocumentID(t *testing.T) {
	assert.Equal(t, "acetone-sds", documentID("/data/sheets/acetone-sds.txt"))
	assert.Equal(t, "report", documentID("report.txt"))
	assert.Equal(t, "noext", documentID("noext"))
}

func TestLoadDocuments(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.txt"), []byte("second"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("first"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "skip.pdf"), []byte("nope"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0o755))

	docs, err := loadDocuments(dir)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "a", docs[0].ID)
	assert.Equal(t, "first", docs[0].Text)
	assert.Equal(t, "b", docs[1].ID)
}

func TestLoadDocumentsMissingDir(t *testing.T) {
	_, err := loadDocuments(filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
}
