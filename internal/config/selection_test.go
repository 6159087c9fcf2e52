package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadSelection_EmptyPath(t *testing.T) {
	sel, err := LoadSelection("")
	require.NoError(t, err)
	assert.Nil(t, sel)
}

func TestSelectionIDs(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "selection.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
factory:
  - "1.1.0001"
  - "1.1.0002"
warehouse:
  - "2.1.0001"
retail:
  - "3.1.0001"
custom:
  - "9.9.0001"
`), 0o644))

	sel, err := LoadSelection(path)
	require.NoError(t, err)

	factory, err := sel.IDs("factory")
	require.NoError(t, err)
	assert.Equal(t, []string{"1.1.0001", "1.1.0002"}, factory)

	custom, err := sel.IDs(TargetCustom)
	require.NoError(t, err)
	assert.Equal(t, []string{"9.9.0001"}, custom)

	// "all" unions the category lists and deliberately leaves custom out.
	all, err := sel.IDs(TargetAll)
	require.NoError(t, err)
	assert.Equal(t, []string{"1.1.0001", "1.1.0002", "2.1.0001", "3.1.0001"}, all)
	assert.NotContains(t, all, "9.9.0001")

	_, err = sel.IDs("bogus")
	require.Error(t, err)
}
