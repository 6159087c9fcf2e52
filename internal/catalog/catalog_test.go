package catalog

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldbench/fieldbench/internal/config"
	"github.com/fieldbench/fieldbench/internal/models"
)

func taskJSON(id, category, question string) string {
	return fmt.Sprintf(`{
  "task_id": %q,
  "category": %q,
  "question": %q,
  "answer": "42",
  "scoring": {"method": "exact-match"}
}`, id, category, question)
}

func writeCatalog(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
	return dir
}

func TestLoad_DeclarationOrder(t *testing.T) {
	dir := writeCatalog(t, map[string]string{
		"b.json":      taskJSON("fb.2.1.0001", "warehouse", "q2"),
		"a.json":      taskJSON("fb.1.1.0001", "factory", "q1"),
		"c.json":      taskJSON("fb.3.1.0001", "retail", "q3"),
		"ignored.txt": "not a task",
	})

	c, err := Load(dir)
	require.NoError(t, err)

	tasks := c.Tasks()
	require.Len(t, tasks, 3)
	assert.Equal(t, "fb.1.1.0001", tasks[0].ID)
	assert.Equal(t, "fb.2.1.0001", tasks[1].ID)
	assert.Equal(t, "fb.3.1.0001", tasks[2].ID)
}

func TestLoad_SchemaViolation(t *testing.T) {
	dir := writeCatalog(t, map[string]string{
		"bad.json": `{"task_id": "fb.1.1.0001", "category": "kitchen", "question": "q", "answer": "a", "scoring": {"method": "exact-match"}}`,
	})

	_, err := Load(dir)
	var catErr *CatalogError
	require.ErrorAs(t, err, &catErr)
	assert.Contains(t, err.Error(), "bad.json")
}

func TestLoad_UnknownScoringMethod(t *testing.T) {
	dir := writeCatalog(t, map[string]string{
		"bad.json": `{"task_id": "fb.1.1.0001", "category": "factory", "question": "q", "answer": "a", "scoring": {"method": "vibes"}}`,
	})

	_, err := Load(dir)
	var catErr *CatalogError
	require.ErrorAs(t, err, &catErr)
}

func TestLoad_InputFiles(t *testing.T) {
	dir := writeCatalog(t, map[string]string{
		"a.json": `{
  "task_id": "fb.1.1.0001",
  "category": "factory",
  "question": "Watch the clip.",
  "answer": "3",
  "input_files": ["line.mp4", "floor.jpg", "manual.pdf"],
  "scoring": {"method": "exact-match"}
}`,
	})

	c, err := Load(dir)
	require.NoError(t, err)

	task := c.Tasks()[0]
	require.Len(t, task.Inputs, 3)
	assert.Equal(t, models.FileKindVideo, task.Inputs[0].Kind)
	assert.Equal(t, models.FileKindImage, task.Inputs[1].Kind)
	assert.Equal(t, models.FileKindDocument, task.Inputs[2].Kind)
}

func TestLoad_UndeclaredLinkedInput(t *testing.T) {
	dir := writeCatalog(t, map[string]string{
		"a.json": `{
  "task_id": "fb.1.1.0001",
  "category": "factory",
  "question": "Count the defects in [the clip](inputs/line.mp4).",
  "answer": "3",
  "scoring": {"method": "exact-match"}
}`,
	})

	_, err := Load(dir)
	var catErr *CatalogError
	require.ErrorAs(t, err, &catErr)
	assert.Contains(t, err.Error(), "line.mp4")
}

func TestLoad_ExternalLinksAllowed(t *testing.T) {
	dir := writeCatalog(t, map[string]string{
		"a.json": taskJSON("fb.1.1.0001", "factory",
			"See [the handbook](https://example.com/handbook.pdf)."),
	})

	_, err := Load(dir)
	require.NoError(t, err)
}

func TestLoad_DuplicateTail(t *testing.T) {
	dir := writeCatalog(t, map[string]string{
		"a.json": taskJSON("fb.1.1.0001", "factory", "q"),
		"b.json": taskJSON("other.1.1.0001", "retail", "q"),
	})

	_, err := Load(dir)
	var catErr *CatalogError
	require.ErrorAs(t, err, &catErr)
	assert.Contains(t, err.Error(), "1.1.0001")
}

func TestLoad_EmptyDirectory(t *testing.T) {
	_, err := Load(t.TempDir())
	var catErr *CatalogError
	require.ErrorAs(t, err, &catErr)
}

func TestFind_NumericTail(t *testing.T) {
	dir := writeCatalog(t, map[string]string{
		"a.json": taskJSON("fieldbench.1.1.0001", "factory", "q"),
	})
	c, err := Load(dir)
	require.NoError(t, err)

	task, ok := c.Find("1.1.0001")
	require.True(t, ok)
	assert.Equal(t, "fieldbench.1.1.0001", task.ID)

	task, ok = c.Find("other.prefix.1.1.0001")
	require.True(t, ok)
	assert.Equal(t, "fieldbench.1.1.0001", task.ID)

	_, ok = c.Find("9.9.9999")
	assert.False(t, ok)
}

func loadedCatalog(t *testing.T) *Catalog {
	t.Helper()
	dir := writeCatalog(t, map[string]string{
		"a.json": taskJSON("fb.1.1.0001", "factory", "q1"),
		"b.json": taskJSON("fb.2.1.0001", "warehouse", "q2"),
		"c.json": taskJSON("fb.2.1.0002", "warehouse", "q3"),
		"d.json": taskJSON("fb.3.1.0001", "retail", "q4"),
	})
	c, err := Load(dir)
	require.NoError(t, err)
	return c
}

func TestResolve_NoSelection(t *testing.T) {
	c := loadedCatalog(t)

	all, err := c.Resolve(nil, config.TargetAll)
	require.NoError(t, err)
	assert.Len(t, all, 4)

	warehouse, err := c.Resolve(nil, "warehouse")
	require.NoError(t, err)
	require.Len(t, warehouse, 2)
	assert.Equal(t, "fb.2.1.0001", warehouse[0].ID)
	assert.Equal(t, "fb.2.1.0002", warehouse[1].ID)

	_, err = c.Resolve(nil, config.TargetCustom)
	var catErr *CatalogError
	require.ErrorAs(t, err, &catErr)
	assert.Contains(t, err.Error(), "selection document")
}

func TestResolve_WithSelection(t *testing.T) {
	c := loadedCatalog(t)
	sel := &config.Selection{
		Warehouse: []string{"2.1.0002"},
		Custom:    []string{"3.1.0001", "1.1.0001"},
	}

	// Custom IDs resolve in catalog declaration order, not list order.
	custom, err := c.Resolve(sel, config.TargetCustom)
	require.NoError(t, err)
	require.Len(t, custom, 2)
	assert.Equal(t, "fb.1.1.0001", custom[0].ID)
	assert.Equal(t, "fb.3.1.0001", custom[1].ID)

	warehouse, err := c.Resolve(sel, "warehouse")
	require.NoError(t, err)
	require.Len(t, warehouse, 1)
	assert.Equal(t, "fb.2.1.0002", warehouse[0].ID)
}

func TestResolve_UnknownSelectedID(t *testing.T) {
	c := loadedCatalog(t)
	sel := &config.Selection{
		Custom: []string{"1.1.0001", "8.8.0008"},
	}

	_, err := c.Resolve(sel, config.TargetCustom)
	var catErr *CatalogError
	require.ErrorAs(t, err, &catErr)
	assert.Contains(t, err.Error(), "unknown task IDs")
	assert.Contains(t, err.Error(), "8.8.0008")
}

func TestResolve_EmptySelectionList(t *testing.T) {
	c := loadedCatalog(t)
	sel := &config.Selection{Factory: []string{"1.1.0001"}}

	_, err := c.Resolve(sel, "retail")
	var catErr *CatalogError
	require.ErrorAs(t, err, &catErr)
}
