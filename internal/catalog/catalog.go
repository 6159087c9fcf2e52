// Package catalog loads task definitions from disk and resolves the set of
// tasks an assessment run executes. Selection failures surface here, before
// any task is dispatched.
package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fieldbench/fieldbench/internal/config"
	"github.com/fieldbench/fieldbench/internal/models"
)

// CatalogError reports a defect in the task catalog or the selection
// against it. No dispatch happens once one is raised.
type CatalogError struct {
	Msg string
}

func (e *CatalogError) Error() string {
	return "catalog: " + e.Msg
}

func catalogErrorf(format string, args ...any) *CatalogError {
	return &CatalogError{Msg: fmt.Sprintf(format, args...)}
}

// Catalog holds loaded tasks in declaration order: sorted definition file
// name, then in-file position. Report ordering derives from this order.
type Catalog struct {
	tasks  []*models.Task
	byTail map[string]*models.Task
}

// taskFile is the on-disk shape of one task definition.
type taskFile struct {
	TaskID       string   `json:"task_id"`
	Category     string   `json:"category"`
	Question     string   `json:"question"`
	Answer       string   `json:"answer"`
	InputFiles   []string `json:"input_files"`
	OutputFormat string   `json:"output_format"`
	Scoring      struct {
		Method string         `json:"method"`
		Params map[string]any `json:"params"`
	} `json:"scoring"`
}

// Load reads every *.json task definition under dir. Each file is schema
// validated; any violation fails the whole load so a bad catalog is caught
// up front rather than mid-run.
func Load(dir string) (*Catalog, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, catalogErrorf("reading task directory %s: %v", dir, err)
	}

	c := &Catalog{byTail: make(map[string]*models.Task)}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, catalogErrorf("reading %s: %v", path, err)
		}

		if findings := validateTaskBytes(data); len(findings) > 0 {
			return nil, catalogErrorf("%s: %s", entry.Name(), strings.Join(findings, "; "))
		}

		var tf taskFile
		if err := json.Unmarshal(data, &tf); err != nil {
			return nil, catalogErrorf("decoding %s: %v", entry.Name(), err)
		}

		task, err := tf.toTask()
		if err != nil {
			return nil, catalogErrorf("%s: %v", entry.Name(), err)
		}
		if err := checkGoalLinks(task); err != nil {
			return nil, err
		}

		tail := models.NumericTail(task.ID)
		if prev, dup := c.byTail[tail]; dup {
			return nil, catalogErrorf("tasks %s and %s share the ID tail %s", prev.ID, task.ID, tail)
		}
		c.byTail[tail] = task
		c.tasks = append(c.tasks, task)
	}

	if len(c.tasks) == 0 {
		return nil, catalogErrorf("no task definitions found in %s", dir)
	}
	return c, nil
}

func (tf *taskFile) toTask() (*models.Task, error) {
	cat := models.Category(tf.Category)
	if !cat.Valid() {
		return nil, fmt.Errorf("unknown category %q", tf.Category)
	}

	task := &models.Task{
		ID:           tf.TaskID,
		Category:     cat,
		Query:        tf.Question,
		Answer:       tf.Answer,
		OutputFormat: tf.OutputFormat,
		Scoring: models.ScoringSpec{
			Method: models.ScoringMethod(tf.Scoring.Method),
			Params: tf.Scoring.Params,
		},
	}

	for _, name := range tf.InputFiles {
		kind, err := models.KindForName(name)
		if err != nil {
			return nil, fmt.Errorf("input %q: %w", name, err)
		}
		task.Inputs = append(task.Inputs, models.InputFile{
			Kind: kind,
			Name: name,
		})
	}
	return task, nil
}

// Tasks returns all tasks in declaration order.
func (c *Catalog) Tasks() []*models.Task {
	return c.tasks
}

// Find looks a task up by ID. Dotted IDs match on their numeric tail, so
// the same task is found whether the caller uses the fully qualified ID or
// the short benchmark form.
func (c *Catalog) Find(id string) (*models.Task, bool) {
	t, ok := c.byTail[models.NumericTail(id)]
	return t, ok
}

// Resolve returns the tasks the run executes, in catalog declaration order.
// With a nil selection the whole catalog runs, narrowed by category when
// target names one. Any selected ID absent from the catalog is a
// CatalogError; resolution is all-or-nothing.
func (c *Catalog) Resolve(sel *config.Selection, target string) ([]*models.Task, error) {
	if sel == nil {
		if target == config.TargetCustom {
			return nil, catalogErrorf("target custom requires a selection document")
		}
		if target == config.TargetAll {
			return c.tasks, nil
		}
		cat := models.Category(target)
		if !cat.Valid() {
			return nil, catalogErrorf("unknown target %q", target)
		}
		var out []*models.Task
		for _, t := range c.tasks {
			if t.Category == cat {
				out = append(out, t)
			}
		}
		if len(out) == 0 {
			return nil, catalogErrorf("no tasks in category %s", cat)
		}
		return out, nil
	}

	ids, err := sel.IDs(target)
	if err != nil {
		return nil, catalogErrorf("%v", err)
	}
	if len(ids) == 0 {
		return nil, catalogErrorf("selection has no task IDs for target %q", target)
	}

	selected := make(map[string]struct{}, len(ids))
	var missing []string
	for _, id := range ids {
		task, ok := c.Find(id)
		if !ok {
			missing = append(missing, id)
			continue
		}
		selected[task.ID] = struct{}{}
	}
	if len(missing) > 0 {
		return nil, catalogErrorf("selection names unknown task IDs: %s", strings.Join(missing, ", "))
	}

	out := make([]*models.Task, 0, len(selected))
	for _, t := range c.tasks {
		if _, ok := selected[t.ID]; ok {
			out = append(out, t)
		}
	}
	return out, nil
}
