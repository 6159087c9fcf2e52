package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/fieldbench/fieldbench/internal/models"
)

// TargetAll selects the union of every category list. The custom list is
// deliberately excluded from it; custom IDs run only when asked for by name.
const (
	TargetAll    = "all"
	TargetCustom = "custom"
)

var validTargets = []string{
	TargetAll,
	string(models.CategoryFactory),
	string(models.CategoryWarehouse),
	string(models.CategoryRetail),
	TargetCustom,
}

// Selection is the task-ID selection document. Each category key lists the
// IDs that belong to the published benchmark split; custom holds ad-hoc IDs
// outside the published lists.
type Selection struct {
	Factory   []string `yaml:"factory,omitempty"`
	Warehouse []string `yaml:"warehouse,omitempty"`
	Retail    []string `yaml:"retail,omitempty"`
	Custom    []string `yaml:"custom,omitempty"`
}

// LoadSelection reads a selection document. An empty path returns nil,
// meaning "run everything the catalog holds".
func LoadSelection(path string) (*Selection, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ConfigurationError{Path: path, Err: err}
	}
	var sel Selection
	if err := yaml.Unmarshal(data, &sel); err != nil {
		return nil, &ConfigurationError{Path: path, Err: fmt.Errorf("parsing: %w", err)}
	}
	return &sel, nil
}

// IDs returns the task IDs selected by target, in document order.
func (s *Selection) IDs(target string) ([]string, error) {
	switch target {
	case string(models.CategoryFactory):
		return s.Factory, nil
	case string(models.CategoryWarehouse):
		return s.Warehouse, nil
	case string(models.CategoryRetail):
		return s.Retail, nil
	case TargetCustom:
		return s.Custom, nil
	case TargetAll:
		ids := make([]string, 0, len(s.Factory)+len(s.Warehouse)+len(s.Retail))
		ids = append(ids, s.Factory...)
		ids = append(ids, s.Warehouse...)
		ids = append(ids, s.Retail...)
		return ids, nil
	default:
		return nil, fmt.Errorf("unknown target %q", target)
	}
}
