package catalog

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/fieldbench/fieldbench/internal/models"
)

// checkGoalLinks cross-checks the markdown links inside a task's question
// text against its declared input files. A question that references a file
// the task never declares would send participants chasing an attachment
// that is not in the message, so it fails the load.
func checkGoalLinks(task *models.Task) error {
	refs := extractLinks([]byte(task.Query))
	if len(refs) == 0 {
		return nil
	}

	declared := make(map[string]struct{}, len(task.Inputs))
	for _, in := range task.Inputs {
		declared[in.Name] = struct{}{}
	}

	var unknown []string
	for _, ref := range refs {
		if isExternalURL(ref) {
			continue
		}
		name := baseName(stripFragment(ref))
		if name == "" {
			continue
		}
		if _, ok := declared[name]; !ok {
			unknown = append(unknown, name)
		}
	}
	if len(unknown) > 0 {
		return catalogErrorf("task %s references undeclared input files: %s",
			task.ID, strings.Join(unknown, ", "))
	}
	return nil
}

// extractLinks parses markdown and returns every link and image destination.
func extractLinks(source []byte) []string {
	md := goldmark.New()
	reader := text.NewReader(source)
	doc := md.Parser().Parse(reader)

	var links []string
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch v := n.(type) {
		case *ast.Link:
			links = append(links, string(v.Destination))
		case *ast.Image:
			links = append(links, string(v.Destination))
		}
		return ast.WalkContinue, nil
	})
	return links
}

func isExternalURL(target string) bool {
	return strings.HasPrefix(target, "http://") ||
		strings.HasPrefix(target, "https://") ||
		strings.HasPrefix(target, "mailto:")
}

func stripFragment(target string) string {
	if i := strings.IndexByte(target, '#'); i >= 0 {
		return target[:i]
	}
	return target
}

func baseName(target string) string {
	if i := strings.LastIndexByte(target, '/'); i >= 0 {
		return target[i+1:]
	}
	return target
}
