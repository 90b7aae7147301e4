package validate

import (
	"strings"
	"testing"
)

func TestTemplateID(t *testing.T) {
	valid := []string{"tpl-1", "deploy_workflow", "A1", "nightly-regression-suite"}
	for _, id := range valid {
		if !TemplateID(id) {
			t.Errorf("Expected %q to be valid", id)
		}
	}

	invalid := []string{"", "tpl 1", "tpl/1", "tpl.1", "tpl;drop table", strings.Repeat("a", TemplateIDMaxLen+1)}
	for _, id := range invalid {
		if TemplateID(id) {
			t.Errorf("Expected %q to be invalid", id)
		}
	}
}

func TestPagination(t *testing.T) {
	page, size := Pagination(0, 0, 50, 200)
	if page != 1 || size != 50 {
		t.Errorf("Expected defaults 1/50, got %d/%d", page, size)
	}

	page, size = Pagination(3, 500, 50, 200)
	if page != 3 || size != 200 {
		t.Errorf("Expected capped 3/200, got %d/%d", page, size)
	}

	page, size = Pagination(2, 25, 50, 200)
	if page != 2 || size != 25 {
		t.Errorf("Expected passthrough 2/25, got %d/%d", page, size)
	}
}
