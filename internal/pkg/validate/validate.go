// Package validate provides input validation for API path and body parameters.
package validate

// TemplateIDMaxLen is the maximum allowed length for a template ID (stored in DB, used in paths).
const TemplateIDMaxLen = 128

// TemplateID validates a workflow template ID: alphanumeric, hyphen,
// underscore; 1-TemplateIDMaxLen chars.
func TemplateID(id string) bool {
	if id == "" || len(id) > TemplateIDMaxLen {
		return false
	}
	for _, r := range id {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			continue
		}
		return false
	}
	return true
}

// Pagination bounds page and pageSize, returning safe values. Zero values
// fall back to the given defaults.
func Pagination(page, pageSize, defaultSize, maxSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = defaultSize
	}
	if pageSize > maxSize {
		pageSize = maxSize
	}
	return page, pageSize
}
