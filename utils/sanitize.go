package utils

import (
	"path/filepath"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var namePolicy = bluemonday.StrictPolicy()

// SanitizeFilename strips any path components and HTML from a client
// supplied filename before it is stored as a display name. The storage key
// never contains this value, so this only protects UIs rendering the name.
func SanitizeFilename(name string) string {
	name = filepath.Base(strings.TrimSpace(name))
	if name == "." || name == string(filepath.Separator) {
		return ""
	}
	return strings.TrimSpace(namePolicy.Sanitize(name))
}
