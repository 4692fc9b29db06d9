package validations

import (
	"path/filepath"
	"strings"
)

func extensionOf(name string) string {
	return strings.ToLower(filepath.Ext(name))
}
