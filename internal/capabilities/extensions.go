package capabilities

import "strings"

var fileExtensions = map[string]string{
	"typescript": "ts",
	"javascript": "js",
	"python":     "py",
	"go":         "go",
}

// ExtensionFor maps a connector language to its source file extension.
// Matching is case-insensitive; unknown languages map to "txt".
func ExtensionFor(language string) string {
	if ext, ok := fileExtensions[strings.ToLower(language)]; ok {
		return ext
	}
	return "txt"
}
