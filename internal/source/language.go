package source

import (
	"path/filepath"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

// LanguageForPath returns the grammar for a file path's extension.
// Returns ok=false for extensions machines cannot live in.
func LanguageForPath(path string) (langName string, lang *sitter.Language, ok bool) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".js", ".jsx", ".mjs", ".cjs":
		return "javascript", javascript.GetLanguage(), true
	case ".ts", ".mts", ".cts":
		return "typescript", typescript.GetLanguage(), true
	case ".tsx":
		return "tsx", tsx.GetLanguage(), true
	default:
		return "", nil, false
	}
}
