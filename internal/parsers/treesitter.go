package parsers

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	sitter "github.com/tree-sitter/go-tree-sitter"
	c "github.com/tree-sitter/tree-sitter-c/bindings/go"
	java "github.com/tree-sitter/tree-sitter-java/bindings/go"
	php "github.com/tree-sitter/tree-sitter-php/bindings/go"
	python "github.com/tree-sitter/tree-sitter-python/bindings/go"
	ruby "github.com/tree-sitter/tree-sitter-ruby/bindings/go"
	rust "github.com/tree-sitter/tree-sitter-rust/bindings/go"
	typescript "github.com/tree-sitter/tree-sitter-typescript/bindings/go"
)

// languages maps a language name to its grammar. Grammars are built
// lazily and cached since sitter.NewLanguage loads the compiled grammar.
var languages = map[string]func() *sitter.Language{
	"rust":       func() *sitter.Language { return sitter.NewLanguage(rust.Language()) },
	"python":     func() *sitter.Language { return sitter.NewLanguage(python.Language()) },
	"typescript": func() *sitter.Language { return sitter.NewLanguage(typescript.LanguageTypescript()) },
	"tsx":        func() *sitter.Language { return sitter.NewLanguage(typescript.LanguageTSX()) },
	"c":          func() *sitter.Language { return sitter.NewLanguage(c.Language()) },
	"java":       func() *sitter.Language { return sitter.NewLanguage(java.Language()) },
	"ruby":       func() *sitter.Language { return sitter.NewLanguage(ruby.Language()) },
	"php":        func() *sitter.Language { return sitter.NewLanguage(php.LanguagePHP()) },
}

// extensions maps file extensions to language names.
var extensions = map[string]string{
	".rs":   "rust",
	".py":   "python",
	".ts":   "typescript",
	".tsx":  "tsx",
	".c":    "c",
	".h":    "c",
	".java": "java",
	".rb":   "ruby",
	".php":  "php",
}

var (
	grammarMu    sync.RWMutex
	grammarCache = map[string]*sitter.Language{}
)

// Lookup returns the grammar for a language name. Safe for concurrent
// use; extraction tasks for different units share the cached grammars.
func Lookup(name string) (*sitter.Language, bool) {
	grammarMu.RLock()
	lang, ok := grammarCache[name]
	grammarMu.RUnlock()
	if ok {
		return lang, true
	}

	build, ok := languages[name]
	if !ok {
		return nil, false
	}

	grammarMu.Lock()
	defer grammarMu.Unlock()
	if lang, ok := grammarCache[name]; ok {
		return lang, true
	}
	lang = build()
	grammarCache[name] = lang
	return lang, true
}

// LanguageForFile maps a file path to its language name by extension.
func LanguageForFile(path string) (string, bool) {
	lang, ok := extensions[strings.ToLower(filepath.Ext(path))]
	return lang, ok
}

// Supported lists the bundled language names in sorted order.
func Supported() []string {
	names := make([]string, 0, len(languages))
	for name := range languages {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Source is one parsed source unit: the tree plus the content the tree's
// byte offsets index into. Close releases the tree when extraction is
// done with it.
type Source struct {
	Path     string
	Language string
	Content  []byte
	Tree     *sitter.Tree
}

// Parse parses content as the named language.
func Parse(path, language string, content []byte) (*Source, error) {
	grammar, ok := Lookup(language)
	if !ok {
		return nil, fmt.Errorf("unsupported language %q", language)
	}

	parser := sitter.NewParser()
	defer parser.Close()

	if err := parser.SetLanguage(grammar); err != nil {
		return nil, fmt.Errorf("setting %s grammar: %w", language, err)
	}

	tree := parser.Parse(content, nil)
	if tree == nil {
		return nil, fmt.Errorf("failed to parse %s file: %s", language, path)
	}

	return &Source{
		Path:     path,
		Language: language,
		Content:  content,
		Tree:     tree,
	}, nil
}

// ParseFile reads and parses a file, detecting the language from its
// extension.
func ParseFile(path string) (*Source, error) {
	language, ok := LanguageForFile(path)
	if !ok {
		return nil, fmt.Errorf("no grammar for file %s", path)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return Parse(path, language, content)
}

// Close releases the underlying tree.
func (s *Source) Close() {
	if s.Tree != nil {
		s.Tree.Close()
		s.Tree = nil
	}
}

// Root returns the tree's root node.
func (s *Source) Root() *sitter.Node {
	return s.Tree.RootNode()
}

// Text returns the content spanned by a node.
func (s *Source) Text(node *sitter.Node) string {
	if node == nil {
		return ""
	}
	return string(s.Content[node.StartByte():node.EndByte()])
}
