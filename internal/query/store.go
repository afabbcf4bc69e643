package query

import (
	"embed"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/quarry-dev/quarry/internal/entity"
)

//go:embed queries/*.scm
var embedded embed.FS

// Set is one language's loaded query set: definitions in registration
// order plus a handler index. Sets are immutable once the store is
// handed to extraction; concurrent extraction tasks share them by
// reference without locking.
type Set struct {
	Language string

	definitions []*Definition
	byHandler   map[string]*Definition
}

func newSet(language string) *Set {
	return &Set{
		Language:  language,
		byHandler: make(map[string]*Definition),
	}
}

func (s *Set) add(def *Definition) error {
	if def.Language != s.Language {
		return &PatternError{
			Handler: def.Handler,
			Line:    def.Line,
			Reason:  fmt.Sprintf("handler namespace %q does not match query set language %q", def.Language, s.Language),
		}
	}
	if _, ok := s.byHandler[def.Handler]; ok {
		return &DuplicateHandlerError{Handler: def.Handler}
	}
	s.byHandler[def.Handler] = def
	s.definitions = append(s.definitions, def)
	return nil
}

// Definitions returns the set's definitions in registration order.
func (s *Set) Definitions() []*Definition {
	return s.definitions
}

// Get looks up a definition by its namespaced handler name.
func (s *Set) Get(handler string) (*Definition, bool) {
	d, ok := s.byHandler[handler]
	return d, ok
}

// Len reports the number of definitions in the set.
func (s *Set) Len() int {
	return len(s.definitions)
}

// Store holds the per-language query sets. A store is populated by the
// Load functions and then treated as frozen; hot reload builds a fresh
// store rather than mutating a live one.
type Store struct {
	sets map[string]*Set
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{sets: make(map[string]*Set)}
}

// LoadEmbedded builds a store from the query sets compiled into the
// binary. The language of each set is the file's base name.
func LoadEmbedded() (*Store, error) {
	s := NewStore()
	entries, err := embedded.ReadDir("queries")
	if err != nil {
		return nil, fmt.Errorf("reading embedded queries: %w", err)
	}
	for _, e := range entries {
		data, err := embedded.ReadFile("queries/" + e.Name())
		if err != nil {
			return nil, fmt.Errorf("reading embedded query %s: %w", e.Name(), err)
		}
		if err := s.LoadText(languageFromFilename(e.Name()), string(data)); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// LoadDir loads every .scm file under dir into the store, merging with
// whatever is already loaded. Files for an already-loaded language
// append to that language's set; redefining an existing handler is a
// DuplicateHandlerError.
func (s *Store) LoadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("reading query directory %s: %w", dir, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".scm") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	for _, name := range names {
		if err := s.LoadFile(filepath.Join(dir, name)); err != nil {
			return err
		}
	}
	return nil
}

// LoadFile loads one .scm file; the language is the file's base name.
func (s *Store) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading query file %s: %w", path, err)
	}
	lang := languageFromFilename(filepath.Base(path))
	if err := s.LoadText(lang, string(data)); err != nil {
		var le *LoadError
		if errors.As(err, &le) {
			return &LoadError{Language: le.Language, Err: fmt.Errorf("%s: %w", path, le.Err)}
		}
		return err
	}
	return nil
}

// LoadText parses annotated definition text and merges it into the
// named language's set. Any parse or merge failure blocks the whole
// language and is reported as a LoadError.
func (s *Store) LoadText(language, src string) error {
	defs, err := Parse(src)
	if err != nil {
		return &LoadError{Language: language, Err: err}
	}
	set, ok := s.sets[language]
	if !ok {
		set = newSet(language)
		s.sets[language] = set
	}
	for _, def := range defs {
		if def.TypeLabel != "" && def.EntityType == entity.TypeUnknown {
			log.Printf("Warning: query %s: unrecognized entity type %q, treating as unknown", def.Handler, def.TypeLabel)
		}
		if err := set.add(def); err != nil {
			return &LoadError{Language: language, Err: err}
		}
	}
	return nil
}

// Set returns the query set for a language, if loaded.
func (s *Store) Set(language string) (*Set, bool) {
	set, ok := s.sets[language]
	return set, ok
}

// Languages lists the loaded languages in sorted order.
func (s *Store) Languages() []string {
	langs := make([]string, 0, len(s.sets))
	for lang := range s.sets {
		langs = append(langs, lang)
	}
	sort.Strings(langs)
	return langs
}

func languageFromFilename(name string) string {
	return strings.TrimSuffix(name, ".scm")
}
