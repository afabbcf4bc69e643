package runner

import (
	"github.com/maypok86/otter"
)

// memoCapacity bounds the number of units whose content hashes are
// remembered between runs. Old entries are evicted, which only costs a
// redundant re-extraction.
const memoCapacity = 16384

// resultMemo remembers the content hash each unit was last extracted
// with so watch-mode re-runs can skip unchanged files.
type resultMemo struct {
	cache otter.Cache[string, string]
}

func newResultMemo(capacity int) (*resultMemo, error) {
	builder, err := otter.NewBuilder[string, string](capacity)
	if err != nil {
		return nil, err
	}
	cache, err := builder.Build()
	if err != nil {
		return nil, err
	}
	return &resultMemo{cache: cache}, nil
}

// sameHash reports whether the unit was last extracted with this exact
// content hash.
func (m *resultMemo) sameHash(unit, hash string) bool {
	stored, ok := m.cache.Get(unit)
	return ok && stored == hash
}

func (m *resultMemo) remember(unit, hash string) {
	m.cache.Set(unit, hash)
}

func (m *resultMemo) forget(unit string) {
	m.cache.Delete(unit)
}

// clear drops every memo entry. Called when the query store is swapped,
// since cached hashes only prove the SOURCE is unchanged, not the
// patterns it was extracted with.
func (m *resultMemo) clear() {
	m.cache.Clear()
}

func (m *resultMemo) close() {
	m.cache.Close()
}
