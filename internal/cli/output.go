package cli

import (
	"encoding/json"
	"io"
	"sort"
	"sync"

	"github.com/quarry-dev/quarry/internal/entity"
	"github.com/quarry-dev/quarry/internal/runner"
)

// unitResult is the JSON shape emitted for one extracted unit.
type unitResult struct {
	Unit     string           `json:"unit"`
	Language string           `json:"language"`
	State    string           `json:"state"`
	RunID    string           `json:"run_id"`
	Entities []entity.Entity  `json:"entities"`
	Warnings []entity.Warning `json:"warnings,omitempty"`
}

// catalogCollector buffers extraction results in memory so the extract
// command can emit them as JSON after the run finishes. It implements
// runner.Sink but stores nothing durable: LastContentHash always misses,
// so incremental skips stay the durable sink's call.
type catalogCollector struct {
	mu      sync.Mutex
	results map[string]*unitResult
}

func newCatalogCollector() *catalogCollector {
	return &catalogCollector{results: make(map[string]*unitResult)}
}

func (c *catalogCollector) WriteCatalog(cat *entity.Catalog, state, contentHash string) error {
	entities := cat.Entities()
	if entities == nil {
		// Failed units have no entities; emit [] rather than null
		entities = []entity.Entity{}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.results[cat.Unit] = &unitResult{
		Unit:     cat.Unit,
		Language: cat.Language,
		State:    state,
		RunID:    cat.RunID,
		Entities: entities,
		Warnings: cat.Warnings(),
	}
	return nil
}

func (c *catalogCollector) DeleteUnit(unitPath string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.results, unitPath)
	return nil
}

func (c *catalogCollector) LastContentHash(unitPath string) (string, error) {
	return "", nil
}

// sorted returns the collected results ordered by unit path so output is
// stable across runs.
func (c *catalogCollector) sorted() []*unitResult {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]*unitResult, 0, len(c.results))
	for _, r := range c.results {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Unit < out[j].Unit })
	return out
}

// WriteJSON emits the collected results as one indented JSON document.
func (c *catalogCollector) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(c.sorted())
}

// WriteJSONL emits one JSON object per entity, one entity per line.
func (c *catalogCollector) WriteJSONL(w io.Writer) error {
	enc := json.NewEncoder(w)
	for _, r := range c.sorted() {
		for _, e := range r.Entities {
			if err := enc.Encode(e); err != nil {
				return err
			}
		}
	}
	return nil
}

// fanoutSink fans writes out to several sinks. Hash lookups consult the
// sinks in order and return the first hit, so a durable sink placed
// first drives incremental skips.
type fanoutSink struct {
	sinks []runner.Sink
}

func (f *fanoutSink) WriteCatalog(cat *entity.Catalog, state, contentHash string) error {
	for _, s := range f.sinks {
		if err := s.WriteCatalog(cat, state, contentHash); err != nil {
			return err
		}
	}
	return nil
}

func (f *fanoutSink) DeleteUnit(unitPath string) error {
	for _, s := range f.sinks {
		if err := s.DeleteUnit(unitPath); err != nil {
			return err
		}
	}
	return nil
}

func (f *fanoutSink) LastContentHash(unitPath string) (string, error) {
	for _, s := range f.sinks {
		hash, err := s.LastContentHash(unitPath)
		if err != nil {
			return "", err
		}
		if hash != "" {
			return hash, nil
		}
	}
	return "", nil
}

// combineSinks collapses zero, one or many sinks into a single runner.Sink.
func combineSinks(sinks []runner.Sink) runner.Sink {
	switch len(sinks) {
	case 0:
		return nil
	case 1:
		return sinks[0]
	default:
		return &fanoutSink{sinks: sinks}
	}
}
