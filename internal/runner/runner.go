// Package runner drives batch extraction: it discovers source units,
// fans them out across a worker pool, and hands each unit's catalog to
// a sink. One unit is always extracted by a single worker; parallelism
// exists only across units.
package runner

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/quarry-dev/quarry/internal/engine"
	"github.com/quarry-dev/quarry/internal/entity"
	"github.com/quarry-dev/quarry/internal/parsers"
	"github.com/quarry-dev/quarry/internal/query"
)

// Options configures a batch extraction run.
type Options struct {
	Root        string        // directory to extract from
	Include     []string      // glob patterns relative to Root
	Ignore      []string      // glob patterns relative to Root
	Workers     int           // concurrent unit extractions; <= 0 means NumCPU
	Incremental bool          // consult the sink's stored hashes before extracting
	Debounce    time.Duration // watch mode settle time; 0 means 500ms
}

// Stats summarizes one batch run.
type Stats struct {
	UnitsDiscovered       int     `json:"units_discovered"`
	UnitsExtracted        int     `json:"units_extracted"`
	UnitsSkipped          int     `json:"units_skipped"`
	UnitsFailed           int     `json:"units_failed"`
	Entities              int     `json:"entities"`
	Warnings              int     `json:"warnings"`
	ProcessingTimeSeconds float64 `json:"processing_time_seconds"`
}

// Sink receives extraction results. The storage package provides the
// SQLite implementation; the CLI provides JSON emitters.
type Sink interface {
	// WriteCatalog stores one unit's result under the given terminal
	// state and source content hash.
	WriteCatalog(cat *entity.Catalog, state, contentHash string) error

	// DeleteUnit removes a previously stored unit after its source file
	// disappears.
	DeleteUnit(unitPath string) error

	// LastContentHash returns the hash the unit was last stored with,
	// or "" when the unit is unknown.
	LastContentHash(unitPath string) (string, error)
}

// Runner owns the per-language engines and the worker pool. Engines are
// compiled once per store and shared read-only by all workers; a query
// store swap takes effect at the start of the next run, never mid-run.
type Runner struct {
	opts      Options
	discovery *Discovery
	sink      Sink
	progress  ProgressReporter

	store   *query.Store
	pending atomic.Pointer[query.Store]

	engines map[string]*engine.Engine
	engMu   sync.Mutex

	memo *resultMemo
}

// New creates a runner over a loaded query store. A nil sink discards
// catalogs after counting them; a nil progress reporter is silent.
func New(opts Options, store *query.Store, sink Sink, progress ProgressReporter) (*Runner, error) {
	discovery, err := NewDiscovery(opts.Root, opts.Include, opts.Ignore)
	if err != nil {
		return nil, fmt.Errorf("compiling discovery patterns: %w", err)
	}
	if progress == nil {
		progress = &NoOpProgressReporter{}
	}
	memo, err := newResultMemo(memoCapacity)
	if err != nil {
		return nil, fmt.Errorf("building result memo: %w", err)
	}
	return &Runner{
		opts:      opts,
		discovery: discovery,
		sink:      sink,
		progress:  progress,
		store:     store,
		engines:   make(map[string]*engine.Engine),
		memo:      memo,
	}, nil
}

// SetStore schedules a replacement query store. In-flight extractions
// finish on the old store; the swap happens at the next Run.
func (r *Runner) SetStore(store *query.Store) {
	r.pending.Store(store)
}

// Close releases the compiled engines and the memo cache.
func (r *Runner) Close() {
	r.closeEngines()
	r.memo.close()
}

// Run discovers units and extracts them across the worker pool. It
// returns the batch stats; per-unit failures are counted and logged,
// only discovery errors, query compilation errors, and cancellation
// fail the run itself.
func (r *Runner) Run(ctx context.Context) (*Stats, error) {
	start := time.Now()
	r.adoptPendingStore()

	r.progress.OnDiscoveryStart()
	discovered, err := r.discovery.Units()
	if err != nil {
		return nil, fmt.Errorf("discovering units: %w", err)
	}

	units := make([]string, 0, len(discovered))
	for _, path := range discovered {
		if r.extractable(path) {
			units = append(units, path)
		}
	}
	r.progress.OnDiscoveryComplete(len(units))

	if err := r.prepareEngines(units); err != nil {
		return nil, err
	}

	stats := &Stats{UnitsDiscovered: len(units)}
	r.progress.OnExtractionStart(len(units))

	var wg sync.WaitGroup
	var mu sync.Mutex
	sem := make(chan struct{}, r.workers())

	for _, path := range units {
		wg.Add(1)
		go func(path string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			outcome := r.processUnit(ctx, path)
			r.progress.OnUnitProcessed(path)

			mu.Lock()
			defer mu.Unlock()
			switch outcome.status {
			case unitExtracted:
				stats.UnitsExtracted++
				stats.Entities += outcome.entities
				stats.Warnings += outcome.warnings
			case unitSkipped:
				stats.UnitsSkipped++
			case unitFailed:
				stats.UnitsFailed++
			}
		}(path)
	}
	wg.Wait()

	stats.ProcessingTimeSeconds = time.Since(start).Seconds()
	r.progress.OnComplete(stats)
	if ctx.Err() != nil {
		return stats, ctx.Err()
	}
	return stats, nil
}

type unitStatus int

const (
	unitExtracted unitStatus = iota
	unitSkipped
	unitFailed
)

type unitOutcome struct {
	status   unitStatus
	entities int
	warnings int
}

func (r *Runner) processUnit(ctx context.Context, path string) unitOutcome {
	if ctx.Err() != nil {
		return unitOutcome{status: unitFailed}
	}

	unit := r.unitName(path)

	content, err := os.ReadFile(path)
	if err != nil {
		log.Printf("Warning: failed to read %s: %v", unit, err)
		return unitOutcome{status: unitFailed}
	}
	hash := contentHash(content)

	if r.memo.sameHash(unit, hash) {
		return unitOutcome{status: unitSkipped}
	}
	if r.opts.Incremental && r.sink != nil {
		stored, err := r.sink.LastContentHash(unit)
		if err != nil {
			log.Printf("Warning: failed to look up stored hash for %s: %v", unit, err)
		} else if stored == hash {
			r.memo.remember(unit, hash)
			return unitOutcome{status: unitSkipped}
		}
	}

	language, _ := parsers.LanguageForFile(path)
	eng := r.engineFor(language)
	if eng == nil {
		log.Printf("Warning: no engine for %s unit %s", language, unit)
		return unitOutcome{status: unitFailed}
	}

	src, err := parsers.Parse(unit, language, content)
	if err != nil {
		log.Printf("Warning: failed to parse %s: %v", unit, err)
		return unitOutcome{status: unitFailed}
	}
	defer src.Close()

	res := eng.Extract(ctx, unit, src.Root(), src.Content)
	if res.State == engine.StateFailed {
		if errors.Is(res.Err, context.Canceled) || errors.Is(res.Err, context.DeadlineExceeded) {
			return unitOutcome{status: unitFailed}
		}
		log.Printf("Warning: extraction failed for %s: %v", unit, res.Err)
		r.storeFailure(unit, language, hash, res.Err)
		return unitOutcome{status: unitFailed}
	}

	for _, w := range res.Catalog.Warnings() {
		log.Printf("Warning: %s", w)
	}

	if r.sink != nil {
		if err := r.sink.WriteCatalog(res.Catalog, string(res.State), hash); err != nil {
			log.Printf("Warning: failed to store catalog for %s: %v", unit, err)
			return unitOutcome{status: unitFailed}
		}
	}
	r.memo.remember(unit, hash)

	return unitOutcome{
		status:   unitExtracted,
		entities: res.Catalog.Len(),
		warnings: len(res.Catalog.Warnings()),
	}
}

// storeFailure records a failed unit in the sink so the catalog shows
// the unit was seen but produced nothing.
func (r *Runner) storeFailure(unit, language, hash string, cause error) {
	if r.sink == nil {
		return
	}

	handler := "extraction"
	var me *engine.MatchError
	if errors.As(cause, &me) {
		handler = me.Handler
	}

	cat := entity.NewCatalog(unit, language)
	cat.Warn(handler, "%v", cause)
	if err := r.sink.WriteCatalog(cat, string(engine.StateFailed), hash); err != nil {
		log.Printf("Warning: failed to store failure for %s: %v", unit, err)
	}
}

// extractable reports whether a unit has both a grammar and a query set.
func (r *Runner) extractable(path string) bool {
	language, ok := parsers.LanguageForFile(path)
	if !ok {
		return false
	}
	if _, ok := parsers.Lookup(language); !ok {
		return false
	}
	_, ok = r.store.Set(language)
	return ok
}

// prepareEngines compiles an engine for every language present in the
// unit list. Compilation failures abort the run before any matching.
func (r *Runner) prepareEngines(units []string) error {
	r.engMu.Lock()
	defer r.engMu.Unlock()

	for _, path := range units {
		language, ok := parsers.LanguageForFile(path)
		if !ok {
			continue
		}
		if _, ok := r.engines[language]; ok {
			continue
		}
		set, ok := r.store.Set(language)
		if !ok {
			continue
		}
		grammar, ok := parsers.Lookup(language)
		if !ok {
			continue
		}
		eng, err := engine.New(set, grammar)
		if err != nil {
			return fmt.Errorf("compiling %s query set: %w", language, err)
		}
		r.engines[language] = eng
	}
	return nil
}

func (r *Runner) engineFor(language string) *engine.Engine {
	r.engMu.Lock()
	defer r.engMu.Unlock()
	return r.engines[language]
}

func (r *Runner) closeEngines() {
	r.engMu.Lock()
	defer r.engMu.Unlock()
	for language, eng := range r.engines {
		eng.Close()
		delete(r.engines, language)
	}
}

// adoptPendingStore swaps in a reloaded query store between runs. The
// memo is cleared because its hashes only prove the source is
// unchanged, not the patterns it was extracted with.
func (r *Runner) adoptPendingStore() {
	if next := r.pending.Swap(nil); next != nil {
		r.closeEngines()
		r.store = next
		r.memo.clear()
		log.Println("Query definitions reloaded")
	}
}

func (r *Runner) workers() int {
	if r.opts.Workers > 0 {
		return r.opts.Workers
	}
	return runtime.NumCPU()
}

// unitName is the stable identity of a source file: its path relative
// to the root, slash-separated.
func (r *Runner) unitName(path string) string {
	rel, err := filepath.Rel(r.opts.Root, path)
	if err != nil {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}

func contentHash(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}
