package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quarry-dev/quarry/internal/entity"
	"github.com/quarry-dev/quarry/internal/runner"
	"github.com/quarry-dev/quarry/internal/storage"
)

// Test Plan for Extraction Output:
// - catalogCollector emits collected units as JSON ordered by unit path
// - catalogCollector emits one entity per line in JSONL mode
// - catalogCollector replaces a unit's result on rewrite
// - catalogCollector drops deleted units
// - Failed units serialize with an empty entity array, not null
// - catalogCollector never reports a stored hash
// - fanoutSink writes to every sink and reads the first stored hash
// - combineSinks collapses zero, one and many sinks

// testCatalog builds a one-entity catalog for a unit.
func testCatalog(t *testing.T, unit, name string) *entity.Catalog {
	t.Helper()

	cat := entity.NewCatalog(unit, "rust")
	require.NoError(t, cat.Add(entity.Entity{
		Handler:       "rust::free_function",
		Type:          entity.TypeFunction,
		Name:          name,
		QualifiedName: name,
		Unit:          unit,
		Language:      "rust",
		Location:      entity.Location{StartLine: 1, EndLine: 3, EndColumn: 1, EndByte: 24},
	}))
	return cat
}

func TestCatalogCollector_WriteJSONOrdersByUnit(t *testing.T) {
	// Test: JSON output is one document with units in path order
	t.Parallel()

	collector := newCatalogCollector()
	require.NoError(t, collector.WriteCatalog(testCatalog(t, "src/zeta.rs", "zeta"), "complete", "hash-z"))
	require.NoError(t, collector.WriteCatalog(testCatalog(t, "src/alpha.rs", "alpha"), "complete", "hash-a"))

	var buf bytes.Buffer
	require.NoError(t, collector.WriteJSON(&buf))

	var results []unitResult
	require.NoError(t, json.Unmarshal(buf.Bytes(), &results))
	require.Len(t, results, 2)

	assert.Equal(t, "src/alpha.rs", results[0].Unit)
	assert.Equal(t, "src/zeta.rs", results[1].Unit)
	assert.Equal(t, "complete", results[0].State)
	assert.Equal(t, "rust", results[0].Language)
	assert.NotEmpty(t, results[0].RunID)

	require.Len(t, results[0].Entities, 1)
	assert.Equal(t, "alpha", results[0].Entities[0].Name)
}

func TestCatalogCollector_WriteJSONLStreamsEntities(t *testing.T) {
	// Test: JSONL output is one entity per line, still in unit order
	t.Parallel()

	collector := newCatalogCollector()
	require.NoError(t, collector.WriteCatalog(testCatalog(t, "beta.rs", "bee"), "complete", "h1"))
	require.NoError(t, collector.WriteCatalog(testCatalog(t, "alpha.rs", "ay"), "complete", "h2"))

	var buf bytes.Buffer
	require.NoError(t, collector.WriteJSONL(&buf))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)

	var first entity.Entity
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	assert.Equal(t, "ay", first.Name)
	assert.Equal(t, "alpha.rs", first.Unit)

	var second entity.Entity
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &second))
	assert.Equal(t, "bee", second.Name)
}

func TestCatalogCollector_RewriteReplacesUnit(t *testing.T) {
	// Test: Writing a unit again replaces the earlier result
	t.Parallel()

	collector := newCatalogCollector()
	require.NoError(t, collector.WriteCatalog(testCatalog(t, "lib.rs", "before"), "complete", "h1"))
	require.NoError(t, collector.WriteCatalog(testCatalog(t, "lib.rs", "after"), "complete", "h2"))

	results := collector.sorted()
	require.Len(t, results, 1)
	require.Len(t, results[0].Entities, 1)
	assert.Equal(t, "after", results[0].Entities[0].Name)
}

func TestCatalogCollector_DeleteUnit(t *testing.T) {
	// Test: Deleted units disappear from the output
	t.Parallel()

	collector := newCatalogCollector()
	require.NoError(t, collector.WriteCatalog(testCatalog(t, "lib.rs", "gone"), "complete", "h1"))
	require.NoError(t, collector.DeleteUnit("lib.rs"))

	assert.Empty(t, collector.sorted())
}

func TestCatalogCollector_FailedUnitHasEmptyEntityArray(t *testing.T) {
	// Test: A failed unit's entities field is [], not null
	t.Parallel()

	collector := newCatalogCollector()
	cat := entity.NewCatalog("broken.rs", "rust")
	cat.Warn("extraction", "parse failed")
	require.NoError(t, collector.WriteCatalog(cat, "failed", "h1"))

	var buf bytes.Buffer
	require.NoError(t, collector.WriteJSON(&buf))

	assert.Contains(t, buf.String(), `"entities": []`)
	assert.Contains(t, buf.String(), "parse failed")
}

func TestCatalogCollector_NeverReportsStoredHash(t *testing.T) {
	// Test: The collector is not durable, so incremental lookups miss
	t.Parallel()

	collector := newCatalogCollector()
	require.NoError(t, collector.WriteCatalog(testCatalog(t, "lib.rs", "f"), "complete", "h1"))

	hash, err := collector.LastContentHash("lib.rs")
	require.NoError(t, err)
	assert.Equal(t, "", hash)
}

func TestFanoutSink_WritesToAllSinksAndReadsFirstHash(t *testing.T) {
	// Test: Fanout delivers writes everywhere; the durable sink answers
	// hash lookups
	t.Parallel()

	db := storage.NewTestDB(t)
	durable := runner.NewStorageSink(db)
	collector := newCatalogCollector()

	sink := combineSinks([]runner.Sink{durable, collector})

	require.NoError(t, sink.WriteCatalog(testCatalog(t, "lib.rs", "add"), "complete", "hash-1"))

	hash, err := sink.LastContentHash("lib.rs")
	require.NoError(t, err)
	assert.Equal(t, "hash-1", hash)
	assert.Len(t, collector.sorted(), 1)

	require.NoError(t, sink.DeleteUnit("lib.rs"))

	hash, err = sink.LastContentHash("lib.rs")
	require.NoError(t, err)
	assert.Equal(t, "", hash)
	assert.Empty(t, collector.sorted())
}

func TestCombineSinks(t *testing.T) {
	// Test: Zero sinks collapse to nil, one passes through, many fan out
	t.Parallel()

	assert.Nil(t, combineSinks(nil))

	collector := newCatalogCollector()
	assert.Same(t, collector, combineSinks([]runner.Sink{collector}))

	other := newCatalogCollector()
	multi := combineSinks([]runner.Sink{collector, other})
	_, ok := multi.(*fanoutSink)
	assert.True(t, ok)
}
