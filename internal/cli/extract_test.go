package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quarry-dev/quarry/internal/config"
	"github.com/quarry-dev/quarry/internal/entity"
)

// Test Plan for Extract Command Helpers:
// - resolveRoot uses the working directory without arguments
// - resolveRoot resolves a positional directory argument
// - resolveRoot rejects files and missing paths
// - resolveQueryDirs anchors relative directories at the extraction root
// - applyExtractFlags only overrides values the user set
// - buildStore layers user query directories over the bundled sets
// - buildStore loads the sample extension set under testdata/queries

func TestResolveRoot_DefaultsToWorkingDirectory(t *testing.T) {
	// Test: No positional argument means extract the working directory
	wd, err := os.Getwd()
	require.NoError(t, err)

	root, err := resolveRoot(nil)
	require.NoError(t, err)
	assert.Equal(t, wd, root)
}

func TestResolveRoot_ResolvesArgument(t *testing.T) {
	// Test: A directory argument becomes the absolute extraction root
	t.Parallel()

	dir := t.TempDir()

	root, err := resolveRoot([]string{dir})
	require.NoError(t, err)
	assert.Equal(t, dir, root)
}

func TestResolveRoot_RejectsFile(t *testing.T) {
	// Test: A file argument is refused
	t.Parallel()

	dir := t.TempDir()
	file := filepath.Join(dir, "main.rs")
	require.NoError(t, os.WriteFile(file, []byte("fn main() {}\n"), 0644))

	_, err := resolveRoot([]string{file})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a directory")
}

func TestResolveRoot_RejectsMissingPath(t *testing.T) {
	// Test: A nonexistent path is refused
	t.Parallel()

	_, err := resolveRoot([]string{filepath.Join(t.TempDir(), "absent")})
	assert.Error(t, err)
}

func TestResolveQueryDirs_AnchorsRelativePaths(t *testing.T) {
	// Test: Relative query directories resolve against the root,
	// absolute ones pass through
	t.Parallel()

	dirs := resolveQueryDirs("/repo", []string{"queries", "/abs/queries"})
	assert.Equal(t, []string{filepath.Join("/repo", "queries"), "/abs/queries"}, dirs)
}

func TestApplyExtractFlags_OverridesOnlyChangedValues(t *testing.T) {
	// Test: Flags the user did not set leave the config alone
	cmd := &cobra.Command{}
	cmd.Flags().IntVar(&workersFlag, "workers", 0, "")
	cmd.Flags().BoolVar(&incrementalFlag, "incremental", false, "")
	cmd.Flags().StringVar(&dbFlag, "db", "", "")
	require.NoError(t, cmd.Flags().Set("workers", "6"))

	cfg := config.Default()
	cfg.Storage.DatabasePath = "from-config.db"

	applyExtractFlags(cmd, cfg)

	assert.Equal(t, 6, cfg.Extract.Workers)
	assert.Equal(t, "from-config.db", cfg.Storage.DatabasePath)
	assert.False(t, cfg.Extract.Incremental)
}

func TestBuildStore_LayersUserDirectoriesOverBundled(t *testing.T) {
	// Test: User definitions merge with the bundled sets instead of
	// replacing them
	t.Parallel()

	dir := t.TempDir()
	defs := `; @handler rust::any_function_item
; @entity_type Function
; @capture func
; @description Every function item regardless of nesting
((function_item
  name: (identifier) @name) @func)
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "rust.scm"), []byte(defs), 0644))

	store, err := buildStore([]string{dir})
	require.NoError(t, err)

	set, ok := store.Set("rust")
	require.True(t, ok)

	_, ok = set.Get("rust::any_function_item")
	assert.True(t, ok, "user definition should be loaded")
	_, ok = set.Get("rust::free_function")
	assert.True(t, ok, "bundled definitions should survive the merge")
}

func TestBuildStore_LoadsSampleExtensionSet(t *testing.T) {
	// Test: The sample extension definitions merge over the bundled
	// typescript set
	t.Parallel()

	store, err := buildStore([]string{"../../testdata/queries"})
	require.NoError(t, err)

	set, ok := store.Set("typescript")
	require.True(t, ok)

	def, ok := set.Get("typescript::arrow_const")
	require.True(t, ok, "sample extension definition should be loaded")
	assert.Equal(t, entity.TypeFunction, def.EntityType)
	assert.Equal(t, "Arrow functions bound to const declarations", def.Description)

	_, ok = set.Get("typescript::function")
	assert.True(t, ok, "bundled definitions should survive the merge")
}

func TestBuildStore_RejectsMissingDirectory(t *testing.T) {
	// Test: A query directory that does not exist is a load error
	t.Parallel()

	_, err := buildStore([]string{filepath.Join(t.TempDir(), "absent")})
	assert.Error(t, err)
}
