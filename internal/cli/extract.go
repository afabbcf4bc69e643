package cli

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/quarry-dev/quarry/internal/config"
	"github.com/quarry-dev/quarry/internal/query"
	"github.com/quarry-dev/quarry/internal/runner"
	"github.com/quarry-dev/quarry/internal/storage"
)

var (
	quietFlag       bool
	watchFlag       bool
	jsonFlag        bool
	jsonlFlag       bool
	dbFlag          string
	queryDirsFlag   []string
	workersFlag     int
	incrementalFlag bool
)

// extractCmd represents the extract command
var extractCmd = &cobra.Command{
	Use:   "extract [path]",
	Short: "Extract an entity catalog from a source tree",
	Long: `Extract walks a source tree, parses every unit matching the configured
include patterns and runs the loaded query definitions against each
syntax tree, producing a catalog of code entities.

Results can be printed as JSON, streamed as JSON Lines or stored in a
SQLite catalog database. With --watch the command keeps running,
re-extracting units as they change and hot-reloading user query
directories when their .scm files change.

Examples:
  # Extract the current directory and print the catalog as JSON
  quarry extract --json

  # Extract a specific tree into a SQLite catalog
  quarry extract ./backend --db .quarry/catalog.db

  # Only re-extract units whose content changed since the last run
  quarry extract --db .quarry/catalog.db --incremental

  # Keep watching for changes, with extra query definitions
  quarry extract --watch --queries ./queries

  # Stream one entity per line for piping into jq
  quarry extract --jsonl | jq .name
`,
	Args: cobra.MaximumNArgs(1),
	RunE: runExtract,
}

func init() {
	rootCmd.AddCommand(extractCmd)
	extractCmd.Flags().BoolVarP(&quietFlag, "quiet", "q", false, "Disable progress bars and non-error output")
	extractCmd.Flags().BoolVarP(&watchFlag, "watch", "w", false, "Watch for changes and re-extract incrementally")
	extractCmd.Flags().BoolVar(&jsonFlag, "json", false, "Print the catalog to stdout as a single JSON document")
	extractCmd.Flags().BoolVar(&jsonlFlag, "jsonl", false, "Stream entities to stdout as JSON Lines")
	extractCmd.Flags().StringVar(&dbFlag, "db", "", "SQLite catalog path (overrides storage.database_path)")
	extractCmd.Flags().StringSliceVar(&queryDirsFlag, "queries", nil, "Extra query definition directories (repeatable)")
	extractCmd.Flags().IntVar(&workersFlag, "workers", 0, "Concurrent unit extractions (0 uses all CPUs)")
	extractCmd.Flags().BoolVar(&incrementalFlag, "incremental", false, "Skip units whose stored content hash is unchanged")
}

func runExtract(cmd *cobra.Command, args []string) error {
	if jsonFlag && jsonlFlag {
		return fmt.Errorf("--json and --jsonl are mutually exclusive")
	}
	if watchFlag && (jsonFlag || jsonlFlag) {
		return fmt.Errorf("--watch cannot be combined with --json or --jsonl")
	}

	// Set up context with cancellation for Ctrl+C
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle interrupt signals gracefully
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Fprintln(os.Stderr, "\nInterrupted! Cancelling extraction...")
		cancel()
	}()

	rootDir, err := resolveRoot(args)
	if err != nil {
		return err
	}

	// Load configuration from .quarry/config.yml
	cfg, err := config.LoadConfigFromDir(rootDir)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	applyExtractFlags(cmd, cfg)

	// Bundled definitions first, then user directories layered over them
	queryDirs := resolveQueryDirs(rootDir, append(append([]string{}, cfg.Queries.Dirs...), queryDirsFlag...))
	store, err := buildStore(queryDirs)
	if err != nil {
		return err
	}

	var sinks []runner.Sink
	if cfg.Storage.DatabasePath != "" {
		dbPath := cfg.Storage.DatabasePath
		if !filepath.IsAbs(dbPath) {
			dbPath = filepath.Join(rootDir, dbPath)
		}
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return fmt.Errorf("failed to create catalog directory: %w", err)
		}
		db, err := storage.Open(dbPath)
		if err != nil {
			return fmt.Errorf("failed to open catalog database: %w", err)
		}
		defer db.Close()
		sinks = append(sinks, runner.NewStorageSink(db))
	}

	var collector *catalogCollector
	if jsonFlag || jsonlFlag {
		collector = newCatalogCollector()
		sinks = append(sinks, collector)
	}

	// Progress bars share stdout with the JSON stream, so JSON output
	// forces quiet mode
	quiet := quietFlag || jsonFlag || jsonlFlag
	progress := NewCLIProgressReporter(quiet)

	opts := runner.Options{
		Root:        rootDir,
		Include:     cfg.Paths.Include,
		Ignore:      cfg.Paths.Ignore,
		Workers:     cfg.Extract.Workers,
		Incremental: cfg.Extract.Incremental,
		Debounce:    time.Duration(cfg.Extract.DebounceMs) * time.Millisecond,
	}
	r, err := runner.New(opts, store, combineSinks(sinks), progress)
	if err != nil {
		return fmt.Errorf("failed to create runner: %w", err)
	}
	defer r.Close()

	stats, err := r.Run(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("extraction cancelled")
		}
		return fmt.Errorf("extraction failed: %w", err)
	}

	if watchFlag {
		return watchLoop(ctx, r, queryDirs, stats, quiet)
	}

	if collector != nil {
		if jsonlFlag {
			return collector.WriteJSONL(os.Stdout)
		}
		return collector.WriteJSON(os.Stdout)
	}

	// Print summary (if not quiet, OnComplete already printed it)
	if quiet {
		fmt.Printf("Extraction complete: %d entities from %d units in %.2fs\n",
			stats.Entities, stats.UnitsExtracted, stats.ProcessingTimeSeconds)
	}

	return nil
}

// watchLoop keeps re-extracting until the context is cancelled.
func watchLoop(ctx context.Context, r *runner.Runner, queryDirs []string, stats *runner.Stats, quiet bool) error {
	if !quiet {
		fmt.Printf("Initial extraction complete: %d entities from %d units in %.2fs\n",
			stats.Entities, stats.UnitsExtracted, stats.ProcessingTimeSeconds)
		log.Println("Starting watch mode...")
	}

	watcher, err := runner.NewWatcher(r)
	if err != nil {
		return fmt.Errorf("failed to start watching: %w", err)
	}
	watcher.Start(ctx)
	defer watcher.Stop()

	// User query directories are rebuilt over the bundled sets and
	// swapped in before the next run
	if len(queryDirs) > 0 {
		reloader, err := query.NewReloader(queryDirs)
		if err != nil {
			return fmt.Errorf("failed to watch query directories: %w", err)
		}
		if err := reloader.Start(ctx, r.SetStore); err != nil {
			return fmt.Errorf("failed to watch query directories: %w", err)
		}
		defer reloader.Stop()
	}

	<-ctx.Done()

	if !quiet {
		log.Println("Watch mode stopped")
	}
	return nil
}

// resolveRoot picks the extraction root: the positional argument when
// given, the working directory otherwise.
func resolveRoot(args []string) (string, error) {
	if len(args) == 1 {
		abs, err := filepath.Abs(args[0])
		if err != nil {
			return "", fmt.Errorf("failed to resolve path %s: %w", args[0], err)
		}
		info, err := os.Stat(abs)
		if err != nil {
			return "", fmt.Errorf("cannot extract %s: %w", args[0], err)
		}
		if !info.IsDir() {
			return "", fmt.Errorf("cannot extract %s: not a directory", args[0])
		}
		return abs, nil
	}

	wd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get working directory: %w", err)
	}
	return wd, nil
}

// applyExtractFlags overlays explicitly set command flags onto the
// loaded configuration.
func applyExtractFlags(cmd *cobra.Command, cfg *config.Config) {
	if cmd.Flags().Changed("workers") {
		cfg.Extract.Workers = workersFlag
	}
	if cmd.Flags().Changed("incremental") {
		cfg.Extract.Incremental = incrementalFlag
	}
	if cmd.Flags().Changed("db") {
		cfg.Storage.DatabasePath = dbFlag
	}
}

// resolveQueryDirs makes relative query directories absolute with
// respect to the extraction root. The reloader re-reads these paths
// from its own goroutine, so they cannot depend on the working
// directory.
func resolveQueryDirs(rootDir string, dirs []string) []string {
	out := make([]string, 0, len(dirs))
	for _, dir := range dirs {
		if !filepath.IsAbs(dir) {
			dir = filepath.Join(rootDir, dir)
		}
		out = append(out, dir)
	}
	return out
}

// buildStore loads the bundled query definitions and layers the given
// directories over them.
func buildStore(dirs []string) (*query.Store, error) {
	store, err := query.LoadEmbedded()
	if err != nil {
		return nil, fmt.Errorf("failed to load bundled query definitions: %w", err)
	}
	for _, dir := range dirs {
		if err := store.LoadDir(dir); err != nil {
			return nil, fmt.Errorf("failed to load query directory %s: %w", dir, err)
		}
	}
	return store, nil
}
