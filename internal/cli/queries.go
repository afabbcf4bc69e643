package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/quarry-dev/quarry/internal/engine"
	"github.com/quarry-dev/quarry/internal/parsers"
)

// queriesCmd groups subcommands that inspect query definitions.
var queriesCmd = &cobra.Command{
	Use:   "queries",
	Short: "Inspect and validate query definitions",
}

var queriesListCmd = &cobra.Command{
	Use:   "list [dir...]",
	Short: "List loaded query definitions by language",
	Long: `List shows every query definition the extractor would load: the bundled
sets plus any directories given as arguments, in load order.

Examples:
  # List the bundled definitions
  quarry queries list

  # Include a user query directory
  quarry queries list ./queries
`,
	RunE: runQueriesList,
}

var queriesValidateCmd = &cobra.Command{
	Use:   "validate [dir...]",
	Short: "Compile query definitions against their grammars",
	Long: `Validate loads the bundled definitions plus the given directories, then
compiles every language's patterns against its grammar, exactly as
extraction startup would. Problems are reported with the handler name
and the definition's line in its source file.

Examples:
  # Check the bundled definitions
  quarry queries validate

  # Check a user query directory before pointing --queries at it
  quarry queries validate ./queries
`,
	RunE: runQueriesValidate,
}

func init() {
	rootCmd.AddCommand(queriesCmd)
	queriesCmd.AddCommand(queriesListCmd)
	queriesCmd.AddCommand(queriesValidateCmd)
}

func runQueriesList(cmd *cobra.Command, args []string) error {
	store, err := buildStore(args)
	if err != nil {
		return err
	}

	for _, lang := range store.Languages() {
		set, _ := store.Set(lang)
		fmt.Printf("%s (%d definitions)\n", lang, set.Len())
		for _, def := range set.Definitions() {
			fmt.Printf("  %-44s %-10s %s\n", def.Handler, def.EntityType, def.Description)
		}
		fmt.Println()
	}

	return nil
}

func runQueriesValidate(cmd *cobra.Command, args []string) error {
	store, err := buildStore(args)
	if err != nil {
		return err
	}

	failures := 0
	for _, lang := range store.Languages() {
		set, _ := store.Set(lang)

		grammar, ok := parsers.Lookup(lang)
		if !ok {
			fmt.Printf("- %s: no grammar, %d definitions not compiled\n", lang, set.Len())
			continue
		}

		// Compilation stops at the first broken definition, the same
		// way extraction startup does
		eng, err := engine.New(set, grammar)
		if err != nil {
			failures++
			fmt.Printf("✗ %s: %v\n", lang, err)
			continue
		}
		eng.Close()
		fmt.Printf("✓ %s: %d definitions compile\n", lang, set.Len())
	}

	if failures > 0 {
		return fmt.Errorf("%d language set(s) failed validation", failures)
	}
	return nil
}
