package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "quarry",
	Short: "Quarry - structural entity extraction for source code",
	Long: `Quarry extracts a catalog of code entities (functions, methods, types,
constants and more) from source trees by running declarative tree-sitter
queries against parsed syntax trees.

Extraction is driven by query definition files (.scm): each definition
carries metadata annotations naming its handler and the entity type it
produces. Bundled definitions cover Rust, Python and TypeScript; user
query directories can extend them without recompiling.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
