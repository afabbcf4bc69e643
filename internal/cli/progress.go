package cli

import (
	"fmt"
	"log"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/quarry-dev/quarry/internal/runner"
)

// CLIProgressReporter implements progress reporting with progress bars.
type CLIProgressReporter struct {
	quiet     bool
	unitBar   *progressbar.ProgressBar
	startTime time.Time
}

// NewCLIProgressReporter creates a new CLI progress reporter.
func NewCLIProgressReporter(quiet bool) *CLIProgressReporter {
	return &CLIProgressReporter{
		quiet:     quiet,
		startTime: time.Now(),
	}
}

func (c *CLIProgressReporter) OnDiscoveryStart() {
	if c.quiet {
		return
	}
	log.Println("Discovering source units...")
}

func (c *CLIProgressReporter) OnDiscoveryComplete(units int) {
	if c.quiet {
		return
	}
	log.Printf("Extracting %d units\n", units)
	fmt.Println()
}

func (c *CLIProgressReporter) OnExtractionStart(totalUnits int) {
	if c.quiet {
		return
	}
	c.unitBar = progressbar.NewOptions(totalUnits,
		progressbar.OptionSetDescription("Extracting entities"),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("units/s"),
		progressbar.OptionThrottle(65*time.Millisecond),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionOnCompletion(func() {
			fmt.Println()
		}),
	)
}

func (c *CLIProgressReporter) OnUnitProcessed(unitPath string) {
	if c.quiet {
		return
	}
	if c.unitBar != nil {
		c.unitBar.Add(1)
	}
}

func (c *CLIProgressReporter) OnComplete(stats *runner.Stats) {
	if c.quiet {
		return
	}

	fmt.Println()
	fmt.Printf("✓ Extraction complete: %s entities in %.1fs\n",
		formatNumber(stats.Entities),
		stats.ProcessingTimeSeconds)
	fmt.Printf("  Extracted: %s units\n", formatNumber(stats.UnitsExtracted))
	fmt.Printf("  Skipped:   %s units\n", formatNumber(stats.UnitsSkipped))
	if stats.UnitsFailed > 0 {
		fmt.Printf("  Failed:    %s units\n", formatNumber(stats.UnitsFailed))
	}
	if stats.Warnings > 0 {
		fmt.Printf("  Warnings:  %s\n", formatNumber(stats.Warnings))
	}
}

// formatNumber formats integer with thousand separators.
// Examples: 1234 -> "1,234", 1234567 -> "1,234,567"
func formatNumber(n int) string {
	if n < 1000 {
		return fmt.Sprintf("%d", n)
	}

	str := fmt.Sprintf("%d", n)
	var result string
	for i, c := range str {
		if i > 0 && (len(str)-i)%3 == 0 {
			result += ","
		}
		result += string(c)
	}
	return result
}
