package runner

// ProgressReporter provides callbacks for reporting batch extraction
// progress. Implementations can display progress bars, log messages, or
// remain silent.
type ProgressReporter interface {
	// OnDiscoveryStart is called when unit discovery begins.
	OnDiscoveryStart()

	// OnDiscoveryComplete is called when discovery finishes with the
	// number of units that will be extracted.
	OnDiscoveryComplete(units int)

	// OnExtractionStart is called before the worker pool starts.
	OnExtractionStart(totalUnits int)

	// OnUnitProcessed is called after each unit, whether it was
	// extracted, skipped, or failed.
	OnUnitProcessed(unitPath string)

	// OnComplete is called when the batch finishes.
	OnComplete(stats *Stats)
}

// NoOpProgressReporter is a progress reporter that does nothing.
// Used when progress reporting is disabled (e.g., --quiet flag).
type NoOpProgressReporter struct{}

func (n *NoOpProgressReporter) OnDiscoveryStart()                {}
func (n *NoOpProgressReporter) OnDiscoveryComplete(units int)    {}
func (n *NoOpProgressReporter) OnExtractionStart(totalUnits int) {}
func (n *NoOpProgressReporter) OnUnitProcessed(unitPath string)  {}
func (n *NoOpProgressReporter) OnComplete(stats *Stats)          {}
