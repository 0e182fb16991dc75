package polycrys

import (
	"fmt"
)

// InputStatisticsError reports a malformed or degenerate distribution table.
// It is not recoverable for the current run.
type InputStatisticsError struct {
	Table  string
	Row    int
	Reason string
}

func (e *InputStatisticsError) Error() string {
	if e.Row < 0 {
		return fmt.Sprintf("table '%s': %s", e.Table, e.Reason)
	}
	return fmt.Sprintf("table '%s', row %d: %s", e.Table, e.Row, e.Reason)
}

// GeometryDegeneracyError reports a grain whose shape parameters or axis
// system cannot be used for containment tests. It is not recoverable.
type GeometryDegeneracyError struct {
	Grain  int
	Reason string
}

func (e *GeometryDegeneracyError) Error() string {
	return fmt.Sprintf("grain %d: degenerate geometry: %s", e.Grain, e.Reason)
}

// PackingExhaustionError is a warning: some grains could not be placed,
// either because the domain filled up or because their seed budget ran out.
// Relaxing the overlap allowance or reducing the grain count usually helps.
type PackingExhaustionError struct {
	Unplaced []int
	// UnfilledFraction is the fraction of fine voxels no grain claimed.
	UnfilledFraction float64
	Reason           string
}

func (e *PackingExhaustionError) Error() string {
	return fmt.Sprintf(
		"%d grains left unplaced (%s); %.2f%% of the domain unclaimed",
		len(e.Unplaced), e.Reason, 100*e.UnfilledFraction,
	)
}

// CoverageError is a warning: gap filling converged with voxels that have
// no route to any assigned grain.
type CoverageError struct {
	Unassigned int
	Fraction   float64
	Sweeps     int
}

func (e *CoverageError) Error() string {
	return fmt.Sprintf(
		"%d voxels (%.2f%%) still unassigned after %d sweeps",
		e.Unassigned, 100*e.Fraction, e.Sweeps,
	)
}

// ConvergenceWarning reports that an annealing stage ran out of passes
// before reaching its target. Approximate matches are an accepted outcome.
type ConvergenceWarning struct {
	Stage    string
	Passes   int
	Residual float64
}

func (e *ConvergenceWarning) Error() string {
	return fmt.Sprintf(
		"%s annealing stopped after %d passes with residual %.4g",
		e.Stage, e.Passes, e.Residual,
	)
}
