package duration

import (
	"fmt"

	"gonum.org/v1/gonum/optimize"
)

// DataPreparationError indicates that the data passed to a model does
// not satisfy the model's preconditions (missing columns, non-finite
// values, invalid censoring codes, and so on).  It cannot be resolved by
// refitting.
type DataPreparationError struct {

	// Column is the offending column, empty if the problem is not
	// specific to one column.
	Column string

	// Reason describes the problem.
	Reason string
}

func (e *DataPreparationError) Error() string {
	if e.Column == "" {
		return fmt.Sprintf("data preparation: %s", e.Reason)
	}
	return fmt.Sprintf("data preparation: column '%s': %s", e.Column, e.Reason)
}

func prepErr(col, format string, args ...interface{}) error {
	return &DataPreparationError{Column: col, Reason: fmt.Sprintf(format, args...)}
}

// ConvergenceError indicates that the optimizer failed to find the
// maximum of the partial likelihood.
type ConvergenceError struct {

	// Status is the final status reported by the optimizer.
	Status optimize.Status

	// Err is the error reported by the optimizer, if any.
	Err error
}

func (e *ConvergenceError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("PHReg: optimization did not converge (status %v)", e.Status)
	}
	return fmt.Sprintf("PHReg: optimization did not converge (status %v): %v", e.Status, e.Err)
}

func (e *ConvergenceError) Unwrap() error {
	return e.Err
}
