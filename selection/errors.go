package selection

import (
	"fmt"
	"strings"
)

// FitInstabilityError indicates that a fit did not produce a usable
// p-value for a candidate feature, for example because the Hessian was
// singular or the fitter dropped a collinear column.
type FitInstabilityError struct {
	Feature string
}

func (e *FitInstabilityError) Error() string {
	return fmt.Sprintf("no usable p-value for feature '%s'", e.Feature)
}

// FitError reports a failed fit together with the elimination context in
// which it occurred.  Err holds the cause.
type FitError struct {
	Method   Method
	Round    int
	Features []string
	Err      error
}

func (e *FitError) Error() string {
	return fmt.Sprintf("%s elimination, round %d, features [%s]: %v",
		e.Method, e.Round, strings.Join(e.Features, ", "), e.Err)
}

func (e *FitError) Unwrap() error {
	return e.Err
}
