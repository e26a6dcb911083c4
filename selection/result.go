package selection

// Result is the outcome of an elimination.
type Result struct {

	// Features are the retained covariates.  EliminateByAIC lists the
	// candidates before the mandatory features, EliminateByPValue the
	// mandatory features first.
	Features []string

	// Model is the fit on Features.
	Model Model

	// Mandatory are the protected covariates.
	Mandatory []string

	// Rounds is the number of search rounds that were run.
	Rounds int

	// Fits is the total number of fits.
	Fits int

	// Removed lists the eliminated features in removal order.
	Removed []string
}
