// Package selection implements backward feature elimination for
// proportional hazards regression.
//
// Two procedures are provided.  EliminateByAIC searches exhaustively
// over the subsets obtained by dropping one candidate feature at a
// time, and accepts the best subset only if it improves the partial
// AIC by more than a fixed margin.  EliminateByPValue greedily removes
// the candidate with the largest Wald p-value until every remaining
// candidate is significant, then refits the surviving set.
//
// Features whose names match the mandatory rule (by default, names
// containing "age" or "sex", ignoring case) are never removed.  The rule
// is evaluated afresh on every call.
//
// Models are produced by a Fitter.  PHFitter fits Cox models using the
// duration package; tests and other callers may supply their own.
package selection
