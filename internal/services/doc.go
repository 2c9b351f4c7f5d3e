// Package services holds the error taxonomy and shared helpers used by the
// provider clients and pipeline stages.
//
// Stage failures are wrapped with one of the exported sentinel errors so the
// pipeline runner and scheduler can classify them without string matching:
// configuration problems skip the channel, transient faults are retried with
// backoff, validation findings are logged as risks, and budget/timeout
// outcomes terminate the job without spending retry budget.
package services
