package domain

// StepFailure records one skipped unit of work inside a discovery request:
// a suggested title that could not be resolved, a keyword search that
// errored, or an upsert that failed. The request itself still succeeds.
type StepFailure struct {
	Stage   string `json:"stage"`
	Subject string `json:"subject"`
	Error   string `json:"error"`
}

// DiscoveryResult is the outcome of one keyword search request: the movies
// that were discovered and persisted, plus every per-step failure that was
// swallowed along the way. Callers decide whether to surface the failures.
type DiscoveryResult struct {
	Movies   []Movie       `json:"movies"`
	Failures []StepFailure `json:"failures,omitempty"`
}
