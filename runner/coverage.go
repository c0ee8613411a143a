package runner

// Coverage is the instrumentation collaborator. The lifecycle calls Begin
// immediately before a unit's body runs and End immediately after,
// regardless of outcome; Persist is called once per pool worker when it
// stops (the sequential path and child processes persist once each).
// Collaborator failures must never abort the run, so implementations are
// expected to swallow their own errors or return them for logging only.
type Coverage interface {
	Begin()
	End()
	Persist() error
}

// NopCoverage is the default collaborator when no instrumentation is
// configured.
type NopCoverage struct{}

func (NopCoverage) Begin()         {}
func (NopCoverage) End()           {}
func (NopCoverage) Persist() error { return nil }
