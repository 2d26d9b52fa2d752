package backport

// Outcome classifies what happened to one (staged file, version) pair
type Outcome string

const (
	// OutcomeCopied means the destination did not exist and got a byte copy
	OutcomeCopied Outcome = "copied"
	// OutcomePatched means the destination existed and the patch applied
	OutcomePatched Outcome = "patched"
	// OutcomeNoChanges means the destination already matched the source
	OutcomeNoChanges Outcome = "no-changes"
	// OutcomePatchFailed means a hunk did not apply; a reject was left behind
	OutcomePatchFailed Outcome = "patch-failed"
	// OutcomeSkipped means the staged file was gone from disk
	OutcomeSkipped Outcome = "skipped"
	// OutcomeError means a per-pair I/O or mapping failure
	OutcomeError Outcome = "error"
)

// Result is the outcome of one (staged file, version) pair. Each pair is
// computed exactly once and never retried.
type Result struct {
	Source  string // staged path, relative to the project root
	Version string // target version identifier
	Dest    string // destination path, relative to the project root
	Outcome Outcome
	Err     error // set for patch-failed and error outcomes
}

// Report collects the results of a run
type Report struct {
	Results []Result
}

func (r *Report) add(res Result) {
	r.Results = append(r.Results, res)
}

// Count returns the number of results with the given outcome
func (r *Report) Count(o Outcome) int {
	n := 0
	for _, res := range r.Results {
		if res.Outcome == o {
			n++
		}
	}
	return n
}

// Failed reports whether any pair ended in patch-failed or error
func (r *Report) Failed() bool {
	return r.Count(OutcomePatchFailed) > 0 || r.Count(OutcomeError) > 0
}
