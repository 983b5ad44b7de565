package smoke

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/kuitang/inventory-smoke/internal/errs"
)

// Outcome is how a case ended.
type Outcome string

const (
	OutcomePass  Outcome = "pass"
	OutcomeFail  Outcome = "fail"
	OutcomeError Outcome = "error"
	OutcomeSkip  Outcome = "skip"
)

func outcomeOf(err error) Outcome {
	switch {
	case err == nil:
		return OutcomePass
	case errs.IsAssertion(err):
		return OutcomeFail
	default:
		return OutcomeError
	}
}

// Result records one case.
type Result struct {
	Name        string
	Outcome     Outcome
	Err         error
	Duration    time.Duration
	Screenshots []string
}

// Summary aggregates a run.
type Summary struct {
	RunID    string
	Started  time.Time
	Finished time.Time
	Results  []Result
	// Screenshots lists every artifact written during the run, in first-write order.
	Screenshots []string
	// Interrupted is set when the run context was cancelled before the run finished.
	Interrupted bool
}

// Count returns how many cases ended with o.
func (s *Summary) Count(o Outcome) int {
	n := 0
	for _, r := range s.Results {
		if r.Outcome == o {
			n++
		}
	}
	return n
}

// Executed counts the cases that ran, i.e. everything but skips.
func (s *Summary) Executed() int {
	return len(s.Results) - s.Count(OutcomeSkip)
}

// SuccessRate is passed/executed as a percentage, or 0 when nothing ran.
func (s *Summary) SuccessRate() float64 {
	executed := s.Executed()
	if executed == 0 {
		return 0
	}
	return float64(s.Count(OutcomePass)) / float64(executed) * 100
}

// OK reports whether the run finished and no case failed or errored.
func (s *Summary) OK() bool {
	return !s.Interrupted && s.Count(OutcomeFail) == 0 && s.Count(OutcomeError) == 0
}

// Problems returns the failed and errored results.
func (s *Summary) Problems() []Result {
	var out []Result
	for _, r := range s.Results {
		if r.Outcome == OutcomeFail || r.Outcome == OutcomeError {
			out = append(out, r)
		}
	}
	return out
}

// Print writes the end-of-run summary.
func (s *Summary) Print(w io.Writer) {
	line := strings.Repeat("=", 70)
	fmt.Fprintf(w, "\n%s\nFINAL TEST EXECUTION SUMMARY\n%s\n", line, line)
	fmt.Fprintf(w, "Run ID: %s\n", s.RunID)
	fmt.Fprintf(w, "Total Tests Run: %d\n", s.Executed())
	fmt.Fprintf(w, "Passed: %d\n", s.Count(OutcomePass))
	fmt.Fprintf(w, "Failed: %d\n", s.Count(OutcomeFail))
	fmt.Fprintf(w, "Errors: %d\n", s.Count(OutcomeError))
	if skipped := s.Count(OutcomeSkip); skipped > 0 {
		fmt.Fprintf(w, "Skipped: %d\n", skipped)
	}
	fmt.Fprintf(w, "Success Rate: %.1f%%\n", s.SuccessRate())
	if s.Interrupted {
		fmt.Fprintln(w, "Interrupted: run cancelled before all cases finished")
	}
	fmt.Fprintln(w, line)

	for _, r := range s.Problems() {
		fmt.Fprintf(w, "%s: %s\n    %v\n", strings.ToUpper(string(r.Outcome)), r.Name, r.Err)
	}

	fmt.Fprintln(w, "\nSCREENSHOTS GENERATED:")
	if len(s.Screenshots) == 0 {
		fmt.Fprintln(w, "   (none)")
		return
	}
	for i, name := range s.Screenshots {
		fmt.Fprintf(w, "   %d. %s\n", i+1, name)
	}
}
