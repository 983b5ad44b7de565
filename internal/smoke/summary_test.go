package smoke

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/kuitang/inventory-smoke/internal/errs"
)

var allOutcomes = []Outcome{OutcomePass, OutcomeFail, OutcomeError, OutcomeSkip}

func testSuccessRate_IsPassedOverExecuted(t *rapid.T) {
	outcomes := rapid.SliceOf(rapid.SampledFrom(allOutcomes)).Draw(t, "outcomes")
	sum := &Summary{}
	passed, executed := 0, 0
	for i, o := range outcomes {
		sum.Results = append(sum.Results, Result{Name: fmt.Sprintf("case_%d", i), Outcome: o})
		if o != OutcomeSkip {
			executed++
		}
		if o == OutcomePass {
			passed++
		}
	}

	rate := sum.SuccessRate()
	if rate < 0 || rate > 100 {
		t.Fatalf("rate %v out of range", rate)
	}
	if executed == 0 {
		if rate != 0 {
			t.Fatalf("rate with nothing executed = %v", rate)
		}
		return
	}
	want := float64(passed) / float64(executed) * 100
	if math.Abs(rate-want) > 1e-9 {
		t.Fatalf("rate = %v, want %v", rate, want)
	}
	if sum.OK() != (passed == executed) {
		t.Fatalf("OK() = %v with %d/%d passed", sum.OK(), passed, executed)
	}
}

func TestSuccessRate_IsPassedOverExecuted(t *testing.T) {
	t.Parallel()
	rapid.Check(t, testSuccessRate_IsPassedOverExecuted)
}

func TestOutcomeOf(t *testing.T) {
	t.Parallel()
	require.Equal(t, OutcomePass, outcomeOf(nil))
	require.Equal(t, OutcomeFail, outcomeOf(assertGreater(0, 0, "x")))
	require.Equal(t, OutcomeFail, outcomeOf(fmt.Errorf("wrapped: %w", assertPresent(false, "body"))))
	require.Equal(t, OutcomeError, outcomeOf(errors.New("browser crashed")))
	require.Equal(t, OutcomeError, outcomeOf(errs.New(errs.Timeout, "navigation timeout")))
}

func TestSummaryPrint(t *testing.T) {
	t.Parallel()
	sum := &Summary{
		RunID: "run-1",
		Results: []Result{
			{Name: "test_01_inventory_dashboard_loads", Outcome: OutcomePass},
			{Name: "test_02_inventory_form_interaction", Outcome: OutcomeFail, Err: assertGreater(0, 0, "Form should have input fields")},
			{Name: "test_03_inventory_api_navigation", Outcome: OutcomeSkip},
		},
		Screenshots: []string{ShotDashboardLoaded, "test2_error.png"},
	}

	var buf bytes.Buffer
	sum.Print(&buf)
	out := buf.String()
	require.Contains(t, out, "Total Tests Run: 2")
	require.Contains(t, out, "Passed: 1")
	require.Contains(t, out, "Failed: 1")
	require.Contains(t, out, "Skipped: 1")
	require.Contains(t, out, "Success Rate: 50.0%")
	require.Contains(t, out, "FAIL: test_02_inventory_form_interaction")
	require.Contains(t, out, "0 not greater than 0 : Form should have input fields")
	require.Contains(t, out, "   2. test2_error.png")
}

func TestSummaryPrint_NoScreenshots(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	(&Summary{}).Print(&buf)
	require.Contains(t, buf.String(), "Success Rate: 0.0%")
	require.Contains(t, buf.String(), "(none)")
}

func TestSummaryOK_InterruptedRunIsNotOK(t *testing.T) {
	t.Parallel()
	sum := &Summary{
		Results: []Result{
			{Name: "test_01_inventory_dashboard_loads", Outcome: OutcomePass},
			{Name: "test_02_inventory_form_interaction", Outcome: OutcomeSkip},
		},
	}
	require.True(t, sum.OK())

	sum.Interrupted = true
	require.False(t, sum.OK())
	require.InDelta(t, 100.0, sum.SuccessRate(), 0.001)

	var buf bytes.Buffer
	sum.Print(&buf)
	require.Contains(t, buf.String(), "Interrupted: run cancelled before all cases finished")
}
