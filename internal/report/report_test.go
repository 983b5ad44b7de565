package report

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kuitang/inventory-smoke/internal/artifacts"
	"github.com/kuitang/inventory-smoke/internal/errs"
	"github.com/kuitang/inventory-smoke/internal/smoke"
)

func sampleSummary() *smoke.Summary {
	start := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	return &smoke.Summary{
		RunID:    "run-7",
		Started:  start,
		Finished: start.Add(1500 * time.Millisecond),
		Results: []smoke.Result{
			{Name: "test_01_inventory_dashboard_loads", Outcome: smoke.OutcomePass, Duration: 400 * time.Millisecond},
			{
				Name:     "test_02_inventory_form_interaction",
				Outcome:  smoke.OutcomeFail,
				Err:      errs.New(errs.AssertionFailed, "0 not greater than 0 : Form should have input fields"),
				Duration: 300 * time.Millisecond,
			},
			{
				Name:    "test_03_inventory_api_navigation",
				Outcome: smoke.OutcomeError,
				Err:     errors.New("click a|b:\n<img src=x onerror=alert(1)>"),
			},
		},
		Screenshots: []string{smoke.ShotDashboardLoaded, "test2_error.png"},
	}
}

func TestMarkdown_TableAndScreenshots(t *testing.T) {
	t.Parallel()
	md := Markdown(sampleSummary(), Meta{FrontendURL: "http://localhost:5173", BackendURL: "http://localhost:5000", Browser: "chromium"})

	require.Contains(t, md, "# Inventory smoke run run-7")
	require.Contains(t, md, "- Duration: 1.5s")
	require.Contains(t, md, "**FAIL** (1 passed, 1 failed, 1 errors, 0 skipped; success rate 33.3%)")
	require.Contains(t, md, "| test_02_inventory_form_interaction | fail | 300ms | 0 not greater than 0 : Form should have input fields |")
	require.Contains(t, md, `click a\|b: <img`, "pipes and newlines must not break the table row")
	require.Contains(t, md, "- [test2_error.png](test2_error.png)")
}

func TestMarkdown_LinksThroughMeta(t *testing.T) {
	t.Parallel()
	md := Markdown(sampleSummary(), Meta{Link: func(name string) string {
		return "https://bucket.example/runs/run-7/" + name
	}})
	require.Contains(t, md, "(https://bucket.example/runs/run-7/test2_error.png)")
}

func TestRenderHTML_SanitizesPageText(t *testing.T) {
	t.Parallel()
	md := Markdown(sampleSummary(), Meta{})
	out := string(RenderHTML(md, `Run <b>7</b>`))

	require.Contains(t, out, "<table>")
	require.Contains(t, out, "test_02_inventory_form_interaction")
	require.NotContains(t, out, "onerror")
	require.Contains(t, out, "<title>Run &lt;b&gt;7&lt;/b&gt;</title>")
}

func TestWrite_SavesBothFormats(t *testing.T) {
	t.Parallel()
	store, err := artifacts.NewStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, Write(context.Background(), store, sampleSummary(), Meta{}))
	require.Equal(t, []string{MarkdownName, HTMLName}, store.Saved())

	page, err := os.ReadFile(filepath.Join(store.Dir(), HTMLName))
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(string(page), "<!DOCTYPE html>"))
}

func TestMarkdown_InterruptedRunIsFail(t *testing.T) {
	t.Parallel()
	sum := &smoke.Summary{
		RunID:       "run-8",
		Results:     []smoke.Result{{Name: "test_01_inventory_dashboard_loads", Outcome: smoke.OutcomePass}},
		Interrupted: true,
	}
	md := Markdown(sum, Meta{})
	require.Contains(t, md, "**FAIL**")
	require.Contains(t, md, "**Interrupted:**")
}
