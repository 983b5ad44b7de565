package browser

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kuitang/inventory-smoke/internal/artifacts"
	sbrowser "github.com/kuitang/inventory-smoke/internal/browser"
	"github.com/kuitang/inventory-smoke/internal/report"
	"github.com/kuitang/inventory-smoke/internal/smoke"
)

var pngMagic = []byte("\x89PNG\r\n\x1a\n")

func smokeOptions(site *FixtureSite, console io.Writer) smoke.Options {
	return smoke.Options{
		FrontendURL:   site.FrontendURL,
		BackendURL:    site.BackendURL,
		ImplicitWait:  browserMaxTimeout,
		SettleTimeout: browserMaxTimeout,
		PollInterval:  browserPollEvery,
		Launch: sbrowser.LaunchOptions{
			Browser:        sbrowser.Chromium,
			Headless:       true,
			ViewportWidth:  1280,
			ViewportHeight: 800,
		},
		Console: console,
		RunID:   "e2e",
	}
}

// TestQuick_FixtureServesInventory checks the fixture without a browser.
func TestQuick_FixtureServesInventory(t *testing.T) {
	site := NewFixtureSite(t, false)

	resp, err := http.Get(site.BackendURL + smoke.DefaultAPIPath)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, string(body), `"inventory"`)

	resp, err = http.Get(site.FrontendURL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err = io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), "<title>Inventory Manager</title>")
}

func TestPlaywrightSession_Lookups(t *testing.T) {
	RequirePlaywright(t)
	site := NewFixtureSite(t, false)
	ctx := context.Background()

	s, err := sbrowser.PlaywrightDriver{}.Open(ctx, smokeOptions(site, io.Discard).Launch)
	require.NoError(t, err)
	defer s.Close()
	s.SetDefaultTimeout(browserMaxTimeout)

	require.NoError(t, s.Navigate(ctx, site.FrontendURL))
	title, err := s.Title(ctx)
	require.NoError(t, err)
	require.Equal(t, "Inventory Manager", title)

	h1, found, err := sbrowser.First(ctx, s, sbrowser.Tag("h1"))
	require.NoError(t, err)
	require.True(t, found)
	text, err := sbrowser.TrimmedText(ctx, h1)
	require.NoError(t, err)
	require.Equal(t, "Inventory Dashboard", text)

	_, found, err = sbrowser.First(ctx, s, sbrowser.Tag("video"))
	require.NoError(t, err)
	require.False(t, found, "absence is not an error")

	link, found, err := sbrowser.First(ctx, s, sbrowser.LinkText("Products"))
	require.NoError(t, err)
	require.True(t, found)
	require.NoError(t, link.Click(ctx))
	require.NoError(t, sbrowser.WaitUntil(ctx, browserMaxTimeout, browserPollEvery, sbrowser.URLChanged(s, site.FrontendURL)))
	require.True(t, strings.HasSuffix(s.URL(), "/products"))

	require.NoError(t, s.Back(ctx))
	require.NoError(t, sbrowser.WaitUntil(ctx, browserMaxTimeout, browserPollEvery, sbrowser.URLIs(s, site.FrontendURL)))

	shot, err := s.Screenshot(ctx)
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(shot, pngMagic))
}

func TestSmokeRun_FixturePasses(t *testing.T) {
	RequirePlaywright(t)
	site := NewFixtureSite(t, false)
	ctx := context.Background()

	store, err := artifacts.NewStore(t.TempDir())
	require.NoError(t, err)
	var console bytes.Buffer

	sum, err := smoke.Run(ctx, sbrowser.PlaywrightDriver{}, smokeOptions(site, &console), store, smoke.DefaultCases())
	require.NoError(t, err)
	require.True(t, sum.OK(), "console:\n%s", console.String())
	require.Equal(t, 3, sum.Count(smoke.OutcomePass))

	require.Equal(t, []string{
		smoke.ShotDashboardLoaded,
		smoke.ShotBeforeForm,
		smoke.ShotFormFilled,
		smoke.ShotNavigation,
		smoke.ShotAPIResponse,
	}, sum.Screenshots)
	for _, name := range sum.Screenshots {
		data, err := os.ReadFile(filepath.Join(store.Dir(), name))
		require.NoError(t, err)
		require.True(t, bytes.HasPrefix(data, pngMagic), "%s is not a PNG", name)
	}

	out := console.String()
	require.Contains(t, out, "Found 1 table(s)")
	require.Contains(t, out, "Filled 'name': iphone")
	require.Contains(t, out, "Navigation back successful")
	require.Contains(t, out, "API endpoint accessible")

	require.NoError(t, report.Write(ctx, store, sum, report.Meta{FrontendURL: site.FrontendURL, BackendURL: site.BackendURL}))
	page, err := os.ReadFile(filepath.Join(store.Dir(), report.HTMLName))
	require.NoError(t, err)
	require.Contains(t, string(page), "test_03_inventory_api_navigation")
}

func TestSmokeRun_BlankFrontendFails(t *testing.T) {
	RequirePlaywright(t)
	site := NewFixtureSite(t, true)

	store, err := artifacts.NewStore(t.TempDir())
	require.NoError(t, err)

	sum, err := smoke.Run(context.Background(), sbrowser.PlaywrightDriver{}, smokeOptions(site, io.Discard), store, smoke.DefaultCases())
	require.NoError(t, err)
	require.False(t, sum.OK())

	// An empty <title> still has a body, so only the form and navigation
	// cases fail.
	outcomes := make([]smoke.Outcome, 0, len(sum.Results))
	for _, r := range sum.Results {
		outcomes = append(outcomes, r.Outcome)
	}
	require.Equal(t, []smoke.Outcome{smoke.OutcomePass, smoke.OutcomeFail, smoke.OutcomeFail}, outcomes)
	require.Contains(t, sum.Screenshots, smoke.ShotDashboardLoaded)
	require.Contains(t, sum.Screenshots, "test2_error.png")
	require.NotContains(t, sum.Screenshots, "test1_error.png")
	require.InDelta(t, 33.3, sum.SuccessRate(), 0.1)
}

func TestSmokeRun_UnreachableFrontendErrors(t *testing.T) {
	RequirePlaywright(t)
	site := NewFixtureSite(t, false)
	site.Server.Close()

	store, err := artifacts.NewStore(t.TempDir())
	require.NoError(t, err)

	sum, err := smoke.Run(context.Background(), sbrowser.PlaywrightDriver{}, smokeOptions(site, io.Discard), store, smoke.DefaultCases())
	require.NoError(t, err)
	require.Equal(t, 3, sum.Count(smoke.OutcomeError))
}
