package smoke

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kuitang/inventory-smoke/internal/artifacts"
	"github.com/kuitang/inventory-smoke/internal/browser/browsertest"
	"github.com/kuitang/inventory-smoke/internal/errs"
)

const (
	testFrontend = "http://frontend.test/"
	testBackend  = "http://backend.test"
	testAPI      = "http://backend.test/api/inventory"
)

type harness struct {
	driver  *browsertest.Driver
	store   *artifacts.Store
	console *bytes.Buffer
	opts    Options
}

func newHarness(t *testing.T, site browsertest.Site) *harness {
	t.Helper()
	store, err := artifacts.NewStore(t.TempDir())
	require.NoError(t, err)
	console := &bytes.Buffer{}
	return &harness{
		driver:  &browsertest.Driver{Site: site},
		store:   store,
		console: console,
		opts: Options{
			FrontendURL:   testFrontend,
			BackendURL:    testBackend,
			SettleTimeout: 50 * time.Millisecond,
			PollInterval:  time.Millisecond,
			Console:       console,
			RunID:         "run-test",
		},
	}
}

// runCheck opens a suite and runs a single check against it.
func (h *harness) runCheck(t *testing.T, check func(context.Context, *Suite) error) error {
	t.Helper()
	s, err := Open(context.Background(), h.driver, h.opts, h.store)
	require.NoError(t, err)
	defer s.Close()
	return check(context.Background(), s)
}

func (h *harness) session(t *testing.T) *browsertest.Session {
	t.Helper()
	sessions := h.driver.Sessions()
	require.Len(t, sessions, 1)
	return sessions[0]
}

// staticInventoryPage has one table, one button and one text input.
func staticInventoryPage() *browsertest.Page {
	return &browsertest.Page{
		Title: "Inventory Dashboard",
		Nodes: []*browsertest.Node{
			{Tag: "h1", Text: "Inventory"},
			{Tag: "table", Text: "SKU Name Qty"},
			{Tag: "button", Text: "Refresh"},
			{Tag: "input", Attrs: map[string]string{"type": "text", "name": "productName"}},
		},
	}
}

func titleOnlyPage() *browsertest.Page {
	return &browsertest.Page{Title: "Inventory"}
}

func TestDashboardLoads_TitleOnlyPasses(t *testing.T) {
	t.Parallel()
	h := newHarness(t, browsertest.Site{testFrontend: titleOnlyPage()})

	require.NoError(t, h.runCheck(t, DashboardLoads))
	require.FileExists(t, filepath.Join(h.store.Dir(), ShotDashboardLoaded))
	require.Contains(t, h.console.String(), "Found 0 button(s) on dashboard")
}

func TestDashboardLoads_EmptyTitlePasses(t *testing.T) {
	t.Parallel()
	for _, title := range []string{"", "  "} {
		h := newHarness(t, browsertest.Site{testFrontend: {Title: title}})

		require.NoError(t, h.runCheck(t, DashboardLoads), "title %q", title)
		require.FileExists(t, filepath.Join(h.store.Dir(), ShotDashboardLoaded))
		require.Contains(t, h.console.String(), "RESULT: Dashboard loaded successfully")
	}
}

func TestDashboardLoads_TitleReadErrorIsNotAssertion(t *testing.T) {
	t.Parallel()
	h := newHarness(t, browsertest.Site{
		testFrontend: {Title: "x", TitleErr: errs.New(errs.Unavailable, "target closed")},
	})

	err := h.runCheck(t, DashboardLoads)
	require.Error(t, err)
	require.False(t, errs.IsAssertion(err))
	require.Equal(t, OutcomeError, outcomeOf(err))
}

func TestDashboardLoads_UnreachableFrontend(t *testing.T) {
	t.Parallel()
	h := newHarness(t, browsertest.Site{})

	err := h.runCheck(t, DashboardLoads)
	require.Equal(t, errs.Unavailable, errs.CodeOf(err))
}

func TestFormInteraction_NoFieldsFails(t *testing.T) {
	t.Parallel()
	h := newHarness(t, browsertest.Site{testFrontend: titleOnlyPage()})

	err := h.runCheck(t, FormInteraction)
	require.True(t, errs.IsAssertion(err), "got %v", err)
	require.Contains(t, err.Error(), "Form should have input fields")
	require.FileExists(t, filepath.Join(h.store.Dir(), ShotBeforeForm))
	require.NoFileExists(t, filepath.Join(h.store.Dir(), ShotFormFilled))
}

func TestFormInteraction_FillsByPosition(t *testing.T) {
	t.Parallel()
	fields := []*browsertest.Node{
		{Tag: "input", Attrs: map[string]string{"type": "hidden", "name": "csrf"}},
		{Tag: "input", Attrs: map[string]string{"type": "number", "name": "quantity"}},
		{Tag: "input", Attrs: map[string]string{"placeholder": "Price"}},
		{Tag: "input", Attrs: map[string]string{"type": "checkbox", "name": "active"}},
		{Tag: "input", Attrs: map[string]string{"type": "text", "name": "notes"}},
		{Tag: "select", Attrs: map[string]string{"name": "category"}},
	}
	page := &browsertest.Page{Title: "Inventory"}
	page.Nodes = []*browsertest.Node{{
		Tag:  "button",
		Text: "Add Item",
		OnClick: func(p *browsertest.Page) {
			p.Nodes = append(p.Nodes, fields...)
		},
	}}
	h := newHarness(t, browsertest.Site{testFrontend: page})

	require.NoError(t, h.runCheck(t, FormInteraction))

	require.Empty(t, fields[0].Value, "hidden input is skipped")
	require.Equal(t, "100", fields[1].Value)
	require.Equal(t, "29.99", fields[2].Value)
	require.Empty(t, fields[3].Value, "checkbox is skipped")
	require.Empty(t, fields[4].Value, "only the first four inputs are filled")

	out := h.console.String()
	require.Contains(t, out, "Clicked Add button")
	require.Contains(t, out, "Filled 'Price': 29.99")
	require.Contains(t, out, "Found submit button: 'Add Item'")
	require.FileExists(t, filepath.Join(h.store.Dir(), ShotFormFilled))
}

func TestFormInteraction_FillErrorsAreSwallowed(t *testing.T) {
	t.Parallel()
	broken := &browsertest.Node{Tag: "input", FillErr: errors.New("element is not editable")}
	ok := &browsertest.Node{Tag: "input", Attrs: map[string]string{"name": "qty"}}
	h := newHarness(t, browsertest.Site{
		testFrontend: {Title: "Inventory", Nodes: []*browsertest.Node{broken, ok}},
	})

	require.NoError(t, h.runCheck(t, FormInteraction))
	require.Equal(t, "100", ok.Value)
}

func TestNavigationAndAPI_NoLinksOrButtonsFails(t *testing.T) {
	t.Parallel()
	h := newHarness(t, browsertest.Site{testFrontend: titleOnlyPage()})

	err := h.runCheck(t, NavigationAndAPI)
	require.True(t, errs.IsAssertion(err), "got %v", err)
	require.Contains(t, err.Error(), "Page should have navigation elements")
	require.Contains(t, h.console.String(), "API endpoint test skipped")
}

func TestNavigationAndAPI_FollowsFirstLinkAndProbesAPI(t *testing.T) {
	t.Parallel()
	h := newHarness(t, browsertest.Site{
		testFrontend: {Title: "Inventory", Nodes: []*browsertest.Node{
			{Tag: "a", Text: " ", Attrs: map[string]string{"href": "/logo"}},
			{Tag: "a", Text: "Products", Attrs: map[string]string{"href": "/products"}},
			{Tag: "a", Text: "Reports", Attrs: map[string]string{"href": "/reports"}},
		}},
		"http://frontend.test/products": {Title: "Products"},
		testAPI:                         {Source: `{"items":[]}`},
	})

	require.NoError(t, h.runCheck(t, NavigationAndAPI))

	s := h.session(t)
	require.Equal(t, []string{
		testFrontend,
		"http://frontend.test/products",
		testAPI,
		testFrontend,
	}, s.Visited)
	require.Equal(t, testFrontend, s.URL())

	out := h.console.String()
	require.Contains(t, out, "Linked sections: products, reports")
	require.Contains(t, out, "Navigation back successful")
	require.Contains(t, out, `matched "{"`)
	require.FileExists(t, filepath.Join(h.store.Dir(), ShotNavigation))
	require.FileExists(t, filepath.Join(h.store.Dir(), ShotAPIResponse))
}

func TestNavigationAndAPI_ClicksDiscoveredLink(t *testing.T) {
	t.Parallel()
	// Normalizing this text gives "Stock List", which no longer equals the
	// trimmed text that was listed.
	h := newHarness(t, browsertest.Site{
		testFrontend: {Title: "Inventory", Nodes: []*browsertest.Node{
			{Tag: "a", Text: "  Stock\n   List ", Attrs: map[string]string{"href": "/stock"}},
		}},
		"http://frontend.test/stock": {Title: "Stock"},
		testAPI:                      {Source: `{"items":[]}`},
	})

	require.NoError(t, h.runCheck(t, NavigationAndAPI))

	s := h.session(t)
	require.Equal(t, []string{
		testFrontend,
		"http://frontend.test/stock",
		testAPI,
		testFrontend,
	}, s.Visited)
	out := h.console.String()
	require.Contains(t, out, "Navigated to: http://frontend.test/stock")
	require.Contains(t, out, "Navigation back successful")
	require.NotContains(t, out, "Navigation click skipped")
}

func TestNavigationAndAPI_UnreachableAPIReturnsToFrontend(t *testing.T) {
	t.Parallel()
	h := newHarness(t, browsertest.Site{
		testFrontend: {Title: "Inventory", Nodes: []*browsertest.Node{{Tag: "button", Text: "Refresh"}}},
	})

	require.NoError(t, h.runCheck(t, NavigationAndAPI))
	require.Contains(t, h.console.String(), "API endpoint test skipped")

	s := h.session(t)
	require.Equal(t, []string{testFrontend, testFrontend}, s.Visited, "front end is reloaded after the failed API load")
	require.Equal(t, testFrontend, s.URL())
}

func TestNavigationAndAPI_UnrecognizedAPIResponse(t *testing.T) {
	t.Parallel()
	h := newHarness(t, browsertest.Site{
		testFrontend: {Title: "Inventory", Nodes: []*browsertest.Node{{Tag: "button", Text: "Refresh"}}},
		testAPI:      {Source: "<html><body>Cannot GET</body></html>"},
	})

	require.NoError(t, h.runCheck(t, NavigationAndAPI))
	require.Contains(t, h.console.String(), "API response format not recognized")
	require.NoFileExists(t, filepath.Join(h.store.Dir(), ShotAPIResponse))
	require.Equal(t, testFrontend, h.session(t).URL())
}

func TestAPIURL_JoinsPath(t *testing.T) {
	t.Parallel()
	tests := []struct {
		backend string
		path    string
		want    string
	}{
		{backend: "http://localhost:5000", path: "", want: "http://localhost:5000/api/inventory"},
		{backend: "http://localhost:5000/", path: "/api/v1/products", want: "http://localhost:5000/api/v1/products"},
		{backend: "http://api.test", path: "health", want: "http://api.test/health"},
	}
	for _, tc := range tests {
		s := &Suite{opts: Options{BackendURL: tc.backend, APIPath: tc.path}.withDefaults()}
		require.Equal(t, tc.want, s.APIURL())
	}
}

func TestSuiteClose_Idempotent(t *testing.T) {
	t.Parallel()
	h := newHarness(t, browsertest.Site{})
	s, err := Open(context.Background(), h.driver, h.opts, h.store)
	require.NoError(t, err)

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	require.Equal(t, 1, h.session(t).Closed)
}

func TestOpen_AppliesImplicitWait(t *testing.T) {
	t.Parallel()
	h := newHarness(t, browsertest.Site{})
	h.opts.ImplicitWait = 3 * time.Second
	s, err := Open(context.Background(), h.driver, h.opts, h.store)
	require.NoError(t, err)
	defer s.Close()

	fake := h.session(t)
	require.Equal(t, 3*time.Second, fake.DefaultTimeout)
	require.Equal(t, 3*time.Second, fake.Launch.ImplicitWait)
	require.Contains(t, h.console.String(), "Frontend URL: "+testFrontend)
}

func TestScreenshotFailureIsCaseError(t *testing.T) {
	t.Parallel()
	h := newHarness(t, browsertest.Site{testFrontend: titleOnlyPage()})
	h.driver.ScreenshotErr = errs.New(errs.Unavailable, "page crashed")

	err := h.runCheck(t, DashboardLoads)
	require.Error(t, err)
	require.Equal(t, OutcomeError, outcomeOf(err))
	_, statErr := os.Stat(filepath.Join(h.store.Dir(), ShotDashboardLoaded))
	require.True(t, os.IsNotExist(statErr))
}
