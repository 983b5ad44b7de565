package smoke

import (
	"context"
	"fmt"
	"strings"

	"github.com/kuitang/inventory-smoke/internal/browser"
	"github.com/kuitang/inventory-smoke/internal/errs"
	"github.com/kuitang/inventory-smoke/internal/logutil"
)

// Screenshot names. They are fixed so reruns overwrite the previous run.
const (
	ShotDashboardLoaded = "test1_inventory_dashboard_loaded.png"
	ShotBeforeForm      = "test2_dashboard_before_form.png"
	ShotFormFilled      = "test2_form_filled.png"
	ShotNavigation      = "test3_navigation_elements.png"
	ShotAPIResponse     = "test3_api_response.png"
)

const (
	maxFilledInputs  = 4
	maxListedLinks   = 10
	maxListedButtons = 5
	apiPreviewChars  = 256
)

// sampleValues are typed into form inputs by position.
var sampleValues = []string{"iphone", "100", "29.99", "SKU12345"}

var (
	addButton    = browser.Tag("button").WithText("Add", "add", "New", "Create")
	submitButton = browser.Tag("button").WithText("Submit", "Save", "Add").OrAttr("type", "submit")
)

// knownSections are inventory areas a dashboard usually links to.
var knownSections = []string{"dashboard", "inventory", "products", "items", "reports", "settings"}

// DashboardLoads checks that the front end serves a page with a body.
// Structural elements are counted for the log only.
func DashboardLoads(ctx context.Context, s *Suite) error {
	s.stepf(ctx, "\nTEST CASE 1: Inventory Dashboard Load Test\n%s", strings.Repeat("-", 70))

	s.stepf(ctx, "Step 1: Navigating to Inventory Dashboard...")
	if err := s.load(ctx, s.FrontendURL()); err != nil {
		return err
	}

	title, err := s.session.Title(ctx)
	if err != nil {
		return err
	}
	s.stepf(ctx, "Step 2: Page Title Retrieved: '%s'", title)
	if title == "" {
		// Only a failed title read fails this check.
		s.logger(ctx).Warn("empty_page_title", "url", s.session.URL())
	}

	s.stepf(ctx, "Step 3: Checking for dashboard elements...")
	_, found, err := browser.First(ctx, s.session, browser.Tag("body"))
	if err != nil {
		return err
	}
	if err := assertPresent(found, "Body element should be present"); err != nil {
		return err
	}
	s.stepf(ctx, "   Body element found")

	headers, err := s.session.FindAll(ctx, browser.Tag("h1"))
	if err != nil {
		return err
	}
	if len(headers) > 0 {
		text, err := browser.TrimmedText(ctx, headers[0])
		if err != nil {
			return err
		}
		s.stepf(ctx, "   Found %d H1 header(s): '%s'", len(headers), text)
	}

	navs, err := s.session.FindAll(ctx, browser.Tag("nav"))
	if err != nil {
		return err
	}
	if len(navs) > 0 {
		s.stepf(ctx, "   Found %d navigation element(s)", len(navs))
	}

	buttons, err := s.session.FindAll(ctx, browser.Tag("button"))
	if err != nil {
		return err
	}
	s.stepf(ctx, "   Found %d button(s) on dashboard", len(buttons))

	tables, err := s.session.FindAll(ctx, browser.Tag("table"))
	if err != nil {
		return err
	}
	if len(tables) > 0 {
		s.stepf(ctx, "   Found %d table(s) - Inventory list present", len(tables))
	}

	if err := s.screenshot(ctx, ShotDashboardLoaded); err != nil {
		return err
	}

	s.stepf(ctx, "\nRESULT: Dashboard loaded successfully")
	s.stepf(ctx, "   - Page Title: %s", title)
	s.stepf(ctx, "   - Headers: %d, Navigation: %d, Buttons: %d, Tables: %d", len(headers), len(navs), len(buttons), len(tables))
	return nil
}

// FormInteraction opens the add form when there is one, fills the first
// inputs with sample data and checks that the page has form fields. It never
// submits.
func FormInteraction(ctx context.Context, s *Suite) error {
	s.stepf(ctx, "\nTEST CASE 2: Inventory Form Interaction Test\n%s", strings.Repeat("-", 70))

	s.stepf(ctx, "Step 1: Navigating to Inventory Dashboard...")
	if err := s.load(ctx, s.FrontendURL()); err != nil {
		return err
	}
	if err := s.screenshot(ctx, ShotBeforeForm); err != nil {
		return err
	}

	s.stepf(ctx, "\nStep 2: Searching for form elements...")
	if err := s.openAddForm(ctx); err != nil {
		s.stepf(ctx, "   No Add button clicked")
		s.logger(ctx).Debug("add_button_skipped", "error", err)
	}

	s.stepf(ctx, "\nStep 3: Locating form input fields...")
	inputs, err := s.session.FindAll(ctx, browser.Tag("input"))
	if err != nil {
		return err
	}
	s.stepf(ctx, "   Found %d input field(s)", len(inputs))

	textareas, err := s.session.FindAll(ctx, browser.Tag("textarea"))
	if err != nil {
		return err
	}
	if len(textareas) > 0 {
		s.stepf(ctx, "   Found %d textarea field(s)", len(textareas))
	}

	selects, err := s.session.FindAll(ctx, browser.Tag("select"))
	if err != nil {
		return err
	}
	if len(selects) > 0 {
		s.stepf(ctx, "   Found %d dropdown field(s)", len(selects))
	}

	if len(inputs) > 0 {
		s.stepf(ctx, "\nStep 4: Filling test data into form fields...")
		for idx, field := range inputs[:min(len(inputs), maxFilledInputs)] {
			if err := s.fillField(ctx, idx, field); err != nil {
				s.logger(ctx).Debug("fill_skipped", "index", idx, "error", err)
			}
		}
		if err := s.screenshot(ctx, ShotFormFilled); err != nil {
			return err
		}
	}

	s.stepf(ctx, "\nStep 5: Form Validation...")
	total := len(inputs) + len(textareas) + len(selects)
	if err := assertGreater(total, 0, "Form should have input fields"); err != nil {
		return err
	}
	s.stepf(ctx, "   Total form elements verified: %d", total)

	submit, found, err := browser.First(ctx, s.session, submitButton)
	switch {
	case err != nil:
		s.logger(ctx).Debug("submit_lookup_failed", "error", err)
	case found:
		text, _ := browser.TrimmedText(ctx, submit)
		s.stepf(ctx, "   Found submit button: '%s'", text)
		s.stepf(ctx, "   Form ready to submit (not submitted in test)")
	}

	s.stepf(ctx, "\nRESULT: Form interaction test passed")
	s.stepf(ctx, "   - Input Fields: %d", len(inputs))
	s.stepf(ctx, "   - Total Form Elements: %d", total)
	return nil
}

// openAddForm clicks the first add-like button and waits for form fields.
func (s *Suite) openAddForm(ctx context.Context) error {
	btn, found, err := browser.First(ctx, s.session, addButton)
	if err != nil {
		return err
	}
	if !found {
		s.stepf(ctx, "   No Add button found by text")
		return nil
	}
	text, err := browser.TrimmedText(ctx, btn)
	if err != nil {
		return err
	}
	s.stepf(ctx, "   Found 'Add/New' button: '%s'", text)
	if err := btn.Click(ctx); err != nil {
		return err
	}
	s.stepf(ctx, "   Clicked Add button")

	fields := browser.AnyPresent(s.session, browser.Tag("input"), browser.Tag("textarea"), browser.Tag("select"))
	if err := s.waitFor(ctx, fields); err != nil && !errs.IsTimeout(err) {
		return err
	}
	return nil
}

// fillField types the sample value for position idx unless the input type
// cannot take text.
func (s *Suite) fillField(ctx context.Context, idx int, field browser.Element) error {
	fieldType, err := field.Attr(ctx, "type")
	if err != nil {
		return err
	}
	value, ok := sampleValueFor(idx, fieldType)
	if !ok {
		return nil
	}
	label, err := fieldLabel(ctx, idx, field)
	if err != nil {
		return err
	}
	if err := field.Fill(ctx, value); err != nil {
		return err
	}
	s.stepf(ctx, "   Filled '%s': %s", label, value)
	return nil
}

func fieldLabel(ctx context.Context, idx int, field browser.Element) (string, error) {
	for _, attr := range []string{"name", "placeholder"} {
		v, err := field.Attr(ctx, attr)
		if err != nil {
			return "", err
		}
		if v != "" {
			return v, nil
		}
	}
	return fmt.Sprintf("field_%d", idx), nil
}

// sampleValueFor returns the value for the input at position idx. Positions
// past the sample data and non-text input types get nothing.
func sampleValueFor(idx int, inputType string) (string, bool) {
	if idx < 0 || idx >= maxFilledInputs || idx >= len(sampleValues) {
		return "", false
	}
	switch strings.ToLower(strings.TrimSpace(inputType)) {
	case "hidden", "submit", "button", "checkbox", "radio":
		return "", false
	}
	return sampleValues[idx], true
}

type navLink struct {
	Text string
	Href string
	el   browser.Element
}

// NavigationAndAPI lists the page's links and buttons, follows the first
// link and back, and probes the back-end API. Only the link and button count
// is asserted.
func NavigationAndAPI(ctx context.Context, s *Suite) error {
	s.stepf(ctx, "\nTEST CASE 3: Navigation & API Connectivity Test\n%s", strings.Repeat("-", 70))

	s.stepf(ctx, "Step 1: Loading Inventory Dashboard...")
	if err := s.load(ctx, s.FrontendURL()); err != nil {
		return err
	}

	s.stepf(ctx, "\nStep 2: Discovering navigation elements...")
	links, err := s.session.FindAll(ctx, browser.Tag("a"))
	if err != nil {
		return err
	}
	s.stepf(ctx, "   Found %d link(s)", len(links))

	var navLinks []navLink
	for _, link := range links[:min(len(links), maxListedLinks)] {
		text, err := browser.TrimmedText(ctx, link)
		if err != nil {
			return err
		}
		href, err := link.Attr(ctx, "href")
		if err != nil {
			return err
		}
		if text != "" && href != "" {
			navLinks = append(navLinks, navLink{Text: text, Href: href, el: link})
			s.stepf(ctx, "   - Link: '%s' -> %s", text, href)
		}
	}

	buttons, err := s.session.FindAll(ctx, browser.Tag("button"))
	if err != nil {
		return err
	}
	s.stepf(ctx, "\n   Found %d button(s)", len(buttons))
	for _, btn := range buttons[:min(len(buttons), maxListedButtons)] {
		text, err := browser.TrimmedText(ctx, btn)
		if err != nil {
			return err
		}
		if text != "" {
			s.stepf(ctx, "   - Button: '%s'", text)
		}
	}

	s.stepf(ctx, "\nStep 3: Testing navigation functionality...")
	if sections := linkedSections(navLinks); len(sections) > 0 {
		s.stepf(ctx, "   Linked sections: %s", strings.Join(sections, ", "))
	} else {
		s.stepf(ctx, "   No well-known inventory sections linked")
	}
	current := s.session.URL()
	s.stepf(ctx, "   Current URL: %s", current)

	if len(navLinks) > 0 {
		if err := s.followAndReturn(ctx, navLinks[0], current); err != nil {
			s.stepf(ctx, "   Navigation click skipped")
			s.logger(ctx).Debug("navigation_skipped", "link", navLinks[0].Text, "error", err)
		}
	}

	if err := s.screenshot(ctx, ShotNavigation); err != nil {
		return err
	}

	s.stepf(ctx, "\nStep 4: Testing Backend API connectivity...")
	if err := s.probeAPI(ctx); err != nil {
		s.stepf(ctx, "   API endpoint test skipped: %v", err)
		s.logger(ctx).Info("api_probe_skipped", "url", s.APIURL(), "error", err)
	}

	s.stepf(ctx, "\nStep 5: Verification...")
	if err := assertGreater(len(links)+len(buttons), 0, "Page should have navigation elements"); err != nil {
		return err
	}

	s.stepf(ctx, "\nRESULT: Navigation and API test passed")
	s.stepf(ctx, "   - Navigation Links: %d", len(links))
	s.stepf(ctx, "   - Buttons: %d", len(buttons))
	s.stepf(ctx, "   - Frontend URL: %s", s.FrontendURL())
	s.stepf(ctx, "   - Backend API: %s", s.BackendURL())
	return nil
}

// followAndReturn clicks the link found during discovery, waits for the URL
// to change and goes back to from. A link that does not change the URL is
// left alone.
func (s *Suite) followAndReturn(ctx context.Context, link navLink, from string) error {
	s.stepf(ctx, "\n   Attempting to navigate to: '%s'", link.Text)
	if err := link.el.Click(ctx); err != nil {
		return err
	}
	if err := s.waitFor(ctx, browser.URLChanged(s.session, from)); err != nil {
		if errs.IsTimeout(err) {
			s.stepf(ctx, "   Link did not change the URL")
			return nil
		}
		return err
	}
	s.stepf(ctx, "   Navigated to: %s", s.session.URL())

	if err := s.session.Back(ctx); err != nil {
		return err
	}
	if err := s.waitFor(ctx, browser.URLIs(s.session, from)); err != nil {
		return err
	}
	s.stepf(ctx, "   Navigation back successful")
	return nil
}

// probeAPI loads the API endpoint in the browser and looks for a sign that
// the back end answered. The browser is returned to the front end afterwards.
func (s *Suite) probeAPI(ctx context.Context) (err error) {
	url := s.APIURL()
	s.stepf(ctx, "   Testing API endpoint: %s", url)
	// A failed API load can still leave the browser on an error page.
	defer func() {
		if backErr := s.load(ctx, s.FrontendURL()); backErr != nil && err == nil {
			err = backErr
		}
	}()
	if err := s.load(ctx, url); err != nil {
		return err
	}

	source, err := s.session.Content(ctx)
	if err != nil {
		return err
	}
	s.logger(ctx).Debug("api_response",
		"url", url,
		"body", logutil.FormatBodyForLog(logutil.SniffContentType(source), []byte(source), apiPreviewChars),
	)

	signal, ok := apiSignal(source)
	if !ok {
		s.stepf(ctx, "   API response format not recognized")
		return nil
	}
	s.stepf(ctx, "   API endpoint accessible (matched %q)", signal)
	s.stepf(ctx, "   Response received from backend")
	return s.screenshot(ctx, ShotAPIResponse)
}

// apiSignal reports the first marker suggesting source came from the API.
func apiSignal(source string) (string, bool) {
	lower := strings.ToLower(source)
	switch {
	case strings.Contains(lower, "inventory"):
		return "inventory", true
	case strings.Contains(source, "{"):
		return "{", true
	case strings.Contains(lower, "api"):
		return "api", true
	}
	return "", false
}

// linkedSections returns the known sections some link mentions, in
// knownSections order.
func linkedSections(links []navLink) []string {
	var out []string
	for _, section := range knownSections {
		for _, l := range links {
			if strings.Contains(strings.ToLower(l.Text), section) || strings.Contains(strings.ToLower(l.Href), section) {
				out = append(out, section)
				break
			}
		}
	}
	return out
}
