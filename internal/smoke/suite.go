// Package smoke is the acceptance harness for the inventory web application.
//
// A Suite owns one browser session for a whole run. Cases receive the Suite
// explicitly; the runner opens it before the first case and closes it on every
// exit path.
package smoke

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/kuitang/inventory-smoke/internal/artifacts"
	"github.com/kuitang/inventory-smoke/internal/browser"
	"github.com/kuitang/inventory-smoke/internal/errs"
	"github.com/kuitang/inventory-smoke/internal/obs"
	"github.com/kuitang/inventory-smoke/internal/urlutil"
)

const (
	DefaultFrontendURL   = "http://localhost:5173"
	DefaultBackendURL    = "http://localhost:5000"
	DefaultAPIPath       = "/api/inventory"
	DefaultSettleTimeout = 5 * time.Second
)

// Options configures a run.
type Options struct {
	FrontendURL string
	BackendURL  string
	// APIPath is appended to BackendURL for the API probe.
	APIPath string

	// ImplicitWait bounds every individual browser action.
	ImplicitWait time.Duration
	// SettleTimeout bounds waits for the page or the URL to settle.
	SettleTimeout time.Duration
	PollInterval  time.Duration

	Launch browser.LaunchOptions

	// Console receives the human-readable step narration. Nil discards it.
	Console io.Writer
	// RunID is generated when empty.
	RunID string
	// Filter, when set, skips cases whose name does not match.
	Filter *regexp.Regexp
}

func (o Options) withDefaults() Options {
	if o.FrontendURL == "" {
		o.FrontendURL = DefaultFrontendURL
	}
	if o.BackendURL == "" {
		o.BackendURL = DefaultBackendURL
	}
	if o.APIPath == "" {
		o.APIPath = DefaultAPIPath
	}
	if o.ImplicitWait <= 0 {
		o.ImplicitWait = browser.DefaultImplicitWait
	}
	if o.SettleTimeout <= 0 {
		o.SettleTimeout = DefaultSettleTimeout
	}
	if o.PollInterval <= 0 {
		o.PollInterval = browser.DefaultPollInterval
	}
	if o.Console == nil {
		o.Console = io.Discard
	}
	o.Launch.ImplicitWait = o.ImplicitWait
	return o
}

// Suite is the fixture passed to every case. It is valid between Open and Close.
type Suite struct {
	session browser.Session
	opts    Options
	store   *artifacts.Store
	console io.Writer

	closeOnce sync.Once
	closeErr  error

	// per-case state, reset by TestStart
	caseName string
	shots    []string
}

// Open acquires a browser session and applies the implicit wait.
// A session that cannot be acquired is reported as errs.Unavailable.
func Open(ctx context.Context, driver browser.Driver, opts Options, store *artifacts.Store) (*Suite, error) {
	opts = opts.withDefaults()
	if store == nil {
		return nil, errs.New(errs.InvalidArgument, "artifact store is required")
	}

	session, err := driver.Open(ctx, opts.Launch)
	if err != nil {
		if errs.CodeOf(err) == errs.Unavailable {
			return nil, err
		}
		return nil, errs.Wrap(errs.Unavailable, "start browser session", err)
	}
	session.SetDefaultTimeout(opts.ImplicitWait)

	s := &Suite{
		session: session,
		opts:    opts,
		store:   store,
		console: opts.Console,
	}
	s.banner("INVENTORY SAAS SYSTEM - BROWSER SMOKE TESTS")
	s.printf("Frontend URL: %s", opts.FrontendURL)
	s.printf("Backend URL: %s", opts.BackendURL)
	obs.From(ctx).With("pkg", "smoke").Info("suite_opened",
		"frontend", opts.FrontendURL,
		"backend", opts.BackendURL,
		"browser", opts.Launch.Browser,
		"implicit_wait_ms", opts.ImplicitWait.Milliseconds(),
	)
	return s, nil
}

// Close releases the browser session. It is safe to call more than once.
func (s *Suite) Close() error {
	s.closeOnce.Do(func() {
		s.banner("ALL TESTS COMPLETED - CLOSING BROWSER")
		s.closeErr = s.session.Close()
		if s.closeErr != nil {
			obs.Pkg("smoke").Warn("suite_close_failed", "error", s.closeErr)
		}
	})
	return s.closeErr
}

// Session exposes the underlying browser session.
func (s *Suite) Session() browser.Session {
	return s.session
}

func (s *Suite) FrontendURL() string {
	return s.opts.FrontendURL
}

func (s *Suite) BackendURL() string {
	return s.opts.BackendURL
}

// APIURL is the endpoint probed by the navigation check.
func (s *Suite) APIURL() string {
	return urlutil.BuildAbsolute(s.opts.BackendURL, s.opts.APIPath)
}

// TestStart brackets the start of a case. It never fails.
func (s *Suite) TestStart(ctx context.Context, name string) {
	s.caseName = name
	s.shots = nil
	s.banner("TEST STARTING: " + name)
	s.logger(ctx).Info("case_started")
}

// TestEnd brackets the end of a case. It never fails.
func (s *Suite) TestEnd(ctx context.Context, name string) {
	s.printf("TEST COMPLETED: %s", name)
	s.logger(ctx).Info("case_finished", "screenshots", len(s.shots))
}

func (s *Suite) logger(ctx context.Context) *slog.Logger {
	return obs.From(ctx).With("pkg", "smoke")
}

func (s *Suite) printf(format string, args ...any) {
	fmt.Fprintf(s.console, format+"\n", args...)
}

func (s *Suite) banner(title string) {
	line := strings.Repeat("=", 70)
	s.printf("\n%s\n%s\n%s", line, title, line)
}

// stepf narrates a step on the console and mirrors it to the debug log.
func (s *Suite) stepf(ctx context.Context, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	s.printf("%s", msg)
	s.logger(ctx).Debug("step", "text", strings.TrimSpace(msg))
}

// load navigates and waits for the page to go quiet. A page that keeps the
// network busy past SettleTimeout is used as-is.
func (s *Suite) load(ctx context.Context, url string) error {
	if err := s.session.Navigate(ctx, url); err != nil {
		return err
	}
	if err := s.session.Settle(ctx, s.opts.SettleTimeout); err != nil {
		if !errs.IsTimeout(err) {
			return err
		}
		s.logger(ctx).Debug("page_not_idle", "url", url, "timeout_ms", s.opts.SettleTimeout.Milliseconds())
	}
	return nil
}

// waitFor polls cond within SettleTimeout.
func (s *Suite) waitFor(ctx context.Context, cond browser.Condition) error {
	return browser.WaitUntil(ctx, s.opts.SettleTimeout, s.opts.PollInterval, cond)
}

// screenshot captures the full page and stores it under name.
func (s *Suite) screenshot(ctx context.Context, name string) error {
	png, err := s.session.Screenshot(ctx)
	if err != nil {
		return err
	}
	if _, err := s.store.Save(ctx, name, png); err != nil {
		return err
	}
	s.shots = append(s.shots, name)
	s.stepf(ctx, "Screenshot saved: %s", name)
	return nil
}
