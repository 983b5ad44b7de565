// Package browser is the browser-automation capability the smoke suite drives:
// session lifecycle, navigation, DOM lookups, input and screenshots.
//
// Lookups never treat absence as an error. FindAll returns an empty slice and
// First reports found=false; an error always means the browser itself failed.
package browser

import (
	"context"
	"strings"
	"time"
)

// Browser engines accepted by LaunchOptions.
const (
	Chromium = "chromium"
	Firefox  = "firefox"
	WebKit   = "webkit"
)

// DefaultImplicitWait bounds every individual browser action.
const DefaultImplicitWait = 10 * time.Second

// LaunchOptions configures a new browser session.
type LaunchOptions struct {
	Browser         string
	Headless        bool
	ViewportWidth   int
	ViewportHeight  int
	ImplicitWait    time.Duration
	InstallBrowsers bool
}

// Driver acquires browser sessions.
type Driver interface {
	Open(ctx context.Context, opts LaunchOptions) (Session, error)
}

// Session is one live browser tab. It is not safe for concurrent use.
type Session interface {
	// Navigate loads url and waits for DOMContentLoaded.
	Navigate(ctx context.Context, url string) error
	// Settle waits until the page has no pending network activity, bounded by timeout.
	Settle(ctx context.Context, timeout time.Duration) error
	Title(ctx context.Context) (string, error)
	URL() string
	Content(ctx context.Context) (string, error)
	Back(ctx context.Context) error
	FindAll(ctx context.Context, sel Selector) ([]Element, error)
	// Screenshot returns a PNG of the full page.
	Screenshot(ctx context.Context) ([]byte, error)
	SetDefaultTimeout(d time.Duration)
	Close() error
}

// Element is a handle to one DOM node matched by a Selector.
type Element interface {
	// Text returns the rendered text of the element.
	Text(ctx context.Context) (string, error)
	// Attr returns the attribute value, or "" when it is not set.
	Attr(ctx context.Context, name string) (string, error)
	Click(ctx context.Context) error
	// Fill clears the field and types value.
	Fill(ctx context.Context, value string) error
}

// First returns the first element matching sel.
// found is false when nothing matches; err is reserved for browser failures.
func First(ctx context.Context, s Session, sel Selector) (el Element, found bool, err error) {
	all, err := s.FindAll(ctx, sel)
	if err != nil {
		return nil, false, err
	}
	if len(all) == 0 {
		return nil, false, nil
	}
	return all[0], true, nil
}

// TrimmedText returns the element text with surrounding whitespace removed.
func TrimmedText(ctx context.Context, el Element) (string, error) {
	text, err := el.Text(ctx)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}
