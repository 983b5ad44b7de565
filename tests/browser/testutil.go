// Package browser provides the fixture inventory site and shared helpers for
// the Playwright end-to-end smoke tests.
package browser

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/kuitang/inventory-smoke/internal/obs"
)

const (
	// Upper bound for every wait in tests/browser.
	browserMaxTimeout = 5 * time.Second
	browserPollEvery  = 50 * time.Millisecond
)

const dashboardHTML = `<!DOCTYPE html>
<html lang="en">
<head><meta charset="UTF-8"><title>Inventory Manager</title></head>
<body>
<nav>
  <a href="/products">Products</a>
  <a href="/reports">Reports</a>
</nav>
<h1>Inventory Dashboard</h1>
<button id="add-item" type="button" onclick="document.getElementById('item-form').style.display='block'">Add Item</button>
<form id="item-form" style="display:none" onsubmit="return false">
  <input type="text" name="name" placeholder="Product name">
  <input type="number" name="quantity">
  <input type="number" step="0.01" name="price">
  <input type="text" name="sku">
  <button type="submit">Save</button>
</form>
<table>
  <tr><th>Name</th><th>Quantity</th></tr>
  <tr><td>Widget</td><td>3</td></tr>
</table>
</body>
</html>`

const sectionHTML = `<!DOCTYPE html>
<html lang="en">
<head><meta charset="UTF-8"><title>Products</title></head>
<body><h1>Products</h1><a href="/">Back to dashboard</a></body>
</html>`

// blankHTML is a front end that renders nothing useful.
const blankHTML = `<!DOCTYPE html><html><head><title></title></head><body></body></html>`

const inventoryJSON = `{"inventory":[{"name":"Widget","quantity":3,"price":2.5,"sku":"W-1"}]}`

// FixtureSite is an inventory front end and back end on one httptest server.
type FixtureSite struct {
	Server      *httptest.Server
	FrontendURL string
	BackendURL  string
}

// NewFixtureSite serves the dashboard at "/", section pages and the JSON API
// at /api/inventory. When blank is set every HTML page is empty.
func NewFixtureSite(t testing.TB, blank bool) *FixtureSite {
	t.Helper()

	page := func(body string) http.HandlerFunc {
		if blank {
			body = blankHTML
		}
		return func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			_, _ = w.Write([]byte(body))
		}
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", page(dashboardHTML))
	mux.HandleFunc("GET /products", page(sectionHTML))
	mux.HandleFunc("GET /reports", page(sectionHTML))
	mux.HandleFunc("GET /api/inventory", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(inventoryJSON))
	})

	srv := httptest.NewServer(obs.AccessLogMiddleware("fixture", mux))
	t.Cleanup(srv.Close)
	return &FixtureSite{
		Server:      srv,
		FrontendURL: srv.URL + "/",
		BackendURL:  srv.URL,
	}
}

var (
	playwrightOnce sync.Once
	playwrightErr  error
)

// RequirePlaywright skips the test when -short is set or Playwright and its
// browsers are not installed.
func RequirePlaywright(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("browser tests skipped in -short mode")
	}
	playwrightOnce.Do(func() {
		pw, err := playwright.Run()
		if err != nil {
			playwrightErr = err
			return
		}
		b, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{Headless: playwright.Bool(true)})
		if err != nil {
			playwrightErr = err
		} else {
			_ = b.Close()
		}
		_ = pw.Stop()
	})
	if playwrightErr != nil {
		t.Skip("Playwright not available:", playwrightErr)
	}
}
