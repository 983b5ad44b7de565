// Package browsertest provides an in-memory browser.Driver for unit tests.
//
// A Site maps URLs to static pages made of flat Nodes. Sessions resolve
// Selectors with browser.Selector.Matches, follow anchor hrefs on click and
// keep a history for Back. Every page implicitly has a <body>, as in a real
// browser.
package browsertest

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/kuitang/inventory-smoke/internal/browser"
	"github.com/kuitang/inventory-smoke/internal/errs"
)

// Node is one element of a fake page.
type Node struct {
	Tag   string
	Text  string
	Attrs map[string]string

	// Value holds what Fill typed into the node.
	Value string
	// FillErr, when set, is returned by Fill.
	FillErr error
	// OnClick runs after a click, with the page the node lives on.
	OnClick func(p *Page)
}

func (n *Node) attr(name string) string {
	if n.Attrs == nil {
		return ""
	}
	return n.Attrs[name]
}

// Page is a static document.
type Page struct {
	Title    string
	TitleErr error
	Nodes    []*Node
	// Source is returned by Content; when empty a document is synthesized from Nodes.
	Source string
}

// Site maps absolute URLs to pages. Unknown URLs fail navigation like a
// refused connection.
type Site map[string]*Page

// Driver is a fake browser.Driver.
type Driver struct {
	Site    Site
	OpenErr error
	// ScreenshotErr, when set, fails every screenshot.
	ScreenshotErr error

	mu       sync.Mutex
	sessions []*Session
}

// Open returns a new Session over d.Site, or OpenErr.
func (d *Driver) Open(ctx context.Context, opts browser.LaunchOptions) (browser.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if d.OpenErr != nil {
		return nil, d.OpenErr
	}
	s := &Session{driver: d, Launch: opts, DefaultTimeout: opts.ImplicitWait}
	d.mu.Lock()
	d.sessions = append(d.sessions, s)
	d.mu.Unlock()
	return s, nil
}

// Sessions returns every session opened so far.
func (d *Driver) Sessions() []*Session {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*Session(nil), d.sessions...)
}

// Session is a fake browser.Session.
type Session struct {
	driver *Driver

	Launch         browser.LaunchOptions
	DefaultTimeout time.Duration
	Closed         int
	Visited        []string
	Screenshots    int

	history []string
}

func (s *Session) current() *Page {
	if len(s.history) == 0 {
		return &Page{}
	}
	if p, ok := s.driver.Site[s.history[len(s.history)-1]]; ok {
		return p
	}
	return &Page{}
}

func (s *Session) checkOpen(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.Closed > 0 {
		return errs.New(errs.Unavailable, "session closed")
	}
	return nil
}

func (s *Session) Navigate(ctx context.Context, rawURL string) error {
	if err := s.checkOpen(ctx); err != nil {
		return err
	}
	if _, ok := s.driver.Site[rawURL]; !ok {
		return errs.New(errs.Unavailable, "navigate to "+rawURL+": net::ERR_CONNECTION_REFUSED")
	}
	s.history = append(s.history, rawURL)
	s.Visited = append(s.Visited, rawURL)
	return nil
}

func (s *Session) Settle(ctx context.Context, _ time.Duration) error {
	return s.checkOpen(ctx)
}

func (s *Session) Title(ctx context.Context) (string, error) {
	if err := s.checkOpen(ctx); err != nil {
		return "", err
	}
	p := s.current()
	return p.Title, p.TitleErr
}

func (s *Session) URL() string {
	if len(s.history) == 0 {
		return "about:blank"
	}
	return s.history[len(s.history)-1]
}

func (s *Session) Content(ctx context.Context) (string, error) {
	if err := s.checkOpen(ctx); err != nil {
		return "", err
	}
	p := s.current()
	if p.Source != "" {
		return p.Source, nil
	}
	var b strings.Builder
	fmt.Fprintf(&b, "<html><head><title>%s</title></head><body>", p.Title)
	for _, n := range p.Nodes {
		fmt.Fprintf(&b, "<%s>%s</%s>", n.Tag, n.Text, n.Tag)
	}
	b.WriteString("</body></html>")
	return b.String(), nil
}

func (s *Session) Back(ctx context.Context) error {
	if err := s.checkOpen(ctx); err != nil {
		return err
	}
	if len(s.history) > 1 {
		s.history = s.history[:len(s.history)-1]
	}
	return nil
}

func (s *Session) FindAll(ctx context.Context, sel browser.Selector) ([]browser.Element, error) {
	if err := s.checkOpen(ctx); err != nil {
		return nil, err
	}
	p := s.current()
	var out []browser.Element
	hasBody := false
	for _, n := range p.Nodes {
		if strings.EqualFold(n.Tag, "body") {
			hasBody = true
		}
		if sel.Matches(n.Tag, n.Text, n.attr) {
			out = append(out, &element{s: s, page: p, node: n})
		}
	}
	if !hasBody {
		body := &Node{Tag: "body"}
		if sel.Matches(body.Tag, body.Text, body.attr) {
			out = append([]browser.Element{&element{s: s, page: p, node: body}}, out...)
		}
	}
	return out, nil
}

func (s *Session) Screenshot(ctx context.Context) ([]byte, error) {
	if err := s.checkOpen(ctx); err != nil {
		return nil, err
	}
	if s.driver.ScreenshotErr != nil {
		return nil, s.driver.ScreenshotErr
	}
	s.Screenshots++
	return []byte("\x89PNG\r\n\x1a\n" + s.URL()), nil
}

func (s *Session) SetDefaultTimeout(d time.Duration) {
	s.DefaultTimeout = d
}

func (s *Session) Close() error {
	s.Closed++
	return nil
}

type element struct {
	s    *Session
	page *Page
	node *Node
}

func (e *element) Text(ctx context.Context) (string, error) {
	if err := e.s.checkOpen(ctx); err != nil {
		return "", err
	}
	return e.node.Text, nil
}

func (e *element) Attr(ctx context.Context, name string) (string, error) {
	if err := e.s.checkOpen(ctx); err != nil {
		return "", err
	}
	return e.node.attr(name), nil
}

func (e *element) Click(ctx context.Context) error {
	if err := e.s.checkOpen(ctx); err != nil {
		return err
	}
	if e.node.OnClick != nil {
		e.node.OnClick(e.page)
	}
	if strings.EqualFold(e.node.Tag, "a") {
		if href := e.node.attr("href"); href != "" {
			return e.s.Navigate(ctx, resolve(e.s.URL(), href))
		}
	}
	return nil
}

func (e *element) Fill(ctx context.Context, value string) error {
	if err := e.s.checkOpen(ctx); err != nil {
		return err
	}
	if e.node.FillErr != nil {
		return e.node.FillErr
	}
	e.node.Value = value
	return nil
}

func resolve(base, ref string) string {
	b, err := url.Parse(base)
	if err != nil {
		return ref
	}
	r, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return b.ResolveReference(r).String()
}
