package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/kuitang/inventory-smoke/internal/errs"
	"github.com/kuitang/inventory-smoke/internal/obs"
)

// PlaywrightDriver opens sessions through playwright-go. The zero value is ready to use.
type PlaywrightDriver struct{}

// Open starts Playwright, launches the configured engine and opens one page.
// Every resource acquired before a failure is released.
func (PlaywrightDriver) Open(ctx context.Context, opts LaunchOptions) (Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	engine := strings.ToLower(strings.TrimSpace(opts.Browser))
	if engine == "" {
		engine = Chromium
	}
	log := obs.From(ctx).With("pkg", "browser")

	if opts.InstallBrowsers {
		if err := playwright.Install(&playwright.RunOptions{Browsers: []string{engine}}); err != nil {
			return nil, errs.Wrap(errs.Unavailable, "install playwright browsers", err)
		}
	}

	pw, err := playwright.Run()
	if err != nil {
		return nil, errs.Wrap(errs.Unavailable, "start playwright", err)
	}

	var bt playwright.BrowserType
	switch engine {
	case Chromium:
		bt = pw.Chromium
	case Firefox:
		bt = pw.Firefox
	case WebKit:
		bt = pw.WebKit
	default:
		_ = pw.Stop()
		return nil, errs.New(errs.InvalidArgument, fmt.Sprintf("unknown browser %q", opts.Browser))
	}

	b, err := bt.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(opts.Headless),
	})
	if err != nil {
		_ = pw.Stop()
		return nil, errs.Wrap(errs.Unavailable, "launch "+engine, err)
	}

	width, height := opts.ViewportWidth, opts.ViewportHeight
	if width <= 0 || height <= 0 {
		width, height = 1920, 1080
	}
	bctx, err := b.NewContext(playwright.BrowserNewContextOptions{
		Viewport: &playwright.Size{Width: width, Height: height},
	})
	if err != nil {
		_ = b.Close()
		_ = pw.Stop()
		return nil, errs.Wrap(errs.Unavailable, "create browser context", err)
	}

	page, err := bctx.NewPage()
	if err != nil {
		_ = bctx.Close()
		_ = b.Close()
		_ = pw.Stop()
		return nil, errs.Wrap(errs.Unavailable, "open page", err)
	}

	s := &playwrightSession{pw: pw, browser: b, bctx: bctx, page: page}
	wait := opts.ImplicitWait
	if wait <= 0 {
		wait = DefaultImplicitWait
	}
	s.SetDefaultTimeout(wait)

	log.Info("browser_session_opened", "engine", engine, "headless", opts.Headless,
		"viewport", fmt.Sprintf("%dx%d", width, height), "implicit_wait", wait.String())
	return s, nil
}

type playwrightSession struct {
	pw      *playwright.Playwright
	browser playwright.Browser
	bctx    playwright.BrowserContext
	page    playwright.Page

	closeOnce sync.Once
	closeErr  error
}

func ms(d time.Duration) *float64 {
	return playwright.Float(float64(d.Milliseconds()))
}

// classify maps playwright failures onto smoke error codes.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, playwright.ErrTimeout) {
		return errs.Wrap(errs.Timeout, op, err)
	}
	return errs.Wrap(errs.Unavailable, op, err)
}

func (s *playwrightSession) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := s.page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
	})
	return classify("navigate to "+url, err)
}

func (s *playwrightSession) Settle(ctx context.Context, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := s.page.WaitForLoadState(playwright.PageWaitForLoadStateOptions{
		State:   playwright.LoadStateNetworkidle,
		Timeout: ms(timeout),
	})
	return classify("wait for network idle", err)
}

func (s *playwrightSession) Title(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	title, err := s.page.Title()
	return title, classify("read title", err)
}

func (s *playwrightSession) URL() string {
	return s.page.URL()
}

func (s *playwrightSession) Content(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	content, err := s.page.Content()
	return content, classify("read page source", err)
}

func (s *playwrightSession) Back(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := s.page.GoBack(playwright.PageGoBackOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
	})
	return classify("go back", err)
}

func (s *playwrightSession) FindAll(ctx context.Context, sel Selector) ([]Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	locators, err := s.page.Locator("xpath=" + sel.XPath()).All()
	if err != nil {
		return nil, classify("find "+sel.String(), err)
	}
	out := make([]Element, 0, len(locators))
	for _, l := range locators {
		out = append(out, &playwrightElement{loc: l})
	}
	return out, nil
}

func (s *playwrightSession) Screenshot(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	png, err := s.page.Screenshot(playwright.PageScreenshotOptions{
		FullPage: playwright.Bool(true),
	})
	return png, classify("screenshot", err)
}

func (s *playwrightSession) SetDefaultTimeout(d time.Duration) {
	s.page.SetDefaultTimeout(float64(d.Milliseconds()))
	s.page.SetDefaultNavigationTimeout(float64(d.Milliseconds()))
}

func (s *playwrightSession) Close() error {
	s.closeOnce.Do(func() {
		var all []error
		if err := s.page.Close(); err != nil {
			all = append(all, fmt.Errorf("close page: %w", err))
		}
		if err := s.bctx.Close(); err != nil {
			all = append(all, fmt.Errorf("close context: %w", err))
		}
		if err := s.browser.Close(); err != nil {
			all = append(all, fmt.Errorf("close browser: %w", err))
		}
		if err := s.pw.Stop(); err != nil {
			all = append(all, fmt.Errorf("stop playwright: %w", err))
		}
		s.closeErr = errors.Join(all...)
	})
	return s.closeErr
}

type playwrightElement struct {
	loc playwright.Locator
}

func (e *playwrightElement) Text(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	text, err := e.loc.InnerText()
	return text, classify("read text", err)
}

func (e *playwrightElement) Attr(ctx context.Context, name string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	v, err := e.loc.GetAttribute(name)
	return v, classify("read attribute "+name, err)
}

func (e *playwrightElement) Click(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return classify("click", e.loc.Click())
}

func (e *playwrightElement) Fill(ctx context.Context, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := e.loc.Clear(); err != nil {
		return classify("clear", err)
	}
	return classify("fill", e.loc.Fill(value))
}
