// Package report renders a smoke run as Markdown and as a standalone HTML page.
package report

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/gomarkdown/markdown"
	mdhtml "github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
	"github.com/microcosm-cc/bluemonday"

	"github.com/kuitang/inventory-smoke/internal/artifacts"
	"github.com/kuitang/inventory-smoke/internal/logutil"
	"github.com/kuitang/inventory-smoke/internal/obs"
	"github.com/kuitang/inventory-smoke/internal/smoke"
)

// Artifact names written by Write.
const (
	MarkdownName = "report.md"
	HTMLName     = "report.html"
)

const maxDetailChars = 300

// Meta describes the run environment.
type Meta struct {
	FrontendURL string
	BackendURL  string
	Browser     string
	// Link returns the URL for an artifact. Nil links artifacts by file name.
	Link func(name string) string
}

func (m Meta) link(name string) string {
	if m.Link != nil {
		if u := m.Link(name); u != "" {
			return u
		}
	}
	return name
}

// Markdown builds the report body.
func Markdown(sum *smoke.Summary, meta Meta) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Inventory smoke run %s\n\n", sum.RunID)
	fmt.Fprintf(&b, "- Frontend: %s\n", meta.FrontendURL)
	fmt.Fprintf(&b, "- Backend: %s\n", meta.BackendURL)
	if meta.Browser != "" {
		fmt.Fprintf(&b, "- Browser: %s\n", meta.Browser)
	}
	if !sum.Started.IsZero() {
		fmt.Fprintf(&b, "- Started: %s\n", sum.Started.UTC().Format(time.RFC3339))
		if !sum.Finished.IsZero() {
			fmt.Fprintf(&b, "- Duration: %s\n", sum.Finished.Sub(sum.Started).Round(time.Millisecond))
		}
	}
	status := "PASS"
	if !sum.OK() {
		status = "FAIL"
	}
	fmt.Fprintf(&b, "- Result: **%s** (%d passed, %d failed, %d errors, %d skipped; success rate %.1f%%)\n\n",
		status,
		sum.Count(smoke.OutcomePass),
		sum.Count(smoke.OutcomeFail),
		sum.Count(smoke.OutcomeError),
		sum.Count(smoke.OutcomeSkip),
		sum.SuccessRate(),
	)
	if sum.Interrupted {
		b.WriteString("**Interrupted:** the run was cancelled before every case finished.\n\n")
	}

	b.WriteString("| Case | Outcome | Duration | Details |\n")
	b.WriteString("|---|---|---|---|\n")
	for _, r := range sum.Results {
		detail := ""
		if r.Err != nil {
			detail = logutil.TruncateForLog(cell(r.Err.Error()), maxDetailChars)
		}
		fmt.Fprintf(&b, "| %s | %s | %s | %s |\n", cell(r.Name), r.Outcome, r.Duration.Round(time.Millisecond), detail)
	}

	b.WriteString("\n## Screenshots\n\n")
	if len(sum.Screenshots) == 0 {
		b.WriteString("No screenshots were written.\n")
	}
	for _, name := range sum.Screenshots {
		fmt.Fprintf(&b, "- [%s](%s)\n", name, meta.link(name))
	}
	return b.String()
}

// cell makes text safe inside a Markdown table cell.
func cell(s string) string {
	s = strings.ReplaceAll(s, "\r", " ")
	s = strings.ReplaceAll(s, "\n", " ")
	return strings.ReplaceAll(s, "|", `\|`)
}

const pageTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>{{.Title}}</title>
    <style>
        body {
            font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, 'Helvetica Neue', Arial, sans-serif;
            line-height: 1.6;
            color: #1a1a1a;
            max-width: 960px;
            margin: 0 auto;
            padding: 2rem 1rem;
        }
        table { border-collapse: collapse; width: 100%; }
        th, td { border: 1px solid #e0e0e0; padding: 0.4em 0.6em; text-align: left; vertical-align: top; }
        code { background-color: #f5f5f5; padding: 0.2em 0.4em; border-radius: 3px; }
    </style>
</head>
<body>
{{.Content}}
</body>
</html>`

var page = template.Must(template.New("report").Parse(pageTemplate))

// RenderHTML renders Markdown into a sanitized standalone page.
func RenderHTML(md, title string) []byte {
	// Configure the markdown parser with common extensions
	extensions := parser.CommonExtensions | parser.AutoHeadingIDs | parser.NoEmptyLineBeforeBlock
	p := parser.NewWithExtensions(extensions)
	doc := p.Parse([]byte(md))

	renderer := mdhtml.NewRenderer(mdhtml.RendererOptions{
		Flags: mdhtml.CommonFlags | mdhtml.HrefTargetBlank,
	})
	contentHTML := markdown.Render(doc, renderer)

	// Error text comes from the page under test.
	sanitized := bluemonday.UGCPolicy().SanitizeBytes(contentHTML)

	var buf bytes.Buffer
	err := page.Execute(&buf, struct {
		Title   string
		Content template.HTML
	}{
		Title:   title,
		Content: template.HTML(sanitized),
	})
	if err != nil {
		return []byte("<!DOCTYPE html><html><head><title>Error</title></head><body><h1>Error rendering report</h1></body></html>")
	}
	return buf.Bytes()
}

// Write stores report.md and report.html through store.
func Write(ctx context.Context, store *artifacts.Store, sum *smoke.Summary, meta Meta) error {
	md := Markdown(sum, meta)
	if _, err := store.Save(ctx, MarkdownName, []byte(md)); err != nil {
		return err
	}
	body := RenderHTML(md, "Inventory smoke run "+sum.RunID)
	path, err := store.Save(ctx, HTMLName, body)
	if err != nil {
		return err
	}
	obs.From(ctx).With("pkg", "report").Info("report_written", "path", path, "bytes", len(body))
	return nil
}
