package notify

import (
	"bytes"
	"fmt"
	"html/template"
)

// Template names as constants for type safety.
const (
	TemplateRunSummary = "run_summary"
)

// RunSummaryData contains data for run summary emails.
type RunSummaryData struct {
	RunID       string
	Frontend    string
	Backend     string
	Passed      int
	Failed      int
	Errored     int
	Skipped     int
	SuccessRate float64
	// Interrupted marks a run cancelled before every case finished.
	Interrupted bool
	// Failures holds one "name: message" line per failed or errored case.
	Failures []string
	// ReportURL links the uploaded HTML report, when there is one.
	ReportURL string
}

func runSummarySubject(d RunSummaryData) string {
	status := "PASS"
	if d.Failed+d.Errored > 0 || d.Interrupted {
		status = "FAIL"
	}
	return fmt.Sprintf("[%s] Inventory smoke run %s: %.1f%% passed", status, d.RunID, d.SuccessRate)
}

var runSummaryTemplate = template.Must(template.New(TemplateRunSummary).Parse(`<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>Inventory smoke run {{.RunID}}</title>
</head>
<body style="font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, 'Helvetica Neue', Arial, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px;">
    <h2 style="margin-top: 0;">Inventory smoke run</h2>
    <p>Run <code>{{.RunID}}</code> against <a href="{{.Frontend}}">{{.Frontend}}</a> (API {{.Backend}}).</p>
    <table style="border-collapse: collapse;">
        <tr><td>Passed</td><td><strong>{{.Passed}}</strong></td></tr>
        <tr><td>Failed</td><td><strong>{{.Failed}}</strong></td></tr>
        <tr><td>Errors</td><td><strong>{{.Errored}}</strong></td></tr>
        <tr><td>Skipped</td><td>{{.Skipped}}</td></tr>
        <tr><td>Success rate</td><td>{{printf "%.1f" .SuccessRate}}%</td></tr>
    </table>
    {{- if .Interrupted}}
    <p><strong>The run was interrupted before every case finished.</strong></p>
    {{- end}}
    {{- if .Failures}}
    <h3>Problems</h3>
    <ul>{{range .Failures}}
        <li><code>{{.}}</code></li>{{end}}
    </ul>
    {{- end}}
    {{- if .ReportURL}}
    <p><a href="{{.ReportURL}}">Full report</a></p>
    {{- end}}
    <hr style="border: none; border-top: 1px solid #e0e0e0; margin: 20px 0;">
    <p style="color: #999; font-size: 12px;">This is an automated message from the inventory smoke runner.</p>
</body>
</html>`))

func renderRunSummaryHTML(d RunSummaryData) (string, error) {
	var buf bytes.Buffer
	if err := runSummaryTemplate.Execute(&buf, d); err != nil {
		return "", err
	}
	return buf.String(), nil
}
