package notify

import (
	"fmt"
	"html"

	"github.com/resend/resend-go/v3"
)

// ResendNotifier implements Notifier using the Resend API.
type ResendNotifier struct {
	client      *resend.Client
	fromAddress string
}

// NewResendNotifier creates a new Resend notifier.
// fromAddress is the sender email address (must be verified in Resend).
func NewResendNotifier(apiKey, fromAddress string) *ResendNotifier {
	return &ResendNotifier{
		client:      resend.NewClient(apiKey),
		fromAddress: fromAddress,
	}
}

// Send sends a message using the specified template via Resend.
func (r *ResendNotifier) Send(to, templateName string, data any) error {
	subject, body := r.renderTemplate(templateName, data)

	params := &resend.SendEmailRequest{
		From:    r.fromAddress,
		To:      []string{to},
		Subject: subject,
		Html:    body,
	}

	_, err := r.client.Emails.Send(params)
	if err != nil {
		return fmt.Errorf("resend: failed to send email: %w", err)
	}

	return nil
}

// renderTemplate renders the template and returns subject and HTML body.
func (r *ResendNotifier) renderTemplate(templateName string, data any) (subject, body string) {
	if d, ok := data.(RunSummaryData); ok && templateName == TemplateRunSummary {
		rendered, err := renderRunSummaryHTML(d)
		if err == nil {
			return runSummarySubject(d), rendered
		}
	}
	subject = "Message from inventory smoke"
	body = fmt.Sprintf("<p>%s</p>", html.EscapeString(fmt.Sprintf("%+v", data)))
	return
}
