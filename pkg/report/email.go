package report

import (
	"fmt"
	"strings"
	"time"

	mail "github.com/wneessen/go-mail"

	"github.com/your-org/pr-sentinel/pkg/models"
)

// sendEmail delivers the verdict to the security admin over SMTP.
func (r *Reporter) sendEmail(verdict models.ScanVerdict) error {
	subject := fmt.Sprintf("🛡️ [Sentinel] %s — %s — %s",
		verdict.Action, strings.ToUpper(string(verdict.Severity)), verdict.Repo)

	msg := mail.NewMsg()
	if err := msg.From(r.email.From); err != nil {
		return fmt.Errorf("invalid sender address: %w", err)
	}
	if err := msg.To(r.email.AdminEmail); err != nil {
		return fmt.Errorf("invalid recipient address: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextPlain, emailBody(verdict))

	opts := []mail.Option{mail.WithPort(r.email.Port)}
	if r.email.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(r.email.Username),
			mail.WithPassword(r.email.Password),
		)
	}
	client, err := mail.NewClient(r.email.Host, opts...)
	if err != nil {
		return fmt.Errorf("failed to create mail client: %w", err)
	}
	return client.DialAndSend(msg)
}

func emailBody(verdict models.ScanVerdict) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Sentinel Security Alert\n=======================\n\n")
	fmt.Fprintf(&b, "Repository: %s\n", verdict.Repo)
	fmt.Fprintf(&b, "Branch:     %s\n", verdict.Branch)
	fmt.Fprintf(&b, "Author:     %s\n", verdict.Author)
	fmt.Fprintf(&b, "Time:       %s\n", timeDisplay(time.Now()))
	fmt.Fprintf(&b, "Severity:   %s\n", severityIndicator(verdict.Severity))
	fmt.Fprintf(&b, "Status:     %s\n\n", actionStatus(verdict.Action))
	fmt.Fprintf(&b, "Incident: %s\n\n", verdict.Incident)
	fmt.Fprintf(&b, "Summary (EN): %s\n", verdict.SummaryEN)
	fmt.Fprintf(&b, "Summary (JP): %s\n\n", verdict.SummaryJP)
	fmt.Fprintf(&b, "Issues (%d):\n%s\n\n", len(verdict.Issues), issuesSummary(verdict.Issues))
	if verdict.Fix != "" {
		fmt.Fprintf(&b, "Suggested fix: %s\n\n", verdict.Fix)
	}
	if verdict.Diff != "" {
		fmt.Fprintf(&b, "Diff excerpt:\n%s\n\n", verdict.Diff)
	}
	fmt.Fprintf(&b, "Pull request: %s\n", verdict.PRURL)
	return b.String()
}
