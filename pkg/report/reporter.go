// Package report turns verdicts into notifications. The orchestrator emits a
// verdict event and moves on; delivery runs on a background goroutine and
// failures are logged, never propagated into a scan result.
package report

import (
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/your-org/pr-sentinel/pkg/models"
)

// EmailConfig holds SMTP settings for the email sink. An empty Host or
// AdminEmail disables email delivery.
type EmailConfig struct {
	Host       string
	Port       int
	Username   string
	Password   string
	From       string
	AdminEmail string
}

// Reporter fans verdicts out to the configured sinks.
type Reporter struct {
	slackWebhookURL string
	email           EmailConfig
	logger          *log.Logger

	events chan models.ScanVerdict
	wg     sync.WaitGroup
}

// NewReporter starts the background dispatch loop. Pass an empty slack URL
// or email host to disable that sink.
func NewReporter(slackWebhookURL string, email EmailConfig, logger *log.Logger) *Reporter {
	r := &Reporter{
		slackWebhookURL: slackWebhookURL,
		email:           email,
		logger:          logger,
		events:          make(chan models.ScanVerdict, 64),
	}
	r.wg.Add(1)
	go r.loop()
	return r
}

// Dispatch enqueues a verdict for notification. It never blocks the caller;
// if the queue is full the event is dropped with a log line.
func (r *Reporter) Dispatch(verdict models.ScanVerdict) {
	select {
	case r.events <- verdict:
	default:
		r.logger.Printf("Warning: notification queue full, dropping event for %s", verdict.PRURL)
	}
}

// Close drains the queue and stops the dispatch loop.
func (r *Reporter) Close() {
	close(r.events)
	r.wg.Wait()
}

func (r *Reporter) loop() {
	defer r.wg.Done()
	for verdict := range r.events {
		r.report(verdict)
	}
}

// report sends one verdict to every configured sink. Clean low-severity
// passes are not worth anyone's attention.
func (r *Reporter) report(verdict models.ScanVerdict) {
	if verdict.Action == models.ActionPass && verdict.Severity == models.SeverityLow {
		return
	}

	if r.slackWebhookURL != "" {
		if err := r.sendSlack(verdict); err != nil {
			r.logger.Printf("Warning: failed to send Slack alert for %s: %v", verdict.PRURL, err)
		}
	}

	if verdict.Action == models.ActionBlock || verdict.Action == models.ActionWarn {
		if r.email.Host != "" && r.email.AdminEmail != "" {
			if err := r.sendEmail(verdict); err != nil {
				r.logger.Printf("Warning: failed to send email alert for %s: %v", verdict.PRURL, err)
			}
		}
	}
}

// timeDisplay renders the alert timestamp in UTC and JST.
func timeDisplay(now time.Time) string {
	utc := now.UTC()
	jst := utc.Add(9 * time.Hour)
	return fmt.Sprintf("%s | %s UTC / %s JST",
		utc.Format("2006-01-02"), utc.Format("15:04:05"), jst.Format("15:04:05"))
}

// issuesSummary renders the issue list as a numbered file:rule digest.
func issuesSummary(issues []models.Issue) string {
	if len(issues) == 0 {
		return "No specific issues detected."
	}
	lines := make([]string, 0, len(issues))
	for i, issue := range issues {
		file := issue.File
		if file == "" {
			file = "unknown"
		}
		rule := issue.Rule
		if rule == "" {
			rule = "unknown"
		}
		lines = append(lines, fmt.Sprintf("%d. %s: %s", i+1, file, rule))
	}
	return strings.Join(lines, "\n")
}

func severityIndicator(severity models.Severity) string {
	switch severity {
	case models.SeverityCritical:
		return "🔴 CRITICAL"
	case models.SeverityHigh:
		return "🟠 HIGH"
	case models.SeverityMedium:
		return "🟡 MEDIUM"
	default:
		return "🟢 LOW"
	}
}

func actionStatus(action models.Action) string {
	switch action {
	case models.ActionBlock:
		return "🚫 Merge Blocked"
	case models.ActionWarn:
		return "⚠️ Review Required"
	default:
		return "✅ Passed"
	}
}
