package report

import (
	"io"
	"log"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/your-org/pr-sentinel/pkg/models"
)

func TestTimeDisplay(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, "2024-05-01 | 12:00:00 UTC / 21:00:00 JST", timeDisplay(now))
}

func TestTimeDisplayConvertsToUTCFirst(t *testing.T) {
	loc := time.FixedZone("EST", -5*3600)
	now := time.Date(2024, 5, 1, 7, 0, 0, 0, loc)
	assert.Equal(t, "2024-05-01 | 12:00:00 UTC / 21:00:00 JST", timeDisplay(now))
}

func TestIssuesSummary(t *testing.T) {
	issues := []models.Issue{
		{File: "config.py", Rule: "AWS_ACCESS_KEY_ID"},
		{File: "db.py", Rule: "DB_CONNECTION_STRING"},
	}
	assert.Equal(t,
		"1. config.py: AWS_ACCESS_KEY_ID\n2. db.py: DB_CONNECTION_STRING",
		issuesSummary(issues))
}

func TestIssuesSummaryFillsMissingFields(t *testing.T) {
	assert.Equal(t, "1. unknown: unknown", issuesSummary([]models.Issue{{}}))
}

func TestIssuesSummaryEmpty(t *testing.T) {
	assert.Equal(t, "No specific issues detected.", issuesSummary(nil))
}

func TestSeverityIndicator(t *testing.T) {
	assert.Equal(t, "🔴 CRITICAL", severityIndicator(models.SeverityCritical))
	assert.Equal(t, "🟠 HIGH", severityIndicator(models.SeverityHigh))
	assert.Equal(t, "🟡 MEDIUM", severityIndicator(models.SeverityMedium))
	assert.Equal(t, "🟢 LOW", severityIndicator(models.SeverityLow))
}

func TestActionStatus(t *testing.T) {
	assert.Equal(t, "🚫 Merge Blocked", actionStatus(models.ActionBlock))
	assert.Equal(t, "⚠️ Review Required", actionStatus(models.ActionWarn))
	assert.Equal(t, "✅ Passed", actionStatus(models.ActionPass))
}

func TestDispatchNeverBlocksWhenQueueIsFull(t *testing.T) {
	// No sinks configured, so queued events are consumed as no-ops; fill far
	// past the buffer to prove Dispatch stays non-blocking regardless.
	r := NewReporter("", EmailConfig{}, log.New(io.Discard, "", 0))
	defer r.Close()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 500; i++ {
			r.Dispatch(models.ScanVerdict{Action: models.ActionBlock})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Dispatch blocked")
	}
}

func TestCloseDrainsQueue(t *testing.T) {
	r := NewReporter("", EmailConfig{}, log.New(io.Discard, "", 0))
	r.Dispatch(models.ScanVerdict{Action: models.ActionPass, Severity: models.SeverityLow})
	r.Close()
}

func TestEmailBodyIncludesVerdictDetails(t *testing.T) {
	verdict := models.ScanVerdict{
		PRMetadata: models.PRMetadata{
			Repo:   "acme/widgets",
			Branch: "feature/login",
			Author: "alice",
			PRURL:  "https://github.com/acme/widgets/pull/7",
		},
		Incident:  "Hardcoded Secrets / PII Detected",
		SummaryEN: "Found 2 critical patterns across 3 files.",
		Action:    models.ActionBlock,
		Severity:  models.SeverityCritical,
		Fix:       "Remove hardcoded values.",
		Issues: []models.Issue{
			{File: "config.py", Rule: "AWS_ACCESS_KEY_ID"},
		},
	}

	body := emailBody(verdict)
	assert.Contains(t, body, "acme/widgets")
	assert.Contains(t, body, "feature/login")
	assert.Contains(t, body, "alice")
	assert.Contains(t, body, "Found 2 critical patterns across 3 files.")
	assert.Contains(t, body, "config.py: AWS_ACCESS_KEY_ID")
	assert.Contains(t, body, "https://github.com/acme/widgets/pull/7")
}
