package report

import (
	"fmt"
	"time"

	"github.com/slack-go/slack"

	"github.com/your-org/pr-sentinel/pkg/models"
)

// slackDiffLimit keeps the code excerpt inside Slack's section block cap.
const slackDiffLimit = 1000

// sendSlack posts the verdict as a block-formatted webhook message.
func (r *Reporter) sendSlack(verdict models.ScanVerdict) error {
	diff := verdict.Diff
	if len(diff) > slackDiffLimit {
		diff = diff[:slackDiffLimit]
	}
	if diff == "" {
		diff = "No code diff available."
	}

	fix := verdict.Fix
	if fix == "" {
		fix = "Please review security guidelines and remediate."
	}

	header := slack.NewHeaderBlock(slack.NewTextBlockObject(
		slack.PlainTextType,
		fmt.Sprintf("🛡️ Sentinel Alert — %s", verdict.Action),
		false, false,
	))

	fields := []*slack.TextBlockObject{
		slack.NewTextBlockObject(slack.MarkdownType, fmt.Sprintf("*Repository:*\n%s", verdict.Repo), false, false),
		slack.NewTextBlockObject(slack.MarkdownType, fmt.Sprintf("*Branch:*\n%s", verdict.Branch), false, false),
		slack.NewTextBlockObject(slack.MarkdownType, fmt.Sprintf("*Author:*\n%s", verdict.Author), false, false),
		slack.NewTextBlockObject(slack.MarkdownType, fmt.Sprintf("*Severity:*\n%s", severityIndicator(verdict.Severity)), false, false),
		slack.NewTextBlockObject(slack.MarkdownType, fmt.Sprintf("*Status:*\n%s", actionStatus(verdict.Action)), false, false),
		slack.NewTextBlockObject(slack.MarkdownType, fmt.Sprintf("*Time:*\n%s", timeDisplay(time.Now())), false, false),
	}
	details := slack.NewSectionBlock(nil, fields, nil)

	summary := slack.NewSectionBlock(slack.NewTextBlockObject(
		slack.MarkdownType,
		fmt.Sprintf("*%s*\n%s\n%s", verdict.Incident, verdict.SummaryEN, verdict.SummaryJP),
		false, false,
	), nil, nil)

	issues := slack.NewSectionBlock(slack.NewTextBlockObject(
		slack.MarkdownType,
		fmt.Sprintf("*Issues (%d):*\n%s", len(verdict.Issues), issuesSummary(verdict.Issues)),
		false, false,
	), nil, nil)

	excerpt := slack.NewSectionBlock(slack.NewTextBlockObject(
		slack.MarkdownType,
		fmt.Sprintf("*Fix:* %s\n```%s```", fix, diff),
		false, false,
	), nil, nil)

	link := slack.NewSectionBlock(slack.NewTextBlockObject(
		slack.MarkdownType,
		fmt.Sprintf("<%s|View Pull Request>", verdict.PRURL),
		false, false,
	), nil, nil)

	msg := &slack.WebhookMessage{
		Blocks: &slack.Blocks{
			BlockSet: []slack.Block{header, details, summary, issues, excerpt, link},
		},
	}

	return slack.PostWebhook(r.slackWebhookURL, msg)
}
