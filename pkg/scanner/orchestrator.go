package scanner

import (
	"context"
	"fmt"
	"log"
	"strings"
	"unicode/utf8"

	"github.com/your-org/pr-sentinel/pkg/ai"
	"github.com/your-org/pr-sentinel/pkg/models"
	"github.com/your-org/pr-sentinel/pkg/patterns"
)

// RiskMemory is the per-author profile store the orchestrator reads before
// the AI tier and updates after every scan that examined content.
type RiskMemory interface {
	Context(author string) string
	RecordScan(author string, issues []models.Issue) error
}

// Analyzer is the external reasoning capability consulted when the regex
// tier is clean.
type Analyzer interface {
	Analyze(ctx context.Context, diff, riskContext string) (ai.Result, error)
	CheckChampion(ctx context.Context, diff string) (*ai.Champion, error)
}

const (
	// combinedDiffLimit bounds the AI payload across all files.
	combinedDiffLimit = 10000
	// Verdict diff excerpts, kept small for status/notification payloads.
	blockDiffExcerpt = 2000
	aiDiffExcerpt    = 1000
)

// Orchestrator composes the regex tier, risk memory and the AI tier into the
// decision pipeline producing one verdict per pull request.
type Orchestrator struct {
	scanner  *LineScanner
	memory   RiskMemory
	analyzer Analyzer // nil means the AI tier is unavailable
	logger   *log.Logger
}

// NewOrchestrator wires the pipeline. analyzer may be nil; scans then degrade
// to the regex tier plus a fail-open PASS.
func NewOrchestrator(library *patterns.Library, memory RiskMemory, analyzer Analyzer, logger *log.Logger) *Orchestrator {
	return &Orchestrator{
		scanner:  NewLineScanner(library, logger),
		memory:   memory,
		analyzer: analyzer,
		logger:   logger,
	}
}

// Run scans one pull request's changed files and returns the verdict.
//
// The regex tier runs first over every file with a patch. Any finding
// terminates the scan with BLOCK; the AI tier is only consulted on a clean
// sweep over a non-empty diff, and its failure degrades to PASS.
func (o *Orchestrator) Run(ctx context.Context, files []models.FileChange, meta models.PRMetadata) models.ScanVerdict {
	var regexIssues []models.Issue
	var combined strings.Builder

	for _, file := range files {
		if file.Patch == "" {
			continue
		}

		for _, issue := range o.scanner.ScanDiff(file.Patch, file.Filename) {
			issue.File = file.Filename
			regexIssues = append(regexIssues, issue)
		}

		if combined.Len() < combinedDiffLimit {
			fmt.Fprintf(&combined, "\n--- File: %s ---\n%s\n", file.Filename, file.Patch)
		}
	}

	if len(regexIssues) > 0 {
		return o.blockVerdict(regexIssues, len(files), combined.String(), meta)
	}

	if combined.Len() > 0 {
		return o.aiVerdict(ctx, combined.String(), meta)
	}

	return models.ScanVerdict{
		PRMetadata: meta,
		Incident:   "No changes to scan",
		SummaryEN:  "No changes to scan.",
		SummaryJP:  "スキャン対象の変更はありません。",
		Action:     models.ActionPass,
		Severity:   models.SeverityLow,
		Issues:     []models.Issue{},
	}
}

// blockVerdict is the regex-tier terminal state. Risk memory is updated with
// the findings before returning; the AI tier is never reached.
func (o *Orchestrator) blockVerdict(issues []models.Issue, fileCount int, combined string, meta models.PRMetadata) models.ScanVerdict {
	o.recordScan(meta.Author, issues)

	return models.ScanVerdict{
		PRMetadata: meta,
		Incident:   "Hardcoded Secrets / PII Detected",
		SummaryEN:  fmt.Sprintf("Found %d critical patterns across %d files.", len(issues), fileCount),
		SummaryJP:  fmt.Sprintf("複数のファイルで%d件の機密情報が検出されました。", len(issues)),
		Action:     models.ActionBlock,
		Severity:   models.SeverityCritical,
		Fix:        "Remove hardcoded values.",
		Diff:       truncate(combined, blockDiffExcerpt),
		Issues:     issues,
	}
}

// aiVerdict runs the AI tier. Adapter failure is an explicit branch, not a
// recovered panic: the scan fails open to PASS because the regex tier has
// already caught hard blockers by this point.
func (o *Orchestrator) aiVerdict(ctx context.Context, combined string, meta models.PRMetadata) models.ScanVerdict {
	if o.analyzer == nil {
		o.logger.Printf("Warning: AI tier unavailable, passing %s by default", meta.PRURL)
		o.recordScan(meta.Author, nil)
		return o.failOpenVerdict(combined, meta)
	}

	riskContext := o.memory.Context(meta.Author)

	result, err := o.analyzer.Analyze(ctx, combined, riskContext)
	if err != nil {
		o.logger.Printf("Warning: AI analysis failed for %s: %v", meta.PRURL, err)
		o.recordScan(meta.Author, nil)
		return o.failOpenVerdict(combined, meta)
	}

	o.recordScan(meta.Author, result.Issues)

	summaryEN := result.SummaryEN
	summaryJP := result.SummaryJP
	if result.Action == models.ActionPass {
		summaryEN, summaryJP = o.championEnrichment(ctx, combined, summaryEN, summaryJP)
	}

	incident := result.SummaryEN
	if incident == "" {
		incident = "Security Audit"
	}

	issues := result.Issues
	if issues == nil {
		issues = []models.Issue{}
	}

	return models.ScanVerdict{
		PRMetadata: meta,
		Incident:   incident,
		SummaryEN:  summaryEN,
		SummaryJP:  summaryJP,
		Action:     result.Action,
		Severity:   result.Severity,
		Fix:        result.Fix,
		Diff:       truncate(combined, aiDiffExcerpt),
		Issues:     issues,
	}
}

// championEnrichment appends bilingual praise when a clean diff is judged to
// be a security improvement. Never changes the action.
func (o *Orchestrator) championEnrichment(ctx context.Context, combined, summaryEN, summaryJP string) (string, string) {
	champion, err := o.analyzer.CheckChampion(ctx, combined)
	if err != nil {
		o.logger.Printf("Warning: champion check failed: %v", err)
		return summaryEN, summaryJP
	}
	if champion == nil || !champion.IsSecurityFix {
		return summaryEN, summaryJP
	}

	praise := champion.Praise
	if praise == "" {
		praise = "This change improves the security posture."
	}
	summaryEN = strings.TrimSpace(summaryEN + " 🛡️ Security Champion: " + praise)
	summaryJP = strings.TrimSpace(summaryJP + " 🛡️ セキュリティ改善を確認しました。素晴らしい貢献です。")
	return summaryEN, summaryJP
}

// failOpenVerdict is the adapter-unavailable result variant: a PASS with a
// warning annotation, never a block.
func (o *Orchestrator) failOpenVerdict(combined string, meta models.PRMetadata) models.ScanVerdict {
	return models.ScanVerdict{
		PRMetadata: meta,
		Incident:   "AI analysis unavailable",
		SummaryEN:  "AI analysis unavailable - no automated findings, passing by default.",
		SummaryJP:  "AI分析が利用できないため、デフォルトで通過させます。",
		Action:     models.ActionPass,
		Severity:   models.SeverityLow,
		Diff:       truncate(combined, aiDiffExcerpt),
		Issues:     []models.Issue{},
	}
}

func (o *Orchestrator) recordScan(author string, issues []models.Issue) {
	if o.memory == nil {
		return
	}
	if err := o.memory.RecordScan(author, issues); err != nil {
		o.logger.Printf("Warning: failed to update risk memory for %s: %v", author, err)
	}
}

// truncate cuts s to at most n bytes without splitting a UTF-8 rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
