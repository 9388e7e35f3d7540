package models

import "time"

// Action is the gate decision for one pull-request scan.
type Action string

const (
	ActionPass  Action = "PASS"
	ActionWarn  Action = "WARN"
	ActionBlock Action = "BLOCK"
)

// Severity levels, ordered from least to most severe.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Issue origin tags.
const (
	OriginRegex = "regex"
	OriginAI    = "ai"
)

// Issue is a single finding inside a scanned diff. Type is the issue
// category fed into the author's risk history (e.g. "Pattern Violation",
// "sql_injection").
type Issue struct {
	Type        string `json:"type"`
	File        string `json:"file"`
	Line        int    `json:"line"`
	Rule        string `json:"rule"`
	Severity    string `json:"severity"`
	Description string `json:"description"`
	Fix         string `json:"fix,omitempty"`
	Origin      string `json:"origin,omitempty"`
}

// FileChange is one changed file in a pull request, as reported by GitHub.
// Patch is the unified-diff text; it may be empty for binary or huge files.
type FileChange struct {
	Filename string `json:"filename"`
	Status   string `json:"status"`
	Patch    string `json:"patch"`
}

// PRMetadata identifies the pull request a scan belongs to.
type PRMetadata struct {
	Repo   string `json:"repo"`
	Branch string `json:"branch"`
	Author string `json:"author"`
	PRURL  string `json:"pr_url"`
}

// ScanVerdict is the outcome of scanning one pull request's changes.
// It is immutable once produced by the orchestrator.
type ScanVerdict struct {
	PRMetadata
	Incident  string   `json:"incident"`
	SummaryEN string   `json:"summary_en"`
	SummaryJP string   `json:"summary_jp"`
	Action    Action   `json:"action"`
	Severity  Severity `json:"severity"`
	Fix       string   `json:"fix"`
	Diff      string   `json:"diff"`
	Issues    []Issue  `json:"issues"`
}

// AuthorProfile is the persistent risk profile for one PR author.
type AuthorProfile struct {
	Author       string    `json:"author"`
	RiskScore    int       `json:"risk_score"`
	ScanCount    int       `json:"scan_count"`
	CommonIssues []string  `json:"common_issues"`
	IssueHistory []string  `json:"issue_history"`
	UpdatedAt    time.Time `json:"updated_at"`
}
