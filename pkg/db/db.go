// Package db records scan verdicts and their issues in Postgres for the
// analytics consumers. Writes are best-effort from the pipeline's point of
// view: a failed insert never changes an already-computed verdict.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"github.com/your-org/pr-sentinel/pkg/models"
)

type DB struct {
	*sql.DB
}

func NewDB(host, port, user, password, dbname string) (*DB, error) {
	connStr := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname,
	)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("error connecting to database: %v", err)
	}

	// Test connection
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("error connecting to the database: %v", err)
	}

	return &DB{db}, nil
}

// ScanRecord is one persisted scan, as read back for analytics.
type ScanRecord struct {
	ID           string
	Repo         string
	PRNumber     int
	PRTitle      string
	PRURL        string
	Author       string
	Action       string
	Severity     string
	IssuesCount  int
	FilesScanned int
	CreatedAt    time.Time
}

// PatternCount is the detection frequency of one rule.
type PatternCount struct {
	Rule  string
	Count int
}

// RecordScan persists one verdict plus its per-issue rows inside a single
// transaction, upserting the repository and engineer aggregates.
func (db *DB) RecordScan(ctx context.Context, prNumber int, prTitle, commitSHA string, verdict models.ScanVerdict, filesScanned int) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("error starting transaction: %v", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO repositories (full_name, total_scans, total_issues, blocked_prs, last_scan_at)
         VALUES ($1, 1, $2, $3, NOW())
         ON CONFLICT (full_name) DO UPDATE SET
             total_scans = repositories.total_scans + 1,
             total_issues = repositories.total_issues + EXCLUDED.total_issues,
             blocked_prs = repositories.blocked_prs + EXCLUDED.blocked_prs,
             last_scan_at = NOW()`,
		verdict.Repo, len(verdict.Issues), boolToInt(verdict.Action == models.ActionBlock),
	)
	if err != nil {
		return fmt.Errorf("error upserting repository: %v", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO engineers (id, total_prs, clean_prs, warned_prs, blocked_prs, total_issues, last_activity_at)
         VALUES ($1, 1, $2, $3, $4, $5, NOW())
         ON CONFLICT (id) DO UPDATE SET
             total_prs = engineers.total_prs + 1,
             clean_prs = engineers.clean_prs + EXCLUDED.clean_prs,
             warned_prs = engineers.warned_prs + EXCLUDED.warned_prs,
             blocked_prs = engineers.blocked_prs + EXCLUDED.blocked_prs,
             total_issues = engineers.total_issues + EXCLUDED.total_issues,
             last_activity_at = NOW()`,
		verdict.Author,
		boolToInt(verdict.Action == models.ActionPass),
		boolToInt(verdict.Action == models.ActionWarn),
		boolToInt(verdict.Action == models.ActionBlock),
		len(verdict.Issues),
	)
	if err != nil {
		return fmt.Errorf("error upserting engineer: %v", err)
	}

	scanID := uuid.NewString()
	_, err = tx.ExecContext(ctx,
		`INSERT INTO scan_results
         (id, repo_full_name, pr_number, pr_title, pr_url, commit_sha, branch, author,
          action, severity, issues_count, files_scanned, summary_en, summary_jp, fix_suggestion)
         VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		scanID, verdict.Repo, prNumber, prTitle, verdict.PRURL, commitSHA, verdict.Branch,
		verdict.Author, string(verdict.Action), string(verdict.Severity),
		len(verdict.Issues), filesScanned, verdict.SummaryEN, verdict.SummaryJP, verdict.Fix,
	)
	if err != nil {
		return fmt.Errorf("error inserting scan result: %v", err)
	}

	for _, issue := range verdict.Issues {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO security_issues
             (id, scan_id, file_path, line_number, rule, issue_type, severity, origin)
             VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			uuid.NewString(), scanID, issue.File, issue.Line,
			issue.Rule, issue.Type, issue.Severity, issue.Origin,
		)
		if err != nil {
			return fmt.Errorf("error inserting security issue: %v", err)
		}
	}

	return tx.Commit()
}

// GetRecentScans returns the newest scans, optionally filtered by action.
func (db *DB) GetRecentScans(ctx context.Context, action string, limit int) ([]ScanRecord, error) {
	query := `SELECT id, repo_full_name, pr_number, pr_title, pr_url, author,
                     action, severity, issues_count, files_scanned, created_at
              FROM scan_results`
	args := []interface{}{}
	if action != "" {
		query += ` WHERE action = $1`
		args = append(args, action)
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT %d`, limit)

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error querying recent scans: %v", err)
	}
	defer rows.Close()

	var scans []ScanRecord
	for rows.Next() {
		var s ScanRecord
		err := rows.Scan(
			&s.ID, &s.Repo, &s.PRNumber, &s.PRTitle, &s.PRURL, &s.Author,
			&s.Action, &s.Severity, &s.IssuesCount, &s.FilesScanned, &s.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("error scanning result row: %v", err)
		}
		scans = append(scans, s)
	}

	return scans, rows.Err()
}

// GetPatternCounts returns rule detection frequency since the given time.
func (db *DB) GetPatternCounts(ctx context.Context, since time.Time) ([]PatternCount, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT i.rule, COUNT(i.id)
         FROM security_issues i
         JOIN scan_results s ON s.id = i.scan_id
         WHERE s.created_at >= $1
         GROUP BY i.rule
         ORDER BY COUNT(i.id) DESC
         LIMIT 10`,
		since,
	)
	if err != nil {
		return nil, fmt.Errorf("error querying pattern counts: %v", err)
	}
	defer rows.Close()

	var counts []PatternCount
	for rows.Next() {
		var c PatternCount
		if err := rows.Scan(&c.Rule, &c.Count); err != nil {
			return nil, fmt.Errorf("error scanning pattern count row: %v", err)
		}
		counts = append(counts, c)
	}

	return counts, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
