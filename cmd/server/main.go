package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/go-github/v45/github"
	"github.com/joho/godotenv"

	"github.com/your-org/pr-sentinel/pkg/ai"
	"github.com/your-org/pr-sentinel/pkg/db"
	"github.com/your-org/pr-sentinel/pkg/gh"
	"github.com/your-org/pr-sentinel/pkg/memory"
	"github.com/your-org/pr-sentinel/pkg/models"
	"github.com/your-org/pr-sentinel/pkg/patterns"
	"github.com/your-org/pr-sentinel/pkg/report"
	"github.com/your-org/pr-sentinel/pkg/scanner"
	"github.com/your-org/pr-sentinel/pkg/signature"
)

// Config holds the server configuration, read from the environment.
type Config struct {
	Port          string
	WebhookSecret string
	AllowedRepos  []string
	MemoryPath    string

	GitHub gh.Config
	AI     ai.Config

	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	SlackWebhookURL string
	Email           report.EmailConfig
}

// gitHubAPI is the slice of the GitHub collaborator the webhook needs.
type gitHubAPI interface {
	PullRequestFiles(ctx context.Context, repoFullName string, number int) ([]models.FileChange, error)
	SetCommitStatus(ctx context.Context, repoFullName, sha, state, description string) error
	PostComment(ctx context.Context, repoFullName string, number int, body string) error
}

// verdictSink receives produced verdicts for asynchronous notification.
type verdictSink interface {
	Dispatch(models.ScanVerdict)
}

// App wires the scan pipeline behind the webhook endpoint.
type App struct {
	cfg          Config
	logger       *log.Logger
	github       gitHubAPI
	orchestrator *scanner.Orchestrator
	memory       *memory.Store
	store        *db.DB
	reporter     verdictSink
}

// scanActions are the PR actions that trigger a scan.
var scanActions = map[string]bool{
	"opened":      true,
	"synchronize": true,
	"reopened":    true,
}

func loadConfig() Config {
	return Config{
		Port:          getEnv("PORT", "8080"),
		WebhookSecret: os.Getenv("GITHUB_WEBHOOK_SECRET"),
		AllowedRepos:  splitCSV(os.Getenv("ALLOWED_REPOS")),
		MemoryPath:    getEnv("RISK_MEMORY_PATH", "data/risk-memory"),
		GitHub: gh.Config{
			Token:          os.Getenv("GITHUB_TOKEN"),
			AppID:          getEnvInt64("GITHUB_APP_ID", 0),
			InstallationID: getEnvInt64("GITHUB_INSTALLATION_ID", 0),
			PrivateKeyPath: os.Getenv("GITHUB_APP_KEY_PATH"),
			BaseURL:        os.Getenv("GITHUB_BASE_URL"),
		},
		AI: ai.Config{
			APIKey:  os.Getenv("AI_API_KEY"),
			BaseURL: os.Getenv("AI_BASE_URL"),
			Model:   os.Getenv("AI_MODEL"),
			Timeout: 30 * time.Second,
		},
		DBHost:     os.Getenv("DB_HOST"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     os.Getenv("DB_USER"),
		DBPassword: os.Getenv("DB_PASSWORD"),
		DBName:     os.Getenv("DB_NAME"),

		SlackWebhookURL: os.Getenv("SLACK_WEBHOOK_URL"),
		Email: report.EmailConfig{
			Host:       os.Getenv("SMTP_HOST"),
			Port:       int(getEnvInt64("SMTP_PORT", 587)),
			Username:   os.Getenv("SMTP_USERNAME"),
			Password:   os.Getenv("SMTP_PASSWORD"),
			From:       os.Getenv("ALERT_FROM_EMAIL"),
			AdminEmail: os.Getenv("SECURITY_ADMIN_EMAIL"),
		},
	}
}

// repoAllowed checks the repository against the allow-list of exact names
// and org/* wildcards. An empty list blocks everything.
func (app *App) repoAllowed(fullName string) bool {
	for _, pattern := range app.cfg.AllowedRepos {
		if pattern == fullName {
			return true
		}
		if org, ok := strings.CutSuffix(pattern, "/*"); ok && strings.HasPrefix(fullName, org+"/") {
			return true
		}
	}
	return false
}

// handleWebhook is the inbound GitHub webhook endpoint.
func (app *App) handleWebhook(c *gin.Context) {
	ctx := c.Request.Context()
	eventType := c.GetHeader("X-GitHub-Event")
	delivery := c.GetHeader("X-GitHub-Delivery")
	app.logger.Printf("Received webhook - event: %s, delivery: %s", eventType, delivery)

	payload, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read request body"})
		return
	}

	// Signature check runs on the raw bytes, before any parsing.
	if !signature.Verify(payload, c.GetHeader("X-Hub-Signature-256"), app.cfg.WebhookSecret) {
		app.logger.Printf("Invalid webhook signature - rejecting delivery %s", delivery)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid signature - webhook authentication failed"})
		return
	}

	if eventType != "pull_request" {
		c.JSON(http.StatusOK, gin.H{
			"status": "ignored",
			"reason": fmt.Sprintf("event type %q is not processed", eventType),
		})
		return
	}

	var event github.PullRequestEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		app.logger.Printf("Invalid webhook payload: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON payload"})
		return
	}

	repoName := event.GetRepo().GetFullName()
	if !app.repoAllowed(repoName) {
		app.logger.Printf("Repository %s not in allow-list - rejecting", repoName)
		c.JSON(http.StatusForbidden, gin.H{
			"error": fmt.Sprintf("repository %q is not in the allowed list", repoName),
		})
		return
	}

	action := event.GetAction()
	if !scanActions[action] {
		c.JSON(http.StatusOK, gin.H{
			"status": "ignored",
			"reason": fmt.Sprintf("action %q does not trigger scanning", action),
		})
		return
	}

	prNumber := event.GetNumber()
	pr := event.GetPullRequest()
	sha := pr.GetHead().GetSHA()
	meta := models.PRMetadata{
		Repo:   repoName,
		Branch: pr.GetHead().GetRef(),
		Author: pr.GetUser().GetLogin(),
		PRURL:  pr.GetHTMLURL(),
	}
	app.logger.Printf("Processing %s#%d by @%s", repoName, prNumber, meta.Author)

	if app.github == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "GitHub client not configured"})
		return
	}

	app.setStatus(ctx, repoName, sha, "pending", "Security scan in progress...")

	files, err := app.github.PullRequestFiles(ctx, repoName, prNumber)
	if err != nil {
		app.logger.Printf("Failed to fetch PR files for %s#%d: %v", repoName, prNumber, err)
		app.setStatus(ctx, repoName, sha, "error", "Failed to fetch PR files")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch PR files"})
		return
	}

	if len(files) == 0 {
		app.setStatus(ctx, repoName, sha, "success", "No files to scan")
		c.JSON(http.StatusOK, gin.H{
			"status":  "success",
			"message": "no text files to scan",
			"repo":    repoName,
			"pr":      prNumber,
		})
		return
	}

	verdict := app.orchestrator.Run(ctx, files, meta)

	// Persistence is best-effort: the verdict stands even if the insert fails.
	if app.store != nil {
		if err := app.store.RecordScan(ctx, prNumber, pr.GetTitle(), sha, verdict, len(files)); err != nil {
			app.logger.Printf("Warning: failed to persist scan result for %s#%d: %v", repoName, prNumber, err)
		}
	}

	app.finishStatus(ctx, repoName, sha, prNumber, verdict)

	if app.reporter != nil {
		app.reporter.Dispatch(verdict)
	}

	app.logger.Printf("Scan complete for %s#%d: %s (%s, %d issues)",
		repoName, prNumber, verdict.Action, verdict.Severity, len(verdict.Issues))

	c.JSON(http.StatusOK, gin.H{
		"status":        "success",
		"message":       "security scan completed",
		"repo":          repoName,
		"pr":            prNumber,
		"author":        meta.Author,
		"files_scanned": len(files),
		"scan_result": gin.H{
			"action":       verdict.Action,
			"severity":     verdict.Severity,
			"issues_count": len(verdict.Issues),
		},
	})
}

// finishStatus maps the verdict onto the commit status and, on a block,
// leaves a PR comment with the findings.
func (app *App) finishStatus(ctx context.Context, repoName, sha string, prNumber int, verdict models.ScanVerdict) {
	switch verdict.Action {
	case models.ActionBlock:
		app.setStatus(ctx, repoName, sha, "failure",
			fmt.Sprintf("Security issues found (%d critical)", len(verdict.Issues)))
		if err := app.github.PostComment(ctx, repoName, prNumber, blockComment(verdict)); err != nil {
			app.logger.Printf("Warning: failed to comment on %s#%d: %v", repoName, prNumber, err)
		}
	case models.ActionWarn:
		app.setStatus(ctx, repoName, sha, "success",
			fmt.Sprintf("Warnings found (%d issues)", len(verdict.Issues)))
	default:
		app.setStatus(ctx, repoName, sha, "success", "Security scan passed")
	}
}

// setStatus writes a commit status, logging failures only.
func (app *App) setStatus(ctx context.Context, repoName, sha, state, description string) {
	if err := app.github.SetCommitStatus(ctx, repoName, sha, state, description); err != nil {
		app.logger.Printf("Warning: failed to set %s status on %s@%s: %v", state, repoName, sha, err)
	}
}

func blockComment(verdict models.ScanVerdict) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## 🚫 Security scan blocked this pull request\n\n")
	fmt.Fprintf(&b, "%s\n\n%s\n\n", verdict.SummaryEN, verdict.SummaryJP)
	fmt.Fprintf(&b, "| File | Line | Rule | Severity |\n|---|---|---|---|\n")
	for _, issue := range verdict.Issues {
		fmt.Fprintf(&b, "| %s | %d | %s | %s |\n", issue.File, issue.Line, issue.Rule, issue.Severity)
	}
	if verdict.Fix != "" {
		fmt.Fprintf(&b, "\n**Suggested fix:** %s\n", verdict.Fix)
	}
	return b.String()
}

// handleRecentScans serves the newest persisted scan results, optionally
// filtered by ?action=BLOCK|WARN|PASS.
func (app *App) handleRecentScans(c *gin.Context) {
	if app.store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "database not configured"})
		return
	}

	limit := 20
	if raw := c.Query("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 && parsed <= 100 {
			limit = parsed
		}
	}

	scans, err := app.store.GetRecentScans(c.Request.Context(), c.Query("action"), limit)
	if err != nil {
		app.logger.Printf("Failed to query recent scans: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to query scan history"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(scans), "scans": scans})
}

// handlePatternStats serves rule detection frequency over the last 30 days.
func (app *App) handlePatternStats(c *gin.Context) {
	if app.store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "database not configured"})
		return
	}

	since := time.Now().AddDate(0, 0, -30)
	counts, err := app.store.GetPatternCounts(c.Request.Context(), since)
	if err != nil {
		app.logger.Printf("Failed to query pattern counts: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to query pattern stats"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"since": since, "patterns": counts})
}

func (app *App) handleHealth(c *gin.Context) {
	health := gin.H{
		"status":         "healthy",
		"github_client":  app.github != nil,
		"secrets_loaded": app.cfg.WebhookSecret != "",
		"allowed_repos":  len(app.cfg.AllowedRepos),
		"risk_memory":    app.memory != nil,
		"database":       false,
	}
	if app.store != nil {
		health["database"] = app.store.PingContext(c.Request.Context()) == nil
	}

	if app.github == nil || app.cfg.WebhookSecret == "" {
		health["status"] = "degraded"
		c.JSON(http.StatusServiceUnavailable, health)
		return
	}
	c.JSON(http.StatusOK, health)
}

func setupRouter(app *App) *gin.Engine {
	r := gin.Default()
	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"service":     "pr-sentinel",
			"status":      "operational",
			"description": "Automated security scanning for GitHub pull requests",
		})
	})
	r.GET("/health", app.handleHealth)
	r.GET("/stats/scans", app.handleRecentScans)
	r.GET("/stats/patterns", app.handlePatternStats)
	r.POST("/webhook/github", app.handleWebhook)
	return r
}

func main() {
	if err := godotenv.Load(); err == nil {
		log.Printf("Loaded configuration from .env")
	}

	logger := log.New(os.Stdout, "[Sentinel] ", log.LstdFlags|log.Lshortfile)
	cfg := loadConfig()

	if cfg.WebhookSecret == "" {
		logger.Printf("Warning: GITHUB_WEBHOOK_SECRET not set - all webhooks will be rejected")
	}
	if len(cfg.AllowedRepos) == 0 {
		logger.Printf("Warning: ALLOWED_REPOS not set - all repositories will be rejected")
	}

	riskMemory, err := memory.Open(cfg.MemoryPath, logger)
	if err != nil {
		logger.Fatalf("Failed to open risk memory: %v", err)
	}
	defer riskMemory.Close()

	var store *db.DB
	if cfg.DBHost != "" {
		store, err = db.NewDB(cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPassword, cfg.DBName)
		if err != nil {
			logger.Printf("Warning: failed to connect to database: %v", err)
			store = nil
		}
	}

	var githubClient gitHubAPI
	client, err := gh.NewClient(cfg.GitHub, logger)
	if err != nil {
		logger.Printf("Warning: GitHub client unavailable: %v", err)
	} else {
		githubClient = client
	}

	var analyzer scanner.Analyzer
	aiClient, err := ai.NewAnalyzer(cfg.AI, logger)
	if err != nil {
		logger.Printf("Warning: AI tier unavailable: %v", err)
	} else {
		analyzer = aiClient
	}

	reporter := report.NewReporter(cfg.SlackWebhookURL, cfg.Email, logger)
	defer reporter.Close()

	app := &App{
		cfg:          cfg,
		logger:       logger,
		github:       githubClient,
		orchestrator: scanner.NewOrchestrator(patterns.NewLibrary(), riskMemory, analyzer, logger),
		memory:       riskMemory,
		store:        store,
		reporter:     reporter,
	}

	router := setupRouter(app)
	logger.Printf("Starting server on :%s", cfg.Port)
	if err := router.Run(":" + cfg.Port); err != nil {
		logger.Fatalf("Server failed: %v", err)
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

// Helper function to get int64 from environment with default
func getEnvInt64(key string, defaultVal int64) int64 {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.ParseInt(val, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
