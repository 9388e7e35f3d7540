// Package patterns holds the static catalog of secret and PII detection
// rules applied by the line scanner. All patterns are compiled once at
// process start; a Library is safe for concurrent use.
package patterns

import (
	"path/filepath"
	"regexp"
	"strings"
)

// Rule categories.
type Category string

const (
	CategoryCredential Category = "credential"
	CategoryToken      Category = "token"
	CategoryPII        Category = "pii"
	CategoryCrypto     Category = "crypto-material"
)

// Severity assigned by set membership: secret rules always block,
// PII rules are reported as high.
const (
	SeverityCritical = "CRITICAL"
	SeverityHigh     = "HIGH"
)

// Rule is a single compiled detection rule. Validate, when set, runs on the
// matched text and may veto the match; it carries the checks Go's RE2 engine
// cannot express (lookahead-style entropy gates).
type Rule struct {
	ID       string
	Name     string
	Pattern  *regexp.Regexp
	Severity string
	Category Category
	Fix      string
	Validate func(match []string) bool
}

// Library is the ordered rule catalog, partitioned into the secret set
// (CRITICAL) and the PII set (HIGH).
type Library struct {
	secret []Rule
	pii    []Rule
	all    []Rule
}

const externalizeFix = "Use environment variables or a secret manager instead of hardcoding."

// placeholderValues are well-known dummy passwords that must never be
// reported, regardless of what the assignment pattern matched.
var placeholderValues = []string{
	"example", "test", "placeholder", "changeme", "password",
	"default", "sample", "none", "empty", "yourpassword", "admin",
}

// NewLibrary compiles the full rule catalog.
func NewLibrary() *Library {
	secret := []Rule{
		{
			ID:       "AWS_ACCESS_KEY_ID",
			Name:     "AWS Access Key ID",
			Pattern:  regexp.MustCompile(`\bAKIA[0-9A-Z]{16}`),
			Category: CategoryCredential,
		},
		{
			ID:       "AWS_SECRET_ACCESS_KEY",
			Name:     "AWS Secret Access Key assignment",
			Pattern:  regexp.MustCompile(`(?i)(?:aws_secret_access_key|[a-z0-9_]*secret[a-z0-9_]*key[a-z0-9_]*)['"]?\s*[:=]\s*['"]?[A-Za-z0-9/+=]{40}['"]?`),
			Category: CategoryCredential,
		},
		{
			ID:       "GOOGLE_API_KEY",
			Name:     "Google API key",
			Pattern:  regexp.MustCompile(`AIza[0-9A-Za-z\-_]{35}`),
			Category: CategoryToken,
		},
		{
			ID:       "GCP_PRIVATE_KEY_ID",
			Name:     "GCP private key id",
			Pattern:  regexp.MustCompile(`private_key_id['"]?:\s*['"]?[a-f0-9]{40}['"]?`),
			Category: CategoryCrypto,
		},
		{
			ID:       "GITHUB_TOKEN",
			Name:     "GitHub personal/OAuth token",
			Pattern:  regexp.MustCompile(`(ghp|gho|ghu|ghs|ghr)_[A-Za-z0-9_]{36}`),
			Category: CategoryToken,
		},
		{
			ID:       "SLACK_WEBHOOK",
			Name:     "Slack incoming webhook URL",
			Pattern:  regexp.MustCompile(`https://hooks\.slack\.com/services/T[A-Z0-9]{8,12}/B[A-Z0-9]{8,12}/[A-Z0-9]{24}`),
			Category: CategoryToken,
		},
		{
			ID:       "SLACK_BOT_TOKEN",
			Name:     "Slack bot token",
			Pattern:  regexp.MustCompile(`xoxb-[0-9]{10,12}-[0-9]{10,12}-[a-zA-Z0-9]{24}`),
			Category: CategoryToken,
		},
		{
			ID:       "DB_CONNECTION_STRING",
			Name:     "Database URI with embedded credentials",
			Pattern:  regexp.MustCompile(`(?i)\b(?:postgres(?:ql)?|mysql|mongodb|redis)://[^@\s:/?#]+(?::[^@\s/?#]*)?@[a-zA-Z0-9.\-]+(?::\d+)?(?:/[^\s?#]*)?`),
			Category: CategoryCredential,
		},
		{
			ID:       "GENERIC_PRIVATE_KEY",
			Name:     "PEM private key header",
			Pattern:  regexp.MustCompile(`-----BEGIN\s+(?:RSA|DSA|EC|OPENSSH|PGP)\s+PRIVATE\s+KEY-----`),
			Category: CategoryCrypto,
		},
		{
			ID:       "GENERIC_PASSWORD",
			Name:     "Hardcoded password assignment",
			Pattern:  regexp.MustCompile(`(?i)(?:password|passwd|pwd|secret)['"]?\s*[:=]\s*['"]?([A-Za-z0-9@#$%^&*]{8,})`),
			Category: CategoryCredential,
			Validate: validatePasswordEntropy,
		},
	}

	pii := []Rule{
		{
			ID:       "EMAIL_ADDRESS",
			Name:     "Email address",
			Pattern:  regexp.MustCompile(`[a-zA-Z0-9_.+-]+@[a-zA-Z0-9-]+\.[a-zA-Z0-9-.]+`),
			Category: CategoryPII,
		},
		{
			ID:       "CREDIT_CARD",
			Name:     "Credit card number",
			Pattern:  regexp.MustCompile(`\b(?:4[0-9]{3}[ -]?\d{4}[ -]?\d{4}[ -]?\d{4}|5[1-5]\d{2}[ -]?\d{4}[ -]?\d{4}[ -]?\d{4}|3[47]\d{2}[ -]?\d{6}[ -]?\d{5})\b`),
			Category: CategoryPII,
		},
		{
			ID:       "PHONE_NUMBER_JP",
			Name:     "Japanese phone number",
			Pattern:  regexp.MustCompile(`0\d{1,4}-\d{1,4}-\d{4}`),
			Category: CategoryPII,
		},
		{
			ID:       "IPV4_ADDRESS",
			Name:     "IPv4 address",
			Pattern:  regexp.MustCompile(`\b(?:(?:25[0-5]|2[0-4][0-9]|1\d{2}|[1-9]?\d)\.){3}(?:25[0-5]|2[0-4][0-9]|1\d{2}|[1-9]?\d)\b`),
			Category: CategoryPII,
		},
	}

	for i := range secret {
		secret[i].Severity = SeverityCritical
		secret[i].Fix = externalizeFix
	}
	for i := range pii {
		pii[i].Severity = SeverityHigh
	}

	all := make([]Rule, 0, len(secret)+len(pii))
	all = append(all, secret...)
	all = append(all, pii...)

	return &Library{secret: secret, pii: pii, all: all}
}

// Rules returns the combined catalog, secret rules first.
func (l *Library) Rules() []Rule { return l.all }

// SecretRules returns the CRITICAL (block-immediately) set.
func (l *Library) SecretRules() []Rule { return l.secret }

// PIIRules returns the HIGH set.
func (l *Library) PIIRules() []Rule { return l.pii }

// validatePasswordEntropy enforces the precision gate on generic password
// matches: the captured value needs upper+lower+digit and must not be a known
// placeholder. Naive matching on password assignments drowns reviewers in
// false positives.
func validatePasswordEntropy(match []string) bool {
	if len(match) < 2 {
		return false
	}
	value := match[1]
	if len(value) < 8 {
		return false
	}
	lower := strings.ToLower(value)
	for _, placeholder := range placeholderValues {
		if lower == placeholder || strings.HasPrefix(lower, placeholder) {
			return false
		}
	}
	var hasUpper, hasLower, hasDigit bool
	for _, r := range value {
		switch {
		case r >= 'A' && r <= 'Z':
			hasUpper = true
		case r >= 'a' && r <= 'z':
			hasLower = true
		case r >= '0' && r <= '9':
			hasDigit = true
		}
	}
	return hasUpper && hasLower && hasDigit
}

// ignoreKeyword is the fixed suppression keyword; combined with a
// language-appropriate comment opener it whitelists a line (fixtures, docs).
const ignoreKeyword = "sentinel-ignore:"

var extToLang = map[string]string{
	"py":         "python",
	"js":         "javascript",
	"jsx":        "javascript",
	"ts":         "typescript",
	"tsx":        "typescript",
	"java":       "java",
	"go":         "go",
	"rb":         "ruby",
	"php":        "php",
	"c":          "c",
	"cpp":        "cpp",
	"sh":         "bash",
	"yaml":       "yaml",
	"yml":        "yaml",
	"dockerfile": "dockerfile",
	"sql":        "sql",
}

var langCommentOpener = map[string]string{
	"python":     "#",
	"javascript": "//",
	"typescript": "//",
	"java":       "//",
	"go":         "//",
	"ruby":       "#",
	"php":        "//",
	"c":          "//",
	"cpp":        "//",
	"bash":       "#",
	"yaml":       "#",
	"dockerfile": "#",
	"sql":        "--",
}

// IgnoreMarker returns the suppression marker for the given filename's
// language. Unknown extensions fall back to the generic '#' opener.
func IgnoreMarker(filename string) string {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
	lang, ok := extToLang[ext]
	if !ok {
		lang = "python"
	}
	opener, ok := langCommentOpener[lang]
	if !ok {
		opener = "#"
	}
	return opener + " " + ignoreKeyword
}
