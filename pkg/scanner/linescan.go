package scanner

import (
	"fmt"
	"log"
	"strings"

	"github.com/your-org/pr-sentinel/pkg/models"
	"github.com/your-org/pr-sentinel/pkg/patterns"
)

// LineScanner applies the pattern library to a diff's added lines.
type LineScanner struct {
	library *patterns.Library
	logger  *log.Logger
}

// NewLineScanner creates a scanner over the given compiled rule catalog.
func NewLineScanner(library *patterns.Library, logger *log.Logger) *LineScanner {
	return &LineScanner{
		library: library,
		logger:  logger,
	}
}

// ScanDiff scans the unified-diff text of a single file and returns one
// Issue per rule match on an added line. Line numbers are 1-based positions
// within the diff text. An empty diff yields no issues.
func (s *LineScanner) ScanDiff(diffText, filename string) []models.Issue {
	if diffText == "" {
		return nil
	}

	marker := patterns.IgnoreMarker(filename)
	lines := strings.Split(diffText, "\n")

	var issues []models.Issue
	for i, line := range lines {
		// Binary-file warnings carry no scannable content.
		if strings.HasPrefix(line, "Binary files") {
			continue
		}

		// Only added lines; "+++" is the diff file header, not content.
		if !strings.HasPrefix(line, "+") || strings.HasPrefix(line, "+++") {
			continue
		}

		// Whitelist escape hatch for fixtures and test data.
		if strings.Contains(line, marker) {
			continue
		}

		clean := line[1:]
		for _, rule := range s.library.Rules() {
			if issue, ok := s.matchRule(rule, clean, i+1); ok {
				issues = append(issues, issue)
			}
		}
	}

	return issues
}

// matchRule evaluates one rule against one line. A failure inside a single
// rule is logged and skipped so the remaining rules still run.
func (s *LineScanner) matchRule(rule patterns.Rule, line string, lineNum int) (issue models.Issue, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Printf("rule %s failed on line %d: %v", rule.ID, lineNum, r)
			ok = false
		}
	}()

	match := rule.Pattern.FindStringSubmatch(line)
	if match == nil {
		return models.Issue{}, false
	}
	if rule.Validate != nil && !rule.Validate(match) {
		return models.Issue{}, false
	}

	return models.Issue{
		Type:        "Pattern Violation",
		Line:        lineNum,
		Rule:        rule.ID,
		Severity:    rule.Severity,
		Description: fmt.Sprintf("Detected potential %s", rule.ID),
		Fix:         rule.Fix,
		Origin:      models.OriginRegex,
	}, true
}
