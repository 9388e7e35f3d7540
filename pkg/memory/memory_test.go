package memory

import (
	"io"
	"log"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/pr-sentinel/pkg/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := OpenInMemory(log.New(io.Discard, "", 0))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func issuesOf(types ...string) []models.Issue {
	issues := make([]models.Issue, 0, len(types))
	for _, typ := range types {
		issues = append(issues, models.Issue{Type: typ, Severity: "high"})
	}
	return issues
}

func TestContextUnknownAuthorIsNeutral(t *testing.T) {
	store := newTestStore(t)

	ctx := store.Context("nobody")
	assert.Equal(t, "ENGINEER CONTEXT: New contributor. Perform standard audit.", ctx)
}

func TestContextEmptyAuthorIsNeutral(t *testing.T) {
	store := newTestStore(t)

	assert.Equal(t, "ENGINEER CONTEXT: New contributor. Perform standard audit.", store.Context(""))
}

func TestRecordScanAccumulatesScore(t *testing.T) {
	store := newTestStore(t)

	for i := 0; i < 3; i++ {
		require.NoError(t, store.RecordScan("bob", issuesOf("sql_injection", "sql_injection")))
	}

	profile, err := store.Profile("bob")
	require.NoError(t, err)
	assert.Equal(t, 60, profile.RiskScore)
	assert.Equal(t, 3, profile.ScanCount)
	assert.Equal(t, []string{"sql_injection"}, profile.CommonIssues)

	ctx := store.Context("bob")
	assert.Contains(t, ctx, "history of sql_injection issues")
	assert.Contains(t, ctx, "Risk Score: 60/100")
	assert.Contains(t, ctx, "Be extra vigilant")
}

func TestRecordScanScoreIsCapped(t *testing.T) {
	store := newTestStore(t)

	for i := 0; i < 20; i++ {
		require.NoError(t, store.RecordScan("mallory", issuesOf("hardcoded_secret")))
	}

	profile, err := store.Profile("mallory")
	require.NoError(t, err)
	assert.Equal(t, 100, profile.RiskScore)
}

func TestCleanScanDecaysScore(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.RecordScan("carol", issuesOf("xss", "xss")))
	require.NoError(t, store.RecordScan("carol", nil))

	profile, err := store.Profile("carol")
	require.NoError(t, err)
	assert.Equal(t, 15, profile.RiskScore)
	assert.Equal(t, 2, profile.ScanCount)
}

func TestCleanScanScoreFloorsAtZero(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.RecordScan("dave", nil))
	require.NoError(t, store.RecordScan("dave", nil))

	profile, err := store.Profile("dave")
	require.NoError(t, err)
	assert.Equal(t, 0, profile.RiskScore)
	assert.Equal(t, 2, profile.ScanCount)
}

func TestCommonIssuesKeepsTopThree(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.RecordScan("eve", issuesOf("xss", "xss", "xss")))
	require.NoError(t, store.RecordScan("eve", issuesOf("sql_injection", "sql_injection")))
	require.NoError(t, store.RecordScan("eve", issuesOf("ssrf", "ssrf")))
	require.NoError(t, store.RecordScan("eve", issuesOf("path_traversal")))

	profile, err := store.Profile("eve")
	require.NoError(t, err)
	assert.Equal(t, []string{"xss", "sql_injection", "ssrf"}, profile.CommonIssues)
}

func TestCategoryTiesBrokenByFirstSeen(t *testing.T) {
	assert.Equal(t,
		[]string{"b", "a"},
		topCategories([]string{"b", "a", "a", "b"}, 2),
	)
}

func TestIssueWithoutTypeCountsAsUnknown(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.RecordScan("frank", []models.Issue{{Severity: "medium"}}))

	profile, err := store.Profile("frank")
	require.NoError(t, err)
	assert.Equal(t, []string{"Unknown"}, profile.CommonIssues)
}

func TestRecordScanEmptyAuthorIsNoop(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.RecordScan("", issuesOf("xss")))

	profile, err := store.Profile("")
	require.NoError(t, err)
	assert.Equal(t, 0, profile.ScanCount)
}

func TestProfilePersistsAcrossReads(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.RecordScan("grace", issuesOf("xss")))

	first, err := store.Profile("grace")
	require.NoError(t, err)
	second, err := store.Profile("grace")
	require.NoError(t, err)
	assert.Equal(t, first.RiskScore, second.RiskScore)
	assert.False(t, first.UpdatedAt.IsZero())
}
