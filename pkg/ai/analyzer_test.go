package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/pr-sentinel/pkg/models"
)

func testLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

// newCompletionServer serves an OpenAI-shaped chat completion whose message
// content is the given string.
func newCompletionServer(t *testing.T, content string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)

		resp := map[string]interface{}{
			"id":     "chatcmpl-test",
			"object": "chat.completion",
			"model":  "gpt-4o-mini",
			"choices": []map[string]interface{}{
				{
					"index": 0,
					"message": map[string]interface{}{
						"role":    "assistant",
						"content": content,
					},
					"finish_reason": "stop",
				},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
}

func newTestAnalyzer(t *testing.T, baseURL string) *Analyzer {
	t.Helper()
	analyzer, err := NewAnalyzer(Config{
		APIKey:  "test-key",
		BaseURL: baseURL,
		Timeout: 5 * time.Second,
	}, testLogger())
	require.NoError(t, err)
	return analyzer
}

func TestNewAnalyzerRequiresAPIKey(t *testing.T) {
	_, err := NewAnalyzer(Config{}, testLogger())
	assert.Error(t, err)
}

func TestNewAnalyzerDefaultsToGPT4oMini(t *testing.T) {
	var gotModel string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Model string `json:"model"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		gotModel = req.Model

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]interface{}{"role": "assistant", "content": `{"action": "PASS"}`}},
			},
		})
	}))
	defer srv.Close()

	analyzer := newTestAnalyzer(t, srv.URL)
	_, err := analyzer.Analyze(context.Background(), "+x = 1", "standard audit")
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o-mini", gotModel)
}

func TestAnalyzeParsesVerdict(t *testing.T) {
	verdict := `{
		"status": "warning",
		"summary_en": "Unchecked input reaches a SQL query.",
		"summary_jp": "未検証の入力がSQLクエリに到達しています。",
		"action": "WARN",
		"severity": "medium",
		"fix": "Use parameterized queries.",
		"vulnerabilities": [
			{"type": "sql_injection", "file": "db.py", "line": 12, "severity": "medium", "description": "String-built query."}
		]
	}`
	srv := newCompletionServer(t, verdict)
	defer srv.Close()

	analyzer := newTestAnalyzer(t, srv.URL)
	result, err := analyzer.Analyze(context.Background(), "+cursor.execute(query)", "standard audit")
	require.NoError(t, err)

	assert.Equal(t, models.ActionWarn, result.Action)
	assert.Equal(t, models.SeverityMedium, result.Severity)
	assert.Equal(t, "Unchecked input reaches a SQL query.", result.SummaryEN)
	assert.Equal(t, "Use parameterized queries.", result.Fix)
	require.Len(t, result.Issues, 1)
	assert.Equal(t, "sql_injection", result.Issues[0].Type)
	assert.Equal(t, models.OriginAI, result.Issues[0].Origin)
	assert.Equal(t, 12, result.Issues[0].Line)
}

func TestAnalyzeToleratesFencedJSON(t *testing.T) {
	content := "Here is my analysis:\n```json\n{\"action\": \"BLOCK\", \"severity\": \"critical\", \"summary_en\": \"Command injection.\"}\n```\nLet me know if you need more."
	srv := newCompletionServer(t, content)
	defer srv.Close()

	analyzer := newTestAnalyzer(t, srv.URL)
	result, err := analyzer.Analyze(context.Background(), "+os.system(cmd)", "standard audit")
	require.NoError(t, err)

	assert.Equal(t, models.ActionBlock, result.Action)
	assert.Equal(t, models.SeverityCritical, result.Severity)
}

func TestAnalyzeDefaultsUnknownActionAndSeverity(t *testing.T) {
	srv := newCompletionServer(t, `{"action": "MAYBE", "severity": "apocalyptic", "summary_en": "Shrug."}`)
	defer srv.Close()

	analyzer := newTestAnalyzer(t, srv.URL)
	result, err := analyzer.Analyze(context.Background(), "+x = 1", "standard audit")
	require.NoError(t, err)

	assert.Equal(t, models.ActionPass, result.Action)
	assert.Equal(t, models.SeverityLow, result.Severity)
}

func TestAnalyzeRejectsNonJSONResponse(t *testing.T) {
	srv := newCompletionServer(t, "I am unable to analyze this diff.")
	defer srv.Close()

	analyzer := newTestAnalyzer(t, srv.URL)
	_, err := analyzer.Analyze(context.Background(), "+x = 1", "standard audit")
	assert.Error(t, err)
}

func TestAnalyzeReturnsTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	analyzer := newTestAnalyzer(t, srv.URL)
	_, err := analyzer.Analyze(context.Background(), "+x = 1", "standard audit")
	assert.Error(t, err)
}

func TestCheckChampionParsesResult(t *testing.T) {
	srv := newCompletionServer(t, `{"is_security_fix": true, "badge": "Security Champion", "praise_message": "Great input validation work!"}`)
	defer srv.Close()

	analyzer := newTestAnalyzer(t, srv.URL)
	champion, err := analyzer.CheckChampion(context.Background(), "+if err := validate(input); err != nil {")
	require.NoError(t, err)

	assert.True(t, champion.IsSecurityFix)
	assert.Equal(t, "Great input validation work!", champion.Praise)
}

func TestCheckChampionNegative(t *testing.T) {
	srv := newCompletionServer(t, `{"is_security_fix": false}`)
	defer srv.Close()

	analyzer := newTestAnalyzer(t, srv.URL)
	champion, err := analyzer.CheckChampion(context.Background(), "+fmt.Println(42)")
	require.NoError(t, err)

	assert.False(t, champion.IsSecurityFix)
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{name: "bare object", input: `{"a": 1}`, want: `{"a": 1}`},
		{name: "fenced with language", input: "```json\n{\"a\": 1}\n```", want: `{"a": 1}`},
		{name: "fenced without language", input: "```\n{\"a\": 1}\n```", want: `{"a": 1}`},
		{name: "object inside prose", input: `Sure! {"a": 1} Hope that helps.`, want: `{"a": 1}`},
		{name: "multiline object", input: "{\n  \"a\": 1\n}", want: "{\n  \"a\": 1\n}"},
		{name: "empty", input: "", wantErr: true},
		{name: "no object", input: "no findings", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := extractJSON(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(got))
		})
	}
}

func TestAnalyzePromptEmbedsRiskContext(t *testing.T) {
	prompt := fmt.Sprintf(analyzePrompt, "ENGINEER CONTEXT: history of xss issues.", "+x = 1")
	assert.Contains(t, prompt, "history of xss issues")
	assert.Contains(t, prompt, "+x = 1")
}
