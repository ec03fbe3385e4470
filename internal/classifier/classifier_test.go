package classifier

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/transparency-atlas/backend/internal/llm"
	"github.com/transparency-atlas/backend/internal/runlog"
	"github.com/transparency-atlas/backend/internal/storage/models"
)

type fakeCompleter struct {
	calls   []llm.CompletionRequest
	content string
	err     error
}

func (f *fakeCompleter) Complete(_ context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	f.calls = append(f.calls, req)
	if f.err != nil {
		return nil, f.err
	}
	return &llm.CompletionResponse{Model: "gpt-4o-mini", Content: f.content}, nil
}

var resources = []models.Resource{
	{ID: "model-data-snippet-1", Title: "Card", URL: "https://a.example", Snippet: "Trained on 15T tokens of public web data."},
	{ID: "model-data-snippet-2", Title: "Blog", URL: "https://b.example", Snippet: "Knowledge cutoff is December 2023."},
}

func subsectionNames(n int) []string {
	names := make([]string, n)
	for i := range names {
		names[i] = fmt.Sprintf("Subsection %d", i+1)
	}
	return names
}

func TestClassifyBackfillsMissingEntries(t *testing.T) {
	names := subsectionNames(9)
	content := "{"
	for i := 0; i < 7; i++ {
		if i > 0 {
			content += ","
		}
		content += fmt.Sprintf(`%q: {"score": 1, "explanation": "quote %d"}`, names[i], i+1)
	}
	content += "}"

	c := New(&fakeCompleter{content: content}, Options{})
	got := c.Classify(context.Background(), resources, names, "GPT-4o", "Model Data")

	require.Len(t, got, 9)
	for _, name := range names[:7] {
		assert.Equal(t, 1, got[name].Score, name)
	}
	for _, name := range names[7:] {
		assert.Equal(t, Verdict{Score: 0, Explanation: models.NotMentioned}, got[name], name)
	}
}

func TestClassifyEmptyResourcesSkipsCall(t *testing.T) {
	completer := &fakeCompleter{content: "{}"}
	log := runlog.NewBuffer()
	c := New(completer, Options{Recorder: log})

	names := subsectionNames(4)
	got := c.Classify(context.Background(), nil, names, "GPT-4o", "Model Data")

	require.Len(t, got, 4)
	for _, name := range names {
		assert.Equal(t, 0, got[name].Score)
		assert.Equal(t, models.NotMentioned, got[name].Explanation)
	}
	assert.Empty(t, completer.calls)
	assert.Equal(t, 0, log.Len())
}

func TestClassifySingleCallPerSection(t *testing.T) {
	completer := &fakeCompleter{content: `{"Training Dataset": {"score": 1, "explanation": "15T tokens"}}`}
	log := runlog.NewBuffer()
	c := New(completer, Options{Recorder: log, Model: "gpt-4o-mini"})

	names := []string{"Training Dataset", "Knowledge Cutoff"}
	got := c.Classify(context.Background(), resources, names, "GPT-4o", "Model Data")

	require.Len(t, completer.calls, 1)
	req := completer.calls[0]
	assert.True(t, req.JSONMode)
	require.NotNil(t, req.Temperature)
	assert.InDelta(t, 0.1, *req.Temperature, 1e-6)
	assert.Contains(t, req.UserPrompt, "15T tokens of public web data")
	assert.Contains(t, req.UserPrompt, "December 2023")

	assert.Equal(t, Verdict{Score: 1, Explanation: "15T tokens"}, got["Training Dataset"])
	assert.Equal(t, Verdict{Score: 0, Explanation: models.NotMentioned}, got["Knowledge Cutoff"])

	entries := log.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, runlog.ServiceClassification, entries[0].Service)
	assert.Equal(t, runlog.KindRequest, entries[0].Type)
	assert.Equal(t, runlog.KindResponse, entries[1].Type)
}

func TestClassifyZeroTemperature(t *testing.T) {
	completer := &fakeCompleter{content: "{}"}
	zero := float32(0)
	c := New(completer, Options{Temperature: &zero})

	c.Classify(context.Background(), resources, []string{"Training Dataset"}, "GPT-4o", "Model Data")

	require.Len(t, completer.calls, 1)
	require.NotNil(t, completer.calls[0].Temperature)
	assert.Zero(t, *completer.calls[0].Temperature)
}

func TestClassifyDropsUnrequestedNames(t *testing.T) {
	completer := &fakeCompleter{content: `{"A": {"score": 1, "explanation": "a"}, "Z": {"score": 1, "explanation": "z"}}`}
	got := New(completer, Options{}).Classify(context.Background(), resources, []string{"A", "B"}, "m", "s")

	assert.Len(t, got, 2)
	assert.NotContains(t, got, "Z")
	assert.Equal(t, 1, got["A"].Score)
	assert.Equal(t, 0, got["B"].Score)
}

func TestClassifyCollaboratorFailure(t *testing.T) {
	completer := &fakeCompleter{err: errors.New("rate limited")}
	log := runlog.NewBuffer()
	names := subsectionNames(3)

	got := New(completer, Options{Recorder: log}).Classify(context.Background(), resources, names, "m", "s")

	require.Len(t, got, 3)
	for _, name := range names {
		assert.Equal(t, notMentioned, got[name])
	}
	entries := log.Entries()
	require.Len(t, entries, 2, "the failed call still gets a response entry")
	assert.Contains(t, entries[1].Data, "error")
}

func TestClassifyUnparseableResponse(t *testing.T) {
	for _, content := range []string{"not json", "[1, 2]", "null", ""} {
		completer := &fakeCompleter{content: content}
		got := New(completer, Options{}).Classify(context.Background(), resources, []string{"A", "B"}, "m", "s")
		assert.Equal(t, map[string]Verdict{"A": notMentioned, "B": notMentioned}, got, content)
	}
}

func TestClassifyEmptyNames(t *testing.T) {
	completer := &fakeCompleter{content: "{}"}
	got := New(completer, Options{}).Classify(context.Background(), resources, nil, "m", "s")
	assert.Empty(t, got)
	assert.Empty(t, completer.calls)
}

func TestParseVerdictCoercion(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want Verdict
	}{
		{"object present", `{"score": 1, "explanation": " quoted "}`, Verdict{1, "quoted"}},
		{"object absent", `{"score": 0, "explanation": "anything"}`, notMentioned},
		{"present without explanation", `{"score": 1}`, Verdict{1, models.Mentioned}},
		{"float one", `{"score": 1.0, "explanation": "x"}`, Verdict{1, "x"}},
		{"confidence", `{"score": 0.9, "explanation": "x"}`, notMentioned},
		{"string score", `{"score": "1", "explanation": "x"}`, notMentioned},
		{"bool score", `{"score": true, "explanation": "x"}`, notMentioned},
		{"bare one", `1`, Verdict{1, models.Mentioned}},
		{"bare zero", `0`, notMentioned},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := parseVerdict([]byte(tt.raw))
			require.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}

	_, ok := parseVerdict([]byte(`"yes"`))
	assert.False(t, ok)
}

func TestParseVerdictsStripsFence(t *testing.T) {
	got, err := parseVerdicts("```json\n{\"A\": {\"score\": 1, \"explanation\": \"a\"}}\n```")
	require.NoError(t, err)
	assert.Equal(t, Verdict{1, "a"}, got["A"])
}

func TestChecksFollowsNameOrder(t *testing.T) {
	verdicts := map[string]Verdict{"B": {1, "b"}, "A": notMentioned}
	checks := Checks([]string{"A", "B", "C"}, verdicts)

	require.Len(t, checks, 3)
	assert.Equal(t, "A", checks[0].Name)
	assert.Equal(t, models.SubsectionCheck{Name: "B", Score: 1, Explanation: "b"}, checks[1])
	assert.Equal(t, models.NotMentioned, checks[2].Explanation)
}

func TestBuildPrompt(t *testing.T) {
	p := BuildPrompt(resources, []string{"Training Dataset", "Knowledge Cutoff"}, "GPT-4o", "Model Data")

	assert.Contains(t, p, "GPT-4o")
	assert.Contains(t, p, `"Model Data"`)
	assert.Contains(t, p, "1. Training Dataset")
	assert.Contains(t, p, "2. Knowledge Cutoff")
	assert.Contains(t, p, "Resource 1:")
	assert.Contains(t, p, "Resource 2:")
	assert.Contains(t, p, models.NotMentioned)
}
