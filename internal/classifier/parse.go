package classifier

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/transparency-atlas/backend/internal/storage/models"
)

var errNotObject = errors.New("classification response is not a JSON object")

// parseVerdicts turns the collaborator's JSON into verdicts. It either
// succeeds with the entries it could read, or fails as a whole; unreadable
// entries are simply left out for backfill to cover.
func parseVerdicts(content string) (map[string]Verdict, error) {
	content = stripFence(content)

	var raw map[string]json.RawMessage
	if err := json.Unmarshal([]byte(content), &raw); err != nil {
		return nil, fmt.Errorf("failed to parse classification response: %w", err)
	}
	if raw == nil {
		return nil, errNotObject
	}

	verdicts := make(map[string]Verdict, len(raw))
	for name, value := range raw {
		if v, ok := parseVerdict(value); ok {
			verdicts[name] = v
		}
	}
	return verdicts, nil
}

// parseVerdict accepts {"score": n, "explanation": s} or a bare score.
func parseVerdict(value json.RawMessage) (Verdict, bool) {
	value = bytes.TrimSpace(value)
	if len(value) == 0 {
		return Verdict{}, false
	}

	if value[0] != '{' {
		var n float64
		if err := json.Unmarshal(value, &n); err != nil {
			return Verdict{}, false
		}
		return verdict(n == 1, ""), true
	}

	var entry struct {
		Score       json.RawMessage `json:"score"`
		Explanation json.RawMessage `json:"explanation"`
	}
	if err := json.Unmarshal(value, &entry); err != nil {
		return Verdict{}, false
	}

	var explanation string
	_ = json.Unmarshal(entry.Explanation, &explanation)

	return verdict(exactlyOne(entry.Score), explanation), true
}

// exactlyOne is the boolean coercion: only the number 1 counts. Strings,
// booleans and fractional confidences all mean absent.
func exactlyOne(raw json.RawMessage) bool {
	var n float64
	if err := json.Unmarshal(raw, &n); err != nil {
		return false
	}
	return n == 1
}

func verdict(present bool, explanation string) Verdict {
	if !present {
		return notMentioned
	}
	explanation = strings.TrimSpace(explanation)
	if explanation == "" {
		explanation = models.Mentioned
	}
	return Verdict{Score: 1, Explanation: explanation}
}

// stripFence removes a markdown code fence some models wrap JSON in.
func stripFence(content string) string {
	content = strings.TrimSpace(content)
	if !strings.HasPrefix(content, "```") {
		return content
	}
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	return strings.TrimSpace(content)
}
