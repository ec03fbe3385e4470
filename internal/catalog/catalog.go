// Package catalog lists the model releases the pipeline evaluates.
package catalog

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"unicode"
)

//go:embed default_models.json
var defaultModels []byte

// Model identifies one release. Name and Provider are only used to template
// search queries and prompts; Type is carried through to the snapshot.
type Model struct {
	Name     string `json:"name"`
	Provider string `json:"provider"`
	Type     string `json:"type"`
}

// ID is the URL-safe identity used by the history store and the API,
// e.g. "Llama 4 Maverick" -> "llama-4-maverick".
func (m Model) ID() string {
	return Slug(m.Name)
}

func Slug(name string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(name) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == '.':
			if dash && b.Len() > 0 {
				b.WriteByte('-')
			}
			dash = false
			b.WriteRune(r)
		default:
			dash = true
		}
	}
	return b.String()
}

func Default() []Model {
	models, err := Parse(defaultModels)
	if err != nil {
		panic(fmt.Sprintf("embedded model list is invalid: %v", err))
	}
	return models
}

func Load(path string) ([]Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read model list: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) ([]Model, error) {
	var models []Model
	if err := json.Unmarshal(data, &models); err != nil {
		return nil, fmt.Errorf("failed to parse model list: %w", err)
	}
	for i, m := range models {
		if strings.TrimSpace(m.Name) == "" {
			return nil, fmt.Errorf("model %d has no name", i)
		}
		if strings.TrimSpace(m.Provider) == "" {
			return nil, fmt.Errorf("model %q has no provider", m.Name)
		}
	}
	return models, nil
}
