// Package rubric holds the weighted tree of documentation criteria that every
// model is evaluated against. A Rubric is static data: loaded once, validated,
// then only read.
package rubric

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"math"
	"os"
)

//go:embed default_rubric.json
var defaultRubric []byte

// weightTolerance absorbs float noise when summing section weights.
const weightTolerance = 0.01

type Rubric struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Version     string    `json:"version,omitempty"`
	Description string    `json:"description,omitempty"`
	Sections    []Section `json:"sections"`
}

type Section struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Weight      float64      `json:"weight"`
	Subsections []Subsection `json:"subsections"`
}

// Subsection is one boolean criterion. MaxScore is serialized as "score" to
// stay compatible with existing rubric documents.
type Subsection struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	MaxScore    float64 `json:"score"`
	Description string  `json:"description,omitempty"`
}

// Default returns the built-in rubric. It panics if the embedded document is
// invalid, which can only happen at build time.
func Default() *Rubric {
	r, err := Parse(defaultRubric)
	if err != nil {
		panic(fmt.Sprintf("embedded rubric is invalid: %v", err))
	}
	return r
}

// Load reads and validates a rubric document from disk.
func Load(path string) (*Rubric, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rubric: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) (*Rubric, error) {
	var r Rubric
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("failed to parse rubric: %w", err)
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return &r, nil
}

func (r *Rubric) Validate() error {
	if len(r.Sections) == 0 {
		return fmt.Errorf("rubric %q has no sections", r.ID)
	}

	var total float64
	seen := make(map[string]bool, len(r.Sections))
	for _, s := range r.Sections {
		if s.ID == "" {
			return fmt.Errorf("rubric %q has a section without an id", r.ID)
		}
		if seen[s.ID] {
			return fmt.Errorf("duplicate section id %q", s.ID)
		}
		seen[s.ID] = true

		if s.Weight < 0 {
			return fmt.Errorf("section %q has negative weight %v", s.ID, s.Weight)
		}
		total += s.Weight

		names := make(map[string]bool, len(s.Subsections))
		for _, sub := range s.Subsections {
			if sub.Name == "" {
				return fmt.Errorf("section %q has a subsection without a name", s.ID)
			}
			if names[sub.Name] {
				return fmt.Errorf("section %q has duplicate subsection %q", s.ID, sub.Name)
			}
			names[sub.Name] = true
			if sub.MaxScore < 0 {
				return fmt.Errorf("subsection %q in section %q has negative score", sub.Name, s.ID)
			}
		}
	}

	if math.Abs(total-100) > weightTolerance {
		return fmt.Errorf("section weights of rubric %q sum to %v, want 100", r.ID, total)
	}
	return nil
}

// Section looks a section up by id.
func (r *Rubric) Section(id string) (Section, bool) {
	for _, s := range r.Sections {
		if s.ID == id {
			return s, true
		}
	}
	return Section{}, false
}

// SubsectionNames lists the section's criteria in rubric order.
func (s Section) SubsectionNames() []string {
	names := make([]string, len(s.Subsections))
	for i, sub := range s.Subsections {
		names[i] = sub.Name
	}
	return names
}

// MaxTotal is the rollup denominator for the section. It depends only on the
// rubric, never on the model being scored.
func (s Section) MaxTotal() float64 {
	var total float64
	for _, sub := range s.Subsections {
		total += sub.MaxScore
	}
	return total
}
