package history

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/transparency-atlas/backend/internal/storage/models"
)

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// ParseDate reads the ISO-8601 forms used in history documents.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q", s)
}

func before(a, b Entry) bool {
	ta, errA := ParseDate(a.Date)
	tb, errB := ParseDate(b.Date)
	if errA != nil || errB != nil {
		return a.Date < b.Date
	}
	return ta.Before(tb)
}

// Sort orders entries by date, oldest first. Entries with the same date keep
// their relative order.
func Sort(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return before(entries[i], entries[j])
	})
}

// Build returns a sorted copy of entries with changes recomputed. Only
// entries that carry a card are recomputed, against the nearest earlier entry
// that also carries one; entries without a card keep the changes they were
// recorded with.
func Build(entries []Entry) []Entry {
	chain := make([]Entry, len(entries))
	copy(chain, entries)
	Sort(chain)

	var previous *Entry
	for i := range chain {
		if chain[i].Card == nil {
			if chain[i].Changes == nil {
				chain[i].Changes = []models.Change{}
			}
			continue
		}
		chain[i].Changes = Diff(previous, chain[i])
		previous = &chain[i]
	}
	return chain
}

// Append adds entry to a model's chain and returns the rebuilt chain. An
// entry dated before existing ones is placed in order, and its successor's
// changes are recomputed against it.
func Append(existing []Entry, entry Entry) []Entry {
	chain := make([]Entry, 0, len(existing)+1)
	chain = append(chain, existing...)
	chain = append(chain, entry)
	return Build(chain)
}

// Validate checks the fields every stored entry needs.
func Validate(entry Entry) error {
	if strings.TrimSpace(entry.ModelID) == "" {
		return errors.New("modelId is required")
	}
	if strings.TrimSpace(entry.Version) == "" {
		return errors.New("version is required")
	}
	if _, err := ParseDate(entry.Date); err != nil {
		return err
	}
	return nil
}
