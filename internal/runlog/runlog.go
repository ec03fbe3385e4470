// Package runlog keeps the append-only record of every collaborator request
// and response made during a scrape run. The buffer is written once, when the
// run completes.
package runlog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
	"unicode/utf8"
)

type Kind string

const (
	KindRequest  Kind = "request"
	KindResponse Kind = "response"
)

// Service names used in log entries.
const (
	ServiceSearch         = "perplexity"
	ServiceClassification = "openai"
)

type Entry struct {
	Timestamp time.Time `json:"timestamp"`
	Service   string    `json:"service"`
	Type      Kind      `json:"type"`
	Data      any       `json:"data"`
}

// Recorder is the sink the collector and classifier write to.
type Recorder interface {
	Record(service string, kind Kind, data any)
}

// Buffer is the in-process Recorder for a run.
type Buffer struct {
	mu      sync.Mutex
	entries []Entry
	now     func() time.Time
}

func NewBuffer() *Buffer {
	return &Buffer{now: time.Now}
}

func (b *Buffer) Record(service string, kind Kind, data any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries = append(b.entries, Entry{
		Timestamp: b.now().UTC(),
		Service:   service,
		Type:      kind,
		Data:      data,
	})
}

func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.entries)
}

// Entries returns a copy of the buffer.
func (b *Buffer) Entries() []Entry {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Entry(nil), b.entries...)
}

// Flush writes the buffer as a JSON array. An empty buffer still produces
// an empty array so every completed run leaves a log file.
func (b *Buffer) Flush(path string) error {
	entries := b.Entries()
	if entries == nil {
		entries = []Entry{}
	}

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal run log: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write run log: %w", err)
	}
	return nil
}

// Discard drops every entry. Useful where no run log is wanted.
type Discard struct{}

func (Discard) Record(string, Kind, any) {}

// Truncate shortens s to at most n bytes for log previews, appending "..."
// when cut. The cut never splits a UTF-8 sequence.
func Truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
