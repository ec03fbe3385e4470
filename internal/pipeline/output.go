package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/transparency-atlas/backend/internal/storage/models"
)

// ResultsFileName names a results file by model count and capture time so
// runs never overwrite each other.
func ResultsFileName(count int, now time.Time) string {
	return fmt.Sprintf("%d-models-scraped_%d.json", count, now.UnixMilli())
}

// LogFileName is api-calls_ followed by the UTC timestamp with ':' and '.'
// replaced, e.g. api-calls_2024-05-01T10-20-30-123Z.json.
func LogFileName(now time.Time) string {
	stamp := now.UTC().Format("2006-01-02T15:04:05.000Z")
	stamp = strings.NewReplacer(":", "-", ".", "-").Replace(stamp)
	return "api-calls_" + stamp + ".json"
}

// WriteResults writes snapshots as one JSON array into dir and returns the
// file path.
func WriteResults(dir string, snapshots []models.ModelEvaluationSnapshot, now time.Time) (string, error) {
	if snapshots == nil {
		snapshots = []models.ModelEvaluationSnapshot{}
	}
	data, err := json.MarshalIndent(snapshots, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal results: %w", err)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create results directory: %w", err)
	}

	path := filepath.Join(dir, ResultsFileName(len(snapshots), now))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write results: %w", err)
	}
	return path, nil
}

// ReadResults loads a results file written by WriteResults.
func ReadResults(path string) ([]models.ModelEvaluationSnapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read results: %w", err)
	}
	var snapshots []models.ModelEvaluationSnapshot
	if err := json.Unmarshal(data, &snapshots); err != nil {
		return nil, fmt.Errorf("failed to parse results: %w", err)
	}
	return snapshots, nil
}
