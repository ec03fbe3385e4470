package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/transparency-atlas/backend/internal/history"
	"github.com/transparency-atlas/backend/internal/storage/models"
	"github.com/transparency-atlas/backend/pkg/logger"
)

// History returns a model's version chain, oldest first. An unknown model has
// an empty chain.
func (c *Client) History(modelID string) ([]models.VersionHistoryEntry, error) {
	return loadHistory(c.db, modelID)
}

// AppendHistory adds entry to its model's chain, recomputing changes, and
// returns the stored chain.
func (c *Client) AppendHistory(entry models.VersionHistoryEntry) ([]models.VersionHistoryEntry, error) {
	if err := history.Validate(entry); err != nil {
		return nil, fmt.Errorf("invalid history entry: %w", err)
	}

	tx, err := c.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	existing, err := loadHistory(tx, entry.ModelID)
	if err != nil {
		return nil, err
	}

	chain := history.Append(existing, entry)
	if err := c.replaceHistory(tx, entry.ModelID, chain); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit history: %w", err)
	}

	logger.Info("History entry appended",
		zap.String("model_id", entry.ModelID),
		zap.String("version", entry.Version),
		zap.Int("entries", len(chain)),
	)
	return chain, nil
}

// ImportHistory replaces the chains of every model in the document. Entries
// take their model id from the document key.
func (c *Client) ImportHistory(doc map[string][]models.VersionHistoryEntry) (int, error) {
	ids := make([]string, 0, len(doc))
	for id := range doc {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	tx, err := c.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	total := 0
	for _, id := range ids {
		entries := make([]models.VersionHistoryEntry, len(doc[id]))
		for i, e := range doc[id] {
			e.ModelID = id
			if err := history.Validate(e); err != nil {
				return 0, fmt.Errorf("invalid history entry %d for %s: %w", i, id, err)
			}
			entries[i] = e
		}

		chain := history.Build(entries)
		if err := c.replaceHistory(tx, id, chain); err != nil {
			return 0, err
		}
		total += len(chain)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit history import: %w", err)
	}

	logger.Info("History imported", zap.Int("models", len(ids)), zap.Int("entries", total))
	return total, nil
}

type querier interface {
	Query(query string, args ...any) (*sql.Rows, error)
}

func loadHistory(q querier, modelID string) ([]models.VersionHistoryEntry, error) {
	query := `
		SELECT model_id, version, date, summary, changed_by, card, changes, framework_metrics
		FROM version_history
		WHERE model_id = ?
		ORDER BY position
	`

	rows, err := q.Query(query, modelID)
	if err != nil {
		return nil, fmt.Errorf("failed to get history: %w", err)
	}
	defer rows.Close()

	entries := []models.VersionHistoryEntry{}
	for rows.Next() {
		var e models.VersionHistoryEntry
		var summary, changedBy, card, metrics sql.NullString
		var changes string

		err := rows.Scan(&e.ModelID, &e.Version, &e.Date, &summary, &changedBy, &card, &changes, &metrics)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		e.Summary = summary.String
		e.ChangedBy = changedBy.String
		if err := json.Unmarshal([]byte(changes), &e.Changes); err != nil {
			return nil, fmt.Errorf("failed to unmarshal changes: %w", err)
		}
		if card.Valid && card.String != "" {
			e.Card = &models.ModelCard{}
			if err := json.Unmarshal([]byte(card.String), e.Card); err != nil {
				return nil, fmt.Errorf("failed to unmarshal card: %w", err)
			}
		}
		if metrics.Valid && metrics.String != "" {
			e.FrameworkMetrics = &models.FrameworkMetrics{}
			if err := json.Unmarshal([]byte(metrics.String), e.FrameworkMetrics); err != nil {
				return nil, fmt.Errorf("failed to unmarshal framework metrics: %w", err)
			}
		}
		entries = append(entries, e)
	}

	return entries, rows.Err()
}

func (c *Client) replaceHistory(tx *sql.Tx, modelID string, chain []models.VersionHistoryEntry) error {
	if _, err := tx.Exec(`DELETE FROM version_history WHERE model_id = ?`, modelID); err != nil {
		return fmt.Errorf("failed to clear history: %w", err)
	}

	query := `
		INSERT INTO version_history (model_id, position, version, date, summary, changed_by, card, changes, framework_metrics, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	for i, e := range chain {
		changes, err := json.Marshal(e.Changes)
		if err != nil {
			return fmt.Errorf("failed to marshal changes: %w", err)
		}
		card, err := nullableJSON(e.Card)
		if err != nil {
			return err
		}
		metrics, err := nullableJSON(e.FrameworkMetrics)
		if err != nil {
			return err
		}

		_, err = tx.Exec(
			query,
			modelID,
			i,
			e.Version,
			e.Date,
			e.Summary,
			e.ChangedBy,
			card,
			string(changes),
			metrics,
			c.now().Unix(),
		)
		if err != nil {
			return fmt.Errorf("failed to insert history entry: %w", err)
		}
	}

	return nil
}

func nullableJSON[T any](v *T) (sql.NullString, error) {
	if v == nil {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("failed to marshal %T: %w", v, err)
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}
