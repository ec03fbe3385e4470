package sqlite

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/transparency-atlas/backend/internal/storage/models"
	"github.com/transparency-atlas/backend/pkg/logger"
)

var ErrNotFound = errors.New("not found")

type Client struct {
	db  *sql.DB
	now func() time.Time
}

func NewClient(dbPath string) (*Client, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	_, err = db.Exec("PRAGMA journal_mode = WAL")
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	logger.Info("SQLite client initialized", zap.String("path", dbPath))

	return &Client{db: db, now: time.Now}, nil
}

func (c *Client) Close() error {
	return c.db.Close()
}

func (c *Client) InitSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS snapshots (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT UNIQUE NOT NULL,
		model_id TEXT NOT NULL,
		model TEXT NOT NULL,
		provider TEXT,
		type TEXT,
		captured_at INTEGER NOT NULL,
		data TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_snapshots_model_captured ON snapshots(model_id, captured_at);

	CREATE TABLE IF NOT EXISTS version_history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		model_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		version TEXT NOT NULL,
		date TEXT NOT NULL,
		summary TEXT,
		changed_by TEXT,
		card TEXT,
		changes TEXT NOT NULL,
		framework_metrics TEXT,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_history_model ON version_history(model_id, position);
	`

	_, err := c.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Info("SQLite schema initialized")
	return nil
}

// SaveSnapshot archives one evaluation and returns its id.
func (c *Client) SaveSnapshot(snapshot models.ModelEvaluationSnapshot) (string, error) {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return "", fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	captured := snapshot.CapturedAt
	if captured.IsZero() {
		captured = c.now()
	}

	id := uuid.New().String()
	query := `INSERT INTO snapshots (id, model_id, model, provider, type, captured_at, data) VALUES (?, ?, ?, ?, ?, ?, ?)`

	_, err = c.db.Exec(
		query,
		id,
		snapshot.ModelID(),
		snapshot.Model,
		snapshot.Provider,
		snapshot.Type,
		captured.UnixMilli(),
		string(data),
	)
	if err != nil {
		return "", fmt.Errorf("failed to insert snapshot: %w", err)
	}

	logger.Debug("Snapshot stored", zap.String("id", id), zap.String("model", snapshot.Model))
	return id, nil
}

// LatestSnapshot returns the snapshot of a model with the latest capture time.
// Snapshots captured at the same instant fall back to insertion order.
func (c *Client) LatestSnapshot(modelID string) (*models.StoredSnapshot, error) {
	query := `SELECT id, model_id, data FROM snapshots WHERE model_id = ? ORDER BY captured_at DESC, seq DESC LIMIT 1`

	stored, err := scanSnapshot(c.db.QueryRow(query, modelID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get snapshot: %w", err)
	}
	return stored, nil
}

// LatestSnapshots returns the latest captured snapshot of every model,
// ordered by model id.
func (c *Client) LatestSnapshots() ([]models.StoredSnapshot, error) {
	query := `
		SELECT s.id, s.model_id, s.data FROM snapshots s
		WHERE s.seq = (
			SELECT t.seq FROM snapshots t
			WHERE t.model_id = s.model_id
			ORDER BY t.captured_at DESC, t.seq DESC
			LIMIT 1
		)
		ORDER BY s.model_id
	`

	rows, err := c.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}
	defer rows.Close()

	snapshots := []models.StoredSnapshot{}
	for rows.Next() {
		stored, err := scanSnapshot(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		snapshots = append(snapshots, *stored)
	}

	return snapshots, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSnapshot(row scanner) (*models.StoredSnapshot, error) {
	var stored models.StoredSnapshot
	var data string

	if err := row.Scan(&stored.ID, &stored.ModelID, &data); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(data), &stored.Snapshot); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot %s: %w", stored.ID, err)
	}
	return &stored, nil
}
