package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/nicetoya86/ticket/internal/storage/models"
	"github.com/nicetoya86/ticket/pkg/logger"
)

func (c *Client) ListStopwords(ctx context.Context, locale string) ([]models.Stopword, error) {
	query := `SELECT id, locale, token, created_at FROM stopwords WHERE (? = '' OR locale = ?) ORDER BY id`

	rows, err := c.db.QueryContext(ctx, query, locale, locale)
	if err != nil {
		return nil, fmt.Errorf("failed to list stopwords: %w", err)
	}
	defer rows.Close()

	words := []models.Stopword{}
	for rows.Next() {
		var w models.Stopword
		var createdAt int64
		if err := rows.Scan(&w.ID, &w.Locale, &w.Token, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan stopword: %w", err)
		}
		w.CreatedAt = time.Unix(createdAt, 0)
		words = append(words, w)
	}
	return words, rows.Err()
}

// StopwordTokens returns just the tokens, for merging into a keyword builder.
func (c *Client) StopwordTokens(ctx context.Context) ([]string, error) {
	words, err := c.ListStopwords(ctx, "")
	if err != nil {
		return nil, err
	}
	out := make([]string, len(words))
	for i, w := range words {
		out[i] = w.Token
	}
	return out, nil
}

// AddStopword inserts a stopword; adding an existing one is a no-op.
func (c *Client) AddStopword(ctx context.Context, locale, token string) error {
	query := `INSERT OR IGNORE INTO stopwords (locale, token, created_at) VALUES (?, ?, ?)`

	if _, err := c.db.ExecContext(ctx, query, locale, token, time.Now().Unix()); err != nil {
		return fmt.Errorf("failed to add stopword: %w", err)
	}

	logger.Info("Stopword added", zap.String("locale", locale), zap.String("token", token))
	return nil
}

func (c *Client) ListLabelMappings(ctx context.Context, source string) ([]models.LabelMapping, error) {
	query := `
		SELECT id, source, label, category, confidence, created_at
		FROM label_mappings
		WHERE (? = '' OR source = ?)
		ORDER BY id
	`

	rows, err := c.db.QueryContext(ctx, query, source, source)
	if err != nil {
		return nil, fmt.Errorf("failed to list label mappings: %w", err)
	}
	defer rows.Close()

	mappings := []models.LabelMapping{}
	for rows.Next() {
		var m models.LabelMapping
		var createdAt int64
		if err := rows.Scan(&m.ID, &m.Source, &m.Label, &m.Category, &m.Confidence, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan label mapping: %w", err)
		}
		m.CreatedAt = time.Unix(createdAt, 0)
		mappings = append(mappings, m)
	}
	return mappings, rows.Err()
}

func (c *Client) UpsertLabelMapping(ctx context.Context, m *models.LabelMapping) error {
	query := `
		INSERT INTO label_mappings (source, label, category, confidence, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(source, label) DO UPDATE SET
			category = excluded.category,
			confidence = excluded.confidence
	`

	if m.Confidence == 0 {
		m.Confidence = 1.0
	}
	if _, err := c.db.ExecContext(ctx, query, m.Source, m.Label, m.Category, m.Confidence, time.Now().Unix()); err != nil {
		return fmt.Errorf("failed to upsert label mapping: %w", err)
	}
	return nil
}

func (c *Client) InsertAnalysis(ctx context.Context, rec *models.AnalysisRecord) error {
	query := `
		INSERT INTO analysis_history (id, inquiry_type, from_date, to_date, source, record_count,
			summary, result_json, used_llm, latency_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := c.db.ExecContext(ctx, query,
		rec.ID,
		rec.InquiryType,
		rec.From,
		rec.To,
		rec.Source,
		rec.RecordCount,
		rec.Summary,
		rec.ResultJSON,
		boolToInt(rec.UsedLLM),
		rec.LatencyMS,
		rec.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert analysis: %w", err)
	}

	logger.Info("Analysis recorded",
		zap.String("analysis_id", rec.ID),
		zap.String("inquiry_type", rec.InquiryType),
		zap.Int("records", rec.RecordCount),
		zap.Bool("used_llm", rec.UsedLLM),
	)
	return nil
}

func (c *Client) ListAnalyses(ctx context.Context, inquiryType string, limit int) ([]models.AnalysisRecord, error) {
	query := `
		SELECT id, inquiry_type, from_date, to_date, COALESCE(source, ''), record_count,
			COALESCE(summary, ''), COALESCE(result_json, ''), used_llm, COALESCE(latency_ms, 0), created_at
		FROM analysis_history
		WHERE (? = '' OR inquiry_type = ?)
		ORDER BY created_at DESC
		LIMIT ?
	`

	rows, err := c.db.QueryContext(ctx, query, inquiryType, inquiryType, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list analyses: %w", err)
	}
	defer rows.Close()

	var records []models.AnalysisRecord
	for rows.Next() {
		var r models.AnalysisRecord
		var usedLLM int
		var createdAt int64
		err := rows.Scan(&r.ID, &r.InquiryType, &r.From, &r.To, &r.Source, &r.RecordCount,
			&r.Summary, &r.ResultJSON, &usedLLM, &r.LatencyMS, &createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan analysis: %w", err)
		}
		r.UsedLLM = usedLLM == 1
		r.CreatedAt = time.Unix(createdAt, 0)
		records = append(records, r)
	}
	return records, rows.Err()
}

// GetCheckpoint returns the stored checkpoint value and whether one exists.
func (c *Client) GetCheckpoint(ctx context.Context, source, checkpointType string) (string, bool, error) {
	query := `SELECT value FROM ingestion_checkpoints WHERE source = ? AND checkpoint_type = ?`

	var value string
	err := c.db.QueryRowContext(ctx, query, source, checkpointType).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get checkpoint: %w", err)
	}
	return value, true, nil
}

func (c *Client) SetCheckpoint(ctx context.Context, cp models.Checkpoint) error {
	query := `
		INSERT INTO ingestion_checkpoints (source, checkpoint_type, value)
		VALUES (?, ?, ?)
		ON CONFLICT(source, checkpoint_type) DO UPDATE SET value = excluded.value
	`

	if _, err := c.db.ExecContext(ctx, query, cp.Source, cp.Type, cp.Value); err != nil {
		return fmt.Errorf("failed to set checkpoint: %w", err)
	}

	logger.Debug("Checkpoint updated",
		zap.String("source", cp.Source),
		zap.String("type", cp.Type),
		zap.String("value", cp.Value),
	)
	return nil
}
