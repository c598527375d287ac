package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/poiesic/ragbook/core"
)

type checkpointRow struct {
	ProcessorType string    `db:"processor_type"`
	LastKey       string    `db:"last_key"`
	Processed     int       `db:"processed"`
	UpdatedAt     time.Time `db:"updated_at"`
}

// SaveCheckpoint inserts or replaces the checkpoint of a processor.
func (s *Store) SaveCheckpoint(ctx context.Context, checkpoint *core.Checkpoint) error {
	if checkpoint == nil || checkpoint.ProcessorType == "" {
		return core.Invalidf("checkpoint requires a processor type")
	}
	checkpoint.UpdatedAt = s.timestamp()
	_, err := s.exec(ctx, `INSERT INTO checkpoints (processor_type, last_key, processed, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (processor_type) DO UPDATE
		SET last_key = excluded.last_key, processed = excluded.processed, updated_at = excluded.updated_at`,
		checkpoint.ProcessorType, checkpoint.LastKey, checkpoint.Processed, checkpoint.UpdatedAt)
	return translate("save checkpoint", err)
}

// LoadCheckpoint returns the checkpoint of a processor, or nil if none exists.
func (s *Store) LoadCheckpoint(ctx context.Context, processorType string) (*core.Checkpoint, error) {
	var row checkpointRow
	err := s.get(ctx, &row, `SELECT processor_type, last_key, processed, updated_at
		FROM checkpoints WHERE processor_type = ?`, processorType)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, translate("load checkpoint", err)
	}
	return &core.Checkpoint{
		ProcessorType: row.ProcessorType,
		LastKey:       row.LastKey,
		Processed:     row.Processed,
		UpdatedAt:     row.UpdatedAt.UTC(),
	}, nil
}

// DeleteCheckpoint removes the checkpoint of a processor. Missing checkpoints are ignored.
func (s *Store) DeleteCheckpoint(ctx context.Context, processorType string) error {
	_, err := s.exec(ctx, `DELETE FROM checkpoints WHERE processor_type = ?`, processorType)
	return translate("delete checkpoint", err)
}
