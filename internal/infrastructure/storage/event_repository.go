package storage

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"

	"github.com/nbcore/notebookcore/internal/domain/repository"
	"github.com/nbcore/notebookcore/internal/infrastructure/storage/models"
)

var _ repository.EventRepository = (*EventRepository)(nil)

// EventRepository implements repository.EventRepository over
// Bun/Postgres: a plain append-only insert, no upsert key, since every
// call represents a distinct historical event rather than current state.
type EventRepository struct {
	db *bun.DB
}

func NewEventRepository(db *bun.DB) *EventRepository {
	return &EventRepository{db: db}
}

// Append inserts one event row.
func (r *EventRepository) Append(ctx context.Context, rec repository.EventRecord) error {
	row := &models.EventModel{
		NotebookID: rec.NotebookID,
		EventType:  rec.EventType,
		CellID:     rec.CellID,
		Status:     rec.Status,
		Error:      rec.Error,
		Payload:    models.JSONBMap(rec.Payload),
		OccurredAt: rec.Timestamp,
	}
	if _, err := r.db.NewInsert().Model(row).Exec(ctx); err != nil {
		return fmt.Errorf("appending event: %w", err)
	}
	return nil
}
