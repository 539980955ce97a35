package models

import (
	"time"

	"github.com/uptrace/bun"
)

// EventModel is one append-only row in the notebook lifecycle event
// log, written by the database observer sink.
type EventModel struct {
	bun.BaseModel `bun:"table:notebook_events,alias:ne"`

	ID         int64     `bun:"id,pk,autoincrement" json:"id"`
	NotebookID string    `bun:"notebook_id,notnull" json:"notebook_id"`
	EventType  string    `bun:"event_type,notnull" json:"event_type"`
	CellID     string    `bun:"cell_id,default:''" json:"cell_id,omitempty"`
	Status     string    `bun:"status,default:''" json:"status,omitempty"`
	Error      string    `bun:"error_text,default:''" json:"error,omitempty"`
	Payload    JSONBMap  `bun:"payload,type:jsonb,default:'{}'" json:"payload,omitempty"`
	OccurredAt time.Time `bun:"occurred_at,notnull" json:"occurred_at"`
	CreatedAt  time.Time `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
}

func (e *EventModel) BeforeInsert(ctx interface{}) error {
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now()
	}
	e.CreatedAt = time.Now()
	return nil
}
