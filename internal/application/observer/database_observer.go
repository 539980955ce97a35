package observer

import (
	"context"

	"github.com/nbcore/notebookcore/internal/domain/repository"
)

// DatabaseObserver appends every notebook lifecycle event to a durable
// audit trail via repository.EventRepository, independent of the
// current-state cell/notebook rows the coordinator writes directly.
type DatabaseObserver struct {
	name string
	repo repository.EventRepository
}

func NewDatabaseObserver(repo repository.EventRepository) *DatabaseObserver {
	return &DatabaseObserver{name: "database", repo: repo}
}

func (o *DatabaseObserver) Name() string { return o.name }

// Filter returns nil: the audit trail records every event, unfiltered.
func (o *DatabaseObserver) Filter() EventFilter { return nil }

func (o *DatabaseObserver) OnEvent(ctx context.Context, event Event) error {
	rec := repository.EventRecord{
		NotebookID: event.NotebookID,
		EventType:  string(event.Type),
		Status:     event.Status,
		Timestamp:  event.Timestamp,
	}
	if event.CellID != nil {
		rec.CellID = *event.CellID
	}
	if event.Error != nil {
		rec.Error = event.Error.Error()
	}

	payload := map[string]any{}
	if event.CellType != nil {
		payload["cell_type"] = *event.CellType
	}
	if event.CascadeIndex != nil {
		payload["cascade_index"] = *event.CascadeIndex
	}
	if event.CascadeTotal != nil {
		payload["cascade_total"] = *event.CascadeTotal
	}
	if len(event.Reads) > 0 {
		payload["reads"] = event.Reads
	}
	if len(event.Writes) > 0 {
		payload["writes"] = event.Writes
	}
	if event.Message != nil {
		payload["message"] = *event.Message
	}
	for k, v := range event.Metadata {
		payload[k] = v
	}
	rec.Payload = payload

	return o.repo.Append(ctx, rec)
}
