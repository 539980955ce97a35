package observer

import (
	"context"
	"time"
)

// Observer is the core interface for notebook cell execution event
// observation. It sits alongside coordinator.Broadcaster: the Broadcaster
// fans BroadcastEvent out to live WebSocket subscribers, while Observer
// implementations fan the same notebook lifecycle out to sinks that care
// about a durable or external record (database, HTTP webhook, logs).
type Observer interface {
	// OnEvent is called when any execution event occurs
	OnEvent(ctx context.Context, event Event) error

	// Name returns the observer's unique identifier
	Name() string

	// Filter returns the event filter for this observer (nil = all events)
	Filter() EventFilter
}

// Event represents a notebook cell lifecycle event with complete context.
type Event struct {
	// Event metadata
	Type       EventType // Event type (cascade.started, cell.completed, etc)
	NotebookID string // Notebook UUID
	Timestamp  time.Time // Event timestamp

	// Context-specific fields (populated based on event type)
	CellID *string // Cell ID (for cell events)
	CellType *string // Cell type (python, sql)
	CascadeIndex *int // Position within the running cascade
	CascadeTotal *int // Number of cells executed in the cascade (for cascade.complete)

	// Status and results
	Status string // Current status (running, success, error, blocked)
	Error error // Error if any

	// Data payload
	Reads []string // Variable names this cell reads
	Writes []string // Variable names this cell writes

	// Additional metadata
	Metadata map[string]any // Additional context
	Message *string // Optional message
}

// EventType represents the type of notebook execution event (dot notation).
type EventType string

const (
	EventTypeCascadeStarted  EventType = "cascade.started"
	EventTypeCascadeComplete EventType = "cascade.complete"
	EventTypeCellStarted     EventType = "cell.started"
	EventTypeCellCompleted   EventType = "cell.completed"
	EventTypeCellFailed      EventType = "cell.failed"
	EventTypeCellBlocked     EventType = "cell.blocked"
	EventTypeKernelError     EventType = "kernel.error"
)

// EventFilter defines filtering criteria for events
type EventFilter interface {
	ShouldNotify(event Event) bool
}

// EventTypeFilter filters events by type
type EventTypeFilter struct {
	allowedTypes map[EventType]bool
}

// NewEventTypeFilter creates a filter for specific event types
// If no types specified, allows all events
func NewEventTypeFilter(types ...EventType) EventFilter {
	if len(types) == 0 {
		return nil // nil filter = all events
	}

	filter := &EventTypeFilter{
		allowedTypes: make(map[EventType]bool),
	}
	for _, t := range types {
		filter.allowedTypes[t] = true
	}
	return filter
}

// ShouldNotify checks if the event should trigger notification
func (f *EventTypeFilter) ShouldNotify(event Event) bool {
	if f == nil || len(f.allowedTypes) == 0 {
		return true // No filter = all events
	}
	return f.allowedTypes[event.Type]
}

// NotebookIDFilter filters events by notebook ID
type NotebookIDFilter struct {
	notebookID string
}

// NewNotebookIDFilter creates a filter that only passes events for a specific notebook
func NewNotebookIDFilter(notebookID string) EventFilter {
	return &NotebookIDFilter{notebookID: notebookID}
}

// ShouldNotify returns true if the event belongs to the target notebook
func (f *NotebookIDFilter) ShouldNotify(event Event) bool {
	return event.NotebookID == f.notebookID
}

// CellIDFilter filters events by cell IDs.
// Events without a CellID (kernel.error, for example) always pass through;
// cascade events carry the initiating cell's ID and are filtered like
// cell events.
type CellIDFilter struct {
	allowedCellIDs map[string]bool
}

// NewCellIDFilter creates a filter for specific cell IDs.
// Returns nil if no IDs provided (nil filter = all events).
func NewCellIDFilter(cellIDs ...string) EventFilter {
	if len(cellIDs) == 0 {
		return nil
	}
	m := make(map[string]bool, len(cellIDs))
	for _, id := range cellIDs {
		m[id] = true
	}
	return &CellIDFilter{allowedCellIDs: m}
}

// ShouldNotify returns true for non-cell events or events matching allowed cell IDs
func (f *CellIDFilter) ShouldNotify(event Event) bool {
	if event.CellID == nil {
		return true // Non-cell events always pass
	}
	return f.allowedCellIDs[*event.CellID]
}

// CompoundEventFilter combines multiple filters with AND logic.
// All sub-filters must pass for the event to be notified.
type CompoundEventFilter struct {
	filters []EventFilter
}

// NewCompoundEventFilter creates a filter that requires all sub-filters to pass.
// Nil filters are ignored. Returns nil if no valid filters remain.
func NewCompoundEventFilter(filters ...EventFilter) EventFilter {
	nonNil := make([]EventFilter, 0, len(filters))
	for _, f := range filters {
		if f != nil {
			nonNil = append(nonNil, f)
		}
	}
	if len(nonNil) == 0 {
		return nil
	}
	if len(nonNil) == 1 {
		return nonNil[0]
	}
	return &CompoundEventFilter{filters: nonNil}
}

// ShouldNotify returns true only if all sub-filters pass
func (f *CompoundEventFilter) ShouldNotify(event Event) bool {
	for _, filter := range f.filters {
		if !filter.ShouldNotify(event) {
			return false
		}
	}
	return true
}
