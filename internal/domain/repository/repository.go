// Package repository defines the persistence contract the core
// depends on. Concrete implementations live under
// internal/infrastructure/storage.
package repository

import (
	"context"
	"time"

	"github.com/nbcore/notebookcore/internal/domain"
	"github.com/nbcore/notebookcore/pkg/models"
)

// NotebookMetadata is the persisted, non-cell portion of a Notebook.
type NotebookMetadata struct {
	ID        string
	UserID    string
	Name      string
	DBConnStr string
	Revision  int
	CellCount int
	UpdatedAt time.Time
}

// NotebookRepository persists notebook metadata.
type NotebookRepository interface {
	SaveMetadata(ctx context.Context, meta NotebookMetadata) error
	LoadMetadata(ctx context.Context, userID, notebookID string) (*NotebookMetadata, error)
	ListNotebooks(ctx context.Context, userID string) ([]NotebookMetadata, error)
}

// CellRepository persists individual cells at per-cell granularity.
type CellRepository interface {
	SaveCell(ctx context.Context, notebookID string, position int, cell *domain.Cell) error
	DeleteCell(ctx context.Context, notebookID string, position int) error
	LoadCells(ctx context.Context, notebookID string) ([]*domain.Cell, error)
}

// EventRecord is one durable record of a notebook lifecycle event, as
// appended by the database observer sink.
type EventRecord struct {
	NotebookID string
	EventType  string
	CellID     string
	Status     string
	Error      string
	Payload    map[string]any
	Timestamp  time.Time
}

// EventRepository appends an audit trail of notebook lifecycle events,
// independent of the current-state cell/notebook tables CellRepository
// and NotebookRepository maintain.
type EventRepository interface {
	Append(ctx context.Context, rec EventRecord) error
}

// UserRepository persists the built-in auth collaborator's accounts. Kept
// deliberately small next to the teacher's RBAC-flavored UserRepository:
// this service has one authorization decision (ownership), not roles.
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	UpdateLastLogin(ctx context.Context, id string) error
}
