package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/uptrace/bun"

	"github.com/nbcore/notebookcore/internal/domain/repository"
	"github.com/nbcore/notebookcore/internal/infrastructure/storage/models"
)

var _ repository.NotebookRepository = (*NotebookRepository)(nil)

// NotebookRepository implements repository.NotebookRepository over Bun/Postgres.
type NotebookRepository struct {
	db *bun.DB
}

func NewNotebookRepository(db *bun.DB) *NotebookRepository {
	return &NotebookRepository{db: db}
}

// SaveMetadata upserts a notebook's metadata row by id.
func (r *NotebookRepository) SaveMetadata(ctx context.Context, meta repository.NotebookMetadata) error {
	row := &models.NotebookModel{
		ID: meta.ID, UserID: meta.UserID, Name: meta.Name,
		DBConnStr: meta.DBConnStr, Revision: meta.Revision, CellCount: meta.CellCount,
	}
	_, err := r.db.NewInsert().
		Model(row).
		On("CONFLICT (id) DO UPDATE").
		Set("user_id = EXCLUDED.user_id").
		Set("name = EXCLUDED.name").
		Set("db_conn_str = EXCLUDED.db_conn_str").
		Set("revision = EXCLUDED.revision").
		Set("cell_count = EXCLUDED.cell_count").
		Set("updated_at = current_timestamp").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("saving notebook metadata: %w", err)
	}
	return nil
}

// LoadMetadata returns nil, nil when the notebook does not exist, leaving
// the not-found/forbidden distinction to the caller (internal/coordinator.Registry).
func (r *NotebookRepository) LoadMetadata(ctx context.Context, userID, notebookID string) (*repository.NotebookMetadata, error) {
	row := new(models.NotebookModel)
	err := r.db.NewSelect().Model(row).Where("id = ?", notebookID).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("loading notebook metadata: %w", err)
	}
	return &repository.NotebookMetadata{
		ID: row.ID, UserID: row.UserID, Name: row.Name, DBConnStr: row.DBConnStr,
		Revision: row.Revision, CellCount: row.CellCount, UpdatedAt: row.UpdatedAt,
	}, nil
}

// ListNotebooks returns every notebook owned by userID, most recently
// updated first.
func (r *NotebookRepository) ListNotebooks(ctx context.Context, userID string) ([]repository.NotebookMetadata, error) {
	var rows []*models.NotebookModel
	err := r.db.NewSelect().Model(&rows).Where("user_id = ?", userID).Order("updated_at DESC").Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing notebooks: %w", err)
	}
	out := make([]repository.NotebookMetadata, 0, len(rows))
	for _, row := range rows {
		out = append(out, repository.NotebookMetadata{
			ID: row.ID, UserID: row.UserID, Name: row.Name, DBConnStr: row.DBConnStr,
			Revision: row.Revision, CellCount: row.CellCount, UpdatedAt: row.UpdatedAt,
		})
	}
	return out, nil
}
