package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/uptrace/bun"

	"github.com/nbcore/notebookcore/internal/domain"
	"github.com/nbcore/notebookcore/internal/domain/repository"
	"github.com/nbcore/notebookcore/internal/infrastructure/storage/models"
)

var _ repository.CellRepository = (*CellRepository)(nil)

// CellRepository implements repository.CellRepository over Bun/Postgres,
// persisting one row per (notebook_id, position).
type CellRepository struct {
	db *bun.DB
}

func NewCellRepository(db *bun.DB) *CellRepository {
	return &CellRepository{db: db}
}

// SaveCell upserts the cell at (notebookID, position) — the same
// preserve-identity-by-natural-key merge strategy as syncNodes, scoped
// to a single row since the coordinator already knows which position
// changed rather than handing over the whole cell list.
func (r *CellRepository) SaveCell(ctx context.Context, notebookID string, position int, cell *domain.Cell) error {
	outputsJSON, err := json.Marshal(cell.Outputs)
	if err != nil {
		return fmt.Errorf("marshaling cell outputs: %w", err)
	}

	row := &models.CellModel{
		NotebookID: notebookID,
		Position:   position,
		CellID:     cell.ID,
		Type:       string(cell.Type),
		Code:       cell.Code,
		Status:     string(cell.Status),
		Stdout:     cell.Stdout,
		Error:      cell.Error,
		Outputs:    string(outputsJSON),
		Reads:      models.StringArray(cell.Reads),
		Writes:     models.StringArray(cell.Writes),
	}

	_, err = r.db.NewInsert().
		Model(row).
		On("CONFLICT (notebook_id, position) DO UPDATE").
		Set("cell_id = EXCLUDED.cell_id").
		Set("cell_type = EXCLUDED.cell_type").
		Set("code = EXCLUDED.code").
		Set("status = EXCLUDED.status").
		Set("stdout = EXCLUDED.stdout").
		Set("error_text = EXCLUDED.error_text").
		Set("outputs = EXCLUDED.outputs").
		Set("reads = EXCLUDED.reads").
		Set("writes = EXCLUDED.writes").
		Set("updated_at = current_timestamp").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("saving cell: %w", err)
	}
	return nil
}

// DeleteCell removes the row at (notebookID, position). Positions of
// cells after the deleted one are reindexed by the coordinator in
// memory before the next SaveCell; this repository never renumbers
// rows itself.
func (r *CellRepository) DeleteCell(ctx context.Context, notebookID string, position int) error {
	_, err := r.db.NewDelete().
		Model((*models.CellModel)(nil)).
		Where("notebook_id = ? AND position = ?", notebookID, position).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("deleting cell: %w", err)
	}
	return nil
}

// LoadCells returns every cell belonging to notebookID, ordered by
// document position.
func (r *CellRepository) LoadCells(ctx context.Context, notebookID string) ([]*domain.Cell, error) {
	var rows []*models.CellModel
	err := r.db.NewSelect().
		Model(&rows).
		Where("notebook_id = ?", notebookID).
		Order("position ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading cells: %w", err)
	}

	out := make([]*domain.Cell, 0, len(rows))
	for _, row := range rows {
		var outputs []domain.Output
		if row.Outputs != "" {
			if err := json.Unmarshal([]byte(row.Outputs), &outputs); err != nil {
				return nil, fmt.Errorf("unmarshaling outputs for cell %s: %w", row.CellID, err)
			}
		}
		out = append(out, &domain.Cell{
			ID: row.CellID, Type: domain.CellType(row.Type), Code: row.Code,
			Status: domain.CellStatus(row.Status), Stdout: row.Stdout, Error: row.Error,
			Outputs: outputs, Reads: []string(row.Reads), Writes: []string(row.Writes),
			Position: row.Position,
		})
	}
	return out, nil
}
