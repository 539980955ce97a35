package models

import (
	"time"

	"github.com/uptrace/bun"
)

// CellModel is one persisted cell, keyed by (notebook_id, position) at
// rest — position is document order, not the cell's wire-visible id,
// which is why Save/Delete/Load on repository.CellRepository address
// rows by position rather than by CellID.
type CellModel struct {
	bun.BaseModel `bun:"table:cells,alias:c"`

	NotebookID string `bun:"notebook_id,pk" json:"notebook_id"`
	Position   int    `bun:"position,pk" json:"position"`

	CellID  string      `bun:"cell_id,notnull" json:"cell_id"`
	Type    string      `bun:"cell_type,notnull" json:"cell_type"`
	Code    string      `bun:"code,notnull,default:''" json:"code"`
	Status  string      `bun:"status,notnull,default:'idle'" json:"status"`
	Stdout  string      `bun:"stdout,default:''" json:"stdout"`
	Error   string      `bun:"error_text,default:''" json:"error,omitempty"`
	Outputs string      `bun:"outputs,type:jsonb,default:'[]'" json:"-"`
	Reads   StringArray `bun:"reads,type:text[]" json:"reads"`
	Writes  StringArray `bun:"writes,type:text[]" json:"writes"`

	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt time.Time `bun:"updated_at,notnull,default:current_timestamp" json:"updated_at"`
}

func (c *CellModel) BeforeInsert(ctx interface{}) error {
	now := time.Now()
	c.CreatedAt = now
	c.UpdatedAt = now
	return nil
}

func (c *CellModel) BeforeUpdate(ctx interface{}) error {
	c.UpdatedAt = time.Now()
	return nil
}
