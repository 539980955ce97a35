package models

import (
	"time"

	"github.com/uptrace/bun"
)

// NotebookModel is the persisted, non-cell portion of a notebook: owner,
// display name, the SQL cell execution target, and the revision counter
// the coordinator bumps on every mutation.
type NotebookModel struct {
	bun.BaseModel `bun:"table:notebooks,alias:nb"`

	ID        string    `bun:"id,pk" json:"id"`
	UserID    string    `bun:"user_id,notnull" json:"user_id"`
	Name      string    `bun:"name,notnull,default:''" json:"name"`
	DBConnStr string    `bun:"db_conn_str,default:''" json:"-"`
	Revision  int       `bun:"revision,notnull,default:0" json:"revision"`
	CellCount int       `bun:"cell_count,notnull,default:0" json:"cell_count"`
	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt time.Time `bun:"updated_at,notnull,default:current_timestamp" json:"updated_at"`

	Cells []*CellModel `bun:"rel:has-many,join:id=notebook_id" json:"cells,omitempty"`
}

// BeforeInsert sets server-side defaults that aren't expressible as a
// single column default (CreatedAt/UpdatedAt both need "now").
func (n *NotebookModel) BeforeInsert(ctx interface{}) error {
	now := time.Now()
	n.CreatedAt = now
	n.UpdatedAt = now
	return nil
}

// BeforeUpdate refreshes UpdatedAt on every write.
func (n *NotebookModel) BeforeUpdate(ctx interface{}) error {
	n.UpdatedAt = time.Now()
	return nil
}
