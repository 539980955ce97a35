package coordinator

import (
	"context"

	"github.com/nbcore/notebookcore/internal/domain"
)

// CellView is the client-facing projection of a Cell returned by
// GetState.
type CellView struct {
	ID       string `json:"cell_id"`
	Type     domain.CellType `json:"type"`
	Code     string `json:"code"`
	Status   domain.CellStatus `json:"status"`
	Position int `json:"position"`
	Reads    []string `json:"reads"`
	Writes   []string `json:"writes"`
	Error    string `json:"error,omitempty"`

	// Populated only when includeOutputs is true.
	Stdout  string `json:"stdout,omitempty"`
	Outputs []domain.Output `json:"outputs,omitempty"`

	// Populated only when includeOutputs is false.
	OutputPreview string `json:"output_preview,omitempty"`
	OutputType    string `json:"output_type,omitempty"`
	HasImage      bool `json:"has_image,omitempty"`
}

// NotebookState is the response shape of GetState.
type NotebookState struct {
	ID       string `json:"id"`
	UserID   string `json:"user_id"`
	Name     string `json:"name,omitempty"`
	Revision int `json:"revision"`
	Cells    []CellView `json:"cells"`
}

// GetState implements get_state: a consistent snapshot of the
// notebook (or a requested subset of cells), with either full outputs
// or lightweight previews .
func (c *Coordinator) GetState(ctx context.Context, userID string, includeOutputs bool, cellIDs []string) (*NotebookState, error) {
	c.notebook.Lock()
	defer c.notebook.Unlock()

	if err := c.checkOwnership(userID); err != nil {
		return nil, err
	}

	var wanted map[string]struct{}
	if len(cellIDs) > 0 {
		wanted = make(map[string]struct{}, len(cellIDs))
		for _, id := range cellIDs {
			wanted[id] = struct{}{}
		}
	}

	state := &NotebookState{
		ID: c.notebook.ID, UserID: c.notebook.UserID, Name: c.notebook.Name, Revision: c.notebook.Revision,
	}

	for _, cell := range c.notebook.Cells {
		if wanted != nil {
			if _, ok := wanted[cell.ID]; !ok {
				continue
			}
		}
		view := CellView{
			ID: cell.ID, Type: cell.Type, Code: cell.Code, Status: cell.Status,
			Position: cell.Position, Reads: cell.Reads, Writes: cell.Writes, Error: cell.Error,
		}
		if includeOutputs {
			view.Stdout = cell.Stdout
			view.Outputs = append([]domain.Output(nil), cell.Outputs...)
		} else if len(cell.Outputs) > 0 {
			view.OutputPreview, view.OutputType, view.HasImage = Preview(cell.Outputs[0])
		}
		state.Cells = append(state.Cells, view)
	}

	return state, nil
}
