package coordinator

// EventType discriminates the broadcast event schema.
type EventType string

const (
	EventCellUpdated EventType = "cell_updated"
	EventCellCreated EventType = "cell_created"
	EventCellDeleted EventType = "cell_deleted"
	EventCellStatus  EventType = "cell_status"
	EventCellStdout  EventType = "cell_stdout"
	EventCellOutput  EventType = "cell_output"
	EventCellError   EventType = "cell_error"
	EventKernelError EventType = "kernel_error"
	EventCascadeDone EventType = "cascade_complete"
)

// OutputPayload mirrors domain.Output for the wire schema.
type OutputPayload struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// BroadcastEvent is the JSON object delivered to subscribers. Only the
// fields relevant to Type are populated, per-type field
// table.
type BroadcastEvent struct {
	Type EventType `json:"type"`

	CellID   string `json:"cell_id,omitempty"`
	Code     string `json:"code,omitempty"`
	CellType string `json:"cell_type,omitempty"`

	Reads    []string `json:"reads,omitempty"`
	Writes   []string `json:"writes,omitempty"`
	Status   string `json:"status,omitempty"`
	Position int `json:"position,omitempty"`
	Revision int `json:"revision,omitempty"`

	Chunk  string `json:"chunk,omitempty"`
	Output *OutputPayload `json:"output,omitempty"`
	Error  string `json:"error,omitempty"`

	InitialCellID      string `json:"initial_cell_id,omitempty"`
	TotalCellsExecuted int `json:"total_cells_executed,omitempty"`
}
