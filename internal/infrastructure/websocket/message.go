// Package websocket implements the bidirectional streaming subscription
// surface: one connection per notebook, backed by the notebook's
// coordinator.Broadcaster subscriber.
//
// Grounded on the teacher's internal/infrastructure/websocket package,
// trimmed down: the teacher's Hub fans one connection out to many
// workflows/executions via subscription indexes; here the fan-out
// already happens one layer down, inside coordinator.Broadcaster, so a
// Client is just a transport adapter around a single Subscriber.
package websocket

// WSCommand is an inbound client command. run_cell is the only action
// this surface defines: everything else (edit, create, delete) goes
// through the REST mutation API.
type WSCommand struct {
	Action string `json:"type"`
	CellID string `json:"cell_id"`
}

const CmdRunCell = "run_cell"

// WSResponse acknowledges a WSCommand, mirroring the teacher's
// WSResponse envelope shape.
type WSResponse struct {
	Type    string `json:"type"`
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

func NewSuccessResponse(responseType, message string) *WSResponse {
	return &WSResponse{Type: responseType, Success: true, Message: message}
}

func NewErrorResponse(responseType, errorMsg string) *WSResponse {
	return &WSResponse{Type: responseType, Success: false, Error: errorMsg}
}
