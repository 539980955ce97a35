package rest

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/nbcore/notebookcore/internal/coordinator"
	"github.com/nbcore/notebookcore/internal/domain"
)

// NotebookHandlers implements the notebook and cell mutation surface on
// top of a coordinator.Registry. No business logic lives here: every
// handler authenticates the caller, resolves a Coordinator, and
// delegates.
type NotebookHandlers struct {
	registry *coordinator.Registry
}

func NewNotebookHandlers(registry *coordinator.Registry) *NotebookHandlers {
	return &NotebookHandlers{registry: registry}
}

// legacyNotebookID rewrites the bare legacy ids "blank"/"demo" to their
// user-scoped form before dispatch.
func legacyNotebookID(userID, notebookID string) string {
	switch notebookID {
	case "blank", "demo":
		return notebookID + "-" + userID
	default:
		return notebookID
	}
}

// HandleListNotebooks handles GET /notebooks. On a caller's first
// request it idempotently provisions blank-{user_id} and
// demo-{user_id}, then returns every notebook the caller owns.
func (h *NotebookHandlers) HandleListNotebooks(c *gin.Context) {
	userID, ok := GetUserID(c)
	if !ok {
		respondAPIError(c, ErrUnauthorized)
		return
	}
	ctx := c.Request.Context()

	notebooks, err := h.registry.List(ctx, userID)
	if err != nil {
		respondAPIErrorWithRequestID(c, err)
		return
	}

	haveBlank, haveDemo := false, false
	for _, n := range notebooks {
		switch n.ID {
		case "blank-" + userID:
			haveBlank = true
		case "demo-" + userID:
			haveDemo = true
		}
	}
	if !haveBlank {
		if err := h.registry.CreateEmpty(ctx, userID, "blank-"+userID, "Untitled notebook"); err != nil {
			respondAPIErrorWithRequestID(c, err)
			return
		}
	}
	if !haveDemo {
		if err := h.provisionDemo(ctx, userID); err != nil {
			respondAPIErrorWithRequestID(c, err)
			return
		}
	}
	if !haveBlank || !haveDemo {
		notebooks, err = h.registry.List(ctx, userID)
		if err != nil {
			respondAPIErrorWithRequestID(c, err)
			return
		}
	}

	respondJSON(c, http.StatusOK, notebooks)
}

// provisionDemo creates demo-{user_id} with a couple of sample cells
// so a newly onboarded caller has something to look at.
func (h *NotebookHandlers) provisionDemo(ctx context.Context, userID string) error {
	if err := h.registry.CreateEmpty(ctx, userID, "demo-"+userID, "Demo notebook"); err != nil {
		return err
	}
	co, err := h.registry.GetOrLoad(ctx, userID, "demo-"+userID)
	if err != nil {
		return err
	}
	if _, err := co.CreateCell(ctx, userID, domain.CellTypePython, "greeting = \"hello from the demo notebook\"", nil); err != nil {
		return err
	}
	if _, err := co.CreateCell(ctx, userID, domain.CellTypePython, "print(greeting)", nil); err != nil {
		return err
	}
	return nil
}

// HandleCreateNotebook handles POST /notebooks.
func (h *NotebookHandlers) HandleCreateNotebook(c *gin.Context) {
	userID, ok := GetUserID(c)
	if !ok {
		respondAPIError(c, ErrUnauthorized)
		return
	}

	var req struct {
		Name string `json:"name"`
	}
	_ = c.ShouldBindJSON(&req)

	notebookID := uuid.NewString()
	if err := h.registry.CreateEmpty(c.Request.Context(), userID, notebookID, req.Name); err != nil {
		respondAPIErrorWithRequestID(c, err)
		return
	}

	respondJSON(c, http.StatusOK, gin.H{"id": notebookID})
}

// HandleGetNotebook handles GET /notebooks/{id}.
func (h *NotebookHandlers) HandleGetNotebook(c *gin.Context) {
	userID, ok := GetUserID(c)
	if !ok {
		respondAPIError(c, ErrUnauthorized)
		return
	}
	rawID, ok := getParam(c, "id")
	if !ok {
		return
	}
	notebookID := legacyNotebookID(userID, rawID)

	co, err := h.registry.GetOrLoad(c.Request.Context(), userID, notebookID)
	if err != nil {
		respondAPIErrorWithRequestID(c, err)
		return
	}

	state, err := co.GetState(c.Request.Context(), userID, true, nil)
	if err != nil {
		respondAPIErrorWithRequestID(c, err)
		return
	}

	respondJSON(c, http.StatusOK, state)
}

// HandleUpdateCell handles PUT /notebooks/{id}/cells/{cell_id}.
func (h *NotebookHandlers) HandleUpdateCell(c *gin.Context) {
	userID, ok := GetUserID(c)
	if !ok {
		respondAPIError(c, ErrUnauthorized)
		return
	}
	rawID, ok := getParam(c, "id")
	if !ok {
		return
	}
	cellID, ok := getParam(c, "cell_id")
	if !ok {
		return
	}
	notebookID := legacyNotebookID(userID, rawID)

	var req struct {
		Code             string `json:"code" binding:"required"`
		ExpectedRevision *int   `json:"expected_revision"`
	}
	if err := bindJSON(c, &req); err != nil {
		return
	}

	co, err := h.registry.GetOrLoad(c.Request.Context(), userID, notebookID)
	if err != nil {
		respondAPIErrorWithRequestID(c, err)
		return
	}

	cell, err := co.UpdateCell(c.Request.Context(), userID, cellID, req.Code, req.ExpectedRevision)
	if err != nil {
		respondAPIErrorWithRequestID(c, err)
		return
	}

	respondJSON(c, http.StatusOK, cell)
}

// HandleCreateCell handles POST /notebooks/{id}/cells.
func (h *NotebookHandlers) HandleCreateCell(c *gin.Context) {
	userID, ok := GetUserID(c)
	if !ok {
		respondAPIError(c, ErrUnauthorized)
		return
	}
	rawID, ok := getParam(c, "id")
	if !ok {
		return
	}
	notebookID := legacyNotebookID(userID, rawID)

	var req struct {
		Type     string `json:"type" binding:"required,oneof=python sql"`
		Code     string `json:"code"`
		Position *int   `json:"position"`
	}
	if err := bindJSON(c, &req); err != nil {
		return
	}

	co, err := h.registry.GetOrLoad(c.Request.Context(), userID, notebookID)
	if err != nil {
		respondAPIErrorWithRequestID(c, err)
		return
	}

	cell, err := co.CreateCell(c.Request.Context(), userID, domain.CellType(req.Type), req.Code, req.Position)
	if err != nil {
		respondAPIErrorWithRequestID(c, err)
		return
	}

	respondJSON(c, http.StatusOK, gin.H{"cell_id": cell.ID})
}

// HandleDeleteCell handles DELETE /notebooks/{id}/cells/{cell_id}.
func (h *NotebookHandlers) HandleDeleteCell(c *gin.Context) {
	userID, ok := GetUserID(c)
	if !ok {
		respondAPIError(c, ErrUnauthorized)
		return
	}
	rawID, ok := getParam(c, "id")
	if !ok {
		return
	}
	cellID, ok := getParam(c, "cell_id")
	if !ok {
		return
	}
	notebookID := legacyNotebookID(userID, rawID)

	co, err := h.registry.GetOrLoad(c.Request.Context(), userID, notebookID)
	if err != nil {
		respondAPIErrorWithRequestID(c, err)
		return
	}

	if err := co.DeleteCell(c.Request.Context(), userID, cellID); err != nil {
		respondAPIErrorWithRequestID(c, err)
		return
	}

	respondJSON(c, http.StatusOK, gin.H{"deleted": cellID})
}

// HandleRunCell handles POST /notebooks/{id}/cells/{cell_id}/run.
func (h *NotebookHandlers) HandleRunCell(c *gin.Context) {
	userID, ok := GetUserID(c)
	if !ok {
		respondAPIError(c, ErrUnauthorized)
		return
	}
	rawID, ok := getParam(c, "id")
	if !ok {
		return
	}
	cellID, ok := getParam(c, "cell_id")
	if !ok {
		return
	}
	notebookID := legacyNotebookID(userID, rawID)
	wait := getQuery(c, "wait", "true") != "false"

	co, err := h.registry.GetOrLoad(c.Request.Context(), userID, notebookID)
	if err != nil {
		respondAPIErrorWithRequestID(c, err)
		return
	}

	cell, err := co.RunCell(c.Request.Context(), userID, cellID, wait)
	if err != nil {
		respondAPIErrorWithRequestID(c, err)
		return
	}

	respondJSON(c, http.StatusOK, cell)
}

// HandleGetState handles GET /notebooks/{id}/state.
func (h *NotebookHandlers) HandleGetState(c *gin.Context) {
	userID, ok := GetUserID(c)
	if !ok {
		respondAPIError(c, ErrUnauthorized)
		return
	}
	rawID, ok := getParam(c, "id")
	if !ok {
		return
	}
	notebookID := legacyNotebookID(userID, rawID)
	includeOutputs := getQuery(c, "include_outputs", "false") == "true"

	co, err := h.registry.GetOrLoad(c.Request.Context(), userID, notebookID)
	if err != nil {
		respondAPIErrorWithRequestID(c, err)
		return
	}

	state, err := co.GetState(c.Request.Context(), userID, includeOutputs, nil)
	if err != nil {
		respondAPIErrorWithRequestID(c, err)
		return
	}

	respondJSON(c, http.StatusOK, state)
}

// HandleSetDBConfig handles PUT /notebooks/{id}/db_config.
func (h *NotebookHandlers) HandleSetDBConfig(c *gin.Context) {
	userID, ok := GetUserID(c)
	if !ok {
		respondAPIError(c, ErrUnauthorized)
		return
	}
	rawID, ok := getParam(c, "id")
	if !ok {
		return
	}
	notebookID := legacyNotebookID(userID, rawID)

	var req struct {
		ConnString string `json:"conn_string" binding:"required"`
	}
	if err := bindJSON(c, &req); err != nil {
		return
	}

	co, err := h.registry.GetOrLoad(c.Request.Context(), userID, notebookID)
	if err != nil {
		respondAPIErrorWithRequestID(c, err)
		return
	}

	if err := co.SetDBConfig(c.Request.Context(), userID, req.ConnString); err != nil {
		respondAPIErrorWithRequestID(c, err)
		return
	}

	respondJSON(c, http.StatusOK, gin.H{"ok": true})
}
