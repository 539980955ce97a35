package coordinator

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nbcore/notebookcore/internal/application/observer"
	"github.com/nbcore/notebookcore/internal/coreerr"
	"github.com/nbcore/notebookcore/internal/domain"
	"github.com/nbcore/notebookcore/internal/domain/repository"
	"github.com/nbcore/notebookcore/internal/kernelwire"
)

// checkOwnership is the ownership gate every operation enforces first
//: the caller's user id must equal the notebook's owner.
func (c *Coordinator) checkOwnership(userID string) error {
	if userID != c.notebook.UserID {
		return coreerr.ErrForbidden
	}
	return nil
}

// checkAlive refuses new operations once the background reader has
// observed the Kernel die. Caller must hold the notebook lock.
func (c *Coordinator) checkAlive() error {
	if c.dead {
		return c.deadErr
	}
	return nil
}

func (c *Coordinator) checkRevision(expected *int) error {
	if expected != nil && *expected != c.notebook.Revision {
		return &coreerr.ConflictError{NotebookID: c.notebook.ID, Expected: *expected, Current: c.notebook.Revision}
	}
	return nil
}

// registerWithKernel runs the common register_cell rendezvous used by
// both UpdateCell and CreateCell: enqueue, release the notebook lock
// while awaiting the result, then return the raw kernel event for the
// caller to apply under a freshly reacquired lock.
func (c *Coordinator) registerWithKernel(cellID, code, cellType string) (kernelwire.Event, error) {
	op := c.pending.register(cellID)
	if err := c.proc.Send(kernelwire.Command{
		Type: kernelwire.CommandRegisterCell, CellID: cellID, Code: code, CellType: cellType,
	}); err != nil {
		c.pending.remove(cellID)
		return kernelwire.Event{}, fmt.Errorf("%w: %v", coreerr.ErrKernelDied, err)
	}

	select {
	case <-op.done:
		if op.result.Type != kernelwire.EventRegisterResult {
			// Fulfilled by pendingTable.failAll, not by a kernel reply.
			if dead, _ := c.IsDead(); dead {
				return kernelwire.Event{}, coreerr.ErrKernelDied
			}
			return kernelwire.Event{}, coreerr.ErrShuttingDown
		}
		return op.result, nil
	case <-time.After(registerTimeout):
		c.pending.remove(cellID)
		return kernelwire.Event{}, coreerr.ErrTimeout
	}
}

// UpdateCell implements update_cell: a synchronous kernel
// round-trip for registration, then either a blocked-cell commit (on
// cycle) or a normal metadata update.
func (c *Coordinator) UpdateCell(ctx context.Context, userID, cellID, newCode string, expectedRevision *int) (*domain.Cell, error) {
	c.notebook.Lock()
	if err := c.checkOwnership(userID); err != nil {
		c.notebook.Unlock()
		return nil, err
	}
	if err := c.checkAlive(); err != nil {
		c.notebook.Unlock()
		return nil, err
	}
	cell := c.notebook.CellByID(cellID)
	if cell == nil {
		c.notebook.Unlock()
		return nil, coreerr.ErrNotFound
	}
	if err := c.checkRevision(expectedRevision); err != nil {
		c.notebook.Unlock()
		return nil, err
	}
	cellType := string(cell.Type)
	c.notebook.Unlock()

	ev, err := c.registerWithKernel(cellID, newCode, cellType)
	if err != nil {
		return nil, err
	}

	c.notebook.Lock()
	defer c.notebook.Unlock()

	cell = c.notebook.CellByID(cellID)
	if cell == nil {
		return nil, coreerr.ErrNotFound
	}

	if ev.Status == kernelwire.StatusError {
		cell.Code = newCode
		cell.Reads = ev.Reads
		cell.Writes = ev.Writes
		cell.Status = domain.StatusBlocked
		cell.Error = ev.Error
		rev := c.notebook.NextRevision()
		snap := cell.Clone()
		c.persistCellLocked(c.notebook.ID, cell.Position, snap, rev)
		c.bus.Publish(BroadcastEvent{Type: EventCellStatus, CellID: cellID, Status: string(domain.StatusBlocked), Revision: rev})
		c.bus.Publish(BroadcastEvent{Type: EventCellError, CellID: cellID, Error: ev.Error})
		blockedID := cellID
		c.notify(observer.Event{Type: observer.EventTypeCellBlocked, CellID: &blockedID, Status: string(domain.StatusBlocked), Error: fmt.Errorf("%s", ev.Error)})
		return snap, nil
	}

	readsWritesChanged := !sameSet(cell.Reads, ev.Reads) || !sameSet(cell.Writes, ev.Writes)
	cell.Code = newCode
	cell.Reads = ev.Reads
	cell.Writes = ev.Writes
	cell.Status = domain.StatusIdle
	cell.Error = ""
	if readsWritesChanged {
		cell.Outputs = nil
		cell.Stdout = ""
		c.rebuildGraph()
	}
	rev := c.notebook.NextRevision()
	snap := cell.Clone()
	c.persistCellLocked(c.notebook.ID, cell.Position, snap, rev)
	c.bus.Publish(BroadcastEvent{
		Type: EventCellUpdated, CellID: cellID, Code: newCode, Reads: ev.Reads, Writes: ev.Writes,
		Status: string(domain.StatusIdle), Revision: rev,
	})
	return snap, nil
}

// CreateCell implements create_cell. The reference choice for a
// cycle-introducing create, per SPEC_FULL's binding open-question
// decision, is add-in-blocked-state: the cell is still added to the
// notebook, just committed with status=blocked.
func (c *Coordinator) CreateCell(ctx context.Context, userID string, cellType domain.CellType, code string, position *int) (*domain.Cell, error) {
	c.notebook.Lock()
	if err := c.checkOwnership(userID); err != nil {
		c.notebook.Unlock()
		return nil, err
	}
	if err := c.checkAlive(); err != nil {
		c.notebook.Unlock()
		return nil, err
	}

	cell := &domain.Cell{
		ID: uuid.NewString(),
		Type: cellType,
		Code: code,
		Status: domain.StatusIdle,
	}

	idx := len(c.notebook.Cells)
	if position != nil && *position >= 0 && *position <= len(c.notebook.Cells) {
		idx = *position
	}
	c.notebook.Cells = append(c.notebook.Cells, nil)
	copy(c.notebook.Cells[idx+1:], c.notebook.Cells[idx:])
	c.notebook.Cells[idx] = cell
	reindexPositions(c.notebook)
	c.notebook.Unlock()

	ev, err := c.registerWithKernel(cell.ID, code, string(cellType))
	if err != nil {
		return nil, err
	}

	c.notebook.Lock()
	defer c.notebook.Unlock()

	if ev.Status == kernelwire.StatusError {
		cell.Status = domain.StatusBlocked
		cell.Error = ev.Error
	} else {
		cell.Status = domain.StatusIdle
	}
	cell.Reads = ev.Reads
	cell.Writes = ev.Writes
	c.rebuildGraph()
	rev := c.notebook.NextRevision()
	snap := cell.Clone()
	c.persistCellLocked(c.notebook.ID, cell.Position, snap, rev)

	c.bus.Publish(BroadcastEvent{
		Type: EventCellCreated, CellID: cell.ID, CellType: string(cellType),
		Position: cell.Position, Revision: rev,
	})
	if ev.Status == kernelwire.StatusError {
		c.bus.Publish(BroadcastEvent{Type: EventCellStatus, CellID: cell.ID, Status: string(domain.StatusBlocked), Revision: rev})
		c.bus.Publish(BroadcastEvent{Type: EventCellError, CellID: cell.ID, Error: ev.Error})
		blockedID := cell.ID
		c.notify(observer.Event{Type: observer.EventTypeCellBlocked, CellID: &blockedID, Status: string(domain.StatusBlocked), Error: fmt.Errorf("%s", ev.Error)})
	}
	return snap, nil
}

// DeleteCell implements delete_cell. Dependents are deliberately
// left stale -
// they are not re-executed, so they may fail on their next run with a
// missing name.
func (c *Coordinator) DeleteCell(ctx context.Context, userID, cellID string) error {
	c.notebook.Lock()
	defer c.notebook.Unlock()

	if err := c.checkOwnership(userID); err != nil {
		return err
	}
	if err := c.checkAlive(); err != nil {
		return err
	}

	idx := -1
	for i, cell := range c.notebook.Cells {
		if cell.ID == cellID {
			idx = i
			break
		}
	}
	if idx == -1 {
		return coreerr.ErrNotFound
	}

	position := c.notebook.Cells[idx].Position
	c.notebook.Cells = append(c.notebook.Cells[:idx], c.notebook.Cells[idx+1:]...)
	reindexPositions(c.notebook)
	c.pending.remove(cellID)
	c.rebuildGraph()
	rev := c.notebook.NextRevision()

	if c.cellRepo != nil {
		if err := c.cellRepo.DeleteCell(context.Background(), c.notebook.ID, position); err != nil && c.log != nil {
			c.log.Error("failed to persist cell deletion", "notebook_id", c.notebook.ID, "cell_id", cellID, "error", err)
		}
	}
	if c.notebookRepo != nil {
		meta := repository.NotebookMetadata{
			ID: c.notebook.ID, UserID: c.notebook.UserID, Name: c.notebook.Name,
			DBConnStr: c.notebook.DBConnStr, Revision: rev, CellCount: len(c.notebook.Cells),
		}
		_ = c.notebookRepo.SaveMetadata(context.Background(), meta)
	}

	c.bus.Publish(BroadcastEvent{Type: EventCellDeleted, CellID: cellID, Revision: rev})
	return nil
}

// RunCell implements run_cell: enqueues execute_cell without
// holding the notebook mutex during execution; results for every cell
// in the cascade arrive through the background reader. If wait is
// true, this polls the initiating cell's status until it reaches a
// terminal state or runWaitTimeout elapses.
func (c *Coordinator) RunCell(ctx context.Context, userID, cellID string, wait bool) (*domain.Cell, error) {
	c.notebook.Lock()
	if err := c.checkOwnership(userID); err != nil {
		c.notebook.Unlock()
		return nil, err
	}
	if err := c.checkAlive(); err != nil {
		c.notebook.Unlock()
		return nil, err
	}
	cell := c.notebook.CellByID(cellID)
	if cell == nil {
		c.notebook.Unlock()
		return nil, coreerr.ErrNotFound
	}
	if cell.Status == domain.StatusBlocked {
		snap := cell.Clone()
		c.notebook.Unlock()
		return snap, nil
	}
	code, cellType := cell.Code, string(cell.Type)
	c.notebook.Unlock()

	c.bus.Publish(BroadcastEvent{Type: EventCellStatus, CellID: cellID, Status: string(domain.StatusRunning)})
	startedID := cellID
	c.notify(observer.Event{Type: observer.EventTypeCascadeStarted, CellID: &startedID, Status: string(domain.StatusRunning)})

	if err := c.proc.Send(kernelwire.Command{
		Type: kernelwire.CommandExecuteCell, CellID: cellID, Code: code, CellType: cellType,
	}); err != nil {
		return nil, fmt.Errorf("%w: %v", coreerr.ErrKernelDied, err)
	}

	if !wait {
		c.notebook.Lock()
		defer c.notebook.Unlock()
		if cell := c.notebook.CellByID(cellID); cell != nil {
			return cell.Clone(), nil
		}
		return nil, coreerr.ErrNotFound
	}

	deadline := time.After(runWaitTimeout)
	ticker := time.NewTicker(statePollEvery)
	defer ticker.Stop()
	for {
		select {
		case <-deadline:
			return nil, coreerr.ErrTimeout
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
			c.notebook.Lock()
			cell := c.notebook.CellByID(cellID)
			if cell == nil {
				c.notebook.Unlock()
				return nil, coreerr.ErrNotFound
			}
			status := cell.Status
			snap := cell.Clone()
			c.notebook.Unlock()
			if status == domain.StatusSuccess || status == domain.StatusError {
				return snap, nil
			}
		}
	}
}

// SetDBConfig implements set_db_config: a synchronous kernel
// round-trip via rendezvous, updating the SQL execution target shared
// by every SQL cell in this notebook.
func (c *Coordinator) SetDBConfig(ctx context.Context, userID, connString string) error {
	c.notebook.Lock()
	if err := c.checkOwnership(userID); err != nil {
		c.notebook.Unlock()
		return err
	}
	if err := c.checkAlive(); err != nil {
		c.notebook.Unlock()
		return err
	}
	c.notebook.Unlock()

	op := c.pending.register(dbConfigKey)
	if err := c.proc.Send(kernelwire.Command{Type: kernelwire.CommandSetDBConfig, ConnString: connString}); err != nil {
		c.pending.remove(dbConfigKey)
		return fmt.Errorf("%w: %v", coreerr.ErrKernelDied, err)
	}

	select {
	case <-op.done:
	case <-time.After(registerTimeout):
		c.pending.remove(dbConfigKey)
		return coreerr.ErrTimeout
	}

	if op.result.Status == kernelwire.StatusError {
		return fmt.Errorf("set_db_config failed: %s", op.result.Error)
	}

	c.notebook.Lock()
	c.notebook.DBConnStr = connString
	rev := c.notebook.NextRevision()
	meta := repository.NotebookMetadata{
		ID: c.notebook.ID, UserID: c.notebook.UserID, Name: c.notebook.Name,
		DBConnStr: connString, Revision: rev, CellCount: len(c.notebook.Cells),
	}
	c.notebook.Unlock()

	if c.notebookRepo != nil {
		_ = c.notebookRepo.SaveMetadata(ctx, meta)
	}
	return nil
}
