package coordinator

import (
	"context"
	"errors"
	"time"

	"github.com/nbcore/notebookcore/internal/application/observer"
	"github.com/nbcore/notebookcore/internal/coreerr"
	"github.com/nbcore/notebookcore/internal/domain"
	"github.com/nbcore/notebookcore/internal/domain/repository"
	"github.com/nbcore/notebookcore/internal/kernelwire"
)

// runReader is the single reader of c.proc.Events.
// It drains events with a 1-second timeout; on timeout it probes Kernel
// liveness, and if the Kernel has died it fails every pending operation
// and broadcasts kernel_error before returning.
func (c *Coordinator) runReader(ctx context.Context) {
	defer close(c.readerDone)
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-c.proc.Events():
			if !ok {
				c.onKernelDied()
				return
			}
			c.handleEvent(ev)
		case <-time.After(readerPollEvery):
			if !c.proc.Alive() {
				c.onKernelDied()
				return
			}
		}
	}
}

func (c *Coordinator) onKernelDied() {
	c.notebook.Lock()
	c.dead = true
	c.deadErr = errKernelDied
	c.notebook.Unlock()

	c.pending.failAll(kernelwire.StatusError, "kernel process died")
	c.bus.Publish(BroadcastEvent{Type: EventKernelError, Error: "kernel process died"})
	c.notify(observer.Event{Type: observer.EventTypeKernelError, Error: errors.New("kernel process died")})
	if c.log != nil {
		c.log.Error("kernel process died", "notebook_id", c.notebook.ID)
	}
}

var errKernelDied = kernelDiedError{}

type kernelDiedError struct{}

func (kernelDiedError) Error() string { return "kernel process died" }

// Is makes errors.Is(err, coreerr.ErrKernelDied) hold for checkAlive's error.
func (kernelDiedError) Is(target error) bool { return target == coreerr.ErrKernelDied }

// handleEvent dispatches one decoded output_queue event by type
//.
func (c *Coordinator) handleEvent(ev kernelwire.Event) {
	switch ev.Type {
	case kernelwire.EventRegisterResult:
		if !c.pending.fulfill(ev.CellID, ev) && c.log != nil {
			c.log.Debug("dropping register_result with no waiter", "cell_id", ev.CellID)
		}
	case kernelwire.EventConfigResult:
		if !c.pending.fulfill(dbConfigKey, ev) && c.log != nil {
			c.log.Debug("dropping config_result with no waiter")
		}
	case kernelwire.EventExecuteResult:
		c.applyExecuteResult(ev)
	case kernelwire.EventExecuteComplete:
		c.bus.Publish(BroadcastEvent{
			Type: EventCascadeDone,
			InitialCellID: ev.InitialCellID,
			TotalCellsExecuted: ev.TotalCellsExecuted,
		})
		total := ev.TotalCellsExecuted
		c.notify(observer.Event{
			Type: observer.EventTypeCascadeComplete,
			CellID: &ev.InitialCellID,
			CascadeTotal: &total,
			Status: "complete",
		})
	}
}

// applyExecuteResult mutates the addressed cell, rebuilds the graph if
// its reads/writes changed, bumps revision, persists, and broadcasts
// the ordered per-cell event sequence running -> stdout*/output* ->
// terminal. The Kernel
// itself doesn't emit a separate "running" event, so the Coordinator
// synthesizes it here, immediately before the rest of this cell's
// sequence - which still satisfies the invariant since synthesis and
// emission happen atomically from the subscribers' point of view.
func (c *Coordinator) applyExecuteResult(ev kernelwire.Event) {
	c.notebook.Lock()

	cell := c.notebook.CellByID(ev.CellID)
	if cell == nil {
		c.notebook.Unlock()
		return
	}

	readsWritesChanged := !sameSet(cell.Reads, ev.Reads) || !sameSet(cell.Writes, ev.Writes)

	cell.Stdout = ev.Stdout
	cell.Outputs = make([]domain.Output, 0, len(ev.Outputs))
	for _, o := range ev.Outputs {
		cell.Outputs = append(cell.Outputs, domain.Output{MimeType: o.MimeType, Data: o.Data, Metadata: o.Metadata})
	}
	cell.Reads = ev.Reads
	cell.Writes = ev.Writes

	if ev.Status == kernelwire.StatusError {
		cell.Status = domain.StatusError
		cell.Error = ev.Error
	} else {
		cell.Status = domain.StatusSuccess
		cell.Error = ""
	}

	if readsWritesChanged {
		c.rebuildGraph()
	}
	rev := c.notebook.NextRevision()
	cellSnapshot := cell.Clone()
	notebookID := c.notebook.ID
	position := cell.Position
	c.persistCellLocked(notebookID, position, cellSnapshot, rev)

	c.notebook.Unlock()

	c.broadcastExecutionSequence(cellSnapshot, rev)
}

// persistCellLocked issues the per-cell storage write while the
// notebook mutex is held, documented allowance ("persist is
// awaited under the mutex only if it returns quickly - otherwise
// persist outside and accept the race"): per-cell JSONB writes via bun
// are fast single-row upserts, so this implementation always persists
// under the lock rather than accepting the race window.
func (c *Coordinator) persistCellLocked(notebookID string, position int, cell *domain.Cell, revision int) {
	if c.cellRepo == nil {
		return
	}
	ctx := context.Background()
	if err := c.cellRepo.SaveCell(ctx, notebookID, position, cell); err != nil && c.log != nil {
		c.log.Error("failed to persist cell", "notebook_id", notebookID, "cell_id", cell.ID, "error", err)
	}
	if c.notebookRepo != nil {
		meta := repository.NotebookMetadata{
			ID: notebookID, UserID: c.notebook.UserID, Name: c.notebook.Name,
			DBConnStr: c.notebook.DBConnStr, Revision: revision, CellCount: len(c.notebook.Cells),
		}
		if err := c.notebookRepo.SaveMetadata(ctx, meta); err != nil && c.log != nil {
			c.log.Error("failed to persist notebook metadata", "notebook_id", notebookID, "error", err)
		}
	}
}

func (c *Coordinator) broadcastExecutionSequence(cell *domain.Cell, revision int) {
	c.bus.Publish(BroadcastEvent{Type: EventCellStatus, CellID: cell.ID, Status: string(domain.StatusRunning), Revision: revision})

	if cell.Stdout != "" {
		c.bus.Publish(BroadcastEvent{Type: EventCellStdout, CellID: cell.ID, Chunk: cell.Stdout})
	}
	for _, o := range cell.Outputs {
		payload := o
		c.bus.Publish(BroadcastEvent{Type: EventCellOutput, CellID: cell.ID, Output: &OutputPayload{
			MimeType: payload.MimeType, Data: payload.Data, Metadata: payload.Metadata,
		}})
	}
	if cell.Status == domain.StatusError {
		c.bus.Publish(BroadcastEvent{Type: EventCellError, CellID: cell.ID, Error: cell.Error})
	}
	c.bus.Publish(BroadcastEvent{Type: EventCellStatus, CellID: cell.ID, Status: string(cell.Status), Revision: revision})

	cellID := cell.ID
	if cell.Status == domain.StatusError {
		c.notify(observer.Event{Type: observer.EventTypeCellFailed, CellID: &cellID, Status: string(cell.Status), Error: errors.New(cell.Error), Reads: cell.Reads, Writes: cell.Writes})
	} else {
		c.notify(observer.Event{Type: observer.EventTypeCellCompleted, CellID: &cellID, Status: string(cell.Status), Reads: cell.Reads, Writes: cell.Writes})
	}
}

func sameSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	set := make(map[string]struct{}, len(a))
	for _, v := range a {
		set[v] = struct{}{}
	}
	for _, v := range b {
		if _, ok := set[v]; !ok {
			return false
		}
	}
	return true
}
