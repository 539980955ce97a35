// Package coordinator implements the per-notebook orchestration layer
//: it owns the Notebook, the notebook's serialization
// mutex (via domain.Notebook.Lock/Unlock), the Kernel process handle,
// the pending-operation rendezvous table, and a subscriber broadcaster,
// and exposes the six public operations that the mutation API (and,
// indirectly, HTTP/WebSocket clients) call.
//
// Grounded on the teacher's internal/application/observer/manager.go
// fan-out discipline for the broadcaster, and its root-level
// internal/infrastructure/websocket/hub.go for the bounded
// per-subscriber channel; the rendezvous table and mutex discipline
// themselves have no teacher analogue and are bespoke coordination
// logic built directly on stdlib sync/time/context.
package coordinator

import (
	"context"
	"time"

	"github.com/nbcore/notebookcore/internal/application/observer"
	"github.com/nbcore/notebookcore/internal/domain"
	"github.com/nbcore/notebookcore/internal/domain/repository"
	"github.com/nbcore/notebookcore/internal/graph"
	"github.com/nbcore/notebookcore/internal/infrastructure/logger"
	"github.com/nbcore/notebookcore/internal/kernelwire"
)

const (
	registerTimeout = 10 * time.Second
	runWaitTimeout  = 30 * time.Second
	readerPollEvery = 1 * time.Second
	statePollEvery  = 50 * time.Millisecond
)

// kernelHandle is the subset of *kernelproc.Process the Coordinator
// depends on. Accepting the interface (rather than the concrete type)
// lets tests drive the Coordinator's rendezvous and cascade logic
// against an in-memory fake instead of a spawned child process.
type kernelHandle interface {
	Send(kernelwire.Command) error
	Events() <-chan kernelwire.Event
	Alive() bool
	Shutdown() error
	Kill() error
	Done() <-chan struct{}
}

// Coordinator orchestrates one live notebook. All exported methods are
// safe for concurrent use by multiple client goroutines; the background
// reader goroutine started by New is the sole reader of the Kernel's
// output_queue.
type Coordinator struct {
	notebook *domain.Notebook
	graph    *graph.Graph // protected by notebook.Lock(), like every other derived field

	proc kernelHandle
	pending *pendingTable
	bus *Broadcaster

	notebookRepo repository.NotebookRepository
	cellRepo repository.CellRepository
	log *logger.Logger
	obs *observer.ObserverManager

	dead bool
	deadErr error
	cancel context.CancelFunc
	readerDone chan struct{}
}

// New wires a Coordinator around an already-populated Notebook and a
// freshly spawned Kernel process, and starts the background reader.
// Callers (internal/coordinator.Registry) are responsible for loading
// the notebook and spawning proc beforehand.
func New(nb *domain.Notebook, proc kernelHandle, notebookRepo repository.NotebookRepository, cellRepo repository.CellRepository, log *logger.Logger, obs *observer.ObserverManager) *Coordinator {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Coordinator{
		notebook: nb,
		proc: proc,
		pending: newPendingTable(),
		bus: NewBroadcaster(nil),
		notebookRepo: notebookRepo,
		cellRepo: cellRepo,
		log: log,
		obs: obs,
		cancel: cancel,
		readerDone: make(chan struct{}),
	}

	nb.Lock()
	c.graph = graph.Rebuild(cellLikes(nb.Cells))
	nb.Unlock()

	go c.runReader(ctx)
	c.primeKernel()

	return c
}

// NotebookID exposes the owning notebook's id for the registry's map key.
func (c *Coordinator) NotebookID() string {
	return c.notebook.ID
}

// primeKernel re-registers every already-persisted cell with the fresh
// Kernel process so its shadow graph matches the Coordinator's
// before any client operation runs. No one is waiting on these
// register_result events; the reader's "no waiter: log and drop" path
// absorbs them by design.
func (c *Coordinator) primeKernel() {
	c.notebook.Lock()
	cells := make([]*domain.Cell, len(c.notebook.Cells))
	copy(cells, c.notebook.Cells)
	c.notebook.Unlock()

	for _, cell := range cells {
		_ = c.proc.Send(kernelwire.Command{
			Type: kernelwire.CommandRegisterCell,
			CellID: cell.ID,
			Code: cell.Code,
			CellType: string(cell.Type),
		})
	}
}

// notify fans ev out to the observer sinks (database, HTTP callback,
// logger), if any are registered. This is separate from c.bus.Publish:
// the Broadcaster feeds live WebSocket/SSE subscribers, while notify
// feeds durable or external sinks that outlive any single connection.
func (c *Coordinator) notify(ev observer.Event) {
	if c.obs == nil {
		return
	}
	ev.NotebookID = c.notebook.ID
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	c.obs.Notify(context.Background(), ev)
}

// Subscribe registers a new broadcast subscriber for this notebook.
func (c *Coordinator) Subscribe() *Subscriber {
	return c.bus.Subscribe()
}

// Unsubscribe removes a previously registered subscriber.
func (c *Coordinator) Unsubscribe(s *Subscriber) {
	c.bus.Unsubscribe(s)
}

// IsDead reports whether the background reader observed the Kernel die
//. Once dead, the Coordinator refuses new operations.
func (c *Coordinator) IsDead() (bool, error) {
	c.notebook.Lock()
	defer c.notebook.Unlock()
	return c.dead, c.deadErr
}

// Shutdown cancels the reader, fails every pending operation with
// ShuttingDown, closes all subscriber channels, and asks the Kernel to
// exit.
func (c *Coordinator) Shutdown() {
	c.cancel()
	<-c.readerDone
	c.pending.failAll(kernelwire.StatusError, "coordinator is shutting down")
	c.bus.Close()
	_ = c.proc.Shutdown()
	select {
	case <-c.proc.Done():
	case <-time.After(2 * time.Second):
		_ = c.proc.Kill()
	}
}

// cellLikes projects domain cells into graph.CellLike for Rebuild/sort.
// Caller must hold the notebook lock.
func cellLikes(cells []*domain.Cell) []graph.CellLike {
	out := make([]graph.CellLike, len(cells))
	for i, c := range cells {
		out[i] = graph.CellLike{ID: c.ID, Reads: c.Reads, Writes: c.Writes, Position: c.Position}
	}
	return out
}

// positionsOf returns the position map used by graph.TopologicalSort's
// tie-break. Caller must hold the notebook lock.
func positionsOf(cells []*domain.Cell) map[string]int {
	out := make(map[string]int, len(cells))
	for _, c := range cells {
		out[c.ID] = c.Position
	}
	return out
}

// reindexPositions renumbers every cell's Position field to match its
// current slice index, keeping "document order" always consistent with the user-visible list after any
// structural mutation. Caller must hold the notebook lock.
func reindexPositions(nb *domain.Notebook) {
	for i, c := range nb.Cells {
		c.Position = i
	}
}

// rebuildGraph recomputes c.graph from the notebook's current cells.
// Caller must hold the notebook lock.
func (c *Coordinator) rebuildGraph() {
	c.graph = graph.Rebuild(cellLikes(c.notebook.Cells))
}
