package coordinator

import (
	"sync"

	"github.com/nbcore/notebookcore/internal/kernelwire"
)

// pendingOperation is the rendezvous record described in : a
// completion signal and a result slot, created by a synchronous
// operation before it enqueues a command to the Kernel and fulfilled by
// the background reader when the matching event arrives.
type pendingOperation struct {
	done chan struct{}
	result kernelwire.Event
	once   sync.Once
}

func newPendingOperation() *pendingOperation {
	return &pendingOperation{done: make(chan struct{})}
}

func (p *pendingOperation) fulfill(ev kernelwire.Event) {
	p.once.Do(func() {
		p.result = ev
		close(p.done)
	})
}

// pendingTable is keyed by operation-key (currently always the cell id,
// /: "the single-reader + FIFO queue gives sufficient
// correlation for the current operation set" since only one cascade or
// registration is ever in flight for a given key at a time). A
// dedicated "db_config" key correlates set_db_config round-trips.
type pendingTable struct {
	mu      sync.Mutex
	entries map[string]*pendingOperation
}

func newPendingTable() *pendingTable {
	return &pendingTable{entries: make(map[string]*pendingOperation)}
}

const dbConfigKey = "__db_config__"

func (t *pendingTable) register(key string) *pendingOperation {
	t.mu.Lock()
	defer t.mu.Unlock()
	op := newPendingOperation()
	t.entries[key] = op
	return op
}

// remove deletes the entry for key. Called by the waiter on timeout so
// a late kernel response for that key is dropped,
// and by fulfill-and-consume on the happy path.
func (t *pendingTable) remove(key string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.entries, key)
}

// fulfill looks up key and signals its waiter, if any. Returns false if
// there was no waiter (the background reader logs and drops, per
//).
func (t *pendingTable) fulfill(key string, ev kernelwire.Event) bool {
	t.mu.Lock()
	op, ok := t.entries[key]
	if ok {
		delete(t.entries, key)
	}
	t.mu.Unlock()
	if !ok {
		return false
	}
	op.fulfill(ev)
	return true
}

// failAll signals every pending operation with a synthetic error event
// (used on KernelDied / ShuttingDown) and clears the table.
func (t *pendingTable) failAll(status, errMsg string) {
	t.mu.Lock()
	entries := t.entries
	t.entries = make(map[string]*pendingOperation)
	t.mu.Unlock()

	for _, op := range entries {
		op.fulfill(kernelwire.Event{Status: status, Error: errMsg})
	}
}
