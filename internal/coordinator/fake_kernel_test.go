package coordinator

import (
	"github.com/nbcore/notebookcore/internal/analyzer"
	"github.com/nbcore/notebookcore/internal/graph"
	"github.com/nbcore/notebookcore/internal/kernelwire"
)

// fakeKernel is an in-memory stand-in for cmd/kernel's real
// gpython-backed process, reusing the same internal/analyzer and
// internal/graph packages the real Kernel does, so its register/
// execute semantics match production exactly without spawning a child
// process in unit tests.
type fakeKernel struct {
	events chan kernelwire.Event
	done chan struct{}
	cells   map[string]*fakeCell
	nextPos int
	// executeOutcome lets a test force a specific cell's next execution
	// to fail with the given message (simulates S3's ZeroDivisionError).
	executeOutcome map[string]string
}

type fakeCell struct {
	id, code, cellType string
	reads, writes []string
	position int
}

func newFakeKernel() *fakeKernel {
	return &fakeKernel{
		events: make(chan kernelwire.Event, 256),
		done: make(chan struct{}),
		cells: make(map[string]*fakeCell),
		executeOutcome: make(map[string]string),
	}
}

func (f *fakeKernel) Events() <-chan kernelwire.Event { return f.events }
func (f *fakeKernel) Alive() bool { return true }
func (f *fakeKernel) Shutdown() error {
	// TestCoordinator_IsDeadAfterKernelDies closes events itself before
	// its cleanup calls Shutdown; a second close must not panic.
	defer func() { _ = recover() }()
	close(f.events)
	return nil
}
func (f *fakeKernel) Kill() error { return nil }
func (f *fakeKernel) Done() <-chan struct{} { return f.done }

func (f *fakeKernel) cellLikes() []graph.CellLike {
	out := make([]graph.CellLike, 0, len(f.cells))
	for _, c := range f.cells {
		out = append(out, graph.CellLike{ID: c.id, Reads: c.reads, Writes: c.writes, Position: c.position})
	}
	return out
}

func (f *fakeKernel) Send(cmd kernelwire.Command) error {
	switch cmd.Type {
	case kernelwire.CommandRegisterCell:
		f.events <- f.register(cmd)
	case kernelwire.CommandExecuteCell:
		for _, ev := range f.execute(cmd) {
			f.events <- ev
		}
	case kernelwire.CommandSetDBConfig:
		f.events <- kernelwire.Event{Type: kernelwire.EventConfigResult, Status: kernelwire.StatusSuccess}
	}
	return nil
}

func (f *fakeKernel) register(cmd kernelwire.Command) kernelwire.Event {
	result := analyzer.Analyze(cmd.CellType, cmd.Code)
	c, ok := f.cells[cmd.CellID]
	if !ok {
		c = &fakeCell{id: cmd.CellID, position: f.nextPos}
		f.nextPos++
		f.cells[cmd.CellID] = c
	}
	c.code, c.cellType, c.reads, c.writes = cmd.Code, cmd.CellType, result.Reads, result.Writes

	if graph.WouldCycle(f.cellLikes(), cmd.CellID) {
		return kernelwire.Event{Type: kernelwire.EventRegisterResult, CellID: cmd.CellID, Status: kernelwire.StatusError, Reads: result.Reads, Writes: result.Writes, Error: "dependency cycle detected"}
	}
	return kernelwire.Event{Type: kernelwire.EventRegisterResult, CellID: cmd.CellID, Status: kernelwire.StatusSuccess, Reads: result.Reads, Writes: result.Writes}
}

func (f *fakeKernel) execute(cmd kernelwire.Command) []kernelwire.Event {
	regEv := f.register(cmd)
	if regEv.Status == kernelwire.StatusError {
		return []kernelwire.Event{regEv, {Type: kernelwire.EventExecuteComplete, InitialCellID: cmd.CellID}}
	}

	g := graph.Rebuild(f.cellLikes())
	subset := append([]string{cmd.CellID}, g.DependentsClosure(cmd.CellID)...)
	positions := make(map[string]int, len(f.cells))
	for _, c := range f.cells {
		positions[c.id] = c.position
	}
	order, err := g.TopologicalSort(subset, positions)
	if err != nil {
		return []kernelwire.Event{{Type: kernelwire.EventExecuteResult, CellID: cmd.CellID, Status: kernelwire.StatusError, Error: err.Error()}, {Type: kernelwire.EventExecuteComplete, InitialCellID: cmd.CellID}}
	}

	var events []kernelwire.Event
	executed := 0
	for i, id := range order {
		c := f.cells[id]
		if msg, forced := f.executeOutcome[id]; forced {
			events = append(events, kernelwire.Event{
				Type: kernelwire.EventExecuteResult, CellID: id, Status: kernelwire.StatusError, Error: msg,
				Reads: c.reads, Writes: c.writes, Metadata: &kernelwire.ExecuteMetadata{CascadeIndex: i, CascadeTotal: len(order)},
			})
			executed++
			break
		}
		events = append(events, kernelwire.Event{
			Type: kernelwire.EventExecuteResult, CellID: id, Status: kernelwire.StatusSuccess,
			Reads: c.reads, Writes: c.writes, Metadata: &kernelwire.ExecuteMetadata{CascadeIndex: i, CascadeTotal: len(order)},
		})
		executed++
	}
	events = append(events, kernelwire.Event{Type: kernelwire.EventExecuteComplete, InitialCellID: cmd.CellID, TotalCellsExecuted: executed})
	return events
}
