package main

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/go-python/gpython/py"
	_ "github.com/go-python/gpython/stdlib" // registers builtins (print, len, range, ...)

	"github.com/nbcore/notebookcore/internal/analyzer"
	"github.com/nbcore/notebookcore/internal/graph"
	"github.com/nbcore/notebookcore/internal/kernelwire"
)

// shadowCell is the Kernel's own copy of a registered cell, kept just
// accurate enough to rebuild a dependency graph and decide cascade
// order.
// Position is assigned on first registration, not carried over the
// wire, since register_cell/execute_cell never transmit a position.
type shadowCell struct {
	id       string
	code     string
	cellType string
	reads    []string
	writes   []string
	position int
}

// kernel is the single-threaded execution engine: one Python interpreter
// context, one globals dict, one SQL connection, shared across every
// cell of the notebook this process serves.
type kernel struct {
	ctx     py.Context
	globals py.StringDict

	cells map[string]*shadowCell
	nextPos int
	dbConn *dbHandle
}

func newKernel() *kernel {
	return &kernel{
		ctx: py.NewContext(py.DefaultContextOpts),
		globals: py.NewStringDict(),
		cells: make(map[string]*shadowCell),
	}
}

// dispatch handles exactly one command and returns the ordered sequence
// of events it produces (a single event for register_cell/set_db_config,
// possibly many for execute_cell's cascade).
func (k *kernel) dispatch(cmd kernelwire.Command) []kernelwire.Event {
	switch cmd.Type {
	case kernelwire.CommandRegisterCell:
		return []kernelwire.Event{k.registerCell(cmd.CellID, cmd.Code, cmd.CellType)}
	case kernelwire.CommandExecuteCell:
		return k.executeCascade(cmd.CellID, cmd.Code, cmd.CellType)
	case kernelwire.CommandSetDBConfig:
		return []kernelwire.Event{k.setDBConfig(cmd.ConnString)}
	default:
		return []kernelwire.Event{{
			Type: kernelwire.EventRegisterResult,
			CellID: cmd.CellID,
			Status: kernelwire.StatusError,
			Error: fmt.Sprintf("unknown command type %q", cmd.Type),
		}}
	}
}

// registerCell stores/updates the shadow cell, checks the rebuilt shadow
// graph, and reports a cycle as a register_result error. The shadow cell
// keeps the new code even when it cycles, so a blocked cell stays in the
// shadow graph and later registrations of cells in that cycle are
// reported as errors too.
func (k *kernel) registerCell(cellID, code, cellType string) kernelwire.Event {
	result := analyzer.Analyze(cellType, code)

	sc, existing := k.cells[cellID]
	if !existing {
		sc = &shadowCell{id: cellID, position: k.nextPos}
		k.nextPos++
		k.cells[cellID] = sc
	}
	sc.code = code
	sc.cellType = cellType
	sc.reads = result.Reads
	sc.writes = result.Writes

	if graph.WouldCycle(k.cellLikes(), cellID) {
		return kernelwire.Event{
			Type: kernelwire.EventRegisterResult,
			CellID: cellID,
			Status: kernelwire.StatusError,
			Reads: result.Reads,
			Writes: result.Writes,
			Error: "dependency cycle detected",
		}
	}

	return kernelwire.Event{
		Type: kernelwire.EventRegisterResult,
		CellID: cellID,
		Status: kernelwire.StatusSuccess,
		Reads: result.Reads,
		Writes: result.Writes,
	}
}

func (k *kernel) cellLikes() []graph.CellLike {
	out := make([]graph.CellLike, 0, len(k.cells))
	for _, sc := range k.cells {
		out = append(out, graph.CellLike{ID: sc.id, Reads: sc.reads, Writes: sc.writes, Position: sc.position})
	}
	return out
}

// executeCascade registers the initiating cell's latest code, computes
// {initial} ∪ dependents_closure(initial) in topological order over the
// shadow graph, and executes each in turn, stopping at the first error.
func (k *kernel) executeCascade(cellID, code, cellType string) []kernelwire.Event {
	regEvent := k.registerCell(cellID, code, cellType)
	if regEvent.Status == kernelwire.StatusError {
		return []kernelwire.Event{
			regEvent,
			{Type: kernelwire.EventExecuteComplete, InitialCellID: cellID, TotalCellsExecuted: 0},
		}
	}

	g := graph.Rebuild(k.cellLikes())
	dependents := g.DependentsClosure(cellID)
	subset := append([]string{cellID}, dependents...)

	positions := make(map[string]int, len(k.cells))
	for _, sc := range k.cells {
		positions[sc.id] = sc.position
	}

	order, err := g.TopologicalSort(subset, positions)
	if err != nil {
		return []kernelwire.Event{
			{Type: kernelwire.EventExecuteResult, CellID: cellID, Status: kernelwire.StatusError, Error: err.Error()},
			{Type: kernelwire.EventExecuteComplete, InitialCellID: cellID, TotalCellsExecuted: 0},
		}
	}

	events := make([]kernelwire.Event, 0, len(order)+1)
	executed := 0
	for idx, id := range order {
		sc := k.cells[id]
		ev := k.executeOne(sc, idx, len(order))
		events = append(events, ev)
		executed++
		if ev.Status == kernelwire.StatusError {
			break
		}
	}
	events = append(events, kernelwire.Event{
		Type: kernelwire.EventExecuteComplete,
		InitialCellID: cellID,
		TotalCellsExecuted: executed,
	})
	return events
}

// executeOne runs one cell's code to completion against the Kernel's
// shared globals, capturing stdout and converting a trailing bare
// expression into an output via the output-adapter pipeline.
func (k *kernel) executeOne(sc *shadowCell, cascadeIndex, cascadeTotal int) kernelwire.Event {
	meta := &kernelwire.ExecuteMetadata{CascadeIndex: cascadeIndex, CascadeTotal: cascadeTotal}

	if sc.cellType == "sql" {
		stdout, outputs, errText := k.runSQLCell(sc.code)
		return kernelwire.Event{
			Type: kernelwire.EventExecuteResult, CellID: sc.id,
			Status: statusFor(errText),
			Stdout: stdout, Outputs: outputs, Error: errText,
			Reads: sc.reads, Writes: sc.writes, Metadata: meta,
		}
	}

	stdout, outputs, errText := k.runPythonCell(sc.code)
	return kernelwire.Event{
		Type: kernelwire.EventExecuteResult, CellID: sc.id,
		Status: statusFor(errText),
		Stdout: stdout, Outputs: outputs, Error: errText,
		Reads: sc.reads, Writes: sc.writes, Metadata: meta,
	}
}

func statusFor(errText string) string {
	if errText != "" {
		return kernelwire.StatusError
	}
	return kernelwire.StatusSuccess
}

// runPythonCell redirects the process's os.Stdout to a pipe for the
// duration of execution (nothing else writes to stdout while the Kernel
// is single-threaded and mid-command), executes against the shared
// globals, then converts a trailing bare expression to an output via
// adaptOutput.
func (k *kernel) runPythonCell(code string) (stdout string, outputs []kernelwire.WireOutput, errText string) {
	execSource, hasTrailingExpr := rewriteTrailingExpr(code)

	realStdout := os.Stdout
	r, w, pipeErr := os.Pipe()
	if pipeErr != nil {
		return "", nil, fmt.Sprintf("internal error: %v", pipeErr)
	}
	os.Stdout = w

	captured := make(chan string, 1)
	go func() {
		var buf bytes.Buffer
		_, _ = io.Copy(&buf, r)
		captured <- buf.String()
	}()

	_, runErr := py.RunString(k.ctx, execSource, "<cell>", k.globals)

	os.Stdout = realStdout
	_ = w.Close()
	stdout = <-captured
	_ = r.Close()

	if runErr != nil {
		return stdout, nil, runErr.Error()
	}

	if hasTrailingExpr {
		if v, ok := k.globals["__cell_result__"]; ok {
			outputs = append(outputs, adaptOutput(v))
			delete(k.globals, "__cell_result__")
		}
	}
	return stdout, outputs, ""
}

// adaptOutput converts a Python value into a MIME-tagged output. Plain
// text repr is the only bundle this kernel produces for bare
// expressions; the only other bundle is the table that SQL cells
// produce (sql.go). No image bundle is produced.
func adaptOutput(v py.Object) kernelwire.WireOutput {
	return kernelwire.WireOutput{
		MimeType: "text/plain",
		Data: fmt.Sprintf("%v", v),
	}
}

func (k *kernel) setDBConfig(connString string) kernelwire.Event {
	h, err := openDB(connString)
	if err != nil {
		return kernelwire.Event{Type: kernelwire.EventConfigResult, Status: kernelwire.StatusError, Error: err.Error()}
	}
	if k.dbConn != nil {
		_ = k.dbConn.Close()
	}
	k.dbConn = h
	return kernelwire.Event{Type: kernelwire.EventConfigResult, Status: kernelwire.StatusSuccess}
}

// sortedGlobalNames returns global variable names in sorted order.
// Nothing in the kernel calls it; runSQLCell reads k.globals directly.
func (k *kernel) sortedGlobalNames() []string {
	names := make([]string, 0, len(k.globals))
	for n := range k.globals {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
