package kernelproc

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"testing"
	"time"

	"github.com/nbcore/notebookcore/internal/kernelwire"
)

// TestMain re-execs this test binary as a fake kernel child process when
// GO_WANT_HELPER_PROCESS is set, following the standard library's
// os/exec helper-process pattern (see exec_test.go upstream) since
// spawning a real cmd/kernel binary isn't available at test time.
func TestMain(m *testing.M) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") == "1" {
		runHelperKernel()
		os.Exit(0)
	}
	os.Exit(m.Run())
}

func runHelperKernel() {
	scanner := bufio.NewScanner(os.Stdin)
	enc := json.NewEncoder(os.Stdout)
	for scanner.Scan() {
		var cmd kernelwire.Command
		if err := json.Unmarshal(scanner.Bytes(), &cmd); err != nil {
			continue
		}
		switch cmd.Type {
		case kernelwire.CommandRegisterCell:
			_ = enc.Encode(kernelwire.Event{
				Type: kernelwire.EventRegisterResult, CellID: cmd.CellID,
				Status: kernelwire.StatusSuccess,
			})
		case "exit":
			return
		}
	}
}

func spawnHelper(t *testing.T) *Process {
	t.Helper()
	exe, err := os.Executable()
	if err != nil {
		t.Fatalf("os.Executable: %v", err)
	}
	cmd := exec.Command(exe, "-test.run=TestMain")
	cmd.Env = append(os.Environ(), "GO_WANT_HELPER_PROCESS=1")
	stdin, err := cmd.StdinPipe()
	if err != nil {
		t.Fatal(err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		t.Fatal(err)
	}
	if err := cmd.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	p := &Process{cmd: cmd, stdin: stdin, events: make(chan kernelwire.Event, 16), done: make(chan struct{})}
	go p.pump(stdout)
	go p.wait()
	return p
}

func TestProcessRoundTrip(t *testing.T) {
	p := spawnHelper(t)
	defer func() { _ = p.Kill() }()

	if err := p.Send(kernelwire.Command{Type: kernelwire.CommandRegisterCell, CellID: "c1"}); err != nil {
		t.Fatalf("send: %v", err)
	}

	select {
	case ev, ok := <-p.Events():
		if !ok {
			t.Fatal("events channel closed unexpectedly")
		}
		if ev.Type != kernelwire.EventRegisterResult || ev.CellID != "c1" || ev.Status != kernelwire.StatusSuccess {
			t.Fatalf("unexpected event: %+v", ev)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for event")
	}

	if !p.Alive() {
		t.Fatal("expected process to still be alive")
	}
}

func TestProcessExitClosesEvents(t *testing.T) {
	p := spawnHelper(t)
	defer func() { _ = p.Kill() }()

	if err := p.Send(kernelwire.Command{Type: "exit"}); err != nil {
		t.Fatalf("send: %v", err)
	}

	select {
	case <-p.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("process did not exit")
	}
	if p.Alive() {
		t.Fatal("expected process to have exited")
	}

	select {
	case _, ok := <-p.Events():
		if ok {
			t.Fatal("expected events channel to be closed")
		}
	case <-time.After(time.Second):
		t.Fatal(fmt.Errorf("events channel never closed"))
	}
}
