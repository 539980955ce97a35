// Command kernel is the Kernel Worker child process: a
// single-threaded Python/SQL execution engine that speaks a
// newline-delimited JSON protocol over stdin/stdout with its owning
// Coordinator. It embeds go-python/gpython as the interpreter and never
// initiates IPC itself — it only ever responds to commands read from
// stdin, one at a time, strictly in order.
//
// Grounded in IPC shape on _examples/opentofu-opentofu's
// internal/encryption/keyprovider/externalcommand and
// internal/encryption/method/external packages (a Go host driving a
// child process over stdio with a JSON request/response protocol),
// adapted here from their one-shot-per-invocation model to a long-lived,
// multiplexed pipe serving many commands across the process's lifetime.
package main

import (
	"bufio"
	"encoding/json"
	"log"
	"os"

	"github.com/nbcore/notebookcore/internal/kernelwire"
)

func main() {
	k := newKernel()
	if err := run(k, os.Stdin, os.Stdout); err != nil {
		log.Fatalf("kernel: %v", err)
	}
}

// run drains stdin one line at a time, dispatching each decoded Command
// to k and writing back exactly one Event (or, for execute_cell, a
// sequence of Events) before reading the next line. This is the
// "input_queue drained strictly in order" contract from .
func run(k *kernel, in *os.File, out *os.File) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	enc := json.NewEncoder(out)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var cmd kernelwire.Command
		if err := json.Unmarshal(line, &cmd); err != nil {
			log.Printf("kernel: malformed command: %v", err)
			continue
		}
		for _, ev := range k.dispatch(cmd) {
			if err := enc.Encode(ev); err != nil {
				return err
			}
		}
	}
	return scanner.Err()
}
