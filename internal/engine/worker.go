package engine

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
)

// Worker is one out-of-line decision process. Lines delivers its output in
// send order; the channel closes when the process goes away.
type Worker interface {
	Send(cmd string) error
	Lines() <-chan string
	Close() error
}

type procWorker struct {
	cmd   *exec.Cmd
	stdin io.WriteCloser
	lines chan string

	mu sync.Mutex
}

// SpawnWorker starts the engine binary and wires its stdio into the Worker
// contract.
func SpawnWorker(binaryPath string) (Worker, error) {
	if binaryPath == "" {
		return nil, fmt.Errorf("engine binary path required")
	}
	if _, err := os.Stat(binaryPath); err != nil {
		return nil, fmt.Errorf("engine binary check: %w", err)
	}

	cmd := exec.Command(binaryPath)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("create stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		stdin.Close()
		return nil, fmt.Errorf("create stdout pipe: %w", err)
	}
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		stdin.Close()
		stdout.Close()
		return nil, fmt.Errorf("start engine: %w", err)
	}

	w := &procWorker{
		cmd:   cmd,
		stdin: stdin,
		lines: make(chan string, 64),
	}
	go w.pump(stdout)
	return w, nil
}

func (w *procWorker) pump(stdout io.Reader) {
	defer close(w.lines)
	scanner := bufio.NewScanner(stdout)
	for scanner.Scan() {
		w.lines <- scanner.Text()
	}
}

func (w *procWorker) Send(cmd string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, err := io.WriteString(w.stdin, cmd+"\n")
	return err
}

func (w *procWorker) Lines() <-chan string { return w.lines }

func (w *procWorker) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stdin != nil {
		w.stdin.Close()
	}
	if w.cmd != nil && w.cmd.Process != nil {
		_ = w.cmd.Process.Kill()
	}
	if w.cmd != nil {
		return w.cmd.Wait()
	}
	return nil
}
