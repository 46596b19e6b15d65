package engine

import (
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

type fakeWorker struct {
	mu     sync.Mutex
	sent   []string
	closed bool
	lines  chan string
}

func newFakeWorker() *fakeWorker {
	return &fakeWorker{lines: make(chan string, 16)}
}

func (w *fakeWorker) Send(cmd string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return errors.New("worker closed")
	}
	w.sent = append(w.sent, cmd)
	return nil
}

func (w *fakeWorker) Lines() <-chan string { return w.lines }

// Close marks the worker closed but keeps the line channel open so tests
// can emit after teardown and assert nothing leaks back out.
func (w *fakeWorker) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	return nil
}

func (w *fakeWorker) emit(line string) { w.lines <- line }

func (w *fakeWorker) commands() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.sent...)
}

func (w *fakeWorker) countPrefix(prefix string) int {
	n := 0
	for _, c := range w.commands() {
		if strings.HasPrefix(c, prefix) {
			n++
		}
	}
	return n
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("condition not met within %v", timeout)
}

func newReadyAdapter(t *testing.T) (*Adapter, *fakeWorker) {
	t.Helper()
	w := newFakeWorker()
	a := New(w, Options{SkillLevel: 3, MoveTimeMillis: 100, Debounce: 10 * time.Millisecond})
	t.Cleanup(func() { close(w.lines) })
	if err := a.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	w.emit("readyok")
	waitFor(t, time.Second, func() bool { return a.State() == StateReady })
	return a, w
}

func TestStartHandshake(t *testing.T) {
	a, w := newReadyAdapter(t)
	if a.State() != StateReady {
		t.Fatalf("expected ready, got %v", a.State())
	}
	cmds := w.commands()
	want := []string{"uci", "isready", "ucinewgame", "setoption name Skill Level value 3"}
	if len(cmds) != len(want) {
		t.Fatalf("unexpected command sequence: %v", cmds)
	}
	for i, c := range want {
		if cmds[i] != c {
			t.Fatalf("command %d = %q, want %q (all: %v)", i, cmds[i], c, cmds)
		}
	}
}

func TestFindBestMoveBeforeReadyIsNoop(t *testing.T) {
	w := newFakeWorker()
	a := New(w, Options{Debounce: 5 * time.Millisecond})
	t.Cleanup(func() { close(w.lines) })

	called := false
	a.FindBestMove("fenA", func(string) { called = true })
	time.Sleep(20 * time.Millisecond)
	if called {
		t.Fatalf("callback fired before the adapter was ready")
	}
	if len(w.commands()) != 0 {
		t.Fatalf("unexpected commands sent: %v", w.commands())
	}
}

func TestFindBestMoveDebouncedSearch(t *testing.T) {
	a, w := newReadyAdapter(t)

	a.FindBestMove("fenA", func(string) {})
	if n := w.countPrefix("go "); n != 0 {
		t.Fatalf("search issued before debounce elapsed: %v", w.commands())
	}
	waitFor(t, time.Second, func() bool { return w.countPrefix("go ") == 1 })

	cmds := w.commands()
	last := cmds[len(cmds)-1]
	if last != "go movetime 100" {
		t.Fatalf("expected time-budget search, got %q", last)
	}
	if w.countPrefix("position fen fenA") != 1 {
		t.Fatalf("position not sent: %v", cmds)
	}
	if a.State() != StateThinking {
		t.Fatalf("expected thinking, got %v", a.State())
	}
}

func TestSecondRequestOverwritesFirstCallback(t *testing.T) {
	a, w := newReadyAdapter(t)

	cb1 := make(chan string, 2)
	cb2 := make(chan string, 2)
	a.FindBestMove("fenA", func(mv string) { cb1 <- mv })
	a.FindBestMove("fenB", func(mv string) { cb2 <- mv })

	waitFor(t, time.Second, func() bool { return w.countPrefix("go ") == 1 })
	w.emit("bestmove e2e4")

	select {
	case mv := <-cb2:
		if mv != "e2e4" {
			t.Fatalf("cb2 got %q, want e2e4", mv)
		}
	case <-time.After(time.Second):
		t.Fatalf("cb2 never invoked")
	}

	select {
	case mv := <-cb1:
		t.Fatalf("overwritten cb1 invoked with %q", mv)
	case <-time.After(30 * time.Millisecond):
	}
	select {
	case <-cb2:
		t.Fatalf("cb2 invoked more than once")
	case <-time.After(30 * time.Millisecond):
	}

	// Both position updates collapsed into a single search.
	if n := w.countPrefix("go "); n != 1 {
		t.Fatalf("expected exactly one search command, got %d", n)
	}
	waitFor(t, time.Second, func() bool { return a.State() == StateReady })
}

func TestMalformedWorkerOutputIgnored(t *testing.T) {
	a, w := newReadyAdapter(t)

	cb := make(chan string, 1)
	a.FindBestMove("fenA", func(mv string) { cb <- mv })
	w.emit("info depth 9 score cp 12 pv e2e4")
	w.emit("complete garbage")
	w.emit("bestmove")

	select {
	case mv := <-cb:
		t.Fatalf("callback fired on malformed output: %q", mv)
	case <-time.After(40 * time.Millisecond):
	}
	if a.State() != StateThinking {
		t.Fatalf("malformed output changed state to %v", a.State())
	}

	w.emit("bestmove d2d4")
	select {
	case mv := <-cb:
		if mv != "d2d4" {
			t.Fatalf("got %q, want d2d4", mv)
		}
	case <-time.After(time.Second):
		t.Fatalf("valid bestmove never delivered")
	}
}

func TestSetLevelReissuedWhenReady(t *testing.T) {
	a, w := newReadyAdapter(t)
	a.SetLevel(7)
	waitFor(t, time.Second, func() bool {
		return w.countPrefix("setoption name Skill Level value 7") == 1
	})

	// Out-of-range input clamps instead of erroring.
	a.SetLevel(99)
	waitFor(t, time.Second, func() bool {
		return w.countPrefix("setoption name Skill Level value 20") == 1
	})
}

func TestSetLevelBeforeReadyAppliedOnHandshake(t *testing.T) {
	w := newFakeWorker()
	a := New(w, Options{SkillLevel: 3, Debounce: 5 * time.Millisecond})
	t.Cleanup(func() { close(w.lines) })
	if err := a.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	a.SetLevel(12)
	w.emit("readyok")
	waitFor(t, time.Second, func() bool { return a.State() == StateReady })
	if w.countPrefix("setoption name Skill Level value 12") != 1 {
		t.Fatalf("configured level not applied on ready transition: %v", w.commands())
	}
}

func TestNoCallbackAfterClose(t *testing.T) {
	a, w := newReadyAdapter(t)

	cb := make(chan string, 1)
	a.FindBestMove("fenA", func(mv string) { cb <- mv })
	if err := a.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	w.emit("bestmove e2e4")
	select {
	case mv := <-cb:
		t.Fatalf("callback fired after teardown: %q", mv)
	case <-time.After(50 * time.Millisecond):
	}

	// Close is idempotent.
	if err := a.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}
