package engine

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/RMIT-FinTech-Club/history-chess-core/internal/obslog"
)

// State is the adapter lifecycle.
type State int

const (
	StateUninitialized State = iota
	StateInitializing
	StateReady
	StateThinking
)

func (s State) String() string {
	switch s {
	case StateInitializing:
		return "initializing"
	case StateReady:
		return "ready"
	case StateThinking:
		return "thinking"
	default:
		return "uninitialized"
	}
}

// Callback receives the resolved best-move token. At most one callback is
// pending at a time; a newer FindBestMove overwrites the previous one and
// the overwritten caller is never invoked.
type Callback func(move string)

type Options struct {
	SkillLevel     int
	MoveTimeMillis int
	Debounce       time.Duration
}

const (
	defaultMoveTimeMillis = 1000
	defaultDebounce       = 150 * time.Millisecond
	defaultSkillLevel     = 10
)

// Adapter owns exactly one decision worker and mediates best-move requests
// under a time budget. All transitions are mutex-guarded; worker output is
// observed in send order by a single read loop.
type Adapter struct {
	mu       sync.Mutex
	worker   Worker
	state    State
	level    int
	moveTime int
	debounce time.Duration
	pending  Callback
	timer    *time.Timer
	closed   bool

	logger *zap.Logger
}

// New wraps an already-spawned worker. Start must be called before the
// adapter accepts move requests.
func New(worker Worker, opts Options) *Adapter {
	level := opts.SkillLevel
	if level < 0 || level > 20 {
		level = defaultSkillLevel
	}
	moveTime := opts.MoveTimeMillis
	if moveTime <= 0 {
		moveTime = defaultMoveTimeMillis
	}
	debounce := opts.Debounce
	if debounce <= 0 {
		debounce = defaultDebounce
	}
	return &Adapter{
		worker:   worker,
		state:    StateUninitialized,
		level:    level,
		moveTime: moveTime,
		debounce: debounce,
		logger:   obslog.L(),
	}
}

// NewFromBinary spawns the engine binary and wraps it.
func NewFromBinary(binaryPath string, opts Options) (*Adapter, error) {
	w, err := SpawnWorker(binaryPath)
	if err != nil {
		return nil, err
	}
	return New(w, opts), nil
}

// Start begins the handshake. The Ready transition happens asynchronously
// when the worker acknowledges.
func (a *Adapter) Start() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return fmt.Errorf("adapter closed")
	}
	if a.state != StateUninitialized {
		a.mu.Unlock()
		return fmt.Errorf("adapter already started")
	}
	a.state = StateInitializing
	w := a.worker
	a.mu.Unlock()

	go a.readLoop()

	if err := w.Send("uci"); err != nil {
		return fmt.Errorf("send uci: %w", err)
	}
	if err := w.Send("isready"); err != nil {
		return fmt.Errorf("send isready: %w", err)
	}
	return nil
}

// State reports the current lifecycle state.
func (a *Adapter) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// SetLevel updates the configured skill level. When the worker is Ready the
// configuration command is re-issued immediately; otherwise it is applied
// on the next Ready transition.
func (a *Adapter) SetLevel(level int) {
	if level < 0 {
		level = 0
	}
	if level > 20 {
		level = 20
	}

	a.mu.Lock()
	a.level = level
	if a.closed || a.state != StateReady {
		a.mu.Unlock()
		return
	}
	w := a.worker
	a.mu.Unlock()

	if err := w.Send(skillCommand(level)); err != nil {
		a.logger.Warn("engine_setlevel_send", zap.Int("level", level), zap.Error(err))
	}
}

// FindBestMove asks the worker for the best move in the given position. It
// is a no-op unless the adapter is Ready or already Thinking. The search
// command is debounced so rapid successive position updates collapse into
// one search.
func (a *Adapter) FindBestMove(fen string, cb Callback) {
	a.mu.Lock()
	if a.closed || (a.state != StateReady && a.state != StateThinking) {
		state := a.state
		a.mu.Unlock()
		a.logger.Debug("engine_find_ignored", zap.String("state", state.String()))
		return
	}
	a.state = StateThinking
	a.pending = cb
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
	w := a.worker
	a.timer = time.AfterFunc(a.debounce, a.fireSearch)
	a.mu.Unlock()

	if err := w.Send("position fen " + fen); err != nil {
		a.logger.Warn("engine_position_send", zap.Error(err))
	}
}

func (a *Adapter) fireSearch() {
	a.mu.Lock()
	if a.closed || a.state != StateThinking {
		a.mu.Unlock()
		return
	}
	a.timer = nil
	w := a.worker
	cmd := fmt.Sprintf("go movetime %d", a.moveTime)
	a.mu.Unlock()

	if err := w.Send(cmd); err != nil {
		a.logger.Warn("engine_go_send", zap.Error(err))
	}
}

// Close cancels any pending timer and terminates the worker. No callback is
// invoked after Close returns.
func (a *Adapter) Close() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
	a.pending = nil
	w := a.worker
	a.mu.Unlock()

	return w.Close()
}

func (a *Adapter) readLoop() {
	for line := range a.worker.Lines() {
		switch d := decodeLine(line); d.kind {
		case lineHandshake:
			a.onHandshake()
		case lineBestMove:
			a.onBestMove(d.move)
		default:
			a.logger.Debug("engine_line_ignored", zap.String("line", line))
		}
	}
}

func (a *Adapter) onHandshake() {
	a.mu.Lock()
	if a.closed || a.state != StateInitializing {
		a.mu.Unlock()
		return
	}
	a.state = StateReady
	w := a.worker
	level := a.level
	a.mu.Unlock()

	if err := w.Send("ucinewgame"); err != nil {
		a.logger.Warn("engine_newgame_send", zap.Error(err))
	}
	if err := w.Send(skillCommand(level)); err != nil {
		a.logger.Warn("engine_setlevel_send", zap.Int("level", level), zap.Error(err))
	}
	a.logger.Info("engine_ready", zap.Int("level", level))
}

func (a *Adapter) onBestMove(move string) {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	cb := a.pending
	a.pending = nil
	if a.state == StateThinking {
		a.state = StateReady
	}
	a.mu.Unlock()

	if cb != nil {
		cb(move)
	}
}

func skillCommand(level int) string {
	return fmt.Sprintf("setoption name Skill Level value %d", level)
}
