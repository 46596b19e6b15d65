package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

// SocketState is the connection lifecycle of the persistent server link.
type SocketState string

const (
	SocketDisconnected SocketState = "disconnected"
	SocketConnecting   SocketState = "connecting"
	SocketConnected    SocketState = "connected"
	SocketReconnecting SocketState = "reconnecting"
	SocketFailed       SocketState = "failed"
)

// Frame is one named event on the wire.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type FrameCallback func(frame *Frame)

type StateCallback func(state SocketState)

// HeaderProvider injects handshake headers (auth identity).
type HeaderProvider func() map[string]string

type frameCbEntry struct {
	id       int
	callback FrameCallback
}

type stateCbEntry struct {
	id       int
	callback StateCallback
}

// Socket is the persistent bidirectional connection to the match server:
// one per authenticated client, with ping keepalive and bounded reconnect.
// Each dialed connection gets its own read and keepalive goroutine pair;
// the conn pointer is only ever touched under stateM.
type Socket struct {
	wsURL string

	conn   *websocket.Conn
	state  SocketState
	stateM sync.RWMutex

	frameCbs []frameCbEntry
	stateCbs []stateCbEntry
	cbM      sync.RWMutex

	maxReconnectAttempts int
	reconnectDelay       time.Duration
	pingInterval         time.Duration

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	rootCtx    context.Context
	rootCancel context.CancelFunc

	headerProvider HeaderProvider
}

func NewSocket(wsURL string, maxReconnectAttempts int, reconnectDelay time.Duration) *Socket {
	return &Socket{
		wsURL:                wsURL,
		state:                SocketDisconnected,
		maxReconnectAttempts: maxReconnectAttempts,
		reconnectDelay:       reconnectDelay,
		pingInterval:         30 * time.Second,
		stopCh:               make(chan struct{}),
	}
}

// SetHeaderProvider injects headers into the WS handshake.
func (s *Socket) SetHeaderProvider(h HeaderProvider) { s.headerProvider = h }

func (s *Socket) Connect(ctx context.Context) error {
	s.stateM.Lock()
	if s.state == SocketConnected || s.state == SocketConnecting {
		s.stateM.Unlock()
		return nil
	}
	s.stateM.Unlock()

	s.rootCtx, s.rootCancel = context.WithCancel(context.Background())
	s.setState(SocketConnecting)

	conn, err := s.dial(ctx)
	if err != nil {
		s.setState(SocketFailed)
		s.scheduleReconnect()
		return err
	}
	s.attach(conn)
	return nil
}

func (s *Socket) dial(ctx context.Context) (*websocket.Conn, error) {
	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(dialCtx, s.wsURL, &websocket.DialOptions{
		CompressionMode: websocket.CompressionNoContextTakeover,
		HTTPHeader:      s.buildHeaders(),
	})
	return conn, err
}

// attach installs conn as the live connection and starts its loop pair.
func (s *Socket) attach(conn *websocket.Conn) {
	s.stateM.Lock()
	s.conn = conn
	s.stateM.Unlock()
	s.setState(SocketConnected)

	s.wg.Add(2)
	go s.listen(conn)
	go s.pingLoop(conn)
}

// lost retires a broken connection and kicks off reconnection. Only the
// loop that still sees conn as the live connection proceeds; the loser of
// that race returns without side effects.
func (s *Socket) lost(conn *websocket.Conn) {
	s.stateM.Lock()
	if s.conn != conn {
		s.stateM.Unlock()
		return
	}
	s.conn = nil
	s.stateM.Unlock()

	s.setState(SocketDisconnected)
	_ = conn.Close(websocket.StatusGoingAway, "reconnect")
	s.scheduleReconnect()
}

func (s *Socket) listen(conn *websocket.Conn) {
	defer s.wg.Done()
	for {
		if s.isStopping() {
			return
		}
		var frame Frame
		if err := wsjson.Read(s.rootCtx, conn, &frame); err != nil {
			if s.isStopping() {
				return
			}
			s.lost(conn)
			return
		}
		s.fanout(&frame)
	}
}

func (s *Socket) fanout(frame *Frame) {
	s.cbM.RLock()
	callbacks := append([]frameCbEntry(nil), s.frameCbs...)
	s.cbM.RUnlock()
	for _, entry := range callbacks {
		if entry.callback != nil {
			entry.callback(frame)
		}
	}
}

func (s *Socket) pingLoop(conn *websocket.Conn) {
	defer s.wg.Done()
	t := time.NewTicker(s.pingInterval)
	defer t.Stop()
	failures := 0
	for {
		select {
		case <-s.stopCh:
			return
		case <-t.C:
			ctx, cancel := context.WithTimeout(s.rootCtx, 3*time.Second)
			err := conn.Ping(ctx)
			cancel()
			if err == nil {
				failures = 0
				continue
			}
			failures++
			if failures < 2 {
				continue
			}
			if s.isStopping() {
				return
			}
			s.lost(conn)
			return
		}
	}
}

func (s *Socket) scheduleReconnect() {
	if s.maxReconnectAttempts <= 0 {
		return
	}
	s.setState(SocketReconnecting)

	go func() {
		for attempt := 1; attempt <= s.maxReconnectAttempts; attempt++ {
			select {
			case <-s.stopCh:
				return
			case <-time.After(s.backoff(attempt)):
			}

			conn, err := s.dial(s.rootCtx)
			if err != nil {
				continue
			}
			s.attach(conn)
			return
		}
		s.setState(SocketFailed)
	}()
}

func (s *Socket) backoff(attempt int) time.Duration {
	d := s.reconnectDelay
	if d <= 0 {
		d = time.Second
	}
	for i := 1; i < attempt && d < 30*time.Second; i++ {
		d *= 2
	}
	if d > 30*time.Second {
		d = 30 * time.Second
	}
	return d
}

// WriteFrame sends one named command frame. Callers invoke it sequentially
// per connection; wsjson.Write is not safe across goroutines.
func (s *Socket) WriteFrame(ctx context.Context, frame *Frame) error {
	s.stateM.RLock()
	conn, state := s.conn, s.state
	s.stateM.RUnlock()
	if conn == nil || state != SocketConnected {
		return errNotConnected
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
	}
	return wsjson.Write(ctx, conn, frame)
}

func (s *Socket) OnFrame(cb FrameCallback) int {
	s.cbM.Lock()
	defer s.cbM.Unlock()
	id := len(s.frameCbs) + 1
	s.frameCbs = append(s.frameCbs, frameCbEntry{id: id, callback: cb})
	return id
}

func (s *Socket) OnStateChange(cb StateCallback) int {
	s.cbM.Lock()
	defer s.cbM.Unlock()
	id := len(s.stateCbs) + 1
	s.stateCbs = append(s.stateCbs, stateCbEntry{id: id, callback: cb})
	return id
}

func (s *Socket) State() SocketState {
	s.stateM.RLock()
	defer s.stateM.RUnlock()
	return s.state
}

func (s *Socket) setState(state SocketState) {
	s.stateM.Lock()
	s.state = state
	s.stateM.Unlock()

	s.cbM.RLock()
	callbacks := append([]stateCbEntry(nil), s.stateCbs...)
	s.cbM.RUnlock()
	for _, entry := range callbacks {
		if entry.callback != nil {
			entry.callback(state)
		}
	}
}

// Close shuts the connection down for good and reports Disconnected, so
// observers bound to connection loss (lobby reset) also run on an explicit
// close. The server observes the close and releases its side of the session.
func (s *Socket) Close(ctx context.Context) error {
	s.stopOnce.Do(func() { close(s.stopCh) })

	s.stateM.Lock()
	conn := s.conn
	s.conn = nil
	s.stateM.Unlock()
	if conn != nil {
		_ = conn.Close(websocket.StatusNormalClosure, "close")
	}
	s.setState(SocketDisconnected)

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		if s.rootCancel != nil {
			s.rootCancel()
		}
		return nil
	}
}

func (s *Socket) isStopping() bool {
	select {
	case <-s.stopCh:
		return true
	default:
		return false
	}
}

func (s *Socket) buildHeaders() http.Header {
	hdr := http.Header{}
	if s.headerProvider == nil {
		return hdr
	}
	for k, v := range s.headerProvider() {
		if strings.TrimSpace(k) == "" || strings.TrimSpace(v) == "" {
			continue
		}
		hdr.Set(k, v)
	}
	return hdr
}
