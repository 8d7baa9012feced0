package session

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/MdrnDme/clutch/pkg/logx"
)

// sessionRateLimit bounds how many frames a single session may send
// per second, guarding against one misbehaving device starving others.
// Frames over the limit are answered with an error and not dispatched.
const (
	sessionRateLimit = 20.0
	sessionBurst     = 40
)

// Session is one client connection and its state-machine position.
type Session struct {
	conn   *websocket.Conn
	logger *logx.Logger

	writeMu sync.Mutex // gorilla/websocket requires one writer at a time

	mu         sync.Mutex
	state      State
	deviceID   string
	deviceName string
	lastSeen   time.Time

	limiter *rate.Limiter
}

// newSession wraps an accepted websocket connection in Connected state.
func newSession(conn *websocket.Conn, logger *logx.Logger) *Session {
	return &Session{
		conn:     conn,
		logger:   logger,
		state:    StateConnected,
		lastSeen: time.Now(),
		limiter:  rate.NewLimiter(rate.Limit(sessionRateLimit), sessionBurst),
	}
}

// DeviceID returns the registered device id, or "" before registration.
func (s *Session) DeviceID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deviceID
}

// State returns the session's current state-machine position.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

func (s *Session) register(deviceID, deviceName string) {
	s.mu.Lock()
	s.deviceID = deviceID
	s.deviceName = deviceName
	s.state = StateRegistered
	s.mu.Unlock()
}

func (s *Session) touch() {
	s.mu.Lock()
	s.lastSeen = time.Now()
	s.mu.Unlock()
}

// LastSeen returns the last heartbeat (or registration) time.
func (s *Session) LastSeen() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

// send marshals v and writes it as a text frame. Best-effort: per
// spec §5, a send failure to one session must never block or abort
// fan-out to others, so callers treat a returned error as "drop this
// session" rather than propagating further.
func (s *Session) send(v interface{}) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return s.conn.WriteMessage(websocket.TextMessage, payload)
}

func (s *Session) close() {
	s.setState(StateClosed)
	s.conn.Close()
}
