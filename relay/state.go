package relay

import (
	"sync"
	"time"

	"github.com/dustin/go-humanize"
)

// ConnState is the lifecycle state of one side of the bridge.
type ConnState int

const (
	StateDisconnected ConnState = iota
	StateConnecting
	StateConnected
)

func (s ConnState) String() string {
	switch s {
	case StateDisconnected:
		return "DISCONNECTED"
	case StateConnecting:
		return "CONNECTING"
	case StateConnected:
		return "CONNECTED"
	default:
		return "UNKNOWN"
	}
}

// side tracks the state machine of one connection. Each side has its own,
// so neither loop ever reads the other's state.
type side struct {
	name     string
	endpoint string

	mu            sync.Mutex
	state         ConnState
	since         time.Time
	lastConnected time.Time
	lastError     string
	attempts      uint64
}

func newSide(name, endpoint string) *side {
	return &side{name: name, endpoint: endpoint, since: time.Now()}
}

func (s *side) set(state ConnState) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if state == StateConnecting {
		s.attempts++
	}
	if state == StateConnected {
		s.lastConnected = time.Now()
		s.lastError = ""
	}
	s.state = state
	s.since = time.Now()
}

func (s *side) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state = StateDisconnected
	s.since = time.Now()
	if err != nil {
		s.lastError = err.Error()
	}
}

func (s *side) State() ConnState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// SideStatus is a point-in-time view of one side.
type SideStatus struct {
	Name          string    `json:"name"`
	Endpoint      string    `json:"endpoint"`
	State         string    `json:"state"`
	Since         string    `json:"since"`
	LastConnected time.Time `json:"lastConnected,omitempty"`
	LastError     string    `json:"lastError,omitempty"`
	Attempts      uint64    `json:"attempts"`
}

func (s *side) status() SideStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return SideStatus{
		Name:          s.name,
		Endpoint:      s.endpoint,
		State:         s.state.String(),
		Since:         humanize.Time(s.since),
		LastConnected: s.lastConnected,
		LastError:     s.lastError,
		Attempts:      s.attempts,
	}
}
