package status

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/matheus3301/warchive/internal/bus"
)

// State represents the session lifecycle state.
type State string

const (
	Initializing   State = "INITIALIZING"
	AwaitingQR     State = "AWAITING_QR"
	Authenticating State = "AUTHENTICATING"
	Ready          State = "READY"
	Disconnected   State = "DISCONNECTED"
	Reconnecting   State = "RECONNECTING"
	Failed         State = "FAILED"
)

// validTransitions defines allowed state transitions. Failed is terminal:
// only an external re-initialize leaves it.
var validTransitions = map[State][]State{
	Initializing:   {AwaitingQR, Authenticating, Failed},
	AwaitingQR:     {Authenticating, Failed},
	Authenticating: {Ready, Failed},
	Ready:          {Disconnected},
	Disconnected:   {Reconnecting, Failed},
	Reconnecting:   {Ready, Disconnected},
	Failed:         {Initializing},
}

// Machine tracks and enforces session lifecycle transitions.
type Machine struct {
	mu      sync.RWMutex
	current State
	bus     *bus.Bus
}

// NewMachine creates a new state machine starting in Initializing.
func NewMachine(b *bus.Bus) *Machine {
	return &Machine{
		current: Initializing,
		bus:     b,
	}
}

// Current returns the current state.
func (m *Machine) Current() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Transition attempts to move to a new state. Returns error if transition is invalid.
func (m *Machine) Transition(to State) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	allowed := validTransitions[m.current]
	if !slices.Contains(allowed, to) {
		return fmt.Errorf("invalid transition from %s to %s", m.current, to)
	}
	from := m.current
	m.current = to
	if m.bus != nil {
		m.bus.Publish(bus.Event{
			Kind:      "session.status_changed",
			Timestamp: time.Now(),
			Payload: StatusChange{
				From: from,
				To:   to,
			},
		})
	}
	return nil
}

// StatusChange is the payload for status change events.
type StatusChange struct {
	From State
	To   State
}
