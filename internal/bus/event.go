package bus

import "time"

// Event represents a domain event published on the bus.
// Kinds are dot-namespaced: "session.status_changed", "session.qr_generated",
// "message.stored".
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}
