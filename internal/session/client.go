package session

import (
	"context"

	"github.com/matheus3301/warchive/internal/ingest"
)

// Identity describes the authenticated account behind the session.
type Identity struct {
	Name     string
	Number   string
	Platform string
}

// EventKind enumerates platform lifecycle and message notifications.
type EventKind string

const (
	EventQR            EventKind = "qr"
	EventAuthenticated EventKind = "authenticated"
	EventAuthFailure   EventKind = "auth_failure"
	EventReady         EventKind = "ready"
	EventMessage       EventKind = "message"
	EventDisconnected  EventKind = "disconnected"
)

// Event is one notification delivered by the platform client. Exactly one of
// the payload fields is meaningful, selected by Kind.
type Event struct {
	Kind     EventKind
	QRCode   string           // EventQR
	Identity *Identity        // EventReady
	Reason   string           // EventAuthFailure, EventDisconnected
	Message  *ingest.RawEvent // EventMessage
}

// Client is the narrow capability the manager requires from a platform
// backend: imperative lifecycle, event delivery, and the best-effort identity
// lookups the normalizer consumes. Any concrete backend can satisfy it.
// SetHandler must be called before Initialize; events for one session are
// delivered sequentially.
type Client interface {
	ingest.Resolver

	Initialize(ctx context.Context) error
	Destroy(ctx context.Context) error
	SetHandler(func(Event))
}

// Ingestor is the normalize-and-persist entry point the manager hands Ready
// messages to.
type Ingestor interface {
	Process(ctx context.Context, raw ingest.RawEvent) error
}
