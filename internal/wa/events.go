package wa

import (
	"context"

	"github.com/matheus3301/warchive/internal/session"
	"go.mau.fi/whatsmeow/types/events"
	"go.uber.org/zap"
)

// handleWhatsmeowEvent translates raw whatsmeow notifications into the
// platform-neutral session events the manager consumes.
func (a *Adapter) handleWhatsmeowEvent(rawEvt any) {
	switch evt := rawEvt.(type) {
	case *events.Connected:
		a.logger.Info("WhatsApp connected")
		a.emit(session.Event{Kind: session.EventReady, Identity: a.identity()})
	case *events.Disconnected:
		a.emit(session.Event{Kind: session.EventDisconnected, Reason: "connection closed"})
	case *events.StreamReplaced:
		a.emit(session.Event{Kind: session.EventDisconnected, Reason: "stream replaced by another device"})
	case *events.LoggedOut:
		a.logger.Warn("WhatsApp logged out", zap.String("reason", evt.Reason.String()))
		a.emit(session.Event{Kind: session.EventAuthFailure, Reason: evt.Reason.String()})
	case *events.Message:
		a.handleMessage(evt)
	}
}

func (a *Adapter) handleMessage(evt *events.Message) {
	raw := ParseMessage(evt)
	raw.SenderID = a.canonicalSenderID(context.Background(), raw.SenderID)
	if raw.HasMedia {
		a.rememberMedia(raw.MessageID, evt.Message)
	}
	a.emit(session.Event{Kind: session.EventMessage, Message: &raw})
}
