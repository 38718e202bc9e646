package wa

import (
	"context"
	"fmt"

	"github.com/matheus3301/warchive/internal/session"
)

// startQRAuth runs the pairing handshake: it streams QR codes to the session
// handler until the phone scans one, the codes time out, or ctx is cancelled.
func (a *Adapter) startQRAuth(ctx context.Context) error {
	if a.IsLoggedIn() {
		return fmt.Errorf("already logged in")
	}
	qrChan, err := a.client.GetQRChannel(ctx)
	if err != nil {
		return fmt.Errorf("get QR channel: %w", err)
	}

	// Connect must be called after GetQRChannel.
	if err := a.client.Connect(); err != nil {
		return fmt.Errorf("connect: %w", err)
	}

	go func() {
		for item := range qrChan {
			switch item.Event {
			case "code":
				a.emit(session.Event{Kind: session.EventQR, QRCode: item.Code})
			case "success":
				// The Connected event carries the Ready transition.
				a.emit(session.Event{Kind: session.EventAuthenticated})
				return
			case "timeout":
				a.emit(session.Event{Kind: session.EventAuthFailure, Reason: "QR code timeout"})
				return
			default:
				if item.Error != nil {
					a.emit(session.Event{Kind: session.EventAuthFailure, Reason: item.Error.Error()})
					return
				}
			}
		}
	}()

	a.logger.Info("pairing started, waiting for QR scan")
	return nil
}
