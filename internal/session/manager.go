package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/matheus3301/warchive/internal/bus"
	"github.com/matheus3301/warchive/internal/config"
	"github.com/matheus3301/warchive/internal/status"
	qrcode "github.com/skip2/go-qrcode"
	"go.uber.org/zap"
)

// ErrConfiguration marks a fatal startup problem: required session
// parameters are missing or unusable.
var ErrConfiguration = errors.New("configuration")

// Snapshot is the non-blocking status read exposed to the surrounding
// application. Identity is nil until the session reaches Ready; QRPayload is
// empty outside the pairing handshake.
type Snapshot struct {
	State            status.State
	QRPayload        string
	Identity         *Identity
	ReconnectAttempt int
}

// Manager owns one platform session: it drives the lifecycle state machine,
// keeps the session alive across transient disconnects with capped
// exponential backoff, and hands every Ready-state message to the ingestion
// pipeline. Exactly one Manager exists per process.
type Manager struct {
	name     string
	client   Client
	ingestor Ingestor
	machine  *status.Machine
	bus      *bus.Bus
	cfg      *config.Config
	qrPath   string
	logger   *zap.Logger

	mu         sync.Mutex
	qrPayload  string
	identity   *Identity
	attempt    int
	retryTimer *time.Timer
	runCtx     context.Context
	runCancel  context.CancelFunc

	// afterFunc schedules the reconnect retry; tests swap it to observe
	// delays without sleeping.
	afterFunc func(time.Duration, func()) *time.Timer
}

// NewManager creates a session manager. qrPath, when non-empty, is where
// pairing QR codes are rendered as PNG.
func NewManager(name string, client Client, ingestor Ingestor, machine *status.Machine, b *bus.Bus, cfg *config.Config, qrPath string, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		name:      name,
		client:    client,
		ingestor:  ingestor,
		machine:   machine,
		bus:       b,
		cfg:       cfg,
		qrPath:    qrPath,
		logger:    logger,
		afterFunc: time.AfterFunc,
	}
}

// Initialize starts the async platform connection. It is idempotent: a
// session that is already Ready or Reconnecting is left alone. Missing or
// invalid session parameters fail with ErrConfiguration.
func (m *Manager) Initialize(ctx context.Context) error {
	switch m.machine.Current() {
	case status.Ready, status.Reconnecting:
		return nil
	}

	if m.client == nil {
		return fmt.Errorf("%w: no platform client", ErrConfiguration)
	}
	if err := ValidateName(m.name); err != nil {
		return fmt.Errorf("%w: %v", ErrConfiguration, err)
	}
	if err := m.cfg.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrConfiguration, err)
	}

	// An external Initialize is the only way out of Failed.
	if m.machine.Current() == status.Failed {
		if err := m.machine.Transition(status.Initializing); err != nil {
			return err
		}
		m.mu.Lock()
		m.attempt = 0
		m.mu.Unlock()
	}

	m.mu.Lock()
	if m.runCancel == nil {
		m.runCtx, m.runCancel = context.WithCancel(context.Background())
	}
	runCtx := m.runCtx
	m.mu.Unlock()

	m.client.SetHandler(m.handleEvent)

	go func() {
		if err := m.client.Initialize(runCtx); err != nil {
			m.logger.Error("platform initialization failed", zap.Error(err))
			_ = m.machine.Transition(status.Failed)
		}
	}()

	m.logger.Info("session initialization started")
	return nil
}

// Status returns a point-in-time snapshot of the session. Safe to call
// concurrently from any number of callers; never blocks on ingestion.
func (m *Manager) Status() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Snapshot{
		State:            m.machine.Current(),
		QRPayload:        m.qrPayload,
		Identity:         m.identity,
		ReconnectAttempt: m.attempt,
	}
}

// Shutdown cancels any pending reconnect timer and releases the platform
// client. Teardown errors are logged, never returned: shutdown always
// completes.
func (m *Manager) Shutdown(ctx context.Context) {
	m.mu.Lock()
	if m.retryTimer != nil {
		m.retryTimer.Stop()
		m.retryTimer = nil
	}
	cancel := m.runCancel
	m.runCancel = nil
	m.runCtx = nil
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	if err := m.client.Destroy(ctx); err != nil {
		m.logger.Warn("error destroying platform client", zap.Error(err))
	}
	m.logger.Info("session shut down")
}

// handleEvent is the single entry point for platform notifications. Events
// arrive sequentially per session.
func (m *Manager) handleEvent(evt Event) {
	switch evt.Kind {
	case EventQR:
		m.handleQR(evt.QRCode)
	case EventAuthenticated:
		cur := m.machine.Current()
		if cur == status.Initializing || cur == status.AwaitingQR {
			_ = m.machine.Transition(status.Authenticating)
		}
		m.logger.Info("session authenticated")
	case EventAuthFailure:
		m.logger.Error("authentication failed", zap.String("reason", evt.Reason))
		// A remote logout can arrive while connected; route through
		// Disconnected so the failure still lands in the terminal state.
		switch m.machine.Current() {
		case status.Ready, status.Reconnecting:
			_ = m.machine.Transition(status.Disconnected)
		}
		_ = m.machine.Transition(status.Failed)
	case EventReady:
		m.handleReady(evt.Identity)
	case EventMessage:
		m.handleMessage(evt)
	case EventDisconnected:
		m.handleDisconnect(evt.Reason)
	}
}

func (m *Manager) handleQR(code string) {
	m.mu.Lock()
	m.qrPayload = code
	m.mu.Unlock()

	if m.machine.Current() == status.Initializing {
		_ = m.machine.Transition(status.AwaitingQR)
	}

	if m.qrPath != "" {
		if err := qrcode.WriteFile(code, qrcode.Medium, 256, m.qrPath); err != nil {
			m.logger.Warn("could not render QR image", zap.Error(err))
		}
	}
	if m.bus != nil {
		m.bus.Publish(bus.Event{Kind: "session.qr_generated", Timestamp: time.Now(), Payload: code})
	}
	m.logger.Info("QR code received, scan to pair", zap.String("image", m.qrPath))
}

func (m *Manager) handleReady(identity *Identity) {
	m.mu.Lock()
	m.qrPayload = ""
	m.identity = identity
	m.attempt = 0
	m.mu.Unlock()

	// A backend that was already paired skips the QR and auth notifications.
	switch m.machine.Current() {
	case status.Initializing, status.AwaitingQR:
		_ = m.machine.Transition(status.Authenticating)
		_ = m.machine.Transition(status.Ready)
	case status.Authenticating, status.Reconnecting:
		_ = m.machine.Transition(status.Ready)
	}

	if identity != nil {
		m.logger.Info("session ready",
			zap.String("name", identity.Name),
			zap.String("number", identity.Number),
			zap.String("platform", identity.Platform))
	} else {
		m.logger.Info("session ready")
	}
}

func (m *Manager) handleMessage(evt Event) {
	if m.machine.Current() != status.Ready || evt.Message == nil {
		return
	}
	m.mu.Lock()
	runCtx := m.runCtx
	m.mu.Unlock()
	if runCtx == nil {
		return
	}
	// One bad message must not take the session down.
	if err := m.ingestor.Process(runCtx, *evt.Message); err != nil {
		m.logger.Error("failed to process message",
			zap.String("message_id", evt.Message.MessageID), zap.Error(err))
	}
}

func (m *Manager) handleDisconnect(reason string) {
	cur := m.machine.Current()
	if cur != status.Ready && cur != status.Reconnecting {
		m.logger.Warn("disconnect ignored in current state",
			zap.String("state", string(cur)), zap.String("reason", reason))
		return
	}
	m.logger.Warn("session disconnected", zap.String("reason", reason))
	_ = m.machine.Transition(status.Disconnected)

	m.mu.Lock()
	m.identity = nil
	attempt := m.attempt
	if attempt >= m.cfg.Reconnect.MaxAttempts {
		m.mu.Unlock()
		m.logger.Error("max reconnection attempts reached",
			zap.Int("attempts", attempt))
		_ = m.machine.Transition(status.Failed)
		return
	}
	delay := backoffDelay(m.cfg.BaseDelay(), m.cfg.CapDelay(), attempt)
	m.attempt = attempt + 1
	m.retryTimer = m.afterFunc(delay, m.retryConnect)
	m.mu.Unlock()

	_ = m.machine.Transition(status.Reconnecting)
	m.logger.Info("reconnecting",
		zap.Duration("delay", delay),
		zap.Int("attempt", attempt+1),
		zap.Int("max_attempts", m.cfg.Reconnect.MaxAttempts))
}

// retryConnect runs when the backoff timer fires. A synchronous failure is
// treated as another disconnect, feeding back into the backoff loop.
func (m *Manager) retryConnect() {
	if m.machine.Current() != status.Reconnecting {
		return
	}
	m.mu.Lock()
	runCtx := m.runCtx
	m.mu.Unlock()
	if runCtx == nil {
		return
	}
	if err := m.client.Initialize(runCtx); err != nil {
		m.logger.Error("reconnection failed", zap.Error(err))
		m.handleDisconnect("reconnect: " + err.Error())
	}
}

// backoffDelay computes min(base << attempt, cap).
func backoffDelay(base, capDelay time.Duration, attempt int) time.Duration {
	if attempt >= 62 {
		return capDelay
	}
	d := base << uint(attempt)
	if d <= 0 || d > capDelay {
		return capDelay
	}
	return d
}
