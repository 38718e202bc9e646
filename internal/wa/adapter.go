package wa

import (
	"context"
	"fmt"
	"sync"

	"github.com/matheus3301/warchive/internal/ingest"
	"github.com/matheus3301/warchive/internal/session"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	wastore "go.mau.fi/whatsmeow/store"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	"go.uber.org/zap"

	_ "github.com/mattn/go-sqlite3"
)

// mediaCacheSize bounds how many recent media payloads are kept around for
// download. Media older than the window cannot be fetched again.
const mediaCacheSize = 256

// Adapter wraps the whatsmeow client behind the session.Client capability:
// it owns the credential store, translates whatsmeow notifications into
// session events, and serves the normalizer's identity and media lookups.
type Adapter struct {
	client    *whatsmeow.Client
	container *sqlstore.Container
	logger    *zap.Logger
	session   string

	registerOnce sync.Once

	mu         sync.Mutex
	handler    func(session.Event)
	media      map[string]*waE2E.Message
	mediaOrder []string
}

// NewAdapter creates a WhatsApp adapter for the given session. Credentials
// live in the session's own database, separate from the archive.
func NewAdapter(ctx context.Context, sessionName string, logger *zap.Logger) (*Adapter, error) {
	// Device name shown on the phone's linked devices list.
	wastore.SetOSInfo("WArchive", [3]uint32{0, 1, 0})

	dbPath := session.SessionDBPath(sessionName)

	container, err := sqlstore.New(ctx, "sqlite3",
		fmt.Sprintf("file:%s?_foreign_keys=on", dbPath),
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("create session store: %w", err)
	}

	deviceStore, err := container.GetFirstDevice(ctx)
	if err != nil {
		return nil, fmt.Errorf("get device store: %w", err)
	}

	client := whatsmeow.NewClient(deviceStore, nil)
	// The session manager owns the reconnect policy.
	client.EnableAutoReconnect = false

	return &Adapter{
		client:    client,
		container: container,
		logger:    logger,
		session:   sessionName,
		media:     make(map[string]*waE2E.Message),
	}, nil
}

// IsLoggedIn returns whether the adapter has stored credentials.
func (a *Adapter) IsLoggedIn() bool {
	return a.client.Store.ID != nil
}

// SetHandler installs the session event callback. Must be called before
// Initialize.
func (a *Adapter) SetHandler(h func(session.Event)) {
	a.mu.Lock()
	a.handler = h
	a.mu.Unlock()
}

// Initialize connects to WhatsApp. A paired device connects directly; an
// unpaired one enters the QR handshake. Connection progress is reported
// through the event handler, not the return value.
func (a *Adapter) Initialize(ctx context.Context) error {
	a.registerOnce.Do(func() {
		a.client.AddEventHandler(a.handleWhatsmeowEvent)
	})

	if a.IsLoggedIn() {
		a.logger.Info("connecting to WhatsApp", zap.String("session", a.session))
		return a.client.Connect()
	}
	return a.startQRAuth(ctx)
}

// Destroy disconnects from WhatsApp. Stored credentials survive so the next
// start can reconnect without pairing.
func (a *Adapter) Destroy(ctx context.Context) error {
	a.logger.Info("disconnecting from WhatsApp")
	a.client.Disconnect()
	return nil
}

// Logout invalidates the pairing and removes credentials.
func (a *Adapter) Logout(ctx context.Context) error {
	return a.client.Logout(ctx)
}

func (a *Adapter) emit(evt session.Event) {
	a.mu.Lock()
	h := a.handler
	a.mu.Unlock()
	if h != nil {
		h(evt)
	}
}

// GetContact looks the sender up in the whatsmeow device store.
func (a *Adapter) GetContact(ctx context.Context, senderID string) (*ingest.Contact, error) {
	jid, err := types.ParseJID(senderID)
	if err != nil {
		return nil, fmt.Errorf("parse JID: %w", err)
	}
	jid = a.resolveLID(ctx, jid.ToNonAD())

	info, err := a.client.Store.Contacts.GetContact(ctx, jid)
	if err != nil {
		return nil, fmt.Errorf("get contact: %w", err)
	}
	return &ingest.Contact{
		Name:     info.FullName,
		PushName: info.PushName,
		Number:   jid.User,
	}, nil
}

// GetChat resolves a group chat's subject.
func (a *Adapter) GetChat(ctx context.Context, chatID string) (*ingest.ChatInfo, error) {
	jid, err := types.ParseJID(chatID)
	if err != nil {
		return nil, fmt.Errorf("parse JID: %w", err)
	}
	info, err := a.client.GetGroupInfo(ctx, jid)
	if err != nil {
		return nil, fmt.Errorf("get group info: %w", err)
	}
	return &ingest.ChatInfo{Name: info.Name}, nil
}

// DownloadMedia fetches the payload of a recently seen media message.
func (a *Adapter) DownloadMedia(ctx context.Context, messageID string) (*ingest.Media, error) {
	a.mu.Lock()
	msg := a.media[messageID]
	a.mu.Unlock()
	if msg == nil {
		return nil, fmt.Errorf("no media payload for message %s", messageID)
	}

	data, err := a.client.DownloadAny(ctx, msg)
	if err != nil {
		return nil, fmt.Errorf("download media: %w", err)
	}
	return &ingest.Media{
		Mimetype: mediaMimetype(msg),
		Data:     data,
	}, nil
}

// rememberMedia keeps the raw payload of a media message so DownloadMedia can
// fetch it later. The cache is bounded FIFO.
func (a *Adapter) rememberMedia(messageID string, msg *waE2E.Message) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.media[messageID]; ok {
		return
	}
	a.media[messageID] = msg
	a.mediaOrder = append(a.mediaOrder, messageID)
	for len(a.mediaOrder) > mediaCacheSize {
		delete(a.media, a.mediaOrder[0])
		a.mediaOrder = a.mediaOrder[1:]
	}
}

// canonicalSenderID resolves a LID sender to its phone-number form so one
// account always maps to one archived sender.
func (a *Adapter) canonicalSenderID(ctx context.Context, id string) string {
	jid, err := types.ParseJID(id)
	if err != nil {
		return id
	}
	return a.resolveLID(ctx, jid.ToNonAD()).String()
}

// resolveLID maps a LID JID to its phone number JID using the device store.
// Returns the input unchanged when it is not a LID or resolution fails.
func (a *Adapter) resolveLID(ctx context.Context, jid types.JID) types.JID {
	if jid.Server != types.HiddenUserServer && jid.Server != types.HostedLIDServer {
		return jid
	}
	if a.client == nil || a.client.Store == nil || a.client.Store.LIDs == nil {
		return jid
	}
	pn, err := a.client.Store.LIDs.GetPNForLID(ctx, jid)
	if err != nil || pn.IsEmpty() {
		return jid
	}
	return pn
}

// identity builds the account snapshot from the device store.
func (a *Adapter) identity() *session.Identity {
	if a.client.Store.ID == nil {
		return nil
	}
	return &session.Identity{
		Name:     a.client.Store.PushName,
		Number:   a.client.Store.ID.User,
		Platform: a.client.Store.Platform,
	}
}
