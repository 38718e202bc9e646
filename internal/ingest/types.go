package ingest

import "context"

// GroupSuffix is the structural marker of a group address.
const GroupSuffix = "@g.us"

// RawEvent is one platform-delivered message notification. It is consumed
// once by the normalizer and discarded.
type RawEvent struct {
	MessageID string
	SenderID  string
	Body      string
	Type      string // platform type tag (chat, image, video, ...)
	Timestamp int64  // platform send time, epoch seconds
	HasMedia  bool
	FromMe    bool
}

// Contact is the result of a contact lookup.
type Contact struct {
	Name     string
	PushName string
	Number   string
}

// ChatInfo is the result of a chat (group) lookup.
type ChatInfo struct {
	Name string
}

// Media is a downloaded media payload. Only the mimetype is used here; the
// bytes are discarded once the filename reference is derived.
type Media struct {
	Mimetype string
	Data     []byte
}

// Resolver is the best-effort identity lookup capability the session backend
// supplies. Every method may fail independently; failures degrade the
// normalized record instead of aborting it.
type Resolver interface {
	GetContact(ctx context.Context, senderID string) (*Contact, error)
	GetChat(ctx context.Context, chatID string) (*ChatInfo, error)
	DownloadMedia(ctx context.Context, messageID string) (*Media, error)
}
