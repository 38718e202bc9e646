package ingest

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/matheus3301/warchive/internal/store"
	"go.uber.org/zap"
)

// Normalizer converts one RawEvent plus best-effort lookups into a canonical
// store.Message. It never fails: lookup errors degrade the affected field and
// are logged at warning level. It holds no state across calls.
type Normalizer struct {
	resolver      Resolver
	lookupTimeout time.Duration
	mediaTimeout  time.Duration
	logger        *zap.Logger
}

// NewNormalizer creates a normalizer backed by the given resolver.
func NewNormalizer(resolver Resolver, lookupTimeout, mediaTimeout time.Duration, logger *zap.Logger) *Normalizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Normalizer{
		resolver:      resolver,
		lookupTimeout: lookupTimeout,
		mediaTimeout:  mediaTimeout,
		logger:        logger,
	}
}

// Normalize produces the canonical record for one raw event.
func (n *Normalizer) Normalize(ctx context.Context, raw RawEvent) *store.Message {
	messageID := raw.MessageID
	if messageID == "" {
		// A missing platform id would make every such event collide on the
		// uniqueness key; synthesize one instead.
		messageID = uuid.NewString()
		n.logger.Warn("event has no message id, synthesized one",
			zap.String("message_id", messageID), zap.String("sender", raw.SenderID))
	}

	isGroup := strings.HasSuffix(raw.SenderID, GroupSuffix)

	var groupName *string
	if isGroup {
		lctx, cancel := context.WithTimeout(ctx, n.lookupTimeout)
		info, err := n.resolver.GetChat(lctx, raw.SenderID)
		cancel()
		if err != nil {
			n.logger.Warn("could not fetch group info",
				zap.String("message_id", messageID), zap.Error(err))
		} else if info != nil && info.Name != "" {
			name := info.Name
			groupName = &name
		}
	}

	senderName := n.resolveSenderName(ctx, raw.SenderID, messageID)

	var mediaFilename *string
	if raw.HasMedia {
		mctx, cancel := context.WithTimeout(ctx, n.mediaTimeout)
		media, err := n.resolver.DownloadMedia(mctx, raw.MessageID)
		cancel()
		if err != nil || media == nil {
			n.logger.Warn("could not download media",
				zap.String("message_id", messageID), zap.Error(err))
		} else {
			name := MediaFilename(messageID, media.Mimetype)
			mediaFilename = &name
		}
	}

	return &store.Message{
		MessageID:     messageID,
		SenderID:      raw.SenderID,
		SenderName:    senderName,
		Body:          raw.Body,
		MessageType:   classifyType(raw.Type),
		Timestamp:     raw.Timestamp,
		IsGroup:       isGroup,
		GroupName:     groupName,
		FromMe:        raw.FromMe,
		HasMedia:      raw.HasMedia,
		MediaFilename: mediaFilename,
	}
}

// resolveSenderName applies the display name precedence:
// contact name, push name, contact number, raw sender id.
func (n *Normalizer) resolveSenderName(ctx context.Context, senderID, messageID string) string {
	lctx, cancel := context.WithTimeout(ctx, n.lookupTimeout)
	contact, err := n.resolver.GetContact(lctx, senderID)
	cancel()
	if err != nil {
		n.logger.Warn("could not fetch contact info",
			zap.String("message_id", messageID), zap.Error(err))
		return senderID
	}
	if contact == nil {
		return senderID
	}
	for _, candidate := range []string{contact.Name, contact.PushName, contact.Number} {
		if candidate != "" {
			return candidate
		}
	}
	return senderID
}

// MediaFilename derives the deterministic filename reference for a media
// message from its id and the resolved MIME subtype.
func MediaFilename(messageID, mimetype string) string {
	subtype := "bin"
	if _, after, found := strings.Cut(mimetype, "/"); found {
		// Drop any mime parameters ("ogg; codecs=opus").
		if sub, _, _ := strings.Cut(after, ";"); sub != "" {
			subtype = strings.TrimSpace(sub)
		}
	}
	return fmt.Sprintf("media_%s.%s", messageID, subtype)
}

// classifyType folds the platform's message type tag into the canonical enum.
func classifyType(platformType string) string {
	switch platformType {
	case "chat", "text", "extended_text":
		return store.TypeText
	case "image", "video", "audio", "ptt", "document", "sticker":
		return store.TypeMedia
	default:
		return store.TypeOther
	}
}
