package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/matheus3301/warchive/internal/bus"
	"github.com/matheus3301/warchive/internal/store"
	"go.uber.org/zap"
)

// Pipeline runs the normalize → persist path for one session's events.
// Events are handed in sequentially by the session manager; query and status
// reads never pass through here.
type Pipeline struct {
	normalizer *Normalizer
	db         *store.DB
	bus        *bus.Bus
	logger     *zap.Logger
}

// NewPipeline creates the ingestion pipeline.
func NewPipeline(normalizer *Normalizer, db *store.DB, b *bus.Bus, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		normalizer: normalizer,
		db:         db,
		bus:        b,
		logger:     logger,
	}
}

// Process normalizes and persists one raw event. Duplicate delivery of the
// same message id is a normal outcome, logged and absorbed. Only persistence
// failures are returned.
func (p *Pipeline) Process(ctx context.Context, raw RawEvent) error {
	rec := p.normalizer.Normalize(ctx, raw)

	inserted, err := p.db.InsertMessage(rec)
	if err != nil {
		return fmt.Errorf("persist message %q: %w", rec.MessageID, err)
	}

	if !inserted {
		p.logger.Info("duplicate message ignored", zap.String("message_id", rec.MessageID))
		return nil
	}

	p.logger.Info("message stored",
		zap.String("message_id", rec.MessageID),
		zap.String("sender", rec.SenderName),
		zap.Bool("from_me", rec.FromMe))
	if p.bus != nil {
		p.bus.Publish(bus.Event{
			Kind:      "message.stored",
			Timestamp: time.Now(),
			Payload: map[string]string{
				"message_id": rec.MessageID,
				"sender_id":  rec.SenderID,
			},
		})
	}
	return nil
}
