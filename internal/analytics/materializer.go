package analytics

import (
	"context"
	"errors"
	"fmt"
	"promo-redemption/internal/metrics"
	"promo-redemption/internal/model"
	"promo-redemption/internal/repository"
	"time"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
)

// ErrInvalidEvent marks events that can never be materialized and should be skipped
var ErrInvalidEvent = errors.New("invalid PromoCodeApplied event")

// Materializer turns PromoCodeAppliedEvents into usage read model rows.
// Deliveries are at-least-once, so Handle is idempotent per (order, promo code).
type Materializer struct {
	writer      repository.UsageWriter
	invalidator repository.UsageCacheInvalidator
	now         func() time.Time
}

// NewMaterializer creates a materializer. invalidator may be nil when no cache is configured.
func NewMaterializer(writer repository.UsageWriter, invalidator repository.UsageCacheInvalidator) *Materializer {
	return &Materializer{
		writer:      writer,
		invalidator: invalidator,
		now:         time.Now,
	}
}

// Handle records one event
func (m *Materializer) Handle(ctx context.Context, event *model.PromoCodeAppliedEvent) error {
	if event.OrderID == "" || event.PromoCodeID == "" || event.UserID == "" {
		metrics.UsageEventsTotal.WithLabelValues("invalid").Inc()
		return fmt.Errorf("%w: event %q is missing orderId, promoCodeId or userId", ErrInvalidEvent, event.EventID)
	}

	logger := zlog.Ctx(ctx).With().
		Str("event_id", event.EventID).
		Str("order_id", event.OrderID).
		Str("promo_code_id", event.PromoCodeID).
		Logger()

	inserted, err := m.writer.RecordUsage(ctx, model.UsageFromEvent(event, m.now().UTC()))

	// A row may exist even when err is set (the stats update failed after the
	// insert). Duplicates invalidate too: the first delivery may have stored the
	// row without clearing the cache, and a read-through may have repopulated it.
	if inserted || err == nil {
		m.invalidate(ctx, logger, event)
	}

	if err != nil {
		metrics.UsageEventsTotal.WithLabelValues("error").Inc()
		return err
	}

	if !inserted {
		metrics.UsageEventsTotal.WithLabelValues("duplicate").Inc()
		logger.Debug().Msg("duplicate PromoCodeApplied event ignored")
		return nil
	}
	metrics.UsageEventsTotal.WithLabelValues("inserted").Inc()

	logger.Info().Msg("promo code usage recorded")
	return nil
}

func (m *Materializer) invalidate(ctx context.Context, logger zerolog.Logger, event *model.PromoCodeAppliedEvent) {
	if m.invalidator == nil {
		return
	}
	if err := m.invalidator.Invalidate(ctx, event.UserID, event.PromoCodeID); err != nil {
		// The entry expires on its own; a stale count only delays the per-user limit
		logger.Warn().Err(err).Msg("failed to invalidate usage cache")
	}
}
