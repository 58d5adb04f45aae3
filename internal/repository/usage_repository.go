package repository

import (
	"context"
	"promo-redemption/internal/model"
)

// UsageReader answers per-user usage questions from the analytics read model.
// The read model is eventually consistent with committed redemptions.
type UsageReader interface {
	GetUserPromoCodeUsageCount(ctx context.Context, userID, promoCodeID string) (int64, error)
}

// UsageWriter materializes redemption events into the read model
type UsageWriter interface {
	// RecordUsage stores usage idempotently. inserted is false when the
	// (order, promo code) pair was already recorded.
	RecordUsage(ctx context.Context, usage *model.PromoCodeUsage) (inserted bool, err error)
}

// UsageCacheInvalidator drops cached usage counts after new usage is recorded
type UsageCacheInvalidator interface {
	Invalidate(ctx context.Context, userID, promoCodeID string) error
}
