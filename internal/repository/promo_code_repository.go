package repository

import (
	"context"
	"promo-redemption/internal/model"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// PromoCodeRepository defines the interface for promo code data operations.
// Methods called during a redemption receive the transaction context.
type PromoCodeRepository interface {
	// CreatePromoCode creates a new promo code
	CreatePromoCode(ctx context.Context, promo *model.PromoCode) error

	// FindByCode retrieves a promo code by its normalized code
	FindByCode(ctx context.Context, code string) (*model.PromoCode, error)

	// IncrementUsageIfWithinLimit atomically increments used_count only while
	// it is below totalLimit and returns the updated promo code.
	// Returns ErrTotalLimitRace when the limit was already reached.
	IncrementUsageIfWithinLimit(ctx context.Context, promoCodeID primitive.ObjectID, totalLimit int64) (*model.PromoCode, error)
}
