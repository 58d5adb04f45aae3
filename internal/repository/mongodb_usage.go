package repository

import (
	"context"
	"fmt"
	"promo-redemption/internal/model"
	"promo-redemption/pkg/database"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoUsageRepository stores the promo code usage read model in MongoDB.
// It implements both UsageReader and UsageWriter.
type MongoUsageRepository struct {
	usages *mongo.Collection
	stats  *mongo.Collection
}

// NewUsageRepository creates a new MongoDB-based usage repository
func NewUsageRepository(db *mongo.Database) *MongoUsageRepository {
	return &MongoUsageRepository{
		usages: db.Collection(database.PromoCodeUsagesCollection),
		stats:  db.Collection(database.PromoCodeStatsCollection),
	}
}

// GetUserPromoCodeUsageCount counts how many times a user redeemed a promo code
func (r *MongoUsageRepository) GetUserPromoCodeUsageCount(ctx context.Context, userID, promoCodeID string) (int64, error) {
	count, err := r.usages.CountDocuments(ctx, bson.M{
		"user_id":       userID,
		"promo_code_id": promoCodeID,
	})
	if err != nil {
		return 0, fmt.Errorf("count promo code usage: %w", err)
	}

	return count, nil
}

// RecordUsage upserts a usage row keyed by (order_id, promo_code_id) and
// bumps the per-code aggregate only for first deliveries
func (r *MongoUsageRepository) RecordUsage(ctx context.Context, usage *model.PromoCodeUsage) (bool, error) {
	res, err := r.usages.UpdateOne(
		ctx,
		bson.M{
			"order_id":      usage.OrderID,
			"promo_code_id": usage.PromoCodeID,
		},
		bson.M{"$setOnInsert": usage},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		// Two deliveries racing on the unique index: the other one won
		if mongo.IsDuplicateKeyError(err) {
			return false, nil
		}
		return false, fmt.Errorf("record promo code usage: %w", err)
	}
	if res.UpsertedCount == 0 {
		return false, nil
	}

	_, err = r.stats.UpdateOne(
		ctx,
		bson.M{"_id": usage.PromoCodeID},
		bson.M{
			"$inc": bson.M{
				"redemptions":           1,
				"total_discount_amount": usage.DiscountAmount,
				"total_order_amount":    usage.OrderAmount,
			},
			"$set":         bson.M{"last_redeemed_at": usage.RedeemedAt, "updated_at": time.Now().UTC()},
			"$setOnInsert": bson.M{"promo_code": usage.PromoCode},
		},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return true, fmt.Errorf("update promo code stats: %w", err)
	}

	return true, nil
}
