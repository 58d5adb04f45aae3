package repository

import (
	"context"
	"errors"
	"fmt"
	"promo-redemption/internal/model"
	"promo-redemption/pkg/apperrors"
	"promo-redemption/pkg/database"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// mongodbPromoCodeRepository implements PromoCodeRepository using MongoDB
type mongodbPromoCodeRepository struct {
	collection *mongo.Collection
}

// NewPromoCodeRepository creates a new MongoDB-based promo code repository
func NewPromoCodeRepository(db *mongo.Database) PromoCodeRepository {
	return &mongodbPromoCodeRepository{
		collection: db.Collection(database.PromoCodesCollection),
	}
}

// CreatePromoCode creates a new promo code
func (r *mongodbPromoCodeRepository) CreatePromoCode(ctx context.Context, promo *model.PromoCode) error {
	if promo.ID.IsZero() {
		promo.ID = primitive.NewObjectID()
	}
	promo.Code = model.NormalizeCode(promo.Code)

	_, err := r.collection.InsertOne(ctx, promo)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return apperrors.ErrPromoCodeAlreadyExists
		}
		return fmt.Errorf("insert promo code: %w", err)
	}

	return nil
}

// FindByCode retrieves a promo code by its code, case-insensitively
func (r *mongodbPromoCodeRepository) FindByCode(ctx context.Context, code string) (*model.PromoCode, error) {
	var promo model.PromoCode
	err := r.collection.FindOne(ctx, bson.M{"code": model.NormalizeCode(code)}).Decode(&promo)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperrors.ErrPromoCodeNotFound
		}
		return nil, fmt.Errorf("find promo code: %w", err)
	}

	return &promo, nil
}

// IncrementUsageIfWithinLimit atomically increments the usage counter of a promo code
func (r *mongodbPromoCodeRepository) IncrementUsageIfWithinLimit(ctx context.Context, promoCodeID primitive.ObjectID, totalLimit int64) (*model.PromoCode, error) {
	var updated model.PromoCode
	err := r.collection.FindOneAndUpdate(
		ctx,
		bson.M{
			"_id":        promoCodeID,
			"used_count": bson.M{"$lt": totalLimit}, // Only update while below the cap
		},
		bson.M{
			"$inc": bson.M{"used_count": 1},
			"$set": bson.M{"updated_at": time.Now().UTC()},
		},
		options.FindOneAndUpdate().
			SetReturnDocument(options.After).
			SetUpsert(false),
	).Decode(&updated)

	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperrors.ErrTotalLimitRace
		}
		return nil, fmt.Errorf("increment promo code usage: %w", err)
	}

	return &updated, nil
}
