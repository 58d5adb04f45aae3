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

// mongodbOrderRepository implements OrderRepository using MongoDB
type mongodbOrderRepository struct {
	collection *mongo.Collection
}

// NewOrderRepository creates a new MongoDB-based order repository
func NewOrderRepository(db *mongo.Database) OrderRepository {
	return &mongodbOrderRepository{
		collection: db.Collection(database.OrdersCollection),
	}
}

// CreateOrder creates a new order
func (r *mongodbOrderRepository) CreateOrder(ctx context.Context, order *model.Order) error {
	if order.ID.IsZero() {
		order.ID = primitive.NewObjectID()
	}

	if _, err := r.collection.InsertOne(ctx, order); err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	return nil
}

// GetOrder retrieves an order by id
func (r *mongodbOrderRepository) GetOrder(ctx context.Context, orderID primitive.ObjectID) (*model.Order, error) {
	var order model.Order
	err := r.collection.FindOne(ctx, bson.M{"_id": orderID}).Decode(&order)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperrors.ErrOrderNotFound
		}
		return nil, fmt.Errorf("find order: %w", err)
	}

	return &order, nil
}

// ApplyPromoCode attaches a promo code and its discount to an order
func (r *mongodbOrderRepository) ApplyPromoCode(ctx context.Context, orderID, promoCodeID primitive.ObjectID, discountAmount float64) (*model.Order, error) {
	var updated model.Order
	err := r.collection.FindOneAndUpdate(
		ctx,
		bson.M{
			"_id":           orderID,
			"promo_code_id": bson.M{"$exists": false}, // No re-application
		},
		bson.M{"$set": bson.M{
			"promo_code_id":   promoCodeID,
			"discount_amount": discountAmount,
			"updated_at":      time.Now().UTC(),
		}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&updated)

	if err == nil {
		return &updated, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("apply promo code to order: %w", err)
	}

	// Either the order does not exist or it already carries a promo code
	if _, err := r.GetOrder(ctx, orderID); err != nil {
		return nil, err
	}
	return nil, apperrors.ErrPromoCodeAlreadyApplied
}
