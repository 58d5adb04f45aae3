package repository

import (
	"context"
	"promo-redemption/internal/model"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// OrderRepository defines the interface for order data operations
type OrderRepository interface {
	// CreateOrder creates a new order
	CreateOrder(ctx context.Context, order *model.Order) error

	// GetOrder retrieves an order by id
	GetOrder(ctx context.Context, orderID primitive.ObjectID) (*model.Order, error)

	// ApplyPromoCode sets promo_code_id and discount_amount on an order that
	// has no promo code yet and returns the updated order.
	ApplyPromoCode(ctx context.Context, orderID, promoCodeID primitive.ObjectID, discountAmount float64) (*model.Order, error)
}
