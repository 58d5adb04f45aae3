package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Order represents a customer order. PromoCodeID and DiscountAmount are set
// at most once, by a redemption.
type Order struct {
	ID             primitive.ObjectID  `bson:"_id,omitempty" json:"id,omitempty"`
	UserID         string              `bson:"user_id" json:"userId"`
	Amount         float64             `bson:"amount" json:"amount"`
	PromoCodeID    *primitive.ObjectID `bson:"promo_code_id,omitempty" json:"promoCodeId,omitempty"`
	DiscountAmount *float64            `bson:"discount_amount,omitempty" json:"discountAmount,omitempty"`
	CreatedAt      time.Time           `bson:"created_at" json:"createdAt"`
	UpdatedAt      time.Time           `bson:"updated_at" json:"updatedAt"`
}

// HasPromoCode reports whether a promo code was already applied.
func (o *Order) HasPromoCode() bool {
	return o.PromoCodeID != nil
}

// CreateOrderRequest represents the request to create an order
type CreateOrderRequest struct {
	UserID string  `json:"userId" binding:"required"`
	Amount float64 `json:"amount" binding:"min=0"`
}
