package model

import (
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// PromoCode represents a promo code in the system
type PromoCode struct {
	ID              primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	Code            string             `bson:"code" json:"code"`                         // upper-case, unique
	DiscountPercent int32              `bson:"discount_percent" json:"discountPercent"` // 0-100
	TotalLimit      int64              `bson:"total_limit" json:"totalLimit"`
	PerUserLimit    int64              `bson:"per_user_limit" json:"perUserLimit"`
	UsedCount       int64              `bson:"used_count" json:"usedCount"` // only changed by the conditional increment
	IsActive        bool               `bson:"is_active" json:"isActive"`
	StartsAt        *time.Time         `bson:"starts_at,omitempty" json:"startsAt,omitempty"`
	EndsAt          *time.Time         `bson:"ends_at,omitempty" json:"endsAt,omitempty"`
	CreatedAt       time.Time          `bson:"created_at" json:"createdAt"`
	UpdatedAt       time.Time          `bson:"updated_at" json:"updatedAt"`
}

// NormalizeCode returns the stored form of a promo code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// WithinWindow reports whether t falls inside [StartsAt, EndsAt]. Unset bounds are open.
func (p *PromoCode) WithinWindow(t time.Time) bool {
	if p.StartsAt != nil && t.Before(*p.StartsAt) {
		return false
	}
	if p.EndsAt != nil && t.After(*p.EndsAt) {
		return false
	}
	return true
}

// CreatePromoCodeRequest represents the request to create a promo code
type CreatePromoCodeRequest struct {
	Code            string     `json:"code" binding:"required"`
	DiscountPercent int32      `json:"discountPercent" binding:"min=0,max=100"`
	TotalLimit      int64      `json:"totalLimit" binding:"min=0"`
	PerUserLimit    int64      `json:"perUserLimit" binding:"min=0"`
	IsActive        *bool      `json:"isActive"`
	StartsAt        *time.Time `json:"startsAt"`
	EndsAt          *time.Time `json:"endsAt"`
}

// ApplyPromoCodeRequest represents the request to redeem a promo code against an order
type ApplyPromoCodeRequest struct {
	OrderID     string  `json:"orderId" binding:"required"`
	PromoCode   string  `json:"promoCode" binding:"required"`
	UserID      string  `json:"userId" binding:"required"`
	OrderAmount float64 `json:"orderAmount"`
}

// ApplyPromoCodeResult is the outcome of a successful redemption. It is not persisted.
type ApplyPromoCodeResult struct {
	DiscountAmount float64 `json:"discountAmount"`
	FinalAmount    float64 `json:"finalAmount"`
	PromoCode      string  `json:"promoCode"`
}
