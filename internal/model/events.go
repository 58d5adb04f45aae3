package model

import "time"

// EventTypePromoCodeApplied names the PromoCodeAppliedEvent on the wire.
const EventTypePromoCodeApplied = "PromoCodeApplied"

// PromoCodeAppliedEvent is published once per committed redemption.
// Consumers deduplicate on (OrderID, PromoCodeID).
type PromoCodeAppliedEvent struct {
	EventID        string    `json:"eventId"`
	PromoCodeID    string    `json:"promoCodeId"`
	PromoCode      string    `json:"promoCode"`
	UserID         string    `json:"userId"`
	OrderID        string    `json:"orderId"`
	OrderAmount    float64   `json:"orderAmount"`
	DiscountAmount float64   `json:"discountAmount"`
	CreatedAt      time.Time `json:"createdAt"`
}

// PromoCodeUsage is the analytics read model row materialized from a
// PromoCodeAppliedEvent.
type PromoCodeUsage struct {
	OrderID        string    `bson:"order_id" json:"orderId"`
	PromoCodeID    string    `bson:"promo_code_id" json:"promoCodeId"`
	PromoCode      string    `bson:"promo_code" json:"promoCode"`
	UserID         string    `bson:"user_id" json:"userId"`
	OrderAmount    float64   `bson:"order_amount" json:"orderAmount"`
	DiscountAmount float64   `bson:"discount_amount" json:"discountAmount"`
	EventID        string    `bson:"event_id" json:"eventId"`
	RedeemedAt     time.Time `bson:"redeemed_at" json:"redeemedAt"`
	RecordedAt     time.Time `bson:"recorded_at" json:"recordedAt"`
}

// UsageFromEvent converts an applied event into its read model row.
func UsageFromEvent(e *PromoCodeAppliedEvent, recordedAt time.Time) *PromoCodeUsage {
	return &PromoCodeUsage{
		OrderID:        e.OrderID,
		PromoCodeID:    e.PromoCodeID,
		PromoCode:      e.PromoCode,
		UserID:         e.UserID,
		OrderAmount:    e.OrderAmount,
		DiscountAmount: e.DiscountAmount,
		EventID:        e.EventID,
		RedeemedAt:     e.CreatedAt,
		RecordedAt:     recordedAt,
	}
}
