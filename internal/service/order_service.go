package service

import (
	"context"
	"promo-redemption/internal/model"
	"promo-redemption/internal/repository"
	"promo-redemption/pkg/apperrors"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// OrderService creates and reads orders
type OrderService struct {
	orderRepo repository.OrderRepository
}

// NewOrderService creates a new order service
func NewOrderService(orderRepo repository.OrderRepository) *OrderService {
	return &OrderService{orderRepo: orderRepo}
}

// CreateOrder creates an order without a promo code
func (s *OrderService) CreateOrder(ctx context.Context, req *model.CreateOrderRequest) (*model.Order, error) {
	if strings.TrimSpace(req.UserID) == "" {
		return nil, apperrors.InvalidArgument("userId is required")
	}
	if req.Amount < 0 {
		return nil, apperrors.InvalidArgument("amount must not be negative")
	}

	now := time.Now().UTC()
	order := &model.Order{
		UserID:    req.UserID,
		Amount:    req.Amount,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.orderRepo.CreateOrder(ctx, order); err != nil {
		return nil, err
	}

	return order, nil
}

// GetOrder retrieves an order by its hex id
func (s *OrderService) GetOrder(ctx context.Context, id string) (*model.Order, error) {
	orderID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, apperrors.ErrOrderNotFound
	}
	return s.orderRepo.GetOrder(ctx, orderID)
}
