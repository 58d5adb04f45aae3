package service

import (
	"context"
	"promo-redemption/internal/model"
	"promo-redemption/internal/repository"
	"promo-redemption/pkg/apperrors"
	"time"
)

// PromoCodeService handles creation and lookup of promo codes
type PromoCodeService struct {
	promoRepo repository.PromoCodeRepository
}

// NewPromoCodeService creates a new promo code service
func NewPromoCodeService(promoRepo repository.PromoCodeRepository) *PromoCodeService {
	return &PromoCodeService{promoRepo: promoRepo}
}

// CreatePromoCode creates a promo code with a zero usage counter
func (s *PromoCodeService) CreatePromoCode(ctx context.Context, req *model.CreatePromoCodeRequest) (*model.PromoCode, error) {
	code := model.NormalizeCode(req.Code)
	if code == "" {
		return nil, apperrors.InvalidArgument("code is required")
	}
	if req.DiscountPercent < 0 || req.DiscountPercent > 100 {
		return nil, apperrors.InvalidArgument("discountPercent must be between 0 and 100")
	}
	if req.TotalLimit < 0 || req.PerUserLimit < 0 {
		return nil, apperrors.InvalidArgument("limits must not be negative")
	}
	if req.StartsAt != nil && req.EndsAt != nil && req.EndsAt.Before(*req.StartsAt) {
		return nil, apperrors.InvalidArgument("endsAt must not be before startsAt")
	}

	isActive := true
	if req.IsActive != nil {
		isActive = *req.IsActive
	}

	now := time.Now().UTC()
	promo := &model.PromoCode{
		Code:            code,
		DiscountPercent: req.DiscountPercent,
		TotalLimit:      req.TotalLimit,
		PerUserLimit:    req.PerUserLimit,
		UsedCount:       0,
		IsActive:        isActive,
		StartsAt:        req.StartsAt,
		EndsAt:          req.EndsAt,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := s.promoRepo.CreatePromoCode(ctx, promo); err != nil {
		return nil, err
	}

	return promo, nil
}

// GetPromoCode retrieves a promo code including its current usage count
func (s *PromoCodeService) GetPromoCode(ctx context.Context, code string) (*model.PromoCode, error) {
	return s.promoRepo.FindByCode(ctx, code)
}
