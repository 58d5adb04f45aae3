package service

import (
	"context"
	"math"
	"promo-redemption/internal/metrics"
	"promo-redemption/internal/model"
	"promo-redemption/internal/repository"
	"promo-redemption/pkg/apperrors"
	"strings"
	"time"

	"github.com/google/uuid"
	zlog "github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const defaultPublishTimeout = 5 * time.Second

var tracer = otel.Tracer("promo-redemption/service")

// Transactor runs fn inside a transaction. fn receives the transaction
// context and must pass it to every repository call it makes.
type Transactor interface {
	WithTransaction(ctx context.Context, fn func(txCtx context.Context) error) error
}

// EventPublisher delivers PromoCodeAppliedEvents to the analytics queue
type EventPublisher interface {
	Publish(ctx context.Context, event *model.PromoCodeAppliedEvent) error
}

// RedemptionService applies promo codes to orders
type RedemptionService struct {
	tx             Transactor
	promoRepo      repository.PromoCodeRepository
	orderRepo      repository.OrderRepository
	usageReader    repository.UsageReader
	publisher      EventPublisher
	publishTimeout time.Duration
	now            func() time.Time
}

// RedemptionOption customizes a RedemptionService
type RedemptionOption func(*RedemptionService)

// WithClock overrides the clock used for validity windows and event timestamps
func WithClock(now func() time.Time) RedemptionOption {
	return func(s *RedemptionService) { s.now = now }
}

// WithPublishTimeout bounds how long a post-commit publish may take
func WithPublishTimeout(d time.Duration) RedemptionOption {
	return func(s *RedemptionService) {
		if d > 0 {
			s.publishTimeout = d
		}
	}
}

// NewRedemptionService creates a new redemption service
func NewRedemptionService(
	tx Transactor,
	promoRepo repository.PromoCodeRepository,
	orderRepo repository.OrderRepository,
	usageReader repository.UsageReader,
	publisher EventPublisher,
	opts ...RedemptionOption,
) *RedemptionService {
	s := &RedemptionService{
		tx:             tx,
		promoRepo:      promoRepo,
		orderRepo:      orderRepo,
		usageReader:    usageReader,
		publisher:      publisher,
		publishTimeout: defaultPublishTimeout,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Apply redeems a promo code against an order.
//
// Lookup, eligibility checks, the conditional usage increment and the order
// update run in one transaction. The PromoCodeAppliedEvent is published only
// after the commit succeeds; a failed publish is logged and does not fail the
// redemption.
func (s *RedemptionService) Apply(ctx context.Context, req *model.ApplyPromoCodeRequest) (*model.ApplyPromoCodeResult, error) {
	ctx, span := tracer.Start(ctx, "RedemptionService.Apply", trace.WithAttributes(
		attribute.String("promo.code", model.NormalizeCode(req.PromoCode)),
		attribute.String("order.id", req.OrderID),
		attribute.String("user.id", req.UserID),
	))
	defer span.End()

	logger := zlog.Ctx(ctx).With().
		Str("order_id", req.OrderID).
		Str("user_id", req.UserID).
		Str("promo_code", model.NormalizeCode(req.PromoCode)).
		Logger()

	start := time.Now()
	state := StateUnvalidated
	defer func() {
		if !state.Terminal() {
			logger.Error().Str("state", string(state)).Msg("redemption ended in a non-terminal state")
			state = StateFailed
		}
		metrics.RedemptionsTotal.WithLabelValues(string(state)).Inc()
		metrics.RedemptionDuration.Observe(time.Since(start).Seconds())
		span.SetAttributes(attribute.String("redemption.state", string(state)))
	}()

	orderID, err := validateApplyRequest(req)
	if err != nil {
		state = StateForError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	var (
		promo    *model.PromoCode
		discount decimal.Decimal
		final    decimal.Decimal
	)

	// The driver may re-run this function on transient transaction errors,
	// so it only assigns the captured variables. state moves to StateValid
	// once the checks and the increment pass; the commit decides the rest.
	err = s.tx.WithTransaction(ctx, func(txCtx context.Context) error {
		found, err := s.promoRepo.FindByCode(txCtx, req.PromoCode)
		if err != nil {
			return err
		}

		if err := s.checkEligibility(ctx, found, req.UserID); err != nil {
			return err
		}

		updated, err := s.promoRepo.IncrementUsageIfWithinLimit(txCtx, found.ID, found.TotalLimit)
		if err != nil {
			return err
		}
		state = StateValid

		d, f := computeDiscount(req.OrderAmount, updated.DiscountPercent)
		if _, err := s.orderRepo.ApplyPromoCode(txCtx, orderID, updated.ID, d.InexactFloat64()); err != nil {
			return err
		}

		promo, discount, final = updated, d, f
		return nil
	})
	if err != nil {
		state = StateForError(err)
		span.SetStatus(codes.Error, err.Error())
		if state == StateFailed {
			span.RecordError(err)
			logger.Error().Err(err).Msg("promo code redemption failed")
		} else {
			logger.Info().Err(err).Str("state", string(state)).Msg("promo code redemption rejected")
		}
		return nil, err
	}
	state = StateCommitted

	discountAmount := discount.InexactFloat64()
	logger.Info().
		Str("promo_code_id", promo.ID.Hex()).
		Int64("used_count", promo.UsedCount).
		Float64("discount_amount", discountAmount).
		Msg("promo code applied")

	s.publishApplied(ctx, &model.PromoCodeAppliedEvent{
		EventID:        uuid.NewString(),
		PromoCodeID:    promo.ID.Hex(),
		PromoCode:      promo.Code,
		UserID:         req.UserID,
		OrderID:        orderID.Hex(),
		OrderAmount:    req.OrderAmount,
		DiscountAmount: discountAmount,
		CreatedAt:      s.now().UTC(),
	})

	return &model.ApplyPromoCodeResult{
		DiscountAmount: discountAmount,
		FinalAmount:    final.InexactFloat64(),
		PromoCode:      promo.Code,
	}, nil
}

// checkEligibility runs the static checks in order and stops at the first failure.
func (s *RedemptionService) checkEligibility(ctx context.Context, promo *model.PromoCode, userID string) error {
	if !promo.IsActive {
		return apperrors.ErrPromoCodeInactive
	}

	if !promo.WithinWindow(s.now()) {
		return apperrors.ErrOutsideValidityWindow
	}

	// The read model lags committed redemptions, so concurrent redemptions
	// by the same user can both pass this check.
	used, err := s.usageReader.GetUserPromoCodeUsageCount(ctx, userID, promo.ID.Hex())
	if err != nil {
		return err
	}
	if used >= promo.PerUserLimit {
		return apperrors.ErrUserLimitExceeded
	}

	return nil
}

// publishApplied publishes on a context detached from the request so a
// client disconnect after commit does not drop the event.
func (s *RedemptionService) publishApplied(ctx context.Context, event *model.PromoCodeAppliedEvent) {
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.publishTimeout)
	defer cancel()

	if err := s.publisher.Publish(pubCtx, event); err != nil {
		metrics.PublishFailuresTotal.Inc()
		trace.SpanFromContext(ctx).RecordError(err)
		zlog.Ctx(ctx).Error().Err(err).
			Str("event_id", event.EventID).
			Str("order_id", event.OrderID).
			Str("promo_code_id", event.PromoCodeID).
			Msg("failed to publish PromoCodeApplied event after commit")
	}
}

// computeDiscount returns round(amount * percent / 100) and amount minus that discount.
func computeDiscount(amount float64, percent int32) (discount, final decimal.Decimal) {
	total := decimal.NewFromFloat(amount)
	discount = total.Mul(decimal.NewFromInt32(percent)).Div(decimal.NewFromInt(100)).Round(0)
	return discount, total.Sub(discount)
}

func validateApplyRequest(req *model.ApplyPromoCodeRequest) (primitive.ObjectID, error) {
	if strings.TrimSpace(req.PromoCode) == "" {
		return primitive.NilObjectID, apperrors.InvalidArgument("promoCode is required")
	}
	if strings.TrimSpace(req.UserID) == "" {
		return primitive.NilObjectID, apperrors.InvalidArgument("userId is required")
	}
	if math.IsNaN(req.OrderAmount) || math.IsInf(req.OrderAmount, 0) || req.OrderAmount < 0 {
		return primitive.NilObjectID, apperrors.InvalidArgument("orderAmount must be a non-negative number")
	}

	orderID, err := primitive.ObjectIDFromHex(req.OrderID)
	if err != nil {
		return primitive.NilObjectID, apperrors.InvalidArgument("orderId %q is not a valid id", req.OrderID)
	}

	return orderID, nil
}
