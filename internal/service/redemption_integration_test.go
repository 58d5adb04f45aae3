//go:build integration

package service

import (
	"context"
	"errors"
	"fmt"
	"promo-redemption/internal/model"
	"promo-redemption/internal/repository"
	"promo-redemption/pkg/apperrors"
	"promo-redemption/pkg/config"
	"promo-redemption/pkg/database"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// These tests need a MongoDB replica set, since transactions are not
// available on a standalone server:
//
//	MONGO_URI="mongodb://localhost:27017/?replicaSet=rs0" go test -tags integration ./internal/service/
var (
	testMongoURI = config.GetEnv("MONGO_URI", "mongodb://localhost:27017/?replicaSet=rs0")
	testDBName   = config.GetEnv("MONGO_DB", "promo_redemption_test")
)

type countingPublisher struct {
	published atomic.Int64
}

func (p *countingPublisher) Publish(context.Context, *model.PromoCodeAppliedEvent) error {
	p.published.Add(1)
	return nil
}

type integrationEnv struct {
	promoRepo repository.PromoCodeRepository
	orderRepo repository.OrderRepository
	publisher *countingPublisher
	svc       *RedemptionService
}

// setupTestDatabase cleans the test database and wires the service against it
func setupTestDatabase(t *testing.T) *integrationEnv {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	mongoDB, err := database.Connect(ctx, testMongoURI, testDBName)
	if err != nil {
		t.Skipf("MongoDB not reachable at %s: %v", testMongoURI, err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		mongoDB.Disconnect(ctx)
	})

	collections := []string{
		database.PromoCodesCollection,
		database.OrdersCollection,
		database.PromoCodeUsagesCollection,
		database.PromoCodeStatsCollection,
	}
	for _, name := range collections {
		if err := mongoDB.Database.Collection(name).Drop(ctx); err != nil {
			t.Logf("Warning: failed to drop collection %s: %v", name, err)
		}
	}
	require.NoError(t, mongoDB.CreateIndexes(ctx))

	env := &integrationEnv{
		promoRepo: repository.NewPromoCodeRepository(mongoDB.Database),
		orderRepo: repository.NewOrderRepository(mongoDB.Database),
		publisher: &countingPublisher{},
	}
	env.svc = NewRedemptionService(
		database.NewUnitOfWork(mongoDB.Client, 5*time.Second),
		env.promoRepo,
		env.orderRepo,
		repository.NewUsageRepository(mongoDB.Database),
		env.publisher,
	)
	return env
}

func (e *integrationEnv) seedPromo(t *testing.T, code string, totalLimit, perUserLimit int64) *model.PromoCode {
	t.Helper()
	promo := &model.PromoCode{
		Code:            code,
		DiscountPercent: 20,
		TotalLimit:      totalLimit,
		PerUserLimit:    perUserLimit,
		IsActive:        true,
		CreatedAt:       time.Now(),
		UpdatedAt:       time.Now(),
	}
	require.NoError(t, e.promoRepo.CreatePromoCode(context.Background(), promo))
	return promo
}

func (e *integrationEnv) seedOrder(t *testing.T, userID string) *model.Order {
	t.Helper()
	order := &model.Order{UserID: userID, Amount: 500, CreatedAt: time.Now(), UpdatedAt: time.Now()}
	require.NoError(t, e.orderRepo.CreateOrder(context.Background(), order))
	return order
}

// TestFlashSaleAttack: 50 concurrent redemptions for a code capped at 5.
// Exactly 5 succeed and used_count stops at 5.
func TestFlashSaleAttack(t *testing.T) {
	env := setupTestDatabase(t)

	const (
		concurrentRequests = 50
		expectedSuccess    = 5
	)
	env.seedPromo(t, "FLASH_SALE_2026", expectedSuccess, 1)

	orders := make([]*model.Order, concurrentRequests)
	for i := range orders {
		orders[i] = env.seedOrder(t, fmt.Sprintf("user_%d", i))
	}

	var (
		successCount int64
		raceCount    int64
		otherErrors  int64
		wg           sync.WaitGroup
	)

	for _, order := range orders {
		wg.Add(1)
		go func(order *model.Order) {
			defer wg.Done()
			_, err := env.svc.Apply(context.Background(), applyRequest(order, "FLASH_SALE_2026"))
			switch {
			case err == nil:
				atomic.AddInt64(&successCount, 1)
			case errors.Is(err, apperrors.ErrTotalLimitRace):
				atomic.AddInt64(&raceCount, 1)
			default:
				t.Logf("unexpected error: %v", err)
				atomic.AddInt64(&otherErrors, 1)
			}
		}(order)
	}
	wg.Wait()

	promo, err := env.promoRepo.FindByCode(context.Background(), "FLASH_SALE_2026")
	require.NoError(t, err)

	assert.Equal(t, int64(expectedSuccess), successCount)
	assert.Equal(t, int64(concurrentRequests-expectedSuccess), raceCount)
	assert.Zero(t, otherErrors)
	assert.Equal(t, int64(expectedSuccess), promo.UsedCount)
	assert.Equal(t, int64(expectedSuccess), env.publisher.published.Load())
}

// TestDoubleDipAttack: 10 concurrent redemptions against the same order.
// Exactly one applies; the counter moves once.
func TestDoubleDipAttack(t *testing.T) {
	env := setupTestDatabase(t)

	const concurrentRequests = 10
	env.seedPromo(t, "PROMO_SUPER", 100, 100)
	order := env.seedOrder(t, "double_dip_user_123")

	var (
		successCount  int64
		conflictCount int64
		otherErrors   int64
		wg            sync.WaitGroup
	)

	for i := 0; i < concurrentRequests; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.svc.Apply(context.Background(), applyRequest(order, "PROMO_SUPER"))
			switch {
			case err == nil:
				atomic.AddInt64(&successCount, 1)
			case errors.Is(err, apperrors.ErrPromoCodeAlreadyApplied):
				atomic.AddInt64(&conflictCount, 1)
			default:
				t.Logf("unexpected error: %v", err)
				atomic.AddInt64(&otherErrors, 1)
			}
		}()
	}
	wg.Wait()

	promo, err := env.promoRepo.FindByCode(context.Background(), "PROMO_SUPER")
	require.NoError(t, err)
	stored, err := env.orderRepo.GetOrder(context.Background(), order.ID)
	require.NoError(t, err)

	assert.Equal(t, int64(1), successCount)
	assert.Equal(t, int64(concurrentRequests-1), conflictCount)
	assert.Zero(t, otherErrors)
	assert.Equal(t, int64(1), promo.UsedCount)
	require.NotNil(t, stored.DiscountAmount)
	assert.Equal(t, float64(100), *stored.DiscountAmount)
}
