package service

import (
	"context"
	"errors"
	"promo-redemption/internal/analytics"
	"promo-redemption/internal/model"
	"promo-redemption/pkg/apperrors"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// memStore is an in-memory stand-in for the MongoDB collections. Writes made
// inside a memTransactor transaction register undo steps that run on abort.
type memStore struct {
	mu     sync.Mutex
	promos map[primitive.ObjectID]*model.PromoCode
	orders map[primitive.ObjectID]*model.Order

	// failOrderUpdate simulates a fault between the increment and the order update
	failOrderUpdate error
}

func newMemStore() *memStore {
	return &memStore{
		promos: map[primitive.ObjectID]*model.PromoCode{},
		orders: map[primitive.ObjectID]*model.Order{},
	}
}

func (s *memStore) addPromo(p *model.PromoCode) *model.PromoCode {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID.IsZero() {
		p.ID = primitive.NewObjectID()
	}
	p.Code = model.NormalizeCode(p.Code)
	s.promos[p.ID] = p
	return p
}

func (s *memStore) addOrder(userID string, amount float64) *model.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	o := &model.Order{ID: primitive.NewObjectID(), UserID: userID, Amount: amount}
	s.orders[o.ID] = o
	return o
}

func (s *memStore) usedCount(id primitive.ObjectID) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.promos[id].UsedCount
}

func (s *memStore) order(id primitive.ObjectID) model.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.orders[id]
}

type txLogKey struct{}

type txLog struct {
	mu   sync.Mutex
	undo []func()
}

func (l *txLog) add(fn func()) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.undo = append(l.undo, fn)
}

func undoFromContext(ctx context.Context) *txLog {
	log, _ := ctx.Value(txLogKey{}).(*txLog)
	return log
}

type memTransactor struct {
	store     *memStore
	commitErr error

	mu      sync.Mutex
	commits int
	aborts  int
}

func (t *memTransactor) WithTransaction(ctx context.Context, fn func(txCtx context.Context) error) error {
	log := &txLog{}
	err := fn(context.WithValue(ctx, txLogKey{}, log))
	if err == nil {
		err = t.commitErr
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if err != nil {
		t.store.mu.Lock()
		for i := len(log.undo) - 1; i >= 0; i-- {
			log.undo[i]()
		}
		t.store.mu.Unlock()
		t.aborts++
		return err
	}
	t.commits++
	return nil
}

type memPromoRepo struct {
	store *memStore
}

func (r *memPromoRepo) CreatePromoCode(_ context.Context, promo *model.PromoCode) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	promo.Code = model.NormalizeCode(promo.Code)
	for _, p := range r.store.promos {
		if p.Code == promo.Code {
			return apperrors.ErrPromoCodeAlreadyExists
		}
	}
	if promo.ID.IsZero() {
		promo.ID = primitive.NewObjectID()
	}
	r.store.promos[promo.ID] = promo
	return nil
}

func (r *memPromoRepo) FindByCode(_ context.Context, code string) (*model.PromoCode, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, p := range r.store.promos {
		if p.Code == model.NormalizeCode(code) {
			cp := *p
			return &cp, nil
		}
	}
	return nil, apperrors.ErrPromoCodeNotFound
}

// IncrementUsageIfWithinLimit checks and increments under one lock, like the
// conditional FindOneAndUpdate does in MongoDB.
func (r *memPromoRepo) IncrementUsageIfWithinLimit(ctx context.Context, id primitive.ObjectID, totalLimit int64) (*model.PromoCode, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	p, ok := r.store.promos[id]
	if !ok || p.UsedCount >= totalLimit {
		return nil, apperrors.ErrTotalLimitRace
	}
	p.UsedCount++
	if log := undoFromContext(ctx); log != nil {
		log.add(func() { p.UsedCount-- })
	}
	cp := *p
	return &cp, nil
}

type memOrderRepo struct {
	store *memStore
}

func (r *memOrderRepo) CreateOrder(_ context.Context, order *model.Order) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if order.ID.IsZero() {
		order.ID = primitive.NewObjectID()
	}
	r.store.orders[order.ID] = order
	return nil
}

func (r *memOrderRepo) GetOrder(_ context.Context, id primitive.ObjectID) (*model.Order, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	o, ok := r.store.orders[id]
	if !ok {
		return nil, apperrors.ErrOrderNotFound
	}
	cp := *o
	return &cp, nil
}

func (r *memOrderRepo) ApplyPromoCode(ctx context.Context, orderID, promoCodeID primitive.ObjectID, discountAmount float64) (*model.Order, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if r.store.failOrderUpdate != nil {
		return nil, r.store.failOrderUpdate
	}
	o, ok := r.store.orders[orderID]
	if !ok {
		return nil, apperrors.ErrOrderNotFound
	}
	if o.HasPromoCode() {
		return nil, apperrors.ErrPromoCodeAlreadyApplied
	}
	pid, discount := promoCodeID, discountAmount
	o.PromoCodeID, o.DiscountAmount = &pid, &discount
	if log := undoFromContext(ctx); log != nil {
		log.add(func() { o.PromoCodeID, o.DiscountAmount = nil, nil })
	}
	cp := *o
	return &cp, nil
}

// memUsage is the analytics read model; it is written by analytics.Materializer
type memUsage struct {
	mu      sync.Mutex
	records map[string]*model.PromoCodeUsage
	readErr error
}

func newMemUsage() *memUsage {
	return &memUsage{records: map[string]*model.PromoCodeUsage{}}
}

func (u *memUsage) GetUserPromoCodeUsageCount(_ context.Context, userID, promoCodeID string) (int64, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.readErr != nil {
		return 0, u.readErr
	}
	var n int64
	for _, r := range u.records {
		if r.UserID == userID && r.PromoCodeID == promoCodeID {
			n++
		}
	}
	return n, nil
}

func (u *memUsage) RecordUsage(_ context.Context, usage *model.PromoCodeUsage) (bool, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	key := usage.OrderID + "/" + usage.PromoCodeID
	if _, ok := u.records[key]; ok {
		return false, nil
	}
	u.records[key] = usage
	return true, nil
}

// syncPublisher records events and, when a materializer is attached,
// delivers them immediately so the read model catches up synchronously.
type syncPublisher struct {
	mu           sync.Mutex
	events       []*model.PromoCodeAppliedEvent
	err          error
	materializer *analytics.Materializer
	ctxErr       error
}

func (p *syncPublisher) Publish(ctx context.Context, event *model.PromoCodeAppliedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ctxErr = ctx.Err()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, event)
	if p.materializer != nil {
		return p.materializer.Handle(ctx, event)
	}
	return nil
}

func (p *syncPublisher) published() []*model.PromoCodeAppliedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*model.PromoCodeAppliedEvent(nil), p.events...)
}

var errInjected = errors.New("injected fault")

type fixture struct {
	store     *memStore
	tx        *memTransactor
	usage     *memUsage
	publisher *syncPublisher
	svc       *RedemptionService
	now       time.Time
}

func newFixture() *fixture {
	store := newMemStore()
	usage := newMemUsage()
	f := &fixture{
		store:     store,
		tx:        &memTransactor{store: store},
		usage:     usage,
		publisher: &syncPublisher{materializer: analytics.NewMaterializer(usage, nil)},
		now:       time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC),
	}
	f.svc = NewRedemptionService(
		f.tx,
		&memPromoRepo{store: store},
		&memOrderRepo{store: store},
		usage,
		f.publisher,
		WithClock(func() time.Time { return f.now }),
	)
	return f
}
