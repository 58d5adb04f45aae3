package analytics

import (
	"context"
	"errors"
	"promo-redemption/internal/model"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryUsageWriter struct {
	mu     sync.Mutex
	usages map[string]*model.PromoCodeUsage
	err    error
}

func newMemoryUsageWriter() *memoryUsageWriter {
	return &memoryUsageWriter{usages: map[string]*model.PromoCodeUsage{}}
}

func (w *memoryUsageWriter) RecordUsage(_ context.Context, usage *model.PromoCodeUsage) (bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return false, w.err
	}
	key := usage.OrderID + "/" + usage.PromoCodeID
	if _, ok := w.usages[key]; ok {
		return false, nil
	}
	w.usages[key] = usage
	return true, nil
}

type recordingInvalidator struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (i *recordingInvalidator) Invalidate(_ context.Context, userID, promoCodeID string) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.calls = append(i.calls, userID+"/"+promoCodeID)
	return i.err
}

func appliedEvent() *model.PromoCodeAppliedEvent {
	return &model.PromoCodeAppliedEvent{
		EventID:        "evt-1",
		PromoCodeID:    "65f000000000000000000001",
		PromoCode:      "SUMMER2024",
		UserID:         "user-1",
		OrderID:        "65f000000000000000000002",
		OrderAmount:    500,
		DiscountAmount: 100,
		CreatedAt:      time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestHandleRecordsUsage(t *testing.T) {
	writer := newMemoryUsageWriter()
	invalidator := &recordingInvalidator{}
	m := NewMaterializer(writer, invalidator)

	require.NoError(t, m.Handle(context.Background(), appliedEvent()))

	usage := writer.usages["65f000000000000000000002/65f000000000000000000001"]
	require.NotNil(t, usage)
	assert.Equal(t, "user-1", usage.UserID)
	assert.Equal(t, float64(100), usage.DiscountAmount)
	assert.Equal(t, float64(500), usage.OrderAmount)
	assert.Equal(t, []string{"user-1/65f000000000000000000001"}, invalidator.calls)
}

func TestHandleIsIdempotentUnderRedelivery(t *testing.T) {
	writer := newMemoryUsageWriter()
	invalidator := &recordingInvalidator{}
	m := NewMaterializer(writer, invalidator)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, m.Handle(context.Background(), appliedEvent()))
		}()
	}
	wg.Wait()

	assert.Len(t, writer.usages, 1)
	assert.Len(t, invalidator.calls, 10)
}

func TestHandleRejectsIncompleteEvents(t *testing.T) {
	m := NewMaterializer(newMemoryUsageWriter(), nil)

	event := appliedEvent()
	event.OrderID = ""

	err := m.Handle(context.Background(), event)
	assert.ErrorIs(t, err, ErrInvalidEvent)
}

func TestHandleReturnsStoreErrors(t *testing.T) {
	writer := newMemoryUsageWriter()
	writer.err = errors.New("mongo unavailable")
	m := NewMaterializer(writer, nil)

	err := m.Handle(context.Background(), appliedEvent())
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidEvent)
}

func TestHandleToleratesCacheFailures(t *testing.T) {
	invalidator := &recordingInvalidator{err: errors.New("redis down")}
	m := NewMaterializer(newMemoryUsageWriter(), invalidator)

	assert.NoError(t, m.Handle(context.Background(), appliedEvent()))
}

// statsFailingWriter stores the row, then fails the first time as if the
// aggregate stats update had errored after the insert.
type statsFailingWriter struct {
	*memoryUsageWriter
	failed bool
}

func (w *statsFailingWriter) RecordUsage(ctx context.Context, usage *model.PromoCodeUsage) (bool, error) {
	inserted, err := w.memoryUsageWriter.RecordUsage(ctx, usage)
	if err != nil {
		return inserted, err
	}
	if !w.failed {
		w.failed = true
		return inserted, errors.New("stats update failed")
	}
	return inserted, nil
}

func TestHandleInvalidatesCacheWhenRetriedAfterPartialWrite(t *testing.T) {
	writer := &statsFailingWriter{memoryUsageWriter: newMemoryUsageWriter()}
	invalidator := &recordingInvalidator{}
	m := NewMaterializer(writer, invalidator)

	require.Error(t, m.Handle(context.Background(), appliedEvent()))
	require.NoError(t, m.Handle(context.Background(), appliedEvent()))

	assert.Len(t, writer.usages, 1)
	assert.Equal(t, []string{
		"user-1/65f000000000000000000001",
		"user-1/65f000000000000000000001",
	}, invalidator.calls)
}

func TestHandleDoesNotInvalidateWhenNothingWasWritten(t *testing.T) {
	writer := newMemoryUsageWriter()
	writer.err = errors.New("mongo unavailable")
	invalidator := &recordingInvalidator{}
	m := NewMaterializer(writer, invalidator)

	require.Error(t, m.Handle(context.Background(), appliedEvent()))
	assert.Empty(t, invalidator.calls)
}
