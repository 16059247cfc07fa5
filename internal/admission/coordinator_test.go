package admission

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"vyvoz/internal/ledger"
	"vyvoz/internal/models"
	"vyvoz/internal/schedule"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	store *ledger.FileStore
	clock *schedule.FakeClock
	coord *Coordinator
}

func newTestEnv(t *testing.T, capacity int) *testEnv {
	t.Helper()
	logger := zerolog.Nop()

	store, err := ledger.NewFileStore(filepath.Join(t.TempDir(), "orders.csv"), &logger)
	require.NoError(t, err)

	loc, err := time.LoadLocation("Europe/Moscow")
	require.NoError(t, err)
	clock := schedule.NewFakeClock(time.Date(2025, 3, 10, 9, 15, 0, 0, loc))

	alloc := schedule.NewAllocator(store, schedule.Config{Location: loc, FirstHour: 8, LastHour: 20, Capacity: capacity})
	return &testEnv{
		store: store,
		clock: clock,
		coord: NewCoordinator(store, alloc, clock, 10*time.Second, &logger),
	}
}

func readyConversation(userID int64, slot string) *models.Conversation {
	conv := models.NewConversation(userID, userID)
	conv.State = models.StatePaymentProofCollected
	conv.Product = "one_bag"
	conv.Transfer = models.TransferDoor
	conv.Date = "10.03.2025"
	conv.TimeSlot = slot
	conv.Address = "ул. Пушкина, дом 3"
	conv.Photos = []string{"trash"}
	conv.PaymentProof = "proof"
	return conv
}

func TestFinalize_Success(t *testing.T) {
	env := newTestEnv(t, 15)
	conv := readyConversation(1, "11:00")

	order, err := env.coord.Finalize(context.Background(), conv)
	require.NoError(t, err)

	assert.NotEmpty(t, order.ID)
	assert.Equal(t, conv.OrderID, order.ID)
	assert.Equal(t, models.StatusPendingConfirmation, order.Status)
	assert.Equal(t, "11:00", order.TimeSlot)
	assert.True(t, conv.Finalized)
	assert.Equal(t, models.StateFinalized, conv.State)

	stored, err := env.store.Order(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, "proof", stored.PaymentProof)
}

func TestFinalize_CapacityNeverExceeded(t *testing.T) {
	const capacity = 15
	env := newTestEnv(t, capacity)

	const attempts = 40
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		success  int
		slotFull int
	)
	wg.Add(attempts)
	for i := 0; i < attempts; i++ {
		go func(i int) {
			defer wg.Done()
			conv := readyConversation(int64(i+1), "12:00")
			_, err := env.coord.Finalize(context.Background(), conv)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				success++
			case errors.Is(err, ErrSlotFull):
				slotFull++
				assert.Equal(t, models.StateTimeChosen, conv.State)
				assert.Empty(t, conv.TimeSlot)
				assert.False(t, conv.Finalized)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, capacity, success)
	assert.Equal(t, attempts-capacity, slotFull)

	occ, err := env.store.Occupancy(context.Background(), "10.03.2025")
	require.NoError(t, err)
	assert.Equal(t, capacity, occ["12:00"])
	assert.Equal(t, 0, env.coord.locks.size())
}

func TestFinalize_SixteenthAttemptGetsSlotFull(t *testing.T) {
	env := newTestEnv(t, 15)
	ctx := context.Background()

	for i := 0; i < 15; i++ {
		_, err := env.coord.Finalize(ctx, readyConversation(int64(i+1), "13:00"))
		require.NoError(t, err)
	}

	conv := readyConversation(99, "13:00")
	_, err := env.coord.Finalize(ctx, conv)
	assert.ErrorIs(t, err, ErrSlotFull)
	assert.Equal(t, models.StateTimeChosen, conv.State)

	// в другом интервале место есть
	conv.TimeSlot = "14:00"
	conv.State = models.StatePaymentProofCollected
	_, err = env.coord.Finalize(ctx, conv)
	assert.NoError(t, err)
}

func TestFinalize_CancelledOrderFreesSeat(t *testing.T) {
	env := newTestEnv(t, 1)
	ctx := context.Background()

	first, err := env.coord.Finalize(ctx, readyConversation(1, "15:00"))
	require.NoError(t, err)

	_, err = env.coord.Finalize(ctx, readyConversation(2, "15:00"))
	require.ErrorIs(t, err, ErrSlotFull)

	require.NoError(t, env.store.Append(ctx, first.WithStatus(models.StatusCancelled, env.clock.Now())))

	_, err = env.coord.Finalize(ctx, readyConversation(3, "15:00"))
	assert.NoError(t, err)
}

func TestFinalize_DuplicateCreatesSingleRecord(t *testing.T) {
	env := newTestEnv(t, 15)
	ctx := context.Background()

	conv := readyConversation(1, "16:00")
	conv.OrderID = "order-1"
	redelivered := conv.Clone()

	_, err := env.coord.Finalize(ctx, conv)
	require.NoError(t, err)

	// повтор после сбоя сохранения диалога: тот же OrderID, флаг не выставлен
	order, err := env.coord.Finalize(ctx, redelivered)
	assert.ErrorIs(t, err, ErrAlreadyFinalized)
	require.NotNil(t, order)
	assert.Equal(t, "order-1", order.ID)
	assert.True(t, redelivered.Finalized)

	// повтор на уже завершённом диалоге
	order, err = env.coord.Finalize(ctx, conv)
	assert.ErrorIs(t, err, ErrAlreadyFinalized)
	assert.Nil(t, order)

	entries, err := env.store.Entries(ctx)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestFinalize_ManualReviewSkipsCapacity(t *testing.T) {
	env := newTestEnv(t, 1)
	ctx := context.Background()

	conv := models.NewConversation(5, 5)
	conv.State = models.StatePhotosCollected
	conv.Product = "bulk"
	conv.Date = "10.03.2025"
	conv.Description = "Старый диван, ул. Гагарина 7, подъезд 2"
	conv.Photos = []string{"p1", "p2"}

	order, err := env.coord.Finalize(ctx, conv)
	require.NoError(t, err)
	assert.Equal(t, models.StatusManualReview, order.Status)
	assert.True(t, order.IsManual())
	assert.Equal(t, conv.Description, order.Address)

	occ, err := env.store.Occupancy(ctx, "10.03.2025")
	require.NoError(t, err)
	assert.Empty(t, occ)
}

func TestFinalize_ManualReviewDatedByFinalizeDay(t *testing.T) {
	env := newTestEnv(t, 15)
	ctx := context.Background()

	// описание получено вечером, последнее фото уже после полуночи
	conv := models.NewConversation(6, 6)
	conv.State = models.StatePhotosCollected
	conv.Product = "bulk"
	conv.Date = "10.03.2025"
	conv.Description = "Старый шкаф, ул. Гагарина 7, подъезд 2"
	conv.Photos = []string{"p1", "p2"}
	env.clock.Set(time.Date(2025, 3, 11, 0, 5, 0, 0, env.clock.Now().Location()))

	order, err := env.coord.Finalize(ctx, conv)
	require.NoError(t, err)
	assert.Equal(t, "11.03.2025", order.Date)
	assert.Equal(t, "11.03.2025", conv.Date)

	orders, err := env.store.Orders(ctx, "11.03.2025")
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, order.ID, orders[0].ID)

	orders, err = env.store.Orders(ctx, "10.03.2025")
	require.NoError(t, err)
	assert.Empty(t, orders)
}

func TestFinalize_NotReady(t *testing.T) {
	env := newTestEnv(t, 15)

	conv := readyConversation(1, "11:00")
	conv.State = models.StateAddressCollected
	_, err := env.coord.Finalize(context.Background(), conv)
	assert.ErrorIs(t, err, ErrNotReady)

	conv = readyConversation(1, "")
	_, err = env.coord.Finalize(context.Background(), conv)
	assert.ErrorIs(t, err, ErrNotReady)
}

func TestFinalize_PastSlotIsFull(t *testing.T) {
	env := newTestEnv(t, 15)
	env.clock.Advance(3 * time.Hour) // 12:15

	conv := readyConversation(1, "11:00")
	_, err := env.coord.Finalize(context.Background(), conv)
	assert.ErrorIs(t, err, ErrSlotFull)
}

func TestFinalize_DateRolledOver(t *testing.T) {
	env := newTestEnv(t, 15)
	env.clock.Advance(48 * time.Hour)

	_, err := env.coord.Finalize(context.Background(), readyConversation(1, "11:00"))
	var invalid *schedule.InvalidDateError
	assert.ErrorAs(t, err, &invalid)
}

type failingStore struct {
	appendErr error
	orderErr  error
}

func (f *failingStore) Append(context.Context, models.Order) error { return f.appendErr }

func (f *failingStore) Order(context.Context, string) (*models.Order, error) {
	if f.orderErr != nil {
		return nil, f.orderErr
	}
	return nil, ledger.ErrOrderNotFound
}

type staticCapacity int

func (s staticCapacity) Days(now time.Time) (string, string) {
	return now.Format(models.DateLayout), now.AddDate(0, 0, 1).Format(models.DateLayout)
}

func (s staticCapacity) Remaining(context.Context, string, string, time.Time) (int, error) {
	return int(s), nil
}

func TestFinalize_PersistenceErrorLeavesConversation(t *testing.T) {
	logger := zerolog.Nop()
	store := &failingStore{appendErr: errors.New("disk full")}
	coord := NewCoordinator(store, staticCapacity(5), schedule.NewFakeClock(time.Now()), time.Second, &logger)

	conv := readyConversation(1, "11:00")
	_, err := coord.Finalize(context.Background(), conv)
	assert.ErrorIs(t, err, ErrPersistence)
	assert.Equal(t, models.StatePaymentProofCollected, conv.State)
	assert.Equal(t, "11:00", conv.TimeSlot)
	assert.False(t, conv.Finalized)
	assert.NotEmpty(t, conv.OrderID)

	store.orderErr = errors.New("read failed")
	_, err = coord.Finalize(context.Background(), conv)
	assert.ErrorIs(t, err, ErrPersistence)
}

func TestFinalize_LockTimeout(t *testing.T) {
	logger := zerolog.Nop()
	coord := NewCoordinator(&failingStore{}, staticCapacity(5), schedule.NewFakeClock(time.Now()), 50*time.Millisecond, &logger)

	conv := readyConversation(1, "11:00")
	unlock, err := coord.locks.acquire(context.Background(), conv.Date+"|"+conv.TimeSlot)
	require.NoError(t, err)
	defer unlock()

	_, err = coord.Finalize(context.Background(), conv)
	assert.ErrorIs(t, err, ErrBusy)
	assert.False(t, conv.Finalized)
}

func TestKeyedLocks_Independent(t *testing.T) {
	locks := newKeyedLocks()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	unlockA, err := locks.acquire(ctx, "a")
	require.NoError(t, err)
	unlockB, err := locks.acquire(ctx, "b")
	require.NoError(t, err)

	unlockA()
	unlockA()
	unlockB()
	assert.Equal(t, 0, locks.size())

	for i := 0; i < 3; i++ {
		unlock, err := locks.acquire(ctx, fmt.Sprintf("k%d", i))
		require.NoError(t, err)
		unlock()
	}
	assert.Equal(t, 0, locks.size())
}
