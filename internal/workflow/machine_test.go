package workflow

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"vyvoz/internal/admission"
	"vyvoz/internal/ledger"
	"vyvoz/internal/models"
	"vyvoz/internal/schedule"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testUser  = int64(501)
	adminChat = int64(-1001)
)

var testCatalog = models.Catalog{
	{ID: "one_bag", Name: "🧺 Один пакет мусора", Price: 100},
	{ID: "few_bags", Name: "🗑️ 2-3 пакета мусора", Price: 200},
	{ID: "bulk", Name: "🛢 Крупный мусор", Price: 400, Bulk: true},
}

type memoryStore struct {
	mu      sync.Mutex
	convs   map[int64]*models.Conversation
	saveErr error
	saves   int
	failOn  int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{convs: make(map[int64]*models.Conversation)}
}

func (s *memoryStore) GetConversation(_ context.Context, userID int64) (*models.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.convs[userID].Clone(), nil
}

func (s *memoryStore) SaveConversation(_ context.Context, conv *models.Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saves++
	if s.failOn > 0 && s.saves == s.failOn {
		return errors.New("redis down")
	}
	if s.saveErr != nil {
		return s.saveErr
	}
	s.convs[conv.UserID] = conv.Clone()
	return nil
}

type flakyFinalizer struct {
	next  Finalizer
	fails int
}

func (f *flakyFinalizer) Finalize(ctx context.Context, conv *models.Conversation) (*models.Order, error) {
	if f.fails > 0 {
		f.fails--
		return nil, errors.New("disk full: " + admission.ErrPersistence.Error())
	}
	return f.next.Finalize(ctx, conv)
}

type harness struct {
	t         *testing.T
	store     *memoryStore
	ledger    *ledger.FileStore
	clock     *schedule.FakeClock
	finalizer *flakyFinalizer
	machine   *Machine
	msgID     int
}

func newHarness(t *testing.T, capacity int) *harness {
	t.Helper()
	logger := zerolog.Nop()

	store, err := ledger.NewFileStore(filepath.Join(t.TempDir(), "orders.csv"), &logger)
	require.NoError(t, err)

	loc, err := time.LoadLocation("Europe/Moscow")
	require.NoError(t, err)
	clock := schedule.NewFakeClock(time.Date(2025, 3, 10, 14, 30, 0, 0, loc))

	alloc := schedule.NewAllocator(store, schedule.Config{Location: loc, FirstHour: 8, LastHour: 20, Capacity: capacity})
	coord := admission.NewCoordinator(store, alloc, clock, 5*time.Second, &logger)
	finalizer := &flakyFinalizer{next: coord}
	convs := newMemoryStore()

	m := NewMachine(convs, testCatalog, alloc, finalizer, clock, Config{
		AdminChatID:      adminChat,
		AddressMinLength: 10,
		BulkMinPhotos:    2,
		PaymentPhone:     "+7 900 000-00-00",
		PaymentBank:      "Тинькофф",
		AdminContactURL:  "https://t.me/admin",
	}, &logger)

	return &harness{t: t, store: convs, ledger: store, clock: clock, finalizer: finalizer, machine: m}
}

func (h *harness) conv() *models.Conversation {
	c, _ := h.store.GetConversation(context.Background(), testUser)
	if c == nil {
		return models.NewConversation(testUser, testUser)
	}
	return c
}

func (h *harness) send(ev Event) *Result {
	h.t.Helper()
	ev.UserID = testUser
	ev.ChatID = testUser
	res, err := h.machine.Handle(context.Background(), ev)
	require.NoError(h.t, err)
	return res
}

func (h *harness) press(action, value string) *Result {
	h.t.Helper()
	return h.send(Event{Kind: KindButton, Action: action, Seq: h.conv().Seq, Value: value})
}

func (h *harness) text(s string) *Result {
	h.t.Helper()
	h.msgID++
	return h.send(Event{Kind: KindText, MessageID: h.msgID, Text: s})
}

func (h *harness) photo(id string) *Result {
	h.t.Helper()
	h.msgID++
	return h.send(Event{Kind: KindPhoto, MessageID: h.msgID, PhotoID: id})
}

func (h *harness) command(name string) *Result {
	h.t.Helper()
	h.msgID++
	return h.send(Event{Kind: KindCommand, MessageID: h.msgID, Text: name})
}

// untilAddress проводит диалог до ввода адреса.
func (h *harness) untilAddress(date, slot string) {
	h.t.Helper()
	h.command(CommandStart)
	h.press(ActionNewOrder, "")
	h.press(ActionProduct, "one_bag")
	h.press(ActionTransfer, models.TransferDoor)
	h.press(ActionDate, date)
	res := h.press(ActionTime, slot)
	require.True(h.t, res.Accepted)
	require.Equal(h.t, models.StateTimeChosen, res.State)
}

func buttonData(msg Message) []string {
	var out []string
	for _, row := range msg.Buttons {
		for _, b := range row {
			out = append(out, b.Data)
		}
	}
	return out
}

func TestMachine_HappyPath(t *testing.T) {
	h := newHarness(t, 15)

	res := h.command(CommandStart)
	require.Len(t, res.Messages, 1)
	assert.Contains(t, res.Messages[0].Text, "Здравствуйте")
	assert.Equal(t, "https://t.me/admin", res.Messages[0].Buttons[2][0].URL)

	res = h.press(ActionNewOrder, "")
	assert.Len(t, res.Messages[0].Buttons, len(testCatalog)+1)

	res = h.press(ActionProduct, "one_bag")
	assert.Equal(t, models.StateProductChosen, res.State)

	res = h.press(ActionTransfer, models.TransferUp)
	assert.Equal(t, models.StateTransferChosen, res.State)
	assert.Contains(t, buttonData(res.Messages[0]), ButtonData(ActionDate, h.conv().Seq, "10.03.2025"))
	assert.Contains(t, buttonData(res.Messages[0]), ButtonData(ActionDate, h.conv().Seq, "11.03.2025"))

	res = h.press(ActionDate, "10.03.2025")
	assert.Equal(t, models.StateDateChosen, res.State)
	data := buttonData(res.Messages[0])
	assert.Contains(t, data, ButtonData(ActionTime, h.conv().Seq, "15:00"))
	assert.NotContains(t, data, ButtonData(ActionTime, h.conv().Seq, "14:00"))

	res = h.press(ActionTime, "15:00")
	assert.Equal(t, models.StateTimeChosen, res.State)
	assert.Contains(t, res.Messages[0].Text, "Укажите точный адрес")

	res = h.text("ул. Ленина, д. 5, кв. 12")
	assert.Equal(t, models.StateAddressCollected, res.State)

	res = h.photo("trash-photo")
	assert.Equal(t, models.StatePhotoCollected, res.State)
	assert.Contains(t, res.Messages[0].Text, "100 ₽")
	assert.Contains(t, res.Messages[0].Text, "Тинькофф")

	res = h.photo("payment-proof")
	require.NoError(t, res.Err)
	assert.Equal(t, models.StateFinalized, res.State)
	require.NotNil(t, res.Order)
	require.Len(t, res.Messages, 2)
	assert.Contains(t, res.Messages[0].Text, "Спасибо")

	admin := res.Messages[1]
	assert.Equal(t, adminChat, admin.ChatID)
	assert.Equal(t, "payment-proof", admin.PhotoID)
	assert.Equal(t, []string{"trash-photo"}, admin.Album)
	assert.Contains(t, admin.Text, "ул. Ленина, д. 5, кв. 12")
	assert.Contains(t, admin.Text, "15:00")
	assert.Contains(t, buttonData(admin), StatusButtonData(res.Order.ID, models.StatusPaymentConfirmed))

	stored, err := h.ledger.Order(context.Background(), res.Order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPendingConfirmation, stored.Status)
	assert.Equal(t, models.TransferUp, stored.Transfer)
	assert.Equal(t, "payment-proof", stored.PaymentProof)
	assert.Equal(t, []string{"trash-photo"}, stored.Photos)

	conv := h.conv()
	assert.True(t, conv.Finalized)
}

func TestMachine_OutOfOrderInputRejected(t *testing.T) {
	h := newHarness(t, 15)
	h.command(CommandStart)
	h.press(ActionNewOrder, "")
	h.press(ActionProduct, "one_bag")
	h.press(ActionTransfer, models.TransferDoor)

	before := h.conv()
	res := h.text("ул. Ленина, д. 5, кв. 12")

	assert.False(t, res.Accepted)
	assert.ErrorIs(t, res.Err, ErrUnexpectedInput)
	assert.Equal(t, models.StateTransferChosen, res.State)
	require.Len(t, res.Messages, 1)
	assert.Contains(t, res.Messages[0].Text, "Выберите дату")

	after := h.conv()
	assert.Empty(t, after.Address)
	assert.Equal(t, before.Seq, after.Seq)
}

func TestMachine_UnknownProduct(t *testing.T) {
	h := newHarness(t, 15)
	h.command(CommandStart)

	res := h.press(ActionProduct, "spaceship")
	assert.ErrorIs(t, res.Err, ErrUnknownProduct)
	assert.False(t, res.Accepted)
	assert.Equal(t, models.StateIdle, res.State)
	assert.Len(t, res.Messages[0].Buttons, len(testCatalog)+1)
}

func TestMachine_RestartClearsFields(t *testing.T) {
	h := newHarness(t, 15)
	h.command(CommandStart)
	h.press(ActionNewOrder, "")
	h.press(ActionProduct, "few_bags")
	h.press(ActionTransfer, models.TransferDoor)
	h.press(ActionDate, "11.03.2025")
	require.Equal(t, models.StateDateChosen, h.conv().State)

	res := h.command(CommandStart)
	assert.True(t, res.Accepted)
	assert.Equal(t, models.StateIdle, res.State)

	conv := h.conv()
	assert.Empty(t, conv.Product)
	assert.Empty(t, conv.Transfer)
	assert.Empty(t, conv.Date)
	assert.Empty(t, conv.TimeSlot)

	// кнопка "начать заново" работает так же
	h.press(ActionNewOrder, "")
	h.press(ActionProduct, "one_bag")
	res = h.press(ActionRestart, "")
	assert.Equal(t, models.StateIdle, res.State)
	assert.Empty(t, h.conv().Product)
}

func TestMachine_RestartFromOlderKeyboard(t *testing.T) {
	h := newHarness(t, 15)
	h.command(CommandStart)
	h.press(ActionNewOrder, "")
	catalogSeq := h.conv().Seq

	h.press(ActionProduct, "one_bag")
	h.press(ActionTransfer, models.TransferDoor)
	h.press(ActionDate, "11.03.2025")
	h.press(ActionTime, "10:00")
	h.text("ул. Ленина, д. 5, кв. 12")
	require.Equal(t, models.StateAddressCollected, h.conv().State)

	// кнопка с клавиатуры выбора услуги, показанной несколько шагов назад
	res := h.send(Event{Kind: KindButton, Action: ActionRestart, Seq: catalogSeq})
	assert.False(t, res.Stale)
	assert.True(t, res.Accepted)
	assert.Equal(t, models.StateIdle, res.State)
	require.Len(t, res.Messages, 1)

	conv := h.conv()
	assert.Empty(t, conv.Address)
	assert.Empty(t, conv.TimeSlot)

	// повторная доставка того же нажатия после сброса ничего не шлёт
	dup := h.send(Event{Kind: KindButton, Action: ActionRestart, Seq: catalogSeq})
	assert.True(t, dup.Stale)
	assert.Empty(t, dup.Messages)
	assert.Equal(t, conv.Seq, h.conv().Seq)
}

func TestMachine_HelpKeepsStepButtons(t *testing.T) {
	h := newHarness(t, 15)
	h.command(CommandStart)
	h.press(ActionNewOrder, "")
	h.press(ActionProduct, "one_bag")
	h.press(ActionTransfer, models.TransferDoor)
	require.Equal(t, models.StateTransferChosen, h.conv().State)
	dateSeq := h.conv().Seq

	res := h.command(CommandHelp)
	assert.False(t, res.Accepted)
	require.Len(t, res.Messages, 1)
	assert.Equal(t, dateSeq, h.conv().Seq)

	res = h.send(Event{Kind: KindButton, Action: ActionDate, Seq: dateSeq, Value: "11.03.2025"})
	assert.False(t, res.Stale)
	assert.Equal(t, models.StateDateChosen, res.State)
}

func TestMachine_StaleButtonRedelivery(t *testing.T) {
	h := newHarness(t, 15)
	h.command(CommandStart)
	h.press(ActionNewOrder, "")

	seq := h.conv().Seq
	first := h.send(Event{Kind: KindButton, Action: ActionProduct, Seq: seq, Value: "one_bag"})
	require.True(t, first.Accepted)

	dup := h.send(Event{Kind: KindButton, Action: ActionProduct, Seq: seq, Value: "one_bag"})
	assert.True(t, dup.Stale)
	assert.ErrorIs(t, dup.Err, ErrStaleEvent)
	assert.Empty(t, dup.Messages)
	assert.Equal(t, models.StateProductChosen, h.conv().State)
	assert.Equal(t, seq+1, h.conv().Seq)
}

func TestMachine_StaleMessageRedelivery(t *testing.T) {
	h := newHarness(t, 15)
	h.untilAddress("11.03.2025", "09:00")

	h.msgID++
	ev := Event{Kind: KindText, MessageID: h.msgID, Text: "ул. Ленина, д. 5, кв. 12"}
	res := h.send(ev)
	require.True(t, res.Accepted)

	res = h.send(ev)
	assert.True(t, res.Stale)
	assert.Empty(t, res.Messages)

	// повтор после сброса тоже распознаётся
	h.command(CommandStart)
	res = h.send(ev)
	assert.True(t, res.Stale)
	assert.Equal(t, models.StateIdle, h.conv().State)
}

func TestMachine_DuplicateProofCreatesSingleOrder(t *testing.T) {
	h := newHarness(t, 15)
	h.untilAddress("11.03.2025", "10:00")
	h.text("ул. Ленина, д. 5, кв. 12")
	h.photo("trash")

	h.msgID++
	ev := Event{Kind: KindPhoto, MessageID: h.msgID, PhotoID: "proof"}
	res := h.send(ev)
	require.NotNil(t, res.Order)

	res = h.send(ev)
	assert.True(t, res.Stale)
	assert.Empty(t, res.Messages)

	entries, err := h.ledger.Entries(context.Background())
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestMachine_ShortAddressRejected(t *testing.T) {
	h := newHarness(t, 15)
	h.untilAddress("11.03.2025", "09:00")

	res := h.text("дом 5")
	assert.ErrorIs(t, res.Err, ErrAddressTooShort)
	assert.Equal(t, models.StateTimeChosen, res.State)
	assert.Contains(t, res.Messages[0].Text, "слишком короткий")

	res = h.photo("early-photo")
	assert.ErrorIs(t, res.Err, ErrUnexpectedInput)
	assert.Equal(t, models.StateTimeChosen, res.State)
}

func TestMachine_FullyBookedDateResets(t *testing.T) {
	h := newHarness(t, 1)
	ctx := context.Background()

	for hour := 15; hour <= 20; hour++ {
		require.NoError(t, h.ledger.Append(ctx, models.Order{
			ID: schedule.SlotLabel(hour), UserID: 1, Product: "one_bag", Date: "10.03.2025",
			TimeSlot: schedule.SlotLabel(hour), Status: models.StatusPendingConfirmation, RecordedAt: h.clock.Now(),
		}))
	}

	h.command(CommandStart)
	h.press(ActionNewOrder, "")
	h.press(ActionProduct, "one_bag")
	h.press(ActionTransfer, models.TransferDoor)

	res := h.press(ActionDate, "10.03.2025")
	assert.ErrorIs(t, res.Err, ErrFullyBooked)
	assert.True(t, res.Accepted)
	assert.Equal(t, models.StateIdle, res.State)
	assert.Equal(t, "❌ Все временные интервалы на 10.03.2025 заняты. Попробуйте другую дату.", res.Messages[0].Text)
	assert.Empty(t, h.conv().Transfer)
}

func TestMachine_InvalidDateReprompts(t *testing.T) {
	h := newHarness(t, 15)
	h.command(CommandStart)
	h.press(ActionNewOrder, "")
	h.press(ActionProduct, "one_bag")
	h.press(ActionTransfer, models.TransferDoor)

	res := h.press(ActionDate, "09.03.2025")
	var invalid *schedule.InvalidDateError
	assert.ErrorAs(t, res.Err, &invalid)
	assert.False(t, res.Accepted)
	assert.Equal(t, models.StateTransferChosen, res.State)
}

func TestMachine_SlotTakenWhileChoosing(t *testing.T) {
	h := newHarness(t, 1)
	h.command(CommandStart)
	h.press(ActionNewOrder, "")
	h.press(ActionProduct, "one_bag")
	h.press(ActionTransfer, models.TransferDoor)
	h.press(ActionDate, "11.03.2025")

	require.NoError(t, h.ledger.Append(context.Background(), models.Order{
		ID: "other", UserID: 2, Product: "one_bag", Date: "11.03.2025", TimeSlot: "12:00",
		Status: models.StatusPendingConfirmation, RecordedAt: h.clock.Now(),
	}))

	res := h.press(ActionTime, "12:00")
	assert.ErrorIs(t, res.Err, ErrSlotUnavailable)
	assert.Equal(t, models.StateDateChosen, res.State)
	assert.NotContains(t, buttonData(res.Messages[0]), ButtonData(ActionTime, h.conv().Seq, "12:00"))
}

func TestMachine_SlotFullAtFinalizeOffersNewSlot(t *testing.T) {
	h := newHarness(t, 1)
	h.untilAddress("11.03.2025", "12:00")
	h.text("ул. Ленина, д. 5, кв. 12")
	h.photo("trash")

	require.NoError(t, h.ledger.Append(context.Background(), models.Order{
		ID: "other", UserID: 2, Product: "one_bag", Date: "11.03.2025", TimeSlot: "12:00",
		Status: models.StatusPendingConfirmation, RecordedAt: h.clock.Now(),
	}))

	res := h.photo("proof")
	assert.ErrorIs(t, res.Err, admission.ErrSlotFull)
	assert.Equal(t, models.StateTimeChosen, res.State)
	assert.Nil(t, res.Order)
	require.Len(t, res.Messages, 1)
	assert.Contains(t, res.Messages[0].Text, "12:00")

	conv := h.conv()
	assert.Empty(t, conv.TimeSlot)
	assert.Equal(t, "proof", conv.PaymentProof)

	// в этом подсостоянии текст не принимается
	res = h.text("ул. Другая, д. 1, кв. 1")
	assert.False(t, res.Accepted)

	res = h.press(ActionTime, "13:00")
	require.NoError(t, res.Err)
	require.NotNil(t, res.Order)
	assert.Equal(t, "13:00", res.Order.TimeSlot)
	assert.Equal(t, "ул. Ленина, д. 5, кв. 12", res.Order.Address)
	assert.Equal(t, "proof", res.Order.PaymentProof)
	assert.Equal(t, models.StateFinalized, res.State)
}

func TestMachine_PersistenceErrorKeepsStateAndRetries(t *testing.T) {
	h := newHarness(t, 15)
	h.untilAddress("11.03.2025", "10:00")
	h.text("ул. Ленина, д. 5, кв. 12")
	h.photo("trash")

	h.finalizer.fails = 1
	res := h.photo("proof")
	assert.Error(t, res.Err)
	assert.Equal(t, models.StatePaymentProofCollected, res.State)
	assert.Contains(t, res.Messages[0].Text, "Не удалось сохранить")
	assert.Contains(t, buttonData(res.Messages[0]), ButtonData(ActionRetry, h.conv().Seq, ""))

	orderID := h.conv().OrderID
	assert.NotEmpty(t, orderID)

	res = h.press(ActionRetry, "")
	require.NoError(t, res.Err)
	require.NotNil(t, res.Order)
	assert.Equal(t, orderID, res.Order.ID)
	assert.Equal(t, models.StateFinalized, res.State)
}

func TestMachine_SaveFailureAfterAppendRecovers(t *testing.T) {
	h := newHarness(t, 15)
	h.untilAddress("11.03.2025", "10:00")
	h.text("ул. Ленина, д. 5, кв. 12")
	h.photo("trash")

	// первое сохранение (до записи) проходит, второе (после) падает
	h.store.failOn = h.store.saves + 2
	h.msgID++
	res, err := h.machine.Handle(context.Background(), Event{UserID: testUser, ChatID: testUser, Kind: KindPhoto, MessageID: h.msgID, PhotoID: "proof"})
	require.NoError(t, err)
	require.NotNil(t, res.Order)
	require.Len(t, res.Messages, 2)
	assert.Equal(t, adminChat, res.Messages[1].ChatID)

	// в хранилище остался диалог до записи, но с идентификатором заказа
	conv := h.conv()
	assert.Equal(t, models.StatePaymentProofCollected, conv.State)
	assert.False(t, conv.Finalized)
	assert.Equal(t, res.Order.ID, conv.OrderID)

	retry := h.press(ActionRetry, "")
	require.NotNil(t, retry.Order)
	assert.ErrorIs(t, retry.Err, admission.ErrAlreadyFinalized)
	assert.Equal(t, conv.OrderID, retry.Order.ID)
	assert.Equal(t, models.StateFinalized, retry.State)

	entries, err := h.ledger.Entries(context.Background())
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestMachine_BulkBranch(t *testing.T) {
	h := newHarness(t, 15)
	h.command(CommandStart)
	h.press(ActionNewOrder, "")

	res := h.press(ActionProduct, "bulk")
	assert.Contains(t, res.Messages[0].Text, "Опишите")

	res = h.press(ActionTransfer, models.TransferDoor)
	assert.False(t, res.Accepted)

	res = h.text("Старый шкаф и диван, ул. Гагарина 7, кв. 3")
	assert.Equal(t, models.StateDescriptionCollected, res.State)

	res = h.photo("p1")
	assert.Equal(t, models.StatePhotosCollected, res.State)
	assert.Nil(t, res.Order)
	assert.Contains(t, res.Messages[0].Text, "1 из 2")

	res = h.photo("p2")
	require.NotNil(t, res.Order)
	assert.Equal(t, models.StatusManualReview, res.Order.Status)
	assert.Empty(t, res.Order.TimeSlot)
	assert.Equal(t, "10.03.2025", res.Order.Date)
	assert.Equal(t, []string{"p1", "p2"}, res.Order.Photos)

	require.Len(t, res.Messages, 2)
	admin := res.Messages[1]
	assert.Equal(t, "p1", admin.PhotoID)
	assert.Equal(t, []string{"p2"}, admin.Album)
	assert.True(t, strings.Contains(admin.Text, "ручная обработка"))
}

func TestMachine_FinalizedAcceptsNewOrder(t *testing.T) {
	h := newHarness(t, 15)
	h.untilAddress("11.03.2025", "10:00")
	h.text("ул. Ленина, д. 5, кв. 12")
	h.photo("trash")
	h.photo("proof")
	require.Equal(t, models.StateFinalized, h.conv().State)

	res := h.text("а где курьер?")
	assert.False(t, res.Accepted)
	assert.Contains(t, res.Messages[0].Text, "уже принят")

	res = h.press(ActionNewOrder, "")
	assert.True(t, res.Accepted)
	assert.Equal(t, models.StateIdle, res.State)
	conv := h.conv()
	assert.False(t, conv.Finalized)
	assert.Empty(t, conv.OrderID)
}

func TestMachine_StoreSaveErrorLeavesStateUnchanged(t *testing.T) {
	h := newHarness(t, 15)
	h.command(CommandStart)
	h.press(ActionNewOrder, "")

	h.store.saveErr = errors.New("redis down")
	_, err := h.machine.Handle(context.Background(), Event{
		UserID: testUser, ChatID: testUser, Kind: KindButton, Action: ActionProduct, Seq: h.conv().Seq, Value: "one_bag",
	})
	require.Error(t, err)

	h.store.saveErr = nil
	assert.Equal(t, models.StateIdle, h.conv().State)
}

func TestParseButton(t *testing.T) {
	action, seq, value, ok := ParseButton(ButtonData(ActionTime, 12, "15:00"))
	require.True(t, ok)
	assert.Equal(t, ActionTime, action)
	assert.Equal(t, int64(12), seq)
	assert.Equal(t, "15:00", value)

	_, _, _, ok = ParseButton("garbage")
	assert.False(t, ok)

	_, ok = NewButtonEvent(1, 1, 1, StatusButtonData("id", models.StatusPickedUp))
	assert.False(t, ok)

	id, status, ok := ParseStatusButton(StatusButtonData("0192-abc", models.StatusPickedUp))
	require.True(t, ok)
	assert.Equal(t, "0192-abc", id)
	assert.Equal(t, models.StatusPickedUp, status)
}

func TestStatusKeyboard(t *testing.T) {
	rows := StatusKeyboard("o1", models.StatusPendingConfirmation)
	require.Len(t, rows, 2)

	rows = StatusKeyboard("o1", models.StatusPickedUp)
	require.Len(t, rows, 1)
	require.Len(t, rows[0], 2)
	assert.Equal(t, StatusButtonData("o1", models.StatusDisposed), rows[0][0].Data)

	assert.Nil(t, StatusKeyboard("o1", models.StatusDisposed))
}
