// Package workflow ведёт диалог оформления заказа: по одному шагу на событие.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"vyvoz/internal/admission"
	"vyvoz/internal/models"
	"vyvoz/internal/schedule"

	"github.com/rs/zerolog"
)

type ConversationStore interface {
	GetConversation(ctx context.Context, userID int64) (*models.Conversation, error)
	SaveConversation(ctx context.Context, conv *models.Conversation) error
}

type SlotSource interface {
	Days(now time.Time) (today, tomorrow string)
	AvailableSlots(ctx context.Context, date string, now time.Time) ([]models.Slot, error)
}

type Finalizer interface {
	Finalize(ctx context.Context, conv *models.Conversation) (*models.Order, error)
}

type Config struct {
	AdminChatID      int64
	AddressMinLength int
	BulkMinPhotos    int
	PaymentPhone     string
	PaymentBank      string
	AdminContactURL  string
}

type Machine struct {
	store     ConversationStore
	catalog   models.Catalog
	slots     SlotSource
	finalizer Finalizer
	clock     schedule.Clock
	cfg       Config
	logger    *zerolog.Logger
}

func NewMachine(
	store ConversationStore,
	catalog models.Catalog,
	slots SlotSource,
	finalizer Finalizer,
	clock schedule.Clock,
	cfg Config,
	logger *zerolog.Logger,
) *Machine {
	if clock == nil {
		clock = schedule.RealClock()
	}
	if cfg.AddressMinLength <= 0 {
		cfg.AddressMinLength = models.DefaultAddressMinLength
	}
	if cfg.BulkMinPhotos <= 0 {
		cfg.BulkMinPhotos = models.DefaultBulkMinPhotos
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	l := logger.With().Str("component", "workflow").Logger()
	return &Machine{
		store:     store,
		catalog:   catalog,
		slots:     slots,
		finalizer: finalizer,
		clock:     clock,
		cfg:       cfg,
		logger:    &l,
	}
}

// Handle применяет событие к диалогу пользователя.
// Ошибка возвращается только при сбое хранилища, состояние диалога при этом не меняется.
func (m *Machine) Handle(ctx context.Context, ev Event) (*Result, error) {
	conv, err := m.store.GetConversation(ctx, ev.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to load conversation: %w", err)
	}
	if conv == nil {
		conv = models.NewConversation(ev.UserID, ev.ChatID)
	}
	if ev.ChatID != 0 {
		conv.ChatID = ev.ChatID
	}

	if isStale(conv, ev) {
		m.logger.Debug().
			Int64("user_id", ev.UserID).
			Str("kind", string(ev.Kind)).
			Int64("event_seq", ev.Seq).
			Int64("seq", conv.Seq).
			Int("message_id", ev.MessageID).
			Msg("Stale event ignored")
		return &Result{Stale: true, State: conv.State, Err: ErrStaleEvent}, nil
	}
	if ev.Kind != KindButton && ev.MessageID > 0 {
		conv.LastMessageID = ev.MessageID
	}

	seq := conv.Seq
	res := &Result{}
	if err := m.dispatch(ctx, conv, ev, res); err != nil {
		return nil, err
	}

	conv.UpdatedAt = m.clock.Now()
	if err := m.store.SaveConversation(ctx, conv); err != nil {
		if res.Order == nil {
			return nil, fmt.Errorf("failed to save conversation: %w", err)
		}
		// заказ уже в журнале: объявляем его, повтор поймает проверка OrderID
		m.logger.Error().Err(err).Int64("user_id", conv.UserID).Str("order_id", res.Order.ID).Msg("Failed to save finalized conversation")
	}

	res.Accepted = conv.Seq != seq
	res.State = conv.State
	return res, nil
}

func isStale(conv *models.Conversation, ev Event) bool {
	if ev.isButton(ActionRestart) {
		// «начать заново» работает с любой клавиатуры, повтор после сброса молчит
		return conv.State == models.StateIdle && ev.Seq < conv.Seq
	}
	if ev.Kind == KindButton {
		return ev.Seq != conv.Seq
	}
	return ev.MessageID > 0 && ev.MessageID <= conv.LastMessageID
}

func (m *Machine) dispatch(ctx context.Context, conv *models.Conversation, ev Event, res *Result) error {
	if ev.isRestart() {
		conv.Reset()
		conv.Advance(models.StateIdle)
		res.reply(m.menu(conv, textWelcome))
		return nil
	}
	if ev.Kind == KindCommand && ev.Text == CommandHelp {
		// не переход: кнопки текущего шага остаются рабочими
		res.reply(m.menu(conv, textInstruction))
		return nil
	}

	switch conv.State {
	case models.StateIdle, models.StateFinalized:
		return m.onIdle(ctx, conv, ev, res)
	case models.StateProductChosen:
		return m.onProductChosen(ctx, conv, ev, res)
	case models.StateTransferChosen:
		return m.onTransferChosen(ctx, conv, ev, res)
	case models.StateDateChosen:
		return m.onDateChosen(ctx, conv, ev, res)
	case models.StateTimeChosen:
		return m.onTimeChosen(ctx, conv, ev, res)
	case models.StateAddressCollected:
		return m.onAddressCollected(ctx, conv, ev, res)
	case models.StatePhotoCollected:
		return m.onPhotoCollected(ctx, conv, ev, res)
	case models.StatePaymentProofCollected:
		return m.onPaymentProofCollected(ctx, conv, ev, res)
	case models.StateDescriptionCollected, models.StatePhotosCollected:
		return m.onBulkPhoto(ctx, conv, ev, res)
	default:
		m.logger.Warn().Str("state", string(conv.State)).Int64("user_id", conv.UserID).Msg("Unknown conversation state, resetting")
		conv.Reset()
		conv.Advance(models.StateIdle)
		res.reply(m.menu(conv, textWelcome))
		return nil
	}
}

func (m *Machine) onIdle(ctx context.Context, conv *models.Conversation, ev Event, res *Result) error {
	switch {
	case ev.isButton(ActionNewOrder):
		conv.Reset()
		conv.Advance(models.StateIdle)
		res.reply(m.message(conv, textChooseProduct, m.catalogButtons(conv.Seq)))
		return nil
	case ev.isButton(ActionInstruction):
		conv.Seq++
		res.reply(m.menu(conv, textInstruction))
		return nil
	case ev.isButton(ActionProduct) && conv.State == models.StateIdle:
		return m.chooseProduct(ctx, conv, ev.Value, res)
	}
	return m.reprompt(ctx, conv, ErrUnexpectedInput, textUseButtons, res)
}

func (m *Machine) chooseProduct(ctx context.Context, conv *models.Conversation, productID string, res *Result) error {
	product, ok := m.catalog.Find(productID)
	if !ok {
		res.Err = ErrUnknownProduct
		res.reply(m.message(conv, textUnknownProduct+"\n"+textChooseProduct, m.catalogButtons(conv.Seq)))
		return nil
	}

	conv.Product = product.ID
	conv.Advance(models.StateProductChosen)
	return m.prompt(ctx, conv, "", res)
}

func (m *Machine) onProductChosen(ctx context.Context, conv *models.Conversation, ev Event, res *Result) error {
	product, _ := m.catalog.Find(conv.Product)

	if product.Bulk {
		if ev.Kind != KindText {
			return m.reprompt(ctx, conv, ErrUnexpectedInput, textSendText, res)
		}
		description := strings.TrimSpace(ev.Text)
		if utf8.RuneCountInString(description) < m.cfg.AddressMinLength {
			return m.reprompt(ctx, conv, ErrAddressTooShort, textDescriptionShort, res)
		}
		today, _ := m.slots.Days(m.clock.Now())
		conv.Description = description
		conv.Address = description
		conv.Date = today
		conv.Advance(models.StateDescriptionCollected)
		return m.prompt(ctx, conv, "", res)
	}

	if !ev.isButton(ActionTransfer) || !models.IsKnownTransfer(ev.Value) {
		return m.reprompt(ctx, conv, ErrUnexpectedInput, textUseButtons, res)
	}
	conv.Transfer = ev.Value
	conv.Advance(models.StateTransferChosen)
	return m.prompt(ctx, conv, "", res)
}

func (m *Machine) onTransferChosen(ctx context.Context, conv *models.Conversation, ev Event, res *Result) error {
	if !ev.isButton(ActionDate) {
		return m.reprompt(ctx, conv, ErrUnexpectedInput, textUseButtons, res)
	}

	slots, err := m.slots.AvailableSlots(ctx, ev.Value, m.clock.Now())
	var invalid *schedule.InvalidDateError
	switch {
	case errors.As(err, &invalid):
		return m.reprompt(ctx, conv, err, textDateUnavailable, res)
	case err != nil:
		return err
	case len(slots) == 0:
		m.fullyBooked(conv, ev.Value, res)
		return nil
	}

	conv.Date = ev.Value
	conv.Advance(models.StateDateChosen)
	res.reply(m.message(conv, fmt.Sprintf(textChooseTime, conv.Date), slotButtons(conv.Seq, slots)))
	return nil
}

func (m *Machine) onDateChosen(ctx context.Context, conv *models.Conversation, ev Event, res *Result) error {
	if !ev.isButton(ActionTime) {
		return m.reprompt(ctx, conv, ErrUnexpectedInput, textUseButtons, res)
	}
	ok, err := m.pickSlot(ctx, conv, ev.Value, res)
	if err != nil || !ok {
		return err
	}
	conv.Advance(models.StateTimeChosen)
	return m.prompt(ctx, conv, "", res)
}

func (m *Machine) onTimeChosen(ctx context.Context, conv *models.Conversation, ev Event, res *Result) error {
	// интервал сброшен после нехватки мест: адрес и оплата уже есть
	if conv.TimeSlot == "" {
		if !ev.isButton(ActionTime) {
			return m.reprompt(ctx, conv, ErrUnexpectedInput, textUseButtons, res)
		}
		ok, err := m.pickSlot(ctx, conv, ev.Value, res)
		if err != nil || !ok {
			return err
		}
		conv.Advance(models.StatePaymentProofCollected)
		return m.finalize(ctx, conv, res)
	}

	if ev.Kind != KindText {
		return m.reprompt(ctx, conv, ErrUnexpectedInput, textSendText, res)
	}
	address := strings.TrimSpace(ev.Text)
	if utf8.RuneCountInString(address) < m.cfg.AddressMinLength {
		return m.reprompt(ctx, conv, ErrAddressTooShort, textAddressShort, res)
	}
	conv.Address = address
	conv.Advance(models.StateAddressCollected)
	return m.prompt(ctx, conv, "", res)
}

func (m *Machine) onAddressCollected(ctx context.Context, conv *models.Conversation, ev Event, res *Result) error {
	if ev.Kind != KindPhoto {
		return m.reprompt(ctx, conv, ErrUnexpectedInput, textSendPhoto, res)
	}
	conv.Photos = []string{ev.PhotoID}
	conv.Advance(models.StatePhotoCollected)
	return m.prompt(ctx, conv, "", res)
}

func (m *Machine) onPhotoCollected(ctx context.Context, conv *models.Conversation, ev Event, res *Result) error {
	if ev.Kind != KindPhoto {
		return m.reprompt(ctx, conv, ErrUnexpectedInput, textSendPhoto, res)
	}
	conv.PaymentProof = ev.PhotoID
	conv.Advance(models.StatePaymentProofCollected)
	return m.finalize(ctx, conv, res)
}

func (m *Machine) onPaymentProofCollected(ctx context.Context, conv *models.Conversation, ev Event, res *Result) error {
	switch {
	case ev.isButton(ActionRetry):
	case ev.Kind == KindPhoto:
		conv.PaymentProof = ev.PhotoID
	default:
		return m.reprompt(ctx, conv, ErrUnexpectedInput, textUseButtons, res)
	}
	conv.Seq++
	return m.finalize(ctx, conv, res)
}

func (m *Machine) onBulkPhoto(ctx context.Context, conv *models.Conversation, ev Event, res *Result) error {
	enough := len(conv.Photos) >= m.cfg.BulkMinPhotos
	switch {
	case ev.Kind == KindPhoto:
		conv.Photos = append(conv.Photos, ev.PhotoID)
	case ev.isButton(ActionRetry) && enough:
	default:
		return m.reprompt(ctx, conv, ErrUnexpectedInput, textSendPhoto, res)
	}

	conv.Advance(models.StatePhotosCollected)
	if len(conv.Photos) < m.cfg.BulkMinPhotos {
		res.reply(m.message(conv, fmt.Sprintf(textBulkPhotoAck, len(conv.Photos), m.cfg.BulkMinPhotos), nil))
		return nil
	}
	return m.finalize(ctx, conv, res)
}

// pickSlot проверяет выбранный интервал по свежему расписанию.
func (m *Machine) pickSlot(ctx context.Context, conv *models.Conversation, slot string, res *Result) (bool, error) {
	slots, err := m.slots.AvailableSlots(ctx, conv.Date, m.clock.Now())
	var invalid *schedule.InvalidDateError
	switch {
	case errors.As(err, &invalid):
		m.datePassed(conv, err, res)
		return false, nil
	case err != nil:
		return false, err
	case len(slots) == 0:
		m.fullyBooked(conv, conv.Date, res)
		return false, nil
	}

	for _, s := range slots {
		if s.Label == slot {
			conv.TimeSlot = slot
			return true, nil
		}
	}

	res.Err = ErrSlotUnavailable
	res.reply(m.message(conv, fmt.Sprintf(textSlotTaken, slot), slotButtons(conv.Seq, slots)))
	return false, nil
}

// finalize сохраняет идентификатор заказа до записи в журнал, чтобы повтор
// после сбоя нашёл уже записанный заказ.
func (m *Machine) finalize(ctx context.Context, conv *models.Conversation, res *Result) error {
	if conv.OrderID == "" {
		conv.OrderID = admission.NewOrderID()
	}
	conv.UpdatedAt = m.clock.Now()
	if err := m.store.SaveConversation(ctx, conv); err != nil {
		return fmt.Errorf("failed to save conversation before finalize: %w", err)
	}

	slot := conv.TimeSlot
	order, err := m.finalizer.Finalize(ctx, conv)
	var invalid *schedule.InvalidDateError
	switch {
	case err == nil, errors.Is(err, admission.ErrAlreadyFinalized) && order != nil:
		res.Order = order
		res.Err = err
		m.confirm(conv, order, res)
	case errors.Is(err, admission.ErrAlreadyFinalized):
		res.Err = err
		res.reply(m.message(conv, textAlreadyAccepted, m.menuButtons(conv.Seq)))
	case errors.Is(err, admission.ErrSlotFull):
		res.Err = err
		return m.reslot(ctx, conv, fmt.Sprintf(textSlotTaken, slot), res)
	case errors.As(err, &invalid):
		m.datePassed(conv, err, res)
	default:
		m.logger.Error().Err(err).Int64("user_id", conv.UserID).Str("order_id", conv.OrderID).Msg("Finalize failed")
		res.Err = err
		res.reply(m.message(conv, textPersistFailed, retryButtons(conv.Seq)))
	}
	return nil
}

func (m *Machine) confirm(conv *models.Conversation, order *models.Order, res *Result) {
	text := textThanks
	if order.IsManual() {
		text = textThanksBulk
	}
	res.reply(m.message(conv, text, m.menuButtons(conv.Seq)))

	if m.cfg.AdminChatID == 0 {
		m.logger.Warn().Str("order_id", order.ID).Msg("Admin chat is not configured, order notification skipped")
		return
	}
	res.reply(m.adminNotification(order))
}

func (m *Machine) adminNotification(order *models.Order) Message {
	msg := Message{
		ChatID:  m.cfg.AdminChatID,
		Text:    AdminCaption(order, m.catalog),
		Buttons: StatusKeyboard(order.ID, order.Status),
	}
	switch {
	case order.PaymentProof != "":
		msg.PhotoID = order.PaymentProof
		msg.Album = append([]string(nil), order.Photos...)
	case len(order.Photos) > 0:
		msg.PhotoID = order.Photos[0]
		msg.Album = append([]string(nil), order.Photos[1:]...)
	}
	return msg
}

// reslot предлагает свободные интервалы той же даты после нехватки мест.
func (m *Machine) reslot(ctx context.Context, conv *models.Conversation, text string, res *Result) error {
	slots, err := m.slots.AvailableSlots(ctx, conv.Date, m.clock.Now())
	var invalid *schedule.InvalidDateError
	switch {
	case errors.As(err, &invalid):
		m.datePassed(conv, err, res)
		return nil
	case err != nil:
		return err
	case len(slots) == 0:
		m.fullyBooked(conv, conv.Date, res)
		return nil
	}
	res.reply(m.message(conv, text, slotButtons(conv.Seq, slots)))
	return nil
}

func (m *Machine) fullyBooked(conv *models.Conversation, date string, res *Result) {
	res.Err = ErrFullyBooked
	conv.Reset()
	conv.Advance(models.StateIdle)
	res.reply(m.menu(conv, fmt.Sprintf(textFullyBooked, date)))
}

func (m *Machine) datePassed(conv *models.Conversation, err error, res *Result) {
	res.Err = err
	date := conv.Date
	conv.Reset()
	conv.Advance(models.StateIdle)
	res.reply(m.menu(conv, fmt.Sprintf(textDatePassed, date)))
}

// reprompt повторяет вопрос текущего шага, не продвигая диалог.
func (m *Machine) reprompt(ctx context.Context, conv *models.Conversation, reason error, hint string, res *Result) error {
	res.Err = reason
	return m.prompt(ctx, conv, hint, res)
}

// prompt вопрос текущего шага с клавиатурой для текущего Seq.
func (m *Machine) prompt(ctx context.Context, conv *models.Conversation, hint string, res *Result) error {
	withHint := func(text string) string {
		if hint == "" {
			return text
		}
		return hint + "\n" + text
	}

	switch conv.State {
	case models.StateIdle:
		res.reply(m.menu(conv, withHint(textWelcome)))
	case models.StateFinalized:
		res.reply(m.message(conv, withHint(textAlreadyAccepted), m.menuButtons(conv.Seq)))
	case models.StateProductChosen:
		if p, _ := m.catalog.Find(conv.Product); p.Bulk {
			res.reply(m.message(conv, withHint(textBulkDescription), [][]Button{restartRow(conv.Seq)}))
			return nil
		}
		res.reply(m.message(conv, withHint(textChooseTransfer), transferButtons(conv.Seq)))
	case models.StateTransferChosen:
		today, tomorrow := m.slots.Days(m.clock.Now())
		res.reply(m.message(conv, withHint(textChooseDate), dateButtons(conv.Seq, today, tomorrow)))
	case models.StateDateChosen:
		slots, err := m.slots.AvailableSlots(ctx, conv.Date, m.clock.Now())
		var invalid *schedule.InvalidDateError
		switch {
		case errors.As(err, &invalid):
			m.datePassed(conv, err, res)
			return nil
		case err != nil:
			return err
		case len(slots) == 0:
			m.fullyBooked(conv, conv.Date, res)
			return nil
		}
		res.reply(m.message(conv, withHint(fmt.Sprintf(textChooseTime, conv.Date)), slotButtons(conv.Seq, slots)))
	case models.StateTimeChosen:
		if conv.TimeSlot == "" {
			return m.reslot(ctx, conv, withHint(fmt.Sprintf(textChooseTime, conv.Date)), res)
		}
		res.reply(m.message(conv, withHint(textAddress), [][]Button{restartRow(conv.Seq)}))
	case models.StateAddressCollected:
		res.reply(m.message(conv, withHint(textPhoto), [][]Button{restartRow(conv.Seq)}))
	case models.StatePhotoCollected:
		text := fmt.Sprintf(textPayment, m.catalog.Price(conv.Product), m.cfg.PaymentPhone, m.cfg.PaymentBank)
		res.reply(m.message(conv, withHint(text), [][]Button{restartRow(conv.Seq)}))
	case models.StatePaymentProofCollected:
		res.reply(m.message(conv, withHint(textPersistFailed), retryButtons(conv.Seq)))
	case models.StateDescriptionCollected:
		res.reply(m.message(conv, withHint(fmt.Sprintf(textBulkPhotos, m.cfg.BulkMinPhotos)), [][]Button{restartRow(conv.Seq)}))
	case models.StatePhotosCollected:
		if len(conv.Photos) >= m.cfg.BulkMinPhotos {
			res.reply(m.message(conv, withHint(textPersistFailed), retryButtons(conv.Seq)))
			return nil
		}
		text := fmt.Sprintf(textBulkPhotoAck, len(conv.Photos), m.cfg.BulkMinPhotos)
		res.reply(m.message(conv, withHint(text), [][]Button{restartRow(conv.Seq)}))
	}
	return nil
}

func (m *Machine) menu(conv *models.Conversation, text string) Message {
	return m.message(conv, text, m.menuButtons(conv.Seq))
}

func (m *Machine) message(conv *models.Conversation, text string, buttons [][]Button) Message {
	return Message{ChatID: conv.ChatID, Text: text, Buttons: buttons}
}
