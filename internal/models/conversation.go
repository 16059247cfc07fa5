package models

import "time"

// State шаг диалога оформления заказа.
type State string

const (
	StateIdle                  State = "idle"
	StateProductChosen         State = "product_chosen"
	StateTransferChosen        State = "transfer_chosen"
	StateDateChosen            State = "date_chosen"
	StateTimeChosen            State = "time_chosen"
	StateAddressCollected      State = "address_collected"
	StatePhotoCollected        State = "photo_collected"
	StatePaymentProofCollected State = "payment_proof_collected"
	StateFinalized             State = "finalized"

	// ветка крупного мусора
	StateDescriptionCollected State = "description_collected"
	StatePhotosCollected      State = "photos_collected"
)

// Conversation состояние диалога одного пользователя.
//
// Seq растёт на каждом принятом событии, кнопки несут Seq, для которого они
// были показаны. LastMessageID - последний обработанный входящий message id.
// Оба счётчика переживают сброс диалога.
type Conversation struct {
	UserID        int64     `json:"user_id"`
	ChatID        int64     `json:"chat_id"`
	State         State     `json:"state"`
	Product       string    `json:"product,omitempty"`
	Transfer      string    `json:"transfer,omitempty"`
	Date          string    `json:"date,omitempty"`
	TimeSlot      string    `json:"time_slot,omitempty"`
	Address       string    `json:"address,omitempty"`
	Description   string    `json:"description,omitempty"`
	Photos        []string  `json:"photos,omitempty"`
	PaymentProof  string    `json:"payment_proof,omitempty"`
	OrderID       string    `json:"order_id,omitempty"`
	Finalized     bool      `json:"finalized"`
	Seq           int64     `json:"seq"`
	LastMessageID int       `json:"last_message_id"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func NewConversation(userID, chatID int64) *Conversation {
	return &Conversation{
		UserID: userID,
		ChatID: chatID,
		State:  StateIdle,
	}
}

// Reset возвращает диалог в начало, сохраняя счётчики.
func (c *Conversation) Reset() {
	*c = Conversation{
		UserID:        c.UserID,
		ChatID:        c.ChatID,
		State:         StateIdle,
		Seq:           c.Seq,
		LastMessageID: c.LastMessageID,
		UpdatedAt:     c.UpdatedAt,
	}
}

// Advance переводит диалог в новое состояние и отмечает принятое событие.
func (c *Conversation) Advance(state State) {
	c.State = state
	c.Seq++
}

// Clone глубокая копия, чтобы хранилища не делили срезы с вызывающим кодом.
func (c *Conversation) Clone() *Conversation {
	if c == nil {
		return nil
	}
	cp := *c
	if c.Photos != nil {
		cp.Photos = append([]string(nil), c.Photos...)
	}
	return &cp
}

// IsBulk - ветка крупного мусора без выбора интервала.
func (c *Conversation) IsBulk() bool {
	return c.State == StateDescriptionCollected || c.State == StatePhotosCollected
}
