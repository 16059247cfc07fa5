package repository

import (
	"context"
	"sync"
	"time"

	"vyvoz/internal/domain"
	"vyvoz/internal/models"

	"github.com/rs/zerolog"
)

const recoveryInterval = time.Minute

// FailoverConversationRepository переключается на резервное хранилище при
// ошибках основного и раз в минуту пробует вернуться.
type FailoverConversationRepository struct {
	primary   domain.ConversationRepository
	fallback  domain.ConversationRepository
	logger    *zerolog.Logger
	mu        sync.Mutex
	down      bool
	lastCheck time.Time
	now       func() time.Time
}

func NewFailoverConversationRepository(primary, fallback domain.ConversationRepository, logger *zerolog.Logger) *FailoverConversationRepository {
	return &FailoverConversationRepository{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
		now:      time.Now,
	}
}

// usePrimary решает, идти ли в основное хранилище.
func (r *FailoverConversationRepository) usePrimary() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.down {
		return true
	}
	if r.now().Sub(r.lastCheck) > recoveryInterval {
		r.lastCheck = r.now()
		return true
	}
	return false
}

func (r *FailoverConversationRepository) markResult(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err == nil {
		if r.down {
			r.logger.Info().Msg("Primary conversation repository recovered")
		}
		r.down = false
		return
	}
	if !r.down {
		r.logger.Error().Err(err).Msg("Primary conversation repository failed, falling back to memory")
	}
	r.down = true
	r.lastCheck = r.now()
}

func (r *FailoverConversationRepository) IsDegraded() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.down
}

func (r *FailoverConversationRepository) GetConversation(ctx context.Context, userID int64) (*models.Conversation, error) {
	if r.usePrimary() {
		conv, err := r.primary.GetConversation(ctx, userID)
		r.markResult(err)
		if err == nil {
			return conv, nil
		}
	}
	return r.fallback.GetConversation(ctx, userID)
}

func (r *FailoverConversationRepository) SaveConversation(ctx context.Context, conv *models.Conversation) error {
	if r.usePrimary() {
		err := r.primary.SaveConversation(ctx, conv)
		r.markResult(err)
		if err == nil {
			return nil
		}
	}
	return r.fallback.SaveConversation(ctx, conv)
}

func (r *FailoverConversationRepository) DeleteConversation(ctx context.Context, userID int64) error {
	if r.usePrimary() {
		err := r.primary.DeleteConversation(ctx, userID)
		r.markResult(err)
		if err == nil {
			return nil
		}
	}
	return r.fallback.DeleteConversation(ctx, userID)
}

func (r *FailoverConversationRepository) CheckRateLimit(ctx context.Context, userID int64, limit int, window time.Duration) (bool, error) {
	if r.usePrimary() {
		allowed, err := r.primary.CheckRateLimit(ctx, userID, limit, window)
		r.markResult(err)
		if err == nil {
			return allowed, nil
		}
	}
	return r.fallback.CheckRateLimit(ctx, userID, limit, window)
}
