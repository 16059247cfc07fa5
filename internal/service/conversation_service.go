package service

import (
	"context"
	"time"

	"vyvoz/internal/domain"
	"vyvoz/internal/models"

	"github.com/rs/zerolog"
)

type ConversationService struct {
	repo   domain.ConversationRepository
	logger *zerolog.Logger
}

func NewConversationService(repo domain.ConversationRepository, logger *zerolog.Logger) *ConversationService {
	return &ConversationService{
		repo:   repo,
		logger: logger,
	}
}

func (s *ConversationService) GetConversation(ctx context.Context, userID int64) (*models.Conversation, error) {
	conv, err := s.repo.GetConversation(ctx, userID)
	if err != nil {
		s.logger.Error().Err(err).Int64("user_id", userID).Msg("failed to get conversation")
		return nil, err
	}
	return conv, nil
}

func (s *ConversationService) SaveConversation(ctx context.Context, conv *models.Conversation) error {
	if err := s.repo.SaveConversation(ctx, conv); err != nil {
		s.logger.Error().Err(err).Int64("user_id", conv.UserID).Str("state", string(conv.State)).Msg("failed to save conversation")
		return err
	}
	return nil
}

func (s *ConversationService) ClearConversation(ctx context.Context, userID int64) error {
	return s.repo.DeleteConversation(ctx, userID)
}

// Allow проверяет лимит сообщений пользователя. При ошибке хранилища
// пропускаем сообщение, а не блокируем пользователя.
func (s *ConversationService) Allow(ctx context.Context, userID int64, limit int, window time.Duration) bool {
	if limit <= 0 {
		return true
	}
	allowed, err := s.repo.CheckRateLimit(ctx, userID, limit, window)
	if err != nil {
		s.logger.Warn().Err(err).Int64("user_id", userID).Msg("rate limit check failed")
		return true
	}
	return allowed
}
