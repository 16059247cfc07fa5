package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"vyvoz/internal/config"
	"vyvoz/internal/models"

	"github.com/redis/go-redis/v9"
)

const (
	conversationKeyPrefix = "conversation:"
	rateLimitKeyPrefix    = "rate_limit:"
)

// RedisConversationRepository хранит диалоги в Redis в виде JSON.
// ttl = 0 означает хранение без срока.
type RedisConversationRepository struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisClient создает новый клиент Redis на основе конфигурации
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
}

func NewRedisConversationRepository(client *redis.Client, ttl time.Duration) *RedisConversationRepository {
	return &RedisConversationRepository{
		client: client,
		ttl:    ttl,
	}
}

func conversationKey(userID int64) string {
	return fmt.Sprintf("%s%d", conversationKeyPrefix, userID)
}

func (r *RedisConversationRepository) GetConversation(ctx context.Context, userID int64) (*models.Conversation, error) {
	if r.client == nil {
		return nil, errors.New("redis client is nil")
	}
	val, err := r.client.Get(ctx, conversationKey(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation from redis: %w", err)
	}

	var conv models.Conversation
	if err := json.Unmarshal(val, &conv); err != nil {
		return nil, fmt.Errorf("failed to unmarshal conversation: %w", err)
	}
	return &conv, nil
}

func (r *RedisConversationRepository) SaveConversation(ctx context.Context, conv *models.Conversation) error {
	if r.client == nil {
		return errors.New("redis client is nil")
	}
	data, err := json.Marshal(conv)
	if err != nil {
		return fmt.Errorf("failed to marshal conversation: %w", err)
	}

	if err := r.client.Set(ctx, conversationKey(conv.UserID), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save conversation in redis: %w", err)
	}
	return nil
}

func (r *RedisConversationRepository) DeleteConversation(ctx context.Context, userID int64) error {
	if r.client == nil {
		return errors.New("redis client is nil")
	}
	if err := r.client.Del(ctx, conversationKey(userID)).Err(); err != nil {
		return fmt.Errorf("failed to delete conversation from redis: %w", err)
	}
	return nil
}

func (r *RedisConversationRepository) CheckRateLimit(ctx context.Context, userID int64, limit int, window time.Duration) (bool, error) {
	if r.client == nil {
		return false, errors.New("redis client is nil")
	}
	key := fmt.Sprintf("%s%d", rateLimitKeyPrefix, userID)

	count, err := r.client.Incr(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("failed to increment rate limit: %w", err)
	}
	if count == 1 {
		if err := r.client.Expire(ctx, key, window).Err(); err != nil {
			return false, fmt.Errorf("failed to set rate limit expiry: %w", err)
		}
	}

	return count <= int64(limit), nil
}

// Ping проверяет соединение с Redis
func Ping(ctx context.Context, client *redis.Client) error {
	if client == nil {
		return errors.New("redis client is nil")
	}
	if _, err := client.Ping(ctx).Result(); err != nil {
		return fmt.Errorf("failed to ping Redis: %w", err)
	}
	return nil
}

// Close закрывает соединение с Redis
func Close(client *redis.Client) error {
	if client != nil {
		return client.Close()
	}
	return nil
}
