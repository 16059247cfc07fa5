package repository

import (
	"context"
	"testing"
	"time"

	"vyvoz/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRedis(t *testing.T, ttl time.Duration) (*RedisConversationRepository, *miniredis.Miniredis) {
	t.Helper()
	s := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisConversationRepository(client, ttl), s
}

func TestRedisConversationRepository_SaveAndGet(t *testing.T) {
	repo, _ := setupRedis(t, 0)
	ctx := context.Background()

	conv := models.NewConversation(42, 4242)
	conv.Product = "one_bag"
	conv.Photos = []string{"p1", "p2"}
	conv.Advance(models.StateProductChosen)
	conv.LastMessageID = 17

	require.NoError(t, repo.SaveConversation(ctx, conv))

	got, err := repo.GetConversation(ctx, 42)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, models.StateProductChosen, got.State)
	assert.Equal(t, "one_bag", got.Product)
	assert.Equal(t, []string{"p1", "p2"}, got.Photos)
	assert.Equal(t, int64(1), got.Seq)
	assert.Equal(t, 17, got.LastMessageID)
	assert.Equal(t, int64(4242), got.ChatID)
}

func TestRedisConversationRepository_Missing(t *testing.T) {
	repo, _ := setupRedis(t, 0)

	got, err := repo.GetConversation(context.Background(), 1)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRedisConversationRepository_Delete(t *testing.T) {
	repo, _ := setupRedis(t, 0)
	ctx := context.Background()

	require.NoError(t, repo.SaveConversation(ctx, models.NewConversation(5, 5)))
	require.NoError(t, repo.DeleteConversation(ctx, 5))

	got, err := repo.GetConversation(ctx, 5)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRedisConversationRepository_TTL(t *testing.T) {
	repo, s := setupRedis(t, time.Hour)
	ctx := context.Background()

	require.NoError(t, repo.SaveConversation(ctx, models.NewConversation(7, 7)))
	assert.Equal(t, time.Hour, s.TTL("conversation:7"))

	s.FastForward(2 * time.Hour)

	got, err := repo.GetConversation(ctx, 7)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRedisConversationRepository_NoTTL(t *testing.T) {
	repo, s := setupRedis(t, 0)

	require.NoError(t, repo.SaveConversation(context.Background(), models.NewConversation(8, 8)))
	assert.Equal(t, time.Duration(0), s.TTL("conversation:8"))
}

func TestRedisConversationRepository_CorruptedValue(t *testing.T) {
	repo, s := setupRedis(t, 0)
	require.NoError(t, s.Set("conversation:9", "{not json"))

	_, err := repo.GetConversation(context.Background(), 9)
	assert.Error(t, err)
}

func TestRedisConversationRepository_RateLimit(t *testing.T) {
	repo, s := setupRedis(t, 0)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		allowed, err := repo.CheckRateLimit(ctx, 1, 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, allowed)
	}

	allowed, err := repo.CheckRateLimit(ctx, 1, 3, time.Minute)
	require.NoError(t, err)
	assert.False(t, allowed)

	// другой пользователь не затронут
	allowed, err = repo.CheckRateLimit(ctx, 2, 3, time.Minute)
	require.NoError(t, err)
	assert.True(t, allowed)

	s.FastForward(2 * time.Minute)

	allowed, err = repo.CheckRateLimit(ctx, 1, 3, time.Minute)
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestRedisConversationRepository_ServerDown(t *testing.T) {
	repo, s := setupRedis(t, 0)
	s.Close()

	_, err := repo.GetConversation(context.Background(), 1)
	assert.Error(t, err)
	assert.Error(t, repo.SaveConversation(context.Background(), models.NewConversation(1, 1)))
}

func TestPingAndClose(t *testing.T) {
	s := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: s.Addr()})

	require.NoError(t, Ping(context.Background(), client))
	require.NoError(t, Close(client))
	assert.Error(t, Ping(context.Background(), nil))
	assert.NoError(t, Close(nil))
}
