package repository

import (
	"context"
	"sync"
	"time"

	"vyvoz/internal/models"
)

// MemoryConversationRepository хранит копии диалогов в памяти процесса.
type MemoryConversationRepository struct {
	mu            sync.Mutex
	conversations map[int64]memoryEntry
	rateLimits    map[int64]*rateLimitEntry
	ttl           time.Duration
	now           func() time.Time
}

type memoryEntry struct {
	conv      *models.Conversation
	expiresAt time.Time
}

type rateLimitEntry struct {
	count     int
	expiresAt time.Time
}

func NewMemoryConversationRepository(ttl time.Duration) *MemoryConversationRepository {
	return &MemoryConversationRepository{
		conversations: make(map[int64]memoryEntry),
		rateLimits:    make(map[int64]*rateLimitEntry),
		ttl:           ttl,
		now:           time.Now,
	}
}

func (r *MemoryConversationRepository) GetConversation(_ context.Context, userID int64) (*models.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.conversations[userID]
	if !ok {
		return nil, nil
	}
	if !entry.expiresAt.IsZero() && r.now().After(entry.expiresAt) {
		delete(r.conversations, userID)
		return nil, nil
	}
	return entry.conv.Clone(), nil
}

func (r *MemoryConversationRepository) SaveConversation(_ context.Context, conv *models.Conversation) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry := memoryEntry{conv: conv.Clone()}
	if r.ttl > 0 {
		entry.expiresAt = r.now().Add(r.ttl)
	}
	r.conversations[conv.UserID] = entry
	return nil
}

func (r *MemoryConversationRepository) DeleteConversation(_ context.Context, userID int64) error {
	r.mu.Lock()
	delete(r.conversations, userID)
	r.mu.Unlock()
	return nil
}

func (r *MemoryConversationRepository) CheckRateLimit(_ context.Context, userID int64, limit int, window time.Duration) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	entry, ok := r.rateLimits[userID]
	if !ok || now.After(entry.expiresAt) {
		entry = &rateLimitEntry{expiresAt: now.Add(window)}
		r.rateLimits[userID] = entry
	}
	entry.count++
	return entry.count <= limit, nil
}
