package identity

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mohamedebada21/last-online-halal/internal/apperr"
	"github.com/mohamedebada21/last-online-halal/internal/domain"
)

const sessionPrefix = "storefront:session:"

type RedisSessions struct {
	client *redis.Client
}

func NewRedisSessions(client *redis.Client) *RedisSessions {
	return &RedisSessions{client: client}
}

func (s *RedisSessions) Put(ctx context.Context, token string, userID domain.UserID, ttl time.Duration) error {
	if err := s.client.Set(ctx, sessionPrefix+token, string(userID), ttl).Err(); err != nil {
		return fmt.Errorf("store session: %w", err)
	}
	return nil
}

func (s *RedisSessions) Get(ctx context.Context, token string) (domain.UserID, error) {
	v, err := s.client.Get(ctx, sessionPrefix+token).Result()
	if errors.Is(err, redis.Nil) {
		return "", apperr.New("session.Get", apperr.ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("load session: %w", err)
	}
	return domain.UserID(v), nil
}

func (s *RedisSessions) Delete(ctx context.Context, token string) error {
	if err := s.client.Del(ctx, sessionPrefix+token).Err(); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

type memorySession struct {
	userID  domain.UserID
	expires time.Time
}

type MemorySessions struct {
	mu       sync.Mutex
	sessions map[string]memorySession
	now      func() time.Time
}

func NewMemorySessions() *MemorySessions {
	return &MemorySessions{sessions: make(map[string]memorySession), now: time.Now}
}

func (s *MemorySessions) Put(_ context.Context, token string, userID domain.UserID, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var expires time.Time
	if ttl > 0 {
		expires = s.now().Add(ttl)
	}
	s.sessions[token] = memorySession{userID: userID, expires: expires}
	return nil
}

func (s *MemorySessions) Get(_ context.Context, token string) (domain.UserID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[token]
	if ok && !sess.expires.IsZero() && !s.now().Before(sess.expires) {
		delete(s.sessions, token)
		ok = false
	}
	if !ok {
		return "", apperr.New("session.Get", apperr.ErrNotFound)
	}
	return sess.userID, nil
}

func (s *MemorySessions) Delete(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, token)
	return nil
}
