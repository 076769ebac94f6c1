package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const refreshKeyPrefix = "auth:refresh:"

// RefreshStore keeps opaque refresh tokens in Redis. Each token is single use.
type RefreshStore struct {
	client *redis.Client
	ttl    time.Duration
	now    func() time.Time
}

type refreshPayload struct {
	UserID   int64     `json:"user_id"`
	IP       string    `json:"ip,omitempty"`
	IssuedAt time.Time `json:"issued_at"`
}

// NewRefreshStore constructs a store with the given token lifetime.
func NewRefreshStore(client *redis.Client, ttl time.Duration) *RefreshStore {
	return &RefreshStore{client: client, ttl: ttl, now: time.Now}
}

// Issue creates a new refresh token bound to userID.
func (s *RefreshStore) Issue(ctx context.Context, userID int64, ip string) (string, time.Time, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", time.Time{}, fmt.Errorf("auth: read random: %w", err)
	}
	token := base64.RawURLEncoding.EncodeToString(buf)
	now := s.now().UTC()
	payload, err := json.Marshal(refreshPayload{UserID: userID, IP: ip, IssuedAt: now})
	if err != nil {
		return "", time.Time{}, err
	}
	if err := s.client.Set(ctx, refreshKeyPrefix+token, payload, s.ttl).Err(); err != nil {
		return "", time.Time{}, fmt.Errorf("auth: store refresh token: %w", err)
	}
	return token, now.Add(s.ttl), nil
}

// Consume atomically removes the token and returns its owner.
func (s *RefreshStore) Consume(ctx context.Context, token string) (int64, error) {
	if token == "" {
		return 0, ErrInvalidToken
	}
	raw, err := s.client.GetDel(ctx, refreshKeyPrefix+token).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, ErrInvalidToken
		}
		return 0, fmt.Errorf("auth: consume refresh token: %w", err)
	}
	var payload refreshPayload
	if err := json.Unmarshal(raw, &payload); err != nil || payload.UserID <= 0 {
		return 0, ErrInvalidToken
	}
	return payload.UserID, nil
}

// Revoke deletes the token. Unknown tokens are ignored.
func (s *RefreshStore) Revoke(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return s.client.Del(ctx, refreshKeyPrefix+token).Err()
}
