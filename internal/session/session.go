package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix = "ussd:session:v1:"

	// DefaultTTL is the sliding session lifetime.
	DefaultTTL = 300 * time.Second
)

// ErrNotFound is returned by Get when no live session exists for the id.
var ErrNotFound = errors.New("session not found")

// Session is the conversational record for one dialog. It is never
// authoritative for money. Depth counts the input tokens already consumed.
type Session struct {
	ID        string
	Phone     string
	State     State
	Depth     int
	ExpiresAt time.Time
}

// New returns a fresh main-menu session.
func New(id, phone string) Session {
	return Session{ID: id, Phone: phone, State: MainMenu{}}
}

type wireSession struct {
	ID        string    `json:"id"`
	Phone     string    `json:"phone"`
	State     envelope  `json:"state"`
	Depth     int       `json:"depth"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (s Session) MarshalJSON() ([]byte, error) {
	env, err := encodeState(s.State)
	if err != nil {
		return nil, err
	}
	return json.Marshal(wireSession{ID: s.ID, Phone: s.Phone, State: env, Depth: s.Depth, ExpiresAt: s.ExpiresAt})
}

func (s *Session) UnmarshalJSON(b []byte) error {
	var w wireSession
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	state, err := decodeState(w.State)
	if err != nil {
		return err
	}
	*s = Session{ID: w.ID, Phone: w.Phone, State: state, Depth: w.Depth, ExpiresAt: w.ExpiresAt}
	return nil
}

// Store is the TTL-backed session contract consumed by the dialog engine.
type Store interface {
	Get(ctx context.Context, id string) (Session, error)
	Put(ctx context.Context, s Session, ttl time.Duration) error
	Delete(ctx context.Context, id string) error
}

// RedisStore keeps sessions as JSON strings with a Redis expiry.
type RedisStore struct {
	client *redis.Client
	now    func() time.Time
}

// NewRedisStore builds a session store on client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client, now: func() time.Time { return time.Now().UTC() }}
}

// Get loads a session. Redis expiry makes stale sessions absent.
func (r *RedisStore) Get(ctx context.Context, id string) (Session, error) {
	raw, err := r.client.Get(ctx, keyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return Session{}, ErrNotFound
	}
	if err != nil {
		return Session{}, fmt.Errorf("session get: %w", err)
	}
	var s Session
	if err := json.Unmarshal(raw, &s); err != nil {
		return Session{}, fmt.Errorf("session decode: %w", err)
	}
	return s, nil
}

// Put writes the session and restarts its expiry.
func (r *RedisStore) Put(ctx context.Context, s Session, ttl time.Duration) error {
	if s.ID == "" {
		return errors.New("session: empty id")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	s.ExpiresAt = r.now().Add(ttl)
	payload, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("session encode: %w", err)
	}
	if err := r.client.Set(ctx, keyPrefix+s.ID, payload, ttl).Err(); err != nil {
		return fmt.Errorf("session put: %w", err)
	}
	return nil
}

// Delete removes the session. Deleting an absent key is not an error.
func (r *RedisStore) Delete(ctx context.Context, id string) error {
	if err := r.client.Del(ctx, keyPrefix+id).Err(); err != nil {
		return fmt.Errorf("session delete: %w", err)
	}
	return nil
}
