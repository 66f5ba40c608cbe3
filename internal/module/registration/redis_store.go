package registration

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/simp-lee/gemfront/internal/domain"
)

// DefaultKeyPrefix namespaces pending registrations in Redis.
const DefaultKeyPrefix = "registration:"

// redisCmdable is the part of *redis.Client the store uses.
type redisCmdable interface {
	SetNX(ctx context.Context, key string, value any, expiration time.Duration) *redis.BoolCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	GetDel(ctx context.Context, key string) *redis.StringCmd
}

// redisStore keeps each registration as JSON under prefix+id with a TTL
// matching its expiry, and consumes it with GETDEL.
type redisStore struct {
	rdb    redisCmdable
	prefix string
	now    func() time.Time
}

// NewRedisStore creates a Redis backed store.
func NewRedisStore(rdb *redis.Client, prefix string) domain.PendingRegistrationStore {
	return newRedisStore(rdb, prefix)
}

func newRedisStore(rdb redisCmdable, prefix string) *redisStore {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &redisStore{rdb: rdb, prefix: prefix, now: time.Now}
}

// Save stores p until its expiry.
func (s *redisStore) Save(ctx context.Context, p *domain.PendingRegistration) error {
	ttl := p.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return domain.ErrExpired
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = s.now()
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return domain.NewAppError(domain.CodeInternal, "failed to encode registration", err)
	}
	ok, err := s.rdb.SetNX(ctx, s.prefix+p.ID, raw, ttl).Result()
	if err != nil {
		return domain.NewAppError(domain.CodeInternal, "failed to save registration", err)
	}
	if !ok {
		return domain.NewAppError(domain.CodeAlreadyExists, "registration already exists", nil)
	}
	return nil
}

// Get returns the registration with id.
func (s *redisStore) Get(ctx context.Context, id string) (*domain.PendingRegistration, error) {
	return s.decode(s.rdb.Get(ctx, s.prefix+id).Bytes())
}

// Consume returns and deletes the registration atomically.
func (s *redisStore) Consume(ctx context.Context, id string) (*domain.PendingRegistration, error) {
	return s.decode(s.rdb.GetDel(ctx, s.prefix+id).Bytes())
}

func (s *redisStore) decode(raw []byte, err error) (*domain.PendingRegistration, error) {
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.NewAppError(domain.CodeInternal, "failed to load registration", err)
	}
	var p domain.PendingRegistration
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, domain.NewAppError(domain.CodeInternal, "failed to decode registration", err)
	}
	if p.Expired(s.now()) {
		return nil, domain.ErrExpired
	}
	return &p, nil
}
