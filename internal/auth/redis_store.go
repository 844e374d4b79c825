package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisSessionPrefix = "photovault:session:"

// RedisSessionStore keeps sessions in Redis keyed by the token digest. Redis
// evicts expired keys itself, so PurgeExpired is a no-op.
type RedisSessionStore struct {
	client  *redis.Client
	timeout time.Duration
}

// NewRedisSessionStore connects a Redis-backed session store.
func NewRedisSessionStore(addr, password string, db int, timeout time.Duration) (*RedisSessionStore, error) {
	if addr == "" {
		return nil, fmt.Errorf("redis session addr required")
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &RedisSessionStore{client: client, timeout: timeout}, nil
}

// Close releases the Redis client resources.
func (s *RedisSessionStore) Close(ctx context.Context) error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Close()
}

// Save stores the session token with its remaining TTL.
func (s *RedisSessionStore) Save(token string, userID int64, expiresAt time.Time) error {
	hashed, err := hashSessionToken(token)
	if err != nil {
		return err
	}
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return fmt.Errorf("session already expired")
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	value := strconv.FormatInt(userID, 10) + "|" + strconv.FormatInt(expiresAt.UTC().Unix(), 10)
	return s.client.Set(ctx, redisSessionPrefix+hashed, value, ttl).Err()
}

// Get fetches the session details for the provided token.
func (s *RedisSessionStore) Get(token string) (SessionRecord, bool, error) {
	hashed, err := hashSessionToken(token)
	if err != nil {
		return SessionRecord{}, false, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	value, err := s.client.Get(ctx, redisSessionPrefix+hashed).Result()
	if errors.Is(err, redis.Nil) {
		return SessionRecord{}, false, nil
	}
	if err != nil {
		return SessionRecord{}, false, err
	}
	record, err := parseSessionValue(value)
	if err != nil {
		return SessionRecord{}, false, err
	}
	return record, true, nil
}

// Delete removes the session token.
func (s *RedisSessionStore) Delete(token string) error {
	hashed, err := hashSessionToken(token)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	return s.client.Del(ctx, redisSessionPrefix+hashed).Err()
}

// PurgeExpired is satisfied by Redis key TTLs.
func (s *RedisSessionStore) PurgeExpired(time.Time) error {
	return nil
}

// Ping verifies the Redis connection is live.
func (s *RedisSessionStore) Ping(ctx context.Context) error {
	if s == nil || s.client == nil {
		return fmt.Errorf("redis session client not configured")
	}
	return s.client.Ping(ctx).Err()
}

func parseSessionValue(value string) (SessionRecord, error) {
	for i := 0; i < len(value); i++ {
		if value[i] != '|' {
			continue
		}
		userID, err := strconv.ParseInt(value[:i], 10, 64)
		if err != nil {
			return SessionRecord{}, fmt.Errorf("parse session user id: %w", err)
		}
		unix, err := strconv.ParseInt(value[i+1:], 10, 64)
		if err != nil {
			return SessionRecord{}, fmt.Errorf("parse session expiry: %w", err)
		}
		return SessionRecord{UserID: userID, ExpiresAt: time.Unix(unix, 0).UTC()}, nil
	}
	return SessionRecord{}, fmt.Errorf("malformed session value")
}
