package tokens

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const forgetPasswordPrefix = "forget-password:"

// ErrTokenNotFound means the reset token is unknown, expired or was
// already consumed.
var ErrTokenNotFound = errors.New("tokens: reset token not found")

// ResetTokenStore issues and consumes single-use password reset tokens.
type ResetTokenStore interface {
	Create(ctx context.Context, userID int) (string, error)
	// Consume returns the user id the token was issued for and deletes
	// the token so it cannot be replayed.
	Consume(ctx context.Context, token string) (int, error)
}

// RedisTokenStore keeps reset tokens in Redis with a TTL, mirroring the
// forget-password keyspace of the original service.
type RedisTokenStore struct {
	client *redis.Client
	ttl    time.Duration
}

// RedisTokenStoreConfig carries connection and expiry settings.
type RedisTokenStoreConfig struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

func NewRedisTokenStore(cfg RedisTokenStoreConfig) (*RedisTokenStore, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisTokenStore{client: rdb, ttl: cfg.TTL}, nil
}

func (s *RedisTokenStore) Create(ctx context.Context, userID int) (string, error) {
	token := uuid.NewString()
	key := forgetPasswordPrefix + token

	if err := s.client.Set(ctx, key, userID, s.ttl).Err(); err != nil {
		return "", fmt.Errorf("storing reset token: %w", err)
	}

	return token, nil
}

func (s *RedisTokenStore) Consume(ctx context.Context, token string) (int, error) {
	key := forgetPasswordPrefix + token

	raw, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return 0, ErrTokenNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("loading reset token: %w", err)
	}

	userID, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("malformed reset token payload: %w", err)
	}

	if err := s.client.Del(ctx, key).Err(); err != nil {
		return 0, fmt.Errorf("consuming reset token: %w", err)
	}

	return userID, nil
}

func (s *RedisTokenStore) Close() error {
	return s.client.Close()
}
