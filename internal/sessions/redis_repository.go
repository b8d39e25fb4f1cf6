package sessions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultSessionPrefix = "blog:session:"

// ErrDuplicateRefresh is returned when a refresh token is already stored.
var ErrDuplicateRefresh = errors.New("refresh token already exists")

// RedisRepository keeps one JSON value per refresh token under
// "blog:session:<token>". Keys expire with the session and Consume reads and
// deletes in a single GETDEL, so a token is redeemable once across replicas.
type RedisRepository struct {
	client *redis.Client
	prefix string
}

func NewRedisRepository(client *redis.Client, prefix string) *RedisRepository {
	if prefix == "" {
		prefix = defaultSessionPrefix
	}
	return &RedisRepository{client: client, prefix: prefix}
}

// Create stores s with NX semantics. Sessions that already expired are not
// written at all.
func (r *RedisRepository) Create(ctx context.Context, s *Session) error {
	ttl := time.Until(s.ExpiresAt)
	if ttl <= 0 {
		return nil
	}
	b, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	err = r.client.SetArgs(ctx, r.prefix+s.RefreshToken, b, redis.SetArgs{Mode: "NX", TTL: ttl}).Err()
	if errors.Is(err, redis.Nil) {
		return ErrDuplicateRefresh
	}
	return err
}

func (r *RedisRepository) GetByRefresh(ctx context.Context, refresh string) (*Session, error) {
	return r.decode(r.client.Get(ctx, r.prefix+refresh))
}

// Consume removes the session and returns what was stored, or (nil, nil)
// when the token is unknown or was already redeemed.
func (r *RedisRepository) Consume(ctx context.Context, refresh string) (*Session, error) {
	return r.decode(r.client.GetDel(ctx, r.prefix+refresh))
}

func (r *RedisRepository) DeleteByRefresh(ctx context.Context, refresh string) error {
	return r.client.Del(ctx, r.prefix+refresh).Err()
}

func (r *RedisRepository) decode(cmd *redis.StringCmd) (*Session, error) {
	b, err := cmd.Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var s Session
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	if s.Expired(time.Now().UTC()) {
		return nil, nil
	}
	return &s, nil
}
