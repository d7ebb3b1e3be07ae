package idempotency

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// idem:order:create:{user_id}:{key} -> "pending" | order id
const keyOrderCreate = "idem:order:create:%d:%s"

const pendingMarker = "pending"

const DefaultTTL = 24 * time.Hour

var ErrInProgress = errors.New("request with this idempotency key is still in progress")

// Store remembers which order an Idempotency-Key produced so that client
// retries of the same checkout do not place a second order.
type Store struct {
	rdb redis.Cmdable
	ttl time.Duration
}

func New(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:        addr,
		DialTimeout: 2 * time.Second,
		ReadTimeout: 2 * time.Second,
	})
}

func NewStore(rdb redis.Cmdable, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{rdb: rdb, ttl: ttl}
}

// Claim reserves key for userID. If the key already completed it returns the
// order id it produced and found=true. If another request holds it,
// ErrInProgress is returned.
func (s *Store) Claim(ctx context.Context, userID int64, key string) (orderID int64, found bool, err error) {
	k := fmt.Sprintf(keyOrderCreate, userID, key)

	ok, err := s.rdb.SetNX(ctx, k, pendingMarker, s.ttl).Result()
	if err != nil {
		return 0, false, fmt.Errorf("claim idempotency key: %w", err)
	}
	if ok {
		return 0, false, nil
	}

	v, err := s.rdb.Get(ctx, k).Result()
	if errors.Is(err, redis.Nil) {
		// expired between SETNX and GET
		return s.Claim(ctx, userID, key)
	}
	if err != nil {
		return 0, false, fmt.Errorf("read idempotency key: %w", err)
	}
	if v == pendingMarker {
		return 0, false, ErrInProgress
	}

	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("corrupt idempotency value %q: %w", v, err)
	}
	return id, true, nil
}

func (s *Store) Complete(ctx context.Context, userID int64, key string, orderID int64) error {
	k := fmt.Sprintf(keyOrderCreate, userID, key)
	if err := s.rdb.Set(ctx, k, strconv.FormatInt(orderID, 10), s.ttl).Err(); err != nil {
		return fmt.Errorf("complete idempotency key: %w", err)
	}
	return nil
}

// Release forgets a claimed key after a failed attempt so the client may retry.
func (s *Store) Release(ctx context.Context, userID int64, key string) error {
	k := fmt.Sprintf(keyOrderCreate, userID, key)
	if err := s.rdb.Del(ctx, k).Err(); err != nil {
		return fmt.Errorf("release idempotency key: %w", err)
	}
	return nil
}
