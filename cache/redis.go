// Package cache keeps recommendation rankings in Redis, so that the pages of one
// listing are cut from the same snapshot.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"odinbook/domain"
)

// DefaultTTL bounds how long a ranking snapshot is served.
const DefaultTTL = 10 * time.Minute

type RedisRanking struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisRanking(client *redis.Client, ttl time.Duration) *RedisRanking {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisRanking{client: client, ttl: ttl}
}

var _ domain.RankingCache = &RedisRanking{}

func rankingKey(subjectID int) string {
	return fmt.Sprintf("ranking:%d", subjectID)
}

// Get returns the stored ranking, and false when there is none.
func (r *RedisRanking) Get(ctx context.Context, subjectID int) ([]domain.Ranked, bool, error) {
	data, err := r.client.Get(ctx, rankingKey(subjectID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var ranking []domain.Ranked
	if err := json.Unmarshal(data, &ranking); err != nil {
		return nil, false, fmt.Errorf("decoding ranking of %d: %w", subjectID, err)
	}
	return ranking, true, nil
}

func (r *RedisRanking) Set(ctx context.Context, subjectID int, ranking []domain.Ranked) error {
	if ranking == nil {
		ranking = []domain.Ranked{}
	}
	data, err := json.Marshal(ranking)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, rankingKey(subjectID), data, r.ttl).Err()
}

func (r *RedisRanking) Invalidate(ctx context.Context, subjectID int) error {
	return r.client.Del(ctx, rankingKey(subjectID)).Err()
}

// Connect opens a client on addr and checks that the server answers.
func Connect(ctx context.Context, addr string) (*redis.Client, error) {
	opts, err := redis.ParseURL(addr)
	if err != nil {
		opts = &redis.Options{Addr: addr}
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connecting to redis at %s: %w", addr, err)
	}
	return client, nil
}
