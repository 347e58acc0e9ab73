package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	redisPrefix       = "intelfeed"
	redisTxMaxRetries = 5
)

// ErrContended is returned when an optimistic Redis update keeps losing to
// concurrent writers.
var ErrContended = errors.New("topic entry contended")

// RedisStore keeps each topic entry as a JSON value, updated with
// WATCH/MULTI so writers from several processes never interleave.
type RedisStore struct {
	rdb redis.UniversalClient
}

func NewRedisStore(rdb redis.UniversalClient) *RedisStore {
	return &RedisStore{rdb: rdb}
}

// DialRedis parses url, connects and pings the server.
func DialRedis(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	rdb := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return rdb, nil
}

// Key helpers
func topicKey(topic string) string {
	return fmt.Sprintf("%s:topic:%s", redisPrefix, topic)
}

func topicsKey() string {
	return redisPrefix + ":topics"
}

func (s *RedisStore) Load(ctx context.Context, topic string) (Entry, bool, error) {
	return redisLoad(ctx, s.rdb, topic)
}

func (s *RedisStore) Update(ctx context.Context, topic string, fn UpdateFunc) (Entry, error) {
	key := topicKey(topic)

	var result Entry
	txf := func(tx *redis.Tx) error {
		cur, ok, err := redisLoad(ctx, tx, topic)
		if err != nil {
			return err
		}
		next, changed, err := fn(cur, ok)
		if err != nil {
			return err
		}
		if !changed {
			result = cur
			return nil
		}
		data, err := json.Marshal(next)
		if err != nil {
			return fmt.Errorf("failed to marshal entry: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			pipe.SAdd(ctx, topicsKey(), topic)
			return nil
		})
		if err != nil {
			return err
		}
		result = next
		return nil
	}

	for i := 0; i < redisTxMaxRetries; i++ {
		err := s.rdb.Watch(ctx, txf, key)
		if err == nil {
			return result, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return Entry{}, err
	}
	return Entry{}, fmt.Errorf("%w: %s", ErrContended, topic)
}

func (s *RedisStore) Topics(ctx context.Context) ([]string, error) {
	topics, err := s.rdb.SMembers(ctx, topicsKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("smembers failed: %w", err)
	}
	sort.Strings(topics)
	return topics, nil
}

type redisGetter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func redisLoad(ctx context.Context, c redisGetter, topic string) (Entry, bool, error) {
	data, err := c.Get(ctx, topicKey(topic)).Bytes()
	if err == redis.Nil {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("get failed: %w", err)
	}
	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		return Entry{}, false, fmt.Errorf("failed to unmarshal entry: %w", err)
	}
	return e, true, nil
}
