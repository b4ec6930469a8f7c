package ratelimit

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisPrefix = "abuseguard:rl:"

// RedisStore keeps admission records in Redis so a restart does not
// forget active penalty blocks. Values carry a TTL so abandoned clients
// age out server-side in addition to engine eviction.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

var _ RecordStore = (*RedisStore)(nil)

// RedisConfig configures a RedisStore.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	// TTL for stored records; defaults to 1 hour.
	TTL time.Duration
}

func NewRedisStore(cfg RedisConfig) *RedisStore {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ttl := cfg.TTL
	if ttl == 0 {
		ttl = time.Hour
	}

	return &RedisStore{client: client, ttl: ttl}
}

func (s *RedisStore) Get(key string) (*Record, error) {
	val, err := s.client.Get(context.Background(), redisPrefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var rec Record
	if err := json.Unmarshal([]byte(val), &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *RedisStore) Set(key string, rec *Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return s.client.Set(context.Background(), redisPrefix+key, data, s.ttl).Err()
}

func (s *RedisStore) Delete(key string) error {
	return s.client.Del(context.Background(), redisPrefix+key).Err()
}

func (s *RedisStore) ForEach(fn func(key string, rec Record) bool) error {
	ctx := context.Background()
	iter := s.client.Scan(ctx, 0, redisPrefix+"*", 0).Iterator()

	for iter.Next(ctx) {
		redisKey := iter.Val()
		val, err := s.client.Get(ctx, redisKey).Result()
		if errors.Is(err, redis.Nil) {
			continue // expired between SCAN and GET
		}
		if err != nil {
			return err
		}

		var rec Record
		if err := json.Unmarshal([]byte(val), &rec); err != nil {
			continue // skip corrupt entries rather than abort iteration
		}
		if !fn(strings.TrimPrefix(redisKey, redisPrefix), rec) {
			break
		}
	}
	return iter.Err()
}

// Ping checks connectivity; used at boot to fail fast.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
