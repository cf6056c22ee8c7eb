package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisKeyPrefix namespaces codescan keys in a shared Redis.
const DefaultRedisKeyPrefix = "codescan:"

// RedisStore keeps the code list as a JSON string and the settings as a hash.
type RedisStore struct {
	client      *redis.Client
	codesKey    string
	settingsKey string
}

// NewRedisStore connects to url and verifies the connection with PING.
func NewRedisStore(ctx context.Context, url, prefix, slot string) (*RedisStore, error) {
	if url == "" {
		return nil, errors.New("redis store: url is required")
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis store: parse url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis store: ping: %w", err)
	}
	return newRedisStoreWithClient(client, prefix, slot), nil
}

func newRedisStoreWithClient(client *redis.Client, prefix, slot string) *RedisStore {
	if prefix == "" {
		prefix = DefaultRedisKeyPrefix
	}
	if slot == "" {
		slot = DefaultSlot
	}
	return &RedisStore{
		client:      client,
		codesKey:    prefix + slot,
		settingsKey: prefix + slot + ":settings",
	}
}

func (r *RedisStore) LoadCodes(ctx context.Context) ([]string, error) {
	data, err := r.client.Get(ctx, r.codesKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis store: load codes: %w", err)
	}

	var codes []string
	if err := json.Unmarshal(data, &codes); err != nil {
		return nil, fmt.Errorf("redis store: decode codes: %w", err)
	}
	return codes, nil
}

func (r *RedisStore) SaveCodes(ctx context.Context, codes []string) error {
	if codes == nil {
		codes = []string{}
	}
	data, err := json.Marshal(codes)
	if err != nil {
		return fmt.Errorf("redis store: encode codes: %w", err)
	}
	if err := r.client.Set(ctx, r.codesKey, data, 0).Err(); err != nil {
		return fmt.Errorf("redis store: save codes: %w", err)
	}
	return nil
}

func (r *RedisStore) LoadSettings(ctx context.Context) (Settings, bool, error) {
	fields, err := r.client.HGetAll(ctx, r.settingsKey).Result()
	if err != nil {
		return Settings{}, false, fmt.Errorf("redis store: load settings: %w", err)
	}
	if len(fields) == 0 {
		return Settings{}, false, nil
	}
	return Settings{
		Format:     fields["format"],
		LengthSpec: fields["length_spec"],
	}, true, nil
}

func (r *RedisStore) SaveSettings(ctx context.Context, s Settings) error {
	err := r.client.HSet(ctx, r.settingsKey, map[string]interface{}{
		"format":      s.Format,
		"length_spec": s.LengthSpec,
	}).Err()
	if err != nil {
		return fmt.Errorf("redis store: save settings: %w", err)
	}
	return nil
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}
