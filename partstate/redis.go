package partstate

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"partpicker/consolidate"
)

// RedisStore keeps the consolidated read model in Redis so other processes
// can read totals without touching the database.
type RedisStore struct {
	client *redis.Client
	prefix string
}

func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "partpicker"
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (r *RedisStore) partKey(pn string) string { return r.prefix + ":part:" + pn }
func (r *RedisStore) allPartsKey() string      { return r.prefix + ":parts" }
func (r *RedisStore) loadedAtKey() string      { return r.prefix + ":loaded_at" }

// ReplaceParts drops every cached part and writes the new set in one
// MULTI/EXEC block, so readers see either the old set or the new one.
func (r *RedisStore) ReplaceParts(ctx context.Context, parts []*consolidate.Part, at time.Time) error {
	old, err := r.client.SMembers(ctx, r.allPartsKey()).Result()
	if err != nil {
		return err
	}
	payloads := make(map[string][]byte, len(parts))
	for _, p := range parts {
		data, err := json.Marshal(p)
		if err != nil {
			return err
		}
		payloads[p.PartNumber] = data
	}
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, pn := range old {
			pipe.Del(ctx, r.partKey(pn))
		}
		pipe.Del(ctx, r.allPartsKey())
		for pn, data := range payloads {
			pipe.Set(ctx, r.partKey(pn), data, 0)
			pipe.SAdd(ctx, r.allPartsKey(), pn)
		}
		pipe.Set(ctx, r.loadedAtKey(), at.UTC().Format(time.RFC3339Nano), 0)
		return nil
	})
	return err
}

func (r *RedisStore) GetPart(ctx context.Context, pn string) (*consolidate.Part, error) {
	data, err := r.client.Get(ctx, r.partKey(pn)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var p consolidate.Part
	return &p, json.Unmarshal(data, &p)
}

func (r *RedisStore) ListPartNumbers(ctx context.Context) ([]string, error) {
	return r.client.SMembers(ctx, r.allPartsKey()).Result()
}

func (r *RedisStore) LoadedAt(ctx context.Context) (time.Time, error) {
	s, err := r.client.Get(ctx, r.loadedAtKey()).Result()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, err
	}
	return time.Parse(time.RFC3339Nano, s)
}

func (r *RedisStore) FlushAll(ctx context.Context) error {
	return r.ReplaceParts(ctx, nil, time.Time{})
}
