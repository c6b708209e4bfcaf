package registry

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"

	"github.com/Mindburn-Labs/eventgate/pkg/eventtype"
)

// redisCompareAndSwapScript writes a snapshot atomically if the stored revision matches.
// KEYS[1] = current snapshot hash (fields "revision", "snapshot")
// KEYS[2] = history list
// KEYS[3] = set of event type names
// ARGV[1] = expected revision (0 = must not exist)
// ARGV[2] = new revision
// ARGV[3] = event type name
// ARGV[4] = snapshot JSON
// Returns 1 on success, 0 on revision mismatch, -1 if it already exists, -2 if it is missing.
var redisCompareAndSwapScript = redis.NewScript(`
local key = KEYS[1]
local history = KEYS[2]
local names = KEYS[3]
local expected = tonumber(ARGV[1])

local current = redis.call("HGET", key, "revision")
if expected == 0 then
    if current then
        return -1
    end
else
    if not current then
        return -2
    end
    if tonumber(current) ~= expected then
        return 0
    end
end

redis.call("HSET", key, "revision", ARGV[2], "snapshot", ARGV[4])
redis.call("RPUSH", history, ARGV[4])
redis.call("SADD", names, ARGV[3])
return 1
`)

const defaultRedisPrefix = "eventgate"

// RedisStore implements Store on Redis. Writes go through a Lua script so the revision
// check and the history append happen atomically.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore creates a store backed by a new Redis client.
func NewRedisStore(addr, password string, db int) *RedisStore {
	return NewRedisStoreFromClient(redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	}), defaultRedisPrefix)
}

// NewRedisStoreFromClient wraps an existing client; keys are namespaced under prefix.
func NewRedisStoreFromClient(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) currentKey(name string) string {
	return fmt.Sprintf("%s:event_type:%s", s.prefix, name)
}

func (s *RedisStore) historyKey(name string) string {
	return fmt.Sprintf("%s:event_type:%s:history", s.prefix, name)
}

func (s *RedisStore) namesKey() string {
	return s.prefix + ":event_types"
}

func (s *RedisStore) Get(ctx context.Context, name string) (*eventtype.EventType, error) {
	raw, err := s.client.HGet(ctx, s.currentKey(name), "snapshot").Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load event type %s: %w", name, err)
	}
	return decodeSnapshot(raw)
}

func (s *RedisStore) Create(ctx context.Context, et *eventtype.EventType) error {
	return s.write(ctx, 0, et)
}

func (s *RedisStore) CompareAndSwap(ctx context.Context, expected int64, et *eventtype.EventType) error {
	if expected <= 0 {
		return fmt.Errorf("invalid expected revision %d", expected)
	}
	return s.write(ctx, expected, et)
}

func (s *RedisStore) write(ctx context.Context, expected int64, et *eventtype.EventType) error {
	if err := checkWrite(et, expected); err != nil {
		return err
	}
	snapshot, err := encodeSnapshot(et)
	if err != nil {
		return err
	}

	keys := []string{s.currentKey(et.Name), s.historyKey(et.Name), s.namesKey()}
	res, err := redisCompareAndSwapScript.Run(ctx, s.client, keys, expected, et.Revision, et.Name, string(snapshot)).Int64()
	if err != nil {
		return fmt.Errorf("redis script failed: %w", err)
	}
	switch res {
	case 1:
		return nil
	case 0:
		return ErrVersionConflict
	case -1:
		return ErrAlreadyExists
	case -2:
		return ErrNotFound
	default:
		return fmt.Errorf("unexpected redis script result %d", res)
	}
}

func (s *RedisStore) History(ctx context.Context, name string) ([]*eventtype.EventType, error) {
	raws, err := s.client.LRange(ctx, s.historyKey(name), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load history of %s: %w", name, err)
	}
	if len(raws) == 0 {
		return nil, ErrNotFound
	}
	out := make([]*eventtype.EventType, 0, len(raws))
	for _, raw := range raws {
		et, err := decodeSnapshot([]byte(raw))
		if err != nil {
			return nil, err
		}
		out = append(out, et)
	}
	return out, nil
}

func (s *RedisStore) List(ctx context.Context) ([]*eventtype.EventType, error) {
	names, err := s.client.SMembers(ctx, s.namesKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list event types: %w", err)
	}
	sort.Strings(names)

	pipe := s.client.Pipeline()
	cmds := make([]*redis.StringCmd, len(names))
	for i, name := range names {
		cmds[i] = pipe.HGet(ctx, s.currentKey(name), "snapshot")
	}
	if len(names) > 0 {
		if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("failed to list event types: %w", err)
		}
	}

	out := make([]*eventtype.EventType, 0, len(names))
	for _, cmd := range cmds {
		raw, err := cmd.Bytes()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, err
		}
		et, err := decodeSnapshot(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, et)
	}
	return out, nil
}
