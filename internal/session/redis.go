package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"ivr-platform/internal/dialogue"
	"ivr-platform/pkg/utils"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrLockTimeout is returned when a call's turn lock could not be acquired in
// time, or expired before the turn could write.
var ErrLockTimeout = errors.New("session: call lock timeout")

// guardedWriteScript writes or deletes a call's context only while the caller
// still owns the call lock and no tombstone marks the call as ended.
var guardedWriteScript = redis.NewScript(`
-- KEYS[1] = lock key
-- KEYS[2] = tombstone key
-- KEYS[3] = call key
-- ARGV[1] = owner token
-- ARGV[2] = JSON context, or "" to delete
-- ARGV[3] = idle ttl in ms, 0 for none
--
-- Returns:
--   1 on success
--  -1 if the lock expired or belongs to someone else
--  -2 if the call was ended while the lock was held
if redis.call('GET', KEYS[1]) ~= ARGV[1] then
  return -1
end
if redis.call('EXISTS', KEYS[2]) == 1 then
  redis.call('DEL', KEYS[3])
  return -2
end
if ARGV[2] == '' then
  redis.call('DEL', KEYS[3])
  return 1
end
local ttl = tonumber(ARGV[3])
if ttl > 0 then
  redis.call('SET', KEYS[3], ARGV[2], 'PX', ttl)
else
  redis.call('SET', KEYS[3], ARGV[2])
end
return 1
`)

// RedisOptions tunes RedisStore. Zero values fall back to defaults.
type RedisOptions struct {
	// Prefix namespaces every key, e.g. "ivr:".
	Prefix string

	// IdleTTL expires contexts not written for this long. Zero keeps them until Remove.
	IdleTTL time.Duration

	// LockTTL bounds how long a crashed turn can hold a call's lock.
	LockTTL time.Duration
	// LockWait is how long Update waits for a busy call before giving up.
	LockWait     time.Duration
	PollInterval time.Duration
}

func (o RedisOptions) withDefaults() RedisOptions {
	out := o
	if out.Prefix == "" {
		out.Prefix = "ivr:"
	}
	if out.IdleTTL < 0 {
		out.IdleTTL = 0
	}
	if out.LockTTL <= 0 {
		out.LockTTL = 5 * time.Second
	}
	if out.LockWait <= 0 {
		out.LockWait = 2 * time.Second
	}
	if out.PollInterval <= 0 {
		out.PollInterval = 25 * time.Millisecond
	}
	return out
}

// RedisStore shares call contexts between API replicas. Each context is a JSON
// value under <prefix>call:<call_id>; Update serializes turns of one call with a
// lock key <prefix>lock:<call_id> (see utils.TryLock). A Remove that cannot take
// the lock leaves <prefix>ended:<call_id> so the in-flight turn cannot write back.
type RedisStore struct {
	rdb   *redis.Client
	opts  RedisOptions
	clock func() time.Time
}

func NewRedisStore(rdb *redis.Client, opts RedisOptions) *RedisStore {
	return &RedisStore{rdb: rdb, opts: opts.withDefaults(), clock: time.Now}
}

func (s *RedisStore) callKey(callID string) string  { return s.opts.Prefix + "call:" + callID }
func (s *RedisStore) lockKey(callID string) string  { return s.opts.Prefix + "lock:" + callID }
func (s *RedisStore) endedKey(callID string) string { return s.opts.Prefix + "ended:" + callID }

func (s *RedisStore) Get(ctx context.Context, callID string) (dialogue.CallContext, error) {
	if strings.TrimSpace(callID) == "" {
		return dialogue.CallContext{}, ErrInvalidCallID
	}
	return s.read(ctx, callID)
}

func (s *RedisStore) Put(ctx context.Context, callID string, cc dialogue.CallContext) error {
	if strings.TrimSpace(callID) == "" {
		return ErrInvalidCallID
	}
	if err := checkOwner(callID, cc); err != nil {
		return err
	}
	_, err := s.write(ctx, callID, cc)
	return err
}

// Remove deletes the call's context. It waits briefly for an in-flight turn; if
// the lock stays busy it marks the call ended for one lock TTL, which makes the
// holder's write fail with ErrCallEnded, and deletes anyway.
func (s *RedisStore) Remove(ctx context.Context, callID string) error {
	if strings.TrimSpace(callID) == "" {
		return nil
	}
	token, err := s.lock(ctx, callID)
	if err != nil && !errors.Is(err, ErrLockTimeout) {
		return err
	}
	if token != "" {
		defer s.unlock(callID, token)
	} else if err := s.rdb.Set(ctx, s.endedKey(callID), "1", s.opts.LockTTL).Err(); err != nil {
		return fmt.Errorf("session: redis tombstone: %w", err)
	}
	if err := s.rdb.Del(ctx, s.callKey(callID)).Err(); err != nil {
		return fmt.Errorf("session: redis del: %w", err)
	}
	return nil
}

func (s *RedisStore) Update(ctx context.Context, callID string, fn UpdateFunc) (dialogue.CallContext, error) {
	if strings.TrimSpace(callID) == "" {
		return dialogue.CallContext{}, ErrInvalidCallID
	}
	token, err := s.lock(ctx, callID)
	if err != nil {
		return dialogue.CallContext{}, err
	}
	defer s.unlock(callID, token)

	cur, err := s.read(ctx, callID)
	if err != nil {
		return dialogue.CallContext{}, err
	}
	next, keep, err := fn(cur)
	if err != nil {
		return dialogue.CallContext{}, err
	}
	if !keep {
		if err := s.guardedWrite(ctx, callID, token, nil); err != nil {
			return dialogue.CallContext{}, err
		}
		return next, nil
	}
	if err := checkOwner(callID, next); err != nil {
		return dialogue.CallContext{}, err
	}
	next = s.stamp(callID, next)
	b, err := json.Marshal(next)
	if err != nil {
		return dialogue.CallContext{}, err
	}
	if err := s.guardedWrite(ctx, callID, token, b); err != nil {
		return dialogue.CallContext{}, err
	}
	return next, nil
}

// guardedWrite stores payload (or deletes the context when payload is nil)
// under the call lock identified by token.
func (s *RedisStore) guardedWrite(ctx context.Context, callID, token string, payload []byte) error {
	keys := []string{s.lockKey(callID), s.endedKey(callID), s.callKey(callID)}
	res, err := guardedWriteScript.Run(ctx, s.rdb, keys, token, string(payload), s.opts.IdleTTL.Milliseconds()).Int()
	if err != nil {
		return fmt.Errorf("session: redis write: %w", err)
	}
	switch res {
	case 1:
		return nil
	case -2:
		return ErrCallEnded
	default:
		return fmt.Errorf("%w: lock expired before write", ErrLockTimeout)
	}
}

func (s *RedisStore) List(ctx context.Context) ([]dialogue.CallContext, error) {
	var keys []string
	iter := s.rdb.Scan(ctx, 0, s.opts.Prefix+"call:*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("session: redis scan: %w", err)
	}
	out := make([]dialogue.CallContext, 0, len(keys))
	if len(keys) == 0 {
		return out, nil
	}
	vals, err := s.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("session: redis mget: %w", err)
	}
	for i, v := range vals {
		raw, ok := v.(string)
		if !ok {
			// Expired or removed between SCAN and MGET.
			continue
		}
		var cc dialogue.CallContext
		if err := json.Unmarshal([]byte(raw), &cc); err != nil {
			return nil, fmt.Errorf("%w: key %s", ErrInternalState, keys[i])
		}
		out = append(out, cc)
	}
	return out, nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

func (s *RedisStore) read(ctx context.Context, callID string) (dialogue.CallContext, error) {
	raw, err := s.rdb.Get(ctx, s.callKey(callID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return dialogue.NewCallContext(callID), nil
	}
	if err != nil {
		return dialogue.CallContext{}, fmt.Errorf("session: redis get: %w", err)
	}
	var cc dialogue.CallContext
	if err := json.Unmarshal(raw, &cc); err != nil {
		return dialogue.CallContext{}, fmt.Errorf("%w: %v", ErrInternalState, err)
	}
	if cc.CallID != callID {
		return dialogue.CallContext{}, ErrInternalState
	}
	return cc, nil
}

func (s *RedisStore) stamp(callID string, cc dialogue.CallContext) dialogue.CallContext {
	now := s.clock().UTC()
	cc.CallID = callID
	if cc.CreatedAt.IsZero() {
		cc.CreatedAt = now
	}
	cc.UpdatedAt = now
	return cc
}

func (s *RedisStore) write(ctx context.Context, callID string, cc dialogue.CallContext) (dialogue.CallContext, error) {
	cc = s.stamp(callID, cc)
	b, err := json.Marshal(cc)
	if err != nil {
		return dialogue.CallContext{}, err
	}
	if err := s.rdb.Set(ctx, s.callKey(callID), b, s.opts.IdleTTL).Err(); err != nil {
		return dialogue.CallContext{}, fmt.Errorf("session: redis set: %w", err)
	}
	return cc, nil
}

// lock acquires the call's turn lock and returns the owner token.
func (s *RedisStore) lock(ctx context.Context, callID string) (string, error) {
	token := uuid.NewString()
	deadline := s.clock().Add(s.opts.LockWait)
	for {
		ok, err := utils.TryLock(ctx, s.rdb, s.lockKey(callID), token, s.opts.LockTTL)
		if err != nil {
			return "", fmt.Errorf("session: redis lock: %w", err)
		}
		if ok {
			return token, nil
		}
		if !s.clock().Before(deadline) {
			return "", ErrLockTimeout
		}
		t := time.NewTimer(s.opts.PollInterval)
		select {
		case <-ctx.Done():
			t.Stop()
			return "", ctx.Err()
		case <-t.C:
		}
	}
}

func (s *RedisStore) unlock(callID, token string) {
	// Release even when the turn's context was canceled.
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, _ = utils.ReleaseLock(ctx, s.rdb, s.lockKey(callID), token)
}
