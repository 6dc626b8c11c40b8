package run

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "infrasim:run:"

// RedisRegistry is a Registry backed by Redis, for deployments where the
// runner and subscription surface live in different processes. State is
// stored as one JSON document per run; the runner remains the only writer
// of run state, so read-modify-write on a single key is safe. The cancel
// flag lives under its own key so any process may set it.
type RedisRegistry struct {
	client *redis.Client
}

// NewRedisRegistry connects to Redis and verifies the connection.
func NewRedisRegistry(addr string) (*RedisRegistry, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return &RedisRegistry{client: client}, nil
}

func stateKey(runID string) string  { return redisKeyPrefix + runID }
func cancelKey(runID string) string { return redisKeyPrefix + runID + ":cancel" }

func (r *RedisRegistry) load(ctx context.Context, runID string) (State, error) {
	data, err := r.client.Get(ctx, stateKey(runID)).Bytes()
	if err == redis.Nil {
		return State{}, ErrNotFound
	}
	if err != nil {
		return State{}, fmt.Errorf("load run %s: %w", runID, err)
	}
	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		return State{}, fmt.Errorf("decode run %s: %w", runID, err)
	}
	return st, nil
}

func (r *RedisRegistry) store(ctx context.Context, st State) error {
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("encode run %s: %w", st.ID, err)
	}
	if err := r.client.Set(ctx, stateKey(st.ID), data, 0).Err(); err != nil {
		return fmt.Errorf("store run %s: %w", st.ID, err)
	}
	return nil
}

// Create registers a new run unless the ID already exists.
func (r *RedisRegistry) Create(st State) error {
	ctx := context.Background()
	if _, err := r.load(ctx, st.ID); err == nil {
		return nil
	}
	return r.store(ctx, st)
}

// Snapshot returns the run's current state.
func (r *RedisRegistry) Snapshot(runID string) (State, bool) {
	st, err := r.load(context.Background(), runID)
	if err != nil {
		return State{}, false
	}
	return st, true
}

// List scans all run keys and returns their states.
func (r *RedisRegistry) List() []State {
	ctx := context.Background()
	var out []State
	iter := r.client.Scan(ctx, 0, redisKeyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		if len(key) > 7 && key[len(key)-7:] == ":cancel" {
			continue
		}
		data, err := r.client.Get(ctx, key).Bytes()
		if err != nil {
			continue
		}
		var st State
		if json.Unmarshal(data, &st) == nil {
			out = append(out, st)
		}
	}
	return out
}

// Append adds a month result to a live run.
func (r *RedisRegistry) Append(runID string, res MonthResult) error {
	ctx := context.Background()
	st, err := r.load(ctx, runID)
	if err != nil {
		return err
	}
	if st.Status.Terminal() {
		return ErrTerminal
	}
	st.Results = append(st.Results, res)
	return r.store(ctx, st)
}

// SetStatus transitions the run; terminal states are final.
func (r *RedisRegistry) SetStatus(runID string, status Status, errMsg string) error {
	ctx := context.Background()
	st, err := r.load(ctx, runID)
	if err != nil {
		return err
	}
	if st.Status.Terminal() {
		return ErrTerminal
	}
	st.Status = status
	if status == StatusFailed {
		st.Error = errMsg
	}
	if status.Terminal() {
		now := time.Now().UTC()
		st.CompletedAt = &now
	}
	return r.store(ctx, st)
}

// SetProgress updates percent complete without moving backward.
func (r *RedisRegistry) SetProgress(runID string, pct int) error {
	ctx := context.Background()
	st, err := r.load(ctx, runID)
	if err != nil {
		return err
	}
	if st.Status.Terminal() {
		return ErrTerminal
	}
	if pct > st.Progress {
		st.Progress = pct
		return r.store(ctx, st)
	}
	return nil
}

// RequestCancel sets the cancel flag for the run.
func (r *RedisRegistry) RequestCancel(runID string) error {
	ctx := context.Background()
	if _, err := r.load(ctx, runID); err != nil {
		return err
	}
	return r.client.Set(ctx, cancelKey(runID), "1", 0).Err()
}

// CancelRequested reports whether the cancel flag is set.
func (r *RedisRegistry) CancelRequested(runID string) bool {
	n, err := r.client.Exists(context.Background(), cancelKey(runID)).Result()
	return err == nil && n > 0
}

// Evict removes the run state and cancel flag.
func (r *RedisRegistry) Evict(runID string) {
	ctx := context.Background()
	r.client.Del(ctx, stateKey(runID), cancelKey(runID))
}

// Close releases the underlying connection pool.
func (r *RedisRegistry) Close() error {
	return r.client.Close()
}
