// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package redis implements memory.Store on Redis lists.
//
// Each session is one list under memory.SessionKey. Append runs RPUSH, LTRIM
// and EXPIRE in a single MULTI/EXEC transaction, so trimming and the TTL
// refresh are never observed half done. Redis expires the key itself.
package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/poiesic/ragbook/core"
	"github.com/poiesic/ragbook/memory"
	goredis "github.com/redis/go-redis/v9"
)

// ErrClientRequired indicates a nil Redis client.
var ErrClientRequired = errors.New("redis client is required")

// Store implements memory.Store on a Redis server.
type Store struct {
	client goredis.UniversalClient
	opts   memory.Options
	owned  bool
	now    func() time.Time
	logger *slog.Logger
}

var _ memory.Store = (*Store)(nil)

// Option configures a Store.
type Option func(*Store) error

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) error {
		s.logger = logger
		return nil
	}
}

// WithClock overrides the source of turn timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) error {
		s.now = now
		return nil
	}
}

// Open connects to the server at url (redis://[user:pass@]host:port/db) and
// returns a store that closes the connection on Close.
func Open(ctx context.Context, url string, opts memory.Options, options ...Option) (*Store, error) {
	clientOpts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, core.Invalid(fmt.Errorf("redis url: %w", err))
	}
	client := goredis.NewClient(clientOpts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, core.External("redis ping", err)
	}

	store, err := New(client, opts, options...)
	if err != nil {
		client.Close()
		return nil, err
	}
	store.owned = true
	return store, nil
}

// New wraps an existing client. The caller keeps ownership of the client.
func New(client goredis.UniversalClient, opts memory.Options, options ...Option) (*Store, error) {
	if client == nil {
		return nil, ErrClientRequired
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	s := &Store{
		client: client,
		opts:   opts,
		now:    time.Now,
		logger: slog.Default().With("component", "redis-memory"),
	}
	for _, option := range options {
		if err := option(s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Name returns "redis".
func (s *Store) Name() string {
	return "redis"
}

// Append pushes a turn, trims the list and refreshes the TTL atomically.
func (s *Store) Append(ctx context.Context, sessionID string, role core.Role, content string) error {
	if err := memory.ValidateAppend(sessionID, role, content); err != nil {
		return err
	}

	data, err := memory.EncodeTurn(core.Turn{Role: role, Content: content, Timestamp: s.now().UTC()})
	if err != nil {
		return err
	}

	key := memory.SessionKey(sessionID)
	_, err = s.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.RPush(ctx, key, data)
		pipe.LTrim(ctx, key, -int64(s.opts.MaxMessages), -1)
		pipe.Expire(ctx, key, s.opts.TTL)
		return nil
	})
	if err != nil {
		s.logger.Error("failed to append turn", "session", sessionID, "err", err)
		return core.External("redis append", err)
	}
	return nil
}

// Recent returns the newest count turns, oldest first.
func (s *Store) Recent(ctx context.Context, sessionID string, count int) ([]core.Turn, error) {
	if count <= 0 {
		return []core.Turn{}, nil
	}
	return s.lrange(ctx, sessionID, -int64(count), -1)
}

// All returns every retained turn.
func (s *Store) All(ctx context.Context, sessionID string) ([]core.Turn, error) {
	return s.lrange(ctx, sessionID, 0, -1)
}

func (s *Store) lrange(ctx context.Context, sessionID string, start, stop int64) ([]core.Turn, error) {
	values, err := s.client.LRange(ctx, memory.SessionKey(sessionID), start, stop).Result()
	if err != nil {
		return nil, core.External("redis lrange", err)
	}

	turns := make([]core.Turn, 0, len(values))
	for _, value := range values {
		turn, err := memory.DecodeTurn([]byte(value))
		if err != nil {
			s.logger.Warn("skipping undecodable turn", "session", sessionID, "err", err)
			continue
		}
		turns = append(turns, turn)
	}
	return turns, nil
}

// Exists reports whether the session list is present.
func (s *Store) Exists(ctx context.Context, sessionID string) (bool, error) {
	n, err := s.client.Exists(ctx, memory.SessionKey(sessionID)).Result()
	if err != nil {
		return false, core.External("redis exists", err)
	}
	return n > 0, nil
}

// Clear deletes the session list.
func (s *Store) Clear(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, memory.SessionKey(sessionID)).Err(); err != nil {
		return core.External("redis del", err)
	}
	return nil
}

// Extend refreshes the TTL of an existing session list.
func (s *Store) Extend(ctx context.Context, sessionID string) (bool, error) {
	ok, err := s.client.Expire(ctx, memory.SessionKey(sessionID), s.opts.TTL).Result()
	if err != nil {
		return false, core.External("redis expire", err)
	}
	return ok, nil
}

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return core.External("redis ping", err)
	}
	return nil
}

// Close closes the client if the store opened it.
func (s *Store) Close() error {
	if !s.owned {
		return nil
	}
	return s.client.Close()
}
