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

package badger

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/ragbook/core"
	"github.com/poiesic/ragbook/memory"
)

// sessionLog is the stored form of one session. The whole log is one value so
// that append, trim and TTL refresh commit together.
type sessionLog struct {
	Turns     []core.Turn `json:"turns"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// SessionStore implements memory.Store on badger entries with a TTL.
// Besides badger's own expiry, a log whose UpdatedAt is older than the TTL is
// treated as absent.
type SessionStore struct {
	backend *Backend
	opts    memory.Options
	now     func() time.Time
	logger  *slog.Logger
}

var _ memory.Store = (*SessionStore)(nil)

// SessionOption configures a SessionStore.
type SessionOption func(*SessionStore) error

// WithClock overrides the clock used for timestamps and expiry.
func WithClock(now func() time.Time) SessionOption {
	return func(s *SessionStore) error {
		s.now = now
		return nil
	}
}

// NewSessionStore creates a conversation memory on backend.
func NewSessionStore(backend *Backend, opts memory.Options, options ...SessionOption) (*SessionStore, error) {
	if backend == nil {
		return nil, ErrBackendRequired
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	s := &SessionStore{
		backend: backend,
		opts:    opts,
		now:     time.Now,
		logger:  slog.Default().With("component", "badger-memory"),
	}
	for _, option := range options {
		if err := option(s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Name returns "badger".
func (s *SessionStore) Name() string {
	return "badger"
}

// load reads a live session log. Expired or missing logs return nil.
func (s *SessionStore) load(tx *badger.Txn, sessionID string) (*sessionLog, error) {
	item, err := tx.Get(makeSessionKey(sessionID))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var log sessionLog
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &log)
	}); err != nil {
		return nil, err
	}
	if !s.now().Before(log.UpdatedAt.Add(s.opts.TTL)) {
		return nil, nil
	}
	return &log, nil
}

func (s *SessionStore) save(tx *badger.Txn, sessionID string, log *sessionLog) error {
	log.UpdatedAt = s.now().UTC()
	value, err := json.Marshal(log)
	if err != nil {
		return err
	}
	return tx.SetEntry(badger.NewEntry(makeSessionKey(sessionID), value).WithTTL(s.opts.TTL))
}

// Append adds a turn, trims to MaxMessages and refreshes the TTL in one transaction.
func (s *SessionStore) Append(ctx context.Context, sessionID string, role core.Role, content string) error {
	if err := memory.ValidateAppend(sessionID, role, content); err != nil {
		return err
	}

	err := s.backend.Update(func(tx *badger.Txn) error {
		log, err := s.load(tx, sessionID)
		if err != nil {
			return err
		}
		if log == nil {
			log = &sessionLog{}
		}
		log.Turns = append(log.Turns, core.Turn{Role: role, Content: content, Timestamp: s.now().UTC()})
		if len(log.Turns) > s.opts.MaxMessages {
			log.Turns = log.Turns[len(log.Turns)-s.opts.MaxMessages:]
		}
		return s.save(tx, sessionID, log)
	})
	if err != nil {
		s.logger.Error("failed to append turn", "session", sessionID, "err", err)
		return core.External("badger append", err)
	}
	return nil
}

// Recent returns the newest count turns, oldest first.
func (s *SessionStore) Recent(ctx context.Context, sessionID string, count int) ([]core.Turn, error) {
	turns, err := s.All(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return memory.Tail(turns, count), nil
}

// All returns every retained turn.
func (s *SessionStore) All(ctx context.Context, sessionID string) ([]core.Turn, error) {
	var turns []core.Turn
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		log, err := s.load(tx, sessionID)
		if err != nil || log == nil {
			return err
		}
		turns = log.Turns
		return nil
	}, false)
	if err != nil {
		return nil, core.External("badger read session", err)
	}
	if turns == nil {
		turns = []core.Turn{}
	}
	return turns, nil
}

// Exists reports whether the session has a live log.
func (s *SessionStore) Exists(ctx context.Context, sessionID string) (bool, error) {
	exists := false
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		log, err := s.load(tx, sessionID)
		exists = log != nil
		return err
	}, false)
	if err != nil {
		return false, core.External("badger read session", err)
	}
	return exists, nil
}

// Clear removes the session log.
func (s *SessionStore) Clear(ctx context.Context, sessionID string) error {
	err := s.backend.Update(func(tx *badger.Txn) error {
		return tx.Delete(makeSessionKey(sessionID))
	})
	if err != nil {
		return core.External("badger clear session", err)
	}
	return nil
}

// Extend rewrites a live log with a fresh TTL.
func (s *SessionStore) Extend(ctx context.Context, sessionID string) (bool, error) {
	extended := false
	err := s.backend.Update(func(tx *badger.Txn) error {
		log, err := s.load(tx, sessionID)
		if err != nil || log == nil {
			return err
		}
		extended = true
		return s.save(tx, sessionID, log)
	})
	if err != nil {
		return false, core.External("badger extend session", err)
	}
	return extended, nil
}

// Ping fails once the backend is closed.
func (s *SessionStore) Ping(ctx context.Context) error {
	if s.backend.IsClosed() {
		return core.External("badger ping", errors.New("database is closed"))
	}
	return nil
}

// Close is a no-op. The backend is closed by its owner.
func (s *SessionStore) Close() error {
	return nil
}
