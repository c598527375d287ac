// Package memory defines the per-session conversation log.
//
// A session log is bounded twice: it keeps at most MaxMessages turns,
// trimming from the oldest end, and it expires as a whole once its most recent
// write is older than TTL. An expired log cannot be told apart from one that
// never existed.
//
// Each Append is atomic: the push, the trim and the TTL refresh are observed
// together or not at all. Concurrent appends to one session are not serialized
// across calls, so their relative order is whichever write lands last.
package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/poiesic/ragbook/core"
)

const (
	// DefaultTTL is the idle time after which a session log expires.
	DefaultTTL = time.Hour

	// DefaultMaxMessages is the number of turns kept per session.
	DefaultMaxMessages = 20

	keyPrefix = "chat:session:"
)

// ErrSessionRequired indicates an empty session id.
var ErrSessionRequired = errors.New("session id is required")

// Options bounds every session log of a store.
type Options struct {
	TTL         time.Duration `yaml:"ttl" json:"ttl"`
	MaxMessages int           `yaml:"max_messages" json:"max_messages"`
}

// DefaultOptions returns a one hour TTL and a 20 turn window.
func DefaultOptions() Options {
	return Options{TTL: DefaultTTL, MaxMessages: DefaultMaxMessages}
}

// Validate checks that both bounds are positive.
func (o Options) Validate() error {
	if o.TTL <= 0 {
		return core.Invalidf("memory: ttl must be positive")
	}
	if o.MaxMessages < 1 {
		return core.Invalidf("memory: max_messages must be positive")
	}
	return nil
}

// Store is a bounded, expiring conversation log per session.
// Implementations must be thread-safe for concurrent use.
type Store interface {
	// Name identifies the backend.
	Name() string

	// Append adds one turn, trims the log to the newest MaxMessages turns and
	// resets the TTL.
	Append(ctx context.Context, sessionID string, role core.Role, content string) error

	// Recent returns the newest count turns, oldest first.
	Recent(ctx context.Context, sessionID string, count int) ([]core.Turn, error)

	// All returns every retained turn, oldest first.
	All(ctx context.Context, sessionID string) ([]core.Turn, error)

	// Exists reports whether the session has an unexpired log.
	Exists(ctx context.Context, sessionID string) (bool, error)

	// Clear removes the session log.
	Clear(ctx context.Context, sessionID string) error

	// Extend resets the TTL without adding a turn. It reports false when the
	// session has no log.
	Extend(ctx context.Context, sessionID string) (bool, error)

	// Ping checks that the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases resources held by the store.
	Close() error
}

// SessionKey returns the storage key of a session log.
func SessionKey(sessionID string) string {
	return keyPrefix + sessionID
}

// ValidateAppend checks the arguments of Append.
func ValidateAppend(sessionID string, role core.Role, content string) error {
	if sessionID == "" {
		return core.Invalid(ErrSessionRequired)
	}
	return core.ValidateTurn(role, content)
}

// Tail returns the last count turns of turns. A non-positive count returns nothing.
func Tail(turns []core.Turn, count int) []core.Turn {
	if count <= 0 {
		return []core.Turn{}
	}
	if len(turns) > count {
		return turns[len(turns)-count:]
	}
	return turns
}

// EncodeTurn serializes a turn for storage.
func EncodeTurn(turn core.Turn) ([]byte, error) {
	data, err := json.Marshal(turn)
	if err != nil {
		return nil, fmt.Errorf("encode turn: %w", err)
	}
	return data, nil
}

// DecodeTurn parses a stored turn.
func DecodeTurn(data []byte) (core.Turn, error) {
	var turn core.Turn
	if err := json.Unmarshal(data, &turn); err != nil {
		return core.Turn{}, fmt.Errorf("decode turn: %w", err)
	}
	return turn, nil
}
