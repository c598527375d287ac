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
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/poiesic/ragbook/core"
	"github.com/poiesic/ragbook/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock is a manually advanced clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestSessionStore(t *testing.T, opts memory.Options) (*SessionStore, *fakeClock) {
	t.Helper()
	backend, err := OpenBackend("", true)
	require.NoError(t, err)
	t.Cleanup(func() { backend.Close() })

	clock := &fakeClock{now: time.Now()}
	store, err := NewSessionStore(backend, opts, WithClock(clock.Now))
	require.NoError(t, err)
	return store, clock
}

func contents(turns []core.Turn) []string {
	out := make([]string, len(turns))
	for i, turn := range turns {
		out[i] = turn.Content
	}
	return out
}

func TestNewSessionStore_Validation(t *testing.T) {
	_, err := NewSessionStore(nil, memory.DefaultOptions())
	assert.ErrorIs(t, err, ErrBackendRequired)

	backend, err := OpenBackend("", true)
	require.NoError(t, err)
	defer backend.Close()
	_, err = NewSessionStore(backend, memory.Options{})
	assert.ErrorIs(t, err, core.ErrValidation)
}

func TestSessionStore_AppendAndRecent(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestSessionStore(t, memory.DefaultOptions())

	require.NoError(t, store.Append(ctx, "s1", core.RoleUser, "hello"))
	require.NoError(t, store.Append(ctx, "s1", core.RoleAssistant, "hi there"))
	require.NoError(t, store.Append(ctx, "s1", core.RoleUser, "bye"))

	recent, err := store.Recent(ctx, "s1", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"hi there", "bye"}, contents(recent))
	assert.Equal(t, core.RoleAssistant, recent[0].Role)

	all, err := store.All(ctx, "s1")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	other, err := store.Recent(ctx, "s2", 10)
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestSessionStore_AppendValidation(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestSessionStore(t, memory.DefaultOptions())

	assert.ErrorIs(t, store.Append(ctx, "", core.RoleUser, "x"), memory.ErrSessionRequired)
	assert.ErrorIs(t, store.Append(ctx, "s", core.Role("robot"), "x"), core.ErrInvalidRole)
	assert.ErrorIs(t, store.Append(ctx, "s", core.RoleUser, ""), core.ErrEmptyContent)
}

func TestSessionStore_TrimsOldest(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestSessionStore(t, memory.Options{TTL: time.Hour, MaxMessages: 3})

	for i := range 7 {
		require.NoError(t, store.Append(ctx, "s", core.RoleUser, fmt.Sprintf("m%d", i)))
	}

	all, err := store.All(ctx, "s")
	require.NoError(t, err)
	assert.Equal(t, []string{"m4", "m5", "m6"}, contents(all))
}

func TestSessionStore_Expiry(t *testing.T) {
	ctx := context.Background()
	store, clock := newTestSessionStore(t, memory.Options{TTL: time.Minute, MaxMessages: 20})

	require.NoError(t, store.Append(ctx, "s", core.RoleUser, "one"))
	clock.Advance(50 * time.Second)
	require.NoError(t, store.Append(ctx, "s", core.RoleUser, "two"))

	// The second write refreshed the TTL
	clock.Advance(50 * time.Second)
	exists, err := store.Exists(ctx, "s")
	require.NoError(t, err)
	assert.True(t, exists)

	clock.Advance(11 * time.Second)
	exists, err = store.Exists(ctx, "s")
	require.NoError(t, err)
	assert.False(t, exists)

	recent, err := store.Recent(ctx, "s", 10)
	require.NoError(t, err)
	assert.Empty(t, recent)

	// A write after expiry starts a new log
	require.NoError(t, store.Append(ctx, "s", core.RoleUser, "three"))
	all, err := store.All(ctx, "s")
	require.NoError(t, err)
	assert.Equal(t, []string{"three"}, contents(all))
}

func TestSessionStore_Extend(t *testing.T) {
	ctx := context.Background()
	store, clock := newTestSessionStore(t, memory.Options{TTL: time.Minute, MaxMessages: 20})

	ok, err := store.Extend(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Append(ctx, "s", core.RoleUser, "one"))
	clock.Advance(50 * time.Second)
	ok, err = store.Extend(ctx, "s")
	require.NoError(t, err)
	assert.True(t, ok)

	clock.Advance(50 * time.Second)
	exists, err := store.Exists(ctx, "s")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestSessionStore_Clear(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestSessionStore(t, memory.DefaultOptions())

	require.NoError(t, store.Append(ctx, "s", core.RoleUser, "one"))
	require.NoError(t, store.Clear(ctx, "s"))
	require.NoError(t, store.Clear(ctx, "never-existed"))

	exists, err := store.Exists(ctx, "s")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestSessionStore_ConcurrentAppends(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestSessionStore(t, memory.Options{TTL: time.Hour, MaxMessages: 100})

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, store.Append(ctx, "s", core.RoleUser, fmt.Sprintf("m%d", i)))
		}()
	}
	wg.Wait()

	all, err := store.All(ctx, "s")
	require.NoError(t, err)
	assert.Len(t, all, 20)
}

func TestSessionStore_Ping(t *testing.T) {
	backend, err := OpenBackend("", true)
	require.NoError(t, err)
	store, err := NewSessionStore(backend, memory.DefaultOptions())
	require.NoError(t, err)

	assert.NoError(t, store.Ping(context.Background()))
	require.NoError(t, backend.Close())
	assert.ErrorIs(t, store.Ping(context.Background()), core.ErrExternal)
}
