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

package chat

import (
	"context"
	"errors"

	"github.com/poiesic/ragbook/core"
	"github.com/poiesic/ragbook/memory"
)

// Messages returns every retained turn of a session, oldest first.
func (p *Pipeline) Messages(ctx context.Context, sessionID string) ([]core.Turn, error) {
	if sessionID == "" {
		return nil, core.Invalid(memory.ErrSessionRequired)
	}
	turns, err := p.memory.All(ctx, sessionID)
	if err != nil {
		return nil, core.External("read session", err)
	}
	if len(turns) == 0 {
		return nil, ErrSessionNotFound
	}
	return turns, nil
}

// ExtendSession resets the session's TTL.
func (p *Pipeline) ExtendSession(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return core.Invalid(memory.ErrSessionRequired)
	}
	ok, err := p.memory.Extend(ctx, sessionID)
	if err != nil {
		return core.External("extend session", err)
	}
	if !ok {
		return ErrSessionNotFound
	}
	return nil
}

// ClearSession forgets a session's working log and its archived messages.
// Bookings made in the session are kept.
func (p *Pipeline) ClearSession(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return core.Invalid(memory.ErrSessionRequired)
	}
	if err := p.memory.Clear(ctx, sessionID); err != nil {
		return core.External("clear session", err)
	}
	if p.archive == nil {
		return nil
	}
	if err := p.archive.DeleteSession(ctx, sessionID); err != nil && !errors.Is(err, core.ErrNotFound) {
		p.logger.Warn("error deleting archived session", "session", sessionID, "err", err)
	}
	return nil
}
