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

package sqlstore

import (
	"context"
	"database/sql"
	"time"

	"github.com/poiesic/ragbook/core"
	"github.com/poiesic/ragbook/storage"
)

type sessionRow struct {
	ID            string    `db:"id"`
	SessionID     string    `db:"session_id"`
	TotalMessages int       `db:"total_messages"`
	CreatedAt     time.Time `db:"created_at"`
	LastActivity  time.Time `db:"last_activity"`
}

func (r *sessionRow) toSession() *core.Session {
	return &core.Session{
		ID:            r.ID,
		SessionID:     r.SessionID,
		TotalMessages: r.TotalMessages,
		CreatedAt:     r.CreatedAt.UTC(),
		LastActivity:  r.LastActivity.UTC(),
	}
}

type messageRow struct {
	ID                string         `db:"id"`
	SessionID         string         `db:"session_id"`
	Role              string         `db:"role"`
	Content           string         `db:"content"`
	RetrievedContexts sql.NullString `db:"retrieved_contexts"`
	CreatedAt         time.Time      `db:"created_at"`
}

const sessionColumns = `id, session_id, total_messages, created_at, last_activity`

const messageColumns = `id, session_id, role, content, retrieved_contexts, created_at`

// GetOrCreateSession returns the session, creating it on first use.
func (s *Store) GetOrCreateSession(ctx context.Context, sessionID string) (*core.Session, error) {
	if sessionID == "" {
		return nil, core.Invalidf("session id is required")
	}
	var session *core.Session
	err := s.WithTransaction(ctx, func(ctx context.Context) error {
		if err := s.ensureSession(ctx, sessionID); err != nil {
			return err
		}
		var err error
		session, err = s.GetSession(ctx, sessionID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return session, nil
}

// ensureSession inserts a session row unless one exists.
func (s *Store) ensureSession(ctx context.Context, sessionID string) error {
	now := s.timestamp()
	_, err := s.exec(ctx, `INSERT INTO chat_sessions (`+sessionColumns+`)
		VALUES (?, ?, 0, ?, ?) ON CONFLICT (session_id) DO NOTHING`,
		core.NewID(), sessionID, now, now)
	return translate("create session", err)
}

// GetSession retrieves a session.
func (s *Store) GetSession(ctx context.Context, sessionID string) (*core.Session, error) {
	var row sessionRow
	if err := s.get(ctx, &row, `SELECT `+sessionColumns+` FROM chat_sessions WHERE session_id = ?`, sessionID); err != nil {
		return nil, translate("get session", err)
	}
	return row.toSession(), nil
}

// AppendMessages archives messages in order and bumps the session counters.
// Messages without a timestamp are spaced one microsecond apart so that
// their order survives the round trip.
func (s *Store) AppendMessages(ctx context.Context, sessionID string, messages ...*core.Message) error {
	if len(messages) == 0 {
		return nil
	}
	now := s.timestamp()
	for i, msg := range messages {
		if msg == nil {
			return core.Invalidf("message is nil")
		}
		if err := core.ValidateTurn(msg.Role, msg.Content); err != nil {
			return err
		}
		if msg.ID == "" {
			msg.ID = core.NewID()
		}
		msg.SessionID = sessionID
		if msg.CreatedAt.IsZero() {
			msg.CreatedAt = now.Add(time.Duration(i) * time.Microsecond)
		}
	}

	return s.WithTransaction(ctx, func(ctx context.Context) error {
		last := messages[len(messages)-1].CreatedAt.UTC()
		err := s.execOne(ctx, `UPDATE chat_sessions
			SET total_messages = total_messages + ?, last_activity = ?
			WHERE session_id = ?`, len(messages), last, sessionID)
		if err != nil {
			return translate("append messages", err)
		}
		for _, msg := range messages {
			contexts, err := storage.MarshalContexts(msg.RetrievedContexts)
			if err != nil {
				return err
			}
			_, err = s.exec(ctx, `INSERT INTO chat_messages (`+messageColumns+`)
				VALUES (?, ?, ?, ?, ?, ?)`,
				msg.ID, sessionID, string(msg.Role), msg.Content, nullJSON(contexts), msg.CreatedAt.UTC())
			if err != nil {
				return translate("append message", err)
			}
		}
		return nil
	})
}

// ListMessages returns the archived messages of a session, oldest first.
func (s *Store) ListMessages(ctx context.Context, sessionID string) ([]*core.Message, error) {
	var rows []messageRow
	err := s.selectAll(ctx, &rows, `SELECT `+messageColumns+` FROM chat_messages
		WHERE session_id = ? ORDER BY created_at, id`, sessionID)
	if err != nil {
		return nil, translate("list messages", err)
	}
	messages := make([]*core.Message, 0, len(rows))
	for _, row := range rows {
		contexts, err := storage.UnmarshalContexts([]byte(row.RetrievedContexts.String))
		if err != nil {
			return nil, err
		}
		messages = append(messages, &core.Message{
			ID:                row.ID,
			SessionID:         row.SessionID,
			Role:              core.Role(row.Role),
			Content:           row.Content,
			RetrievedContexts: contexts,
			CreatedAt:         row.CreatedAt.UTC(),
		})
	}
	return messages, nil
}

// DeleteSession removes a session and its messages.
func (s *Store) DeleteSession(ctx context.Context, sessionID string) error {
	return translate("delete session", s.execOne(ctx, `DELETE FROM chat_sessions WHERE session_id = ?`, sessionID))
}
