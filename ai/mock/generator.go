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

package mock

import (
	"context"
	"fmt"
	"sync"

	"github.com/poiesic/ragbook/ai"
	"github.com/poiesic/ragbook/core"
)

// AnswerCall records the arguments of one GenerateAnswer call.
type AnswerCall struct {
	Query   string
	Context string
	History []core.Turn
}

// MockAnswerGenerator is a test double for ai.AnswerGenerator.
type MockAnswerGenerator struct {
	// GenerateAnswerFunc is called by GenerateAnswer if set.
	GenerateAnswerFunc func(ctx context.Context, query, contextText string, history []core.Turn) (string, error)

	mu    sync.Mutex
	calls []AnswerCall
}

var _ ai.AnswerGenerator = (*MockAnswerGenerator)(nil)

// NewMockAnswerGenerator creates a mock answer generator with default behavior.
func NewMockAnswerGenerator() *MockAnswerGenerator {
	return &MockAnswerGenerator{}
}

// GenerateAnswer returns a fixed answer derived from the query.
func (m *MockAnswerGenerator) GenerateAnswer(ctx context.Context, query, contextText string, history []core.Turn) (string, error) {
	m.mu.Lock()
	m.calls = append(m.calls, AnswerCall{
		Query:   query,
		Context: contextText,
		History: append([]core.Turn(nil), history...),
	})
	m.mu.Unlock()

	if m.GenerateAnswerFunc != nil {
		return m.GenerateAnswerFunc(ctx, query, contextText, history)
	}
	return fmt.Sprintf("Answer to %q using %d bytes of context.", query, len(contextText)), nil
}

// CallCount returns the number of times GenerateAnswer was called.
func (m *MockAnswerGenerator) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// LastCall returns the arguments of the most recent call.
func (m *MockAnswerGenerator) LastCall() (AnswerCall, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.calls) == 0 {
		return AnswerCall{}, false
	}
	return m.calls[len(m.calls)-1], true
}

// Reset clears recorded calls and custom functions.
func (m *MockAnswerGenerator) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
	m.GenerateAnswerFunc = nil
}
