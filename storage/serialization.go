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

package storage

import (
	"encoding/json"
	"fmt"

	"github.com/poiesic/ragbook/core"
)

// MarshalMetadata serializes a free-form metadata map. A nil map becomes nil.
func MarshalMetadata(metadata map[string]any) ([]byte, error) {
	if metadata == nil {
		return nil, nil
	}
	data, err := json.Marshal(metadata)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return data, nil
}

// UnmarshalMetadata deserializes a metadata map. Empty input yields nil.
func UnmarshalMetadata(data []byte) (map[string]any, error) {
	if len(data) == 0 || string(data) == "null" {
		return nil, nil
	}
	var metadata map[string]any
	if err := json.Unmarshal(data, &metadata); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return metadata, nil
}

// MarshalContexts serializes the retrieved contexts of an assistant message.
func MarshalContexts(contexts []core.RetrievedContext) ([]byte, error) {
	if len(contexts) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(contexts)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return data, nil
}

// UnmarshalContexts deserializes retrieved contexts. Empty input yields nil.
func UnmarshalContexts(data []byte) ([]core.RetrievedContext, error) {
	if len(data) == 0 || string(data) == "null" {
		return nil, nil
	}
	var contexts []core.RetrievedContext
	if err := json.Unmarshal(data, &contexts); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return contexts, nil
}
