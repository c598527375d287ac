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

// Package blob archives raw uploads so that documents can be re-ingested or
// inspected later. Objects are addressed by slash separated keys of the form
// "{document_id}/{filename}".
package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/poiesic/ragbook/core"
)

var (
	// ErrNotFound indicates a missing object.
	ErrNotFound = fmt.Errorf("object %w", core.ErrNotFound)

	// ErrInvalidKey indicates an empty key or one that escapes its prefix.
	ErrInvalidKey = errors.New("invalid object key")
)

// Store is a flat object store.
// Implementations must be thread-safe for concurrent use.
type Store interface {
	// Name identifies the backend, e.g. "local" or "minio".
	Name() string

	// Put stores size bytes from r under key and returns the location
	// recorded on the document.
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error)

	// Get opens the object stored under key.
	// Returns ErrNotFound if the object doesn't exist.
	Get(ctx context.Context, key string) (io.ReadCloser, error)

	// Delete removes the object. Missing objects are ignored.
	Delete(ctx context.Context, key string) error

	// DeletePrefix removes every object whose key starts with prefix.
	DeletePrefix(ctx context.Context, prefix string) error
}

// Key returns the archive key of an uploaded file. Directory parts of
// filename are dropped.
func Key(documentID, filename string) string {
	name := path.Base(strings.ReplaceAll(filename, "\\", "/"))
	if name == "." || name == "/" || name == ".." {
		name = "upload"
	}
	return documentID + "/" + name
}

// DocumentPrefix returns the key prefix shared by all objects of a document.
func DocumentPrefix(documentID string) string {
	return documentID + "/"
}

// ValidateKey rejects empty, absolute or parent-relative keys.
func ValidateKey(key string) error {
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, "\\") {
		return core.Invalid(fmt.Errorf("%w: %q", ErrInvalidKey, key))
	}
	for _, part := range strings.Split(key, "/") {
		if part == ".." {
			return core.Invalid(fmt.Errorf("%w: %q", ErrInvalidKey, key))
		}
	}
	return nil
}
