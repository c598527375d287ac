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

// Package local implements blob.Store on the local filesystem.
package local

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/poiesic/ragbook/blob"
	"github.com/poiesic/ragbook/core"
)

// ErrRootRequired indicates an empty root directory.
var ErrRootRequired = errors.New("root directory required")

// Store keeps objects as files below a root directory.
type Store struct {
	root   string
	logger *slog.Logger
}

var _ blob.Store = (*Store)(nil)

// New creates the root directory if needed.
func New(root string) (blob.Store, error) {
	return newStore(root)
}

func newStore(root string) (*Store, error) {
	if root == "" {
		return nil, ErrRootRequired
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("creating upload directory: %w", err)
	}
	return &Store{
		root:   root,
		logger: slog.Default().With("component", "blob", "backend", "local"),
	}, nil
}

// Name identifies the backend.
func (s *Store) Name() string {
	return "local"
}

func (s *Store) path(key string) (string, error) {
	if err := blob.ValidateKey(key); err != nil {
		return "", err
	}
	return filepath.Join(s.root, filepath.FromSlash(key)), nil
}

// Put writes the object through a temporary file so readers never see a
// partial upload.
func (s *Store) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error) {
	target, err := s.path(key)
	if err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", core.External("blob mkdir", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(target), ".upload-*")
	if err != nil {
		return "", core.External("blob create", err)
	}
	defer os.Remove(tmp.Name())

	written, err := io.Copy(tmp, r)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return "", core.External("blob write", err)
	}
	if size >= 0 && written != size {
		return "", core.External("blob write", fmt.Errorf("wrote %d bytes, expected %d", written, size))
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return "", core.External("blob rename", err)
	}
	s.logger.Debug("stored object", "key", key, "bytes", written)
	return target, nil
}

// Get opens the object file.
func (s *Store) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	target, err := s.path(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(target)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", blob.ErrNotFound, key)
	}
	if err != nil {
		return nil, core.External("blob open", err)
	}
	return f, nil
}

// Delete removes the object file.
func (s *Store) Delete(ctx context.Context, key string) error {
	target, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(target); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return core.External("blob delete", err)
	}
	return nil
}

// DeletePrefix removes the directory holding the prefix. Prefixes must end
// at a directory boundary.
func (s *Store) DeletePrefix(ctx context.Context, prefix string) error {
	target, err := s.path(prefix)
	if err != nil {
		return err
	}
	if filepath.Clean(target) == filepath.Clean(s.root) {
		return core.Invalid(fmt.Errorf("%w: %q", blob.ErrInvalidKey, prefix))
	}
	if err := os.RemoveAll(target); err != nil {
		return core.External("blob delete", err)
	}
	return nil
}
