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

// Package minio implements blob.Store on an S3 compatible bucket.
package minio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/poiesic/ragbook/blob"
	"github.com/poiesic/ragbook/core"
)

var (
	// ErrBucketRequired indicates an empty bucket name.
	ErrBucketRequired = errors.New("bucket name required")

	// ErrEndpointRequired indicates an empty endpoint.
	ErrEndpointRequired = errors.New("endpoint required")
)

// Config describes the bucket and credentials.
type Config struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	UseSSL    bool   `yaml:"use_ssl"`
}

// Store keeps objects in one bucket.
type Store struct {
	client *minio.Client
	bucket string
	logger *slog.Logger
}

var _ blob.Store = (*Store)(nil)

// New connects and creates the bucket if it does not exist.
func New(ctx context.Context, cfg Config) (blob.Store, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, core.External("minio connect", err)
	}

	s := &Store{
		client: client,
		bucket: cfg.Bucket,
		logger: slog.Default().With("component", "blob", "backend", "minio", "bucket", cfg.Bucket),
	}
	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, core.External("minio bucket exists", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, core.External("minio make bucket", err)
		}
		s.logger.Info("created bucket")
	}
	return s, nil
}

func validateConfig(cfg Config) error {
	if cfg.Endpoint == "" {
		return core.Invalid(ErrEndpointRequired)
	}
	if cfg.Bucket == "" {
		return core.Invalid(ErrBucketRequired)
	}
	return nil
}

// Name identifies the backend.
func (s *Store) Name() string {
	return "minio"
}

// Put uploads the object and returns its s3 style location.
func (s *Store) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error) {
	if err := blob.ValidateKey(key); err != nil {
		return "", err
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	info, err := s.client.PutObject(ctx, s.bucket, key, r, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", core.External("minio put", err)
	}
	s.logger.Debug("stored object", "key", key, "bytes", info.Size)
	return location(s.bucket, key), nil
}

// Get opens the object. Existence is checked up front because GetObject is lazy.
func (s *Store) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	if err := blob.ValidateKey(key); err != nil {
		return nil, err
	}
	if _, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{}); err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: %s", blob.ErrNotFound, key)
		}
		return nil, core.External("minio stat", err)
	}
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, core.External("minio get", err)
	}
	return obj, nil
}

// Delete removes the object. S3 treats missing objects as deleted.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := blob.ValidateKey(key); err != nil {
		return err
	}
	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil && !isNotFound(err) {
		return core.External("minio delete", err)
	}
	return nil
}

// DeletePrefix lists and removes every object below prefix.
func (s *Store) DeletePrefix(ctx context.Context, prefix string) error {
	if err := blob.ValidateKey(prefix); err != nil {
		return err
	}
	objects := s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true})

	// ListObjects reports failures in-band; stop feeding removals on the first one.
	var listErr error
	toRemove := make(chan minio.ObjectInfo)
	go func() {
		defer close(toRemove)
		for obj := range objects {
			if obj.Err != nil {
				listErr = obj.Err
				continue
			}
			if listErr == nil {
				toRemove <- obj
			}
		}
	}()

	var removeErr error
	for rerr := range s.client.RemoveObjects(ctx, s.bucket, toRemove, minio.RemoveObjectsOptions{}) {
		if removeErr == nil && rerr.Err != nil {
			removeErr = rerr.Err
		}
	}
	if listErr != nil {
		return core.External("minio list", listErr)
	}
	if removeErr != nil {
		return core.External("minio delete", removeErr)
	}
	return nil
}

func location(bucket, key string) string {
	return "s3://" + bucket + "/" + key
}

func isNotFound(err error) bool {
	code := minio.ToErrorResponse(err).Code
	return code == "NoSuchKey" || code == "NotFound"
}
