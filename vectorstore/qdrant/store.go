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

// Package qdrant implements vectorstore.Store on a Qdrant collection over gRPC.
//
// Qdrant point ids must be integers or UUIDs, so every string key is mapped
// onto a stable UUID with core.KeyUUID and the original key travels in the
// payload under PayloadKey.
package qdrant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"slices"
	"strconv"
	"sync"

	"github.com/qdrant/go-client/qdrant"

	"github.com/poiesic/ragbook/core"
	"github.com/poiesic/ragbook/vectorstore"
)

const (
	// PayloadKey is the payload field holding the entry key.
	PayloadKey = "vector_key"

	defaultHost = "localhost"
	defaultPort = 6334
)

var (
	// ErrCollectionRequired indicates an empty collection name.
	ErrCollectionRequired = errors.New("collection name required")

	// ErrDimensionRequired indicates a non-positive vector dimension.
	ErrDimensionRequired = errors.New("vector dimension must be positive")
)

// Config describes the Qdrant connection and collection.
type Config struct {
	Address    string // host:port of the gRPC endpoint
	APIKey     string
	UseTLS     bool
	Collection string
	Dimension  int
}

// client is the subset of *qdrant.Client used by Store.
type client interface {
	CollectionExists(ctx context.Context, collectionName string) (bool, error)
	GetCollectionInfo(ctx context.Context, collectionName string) (*qdrant.CollectionInfo, error)
	CreateCollection(ctx context.Context, request *qdrant.CreateCollection) error
	Upsert(ctx context.Context, request *qdrant.UpsertPoints) (*qdrant.UpdateResult, error)
	Query(ctx context.Context, request *qdrant.QueryPoints) ([]*qdrant.ScoredPoint, error)
	Delete(ctx context.Context, request *qdrant.DeletePoints) (*qdrant.UpdateResult, error)
	Close() error
}

// Store is a Qdrant-backed vector store.
type Store struct {
	client     client
	collection string
	dimension  int
	logger     *slog.Logger

	mu          sync.Mutex
	initialized bool
}

var _ vectorstore.Store = (*Store)(nil)

// New connects to Qdrant. The collection is created lazily by Initialize.
func New(cfg Config) (vectorstore.Store, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	host, port, err := parseHostPort(cfg.Address)
	if err != nil {
		return nil, core.Invalid(err)
	}
	c, err := qdrant.NewClient(&qdrant.Config{
		Host:   host,
		Port:   port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, core.External("qdrant connect", err)
	}
	return newStore(c, cfg.Collection, cfg.Dimension), nil
}

func newStore(c client, collection string, dimension int) *Store {
	return &Store{
		client:     c,
		collection: collection,
		dimension:  dimension,
		logger:     slog.Default().With("component", "qdrant", "collection", collection),
	}
}

func validateConfig(cfg Config) error {
	if cfg.Collection == "" {
		return core.Invalid(ErrCollectionRequired)
	}
	if cfg.Dimension <= 0 {
		return core.Invalid(ErrDimensionRequired)
	}
	return nil
}

// parseHostPort splits "host:port". Missing parts fall back to localhost:6334.
func parseHostPort(addr string) (string, int, error) {
	if addr == "" {
		return defaultHost, defaultPort, nil
	}
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		// No port given.
		return addr, defaultPort, nil
	}
	if host == "" {
		host = defaultHost
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port <= 0 || port > 65535 {
		return "", 0, fmt.Errorf("invalid qdrant port %q", portStr)
	}
	return host, port, nil
}

// Name identifies the backend.
func (s *Store) Name() string {
	return "qdrant"
}

// Initialize creates the collection with a cosine metric if it does not
// exist, and verifies the dimension of an existing one.
func (s *Store) Initialize(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.initialized {
		return nil
	}

	exists, err := s.client.CollectionExists(ctx, s.collection)
	if err != nil {
		return core.External("qdrant collection exists", err)
	}
	if exists {
		info, err := s.client.GetCollectionInfo(ctx, s.collection)
		if err != nil {
			return core.External("qdrant collection info", err)
		}
		size := info.GetConfig().GetParams().GetVectorsConfig().GetParams().GetSize()
		if size != 0 && int(size) != s.dimension {
			return core.Invalid(fmt.Errorf("%w: collection %q has %d, want %d",
				vectorstore.ErrDimensionMismatch, s.collection, size, s.dimension))
		}
	} else {
		err := s.client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: s.collection,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     uint64(s.dimension),
				Distance: qdrant.Distance_Cosine,
			}),
		})
		if err != nil {
			return core.External("qdrant create collection", err)
		}
		s.logger.Info("created collection", "dimension", s.dimension)
	}
	s.initialized = true
	return nil
}

// Upsert writes entries in batches of vectorstore.MaxBatchSize.
func (s *Store) Upsert(ctx context.Context, entries []vectorstore.Entry) error {
	if len(entries) == 0 {
		return nil
	}
	if err := vectorstore.ValidateEntries(entries, s.dimension); err != nil {
		return err
	}
	if err := s.Initialize(ctx); err != nil {
		return err
	}

	for _, batch := range vectorstore.Batches(entries, vectorstore.MaxBatchSize) {
		points, err := toPoints(batch)
		if err != nil {
			return err
		}
		_, err = s.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: s.collection,
			Wait:           qdrant.PtrOf(true),
			Points:         points,
		})
		if err != nil {
			return core.External("qdrant upsert", err)
		}
	}
	s.logger.Debug("upserted vectors", "count", len(entries))
	return nil
}

// Search returns the topK nearest entries by cosine similarity.
func (s *Store) Search(ctx context.Context, vector []float32, topK int, filter vectorstore.Filter) ([]core.SearchResult, error) {
	if err := vectorstore.ValidateQuery(vector, topK, s.dimension); err != nil {
		return nil, err
	}
	if err := s.Initialize(ctx); err != nil {
		return nil, err
	}

	request := &qdrant.QueryPoints{
		CollectionName: s.collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          qdrant.PtrOf(uint64(topK)),
		WithPayload:    qdrant.NewWithPayload(true),
	}
	if f := toFilter(filter); f != nil {
		request.Filter = f
	}
	points, err := s.client.Query(ctx, request)
	if err != nil {
		return nil, core.External("qdrant query", err)
	}

	results := make([]core.SearchResult, 0, len(points))
	for _, p := range points {
		metadata := fromPayload(p.GetPayload())
		key, _ := metadata[PayloadKey].(string)
		delete(metadata, PayloadKey)
		results = append(results, core.SearchResult{
			Key:      key,
			Score:    p.GetScore(),
			Metadata: metadata,
		})
	}
	return results, nil
}

// Delete removes entries by key in batches.
func (s *Store) Delete(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := s.Initialize(ctx); err != nil {
		return err
	}
	for _, batch := range vectorstore.Batches(keys, vectorstore.MaxBatchSize) {
		ids := make([]*qdrant.PointId, 0, len(batch))
		for _, key := range batch {
			ids = append(ids, pointID(key))
		}
		_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
			CollectionName: s.collection,
			Wait:           qdrant.PtrOf(true),
			Points:         qdrant.NewPointsSelectorIDs(ids),
		})
		if err != nil {
			return core.External("qdrant delete", err)
		}
	}
	return nil
}

// Close closes the gRPC connection.
func (s *Store) Close() error {
	return s.client.Close()
}

func pointID(key string) *qdrant.PointId {
	return qdrant.NewIDUUID(core.KeyUUID(key).String())
}

func toPoints(entries []vectorstore.Entry) ([]*qdrant.PointStruct, error) {
	points := make([]*qdrant.PointStruct, 0, len(entries))
	for _, e := range entries {
		payload := make(map[string]any, len(e.Metadata)+1)
		for k, v := range e.Metadata {
			payload[k] = v
		}
		payload[PayloadKey] = e.Key
		values, err := qdrant.TryValueMap(payload)
		if err != nil {
			return nil, core.Invalid(fmt.Errorf("entry %q metadata: %w", e.Key, err))
		}
		points = append(points, &qdrant.PointStruct{
			Id:      pointID(e.Key),
			Vectors: qdrant.NewVectorsDense(e.Vector),
			Payload: values,
		})
	}
	return points, nil
}

// toFilter converts an equality filter into must-match conditions.
func toFilter(filter vectorstore.Filter) *qdrant.Filter {
	if len(filter) == 0 {
		return nil
	}
	keys := make([]string, 0, len(filter))
	for k := range filter {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	must := make([]*qdrant.Condition, 0, len(keys))
	for _, k := range keys {
		switch v := filter[k].(type) {
		case string:
			must = append(must, qdrant.NewMatch(k, v))
		case bool:
			must = append(must, qdrant.NewMatchBool(k, v))
		case int:
			must = append(must, qdrant.NewMatchInt(k, int64(v)))
		case int64:
			must = append(must, qdrant.NewMatchInt(k, v))
		default:
			must = append(must, qdrant.NewMatch(k, fmt.Sprint(v)))
		}
	}
	return &qdrant.Filter{Must: must}
}

func fromPayload(payload map[string]*qdrant.Value) map[string]any {
	out := make(map[string]any, len(payload))
	for k, v := range payload {
		out[k] = fromValue(v)
	}
	return out
}

func fromValue(v *qdrant.Value) any {
	switch kind := v.GetKind().(type) {
	case *qdrant.Value_StringValue:
		return kind.StringValue
	case *qdrant.Value_IntegerValue:
		return kind.IntegerValue
	case *qdrant.Value_DoubleValue:
		return kind.DoubleValue
	case *qdrant.Value_BoolValue:
		return kind.BoolValue
	case *qdrant.Value_StructValue:
		return fromPayload(kind.StructValue.GetFields())
	case *qdrant.Value_ListValue:
		values := kind.ListValue.GetValues()
		list := make([]any, 0, len(values))
		for _, item := range values {
			list = append(list, fromValue(item))
		}
		return list
	default:
		return nil
	}
}
