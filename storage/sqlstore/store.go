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

// Package sqlstore implements the storage repositories on top of sqlx.
//
// Two dialects are supported: SQLite through the pure Go modernc.org/sqlite
// driver, for single-node deployments and tests, and PostgreSQL through
// pgx. Each dialect carries its own embedded migrations.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/poiesic/ragbook/storage"
)

const (
	// DriverSQLite selects the embedded SQLite dialect. The DSN is a file path.
	DriverSQLite = "sqlite"
	// DriverPostgres selects the PostgreSQL dialect. The DSN is a connection URL.
	DriverPostgres = "pgx"

	sqlitePragmas = "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
)

var (
	// ErrDSNRequired indicates an empty data source name.
	ErrDSNRequired = errors.New("data source name required")
)

type dialect struct {
	migrations string
	dsn        func(string) (string, error)
	configure  func(*sqlx.DB)
}

var dialects = map[string]dialect{
	DriverSQLite: {
		migrations: "sqlite",
		dsn:        sqliteDSN,
		configure: func(db *sqlx.DB) {
			// SQLite serializes writers; one connection keeps transactions from
			// tripping over SQLITE_BUSY.
			db.SetMaxOpenConns(1)
		},
	},
	DriverPostgres: {
		migrations: "postgres",
		dsn:        func(dsn string) (string, error) { return dsn, nil },
		configure: func(db *sqlx.DB) {
			db.SetMaxOpenConns(25)
			db.SetMaxIdleConns(5)
			db.SetConnMaxLifetime(5 * time.Minute)
		},
	},
}

func init() {
	sqlx.BindDriver(DriverSQLite, sqlx.QUESTION)
}

// NormalizeDriver maps accepted driver aliases onto a registered driver name.
func NormalizeDriver(driver string) string {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "", "sqlite", "sqlite3":
		return DriverSQLite
	case "pgx", "postgres", "postgresql":
		return DriverPostgres
	default:
		return driver
	}
}

// Store is a sqlx-backed implementation of storage.Repository.
type Store struct {
	db     *sqlx.DB
	driver string
	now    func() time.Time
	logger *slog.Logger
}

var _ storage.Repository = (*Store)(nil)

// Option configures a Store.
type Option func(*Store) error

// WithClock overrides the time source used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) error {
		s.now = now
		return nil
	}
}

// WithLogger overrides the store logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) error {
		s.logger = logger
		return nil
	}
}

// Open connects to the database, applies pending migrations and returns the
// repository.
func Open(ctx context.Context, driver, dsn string, opts ...Option) (storage.Repository, error) {
	return open(ctx, driver, dsn, opts...)
}

func open(ctx context.Context, driver, dsn string, opts ...Option) (*Store, error) {
	driver = NormalizeDriver(driver)
	d, ok := dialects[driver]
	if !ok {
		return nil, fmt.Errorf("%w: %q", storage.ErrUnknownDriver, driver)
	}
	if strings.TrimSpace(dsn) == "" {
		return nil, ErrDSNRequired
	}
	source, err := d.dsn(dsn)
	if err != nil {
		return nil, err
	}

	db, err := sqlx.Open(driver, source)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	d.configure(db)

	s := &Store{
		db:     db,
		driver: driver,
		now:    time.Now,
		logger: slog.Default().With("component", "sqlstore", "driver", driver),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			db.Close()
			return nil, err
		}
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	if err := s.migrate(ctx, d.migrations); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return s, nil
}

func sqliteDSN(path string) (string, error) {
	if strings.Contains(path, "?") {
		return path, nil
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return "", fmt.Errorf("creating data directory: %w", err)
		}
	}
	return path + "?" + sqlitePragmas, nil
}

// DB exposes the underlying handle.
func (s *Store) DB() *sqlx.DB {
	return s.db
}

// Driver returns the registered driver name.
func (s *Store) Driver() string {
	return s.driver
}

// Ping checks that the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}

type txKey struct{}

// q returns the transaction carried by ctx, or the database handle.
func (s *Store) q(ctx context.Context) sqlx.ExtContext {
	if tx, ok := ctx.Value(txKey{}).(*sqlx.Tx); ok {
		return tx
	}
	return s.db
}

// WithTransaction executes fn within a transaction. Calls nested inside an
// existing transaction join it.
func (s *Store) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(*sqlx.Tx); ok {
		return fn(ctx)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

func (s *Store) get(ctx context.Context, dest any, query string, args ...any) error {
	q := s.q(ctx)
	return sqlx.GetContext(ctx, q, dest, q.Rebind(query), args...)
}

func (s *Store) selectAll(ctx context.Context, dest any, query string, args ...any) error {
	q := s.q(ctx)
	return sqlx.SelectContext(ctx, q, dest, q.Rebind(query), args...)
}

func (s *Store) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	q := s.q(ctx)
	return q.ExecContext(ctx, q.Rebind(query), args...)
}

// execOne runs a statement that must touch exactly one row.
func (s *Store) execOne(ctx context.Context, query string, args ...any) error {
	res, err := s.exec(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}
