// Package store is the narrow, parameterized facade over the relational
// store (C1 — Store Gateway). It is not a query builder: every operation is
// a named Go method backed by a prepared statement.
package store

import (
	"database/sql"
	"embed"
	"fmt"
	"sync"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Store holds the connection pool and cached prepared statements.
type Store struct {
	db  *sql.DB
	log *logrus.Entry

	mu    sync.RWMutex
	stmts map[string]*sql.Stmt
}

// Open connects to dsn, runs migrations, and prepares the statement set.
// The pool is fixed at 10 connections per the resource model: operations
// queue rather than spawn unbounded connections.
func Open(dsn string, log *logrus.Entry) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetConnMaxIdleTime(10 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("store: ping: %w", err)
	}

	if err := runMigrations(db, log); err != nil {
		return nil, fmt.Errorf("store: migrate: %w", err)
	}

	s := &Store{db: db, log: log.WithField("component", "store"), stmts: make(map[string]*sql.Stmt)}
	if err := s.prepareAll(); err != nil {
		return nil, err
	}
	return s, nil
}

func runMigrations(db *sql.DB, log *logrus.Entry) error {
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return err
	}
	src, err := iofs.New(migrationFiles, "migrations")
	if err != nil {
		return err
	}
	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		return err
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return err
	}
	log.Info("store: migrations applied")
	return nil
}

// namedQueries is the set of every prepared statement this gateway uses.
// Kept in one map, the way chat_repository.go's prepareStatements does, so
// every SQL string the process sends is visible in one place.
var namedQueries = map[string]string{}

func register(name, query string) string {
	namedQueries[name] = query
	return name
}

func (s *Store) prepareAll() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for name, query := range namedQueries {
		stmt, err := s.db.Prepare(query)
		if err != nil {
			return fmt.Errorf("store: prepare %s: %w", name, err)
		}
		s.stmts[name] = stmt
	}
	return nil
}

func (s *Store) stmt(name string) *sql.Stmt {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stmts[name]
}

// Close releases all prepared statements and the pool.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, stmt := range s.stmts {
		_ = stmt.Close()
	}
	return s.db.Close()
}

// DB exposes the raw pool for components (migrations tooling, health check)
// that genuinely need it; query code elsewhere must go through named methods.
func (s *Store) DB() *sql.DB { return s.db }
