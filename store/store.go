// Package store implements the pgx-backed persistence layer shared by the
// gossip importer, block scanner, closure classifier, and chain-analysis
// deducer. Channels live in a single wide table with JSON columns for the
// open/close/txs facts, mirroring the nested structure of graph.Channel,
// and scalar columns for everything queried directly.
package store

import (
	"context"
	"embed"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v4/pgxpool"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// Store wraps a pooled Postgres connection and implements the narrow
// Store interfaces defined by the gossip, scanner, and deducer packages.
type Store struct {
	pool *pgxpool.Pool
}

// Open connects to Postgres at dsn and returns a ready Store. It does not
// run migrations; call Migrate first on a fresh database.
func Open(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.Connect(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("store: connecting: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

// Migrate applies every pending embedded migration to dsn.
func Migrate(dsn string) error {
	src, err := iofs.New(migrationFS, "migrations")
	if err != nil {
		return fmt.Errorf("store: loading migrations: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", src, dsn)
	if err != nil {
		return fmt.Errorf("store: preparing migrator: %w", err)
	}

	err = m.Up()
	switch err {
	case nil:
		log.Infof("store: migrations applied")
	case migrate.ErrNoChange:
		log.Debugf("store: schema already up to date")
	default:
		return fmt.Errorf("store: applying migrations: %w", err)
	}
	return nil
}
