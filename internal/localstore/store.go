// Package localstore implements the embedded persistent copy of domain
// entities. It is the authoritative offline source: point lookups, stable
// range scans with keyset or offset cursors, upserts, soft/hard deletes and
// aggregates, all backed by SQLite.
package localstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mbelkin/cardsync/internal/common"
	"github.com/mbelkin/cardsync/internal/localstore/migrations"
	"github.com/mbelkin/cardsync/internal/logging"
	"github.com/pressly/goose/v3"

	_ "modernc.org/sqlite"
)

type Store struct {
	db     *sql.DB
	logger logging.Logger
}

// Open opens (or creates) the SQLite database at dsn and applies pending
// migrations.
func Open(ctx context.Context, dsn string, logger logging.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := runMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	return &Store{db: db, logger: logger}, nil
}

func runMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("sqlite3"); err != nil {
		return err
	}
	return goose.UpContext(ctx, db, ".")
}

func (s *Store) Close() error {
	return s.db.Close()
}

// storageErr tags a storage-engine failure so callers can match it with
// errors.Is(err, common.ErrStorage) while keeping the original cause in the
// chain.
func storageErr(op string, err error) error {
	return fmt.Errorf("%s: %w", op, errors.Join(common.ErrStorage, err))
}
