package storage

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/ncruces/go-sqlite3/driver"

	"github.com/kittclouds/graphcore/internal/apperr"
)

// schema is the single persisted table from spec §4.2 / §6: one row per
// address, payload opaque to this layer.
const schema = `
CREATE TABLE IF NOT EXISTS storage (
    address INTEGER PRIMARY KEY,
    data    TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_storage_address ON storage(address);
`

// SQLiteBackend is the SQLite-backed implementation of Backend.
type SQLiteBackend struct {
	db *sql.DB
}

// Open opens a SQLite-backed block store at path. Pass ":memory:" for a
// transient store; per spec §4.2, in-memory mode uses a shared-cache DSN
// and keeps exactly one connection alive so the database isn't reclaimed
// between calls.
func Open(path string) (*SQLiteBackend, error) {
	dsn := path
	memory := path == ":memory:" || path == ""
	if memory {
		dsn = "file::memory:?cache=shared"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, apperr.New(apperr.StorageError, "open", err)
	}
	if memory {
		// A single live connection is what keeps a shared-cache :memory:
		// database from being dropped once the opening connection closes.
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, apperr.New(apperr.StorageError, "open", fmt.Errorf("create schema: %w", err))
	}

	return &SQLiteBackend{db: db}, nil
}

func (b *SQLiteBackend) Store(ctx context.Context, blocks []Block) error {
	if len(blocks) == 0 {
		return nil
	}
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return apperr.New(apperr.StorageError, "store", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT OR REPLACE INTO storage (address, data) VALUES (?, ?)`)
	if err != nil {
		return apperr.New(apperr.StorageError, "store", err)
	}
	defer stmt.Close()

	for _, blk := range blocks {
		if _, err := stmt.ExecContext(ctx, blk.Address, string(blk.Data)); err != nil {
			return apperr.New(apperr.StorageError, "store", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return apperr.New(apperr.StorageError, "store", err)
	}
	return nil
}

func (b *SQLiteBackend) Restore(ctx context.Context, address int64) ([]byte, bool, error) {
	var data string
	err := b.db.QueryRowContext(ctx, `SELECT data FROM storage WHERE address = ?`, address).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, apperr.New(apperr.StorageError, "restore", err)
	}
	return []byte(data), true, nil
}

func (b *SQLiteBackend) ListAddresses(ctx context.Context) ([]int64, error) {
	rows, err := b.db.QueryContext(ctx, `SELECT address FROM storage ORDER BY address`)
	if err != nil {
		return nil, apperr.New(apperr.StorageError, "list-addresses", err)
	}
	defer rows.Close()

	var out []int64
	for rows.Next() {
		var addr int64
		if err := rows.Scan(&addr); err != nil {
			return nil, apperr.New(apperr.StorageError, "list-addresses", err)
		}
		out = append(out, addr)
	}
	return out, rows.Err()
}

func (b *SQLiteBackend) Delete(ctx context.Context, addresses []int64) error {
	if len(addresses) == 0 {
		return nil
	}
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return apperr.New(apperr.StorageError, "delete", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `DELETE FROM storage WHERE address = ?`)
	if err != nil {
		return apperr.New(apperr.StorageError, "delete", err)
	}
	defer stmt.Close()

	for _, addr := range addresses {
		if _, err := stmt.ExecContext(ctx, addr); err != nil {
			return apperr.New(apperr.StorageError, "delete", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return apperr.New(apperr.StorageError, "delete", err)
	}
	return nil
}

func (b *SQLiteBackend) Close() error {
	if b.db == nil {
		return nil
	}
	return b.db.Close()
}
