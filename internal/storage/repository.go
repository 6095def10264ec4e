package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"pricewatch/internal/log"

	_ "modernc.org/sqlite"
)

// SQLiteRepository stores ledger payloads in a single SQLite table.
type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
	logger  *log.Logger
}

func NewSQLiteRepository(dbPath string, logger *log.Logger) (*SQLiteRepository, error) {
	if logger == nil {
		logger = log.Discard()
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	dsn := dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	version, err := RunMigrations(dsn)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	logger = logger.WithComponent(log.ComponentStorage)
	logger.Debug("SQLite store ready", "path", dbPath, "schema_version", version)
	return &SQLiteRepository{
		db:      db,
		queries: New(db),
		logger:  logger,
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Get implements RecordStore
func (r *SQLiteRepository) Get(ctx context.Context, key string) ([]byte, error) {
	rec, err := r.queries.GetRecord(ctx, key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get record %s: %w", key, err)
	}
	return []byte(rec.Payload), nil
}

// Put implements RecordStore
func (r *SQLiteRepository) Put(ctx context.Context, key string, payload []byte) error {
	err := r.queries.UpsertRecord(ctx, UpsertRecordParams{
		PartitionKey: key,
		Payload:      string(payload),
	})
	if err != nil {
		return fmt.Errorf("put record %s: %w", key, err)
	}

	r.logger.DebugContext(ctx, "Ledger record saved",
		"key", key,
		log.FieldSizeBytes, len(payload))
	return nil
}

// Delete implements RecordStore. Deleting a missing key is not an error.
func (r *SQLiteRepository) Delete(ctx context.Context, key string) error {
	if err := r.queries.DeleteRecord(ctx, key); err != nil {
		return fmt.Errorf("delete record %s: %w", key, err)
	}
	r.logger.InfoContext(ctx, "Ledger record deleted", "key", key)
	return nil
}
