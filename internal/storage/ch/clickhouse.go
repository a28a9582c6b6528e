package ch

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"booksearch/internal/storage"

	"github.com/ClickHouse/clickhouse-go/v2"
)

// KV stores values in a ReplacingMergeTree table. Every write appends a row
// with a newer version; removal appends a tombstone. Reads pick the latest
// row per key, so they never depend on background merges.
type KV struct {
	conn clickhouse.Conn
	now  func() time.Time
}

// NewClickHouseKV creates a new ClickHouse connection
func NewClickHouseKV(host string, port int, database, user, password string, useTLS bool) (*KV, error) {
	addr := fmt.Sprintf("%s:%d", host, port)

	options := &clickhouse.Options{
		Addr:     []string{addr},
		Protocol: clickhouse.Native,
		Auth: clickhouse.Auth{
			Database: database,
			Username: user,
			Password: password,
		},
	}

	// Configure TLS if enabled
	if useTLS {
		options.TLS = &tls.Config{
			InsecureSkipVerify: false,
		}
	}

	conn, err := clickhouse.Open(options)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}

	// Test the connection
	if err := conn.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}

	return &KV{conn: conn, now: time.Now}, nil
}

// Initialize is a no-op - tables are managed via migrations
func (db *KV) Initialize(ctx context.Context) error {
	return nil
}

// Get returns the latest live value for key
func (db *KV) Get(ctx context.Context, key string) (string, error) {
	rows, err := db.conn.Query(ctx, `
		SELECT argMax(value, version), argMax(deleted, version)
		FROM kv
		WHERE key = ?
		GROUP BY key`, key)
	if err != nil {
		return "", fmt.Errorf("failed to get key %q: %w", key, err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return "", fmt.Errorf("failed to get key %q: %w", key, err)
		}
		return "", storage.ErrNotFound
	}

	var (
		value   string
		deleted bool
	)
	if err := rows.Scan(&value, &deleted); err != nil {
		return "", fmt.Errorf("failed to scan key %q: %w", key, err)
	}
	if deleted {
		return "", storage.ErrNotFound
	}
	return value, nil
}

// Set writes a new version of key
func (db *KV) Set(ctx context.Context, key, value string) error {
	return db.write(ctx, key, value, false)
}

// Remove writes a tombstone for key
func (db *KV) Remove(ctx context.Context, key string) error {
	return db.write(ctx, key, "", true)
}

func (db *KV) write(ctx context.Context, key, value string, deleted bool) error {
	err := db.conn.Exec(ctx, `INSERT INTO kv (key, value, deleted, version) VALUES (?, ?, ?, ?)`,
		key, value, deleted, uint64(db.now().UnixNano()))
	if err != nil {
		return fmt.Errorf("failed to write key %q: %w", key, err)
	}
	return nil
}

// Close closes the database connection
func (db *KV) Close() error {
	if db.conn != nil {
		return db.conn.Close()
	}
	return nil
}
