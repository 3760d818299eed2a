package kv

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

const tableName = "whoswho_kv"

// SQL stores values in a single two-column table.
type SQL struct {
	db        *sql.DB
	getQuery  string
	setQuery  string
	delQuery  string
	driverTag string
}

// OpenSQLite opens (and creates, if needed) a sqlite database file.
func OpenSQLite(path string) (*SQL, error) {
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	// sqlite allows a single writer
	db.SetMaxOpenConns(1)

	s := &SQL{
		db:        db,
		getQuery:  `SELECT value FROM ` + tableName + ` WHERE name = ?`,
		setQuery:  `INSERT INTO ` + tableName + ` (name, value, updated_at) VALUES (?, ?, ?) ON CONFLICT (name) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		delQuery:  `DELETE FROM ` + tableName + ` WHERE name = ?`,
		driverTag: "sqlite",
	}

	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return s, nil
}

// OpenPostgres connects using a postgres:// DSN.
func OpenPostgres(dsn string) (*SQL, error) {
	connector, err := pq.NewConnector(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse postgres dsn: %w", err)
	}
	db := sql.OpenDB(connector)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	s := &SQL{
		db:        db,
		getQuery:  `SELECT value FROM ` + tableName + ` WHERE name = $1`,
		setQuery:  `INSERT INTO ` + tableName + ` (name, value, updated_at) VALUES ($1, $2, $3) ON CONFLICT (name) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`,
		delQuery:  `DELETE FROM ` + tableName + ` WHERE name = $1`,
		driverTag: "postgres",
	}

	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return s, nil
}

func (s *SQL) migrate() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS ` + tableName + ` (
		name VARCHAR(255) PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`)
	if err != nil {
		return fmt.Errorf("failed to create %s table (%s): %w", tableName, s.driverTag, err)
	}
	return nil
}

func (s *SQL) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, s.getQuery, key).Scan(&value)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return "", false, nil
	case err != nil:
		return "", false, err
	}
	return value, true, nil
}

func (s *SQL) Set(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, s.setQuery, key, value, time.Now().UTC())
	return err
}

func (s *SQL) Delete(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, s.delQuery, key)
	return err
}

func (s *SQL) Close() error {
	return s.db.Close()
}
