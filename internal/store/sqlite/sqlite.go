// Package sqlite provides the "sqlite" store.Driver: a single-file journal
// accessed through database/sql with OTEL instrumentation via otelsql.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"net/url"

	"github.com/XSAM/otelsql"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	_ "modernc.org/sqlite" // sqlite driver

	"github.com/jensholdgaard/zoo-auction/internal/clock"
	"github.com/jensholdgaard/zoo-auction/internal/config"
	"github.com/jensholdgaard/zoo-auction/internal/store"
)

//go:embed schema.sql
var schema string

// closerFunc adapts a func() error into an io.Closer.
type closerFunc func() error

func (f closerFunc) Close() error { return f() }

func init() {
	store.Register("sqlite", openSQLite)
}

// openSQLite is the store.Driver for the "sqlite" backend.
func openSQLite(ctx context.Context, cfg config.JournalConfig, clk clock.Clock) (*store.Repositories, error) {
	db, err := Connect(ctx, cfg.Path)
	if err != nil {
		return nil, err
	}
	return New(db, clk), nil
}

// New returns Repositories over an open database.
func New(db *sql.DB, clk clock.Clock) *store.Repositories {
	return &store.Repositories{
		Events:    NewEventStore(db),
		Rounds:    NewRoundRepo(db, clk),
		Standings: NewStandingsRepo(db),
		Closer:    closerFunc(db.Close),
		Ping:      db.PingContext,
	}
}

// Connect opens the database file at path, creating it and its schema when
// missing.
func Connect(ctx context.Context, path string) (*sql.DB, error) {
	q := url.Values{}
	q.Add("_pragma", "busy_timeout(5000)")
	q.Add("_pragma", "journal_mode(WAL)")
	q.Add("_pragma", "foreign_keys(1)")
	dsn := "file:" + path + "?" + q.Encode()

	db, err := otelsql.Open("sqlite", dsn,
		otelsql.WithAttributes(semconv.DBSystemSqlite),
	)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database: %w", err)
	}
	// SQLite allows a single writer; one connection avoids busy errors.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging sqlite database: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}

	return db, nil
}
