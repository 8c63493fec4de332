// Package db opens the application database behind a bun.DB and keeps its
// schema current. SQLite (cgo or pure Go), PostgreSQL and MySQL are supported;
// each has its own set of versioned .sql files under migrations/<dialect>.
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/mysqldialect"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/schema"
	_ "modernc.org/sqlite"
)

// Supported values for the database type setting.
const (
	TypeSQLite       = "sqlite"
	TypeSQLitePureGo = "sqlite-purego"
	TypePostgres     = "postgres"
	TypeMySQL        = "mysql"
)

const (
	defaultMaxOpenConns    = 25
	defaultMaxIdleConns    = 25
	defaultConnMaxLifetime = 5 * time.Minute
)

// sqlOpenFunc allows tests to override database opening behavior.
var sqlOpenFunc = sql.Open

type backend struct {
	driver     string
	migrations string
	dialect    func() schema.Dialect
}

func lookupBackend(dbType string) (backend, error) {
	switch strings.ToLower(strings.TrimSpace(dbType)) {
	case "", TypeSQLite, "sqlite3":
		return backend{driver: "sqlite3", migrations: "sqlite", dialect: func() schema.Dialect { return sqlitedialect.New() }}, nil
	case TypeSQLitePureGo:
		return backend{driver: "sqlite", migrations: "sqlite", dialect: func() schema.Dialect { return sqlitedialect.New() }}, nil
	case TypePostgres, "postgresql", "pgx":
		return backend{driver: "pgx", migrations: "postgres", dialect: func() schema.Dialect { return pgdialect.New() }}, nil
	case TypeMySQL:
		return backend{driver: "mysql", migrations: "mysql", dialect: func() schema.Dialect { return mysqldialect.New() }}, nil
	default:
		return backend{}, fmt.Errorf("unsupported database type %q", dbType)
	}
}

// Open connects to the database of the given type and applies pending migrations.
// For SQLite an empty dsn means "app.db" in the working directory.
func Open(dbType, dsn string) (*bun.DB, error) {
	be, err := lookupBackend(dbType)
	if err != nil {
		return nil, err
	}
	switch be.migrations {
	case "sqlite":
		if dsn == "" {
			dsn = "app.db"
		}
	case "mysql":
		if dsn, err = normalizeMySQLDSN(dsn); err != nil {
			return nil, err
		}
	}
	sqldb, err := sqlOpenFunc(be.driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if be.migrations == "sqlite" {
		// One connection: pragmas stay in effect and writers are serialized,
		// which also keeps in-memory databases alive for the life of the pool.
		sqldb.SetMaxOpenConns(1)
		sqldb.SetMaxIdleConns(1)
		sqldb.SetConnMaxLifetime(0)
		sqldb.SetConnMaxIdleTime(0)
	} else {
		sqldb.SetMaxOpenConns(defaultMaxOpenConns)
		sqldb.SetMaxIdleConns(defaultMaxIdleConns)
		sqldb.SetConnMaxLifetime(defaultConnMaxLifetime)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := sqldb.PingContext(ctx); err != nil {
		_ = sqldb.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	bdb := bun.NewDB(sqldb, be.dialect())

	if be.migrations == "sqlite" {
		// journal_mode may not be supported in some contexts (e.g., in-memory). Ignore errors.
		_, _ = bdb.ExecContext(ctx, `PRAGMA journal_mode=WAL`)
		if _, err := bdb.ExecContext(ctx, `PRAGMA busy_timeout=5000`); err != nil {
			_ = bdb.Close()
			return nil, err
		}
		if _, err := bdb.ExecContext(ctx, `PRAGMA foreign_keys=ON`); err != nil {
			_ = bdb.Close()
			return nil, err
		}
	}

	if err := applyMigrations(ctx, bdb, be.migrations); err != nil {
		_ = bdb.Close()
		return nil, err
	}
	return bdb, nil
}

// Ping checks that the database still answers.
func Ping(ctx context.Context, bdb *bun.DB) error {
	if bdb == nil {
		return errors.New("nil db")
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return bdb.PingContext(ctx)
}

// normalizeMySQLDSN forces the options the repositories rely on: DATETIME
// columns scan into time.Time, and RowsAffected counts matched rows so an
// UPDATE that leaves a value unchanged is not mistaken for a missing row.
func normalizeMySQLDSN(dsn string) (string, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("parse mysql dsn: %w", err)
	}
	cfg.ParseTime = true
	cfg.ClientFoundRows = true
	if cfg.Loc == nil {
		cfg.Loc = time.UTC
	}
	return cfg.FormatDSN(), nil
}
