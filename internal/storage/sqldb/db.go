package sqldb

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "modernc.org/sqlite"
)

// Supported database/sql driver names.
const (
	DriverMySQL  = "mysql"
	DriverSQLite = "sqlite"
)

// Open connects to driver/dsn and pings it.
func Open(ctx context.Context, driver, dsn string) (*sql.DB, error) {
	switch driver {
	case DriverMySQL, DriverSQLite:
	default:
		return nil, fmt.Errorf("unsupported db driver %q", driver)
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}

	if driver == DriverSQLite {
		// one writer; in-memory databases are per connection
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}
	return db, nil
}

// binaryText is the column clause that makes text keys compare byte for byte.
// MySQL's default collation folds case, so "Austin" and "austin" would collide
// on a primary key; SQLite compares BINARY already.
func binaryText(driver string) string {
	if driver == DriverMySQL {
		return "CHARACTER SET utf8mb4 COLLATE utf8mb4_bin"
	}
	return ""
}

// Migrate creates the result tables if they do not exist.
func Migrate(ctx context.Context, db *sql.DB, driver string) error {
	for _, stmt := range schemaSQL {
		if _, err := db.ExecContext(ctx, strings.ReplaceAll(stmt, binaryMarker, binaryText(driver))); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
