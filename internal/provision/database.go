// Package provision prepares the per-worker resources a run needs: one MySQL
// database per worker slot and the setup command (migrations) run against it.
package provision

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"os"
	"regexp"
	"time"

	"github.com/go-sql-driver/mysql"

	"ptd/internal/config"
)

var databaseName = regexp.MustCompile(`^[A-Za-z0-9_$-]{1,64}$`)

// DatabaseManager manages test databases
type DatabaseManager struct {
	config *config.Config
	open   func(dsn string) (*sql.DB, error)
}

// NewDatabaseManager creates a new DatabaseManager
func NewDatabaseManager(cfg *config.Config) *DatabaseManager {
	return &DatabaseManager{
		config: cfg,
		open: func(dsn string) (*sql.DB, error) {
			return sql.Open("mysql", dsn)
		},
	}
}

// DSN builds the server connection string from the DB_* environment the
// project's .env provides, without selecting a database
func (dm *DatabaseManager) DSN() string {
	c := mysql.NewConfig()
	c.User = envOr("DB_USERNAME", "root")
	c.Passwd = os.Getenv("DB_PASSWORD")
	c.Net = "tcp"
	c.Addr = net.JoinHostPort(envOr("DB_HOST", "127.0.0.1"), envOr("DB_PORT", "3306"))
	c.Timeout = 5 * time.Second
	return c.FormatDSN()
}

// CheckAndCreateDatabases connects to the server and makes sure every slot in
// 1..slots has its database. It returns the slots that are ready.
func (dm *DatabaseManager) CheckAndCreateDatabases(ctx context.Context, slots int) ([]int, error) {
	db, err := dm.open(dm.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database server: %w", err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database server: %w", err)
	}
	return dm.ensure(ctx, db, slots)
}

func (dm *DatabaseManager) ensure(ctx context.Context, db *sql.DB, slots int) ([]int, error) {
	ready := make([]int, 0, slots)
	for slot := 1; slot <= slots; slot++ {
		name := dm.config.GetDatabaseName(slot)
		if !databaseName.MatchString(name) {
			return nil, fmt.Errorf("invalid database name: %s", name)
		}

		exists, err := databaseExists(ctx, db, name)
		if err != nil {
			return nil, fmt.Errorf("failed to check database %s: %w", name, err)
		}
		if !exists {
			if _, err := db.ExecContext(ctx, fmt.Sprintf("CREATE DATABASE IF NOT EXISTS `%s`", name)); err != nil {
				return nil, fmt.Errorf("failed to create database %s: %w", name, err)
			}
		}
		ready = append(ready, slot)
	}
	return ready, nil
}

func databaseExists(ctx context.Context, db *sql.DB, name string) (bool, error) {
	var exists bool
	query := "SELECT EXISTS(SELECT SCHEMA_NAME FROM INFORMATION_SCHEMA.SCHEMATA WHERE SCHEMA_NAME = ?)"
	err := db.QueryRowContext(ctx, query, name).Scan(&exists)
	return exists, err
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
