package db

import (
	"context"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
)

type MySQLOpts struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	PingTimeout     time.Duration
}

// NewMySQLConnection opens a *sqlx.DB with pool limits applied and the
// connection verified by a ping.
func NewMySQLConnection(dsn string, opts MySQLOpts) (*sqlx.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("empty MySQL DSN")
	}
	dbx, err := sqlx.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}
	applyPoolOpts(dbx, opts.MaxOpenConns, opts.MaxIdleConns, opts.ConnMaxLifetime, opts.ConnMaxIdleTime)

	timeout := opts.PingTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := dbx.PingContext(ctx); err != nil {
		_ = dbx.Close()
		return nil, err
	}

	return dbx, nil
}

func applyPoolOpts(dbx *sqlx.DB, maxOpen, maxIdle int, maxLifetime, maxIdleTime time.Duration) {
	if maxOpen > 0 {
		dbx.SetMaxOpenConns(maxOpen)
	}
	if maxIdle > 0 {
		dbx.SetMaxIdleConns(maxIdle)
	}
	if maxLifetime > 0 {
		dbx.SetConnMaxLifetime(maxLifetime)
	}
	if maxIdleTime > 0 {
		dbx.SetConnMaxIdleTime(maxIdleTime)
	}
}
