package db

import (
	"context"
	"fmt"

	"ride-dispatch/internal/config"
	"ride-dispatch/internal/mylogger"

	"github.com/jackc/pgx/v5/pgxpool"
)

// DB wraps a pgx pool. The pool handles per-connection health itself, so
// unlike a single-conn setup there is no reconnect loop here.
type DB struct {
	ctx   context.Context
	cfg   *config.DBconfig
	mylog mylogger.Logger
	pool  *pgxpool.Pool
}

func New(ctx context.Context, dbCfg *config.DBconfig, mylog mylogger.Logger) (*DB, error) {
	d := &DB{
		ctx:   ctx,
		cfg:   dbCfg,
		mylog: mylog,
	}

	pool, err := pgxpool.New(ctx, fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=disable",
		dbCfg.User,
		dbCfg.Password,
		dbCfg.Host,
		dbCfg.Port,
		dbCfg.Database,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	d.pool = pool
	return d, nil
}

// IsAlive pings the DB to verify it's responsive
func (d *DB) IsAlive() error {
	if d.pool == nil {
		return fmt.Errorf("DB is not initialized")
	}
	return d.pool.Ping(d.ctx)
}

func (d *DB) Close() error {
	d.pool.Close()
	return nil
}
