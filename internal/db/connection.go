// Package db provides database connection management for pgedge-songdwh.
package db

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pgEdge/pgedge-songdwh/internal/logging"
)

// ApplicationName is reported to the server for every connection.
const ApplicationName = "pgedge-songdwh"

// DB is an interface that both *pgxpool.Pool and *pgx.Conn satisfy.
type DB interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
}

// Options tune how connections are made.
type Options struct {
	// SimpleProtocol disables prepared statements, which some warehouses
	// handle poorly.
	SimpleProtocol bool

	// Retries is how many times a failed connection attempt is retried
	// with exponential backoff.
	Retries int

	// MaxRetryInterval caps the backoff between attempts.
	MaxRetryInterval time.Duration
}

// DefaultPoolConfig returns default connection pool configuration. The
// pipeline runs statements one at a time, so the pool stays small.
func DefaultPoolConfig() *pgxpool.Config {
	config, _ := pgxpool.ParseConfig("")

	config.MaxConns = 4
	config.MinConns = 1
	config.MaxConnLifetime = 60 * time.Minute
	config.MaxConnIdleTime = 10 * time.Minute
	config.HealthCheckPeriod = 30 * time.Second

	return config
}

// Connect establishes a connection pool to the warehouse.
func Connect(ctx context.Context, connString string, opts Options) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}

	defaults := DefaultPoolConfig()
	config.MaxConns = defaults.MaxConns
	config.MinConns = defaults.MinConns
	config.MaxConnLifetime = defaults.MaxConnLifetime
	config.MaxConnIdleTime = defaults.MaxConnIdleTime
	config.HealthCheckPeriod = defaults.HealthCheckPeriod
	configureConn(config.ConnConfig, "pipeline", opts)

	logging.Debug().
		Str("host", config.ConnConfig.Host).
		Uint16("port", config.ConnConfig.Port).
		Str("database", config.ConnConfig.Database).
		Msg("Connecting to database")

	var pool *pgxpool.Pool
	err = retry(ctx, opts, func() error {
		p, err := pgxpool.NewWithConfig(ctx, config)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("failed to create connection pool: %w", err))
		}
		if err := p.Ping(ctx); err != nil {
			p.Close()
			return fmt.Errorf("failed to ping database: %w", err)
		}
		pool = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	logging.Info().
		Str("host", config.ConnConfig.Host).
		Str("database", config.ConnConfig.Database).
		Msg("Connected to database")

	return pool, nil
}

// ConnectSingle opens one dedicated connection. The suffix is appended to
// the application name so the connection is identifiable on the server.
func ConnectSingle(ctx context.Context, connString, suffix string, opts Options) (*pgx.Conn, error) {
	config, err := pgx.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}
	configureConn(config, suffix, opts)

	var conn *pgx.Conn
	err = retry(ctx, opts, func() error {
		c, err := pgx.ConnectConfig(ctx, config)
		if err != nil {
			return fmt.Errorf("failed to connect: %w", err)
		}
		conn = c
		return nil
	})
	if err != nil {
		return nil, err
	}

	logging.Debug().
		Str("host", config.Host).
		Str("application_name", config.RuntimeParams["application_name"]).
		Msg("Opened dedicated connection")

	return conn, nil
}

func configureConn(config *pgx.ConnConfig, suffix string, opts Options) {
	if config.RuntimeParams == nil {
		config.RuntimeParams = make(map[string]string)
	}
	if _, ok := config.RuntimeParams["application_name"]; !ok {
		name := ApplicationName
		if suffix != "" {
			name += " - " + suffix
		}
		config.RuntimeParams["application_name"] = name
	}
	if opts.SimpleProtocol {
		config.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol
	}
}

func retry(ctx context.Context, opts Options, op func() error) error {
	eb := backoff.NewExponentialBackOff()
	if opts.MaxRetryInterval > 0 {
		eb.MaxInterval = opts.MaxRetryInterval
		eb.InitialInterval = min(eb.InitialInterval, opts.MaxRetryInterval)
	}
	retries := opts.Retries
	if retries < 0 {
		retries = 0
	}
	b := backoff.WithContext(backoff.WithMaxRetries(eb, uint64(retries)), ctx)

	return backoff.RetryNotify(op, b, func(err error, wait time.Duration) {
		logging.Warn().
			Err(err).
			Dur("retry_in", wait).
			Msg("Connection attempt failed")
	})
}
