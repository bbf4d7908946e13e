package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/emlakofis/emlak-backend/pkg/config"
	"github.com/emlakofis/emlak-backend/pkg/logger"
)

const txRetryDelay = 20 * time.Millisecond

// Client owns the pooled Postgres connection shared by every repository.
type Client struct {
	conn          *gorm.DB
	txMaxAttempts int
}

func New(ctx context.Context, cfg config.DBConfig, logg *logger.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, errors.New("database DSN is required")
	}

	dialector := postgres.New(postgres.Config{DSN: cfg.DSN, PreferSimpleProtocol: true})
	conn, err := gorm.Open(dialector, &gorm.Config{
		Logger:                 queryLogger(logg, cfg.SlowQueryThreshold),
		SkipDefaultTransaction: true,
		NowFunc:                func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return nil, fmt.Errorf("sql handle: %w", err)
	}
	configurePool(sqlDB, cfg)

	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	if logg != nil {
		logg.Info(logg.WithFields(ctx, map[string]any{
			"max_open_conns":  cfg.MaxOpenConns,
			"max_idle_conns":  cfg.MaxIdleConns,
			"slow_query_ms":   cfg.SlowQueryThreshold.Milliseconds(),
			"tx_max_attempts": cfg.TxMaxAttempts,
		}), "postgres pool ready")
	}
	return &Client{conn: conn, txMaxAttempts: max(cfg.TxMaxAttempts, 1)}, nil
}

// configurePool applies only the limits that are set; zero keeps the
// database/sql default.
func configurePool(sqlDB *sql.DB, cfg config.DBConfig) {
	if n := cfg.MaxOpenConns; n > 0 {
		sqlDB.SetMaxOpenConns(n)
	}
	if n := cfg.MaxIdleConns; n > 0 {
		sqlDB.SetMaxIdleConns(n)
	}
	if d := cfg.ConnMaxLifetime; d > 0 {
		sqlDB.SetConnMaxLifetime(d)
	}
	if d := cfg.ConnMaxIdleTime; d > 0 {
		sqlDB.SetConnMaxIdleTime(d)
	}
}

// queryLogger forwards slow statements and driver errors to the service
// logger. Info-level query tracing is never emitted.
func queryLogger(logg *logger.Logger, slow time.Duration) gormlogger.Interface {
	if logg == nil {
		return gormlogger.Discard
	}
	return gormlogger.New(gormWriter{logg}, gormlogger.Config{
		SlowThreshold:             slow,
		LogLevel:                  gormlogger.Warn,
		IgnoreRecordNotFoundError: true,
		ParameterizedQueries:      true,
	})
}

type gormWriter struct{ logg *logger.Logger }

func (w gormWriter) Printf(format string, args ...any) {
	ctx := w.logg.WithField(context.Background(), "component", "gorm")
	w.logg.Warn(ctx, strings.TrimSpace(fmt.Sprintf(format, args...)))
}

// FromGorm wraps an already opened connection such as an in-memory sqlite
// database.
func FromGorm(conn *gorm.DB) *Client {
	return &Client{conn: conn, txMaxAttempts: 1}
}

func (c *Client) DB() *gorm.DB { return c.conn }

func (c *Client) Ping(ctx context.Context) error {
	sqlDB, err := c.conn.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (c *Client) Close() error {
	sqlDB, err := c.conn.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// WithTx runs fn in a transaction that commits when fn returns nil. A
// transaction aborted by a serialization conflict or deadlock is replayed
// from scratch, so fn must keep its side effects inside tx.
func (c *Client) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	attempt := 1
	for {
		err := c.conn.WithContext(ctx).Transaction(fn)
		if err == nil || attempt >= c.txMaxAttempts || !IsSerializationFailure(err) {
			return err
		}

		timer := time.NewTimer(time.Duration(attempt) * txRetryDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		attempt++
	}
}

// WithTxAttempts returns a copy of c that tries a transaction up to n times.
func (c *Client) WithTxAttempts(n int) *Client {
	return &Client{conn: c.conn, txMaxAttempts: max(n, 1)}
}
