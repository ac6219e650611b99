// Package database builds the sql.DB pool shared by the analyzer and the API
// server. The backing store is a SQLite file, so the defaults keep the pool
// small and rely on the driver's file locking for write serialization.
package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

type Options struct {
	Driver          string
	DataSource      string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	RetryAttempts   int
	RetryDelay      time.Duration
}

type Option func(*Options)

func WithDriver(driver string) Option {
	return func(o *Options) { o.Driver = driver }
}

func WithDataSource(dsn string) Option {
	return func(o *Options) { o.DataSource = dsn }
}

func WithMaxOpenConns(count int) Option {
	return func(o *Options) { o.MaxOpenConns = count }
}

func WithMaxIdleConns(count int) Option {
	return func(o *Options) { o.MaxIdleConns = count }
}

func WithConnMaxLifetime(duration time.Duration) Option {
	return func(o *Options) { o.ConnMaxLifetime = duration }
}

func WithConnMaxIdleTime(duration time.Duration) Option {
	return func(o *Options) { o.ConnMaxIdleTime = duration }
}

func WithRetry(attempts int, delay time.Duration) Option {
	return func(o *Options) {
		o.RetryAttempts = attempts
		o.RetryDelay = delay
	}
}

func defaultOptions() *Options {
	return &Options{
		Driver:     "sqlite3",
		DataSource: ":memory:",
		// SQLite serializes writes on the file lock; a handful of
		// connections covers the read-heavy API server.
		MaxOpenConns:    4,
		MaxIdleConns:    2,
		ConnMaxLifetime: 5 * time.Minute,
		ConnMaxIdleTime: 2 * time.Minute,
		RetryAttempts:   3,
		RetryDelay:      time.Second,
	}
}

func (o *Options) validate() error {
	if o.Driver == "" {
		return errors.New("database driver cannot be empty")
	}
	if o.DataSource == "" {
		return errors.New("database data source cannot be empty")
	}
	if o.MaxOpenConns < 1 {
		return fmt.Errorf("max open conns must be positive, got %d", o.MaxOpenConns)
	}
	if o.RetryAttempts < 1 {
		return fmt.Errorf("retry attempts must be positive, got %d", o.RetryAttempts)
	}
	return nil
}

// New opens the pool and verifies the connection. Opening is retried with a
// linear backoff, which rides out a database file still locked by a previous
// analyzer run.
func New(opts ...Option) (*sql.DB, error) {
	options := defaultOptions()
	for _, opt := range opts {
		opt(options)
	}
	if err := options.validate(); err != nil {
		return nil, err
	}

	var err error
	for attempt := 1; attempt <= options.RetryAttempts; attempt++ {
		var db *sql.DB
		db, err = open(options)
		if err == nil {
			return db, nil
		}
		if attempt < options.RetryAttempts {
			time.Sleep(time.Duration(attempt) * options.RetryDelay)
		}
	}

	return nil, fmt.Errorf("open database after %d attempts: %w", options.RetryAttempts, err)
}

func open(o *Options) (*sql.DB, error) {
	db, err := sql.Open(o.Driver, o.DataSource)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(o.MaxOpenConns)
	db.SetMaxIdleConns(o.MaxIdleConns)
	db.SetConnMaxLifetime(o.ConnMaxLifetime)
	db.SetConnMaxIdleTime(o.ConnMaxIdleTime)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}
