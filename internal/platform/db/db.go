package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	"gorm.io/plugin/opentelemetry/tracing"
)

// sqlitePragmas enables WAL and waits on a busy database instead of failing
// immediately.
const sqlitePragmas = "_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"

var newTracingPlugin = func() gorm.Plugin {
	return tracing.NewPlugin(tracing.WithoutMetrics())
}

type Options struct {
	Driver      string
	PostgresDSN string
	SQLitePath  string
	Tracing     bool
}

// Database wraps DB connectivity for either PostgreSQL or SQLite.
type Database struct {
	DB *gorm.DB
}

func Connect(opts Options) (*Database, error) {
	var (
		dialector gorm.Dialector
		config    = &gorm.Config{}
	)
	switch opts.Driver {
	case "postgres", "":
		if opts.PostgresDSN == "" {
			return nil, errors.New("postgres dsn is required")
		}
		dialector = postgres.Open(opts.PostgresDSN)
	case "sqlite":
		if opts.SQLitePath == "" {
			return nil, errors.New("sqlite path is required")
		}
		dialector = sqlite.Open(fmt.Sprintf("file:%s?%s", opts.SQLitePath, sqlitePragmas))
		config.Logger = gormlogger.Discard
	default:
		return nil, fmt.Errorf("unsupported database driver %q", opts.Driver)
	}

	db, err := gorm.Open(dialector, config)
	if err != nil {
		return nil, fmt.Errorf("open gorm %s: %w", dialector.Name(), err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("resolve %s sql db handle: %w", dialector.Name(), err)
	}
	if dialector.Name() == "sqlite" {
		// SQLite admits a single writer.
		sqlDB.SetMaxOpenConns(1)
	}
	if opts.Tracing {
		if err := db.Use(newTracingPlugin()); err != nil {
			_ = sqlDB.Close()
			return nil, fmt.Errorf("enable gorm tracing: %w", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping %s: %w", dialector.Name(), err)
	}
	return &Database{DB: db}, nil
}

func (d *Database) Close() error {
	if d == nil || d.DB == nil {
		return nil
	}
	sqlDB, err := d.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
