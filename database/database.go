package database

import (
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"odinbook/domain"
)

// Supported drivers. Postgres is what runs in production; sqlite serves local
// development and the tests.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config describes the database connection and its pool.
type Config struct {
	Driver          string        `json:"driver" yaml:"driver"`
	DSN             string        `json:"dsn" yaml:"dsn"`
	MaxOpenConns    int           `json:"max_open_conns" yaml:"max_open_conns"`
	MaxIdleConns    int           `json:"max_idle_conns" yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime" yaml:"conn_max_lifetime"`
}

// DB provides the database connection.
type DB struct {
	// Object-relational mapping.
	Gorm *gorm.DB
}

// Open opens a new database connection and configures its pool. It also
// configures gorm's logging based on whether we're in development or in production.
func Open(cfg Config, isProd bool) (*DB, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("dsn required")
	}
	var dialector gorm.Dialector
	switch cfg.Driver {
	case DriverPostgres, "":
		dialector = postgres.Open(cfg.DSN)
	case DriverSQLite:
		dialector = sqlite.Open(cfg.DSN)
		// sqlite allows a single writer; one connection avoids "database is locked".
		cfg.MaxOpenConns = 1
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}

	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
		// Referential integrity is kept by the account deletion cascade, not by the database.
		DisableForeignKeyConstraintWhenMigrating: true,
	}
	if !isProd {
		gormConfig.Logger = logger.Default.LogMode(logger.Warn)
	}
	g, err := gorm.Open(dialector, gormConfig)
	if err != nil {
		return nil, fmt.Errorf("err opening gorm %s connection: %w", cfg.Driver, err)
	}

	sqlDB, err := g.DB()
	if err != nil {
		return nil, err
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	return &DB{Gorm: g}, nil
}

// OpenMemory opens a fresh, migrated in-memory sqlite database.
func OpenMemory() (*DB, error) {
	db, err := Open(Config{Driver: DriverSQLite, DSN: ":memory:"}, true)
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(); err != nil {
		return nil, err
	}
	return db, nil
}

// Models lists every table of the app.
func Models() []interface{} {
	return []interface{}{
		&domain.User{},
		&domain.OAuth{},
		&domain.Friendship{},
		&domain.FriendRequest{},
		&domain.Post{},
		&domain.PostLike{},
		&domain.Comment{},
		&domain.CommentLike{},
		&domain.Notification{},
	}
}

// AutoMigrate runs database migrations for all tables.
func (db *DB) AutoMigrate() error {
	return db.Gorm.AutoMigrate(Models()...)
}

// DestructiveReset drops all tables and rebuilds them.
func (db *DB) DestructiveReset() error {
	if err := db.Gorm.Migrator().DropTable(Models()...); err != nil {
		return err
	}
	return db.AutoMigrate()
}

// Close closes the database connection.
func (db *DB) Close() error {
	sqlDB, err := db.Gorm.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
