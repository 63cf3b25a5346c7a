package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/plugin/opentelemetry/tracing"

	"github.com/histobench/pkg/telemetry"
)

// DBConfig holds database configuration.
type DBConfig struct {
	Type     string `mapstructure:"type"` // sqlite, postgres or mysql
	DSN      string `mapstructure:"dsn"`  // sqlite path, or a complete DSN for the others
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Database string `mapstructure:"database"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	MaxConns int    `mapstructure:"max_conns"`
	// Tracing installs the OpenTelemetry plugin even when OTEL_ENABLED is unset.
	Tracing bool `mapstructure:"tracing"`
}

// DBType represents the database type.
type DBType string

const (
	DBTypeSQLite   DBType = "sqlite"
	DBTypePostgres DBType = "postgres"
	DBTypeMySQL    DBType = "mysql"
)

// dialector builds the GORM dialector for cfg. A non-nil conn is used as the
// connection pool instead of opening one from the DSN.
func dialector(cfg *DBConfig, conn *sql.DB) (gorm.Dialector, error) {
	switch DBType(cfg.Type) {
	case DBTypeSQLite, DBType("sqlite3"):
		if conn != nil {
			return sqlite.Dialector{Conn: conn}, nil
		}
		dsn := cfg.DSN
		if dsn == "" {
			dsn = "histobench.db"
		}
		return sqlite.Open(dsn), nil

	case DBTypePostgres, DBType("postgresql"):
		if conn != nil {
			return postgres.New(postgres.Config{Conn: conn}), nil
		}
		dsn := cfg.DSN
		if dsn == "" {
			dsn = fmt.Sprintf(
				"host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
				cfg.Host, portOr(cfg.Port, 5432), cfg.User, cfg.Password, cfg.Database,
			)
		}
		return postgres.Open(dsn), nil

	case DBTypeMySQL:
		if conn != nil {
			return mysql.New(mysql.Config{Conn: conn, SkipInitializeWithVersion: true}), nil
		}
		dsn := cfg.DSN
		if dsn == "" {
			dsn = fmt.Sprintf(
				"%s:%s@tcp(%s:%d)/%s?parseTime=true&loc=Local",
				cfg.User, cfg.Password, cfg.Host, portOr(cfg.Port, 3306), cfg.Database,
			)
		}
		return mysql.Open(dsn), nil

	default:
		return nil, fmt.Errorf("unsupported database type: %s", cfg.Type)
	}
}

func portOr(port, def int) int {
	if port > 0 {
		return port
	}
	return def
}

// NewGormDB opens a GORM database from configuration and verifies the connection.
func NewGormDB(cfg *DBConfig) (*gorm.DB, error) {
	d, err := dialector(cfg, nil)
	if err != nil {
		return nil, err
	}
	return open(d, cfg)
}

// NewGormDBFromConn wraps an existing connection pool, e.g. one opened by a
// test driver.
func NewGormDBFromConn(cfg *DBConfig, conn *sql.DB) (*gorm.DB, error) {
	d, err := dialector(cfg, conn)
	if err != nil {
		return nil, err
	}
	return open(d, cfg)
}

func open(d gorm.Dialector, cfg *DBConfig) (*gorm.DB, error) {
	db, err := gorm.Open(d, &gorm.Config{
		Logger:                 logger.Default.LogMode(logger.Silent),
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if cfg.Tracing || telemetry.Enabled() {
		if err := db.Use(tracing.NewPlugin()); err != nil {
			return nil, fmt.Errorf("failed to enable telemetry: %w", err)
		}
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	maxConns := cfg.MaxConns
	if maxConns <= 0 {
		maxConns = 4
	}
	if DBType(cfg.Type) == DBTypeSQLite || cfg.Type == "sqlite3" {
		// every sqlite connection to :memory: is a separate database
		maxConns = 1
	}
	sqlDB.SetMaxOpenConns(maxConns)
	sqlDB.SetMaxIdleConns(max(maxConns/2, 1))
	sqlDB.SetConnMaxLifetime(time.Hour)
	sqlDB.SetConnMaxIdleTime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

// Migrate creates or updates the benchmark tables.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(AllModels()...); err != nil {
		return fmt.Errorf("failed to migrate: %w", err)
	}
	return nil
}

// Repositories holds all repository instances.
type Repositories struct {
	Sessions SessionRepository
	Samples  SampleRepository
	gormDB   *gorm.DB
}

// NewRepositories creates all repositories using GORM.
func NewRepositories(gormDB *gorm.DB) *Repositories {
	return &Repositories{
		Sessions: NewGormSessionRepository(gormDB),
		Samples:  NewGormSampleRepository(gormDB),
		gormDB:   gormDB,
	}
}

// Open connects, migrates and returns the repositories for cfg.
func Open(cfg *DBConfig) (*Repositories, error) {
	db, err := NewGormDB(cfg)
	if err != nil {
		return nil, err
	}
	if err := Migrate(db); err != nil {
		if sqlDB, derr := db.DB(); derr == nil {
			sqlDB.Close()
		}
		return nil, err
	}
	return NewRepositories(db), nil
}

// Close closes the database connection.
func (r *Repositories) Close() error {
	if r.gormDB != nil {
		sqlDB, err := r.gormDB.DB()
		if err != nil {
			return err
		}
		return sqlDB.Close()
	}
	return nil
}

// HealthCheck verifies the database connection is still alive.
func (r *Repositories) HealthCheck(ctx context.Context) error {
	sqlDB, err := r.gormDB.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// GormDB returns the underlying GORM DB instance.
func (r *Repositories) GormDB() *gorm.DB {
	return r.gormDB
}
