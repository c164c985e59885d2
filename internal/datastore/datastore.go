// Package datastore opens and migrates the hazard database.
package datastore

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	mysqldriver "github.com/go-sql-driver/mysql"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/hazardwatch/hazardwatch/internal/conf"
	"github.com/hazardwatch/hazardwatch/internal/datastore/entities"
	"github.com/hazardwatch/hazardwatch/internal/errors"
)

const (
	slowQueryThreshold = 500 * time.Millisecond
	sqliteBusyTimeout  = 5000 // milliseconds
)

// Options tune the connection independent of the backend.
type Options struct {
	Debug    bool          // log every statement
	Observer QueryObserver // optional metrics sink
}

// Open connects to the database selected in settings and migrates the schema.
func Open(settings *conf.Settings, opts Options) (*gorm.DB, error) {
	opts.Debug = opts.Debug || settings.Database.Debug
	switch strings.ToLower(settings.Database.Type) {
	case conf.DatabaseMySQL:
		return OpenMySQL(&settings.Database.MySQL, opts)
	case conf.DatabaseSQLite, "":
		return OpenSQLite(settings.Database.SQLite.Path, opts)
	default:
		return nil, errors.Newf("unsupported database type %q", settings.Database.Type).
			Component("datastore").
			Category(errors.CategoryConfiguration).
			Build()
	}
}

// OpenSQLite opens (creating if needed) a SQLite database file and migrates it.
func OpenSQLite(path string, opts Options) (*gorm.DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.New(fmt.Errorf("creating database directory: %w", err)).
				Component("datastore").
				Category(errors.CategoryFileIO).
				Build()
		}
	}

	dsn := fmt.Sprintf("file:%s?_busy_timeout=%d&_journal_mode=WAL&_txlock=immediate", path, sqliteBusyTimeout)
	db, err := open(sqlite.Open(dsn), opts, "sqlite")
	if err != nil {
		return nil, err
	}
	// SQLite allows one writer; a single connection avoids SQLITE_BUSY inside transactions
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(1)
	}
	return db, Migrate(db)
}

// OpenMemory opens a private in-memory SQLite database and migrates it.
// name must be unique per database wanted, e.g. t.Name() in tests.
func OpenMemory(name string, opts Options) (*gorm.DB, error) {
	name = strings.NewReplacer("/", "_", " ", "_").Replace(name)
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	db, err := open(sqlite.Open(dsn), opts, "sqlite")
	if err != nil {
		return nil, err
	}
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(1)
	}
	return db, Migrate(db)
}

// MySQLDSN builds a DSN for settings with UTF-8 and time parsing enabled.
func MySQLDSN(settings *conf.MySQLSettings) string {
	cfg := mysqldriver.NewConfig()
	cfg.User = settings.Username
	cfg.Passwd = settings.Password
	cfg.Net = "tcp"
	cfg.Addr = net.JoinHostPort(settings.Host, strconv.Itoa(settings.Port))
	cfg.DBName = settings.Database
	cfg.ParseTime = true
	cfg.ClientFoundRows = true
	cfg.Loc = time.UTC
	cfg.Params = map[string]string{"charset": "utf8mb4"}
	return cfg.FormatDSN()
}

// OpenMySQL connects to MySQL and migrates the schema.
func OpenMySQL(settings *conf.MySQLSettings, opts Options) (*gorm.DB, error) {
	db, err := open(mysql.Open(MySQLDSN(settings)), opts, "mysql")
	if err != nil {
		getLogger().Error("Failed to open MySQL database",
			"host", settings.Host,
			"port", settings.Port,
			"database", settings.Database,
			"error", err)
		return nil, err
	}
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(10)
		sqlDB.SetConnMaxLifetime(time.Hour)
	}
	return db, Migrate(db)
}

func open(dialector gorm.Dialector, opts Options, backend string) (*gorm.DB, error) {
	level := logger.Warn
	if opts.Debug {
		level = logger.Info
	}
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:  NewGormLogger(slowQueryThreshold, level, opts.Observer),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, errors.New(fmt.Errorf("failed to open %s database: %w", backend, err)).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("backend", backend).
			Build()
	}
	return db, nil
}

// Migrate creates or updates every table.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(entities.AllModels()...); err != nil {
		return errors.New(fmt.Errorf("auto migration failed: %w", err)).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "auto_migrate").
			Build()
	}
	return nil
}

// Close releases the underlying connection pool.
func Close(db *gorm.DB) error {
	if db == nil {
		return nil
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// WithTx runs fn in a transaction; nested calls use savepoints.
// Any error returned by fn rolls back everything fn wrote.
func WithTx(ctx context.Context, db *gorm.DB, fn func(tx *gorm.DB) error) error {
	return db.WithContext(ctx).Transaction(fn)
}
