package db

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	cgosqlite "gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Sterowniki bazy obsługiwane w configu.
const (
	DriverSQLite    = "sqlite"     // czyste Go (glebarez), domyślny
	DriverSQLiteCGO = "sqlite-cgo" // mattn/go-sqlite3 przez gorm.io/driver/sqlite
	DriverMySQL     = "mysql"
	DriverPostgres  = "postgres"
)

// DefaultFile – nazwa pliku bazy SQLite w katalogu aplikacji.
const DefaultFile = "paketpilot.db"

// Config – sekcja "database" w config.json.
type Config struct {
	Driver string `json:"driver"`
	DSN    string `json:"dsn,omitempty"` // dla sqlite puste = <dir>/paketpilot.db
	Debug  bool   `json:"debug,omitempty"`
}

type Handle struct {
	DB     *gorm.DB
	Driver string
	Path   string // plik SQLite albo DSN
}

// Open otwiera bazę wg cfg. dir to katalog aplikacji dla domyślnego pliku SQLite.
func Open(cfg Config, dir string) (*Handle, error) {
	driver := cfg.Driver
	if driver == "" {
		driver = DriverSQLite
	}
	dsn := cfg.DSN

	var dial gorm.Dialector
	switch driver {
	case DriverSQLite, DriverSQLiteCGO:
		if dsn == "" {
			dsn = filepath.Join(dir, DefaultFile)
		}
		if driver == DriverSQLite {
			dial = sqlite.Open(dsn)
		} else {
			dial = cgosqlite.Open(dsn)
		}
	case DriverMySQL:
		if dsn == "" {
			return nil, fmt.Errorf("database: driver %s wymaga dsn", driver)
		}
		dial = mysql.Open(dsn)
	case DriverPostgres:
		if dsn == "" {
			return nil, fmt.Errorf("database: driver %s wymaga dsn", driver)
		}
		dial = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("database: nieznany driver %q", driver)
	}

	gcfg := &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true, // naruszenie unikalności -> gorm.ErrDuplicatedKey
	}
	if cfg.Debug {
		gcfg.Logger = logger.Default.LogMode(logger.Info)
	}
	gdb, err := gorm.Open(dial, gcfg)
	if err != nil {
		return nil, fmt.Errorf("database open (%s): %w", driver, err)
	}
	if driver == DriverSQLite || driver == DriverSQLiteCGO {
		// jeden pisarz; SQLite i tak serializuje zapisy
		if sqlDB, err := gdb.DB(); err == nil {
			sqlDB.SetMaxOpenConns(1)
		}
	}
	return &Handle{DB: gdb, Driver: driver, Path: dsn}, nil
}

// OpenAt – skrót: SQLite w katalogu dir.
func OpenAt(dir string) (*Handle, error) {
	return Open(Config{Driver: DriverSQLite}, dir)
}

func (h *Handle) Close() error {
	sqlDB, err := h.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (h *Handle) ctx(ctx context.Context) *gorm.DB {
	return h.DB.WithContext(ctx)
}
