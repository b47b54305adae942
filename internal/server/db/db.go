package db

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/leadhub/leadhub/internal/log"
	"github.com/leadhub/leadhub/internal/pkg/sqlite"
)

// Config points at the record database that holds the people table.
type Config struct {
	Dialect string `conf:"dialect" yaml:"dialect" json:"dialect"`
	DSN     string `conf:"dsn" yaml:"dsn" json:"dsn"`
	Table   string `conf:"table" yaml:"table" json:"table"`
	Debug   bool   `conf:"debug" yaml:"debug" json:"debug"`

	MaxOpenConns int `conf:"max_open_conns" yaml:"max_open_conns" json:"max_open_conns"`
}

const (
	DialectSQLite   = "sqlite3"
	DialectPostgres = "postgres"
	DialectMySQL    = "mysql"
)

var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{0,63}$`)

// ValidTableName reports whether name can be spliced into a query as a bare identifier.
func ValidTableName(name string) bool {
	return tableNamePattern.MatchString(name)
}

func NormalizeDialect(dialect string) string {
	switch strings.ToLower(dialect) {
	case "postgres", "pgx", "postgresdb", "pg", "postgresql":
		return DialectPostgres
	case "mysql", "tidb":
		return DialectMySQL
	default:
		return DialectSQLite
	}
}

// NewRecordDB opens the record database for cfg.Dialect.
func NewRecordDB(cfg Config) (*sql.DB, error) {
	var driver string

	switch strings.ToLower(cfg.Dialect) {
	case "postgres", "pgx", "postgresdb", "pg", "postgresql":
		driver = "pgx"
	case "sqlite3", "sqlite", "":
		driver = sqlite.DriverName
	case "mysql", "tidb":
		driver = "mysql"
	default:
		return nil, fmt.Errorf("invalid dialect: %s", cfg.Dialect)
	}

	sqlDB, err := sql.Open(driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open record db: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}

	sqlDB.SetConnMaxIdleTime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping record db: %w", err)
	}

	log.Info(ctx, "record db connected",
		log.String("dialect", NormalizeDialect(cfg.Dialect)),
		log.String("table", cfg.Table),
	)

	return sqlDB, nil
}

// Placeholders renders n bind markers for dialect, numbering from start for postgres.
func Placeholders(dialect string, start, n int) string {
	if dialect != DialectPostgres {
		return sqlite.Placeholders(n)
	}

	var sb strings.Builder

	for i := range n {
		if i > 0 {
			sb.WriteString(", ")
		}

		sb.WriteString("$")
		sb.WriteString(strconv.Itoa(start + i))
	}

	return sb.String()
}
