package config

import (
	"errors"
	"fmt"
	"net"
	"slices"
	"strconv"
	"strings"
	"time"

	"stress-client/internal/logger"
	"stress-client/internal/stats"
	"stress-client/internal/store"
	"stress-client/internal/store/drivers"
	"stress-client/internal/workload"
)

// ConfigError は設定の誤りを表す。作業開始前に致命的エラーとして扱う
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("config: %v", e.Err)
	}
	return fmt.Sprintf("config: %s: %v", e.Field, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

func invalid(field, format string, args ...any) error {
	return &ConfigError{Field: field, Err: fmt.Errorf(format, args...)}
}

// Config はクライアント1つ分の設定
type Config struct {
	ClientID string

	// 接続先
	Driver   string
	Host     string
	Port     int
	Database string
	Table    string
	User     string
	Password string
	DataDir  string

	// FaultInterval はmemoryドライバへの障害注入間隔（0で無効）
	FaultInterval time.Duration

	// 負荷
	Weights   workload.Weights
	BatchSize int
	Sindexes  []string
	OpTimeout time.Duration

	// 統計
	Output      string
	DriftPolicy stats.DriftPolicy

	LogLevel    logger.Level
	MetricsAddr string
}

// DefaultConfig はデフォルト設定を返す
func DefaultConfig() Config {
	return Config{
		Driver:      drivers.Postgres,
		Host:        "localhost",
		Port:        5432,
		Database:    "test",
		Table:       "test",
		Weights:     workload.DefaultWeights(),
		BatchSize:   100,
		OpTimeout:   10 * time.Second,
		DriftPolicy: stats.DriftPreserve,
		LogLevel:    logger.LevelInfo,
	}
}

// StoreOptions はドライバに渡す接続パラメータを返す
func (c Config) StoreOptions() store.Options {
	return store.Options{
		Host:     c.Host,
		Port:     c.Port,
		Database: c.Database,
		Table:    c.Table,
		User:     c.User,
		Password: c.Password,
		DataDir:  c.DataDir,
	}
}

// Validate は設定を検証する
func (c Config) Validate() error {
	if c.Output == "" {
		return invalid("output", "an output file is required")
	}
	if !slices.Contains(drivers.Names(), c.Driver) {
		return invalid("driver", "unknown driver %q (available: %v)", c.Driver, drivers.Names())
	}
	if c.Driver == drivers.SQLite && c.DataDir == "" {
		return invalid("data-dir", "the sqlite driver needs a data directory")
	}
	if c.Driver != drivers.SQLite && (c.Port <= 0 || c.Port > 65535) {
		return invalid("host", "port %d out of range", c.Port)
	}
	if c.Database == "" || c.Table == "" {
		return invalid("table", "database and table must not be empty")
	}
	if err := c.Weights.Validate(); err != nil {
		return &ConfigError{Field: "weights", Err: err}
	}
	if c.Weights.SindexRead > 0 && len(c.Sindexes) == 0 {
		return invalid("sindex-reads", "sindex reads requested without any --sindex")
	}
	if c.BatchSize < 1 {
		return invalid("batch-size", "must be at least 1, got %d", c.BatchSize)
	}
	if c.OpTimeout <= 0 {
		return invalid("op-timeout", "must be positive, got %v", c.OpTimeout)
	}
	if c.FaultInterval < 0 {
		return invalid("fault-interval", "must not be negative, got %v", c.FaultInterval)
	}
	if c.FaultInterval > 0 && c.Driver != drivers.Memory {
		return invalid("fault-interval", "fault injection is only supported by the memory driver")
	}
	return nil
}

// ParseHostPort は "HOST:PORT" を分解する
func ParseHostPort(s string) (string, int, error) {
	host, portStr, err := net.SplitHostPort(s)
	if err != nil {
		return "", 0, fmt.Errorf("invalid host %q: expected HOST:PORT: %w", s, err)
	}
	if host == "" {
		return "", 0, fmt.Errorf("invalid host %q: empty host name", s)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return "", 0, fmt.Errorf("invalid port in %q: %w", s, err)
	}
	if port <= 0 || port > 65535 {
		return "", 0, fmt.Errorf("invalid port in %q: out of range", s)
	}
	return host, port, nil
}

// ParseDBTable は "DB.TABLE" を分解する
func ParseDBTable(s string) (string, string, error) {
	db, table, ok := strings.Cut(s, ".")
	if !ok {
		return "", "", fmt.Errorf("invalid table %q: expected DB.TABLE", s)
	}
	if db == "" || table == "" || strings.Contains(table, ".") {
		return "", "", fmt.Errorf("invalid table %q: expected DB.TABLE", s)
	}
	return db, table, nil
}

// IsConfigError はerrが設定エラーかどうかを返す
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}
