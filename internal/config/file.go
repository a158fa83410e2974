package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"stress-client/internal/logger"
	"stress-client/internal/stats"
	"stress-client/internal/workload"
)

// FileConfig は設定ファイルの構造
type FileConfig struct {
	Client  ClientSection  `yaml:"client" json:"client"`
	Store   StoreSection   `yaml:"store" json:"store"`
	Stats   StatsSection   `yaml:"stats" json:"stats"`
	Logging LoggingSection `yaml:"logging" json:"logging"`
	Metrics MetricsSection `yaml:"metrics" json:"metrics"`
}

// ClientSection は負荷の設定
type ClientSection struct {
	ID        string            `yaml:"id" json:"id"`
	Preset    string            `yaml:"preset" json:"preset"`
	Weights   *workload.Weights `yaml:"weights" json:"weights"`
	BatchSize int               `yaml:"batch_size" json:"batch_size"`
	Sindexes  []string          `yaml:"sindexes" json:"sindexes"`
	OpTimeout string            `yaml:"op_timeout" json:"op_timeout"`
}

// StoreSection は接続先の設定
type StoreSection struct {
	Driver   string `yaml:"driver" json:"driver"`
	Host     string `yaml:"host" json:"host"`
	Table    string `yaml:"table" json:"table"`
	User     string `yaml:"user" json:"user"`
	Password string `yaml:"password" json:"password"`
	DataDir  string `yaml:"data_dir" json:"data_dir"`

	FaultInterval string `yaml:"fault_interval" json:"fault_interval"`
}

// StatsSection は統計出力の設定
type StatsSection struct {
	Output      string `yaml:"output" json:"output"`
	DriftPolicy string `yaml:"drift_policy" json:"drift_policy"`
}

// LoggingSection はログの設定
type LoggingSection struct {
	Level string `yaml:"level" json:"level"`
}

// MetricsSection はPrometheusエンドポイントの設定
type MetricsSection struct {
	Addr string `yaml:"addr" json:"addr"`
}

// LoadFile は設定ファイルを読み込む
func LoadFile(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config FileConfig
	ext := strings.ToLower(filepath.Ext(path))

	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse YAML: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse JSON: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}

	return &config, nil
}

// Validate は設定ファイルの値を検証する
func (f *FileConfig) Validate() error {
	if f.Client.BatchSize < 0 {
		return invalid("client.batch_size", "must be non-negative")
	}
	if f.Client.Weights != nil {
		if err := f.Client.Weights.Validate(); err != nil {
			return &ConfigError{Field: "client.weights", Err: err}
		}
	}
	if f.Client.Preset != "" {
		if _, ok := GetPreset(f.Client.Preset); !ok {
			return invalid("client.preset", "unknown preset %q (available: %v)", f.Client.Preset, ListPresets())
		}
	}
	return nil
}

// Apply は設定ファイルの値をcfgに反映する。空の項目は無視する
func (f *FileConfig) Apply(cfg *Config) error {
	c := f.Client
	if c.ID != "" {
		cfg.ClientID = c.ID
	}
	if c.Weights != nil {
		cfg.Weights = *c.Weights
	}
	if c.BatchSize > 0 {
		cfg.BatchSize = c.BatchSize
	}
	if len(c.Sindexes) > 0 {
		cfg.Sindexes = append([]string(nil), c.Sindexes...)
	}
	if c.OpTimeout != "" {
		d, err := time.ParseDuration(c.OpTimeout)
		if err != nil {
			return invalid("client.op_timeout", "%v", err)
		}
		cfg.OpTimeout = d
	}

	s := f.Store
	if s.Driver != "" {
		cfg.Driver = s.Driver
	}
	if s.Host != "" {
		host, port, err := ParseHostPort(s.Host)
		if err != nil {
			return &ConfigError{Field: "store.host", Err: err}
		}
		cfg.Host, cfg.Port = host, port
	}
	if s.Table != "" {
		db, table, err := ParseDBTable(s.Table)
		if err != nil {
			return &ConfigError{Field: "store.table", Err: err}
		}
		cfg.Database, cfg.Table = db, table
	}
	if s.User != "" {
		cfg.User = s.User
	}
	if s.Password != "" {
		cfg.Password = s.Password
	}
	if s.DataDir != "" {
		cfg.DataDir = s.DataDir
	}
	if s.FaultInterval != "" {
		d, err := time.ParseDuration(s.FaultInterval)
		if err != nil {
			return invalid("store.fault_interval", "%v", err)
		}
		cfg.FaultInterval = d
	}

	if f.Stats.Output != "" {
		cfg.Output = f.Stats.Output
	}
	if f.Stats.DriftPolicy != "" {
		p, err := stats.ParseDriftPolicy(f.Stats.DriftPolicy)
		if err != nil {
			return &ConfigError{Field: "stats.drift_policy", Err: err}
		}
		cfg.DriftPolicy = p
	}

	if f.Logging.Level != "" {
		l, err := logger.ParseLevel(f.Logging.Level)
		if err != nil {
			return &ConfigError{Field: "logging.level", Err: err}
		}
		cfg.LogLevel = l
	}

	if f.Metrics.Addr != "" {
		cfg.MetricsAddr = f.Metrics.Addr
	}
	return nil
}
