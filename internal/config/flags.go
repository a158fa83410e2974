package config

import (
	"flag"
	"fmt"
	"io"
	"strings"
	"time"

	"stress-client/internal/logger"
	"stress-client/internal/stats"
	"stress-client/internal/store/drivers"
)

// stringList は繰り返し指定できる文字列フラグ
type stringList []string

func (s *stringList) String() string {
	return strings.Join(*s, ",")
}

func (s *stringList) Set(v string) error {
	*s = append(*s, v)
	return nil
}

// flagValues はフラグの生の値
type flagValues struct {
	configFile  string
	preset      string
	clientID    string
	driver      string
	host        string
	table       string
	user        string
	password    string
	dataDir     string
	faults      time.Duration
	reads       int
	writes      int
	sindexReads int
	deletes     int
	batchSize   int
	sindexes    stringList
	opTimeout   time.Duration
	output      string
	drift       string
	logLevel    string
	metricsAddr string
}

// newFlagSet はstress-clientのフラグを定義したFlagSetを返す
func newFlagSet(name string, v *flagValues) *flag.FlagSet {
	d := DefaultConfig()
	fs := flag.NewFlagSet(name, flag.ContinueOnError)

	fs.StringVar(&v.configFile, "config", "", "設定ファイルパス (YAML/JSON)")
	fs.StringVar(&v.preset, "preset", "", fmt.Sprintf("負荷プリセット名 %v", ListPresets()))
	fs.StringVar(&v.clientID, "client-id", "", "ログに付けるクライアントID")

	fs.StringVar(&v.driver, "driver", d.Driver, fmt.Sprintf("ストアドライバ %v", drivers.Names()))
	fs.StringVar(&v.host, "host", fmt.Sprintf("%s:%d", d.Host, d.Port), "接続先 HOST:PORT")
	fs.StringVar(&v.table, "table", d.Database+"."+d.Table, "対象テーブル DB.TABLE")
	fs.StringVar(&v.user, "user", "", "接続ユーザー")
	fs.StringVar(&v.password, "password", "", "接続パスワード")
	fs.StringVar(&v.dataDir, "data-dir", "", "sqliteドライバのデータディレクトリ")
	fs.DurationVar(&v.faults, "fault-interval", 0, "memoryドライバに障害を注入する間隔 (0で無効)")

	fs.IntVar(&v.reads, "reads", d.Weights.Read, "読み込みの重み")
	fs.IntVar(&v.writes, "writes", d.Weights.Write, "書き込みの重み")
	fs.IntVar(&v.sindexReads, "sindex-reads", d.Weights.SindexRead, "セカンダリインデックス読み込みの重み")
	fs.IntVar(&v.deletes, "deletes", d.Weights.Delete, "削除の重み")
	fs.IntVar(&v.batchSize, "batch-size", d.BatchSize, "一度に挿入する行数")
	fs.Var(&v.sindexes, "sindex", "セカンダリインデックス名 (複数指定可)")
	fs.DurationVar(&v.opTimeout, "op-timeout", d.OpTimeout, "1操作のタイムアウト")

	fs.StringVar(&v.output, "output", "", "統計の出力ファイル (必須)")
	fs.StringVar(&v.drift, "drift-policy", d.DriftPolicy.String(), "統計ウィンドウが遅れた時の扱い (preserve, resync)")
	fs.StringVar(&v.logLevel, "log-level", strings.ToLower(d.LogLevel.String()), "ログレベル (debug, info, warn, error)")
	fs.StringVar(&v.metricsAddr, "metrics-addr", "", "Prometheusエンドポイントのアドレス (例: :9100)")

	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), `stress-client - weighted read/write/delete load against one table

Usage:
  %s --output FILE [options]

Options:
`, name)
		fs.PrintDefaults()
		fmt.Fprintf(fs.Output(), `
Examples:
  # デフォルトの負荷 (読み5 書き3 削除2)
  stress-client --host localhost:5432 --table test.test --output client-0.csv

  # プリセットと設定ファイル
  stress-client --preset churn --config client.yaml --output client-0.csv

  # メモリドライバで動作確認
  stress-client --driver memory --output /tmp/stats.csv

  # 障害注入でバックオフを確認
  stress-client --driver memory --fault-interval 3s --output /tmp/stats.csv
`)
	}

	return fs
}

// Parse はコマンドライン引数から設定を組み立てて検証する
// -h が指定された場合は flag.ErrHelp を返す
func Parse(args []string, output io.Writer) (Config, error) {
	var v flagValues
	fs := newFlagSet("stress-client", &v)
	fs.SetOutput(output)

	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return Config{}, err
		}
		return Config{}, &ConfigError{Err: err}
	}
	if fs.NArg() > 0 {
		return Config{}, invalid("", "unexpected positional arguments: %v", fs.Args())
	}

	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) {
		set[f.Name] = true
	})

	cfg := DefaultConfig()

	var file *FileConfig
	if v.configFile != "" {
		f, err := LoadFile(v.configFile)
		if err != nil {
			return Config{}, &ConfigError{Field: "config", Err: err}
		}
		if err := f.Validate(); err != nil {
			return Config{}, err
		}
		file = f
	}

	// 1. プリセット（フラグ優先、なければファイル）
	presetName := v.preset
	if presetName == "" && file != nil {
		presetName = file.Client.Preset
	}
	if presetName != "" {
		p, ok := GetPreset(presetName)
		if !ok {
			return Config{}, invalid("preset", "unknown preset %q (available: %v)", presetName, ListPresets())
		}
		p.Apply(&cfg)
	}

	// 2. 設定ファイル
	if file != nil {
		if err := file.Apply(&cfg); err != nil {
			return Config{}, err
		}
	}

	// 3. 明示的に指定されたフラグ
	if err := v.apply(&cfg, set); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// apply は明示的に指定されたフラグだけをcfgに反映する
func (v *flagValues) apply(cfg *Config, set map[string]bool) error {
	if set["client-id"] {
		cfg.ClientID = v.clientID
	}
	if set["driver"] {
		cfg.Driver = v.driver
	}
	if set["host"] {
		host, port, err := ParseHostPort(v.host)
		if err != nil {
			return &ConfigError{Field: "host", Err: err}
		}
		cfg.Host, cfg.Port = host, port
	}
	if set["table"] {
		db, table, err := ParseDBTable(v.table)
		if err != nil {
			return &ConfigError{Field: "table", Err: err}
		}
		cfg.Database, cfg.Table = db, table
	}
	if set["user"] {
		cfg.User = v.user
	}
	if set["password"] {
		cfg.Password = v.password
	}
	if set["data-dir"] {
		cfg.DataDir = v.dataDir
	}
	if set["fault-interval"] {
		cfg.FaultInterval = v.faults
	}
	if set["reads"] {
		cfg.Weights.Read = v.reads
	}
	if set["writes"] {
		cfg.Weights.Write = v.writes
	}
	if set["sindex-reads"] {
		cfg.Weights.SindexRead = v.sindexReads
	}
	if set["deletes"] {
		cfg.Weights.Delete = v.deletes
	}
	if set["batch-size"] {
		cfg.BatchSize = v.batchSize
	}
	if set["sindex"] {
		cfg.Sindexes = append([]string(nil), v.sindexes...)
	}
	if set["op-timeout"] {
		cfg.OpTimeout = v.opTimeout
	}
	if set["output"] {
		cfg.Output = v.output
	}
	if set["drift-policy"] {
		p, err := stats.ParseDriftPolicy(v.drift)
		if err != nil {
			return &ConfigError{Field: "drift-policy", Err: err}
		}
		cfg.DriftPolicy = p
	}
	if set["log-level"] {
		l, err := logger.ParseLevel(v.logLevel)
		if err != nil {
			return &ConfigError{Field: "log-level", Err: err}
		}
		cfg.LogLevel = l
	}
	if set["metrics-addr"] {
		cfg.MetricsAddr = v.metricsAddr
	}
	return nil
}
