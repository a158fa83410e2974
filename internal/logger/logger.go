package logger

import (
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Level はログレベルを表す
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

func (l Level) zapLevel() zapcore.Level {
	switch l {
	case LevelDebug:
		return zapcore.DebugLevel
	case LevelWarn:
		return zapcore.WarnLevel
	case LevelError:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// ParseLevel は文字列からログレベルを返す
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, nil
	case "", "info":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return LevelInfo, fmt.Errorf("unknown log level: %q", s)
	}
}

// Logger はzapをバックエンドにしたロガー
type Logger struct {
	level zap.AtomicLevel
	zl    *zap.Logger
}

// Default はデフォルトのロガー
// stdoutは親プロセスとのハンドシェイクに使うため、stderrに出力する
var Default = New(os.Stderr, LevelInfo)

// New は新しいロガーを作成する
func New(out io.Writer, minLevel Level) *Logger {
	atom := zap.NewAtomicLevelAt(minLevel.zapLevel())
	encCfg := zapcore.EncoderConfig{
		TimeKey:          "ts",
		LevelKey:         "level",
		MessageKey:       "msg",
		EncodeTime:       zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05.000"),
		EncodeLevel:      zapcore.CapitalLevelEncoder,
		EncodeDuration:   zapcore.StringDurationEncoder,
		ConsoleSeparator: " ",
	}
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encCfg),
		zapcore.Lock(zapcore.AddSync(out)),
		atom,
	)
	return &Logger{
		level: atom,
		zl:    zap.New(core),
	}
}

// SetLevel はログレベルを設定する
func (l *Logger) SetLevel(level Level) {
	l.level.SetLevel(level.zapLevel())
}

// Zap は構造化フィールドを使うコンポーネント向けにzap.Loggerを返す
func (l *Logger) Zap() *zap.Logger {
	return l.zl
}

// Sync はバッファされたログを書き出す
func (l *Logger) Sync() error {
	return l.zl.Sync()
}

// log は指定されたレベルでログを出力する
func (l *Logger) log(level Level, clientID string, format string, args ...any) {
	ce := l.zl.Check(level.zapLevel(), fmt.Sprintf(format, args...))
	if ce == nil {
		return
	}
	if clientID != "" {
		ce.Write(zap.String("client", clientID))
		return
	}
	ce.Write()
}

// Debug はデバッグログを出力する
func (l *Logger) Debug(clientID string, format string, args ...any) {
	l.log(LevelDebug, clientID, format, args...)
}

// Info は情報ログを出力する
func (l *Logger) Info(clientID string, format string, args ...any) {
	l.log(LevelInfo, clientID, format, args...)
}

// Warn は警告ログを出力する
func (l *Logger) Warn(clientID string, format string, args ...any) {
	l.log(LevelWarn, clientID, format, args...)
}

// Error はエラーログを出力する
func (l *Logger) Error(clientID string, format string, args ...any) {
	l.log(LevelError, clientID, format, args...)
}

// グローバル関数（デフォルトロガーを使用）

// Debug はデバッグログを出力する
func Debug(clientID string, format string, args ...any) {
	Default.Debug(clientID, format, args...)
}

// Info は情報ログを出力する
func Info(clientID string, format string, args ...any) {
	Default.Info(clientID, format, args...)
}

// Warn は警告ログを出力する
func Warn(clientID string, format string, args ...any) {
	Default.Warn(clientID, format, args...)
}

// Error はエラーログを出力する
func Error(clientID string, format string, args ...any) {
	Default.Error(clientID, format, args...)
}
