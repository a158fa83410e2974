package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"stress-client/internal/launcher"
	"stress-client/internal/logger"
)

// defaultClientBinary は同じディレクトリにあるstress-clientを探す
func defaultClientBinary() string {
	exe, err := os.Executable()
	if err != nil {
		return "stress-client"
	}
	candidate := filepath.Join(filepath.Dir(exe), "stress-client")
	if _, err := os.Stat(candidate); err != nil {
		return "stress-client"
	}
	return candidate
}

// Launcher はstress-launcherを実行し、終了コードを返す
// "--" より後ろの引数はそのまま各クライアントに渡す
func Launcher(args []string, stdout, stderr io.Writer) int {
	return runLauncher(args, stdout, stderr, nil)
}

func runLauncher(args []string, stdout, stderr io.Writer, command launcher.CommandFunc) int {
	d := launcher.DefaultConfig()
	cfg := d

	fs := flag.NewFlagSet("stress-launcher", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.IntVar(&cfg.Clients, "clients", d.Clients, "起動するクライアント数")
	fs.StringVar(&cfg.Binary, "client-binary", defaultClientBinary(), "stress-clientの実行ファイル")
	fs.StringVar(&cfg.OutputDir, "output-dir", d.OutputDir, "統計ファイルの出力先ディレクトリ")
	fs.DurationVar(&cfg.Duration, "duration", d.Duration, "実行時間 (例: 10s, 1m)")
	fs.DurationVar(&cfg.ReadyTimeout, "ready-timeout", d.ReadyTimeout, "readyを待つ時間")
	fs.DurationVar(&cfg.StopTimeout, "stop-timeout", d.StopTimeout, "割り込み後に終了を待つ時間")
	logLevel := fs.String("log-level", "info", "ログレベル (debug, info, warn, error)")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), `stress-launcher - start stress clients in lockstep

Usage:
  stress-launcher [options] -- [stress-client options]

Options:
`)
		fs.PrintDefaults()
		fmt.Fprintf(fs.Output(), `
Examples:
  # 8クライアントで30秒間
  stress-launcher --clients 8 --duration 30s -- --host db:5432 --table test.test

  # メモリドライバで動作確認
  stress-launcher --clients 2 --duration 3s -- --driver memory
`)
	}

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 1
	}
	cfg.Args = fs.Args()
	cfg.Stderr = stderr

	level, err := logger.ParseLevel(*logLevel)
	if err != nil {
		fmt.Fprintf(stderr, "stress-launcher: %v\n", err)
		return 1
	}
	log := logger.New(stderr, level)

	l := launcher.New(cfg)
	l.SetLogger(log)
	if command != nil {
		l.SetCommand(command)
	}

	ctx, stop := withInterrupt(context.Background(), log, "")
	defer stop()

	rep, err := l.Run(ctx)
	if err != nil {
		log.Error("", "実行エラー: %v", err)
		return 1
	}
	fmt.Fprintln(stdout, rep.String())
	return 0
}
