// Package launcher is the parent side of a stress run.
//
// It starts a number of stress-client processes with their own output files,
// waits until every one of them has reported ready, releases them all at once
// with go, lets them run for the configured duration and then interrupts them.
// The stats files of all clients are aggregated into a report.
package launcher

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"

	"stress-client/internal/handshake"
	"stress-client/internal/logger"
	"stress-client/internal/report"
)

// Config はLauncherの設定
type Config struct {
	Clients      int           // 起動するクライアント数
	Binary       string        // stress-clientの実行ファイル
	Args         []string      // 全クライアントに渡す引数（--outputと--client-idは自動で付ける）
	OutputDir    string        // 統計ファイルの出力先
	Duration     time.Duration // goから割り込みまでの時間
	ReadyTimeout time.Duration // readyを待つ時間
	StopTimeout  time.Duration // 割り込み後に終了を待つ時間
	Stderr       io.Writer     // クライアントの標準エラーの出力先
}

// DefaultConfig はデフォルト設定を返す
func DefaultConfig() Config {
	return Config{
		Clients:      4,
		Binary:       "stress-client",
		OutputDir:    ".",
		Duration:     10 * time.Second,
		ReadyTimeout: 30 * time.Second,
		StopTimeout:  10 * time.Second,
		Stderr:       os.Stderr,
	}
}

// CommandFunc は子プロセスのコマンドを作る
type CommandFunc func(binary string, args ...string) *exec.Cmd

// Launcher は複数のクライアントを起動して同期させる
type Launcher struct {
	config  Config
	command CommandFunc
	log     *logger.Logger
}

// New は新しいLauncherを作成する
func New(config Config) *Launcher {
	return &Launcher{
		config:  config,
		command: exec.Command,
		log:     logger.Default,
	}
}

// SetCommand は子プロセスの作り方を差し替える
func (l *Launcher) SetCommand(fn CommandFunc) {
	l.command = fn
}

// SetLogger はロガーを設定する
func (l *Launcher) SetLogger(log *logger.Logger) {
	l.log = log
}

// child は起動したクライアント1つ
type child struct {
	id     string
	output string
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout *bufio.Reader
}

// Run は全クライアントを起動し、実行後に集計結果を返す
func (l *Launcher) Run(ctx context.Context) (*report.Report, error) {
	if l.config.Clients <= 0 {
		return nil, fmt.Errorf("launcher: clients must be positive, got %d", l.config.Clients)
	}
	if err := os.MkdirAll(l.config.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output dir: %w", err)
	}

	runID := uuid.NewString()[:8]
	l.log.Info("", "Run %s: starting %d clients", runID, l.config.Clients)

	children := make([]*child, 0, l.config.Clients)
	for i := range l.config.Clients {
		c, err := l.start(runID, i)
		if err != nil {
			l.kill(children)
			return nil, err
		}
		children = append(children, c)
	}

	if err := l.waitReady(ctx, children); err != nil {
		l.kill(children)
		return nil, err
	}

	for _, c := range children {
		if err := handshake.SendGo(c.stdin); err != nil {
			l.kill(children)
			return nil, fmt.Errorf("client %s: %w", c.id, err)
		}
	}
	l.log.Info("", "Run %s: all clients started, running for %v", runID, l.config.Duration)

	timer := time.NewTimer(l.config.Duration)
	select {
	case <-ctx.Done():
		l.log.Info("", "Run %s: interrupted", runID)
	case <-timer.C:
	}
	timer.Stop()

	if err := l.stop(children); err != nil {
		return nil, err
	}

	outputs := make([]string, len(children))
	for i, c := range children {
		outputs[i] = c.output
	}
	return report.AggregateFiles(outputs...)
}

// start はクライアントを1つ起動する
func (l *Launcher) start(runID string, i int) (*child, error) {
	id := fmt.Sprintf("%s-%d", runID, i)
	output := filepath.Join(l.config.OutputDir, fmt.Sprintf("client-%d.csv", i))

	args := append([]string(nil), l.config.Args...)
	args = append(args, "--output", output, "--client-id", id)
	cmd := l.command(l.config.Binary, args...)
	cmd.Stderr = l.config.Stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("client %s: %w", id, err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("client %s: %w", id, err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start client %s: %w", id, err)
	}

	l.log.Debug(id, "Started (pid %d)", cmd.Process.Pid)
	return &child{
		id:     id,
		output: output,
		cmd:    cmd,
		stdin:  stdin,
		stdout: bufio.NewReader(stdout),
	}, nil
}

// waitReady は全クライアントのreadyを待つ
func (l *Launcher) waitReady(ctx context.Context, children []*child) error {
	ctx, cancel := context.WithTimeout(ctx, l.config.ReadyTimeout)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	for _, c := range children {
		g.Go(func() error {
			if err := handshake.WaitReady(gctx, c.stdout); err != nil {
				return fmt.Errorf("client %s not ready: %w", c.id, err)
			}
			l.log.Debug(c.id, "Ready")
			return nil
		})
	}
	return g.Wait()
}

// stop は全クライアントに割り込みを送り、終了を待つ
func (l *Launcher) stop(children []*child) error {
	for _, c := range children {
		if err := c.cmd.Process.Signal(os.Interrupt); err != nil && !errors.Is(err, os.ErrProcessDone) {
			l.log.Warn(c.id, "Failed to interrupt: %v", err)
		}
	}

	errs := make([]error, len(children))
	var g errgroup.Group
	for i, c := range children {
		g.Go(func() error {
			errs[i] = l.wait(c)
			return nil
		})
	}
	_ = g.Wait()

	var result *multierror.Error
	for _, err := range errs {
		if err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

// wait はクライアントの終了を待つ。StopTimeoutを過ぎたら強制終了する
func (l *Launcher) wait(c *child) error {
	done := make(chan error, 1)
	go func() {
		_ = c.stdin.Close()
		done <- c.cmd.Wait()
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("client %s: %w", c.id, err)
		}
		return nil
	case <-time.After(l.config.StopTimeout):
		_ = c.cmd.Process.Kill()
		<-done
		return fmt.Errorf("client %s did not stop within %v", c.id, l.config.StopTimeout)
	}
}

// kill は起動済みのクライアントを強制終了する
func (l *Launcher) kill(children []*child) {
	for _, c := range children {
		_ = c.cmd.Process.Kill()
		_ = c.stdin.Close()
		_ = c.cmd.Wait()
	}
}
