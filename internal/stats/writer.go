package stats

import (
	"bufio"
	"errors"
	"fmt"
	"os"

	"github.com/hashicorp/go-multierror"

	"stress-client/internal/logger"
)

// ErrClosed は閉じたWriterへの書き込みで返される
var ErrClosed = errors.New("stats: writer is closed")

// Writer は統計ファイルへの追記を行う
type Writer struct {
	path   string
	file   *os.File
	buf    *bufio.Writer
	closed bool
	log    *logger.Logger
}

// Create は出力ファイルを追記モードで開く
func Create(path string) (*Writer, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open stats file: %w", err)
	}
	return &Writer{
		path: path,
		file: f,
		buf:  bufio.NewWriter(f),
		log:  logger.Default,
	}, nil
}

// SetLogger は警告の出力先を設定する
func (w *Writer) SetLogger(l *logger.Logger) {
	w.log = l
}

// Path はファイルパスを返す
func (w *Writer) Path() string {
	return w.path
}

// Closed は閉じられたかどうかを返す
func (w *Writer) Closed() bool {
	return w.closed
}

// Write はレコードを1行書き出し、フラッシュする
func (w *Writer) Write(rec Record) error {
	if w.closed {
		return ErrClosed
	}
	if _, err := w.buf.WriteString(rec.String() + "\n"); err != nil {
		return fmt.Errorf("failed to write stats record: %w", err)
	}
	if err := w.buf.Flush(); err != nil {
		return fmt.Errorf("failed to flush stats file: %w", err)
	}
	return nil
}

// Close はファイルを閉じる
// 既に閉じている場合は警告を出すだけで何もしない
func (w *Writer) Close() error {
	if w.closed {
		w.log.Warn("", "Stats file %s already closed", w.path)
		return nil
	}
	w.closed = true

	var result *multierror.Error
	if err := w.buf.Flush(); err != nil {
		result = multierror.Append(result, fmt.Errorf("flush: %w", err))
	}
	if err := w.file.Close(); err != nil {
		result = multierror.Append(result, fmt.Errorf("close: %w", err))
	}
	return result.ErrorOrNil()
}
