// Package handshake implements the ready/go start barrier between a parent
// process and its stress clients.
//
// The client writes "ready" followed by a newline to its standard output once
// it is connected and validated, then blocks until the parent writes a single
// line to its standard input. The trimmed line must be "go"; anything else is
// a protocol error. The parent side is WaitReady followed by SendGo.
package handshake

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

const (
	// Ready はクライアントが準備完了を知らせる行
	Ready = "ready"
	// Go は親プロセスが開始を指示する行
	Go = "go"
)

// ErrProtocol は想定外の行を受け取った時に返される
var ErrProtocol = errors.New("handshake: protocol error")

type flusher interface {
	Flush() error
}

type syncer interface {
	Sync() error
}

// flush はバッファ付きの出力をすぐに相手へ届ける
func flush(w io.Writer) error {
	switch f := w.(type) {
	case flusher:
		return f.Flush()
	case syncer:
		// パイプや端末ではSyncが失敗することがあるが、書き込み自体は済んでいる
		_ = f.Sync()
	}
	return nil
}

// readLine は1行を読み込む。ctxがキャンセルされたら待たずに戻る
func readLine(ctx context.Context, r *bufio.Reader) (string, error) {
	type result struct {
		line string
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		line, err := r.ReadString('\n')
		ch <- result{line, err}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.err != nil && !(errors.Is(res.err, io.EOF) && res.line != "") {
			return "", fmt.Errorf("failed to read handshake line: %w", res.err)
		}
		return strings.TrimSpace(res.line), nil
	}
}

// Await はreadyを送り、goを受け取るまで待つ
func Await(ctx context.Context, r io.Reader, w io.Writer) error {
	if _, err := io.WriteString(w, Ready+"\n"); err != nil {
		return fmt.Errorf("failed to send ready: %w", err)
	}
	if err := flush(w); err != nil {
		return fmt.Errorf("failed to flush ready: %w", err)
	}

	line, err := readLine(ctx, bufio.NewReader(r))
	if err != nil {
		return err
	}
	if line != Go {
		return fmt.Errorf("%w: expected %q, got %q", ErrProtocol, Go, line)
	}
	return nil
}

// WaitReady は子プロセスからreadyが届くまで待つ
// 読み込み位置を保つため、同じbufio.Readerを使い続けること
func WaitReady(ctx context.Context, r *bufio.Reader) error {
	line, err := readLine(ctx, r)
	if err != nil {
		return err
	}
	if line != Ready {
		return fmt.Errorf("%w: expected %q, got %q", ErrProtocol, Ready, line)
	}
	return nil
}

// SendGo は子プロセスに開始を指示する
func SendGo(w io.Writer) error {
	if _, err := io.WriteString(w, Go+"\n"); err != nil {
		return fmt.Errorf("failed to send go: %w", err)
	}
	return flush(w)
}
