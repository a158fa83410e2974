package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"stress-client/internal/logger"
)

// withInterrupt はSIGINT/SIGTERMでキャンセルされるコンテキストを返す
// 2回目以降のシグナルは警告を出すだけ
func withInterrupt(parent context.Context, log *logger.Logger, clientID string) (context.Context, func()) {
	ctx, cancel := context.WithCancel(parent)

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	done := make(chan struct{})

	go func() {
		interrupted := false
		for {
			select {
			case <-done:
				return
			case sig := <-sigCh:
				if interrupted {
					log.Warn(clientID, "Received %v while already shutting down", sig)
					continue
				}
				interrupted = true
				log.Info(clientID, "Received %v, shutting down", sig)
				cancel()
			}
		}
	}()

	return ctx, func() {
		signal.Stop(sigCh)
		close(done)
		cancel()
	}
}
