package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"

	"stress-client/internal/config"
	"stress-client/internal/events"
	"stress-client/internal/logger"
	"stress-client/internal/runner"
	"stress-client/internal/store/drivers"
	"stress-client/internal/store/memstore"
	"stress-client/internal/telemetry"
)

// Client はstress-clientを実行し、終了コードを返す
func Client(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	cfg, err := config.Parse(args, stderr)
	if errors.Is(err, flag.ErrHelp) {
		return 0
	}
	if err != nil {
		fmt.Fprintf(stderr, "stress-client: %v\n", err)
		return 1
	}

	log := logger.New(stderr, cfg.LogLevel)
	defer func() {
		_ = log.Sync()
	}()

	client, err := drivers.Open(cfg.Driver, cfg.StoreOptions())
	if err != nil {
		log.Error(cfg.ClientID, "設定エラー: %v", err)
		return 1
	}

	ctx, stop := withInterrupt(context.Background(), log, cfg.ClientID)
	defer stop()

	if ms, ok := client.(*memstore.Store); ok && cfg.FaultInterval > 0 {
		fc := memstore.DefaultFaultConfig()
		fc.Interval = cfg.FaultInterval
		injector := memstore.NewInjector(ms, fc)
		injector.Start(ctx)
		defer injector.Stop()
	}

	opts := []runner.Option{
		runner.WithStdio(stdin, stdout),
		runner.WithLogger(log),
	}

	var (
		tm  *telemetry.Metrics
		bus *events.Bus
	)
	if cfg.MetricsAddr != "" {
		tm = telemetry.NewMetrics(cfg.ClientID)
		bus = events.NewBus()
		defer bus.Close()
		opts = append(opts, runner.WithTelemetry(tm), runner.WithEvents(bus))
	}

	r, err := runner.New(runner.FromConfig(cfg), client, opts...)
	if err != nil {
		log.Error(cfg.ClientID, "設定エラー: %v", err)
		return 1
	}

	if cfg.MetricsAddr != "" {
		srvCtx, cancelSrv := context.WithCancel(context.Background())
		defer cancelSrv()
		srv := telemetry.NewServer(cfg.MetricsAddr, tm, bus, r.Status, log.Zap())
		go func() {
			if err := srv.Start(srvCtx); err != nil {
				log.Warn(cfg.ClientID, "Telemetry server stopped: %v", err)
			}
		}()
	}

	if err := r.Run(ctx); err != nil {
		log.Error(cfg.ClientID, "実行エラー: %v", err)
		return 1
	}
	return 0
}
