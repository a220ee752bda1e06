package main

import (
	"context"
	"fmt"
	"time"

	"github.com/Sternrassler/fork-purger/internal/config"
	"github.com/Sternrassler/fork-purger/pkg/client"
	"github.com/Sternrassler/fork-purger/pkg/logging"
	"github.com/Sternrassler/fork-purger/pkg/metrics"
	"github.com/Sternrassler/fork-purger/pkg/pagination"
	"github.com/Sternrassler/fork-purger/pkg/purge"
)

const banner = `
+-+-+-+-+ +-+-+-+-+-+-+
|F|o|r|k| |P|u|r|g|e|r|
+-+-+-+-+ +-+-+-+-+-+-+
`

// run wires the client, sink and orchestrator for cfg and executes one run.
func (a *app) run(ctx context.Context, cfg *config.Config) (purge.Result, error) {
	logCfg := logging.DefaultConfig()
	logCfg.Output = a.errOut
	logCfg.Pretty = logging.IsTerminal(a.errOut)
	logCfg.Level = logging.LogLevel(cfg.LogLevel)
	if cfg.Debug {
		logCfg.Level = logging.LevelDebug
	}
	logger := logging.Setup(logCfg)

	redisClient, err := cfg.RedisClient()
	if err != nil {
		return purge.Result{}, err
	}
	if redisClient != nil {
		defer redisClient.Close()

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := redisClient.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			return purge.Result{}, fmt.Errorf("connect to redis: %w", err)
		}
	}

	if cfg.MetricsAddr != "" {
		metricsCtx, stopMetrics := context.WithCancel(ctx)
		defer stopMetrics()
		go func() {
			if err := metrics.Serve(metricsCtx, cfg.MetricsAddr, logging.NewLogger("metrics")); err != nil {
				logger.Error().Err(err).Str("addr", cfg.MetricsAddr).Msg("Metrics server failed")
			}
		}()
	}

	clientCfg := client.DefaultConfig(cfg.Username, cfg.Token)
	clientCfg.Redis = redisClient
	clientCfg.BaseURL = cfg.BaseURL
	clientCfg.PerPage = cfg.PerPage
	if cfg.UserAgent != "" {
		clientCfg.UserAgent = cfg.UserAgent
	}
	gh, err := client.New(clientCfg)
	if err != nil {
		return purge.Result{}, err
	}

	mode := purge.ModeReport
	var sink purge.Sink = purge.NewReportSink(a.out)
	if cfg.Delete {
		mode = purge.ModeDelete
		sink = purge.NewRemoteSink(gh, a.out, logging.NewLogger("sink"))
	}

	orch, err := purge.New(gh.ForkSource(), sink, purge.Config{
		Concurrency:         cfg.Concurrency,
		MaxItemsPerConsumer: cfg.MaxItemsPerConsumer,
		Pagination: pagination.Config{
			MaxPages:  cfg.MaxPages,
			PagePause: cfg.PagePause,
		},
	}, logger)
	if err != nil {
		return purge.Result{}, err
	}

	printHeading(a.out, mode)

	result, runErr := orch.Run(ctx)

	fmt.Fprintln(a.out)
	fmt.Fprintln(a.out, renderSummary(result, mode, runErr))
	return result, runErr
}
