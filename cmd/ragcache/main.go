package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/xxxsen/common/logger"
	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/common/webapi"
	"go.uber.org/zap"

	"github.com/xxxsen/ragcache/internal/config"
	"github.com/xxxsen/ragcache/internal/handler"
	"github.com/xxxsen/ragcache/internal/middleware"
	"github.com/xxxsen/ragcache/internal/schedule"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:          "ragcache",
		Short:        "question answering over a knowledge base with a semantic response cache",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config.json")

	withApp := func(fn func(ctx context.Context, a *app, args []string) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			a, err := newApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.close()
			return fn(ctx, a, args)
		}
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run ragcache server",
		RunE:  withApp(runServer),
	}

	askCmd := &cobra.Command{
		Use:   "ask <query>",
		Short: "answer one question and wait for its cache write",
		Args:  cobra.MinimumNArgs(1),
		RunE: withApp(func(ctx context.Context, a *app, args []string) error {
			if err := a.writer.Start(ctx); err != nil {
				return fmt.Errorf("start writer: %w", err)
			}
			res, askErr := a.pipeline.Ask(ctx, strings.Join(args, " "))
			if err := a.writer.Stop(); err != nil {
				logutil.GetLogger(ctx).Warn("writer stop failed", zap.Error(err))
			}
			if askErr != nil {
				return askErr
			}
			return printJSON(os.Stdout, map[string]interface{}{
				"answer":     res.Answer.Answer,
				"references": res.Answer.References,
				"cached":     res.Cached,
			})
		}),
	}

	ingestCmd := &cobra.Command{
		Use:   "ingest",
		Short: "load documents from the configured source into the knowledge corpus",
		RunE: withApp(func(ctx context.Context, a *app, _ []string) error {
			if a.ingest == nil {
				return fmt.Errorf("source is not configured")
			}
			res, err := a.ingest.Run(ctx)
			if err != nil {
				return err
			}
			return printJSON(os.Stdout, res)
		}),
	}

	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "manage the response cache",
	}
	cacheCmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "list cached entry ids",
		RunE: withApp(func(ctx context.Context, a *app, _ []string) error {
			ids, err := a.admin.ListCacheEntries(ctx)
			if err != nil {
				return err
			}
			for _, id := range ids {
				fmt.Println(id)
			}
			return nil
		}),
	})
	cacheCmd.AddCommand(&cobra.Command{
		Use:   "clear [id]",
		Short: "clear one cached entry, or all entries when no id is given",
		Args:  cobra.MaximumNArgs(1),
		RunE: withApp(func(ctx context.Context, a *app, args []string) error {
			if len(args) == 1 {
				if err := a.admin.ClearCacheEntry(ctx, args[0]); err != nil {
					return err
				}
				fmt.Printf("cleared %s\n", args[0])
				return nil
			}
			n, err := a.admin.ClearAllCache(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("cleared %d entries\n", n)
			return nil
		}),
	})

	rootCmd.AddCommand(runCmd, askCmd, ingestCmd, cacheCmd)

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		logutil.GetLogger(context.Background()).Fatal("command failed", zap.Error(err))
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return nil, fmt.Errorf("--config is required")
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	logger.Init(
		cfg.LogConfig.File,
		cfg.LogConfig.Level,
		int(cfg.LogConfig.FileCount),
		int(cfg.LogConfig.FileSize),
		int(cfg.LogConfig.KeepDays),
		cfg.LogConfig.Console,
	)
	logutil.GetLogger(context.Background()).Info("config loaded", zap.String("config", path))
	return cfg, nil
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func runServer(ctx context.Context, a *app, _ []string) error {
	cfg := a.cfg
	logger := logutil.GetLogger(ctx)
	logger.Info("starting server",
		zap.Int("port", cfg.Port),
		zap.String("store", cfg.Store.Type),
		zap.Float64("threshold", cfg.Cache.Threshold),
		zap.Int("writer_workers", cfg.Writer.Workers),
	)

	// Workers outlive the signal so Stop can drain queued writes.
	if err := a.writer.Start(context.WithoutCancel(ctx)); err != nil {
		return fmt.Errorf("start writer: %w", err)
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	scheduler := schedule.NewCronScheduler()
	if err := a.scheduleJobs(scheduler); err != nil {
		return fmt.Errorf("schedule jobs: %w", err)
	}
	scheduler.Start(ctx)

	deps := handler.RouterDeps{
		Ask:     handler.NewAskHandler(a.pipeline),
		Cache:   handler.NewCacheHandler(a.admin),
		Metrics: promhttp.HandlerFor(a.metrics.Registry(), promhttp.HandlerOpts{}),
	}
	if a.ingest != nil {
		deps.Ingest = handler.NewIngestHandler(a.ingest)
	}
	addr := fmt.Sprintf("0.0.0.0:%d", cfg.Port)
	engine, err := webapi.NewEngine(
		"/api/v1",
		addr,
		webapi.WithRegister(func(group *gin.RouterGroup) {
			handler.RegisterRoutes(group, deps)
		}),
		webapi.WithExtraMiddlewares(
			middleware.RequestID(),
			middleware.APIMetrics(a.metrics),
			middleware.CORS(cfg.CORSOrigins),
			middleware.RateLimit(time.Duration(cfg.RateLimitMS)*time.Millisecond),
			gzip.Gzip(gzip.DefaultCompression),
		),
	)
	if err != nil {
		return fmt.Errorf("init web engine: %w", err)
	}
	logger.Info("http server listening", zap.String("addr", addr))

	go func() {
		if err := engine.Run(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("server stopping...")
	scheduler.Stop()
	if err := a.writer.Stop(); err != nil {
		logger.Warn("writer stop failed", zap.Error(err))
	}
	stats := a.writer.Stats()
	logger.Info("writer drained",
		zap.Int64("submitted", stats.Submitted),
		zap.Int64("processed", stats.Processed),
		zap.Int64("dropped", stats.Dropped),
	)
	return nil
}
