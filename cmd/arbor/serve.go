package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	backend "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/arborlabs/arbor"
	"github.com/arborlabs/arbor/internal/config"
	"github.com/arborlabs/arbor/internal/logging"
	arborhttp "github.com/arborlabs/arbor/pkg/adapters/http"
	"github.com/arborlabs/arbor/pkg/adapters/memory"
	arborredis "github.com/arborlabs/arbor/pkg/adapters/redis"
	"github.com/arborlabs/arbor/pkg/observability"
	"github.com/arborlabs/arbor/pkg/supervise"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the instance HTTP server",
	Long:  `Starts the arbor runtime in server mode, exposing instance operations as a JSON API plus Prometheus metrics.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfgPath, _ := cmd.Flags().GetString("config")
		cfg, err := config.Load(cfgPath)
		if err != nil {
			fmt.Printf("Error loading manifest: %v\n", err)
			os.Exit(1)
		}

		logger := logging.New(logLevel(cfg.Log.Level))
		reg := prometheus.NewRegistry()
		metrics := observability.MustNew(reg)

		rtOpts := []arbor.Option{
			arbor.WithLogger(logger),
			arbor.WithMetrics(metrics),
		}
		if cfg.Notifications.Buffer > 0 {
			rtOpts = append(rtOpts, arbor.WithNotificationBuffer(cfg.Notifications.Buffer))
		}
		rt := arbor.New(rtOpts...)
		defer func() {
			if err := rt.Close(); err != nil {
				logger.Error("runtime close failed", "err", err)
			}
		}()

		superOpts := []supervise.Option{
			supervise.WithLogger(logger),
			supervise.WithLockTTL(cfg.Lock.TTL),
		}
		if cfg.Redis.Addr != "" {
			client := backend.NewClient(&backend.Options{Addr: cfg.Redis.Addr})
			defer client.Close()

			storeOpts := []arborredis.StoreOption{}
			if cfg.Redis.Prefix != "" {
				storeOpts = append(storeOpts, arborredis.WithPrefix(cfg.Redis.Prefix))
			}
			if cfg.Redis.SnapshotTTL > 0 {
				storeOpts = append(storeOpts, arborredis.WithTTL(cfg.Redis.SnapshotTTL))
			}
			superOpts = append(superOpts,
				supervise.WithStore(arborredis.NewStore(client, storeOpts...)),
				supervise.WithLocker(arborredis.NewLocker(client, cfg.Redis.Prefix)),
			)
		} else {
			superOpts = append(superOpts, supervise.WithStore(memory.NewStore()))
		}

		super := supervise.New(rt, builtinSource(), superOpts...)

		ctx := context.Background()
		for _, inst := range cfg.Instances {
			if _, err := super.LoadOrSpawn(ctx, inst.ID, inst.Definition, inst.Args...); err != nil {
				fmt.Printf("Error spawning %q: %v\n", inst.ID, err)
				os.Exit(1)
			}
			logger.Info("spawned manifest instance", "instance_id", inst.ID, "definition", inst.Definition)
		}

		mux := chi.NewRouter()
		mux.Mount("/", arborhttp.NewHandler(super, arborhttp.WithLogger(logger)))
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

		srv := &http.Server{
			Addr:    cfg.Server.Listen,
			Handler: mux,
		}

		serverErrors := make(chan error, 1)
		go func() {
			fmt.Printf("Starting Arbor Server on %s\n", srv.Addr)
			serverErrors <- srv.ListenAndServe()
		}()

		shutdown := make(chan os.Signal, 1)
		signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

		select {
		case err := <-serverErrors:
			fmt.Printf("Server error: %v\n", err)
			os.Exit(1)

		case sig := <-shutdown:
			fmt.Printf("\nStart shutdown... Signal: %v\n", sig)

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			if err := srv.Shutdown(shutdownCtx); err != nil {
				fmt.Printf("Graceful shutdown did not complete in %v: %v\n", 5*time.Second, err)
				if err := srv.Close(); err != nil {
					fmt.Printf("Error killing server: %v\n", err)
				}
			}
			fmt.Println("Arbor Server stopped gracefully")
		}
	},
}

func logLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
