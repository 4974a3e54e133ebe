package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"devdash/internal/api"
	"devdash/internal/config"
	"devdash/internal/consul"
	"devdash/internal/ports"
	"devdash/internal/service"
	"devdash/internal/storage"
	"devdash/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the dashboard server",
	Long: `Start the dashboard HTTP server, the log stream at /logs and the process
supervisor. On SIGINT or SIGTERM every running dev server is stopped before
the server exits.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&flagAddr, "addr", "", "listen address (default $DEVDASH_ADDR or :3100)")
}

// loadConfig reads the environment and applies command line overrides.
func loadConfig() *config.Config {
	cfg := config.Load()
	if flagAddr != "" {
		cfg.Server.Address = flagAddr
	}
	if flagConfig != "" {
		cfg.Projects.Path = flagConfig
	}
	if flagLogLevel != "" {
		cfg.Server.LogLevel = flagLogLevel
	}
	return cfg
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	logger := newLogger(cfg.Server.LogLevel)

	store, err := config.NewStore(cfg.Projects.Path)
	if err != nil {
		return err
	}
	logger.Info("loaded projects", "path", store.Path(), "projects", len(store.Projects()))

	alloc := ports.NewAllocator(store.PortRanges(), ports.Probe{})
	store.OnReload(func(f *config.File) {
		alloc.SetRanges(f.Ranges())
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	hooks := lifecycleHooks(ctx, cfg, logger)

	sup := service.NewSupervisor(
		service.WithLogger(logger.WithPrefix("supervisor")),
		service.WithAllocator(alloc),
		service.WithLogCapacity(cfg.Server.LogCapacity),
		service.WithHooks(hooks...),
	)

	if cfg.Projects.Watch {
		if err := config.Watch(ctx, store, logger.WithPrefix("config")); err != nil {
			logger.Warn("config watcher unavailable", "error", err)
		}
	}

	router, err := api.NewRouter(api.Dependencies{
		Supervisor:     sup,
		Catalog:        store,
		Ports:          alloc,
		TemplatesFS:    web.Templates(),
		StaticFS:       web.Static(),
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Logger:         logger,
	})
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("devdash listening", "addr", cfg.Server.Address, "version", Version)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			sup.StopAll(service.DefaultKillTimeout)
			return err
		}
	}

	logger.Info("shutting down", "running", sup.RunningCount())
	sup.StopAll(service.DefaultKillTimeout)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	logger.Info("server exited")
	return nil
}

// lifecycleHooks builds the optional Consul and S3 integrations. Either one
// failing to connect only disables that integration.
func lifecycleHooks(ctx context.Context, cfg *config.Config, logger *log.Logger) []service.LifecycleHook {
	var hooks []service.LifecycleHook

	if cfg.Consul.Address != "" {
		client, err := consul.NewClient(cfg.Consul.Address)
		switch {
		case err != nil:
			logger.Warn("consul unavailable", "error", err)
		default:
			if err := client.Healthy(); err != nil {
				logger.Warn("consul not healthy, registrations may fail", "addr", cfg.Consul.Address, "error", err)
			}
			hooks = append(hooks, consul.NewRegistrar(client, "127.0.0.1", logger.WithPrefix("consul")))
			logger.Info("consul registration enabled", "addr", cfg.Consul.Address)
		}
	}

	if cfg.S3.Enabled() {
		client, err := storage.NewClient(storage.Config{
			Endpoint:  cfg.S3.Endpoint,
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
			Region:    cfg.S3.Region,
			Bucket:    cfg.S3.Bucket,
			UseSSL:    cfg.S3.UseSSL,
		})
		if err != nil {
			logger.Warn("S3 storage unavailable", "error", err)
			return hooks
		}
		bucketCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		if err := client.EnsureBucket(bucketCtx); err != nil {
			logger.Warn("S3 log archive disabled", "endpoint", client.Endpoint(), "error", err)
			return hooks
		}
		hooks = append(hooks, storage.NewArchive(client, logger.WithPrefix("archive")))
		logger.Info("S3 log archive enabled", "endpoint", client.Endpoint(), "bucket", cfg.S3.Bucket)
	}

	return hooks
}
