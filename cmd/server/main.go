package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"ocsbridge/internal/config"
	"ocsbridge/internal/db"
	"ocsbridge/internal/events"
	"ocsbridge/internal/handlers"
	"ocsbridge/internal/middleware"
	"ocsbridge/internal/models"
	"ocsbridge/internal/notify"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "ocsbridge",
	Short: "OCS Inventory compatible ingestion server",
	Long: `ocsbridge accepts hardware and software inventory from OCS Inventory
agents (XML, optionally compressed) and from JSON clients, and keeps the
current state of every device in SQLite or PostgreSQL.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		return run(cfg)
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the server version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("ocsbridge %s\n", version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is /etc/ocsbridge/config.yaml or ./config.yaml)")
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cfg models.Config) error {
	log.Printf("🚀 ocsbridge %s starting...", version)

	store, err := db.Open(cfg)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer store.Close()

	switch store.Dialect() {
	case db.Postgres:
		log.Printf("✅ Database connected (postgres, %d max connections)", cfg.DBMaxConns)
	default:
		log.Printf("✅ Database connected (%s)", cfg.DBPath)
	}

	bus := events.NewBus()
	notify.NewDispatcher(cfg.NotifyURLs, nil).Attach(bus)

	mux := http.NewServeMux()
	handlers.RegisterRoutes(mux,
		handlers.NewInventoryHandler(store, bus, cfg.MaxBodyBytes),
		handlers.NewSystemHandler(store, version))

	limiter := middleware.NewRateLimiter(cfg.RateLimit, time.Minute)
	if limiter == nil {
		log.Println("⚠️  Rate limiting disabled")
	}
	if err := limiter.TrustProxies(cfg.TrustedProxies); err != nil {
		return fmt.Errorf("trusted_proxies: %w", err)
	}
	limiter.OnReject(handlers.RejectRateLimited)

	srv := &http.Server{
		Addr: ":" + cfg.Port,
		Handler: middleware.Chain(mux,
			middleware.RequestID,
			middleware.Logging,
			middleware.CORS,
			limiter.Limit,
		),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       2 * time.Minute,
		WriteTimeout:      2 * time.Minute,
		IdleTimeout:       2 * time.Minute,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Printf("🌐 Listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Println("⏹️  Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	log.Println("👋 Server stopped")
	return nil
}
