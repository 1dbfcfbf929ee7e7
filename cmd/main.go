package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/quorumlabs/quorum/internal/adapters/http/api"
	"github.com/quorumlabs/quorum/internal/adapters/registry"
	"github.com/quorumlabs/quorum/internal/adapters/specialist"
	"github.com/quorumlabs/quorum/internal/app"
	"github.com/quorumlabs/quorum/internal/config"
	"github.com/quorumlabs/quorum/internal/domain/model"
	"github.com/quorumlabs/quorum/internal/payment"
	"github.com/quorumlabs/quorum/pkg/logger"
)

// HTTP server timeout constants.
const (
	readTimeout       = 10 * time.Second
	writeTimeout      = 120 * time.Second // must outlast the slowest specialist fan-out
	idleTimeout       = 60 * time.Second
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 30 * time.Second
)

func main() {
	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		return
	}

	log := logger.Get()

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		return
	}

	// Apply configured log level (fallback to info on invalid input)
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	seeds, err := seedsFromConfig(cfg)
	if err != nil {
		os.Stderr.WriteString("invalid specialist catalog: " + err.Error() + "\n")
		return
	}

	opts := []app.Option{
		app.WithLogger(log),
		app.WithSpecialists(seeds),
		app.WithPaymentMode(specialist.PaymentMode(cfg.PaymentMode)),
		app.WithPerCallTimeout(time.Duration(cfg.PerCallTimeoutMS) * time.Millisecond),
		app.WithPlatformFeePercent(cfg.PlatformFeePercent),
		app.WithMaxBudget(cfg.MaxBudget),
	}
	if cfg.PaymentMode == "paid" {
		// Real settlement is an external capability; the dev settler stands
		// in for it here. Paid calls still degrade with an explicit error
		// if no settler is wired at all.
		opts = append(opts, app.WithSettler(payment.NoopSettler{}))
	}

	svc := app.New(opts...)
	if err := svc.Start(ctx); err != nil {
		os.Stderr.WriteString("failed to start broker: " + err.Error() + "\n")
		return
	}
	defer svc.Stop()

	// HTTP mux and routes.
	mux := http.NewServeMux()
	apiServer := api.NewServer(svc)
	apiServer.Register(ctx, mux)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			os.Stderr.WriteString("HTTP server failed: " + err.Error() + "\n")
			return
		}
	}()

	<-ctx.Done()
	log.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}

	log.Info(ctx, "server stopped")
}

// seedsFromConfig parses the configured catalog into registry seeds.
func seedsFromConfig(cfg *config.Config) ([]registry.Seed, error) {
	seeds := make([]registry.Seed, 0, len(cfg.Specialists))
	for _, sc := range cfg.Specialists {
		category, err := model.ParseCategory(sc.Category)
		if err != nil {
			return nil, err
		}
		seeds = append(seeds, registry.Seed{
			ID:                sc.ID,
			Name:              sc.Name,
			Category:          category,
			Endpoint:          sc.Endpoint,
			Price:             sc.Price,
			InitialReputation: sc.InitialReputation,
			Active:            sc.Active,
		})
	}
	return seeds, nil
}
