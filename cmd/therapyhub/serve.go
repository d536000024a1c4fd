package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	_ "therapyhub/docs"
	"therapyhub/internal/adapters/auth"
	delivery "therapyhub/internal/delivery/http"
	"therapyhub/internal/delivery/http/controllers"
	"therapyhub/internal/domain"
	"therapyhub/internal/repository/postgres"
	"therapyhub/internal/services"
)

const shutdownTimeout = 15 * time.Second

func newServeCommand() *cobra.Command {
	var migrate bool
	cmd := &cobra.Command{
		Use:   "serve",
		Args:  cobra.NoArgs,
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, migrate)
		},
	}
	cmd.Flags().BoolVar(&migrate, "migrate", false, "apply pending migrations before serving")
	return cmd
}

func runServe(ctx context.Context, migrate bool) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()
	cfg, logger := a.cfg, a.logger

	db, err := a.openDB(ctx)
	if err != nil {
		return err
	}
	if migrate {
		applied, err := postgres.MigrateUp(ctx, db)
		if err != nil {
			return err
		}
		logger.Info("migrations applied", "files", applied)
	}
	workshopCache, err := a.workshopCache(ctx)
	if err != nil {
		return err
	}
	publisher, err := a.publisher()
	if err != nil {
		return err
	}
	gateway, verifier, err := a.paymentGateway()
	if err != nil {
		return err
	}
	if cfg.JWTSecret == "" {
		logger.Warn("JWT_SECRET not set, every authenticated request will be rejected")
	}

	var broker controllers.Pinger
	if p, ok := publisher.(controllers.Pinger); ok {
		broker = p
	}

	clock := domain.SystemClock{}
	workshopRepo := postgres.NewWorkshopRepository(db)
	registrationRepo := postgres.NewRegistrationRepository(db)

	workshopSvc := services.NewWorkshopService(workshopRepo, workshopCache, clock, cfg.Location, logger, cfg.RequestTimeout)
	registrationSvc := services.NewRegistrationService(workshopRepo, registrationRepo, gateway, publisher, workshopCache,
		clock, cfg.Location, logger, cfg.RequestTimeout)
	paymentSvc := services.NewPaymentService(workshopRepo, registrationRepo, gateway, verifier, cfg.Stripe.Currency,
		clock, cfg.Location, logger, cfg.RequestTimeout)

	router := delivery.NewRouter(delivery.RouterDeps{
		Logger:                 logger,
		Verifier:               auth.NewJWTVerifier(cfg.JWTSecret),
		AllowedOrigins:         cfg.AllowedOrigins,
		HealthController:       controllers.NewHealthController(logger, db, broker),
		WorkshopController:     controllers.NewWorkshopController(logger, workshopSvc),
		RegistrationController: controllers.NewRegistrationController(logger, registrationSvc),
		PaymentController:      controllers.NewPaymentController(logger, paymentSvc),
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", "addr", srv.Addr, "env", cfg.Environment)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info("server stopped")
	return nil
}
