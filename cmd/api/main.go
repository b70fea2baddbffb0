package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tarotjournal/internal/config"
	"tarotjournal/internal/database"
	"tarotjournal/internal/logger"
	"tarotjournal/internal/server"
	"tarotjournal/internal/validator"
)

// @title           Tarot Journal API
// @version         1.0
// @description     Account and session service for the tarot journal: registration, email verification, login lockout, password reset and admin user management.

// @host      localhost:3000
// @BasePath  /api

// @securityDefinitions.apikey SessionCookie
// @in cookie
// @name tarot_session
// @description Session cookie set by /auth/login.

func main() {
	// Initialize logger (use ENV var if available, default to development)
	logger.Init(os.Getenv("ENV"))
	defer logger.Sync()

	if err := run(); err != nil {
		logger.Get().Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	log := logger.Get()

	// Load configuration
	appConfig, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Initialize database configuration
	dbConfig, err := database.NewConfig()
	if err != nil {
		return fmt.Errorf("failed to load database configuration: %w", err)
	}

	// Create database manager
	dbManager, err := database.NewManager(dbConfig)
	if err != nil {
		return fmt.Errorf("failed to create database manager: %w", err)
	}
	defer func() {
		if err := dbManager.Close(); err != nil {
			log.Warnw("failed to close database", "error", err)
		}
	}()

	// Run migrations
	if err := dbManager.RunMigrations(); err != nil {
		return fmt.Errorf("failed to run database migrations: %w", err)
	}

	validator.Register()

	mail, err := server.NewMailer(appConfig)
	if err != nil {
		return fmt.Errorf("failed to initialize mailer: %w", err)
	}

	app, err := server.New(dbManager.DB(), server.ConfigFrom(appConfig), mail)
	if err != nil {
		return fmt.Errorf("failed to build server: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.Admin.BootstrapAdmin(ctx, appConfig.AdminUsername); err != nil {
		return fmt.Errorf("failed to bootstrap admin: %w", err)
	}

	go app.Sessions.RunPurger(ctx, appConfig.SessionPurgeIn)

	srv := &http.Server{
		Addr:              ":" + appConfig.Port,
		Handler:           app.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("Starting Tarot Journal API on port %s (%s)", appConfig.Port, appConfig.Env)
		if !appConfig.IsProduction() {
			log.Infof("Swagger documentation available at http://localhost:%s/swagger/index.html", appConfig.Port)
		}
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
