// Package main initializes and starts the key2key vault server, setting up
// configuration, logging, database connections, repositories, services and
// handlers.
package main

import (
	"cmp"
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	nethttp "net/http"

	"go.uber.org/zap"

	"github.com/key2key/server/internal/config"
	"github.com/key2key/server/internal/db"
	"github.com/key2key/server/internal/logger"
	"github.com/key2key/server/internal/repository"
	"github.com/key2key/server/internal/server/handler/http"
	"github.com/key2key/server/internal/service"
)

var (
	// version holds the build version set via ldflags.
	version string
	// buildDate holds the build timestamp set via ldflags.
	buildDate string
)

func main() {
	// Parse command-line and environment configuration.
	options := config.Parse()

	// Print build metadata (or "N/A" if unset).
	fmt.Printf("Build version: %s\n", cmp.Or(version, "N/A"))
	fmt.Printf("Build date: %s\n", cmp.Or(buildDate, "N/A"))

	// Initialize structured logging.
	log := logger.New()
	defer func() { _ = log.Log.Sync() }()
	if err := log.Init("Info"); err != nil {
		log.Log.Fatal("failed to init logger", zap.Error(err))
	}
	zapLogger := log.Log

	if options.JWTSecret == "" {
		zapLogger.Fatal("JWT secret is required (-secret flag or JWT_SECRET)")
	}

	// Initialize PostgreSQL connection and apply migrations.
	postgresDB, err := db.InitPostgres(options.DatabaseDSN)
	if err != nil {
		zapLogger.Fatal("cannot init database", zap.Error(err))
	}

	// Initialize repositories.
	userRepo := repository.NewPostgresUserRepository(postgresDB)
	credentialRepo := repository.NewPostgresCredentialRepository(postgresDB)
	permissionRepo := repository.NewPostgresPermissionRepository(postgresDB)

	// Initialize business-logic services.
	authService := service.NewAuthService(userRepo, options.JWTSecret, options.TokenTTL)
	credentialService := service.NewCredentialService(credentialRepo, permissionRepo)
	shareService := service.NewShareService(permissionRepo, userRepo, credentialRepo)

	// Create HTTP handlers.
	authHandler := &http.AuthHandler{AuthService: authService}
	credentialHandler := &http.CredentialHandler{CredentialService: credentialService}
	shareHandler := &http.ShareHandler{ShareService: shareService}

	// Build the router with middleware and routes.
	router := http.NewRouter(authHandler, credentialHandler, shareHandler, []byte(options.JWTSecret), zapLogger)

	server := &nethttp.Server{
		Addr:              options.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	// Shut down gracefully on SIGINT/SIGTERM.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigs
		zapLogger.Info("shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = server.Shutdown(ctx)
	}()

	zapLogger.Info("starting HTTP server", zap.String("addr", options.Port))
	if err := server.ListenAndServe(); err != nil && err != nethttp.ErrServerClosed {
		zapLogger.Fatal("failed to start HTTP server", zap.Error(err))
	}
}
