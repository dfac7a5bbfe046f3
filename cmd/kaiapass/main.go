//go:build !lambda

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

	awsclient "github.com/kaiacity/kaiapass/internal/client/aws"
	"github.com/kaiacity/kaiapass/internal/config"
	"github.com/kaiacity/kaiapass/internal/logger"
	"github.com/kaiacity/kaiapass/internal/server"
	"go.uber.org/zap"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		log.Printf("Warning: %v. Proceeding with environment variables.", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig(ctx)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	logger.InitLogger(cfg.Stage)
	defer logger.Sync()

	app, err := server.Build(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to build application", zap.Error(err))
	}
	defer app.Close()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Port),
		Handler:           app.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Server starting",
			zap.String("port", cfg.Port),
			zap.String("stage", cfg.Stage),
			zap.String("provider_mode", cfg.ProviderMode),
			zap.Uint64("expected_chain_id", cfg.ExpectedChainID),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}
	app.Wallets.DisconnectAll(shutdownCtx)
	logger.Info("Server exiting")
}

// loadConfig reads secrets through Secrets Manager when the stage is
// deployed, and from plain variables locally.
func loadConfig(ctx context.Context) (*config.Config, error) {
	if os.Getenv("KAIAPASS_RPC_URL_SECRET_ARN") == "" && os.Getenv("DATABASE_URL_SECRET_ARN") == "" {
		return config.Load(ctx, nil)
	}
	secrets, err := awsclient.NewSecretsManagerClient(ctx)
	if err != nil {
		return nil, err
	}
	return config.Load(ctx, secrets)
}
