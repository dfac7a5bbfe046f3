// Package server assembles the HTTP application from configuration.
package server

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/gin-gonic/gin"
	awsclient "github.com/kaiacity/kaiapass/internal/client/aws"
	"github.com/kaiacity/kaiapass/internal/config"
	"github.com/kaiacity/kaiapass/internal/handlers"
	"github.com/kaiacity/kaiapass/internal/journal"
	"github.com/kaiacity/kaiapass/internal/logger"
	"github.com/kaiacity/kaiapass/internal/middleware"
	"github.com/kaiacity/kaiapass/internal/networks"
	"github.com/kaiacity/kaiapass/internal/notify"
	"github.com/kaiacity/kaiapass/internal/services"
	"github.com/kaiacity/kaiapass/internal/simulator"
	"github.com/kaiacity/kaiapass/internal/wallet"
	"github.com/kaiacity/kaiapass/internal/wallet/injected"
	"go.uber.org/zap"
)

const limiterEvictionInterval = 5 * time.Minute

// App is a fully wired service.
type App struct {
	Router  *gin.Engine
	Wallets *wallet.Adapter
	DID     *services.DIDService
	Journal journal.Journal

	closers []func()
}

// Close releases connections opened by Build in reverse order.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// Build wires the application. Background tasks stop when ctx is done.
func Build(ctx context.Context, cfg *config.Config) (*App, error) {
	log := logger.Named("bootstrap")
	app := &App{}
	registry := networks.DefaultRegistry()

	var (
		host       wallet.Host
		gasBackend *ethclient.Client
	)
	switch cfg.ProviderMode {
	case config.ModeSimulated:
		sim, err := simulator.New(
			simulator.WithChainID(cfg.ExpectedChainID),
			simulator.WithContract(cfg.ContractAddress),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create simulated wallet: %w", err)
		}
		host.Klaytn = sim
		log.Info("Using simulated Kaikas wallet", zap.Strings("accounts", sim.Accounts()))

	case config.ModeRPC:
		provider, err := injected.Dial(ctx, cfg.RPCURL, wallet.ProviderMarkers{IsKaikas: true})
		if err != nil {
			return nil, fmt.Errorf("failed to connect wallet provider: %w", err)
		}
		app.closers = append(app.closers, provider.Close)
		go provider.Watch(ctx, cfg.PollInterval)
		host.Klaytn = provider

		gasBackend, err = ethclient.DialContext(ctx, cfg.RPCURL)
		if err != nil {
			app.Close()
			return nil, fmt.Errorf("failed to connect gas backend: %w", err)
		}
		app.closers = append(app.closers, gasBackend.Close)
		log.Info("Using JSON-RPC wallet provider", zap.String("rpc_url", cfg.RPCURL))
	}

	app.Wallets = wallet.NewDefaultAdapter(wallet.NewStaticEnvironment(host), registry,
		wallet.WithRequestTimeout(cfg.RequestTimeout),
		wallet.WithReceiptTimeout(cfg.ReceiptTimeout),
	)

	j, err := buildJournal(ctx, cfg, app)
	if err != nil {
		app.Close()
		return nil, err
	}
	app.Journal = j

	publisher, err := buildPublisher(ctx, cfg)
	if err != nil {
		app.Close()
		return nil, err
	}

	opts := []services.DIDServiceOption{
		services.WithExpectedChainID(cfg.ExpectedChainID),
		services.WithContractAddress(cfg.ContractAddress),
		services.WithMaxRetries(cfg.MaxRetries),
		services.WithNetworks(registry),
		services.WithObservers(j, publisher),
	}
	if gasBackend != nil {
		opts = append(opts, services.WithGasBackend(gasBackend))
	}
	app.DID = services.NewDIDService(app.Wallets, opts...)

	limiter := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	go limiter.Run(ctx, limiterEvictionInterval)

	app.Router = NewRouter(RouterDeps{
		Common:      handlers.NewCommonServices(app.Wallets, app.DID, j, registry),
		RateLimiter: limiter,
		CORSOrigins: cfg.CORSAllowedOrigins,
	})
	return app, nil
}

func buildJournal(ctx context.Context, cfg *config.Config, app *App) (journal.Journal, error) {
	if cfg.DatabaseURL == "" {
		logger.Info("DATABASE_URL not set, journaling transactions in memory")
		return journal.NewMemoryJournal(), nil
	}
	pool, err := journal.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	app.closers = append(app.closers, pool.Close)
	j := journal.NewPostgresJournal(pool)
	if err := j.EnsureSchema(ctx); err != nil {
		return nil, err
	}
	return j, nil
}

func buildPublisher(ctx context.Context, cfg *config.Config) (services.TransactionObserver, error) {
	if cfg.EventsQueueURL == "" {
		return notify.NewNoopPublisher(), nil
	}
	client, err := awsclient.NewSQSClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create SQS client: %w", err)
	}
	return notify.NewSQSPublisher(client, cfg.EventsQueueURL), nil
}
