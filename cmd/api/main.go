package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/plugin/dbresolver"

	"github.com/feral-file/ff-minter/internal/adapter"
	"github.com/feral-file/ff-minter/internal/api/rest"
	"github.com/feral-file/ff-minter/internal/api/server"
	"github.com/feral-file/ff-minter/internal/config"
	"github.com/feral-file/ff-minter/internal/generator"
	"github.com/feral-file/ff-minter/internal/identity"
	"github.com/feral-file/ff-minter/internal/logger"
	"github.com/feral-file/ff-minter/internal/messaging"
	"github.com/feral-file/ff-minter/internal/metadata"
	"github.com/feral-file/ff-minter/internal/minting"
	"github.com/feral-file/ff-minter/internal/providers/ethereum"
	"github.com/feral-file/ff-minter/internal/providers/jetstream"
	"github.com/feral-file/ff-minter/internal/providers/pinata"
	"github.com/feral-file/ff-minter/internal/session"
	"github.com/feral-file/ff-minter/internal/store"
)

var (
	configFile = flag.String("config", "", "Path to configuration file")
	envPath    = flag.String("env", "config/", "Path to environment files")
)

func main() {
	flag.Parse()

	// Load configuration
	config.ChdirRepoRoot()
	cfg, err := config.LoadAPIConfig(*configFile, *envPath)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}
	if err := cfg.Validate(); err != nil {
		panic(fmt.Sprintf("Invalid config: %v", err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize logger with sentry integration
	err = logger.Initialize(logger.Config{
		Debug:           cfg.Debug,
		SentryDSN:       cfg.SentryDSN,
		BreadcrumbLevel: zapcore.InfoLevel,
		Tags: map[string]string{
			"service": "ff-minter-api",
		},
	})
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Flush(2 * time.Second)
	logger.InfoCtx(ctx, "Starting Feral File Minter API")

	// Connect to database
	db, err := gorm.Open(postgres.Open(cfg.Database.DSN()), &gorm.Config{})
	if err != nil {
		logger.FatalCtx(ctx, "Failed to connect to database", zap.Error(err), zap.String("host", cfg.Database.Host))
	}

	// Reads of the minted count and records may go to replicas, writes always hit the primary
	if len(cfg.Database.ReplicaDSNs) > 0 {
		replicas := make([]gorm.Dialector, 0, len(cfg.Database.ReplicaDSNs))
		for _, dsn := range cfg.Database.ReplicaDSNs {
			replicas = append(replicas, postgres.Open(dsn))
		}
		if err := db.Use(dbresolver.Register(dbresolver.Config{
			Replicas: replicas,
			Policy:   dbresolver.RandomPolicy{},
		})); err != nil {
			logger.FatalCtx(ctx, "Failed to register read replicas", zap.Error(err))
		}
		logger.InfoCtx(ctx, "Registered read replicas", zap.Int("count", len(replicas)))
	}

	// Configure connection pool
	if err := store.ConfigureConnectionPool(db, cfg.Database.MaxOpenConns, cfg.Database.MaxIdleConns, cfg.Database.ConnMaxLifetime, cfg.Database.ConnMaxIdleTime); err != nil {
		logger.FatalCtx(ctx, "Failed to configure connection pool", zap.Error(err))
	}
	logger.InfoCtx(ctx, "Connected to database",
		zap.Int("max_open_conns", cfg.Database.MaxOpenConns),
		zap.Int("max_idle_conns", cfg.Database.MaxIdleConns),
	)

	// Initialize store
	dataStore := store.NewPGStore(db)

	// Initialize adapters
	clock := adapter.NewClock()
	jsonAdapter := adapter.NewJSON()

	// Identity resolver
	resolver, err := identity.NewResolver(identity.Config{
		PublicKey: cfg.Identity.PublicKey,
		Issuer:    cfg.Identity.Issuer,
		Audience:  cfg.Identity.Audience,
	}, clock)
	if err != nil {
		logger.FatalCtx(ctx, "Failed to create identity resolver", zap.Error(err))
	}

	// Metadata publication
	pinataClient, err := pinata.NewClient(adapter.NewHTTPClient(cfg.Pinata.Timeout), jsonAdapter, cfg.Pinata.APIURL, pinata.Credentials{
		JWT:          cfg.Pinata.JWT,
		APIKey:       cfg.Pinata.APIKey,
		SecretAPIKey: cfg.Pinata.SecretAPIKey,
	})
	if err != nil {
		logger.FatalCtx(ctx, "Failed to create pinata client", zap.Error(err))
	}
	builder := metadata.NewBuilder(cfg.Collection.ImageBaseURL)
	metadataPublisher := metadata.NewPublisher(pinataClient, jsonAdapter, adapter.NewJCS(), cfg.Pinata.GatewayURL)

	// Chain wallet
	connector, err := ethereum.NewConnector(ethereum.Config{
		RPCURL:             cfg.Chain.RPCURL,
		ChainID:            cfg.Chain.ChainID,
		ContractAddress:    cfg.Chain.ContractAddress,
		SignerPrivateKey:   cfg.Chain.SignerPrivateKey,
		ReceiptTimeout:     cfg.Chain.ReceiptTimeout,
		GasLimitMultiplier: cfg.Chain.GasLimitMultiplier,
	}, adapter.NewEthClientDialer())
	if err != nil {
		logger.FatalCtx(ctx, "Failed to create wallet connector", zap.Error(err))
	}
	defer connector.Close()

	mintPrice, err := ethereum.ParseEther(cfg.Chain.MintPrice)
	if err != nil {
		logger.FatalCtx(ctx, "Invalid mint price", zap.Error(err), zap.String("mint_price", cfg.Chain.MintPrice))
	}

	// Lifecycle events
	var events messaging.Publisher
	if cfg.NATS.URL != "" {
		events, err = jetstream.NewPublisher(ctx, jetstream.Config{
			URL:            cfg.NATS.URL,
			StreamName:     cfg.NATS.StreamName,
			MaxReconnects:  cfg.NATS.MaxReconnects,
			ReconnectWait:  cfg.NATS.ReconnectWait,
			ConnectionName: cfg.NATS.ConnectionName,
		}, adapter.NewNatsJetStream(), jsonAdapter)
		if err != nil {
			logger.FatalCtx(ctx, "Failed to create NATS publisher", zap.Error(err))
		}
		logger.InfoCtx(ctx, "Connected to NATS", zap.String("url", cfg.NATS.URL))
	} else {
		logger.WarnCtx(ctx, "NATS url not configured, lifecycle events are dropped")
		events = messaging.NewNoopPublisher()
	}
	defer events.Close()

	engine, err := generator.NewEngine(generator.Config{
		PoolSize: cfg.Collection.PoolSize,
		Delay:    cfg.Collection.GenerateDelay,
	}, dataStore, adapter.NewRandom(), clock, events)
	if err != nil {
		logger.FatalCtx(ctx, "Failed to create generator", zap.Error(err))
	}

	orchestrator, err := minting.NewOrchestrator(minting.Config{MintPrice: mintPrice},
		dataStore, connector, builder, metadataPublisher, events, clock)
	if err != nil {
		logger.FatalCtx(ctx, "Failed to create mint orchestrator", zap.Error(err))
	}

	// Sessions
	sessions := session.NewManager(session.Dependencies{
		Resolver:     resolver,
		Generator:    engine,
		Orchestrator: orchestrator,
		Store:        dataStore,
		Builder:      builder,
		Clock:        clock,
	}, session.Config{
		TTL:                 cfg.Session.TTL,
		GenerateDebounce:    cfg.Session.GenerateDebounce,
		MintDebounce:        cfg.Session.MintDebounce,
		MaxSupply:           cfg.Collection.MaxSupply,
		MintedCountFallback: cfg.Collection.MintedCountFallback,
	})
	go sessions.Run(ctx, session.DEFAULT_SWEEP_INTERVAL)

	handler := rest.NewHandler(rest.Config{
		MaxSupply:           cfg.Collection.MaxSupply,
		MintedCountFallback: cfg.Collection.MintedCountFallback,
		Frame: rest.FrameConfig{
			Title:       cfg.Collection.Name,
			Description: fmt.Sprintf("%s NFT for Farcaster users.", cfg.Collection.Name),
			ImageURL:    cfg.Collection.FrameImageURL,
			PostURL:     cfg.Collection.FrameURL,
			ButtonLabel: "Mint Now",
		},
	}, sessions, dataStore, builder, metadataPublisher)

	srv := server.New(server.Config{
		Debug:          cfg.Debug,
		Host:           cfg.Server.Host,
		Port:           cfg.Server.Port,
		ReadTimeout:    time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout:   time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:    time.Duration(cfg.Server.IdleTimeout) * time.Second,
		AllowedOrigins: cfg.Server.AllowedOrigins,
	}, handler)

	// Start server in a goroutine
	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil {
			errCh <- err
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		logger.InfoCtx(ctx, "Received shutdown signal", zap.String("signal", sig.String()))
		cancel()
	case err := <-errCh:
		logger.ErrorCtx(ctx, err, zap.String("component", "server"))
		cancel()
	}

	// Mint passes can still be waiting on a receipt, give them the receipt timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Chain.ReceiptTimeout+5*time.Second)
	defer shutdownCancel()

	logger.InfoCtx(shutdownCtx, "Shutting down server...")

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.ErrorCtx(shutdownCtx, err, zap.String("component", "server"))
	}

	// Use non-context logger for final message since original ctx is canceled
	logger.Info("API server stopped")
}
