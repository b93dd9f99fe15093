// Package main provides the btcfid daemon, a signet hot wallet served over JSON-RPC.
package main

import (
	"context"
	"flag"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/btcfi-labs/btcfi-wallet/internal/backend"
	"github.com/btcfi-labs/btcfi-wallet/internal/chain"
	"github.com/btcfi-labs/btcfi-wallet/internal/config"
	"github.com/btcfi-labs/btcfi-wallet/internal/faucet"
	"github.com/btcfi-labs/btcfi-wallet/internal/funding"
	"github.com/btcfi-labs/btcfi-wallet/internal/rpc"
	"github.com/btcfi-labs/btcfi-wallet/internal/storage"
	"github.com/btcfi-labs/btcfi-wallet/internal/wallet"
	"github.com/btcfi-labs/btcfi-wallet/pkg/logging"
)

var (
	version = rpc.Version
	commit  = "unknown"
)

func main() {
	var (
		dataDir     = flag.String("data-dir", "~/.btcfi", "Data directory")
		configFile  = flag.String("config", "", "Config file path (default: <data-dir>/config.yaml)")
		apiAddr     = flag.String("api", "", "JSON-RPC API address, overrides config")
		network     = flag.String("network", "", "Network profile (mutinynet, signet, testnet, regtest), overrides config")
		logLevel    = flag.String("log-level", "", "Log level (debug, info, warn, error), overrides config")
		showVersion = flag.Bool("version", false, "Show version and exit")
	)
	flag.Parse()

	// Initial logger, replaced once the config is loaded
	log := logging.New(&logging.Config{
		Level:      "info",
		TimeFormat: time.TimeOnly,
	})
	logging.SetDefault(log)

	if *showVersion {
		log.Infof("btcfid %s (commit: %s)", version, commit)
		os.Exit(0)
	}

	var cfg *config.Config
	var err error
	if *configFile != "" {
		cfg, err = config.LoadFile(*configFile)
	} else {
		cfg, err = config.LoadConfig(*dataDir)
	}
	if err != nil {
		log.Fatal("Failed to load config", "error", err)
	}

	// CLI flags take precedence over the config file
	if *apiAddr != "" {
		cfg.API.Listen = *apiAddr
	}
	if *network != "" {
		cfg.Network = *network
	}
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}
	if *configFile == "" {
		cfg.Storage.DataDir = *dataDir
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal("Invalid config", "error", err)
	}

	var logOut io.Writer = os.Stderr
	if cfg.Logging.File != "" {
		f, err := os.OpenFile(storage.ExpandPath(cfg.Logging.File), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
		if err != nil {
			log.Fatal("Failed to open log file", "path", cfg.Logging.File, "error", err)
		}
		defer f.Close()
		logOut = io.MultiWriter(os.Stderr, f)
	}
	log = logging.New(&logging.Config{
		Level:      cfg.Logging.Level,
		TimeFormat: time.TimeOnly,
		Output:     logOut,
	})
	logging.SetDefault(log)

	params, err := cfg.Params()
	if err != nil {
		log.Fatal("Unknown network", "network", cfg.Network, "error", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dataPath := storage.ExpandPath(cfg.Storage.DataDir)
	store, err := storage.New(&storage.Config{DataDir: dataPath})
	if err != nil {
		log.Fatal("Failed to initialize storage", "error", err)
	}
	defer store.Close()
	log.Info("Storage initialized", "path", dataPath)

	backendCfg := cfg.BackendConfig(params)
	chainBackend, err := backend.New(backendCfg)
	if err != nil {
		log.Fatal("Failed to create backend", "error", err)
	}
	defer chainBackend.Close()

	connectCtx, connectCancel := context.WithTimeout(ctx, backendCfg.Timeout)
	if err := chainBackend.Connect(connectCtx); err != nil {
		// Requests still go out on demand; this only reports reachability.
		log.Warn("Backend unreachable", "url", backendCfg.URL, "error", err)
	} else {
		log.Info("Backend connected", "type", chainBackend.Type(), "url", backendCfg.URL)
	}
	connectCancel()

	keys, err := wallet.NewManager(params)
	if err != nil {
		log.Fatal("Failed to create key manager", "error", err)
	}

	walletService, err := wallet.NewService(&wallet.ServiceConfig{
		Keys:    keys,
		Storage: store,
		Backend: chainBackend,
		Logger:  log,
	})
	if err != nil {
		log.Fatal("Failed to create wallet service", "error", err)
	}
	if walletService.HasStoredWallet() {
		log.Info("Stored wallet found, unlock it with wallet_unlock")
	}

	builder, err := funding.NewBuilder(cfg.Funding, keys, chainBackend, log)
	if err != nil {
		log.Fatal("Failed to create funding builder", "error", err)
	}

	var drip *faucet.Faucet
	if cfg.Faucet.Enabled {
		drip, err = faucet.New(cfg.Faucet, builder, keys, store, log)
		if err != nil {
			log.Warn("Faucet disabled", "error", err)
			drip = nil
		} else {
			defer drip.Close()
		}
	}

	rpcServer, err := rpc.NewServer(&rpc.Config{
		Storage:        store,
		Wallet:         walletService,
		Builder:        builder,
		Backend:        chainBackend,
		Faucet:         drip,
		Logger:         log,
		AllowedOrigins: cfg.API.AllowedOrigins,
	})
	if err != nil {
		log.Fatal("Failed to create RPC server", "error", err)
	}
	if err := rpcServer.Start(cfg.API.Listen); err != nil {
		log.Fatal("Failed to start RPC server", "error", err)
	}

	printBanner(log, params, cfg, rpcServer.Addr(), drip)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	<-sigCh
	log.Info("Shutting down...")
	cancel()

	if err := rpcServer.Stop(); err != nil {
		log.Error("Error stopping RPC server", "error", err)
	}
	walletService.Lock()

	log.Info("Goodbye!")
}

func printBanner(log *logging.Logger, params *chain.Params, cfg *config.Config, apiAddr string, drip *faucet.Faucet) {
	log.Info("")
	log.Info("=================================================")
	log.Infof("  BTCFi Wallet (%s)", params.DisplayName)
	log.Infof("  Version: %s", version)
	log.Info("=================================================")
	log.Info("")
	log.Infof("  API: http://%s", apiAddr)
	log.Infof("  WS:  ws://%s/ws", apiAddr)
	log.Infof("  Chain API: %s", cfg.BackendConfig(params).URL)
	log.Infof("  Explorer:  %s", params.ExplorerURL)
	log.Infof("  Fee: %d sats fixed | dust limit: %d sats", cfg.Funding.FixedFee, cfg.Funding.DustLimit)
	if drip != nil {
		log.Infof("  Faucet: %s", drip.Address())
	}
	log.Infof("  Data dir: %s", storage.ExpandPath(cfg.Storage.DataDir))
	log.Info("")
	log.Info("=================================================")
	log.Info("")
}
