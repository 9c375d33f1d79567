package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"tron-gateway/internal/chains/tron"
	"tron-gateway/internal/config"
	"tron-gateway/internal/domain"
	"tron-gateway/internal/repository"
	"tron-gateway/internal/usecase"
	"tron-gateway/internal/webhook"
	"tron-gateway/internal/worker"
)

var (
	newWallet   = flag.Bool("new-wallet", false, "create a deposit wallet and exit")
	walletOwner = flag.String("owner", "", "owner id for -new-wallet")
)

func main() {
	flag.Parse()

	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	if err := run(logger); err != nil {
		logger.Fatal("gateway exited with error", zap.Error(err))
	}
}

func run(logger *zap.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger.Info("configuration loaded", zap.String("config", cfg.String()))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.Database.URL)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		return err
	}
	logger.Info("database connected")

	chain, err := tron.NewClient(cfg.Tron.APIKey, cfg.Tron.Network, logger)
	if err != nil {
		return err
	}
	defer chain.Stop()

	registry, err := domain.NewTokenRegistry(cfg.Tron.Network)
	if err != nil {
		return err
	}

	walletRepo := repository.NewWalletRepository(pool)
	transferRepo := repository.NewTransferRepository(pool)
	incomingRepo := repository.NewIncomingRepository(pool)

	notifier := webhook.NewNotifier(cfg.Webhook, logger)
	if !notifier.Enabled() {
		logger.Warn("webhook delivery disabled, no endpoint configured")
	}

	stateCache := usecase.NewNetworkStateCache(cfg.Fees.NetworkStateStaleAfter)
	feeService := usecase.NewFeeService(chain, stateCache, registry, cfg.Fees,
		cfg.Tron.MasterAddress, logger)
	gasService := usecase.NewGasService(chain, cfg.Gas,
		cfg.Tron.MasterAddress, cfg.Tron.MasterPrivateKeyHex, logger)
	transferService := usecase.NewTransferService(walletRepo, transferRepo, chain,
		feeService, gasService, registry, notifier,
		cfg.Tron.MasterAddress, cfg.Gas.SettleDelay, logger)
	monitorService := usecase.NewMonitoringService(walletRepo, incomingRepo, chain,
		registry, notifier, cfg.Tron.RequiredConfirmations, logger)

	keys := usecase.KeyGeneratorFunc(func() (string, string, error) {
		kp, err := tron.GenerateKeypair()
		if err != nil {
			return "", "", err
		}
		return kp.Address, kp.PrivateKeyHex, nil
	})
	walletService := usecase.NewWalletService(walletRepo, chain, registry, keys,
		notifier, cfg.Wallets, cfg.Tron.MasterAddress, cfg.Tron.MasterPrivateKeyHex, logger)

	if *newWallet {
		wallet, err := walletService.Create(ctx, *walletOwner)
		if err != nil {
			return err
		}
		fmt.Printf("wallet %d created: %s\n", wallet.ID, wallet.Address)
		return nil
	}

	// Prime the fee engine so the first quote has a fresh network state.
	if err := feeService.RefreshNetworkState(ctx); err != nil {
		logger.Warn("initial network state refresh failed", zap.Error(err))
	}

	retention := daysToDuration(cfg.Wallets.RetentionDays)
	scheduler := worker.NewScheduler(monitorService, transferService, feeService,
		notifier, cfg.Schedule, retention, logger)
	scheduler.Start(ctx)

	logger.Info("gateway running", zap.String("network", cfg.Tron.Network))
	<-ctx.Done()

	logger.Info("shutdown signal received")
	scheduler.Wait()
	return nil
}

func daysToDuration(days int64) time.Duration {
	return time.Duration(days) * 24 * time.Hour
}
