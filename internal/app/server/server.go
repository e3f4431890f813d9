package server

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/axegao/axegaoshop/internal/app/client"
	"github.com/axegao/axegaoshop/internal/app/config"
	"github.com/axegao/axegaoshop/internal/app/handlers"
	"github.com/axegao/axegaoshop/internal/app/logger"
	"github.com/axegao/axegaoshop/internal/app/notify"
	"github.com/axegao/axegaoshop/internal/app/payment"
	"github.com/axegao/axegaoshop/internal/app/registry"
	"github.com/axegao/axegaoshop/internal/app/storage"
	"github.com/axegao/axegaoshop/internal/app/sweeper"
)

func Serve(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	repo, err := storage.NewRepoDB(cfg.DatabaseURI)
	if err != nil {
		return err
	}
	defer repo.Close()

	reg := registry.NewRedis(cfg.RedisAddress, cfg.AmountsKey)
	defer reg.Close()

	allocator := payment.NewAllocator(reg)

	bank := client.NewCli(cfg.BankAddress, cfg.BankPinCode, cfg.BankRefreshToken, cfg.ClientTimeout)
	if err := bank.Login(ctx); err != nil {
		// payers will keep seeing "waiting" until an operator fixes the credential
		logger.Logger.Error().Err(err).Str("component", "bank").Msg("bank login failed")
	}

	settler := payment.NewSettler(repo, reg, bank, notify.NewLog())

	go sweeper.New(repo, reg, cfg.SweepInterval, cfg.PendingWindow).Run(ctx)

	baseHandler := handlers.NewBaseHandler(repo, allocator, settler, cfg.SecretKey, cfg.PendingWindow)

	server := &http.Server{
		Addr:    cfg.RunAddress,
		Handler: baseHandler,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Logger.Err(err).Msg("")
		}
	}()

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
