// Package main запускает HTTP-сервер чат-магазина.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/avasiliev/chatshop-system/internal/config"
	"github.com/avasiliev/chatshop-system/internal/dialog"
	"github.com/avasiliev/chatshop-system/internal/extract"
	"github.com/avasiliev/chatshop-system/internal/gateway"
	"github.com/avasiliev/chatshop-system/internal/handler"
	"github.com/avasiliev/chatshop-system/internal/middleware"
	"github.com/avasiliev/chatshop-system/internal/notify"
	"github.com/avasiliev/chatshop-system/internal/repository"
	"github.com/avasiliev/chatshop-system/internal/service"
	"github.com/avasiliev/chatshop-system/internal/session"
)

func main() {
	// .env удобен при локальной разработке; в бою переменные приходят
	// из окружения.
	_ = godotenv.Load()

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	sugar := logger.Sugar()

	cfg, err := config.Parse()
	if err != nil {
		sugar.Fatalw("configuration error", "error", err.Error())
	}

	repo, err := repository.NewPostgresRepository(cfg.DatabaseURI)
	if err != nil {
		sugar.Fatalw("database initialization error", "error", err.Error())
	}
	defer repo.Close()

	var extractor *extract.Client
	if cfg.ExtractorAddress != "" {
		extractor = extract.NewClient(cfg.ExtractorAddress)
	}

	var sender *gateway.Client
	if cfg.GatewayAddress != "" {
		sender = gateway.NewClient(cfg.GatewayAddress)
	}

	var contentSender service.ContentSender
	if sender != nil {
		contentSender = sender
	}

	svc := service.NewService(repo, extractor, contentSender, service.Config{
		PointsPerUnit:         cfg.PointsPerUnit,
		ReferralBonus:         cfg.ReferralBonus,
		RefereeBonus:          cfg.RefereeBonus,
		ReferralPurchaseBonus: cfg.ReferralPurchaseBonus,
		DailyBonus:            cfg.DailyBonus,
	})
	defer svc.Close()

	dispatcher := dialog.NewDispatcher(svc, session.NewStore(), sugar)

	var notifySender notify.Sender
	if sender != nil {
		notifySender = sender
	}
	notifier := notify.NewDispatcher(repo, notifySender, sugar)

	gatewayAuth := middleware.NewGatewayAuth(cfg.GatewaySecret)
	h := handler.NewHandler(dispatcher, repo, logger, gatewayAuth)

	server := &http.Server{
		Addr:    cfg.RunAddress,
		Handler: h.SetupRouter(),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	// Фоновая отправка рассылок
	g.Go(func() error {
		notifier.Start(ctx)
		return nil
	})

	// HTTP-сервер
	g.Go(func() error {
		sugar.Infow("starting chatshop server", "addr", cfg.RunAddress)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Graceful shutdown при отмене контекста (сигнал или ошибка в другой горутине)
	g.Go(func() error {
		<-ctx.Done()
		sugar.Info("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		sugar.Info("server stopped gracefully")
		return nil
	})

	if err := g.Wait(); err != nil {
		sugar.Fatalw("application terminated with error", "error", err)
	}
}
