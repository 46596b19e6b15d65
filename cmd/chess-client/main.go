package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/RMIT-FinTech-Club/history-chess-core/internal/client"
	appcfg "github.com/RMIT-FinTech-Club/history-chess-core/internal/config"
	"github.com/RMIT-FinTech-Club/history-chess-core/internal/obslog"
)

// logNavigator is the headless stand-in for a UI router: it records where
// the client would navigate. A real frontend supplies its own Navigator.
type logNavigator struct {
	logger *zap.Logger
}

func (n *logNavigator) GoToGame(_ context.Context, gameID string) error {
	n.logger.Info("navigate_game", zap.String("game_id", gameID))
	return nil
}

func (n *logNavigator) GoToFind(context.Context) error {
	n.logger.Info("navigate_find")
	return nil
}

func main() {
	cfg, err := appcfg.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if err := obslog.InitFromEnv(); err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	logger := obslog.L()

	c, err := client.New(cfg, &logNavigator{logger: logger})
	if err != nil {
		log.Fatalf("client init error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := c.Start(ctx); err != nil {
		cancel()
		log.Fatalf("start error: %v", err)
	}
	cancel()
	logger.Info("client_started", zap.String("user_id", cfg.UserID))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := c.Close(shutdownCtx); err != nil {
		logger.Warn("shutdown", zap.Error(err))
	}
}
