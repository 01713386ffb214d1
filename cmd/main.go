package main

import (
	"context"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		cancel()
		zap.L().Fatal("bookstore exited", zap.Error(err))
	}
	_ = zap.L().Sync()
}
