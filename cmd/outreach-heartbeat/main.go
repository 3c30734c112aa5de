// outreach-heartbeat records a liveness timestamp so external monitoring can
// alert when the cron host goes quiet. Schedule it every few minutes.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/nearmiss1193-afk/outreach/internal/app/bootstrap"
)

func main() {
	_ = godotenv.Load()

	configPath := "configs/default.yaml"
	if len(os.Args) > 1 {
		configPath = os.Args[1]
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runtime, err := bootstrap.NewRuntime(ctx, configPath, "outreach_heartbeat")
	if err != nil {
		log.Fatalf("bootstrap heartbeat runtime: %v", err)
	}
	defer runtime.Close()

	if err := runtime.Heartbeat().Beat(ctx); err != nil {
		runtime.Logger().Error("heartbeat failed", "error", err)
		os.Exit(1)
	}
	runtime.Logger().Info("heartbeat recorded")
}
