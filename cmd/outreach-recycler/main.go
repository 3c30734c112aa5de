// outreach-recycler returns exhausted leads to the top of the funnel once
// their recycle cooldown has elapsed. Schedule it daily with cron.
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

	runtime, err := bootstrap.NewRuntime(ctx, configPath, "outreach_recycle")
	if err != nil {
		log.Fatalf("bootstrap recycler runtime: %v", err)
	}
	defer runtime.Close()

	recycled, err := runtime.Recycler().Run(ctx)
	if err != nil {
		runtime.Logger().Error("recycle failed", "error", err)
		os.Exit(1)
	}
	runtime.Logger().Info("recycle completed", "recycled", recycled)
}
