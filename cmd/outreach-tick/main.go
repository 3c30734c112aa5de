// outreach-tick runs one cadence tick: it acquires the cycle lock, processes
// a batch of contactable leads, and exits. Schedule it with cron.
package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

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

	runtime, err := bootstrap.NewRuntime(ctx, configPath, "outreach_tick")
	if err != nil {
		log.Fatalf("bootstrap tick runtime: %v", err)
	}
	defer runtime.Close()

	start := time.Now()
	summary, err := runtime.Orchestrator().Tick(ctx)
	if err != nil {
		runtime.Logger().Error("tick failed", "error", err, "duration", time.Since(start).String())
		os.Exit(1)
	}

	out, _ := json.Marshal(summary)
	runtime.Logger().Info("tick completed", "summary", string(out))
}
