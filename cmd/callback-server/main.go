// callback-server is the long-running HTTP process: it receives provider
// delivery callbacks and serves the health and metrics endpoints.
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
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

	ctx := context.Background()
	runtime, err := bootstrap.NewRuntime(ctx, configPath, "callback_server")
	if err != nil {
		log.Fatalf("bootstrap callback runtime: %v", err)
	}
	defer runtime.Close()

	server := runtime.HTTPServer()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	runtime.Logger().Info("listening", "addr", server.Addr)

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err)
		}
		return
	case sig := <-sigCh:
		runtime.Logger().Info("shutdown signal", "signal", sig.String())
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// Allow in-flight callbacks to finish before exit.
	if err := server.Shutdown(shutdownCtx); err != nil {
		runtime.Logger().Error("shutdown error", "error", err)
	}

	err = <-errCh
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		runtime.Logger().Error("server error", "error", err)
	}
}
