package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/raihanakbr/realtime-stream-client/internal/config"
	"github.com/raihanakbr/realtime-stream-client/internal/websocket"
)

func main() {
	configPath := flag.String("config", "", "YAML config file")
	envFile := flag.String("env-file", ".env", "env file loaded before reading STREAM_* variables")
	flag.Parse()

	// Load configuration; a missing .env falls back to the system environment
	cfg, err := config.Load(*configPath, *envFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	logger, closeLog, err := config.NewLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer closeLog()

	receiver := websocket.NewReceiver(websocket.NewSessionStore(), func() websocket.Transcriber {
		return websocket.NewEchoTranscriber(cfg.Server.SentenceEvery)
	}, logger)

	// Register HTTP and WebSocket handlers on a dedicated mux
	mux := http.NewServeMux()
	receiver.Routes(mux)

	server := &http.Server{Addr: cfg.Server.ListenAddress, Handler: mux}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	logger.Info("Starting server", "address", cfg.Server.ListenAddress)
	logger.Info("WebSocket endpoint", "url", fmt.Sprintf("ws://localhost%s/?%s=<id>", cfg.Server.ListenAddress, websocket.ConnectionIDParam))

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server failed to start", "error", err)
		closeLog()
		os.Exit(1)
	}
}
