// Single-instrument Avellaneda-Stoikov quoting engine.
//
// Architecture:
//
//	main.go                  — entry point: loads config, starts engine, waits for SIGINT/SIGTERM
//	internal/engine/engine.go — orchestrator: single-consumer dispatcher over two WS feeds
//	internal/strategy/spread.go — Avellaneda-Stoikov quoting: bid/ask offsets from sigma, q, intensity
//	internal/strategy/intensity.go — online Poisson arrival-rate estimation per spread bucket
//	internal/strategy/volatility.go — pluggable sigma estimators (spread/classical/Parkinson/Garman-Klass)
//	internal/market/window.go — rolling top-of-book window feeding the volatility estimators
//	internal/exchange/client.go — REST client for venue order placement/cancellation
//	internal/exchange/auth.go — HMAC request signing and WS auth payload
//	internal/exchange/ws.go   — WebSocket feeds (book + account) with auto-reconnect
//	internal/risk/manager.go  — stop-loss/stop-profit/trailing-stop state machine
//	internal/engine/scheduler.go — cancel-then-place quote refresh
package main

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"quoter/internal/config"
	"quoter/internal/engine"
)

func main() {
	if len(os.Args) < 2 {
		slog.Error("usage: quoter <config.json>")
		os.Exit(1)
	}
	cfgPath := os.Args[1]

	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("failed to load config", "error", err, "path", cfgPath)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: parseLogLevel(cfg.Logging.Level)}
	if cfg.Logging.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	logger := slog.New(handler)

	eng := engine.New(cfg, logger)
	if err := eng.Start(); err != nil {
		logger.Error("failed to start engine", "error", err)
		os.Exit(1)
	}

	logger.Info("quoting engine started",
		"symbol", cfg.Symbol.Symbol,
		"flavor", cfg.Venue.Flavor,
		"order_qty", cfg.Symbol.OrderQty,
		"gamma", cfg.Strategy.Gamma,
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("received shutdown signal", "signal", sig.String())

	eng.Stop()
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
