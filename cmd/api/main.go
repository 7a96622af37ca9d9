package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"mpesa-checkout/internal/client"
	"mpesa-checkout/internal/config"
	"mpesa-checkout/internal/repository"
	"mpesa-checkout/internal/server"
	"mpesa-checkout/internal/service"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

func newLogger(cfg *config.Log) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var h slog.Handler
	if cfg.Format == "text" {
		h = slog.NewTextHandler(os.Stdout, opts)
	} else {
		h = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(h)
}

func main() {
	// load .env into os.Environ
	if err := godotenv.Load(); err != nil {
		fmt.Println("No .env file found (ok in prod)")
	}

	cfg := &config.Config{}
	if err := env.Parse(cfg); err != nil {
		fmt.Printf("Failed to parse config: %v\n", err)
		os.Exit(1)
	}

	log := newLogger(&cfg.Log)
	slog.SetDefault(log)

	// The gateway posts results back to this deployment; an explicit
	// MPESA_CALLBACK_URL wins, otherwise it hangs off the public base URL.
	if cfg.Mpesa.CallbackURL == "" && cfg.BaseURL != "" {
		cfg.Mpesa.CallbackURL = cfg.BaseURL + "/api/mpesa/callback"
	}

	db := client.InitDBClient(cfg.DatabaseURL, cfg.SQLitePath)
	mpesaClient := client.NewMpesaClient(&cfg.Mpesa)

	orderRepo := repository.NewOrderRepository(db)
	productRepo := repository.NewProductRepository(db)

	if cfg.Environment.Name == "development" {
		if err := productRepo.Seed(context.Background()); err != nil {
			log.Error("seed products", "error", err)
		}
	}

	orderService := service.NewOrderService(db, orderRepo, productRepo)
	mpesaService := service.NewMpesaService(mpesaClient, orderRepo, log)

	serverAddr := cfg.HTTP.Host + ":" + cfg.HTTP.Port

	srv := server.NewServer(orderService, mpesaService, cfg.Auth.JWTSecret)

	log.Info("starting HTTP server", "addr", serverAddr)
	go func() {
		if err := srv.Start(serverAddr); err != nil && err != http.ErrServerClosed {
			log.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)

	<-sigChan
	log.Info("signal received, starting graceful shutdown")

	_, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(); err != nil {
		log.Error("HTTP server shutdown error", "error", err)
		os.Exit(1)
	}
}
