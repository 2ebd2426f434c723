package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"hako-backend/internal/app"
	"hako-backend/internal/config"
	"hako-backend/internal/db"
	"hako-backend/internal/handlers"
	"hako-backend/internal/middleware"
	"hako-backend/internal/repository"
	"hako-backend/internal/router"
)

func main() {
	configPath := flag.String("config", "", "path to the configuration file")
	flag.Parse()

	if err := config.LoadConfig(*configPath); err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db.InitDB()

	container, err := app.InitializeContainer()
	if err != nil {
		log.Fatalf("Failed to initialize services: %v", err)
	}
	defer container.Cleanup()

	auth := middleware.NewAuthMiddleware(
		config.AppConfig.Auth.JWTSecret,
		config.AppConfig.Auth.Issuer,
		container.Logger,
	)

	h := &router.Handlers{
		Vault:       handlers.NewVaultHandler(container.VaultService, container.Logger),
		Withdrawals: handlers.NewWithdrawalHandler(container.WithdrawalService, container.Logger),
		Events:      handlers.NewEventHandler(repository.NewEventRepository(container.DB), container.Logger),
		Auth:        auth,
	}
	if container.GatewayService != nil {
		h.Gateway = handlers.NewGatewayHandler(container.GatewayService, container.Logger)
	}

	engine := router.SetupRouter(h, container.Logger)

	addr := fmt.Sprintf("%s:%d", config.AppConfig.Server.Host, config.AppConfig.Server.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("🚀 Server listening on %s", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("Forced shutdown: %v", err)
	}
	log.Println("Server stopped")
}
