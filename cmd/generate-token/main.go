package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"hako-backend/internal/config"
	"hako-backend/internal/middleware"
)

func main() {
	configPath := flag.String("config", "", "path to the configuration file")
	address := flag.String("address", "", "caller address to embed in the token")
	role := flag.String("role", middleware.RoleOperator, "token role: admin, operator or relayer")
	ttl := flag.Duration("ttl", 24*time.Hour, "token lifetime")
	flag.Parse()

	if *address == "" {
		fmt.Fprintln(os.Stderr, "missing required -address flag")
		flag.Usage()
		os.Exit(1)
	}
	switch *role {
	case middleware.RoleAdmin, middleware.RoleOperator, middleware.RoleRelayer:
	default:
		log.Fatalf("unknown role %q", *role)
	}

	if err := config.LoadConfig(*configPath); err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := logrus.New()
	logger.SetOutput(os.Stderr)

	auth := middleware.NewAuthMiddleware(
		config.AppConfig.Auth.JWTSecret,
		config.AppConfig.Auth.Issuer,
		logger,
	)

	token, err := auth.GenerateToken(*address, *role, *ttl)
	if err != nil {
		log.Fatalf("Failed to generate token: %v", err)
	}

	fmt.Println("============================================================")
	fmt.Println("JWT Token Generated")
	fmt.Println("============================================================")
	fmt.Println()
	fmt.Println("Token:")
	fmt.Println(token)
	fmt.Println()
	fmt.Println("Claims:")
	fmt.Printf("  Address: %s\n", *address)
	fmt.Printf("  Role:    %s\n", *role)
	fmt.Printf("  Expires: %s\n", time.Now().Add(*ttl))
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Printf("  curl -H \"Authorization: Bearer %s\" ...\n", token)
	fmt.Println()
}
