// cmd/seed-users/main.go
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/artecho/storefront-backend/internal/config"
	"github.com/artecho/storefront-backend/internal/domain/user"
	"github.com/artecho/storefront-backend/internal/infrastructure/database/redis"
	"github.com/artecho/storefront-backend/internal/pkg/auth"
	"github.com/artecho/storefront-backend/internal/pkg/logger"
)

// Seeds the user directory in Redis and optionally registers one more account.
//
//	go run ./cmd/seed-users [email password [display name]]
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if cfg.Cart.SlotBackend != config.SlotBackendRedis {
		log.Fatal("seed-users needs CART_SLOT_BACKEND=redis")
	}

	appLogger, closer, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer closer.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client, err := redis.NewConnection(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer client.Close()

	directory := user.NewDirectory(
		client.Slots(0),
		cfg.Cart.UsersKey,
		auth.NewPasswordManager(cfg),
		cfg.Auth.DemoPassword,
		appLogger,
	)

	if err := directory.Seed(ctx); err != nil {
		log.Fatalf("Failed to seed users: %v", err)
	}

	if len(os.Args) >= 3 {
		displayName := ""
		if len(os.Args) >= 4 {
			displayName = os.Args[3]
		}
		u, err := directory.Add(ctx, os.Args[1], os.Args[2], displayName)
		if err != nil {
			log.Fatalf("Failed to add user: %v", err)
		}
		fmt.Printf("✅ Added %s (%s)\n", u.Email, u.UID)
	}

	users, err := directory.List(ctx)
	if err != nil {
		log.Fatalf("Failed to list users: %v", err)
	}

	fmt.Printf("📋 %d users in %q\n", len(users), cfg.Cart.UsersKey)
	for _, u := range users {
		fmt.Printf("  %-14s %-32s %s\n", u.UID, u.Email, u.GetDisplayName())
	}
	fmt.Printf("Demo accounts sign in with AUTH_DEMO_PASSWORD (%q)\n", cfg.Auth.DemoPassword)
}
