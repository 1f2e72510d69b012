// cmd/api/main.go
package main

import (
	"context"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/artecho/storefront-backend/internal/config"
	"github.com/artecho/storefront-backend/internal/domain/session"
	"github.com/artecho/storefront-backend/internal/domain/user"
	"github.com/artecho/storefront-backend/internal/infrastructure/database/postgres"
	"github.com/artecho/storefront-backend/internal/infrastructure/database/redis"
	"github.com/artecho/storefront-backend/internal/infrastructure/firestore"
	"github.com/artecho/storefront-backend/internal/interfaces/http"
	"github.com/artecho/storefront-backend/internal/pkg/auth"
	"github.com/artecho/storefront-backend/internal/pkg/docstore"
	"github.com/artecho/storefront-backend/internal/pkg/events"
	"github.com/artecho/storefront-backend/internal/pkg/kvstore"
	"github.com/artecho/storefront-backend/internal/pkg/logger"
)

// backends holds the persistence adapters selected by config
type backends struct {
	docs    docstore.Store
	slots   kvstore.Store
	users   kvstore.Store
	redis   *redis.Client
	checks  map[string]http.HealthCheck
	closers []io.Closer
}

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	log.Printf("🚀 Starting %s v%s in %s mode", cfg.App.Name, cfg.App.Version, cfg.App.Environment)

	appLogger, logCloser, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logCloser.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	b, err := openBackends(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize persistence: %v", err)
	}
	defer b.close()

	verifier, err := newVerifier(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize authentication: %v", err)
	}

	// Persistence errors go to the log and to the diagnostics endpoint
	emitter := events.NewEmitter(appLogger)
	recorder := events.NewRecorder(cfg.Cart.RecorderLimit)
	emitter.Subscribe(events.LogHandler(appLogger))
	emitter.Subscribe(recorder.Handle)

	sessions := session.NewManager(b.docs, b.slots, emitter, session.Options{
		GuestKeyPrefix: cfg.Cart.GuestKeyPrefix,
		UserKeyPrefix:  cfg.Cart.UserKeyPrefix,
		FailedOpsLimit: cfg.Cart.FailedOpsLimit,
		IdleTTL:        cfg.Cart.SessionIdleTTL,
	}, appLogger)
	go sessions.Run(ctx, cfg.Cart.SweepInterval)

	jwtManager := auth.NewJWTManager(cfg)
	directory := user.NewDirectory(b.users, cfg.Cart.UsersKey, auth.NewPasswordManager(cfg), cfg.Auth.DemoPassword, appLogger)

	deps := http.Dependencies{
		Logger:       appLogger,
		Sessions:     sessions,
		Users:        user.NewService(directory, jwtManager, cfg),
		Verifier:     verifier,
		Recorder:     recorder,
		HealthChecks: b.checks,
	}
	// a nil *redis.Client must not become a non-nil interface
	if b.redis != nil {
		deps.Redis = b.redis.GetClient()
	}

	log.Println("✅ All systems operational!")

	server := http.NewServer(cfg, deps)
	go func() {
		if err := server.Start(); err != nil {
			log.Printf("❌ HTTP server error: %v", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Println("👋 Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Stop(shutdownCtx); err != nil {
		log.Printf("Failed to shutdown HTTP server gracefully: %v", err)
	}

	// let queued cart writes reach the backends before they close
	if err := sessions.FlushAll(shutdownCtx); err != nil {
		log.Printf("⚠️ Pending cart writes not flushed: %v", err)
	}

	log.Println("✅ Server shutdown completed")
}

func openBackends(ctx context.Context, cfg *config.Config) (*backends, error) {
	b := &backends{checks: map[string]http.HealthCheck{}}

	switch cfg.Cart.SlotBackend {
	case config.SlotBackendRedis:
		client, err := redis.NewConnection(ctx, cfg)
		if err != nil {
			return nil, err
		}
		b.redis = client
		b.closers = append(b.closers, client)
		b.checks["redis"] = client.Health
		b.slots = client.Slots(cfg.Cart.SlotTTL)
		// the user list must not expire with the carts
		b.users = client.Slots(0)
	default:
		log.Println("⚠️ Using in-memory local slots; carts will not survive a restart")
		mem := kvstore.NewMemory()
		b.slots, b.users = mem, mem
	}

	switch cfg.Cart.DocumentBackend {
	case config.DocumentBackendPostgres:
		db, err := postgres.NewConnection(cfg)
		if err != nil {
			b.close()
			return nil, err
		}
		b.closers = append(b.closers, db)
		b.checks["database"] = db.Health

		migration := postgres.NewMigration(db.GetDB())
		if err := migration.RunAutoMigrations(); err != nil {
			b.close()
			return nil, err
		}
		if err := migration.CreateIndexes(); err != nil {
			log.Printf("Warning: Index creation failed: %v", err)
		}
		if cfg.IsDevelopment() {
			if err := migration.GetTableInfo(); err != nil {
				log.Printf("Warning: could not read table info: %v", err)
			}
		}
		b.docs = postgres.NewDocumentStore(db.GetDB())
	case config.DocumentBackendFirestore:
		client, err := firestore.NewClient(ctx, cfg)
		if err != nil {
			b.close()
			return nil, err
		}
		b.closers = append(b.closers, client)
		b.checks["firestore"] = client.Health
		b.docs = firestore.NewDocumentStore(client)
	default:
		log.Println("⚠️ Using the in-memory document store")
		b.docs = docstore.NewMemory()
	}

	return b, nil
}

func (b *backends) close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i].Close(); err != nil {
			logrus.WithError(err).Warn("failed to close backend")
		}
	}
	b.closers = nil
}

func newVerifier(ctx context.Context, cfg *config.Config) (auth.Verifier, error) {
	jwtManager := auth.NewJWTManager(cfg)
	if cfg.Auth.Provider != config.AuthProviderFirebase {
		return jwtManager, nil
	}

	firebase, err := auth.NewFirebaseVerifier(ctx, cfg)
	if err != nil {
		return nil, err
	}
	log.Println("✅ Firebase token verification enabled")
	// demo accounts still sign in locally
	return auth.Chain{firebase, jwtManager}, nil
}
