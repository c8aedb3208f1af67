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

	"projecthub/backend/internal/ai"
	"projecthub/backend/internal/api/handler"
	"projecthub/backend/internal/chathub"
	"projecthub/backend/internal/config"
	"projecthub/backend/internal/localization"
	"projecthub/backend/internal/storage"
	"projecthub/backend/internal/telegram"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

const shutdownTimeout = 15 * time.Second

func setupDependencies(cfg *config.Config) (*gorm.DB, *redis.Client) {
	db, err := gorm.Open(postgres.Open(cfg.DatabaseDSN), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		log.Fatalf("Failed to connect PostgreSQL: %v", err)
	}
	if err := storage.Migrate(db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	// Redis is optional: without it presence is not mirrored and rooms do not
	// span server nodes.
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Printf("Warning: redis at %s unavailable (%v); running single-node", cfg.RedisAddr, err)
		rdb.Close()
		rdb = nil
	}

	log.Println("Database connection established, migrations complete.")
	return db, rdb
}

func main() {
	log.Println("Starting projecthub realtime backend...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	db, rdb := setupDependencies(cfg)
	s := storage.NewStorageService(db, rdb)

	generator := ai.NewClient(cfg.LLMAPIURL, cfg.LLMModel, &http.Client{Timeout: cfg.AITimeout + 5*time.Second})
	hub := chathub.NewManagerService(s, generator)
	hub.SetLocale(cfg.Locale)
	hub.SetAITimeout(cfg.AITimeout)
	if dir := os.Getenv("LOCALES_DIR"); dir != "" {
		l, err := localization.NewLocalizer(dir)
		if err != nil {
			log.Fatalf("Failed to load locales from %s: %v", dir, err)
		}
		hub.SetLocalizer(l)
	}
	if rdb != nil {
		hub.SetPresenceMirror(s)
		hub.SetRoomBus(s)
	}

	r := gin.Default()
	handler.NewHandler(hub, cfg).RegisterRoutes(r)

	server := &http.Server{
		Addr:           cfg.HTTPAddr,
		Handler:        r,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		hub.Run()
		return nil
	})

	if cfg.TelegramBotToken != "" && len(cfg.TelegramBridges) > 0 {
		bot, err := telegram.NewBot(cfg.TelegramBotToken)
		if err != nil {
			log.Printf("Warning: telegram mirror disabled: %v", err)
		} else {
			telegram.Attach(hub, bot, cfg.TelegramBridges, cfg.SendBuffer)
		}
	}

	g.Go(func() error {
		log.Printf("HTTP server listening on %s", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Println("Shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP shutdown: %v", err)
		}
		if err := hub.Shutdown(shutdownTimeout); err != nil {
			log.Printf("Hub shutdown: %v", err)
		}
		if rdb != nil {
			rdb.Close()
		}
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Fatalf("Server stopped: %v", err)
	}
	log.Println("Server stopped.")
}
