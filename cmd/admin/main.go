package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"projecthub/backend/internal/config"
	"projecthub/backend/internal/storage"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "admin",
	Short: "Operator tools for the projecthub realtime backend",
	Long: `Operator tools for the projecthub realtime backend.

Reads the same environment (and .env file) as the server.

  admin history 42 43        # persisted chat messages of projects 42 and 43
  admin online               # users currently online (needs redis)
  admin token 7 --ttl 1h     # sign a test token for user 7 (needs AUTH_SECRET)`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load()
		return err
	},
}

func openDB() (*storage.Service, error) {
	db, err := gorm.Open(postgres.Open(cfg.DatabaseDSN), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}
	return storage.NewStorageService(db, nil), nil
}

func openRedis(ctx context.Context) (*storage.Service, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect redis at %s: %w", cfg.RedisAddr, err)
	}
	return storage.NewStorageService(nil, rdb), nil
}

func main() {
	log.SetFlags(0)
	rootCmd.AddCommand(historyCmd, onlineCmd, tokenCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
