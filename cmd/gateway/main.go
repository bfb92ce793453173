package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/solace-app/solace-gateway/internal/config"
	"github.com/solace-app/solace-gateway/internal/server"
	"github.com/solace-app/solace-gateway/internal/storage"
)

func main() {
	// Load env if it exists
	godotenv.Load()

	cfg, err := config.Load("config.json")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	postgres, err := storage.NewPostgres(cfg.Postgres.DSN)
	if err != nil {
		log.Fatalf("Failed to connect to Postgres: %v", err)
	}
	defer postgres.Close()

	if err := postgres.AutoMigrate(); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	log.Println("Connected to Postgres successfully")

	// Redis is optional. When it is not configured or not reachable the
	// quota counters fall back to transactional Postgres for the whole
	// process lifetime; there is no per-call retry-then-fallback.
	var redis *storage.RedisClient
	if addr := cfg.Redis.GetRedisAddr(); addr != "" {
		redis, err = storage.NewRedis(addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			log.Printf("Redis connection failed, using Postgres fallback: %v", err)
			redis = nil
		} else {
			log.Println("Connected to Redis successfully")
			defer redis.Close()
		}
	} else {
		log.Println("Redis not configured, using Postgres fallback")
	}

	srv, err := server.New(cfg, redis, postgres)
	if err != nil {
		log.Fatalf("Failed to create server: %v", err)
	}

	go func() {
		addr := ":" + cfg.Server.Port
		if err := srv.Run(addr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server exited")
}
