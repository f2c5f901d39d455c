package main

import (
	"bytes"
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/hibiken/asynq"

	"crawlmanager/internal/config"
	"crawlmanager/internal/core/crawl"
	"crawlmanager/internal/core/watch"
	"crawlmanager/internal/logger"
	rds "crawlmanager/internal/platform/redis"
	"crawlmanager/internal/platform/shepherd"
	tasks "crawlmanager/internal/platform/tasks"
	"crawlmanager/internal/server"
	"crawlmanager/internal/worker"
)

func main() {
	cfg := config.Load()
	log.Printf("[crawlmanager] starting at %s (env=%s)\n", cfg.HTTPAddr, cfg.AppEnv)

	logr := logger.New("main")

	// Redis client
	redisSvc, err := rds.New(rds.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	if err != nil {
		log.Fatal(err)
	}

	// Orchestrator client
	shepherdClient := shepherd.New(shepherd.Options{
		BaseURL: cfg.ShepherdURL,
		Flock:   cfg.FlockName,
		Pool:    cfg.Pool,
	})

	// Asynq client and server
	taskClient := tasks.New(redisSvc)
	asynqServer := asynq.NewServer(redisSvc.AsynqRedisOpt(), asynq.Config{
		Concurrency: 10,
		Queues:      map[string]int{"default": 1},
	})

	// Core services
	registry := crawl.NewRegistry(redisSvc, shepherdClient, cfg)
	watcher := watch.NewWatcher(registry, taskClient, cfg.WatchInterval, cfg.TaskMaxRetries)
	crawlHandler := crawl.NewHandler(registry, watcher.Schedule)

	// Worker mux
	mux := worker.NewMux()
	mux.HandleFunc(watch.TaskTypeWatch, watcher.HandleWatchTask)

	go func() {
		if err := asynqServer.Start(mux.Mux()); err != nil {
			log.Printf("[worker] stopped: %v\n", err)
		}
	}()

	// HTTP server
	app := fiber.New(fiber.Config{
		AppName: "Crawl Manager",
		JSONEncoder: func(v interface{}) ([]byte, error) {
			var buf bytes.Buffer
			encoder := json.NewEncoder(&buf)
			encoder.SetEscapeHTML(false)
			if err := encoder.Encode(v); err != nil {
				return nil, err
			}
			return buf.Bytes(), nil
		},
	})

	deps := server.Dependencies{
		Crawl: crawlHandler,
		Redis: redisSvc,
	}
	healthHandler := server.RegisterRoutes(app, deps)
	healthHandler.SetReady()

	// Graceful shutdown: ask every resource to close regardless of whether an
	// earlier close failed.
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-shutdown
		logr.LogInfo("Shutting down...")
		asynqServer.Shutdown()
		if err := taskClient.Close(); err != nil {
			logr.LogErrorf("task client close: %v", err)
		}
		if err := redisSvc.Close(); err != nil {
			logr.LogErrorf("redis close: %v", err)
		}
		shepherdClient.Close()
		_ = app.ShutdownWithTimeout(5 * time.Second)
	}()

	if err := app.Listen(cfg.HTTPAddr); err != nil {
		log.Fatalf("server listen: %v", err)
	}
}
