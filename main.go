package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	config "todochat/app/configs"
	"todochat/app/core/interaction/cli"
	"todochat/app/core/interaction/gateway"
	"todochat/app/core/interaction/http"
	"todochat/app/core/orchestrator/agent"
	"todochat/app/core/orchestrator/command"
	"todochat/app/core/orchestrator/db"
	"todochat/app/core/orchestrator/task"
	"todochat/app/core/queue"
	"todochat/app/core/responder"
	"todochat/app/core/scheduler"
	"todochat/app/core/session"
	"todochat/app/pkg/logger"
)

func main() {
	if err := logger.Init("output/logs"); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	logger.Info("TodoChat Starting...")

	cfgManager, err := config.NewManager(config.DefaultPath())
	if err != nil {
		logger.Error("Failed to load config: %v", err)
		os.Exit(1)
	}
	cfg := cfgManager.Get()

	database, err := db.NewSQLiteDB("output/db")
	if err != nil {
		logger.Error("Failed to initialize DB: %v", err)
		os.Exit(1)
	}
	defer database.Close()
	logger.Info("Database initialized successfully")

	taskStore := task.NewStore(database)
	executor := command.NewExecutor(taskStore)
	sessions := session.NewStore(time.Duration(cfg.Session.TTLSec) * time.Second)

	phraser := responder.NewClient(responder.Config{
		Enabled:    cfg.Responder.Enabled,
		BaseURL:    cfg.Responder.BaseURL,
		Model:      cfg.Responder.Model,
		APIKey:     cfg.Responder.APIKey,
		TimeoutSec: cfg.Responder.TimeoutSec,
	}, nil)

	brain := agent.NewAgent(cfg.Agent.Name, executor, sessions, phraser)

	gw := gateway.NewGateway(brain)

	tracer, err := gateway.NewTraceRecorder("output/traces")
	if err != nil {
		logger.Error("Failed to initialize trace recorder: %v", err)
		os.Exit(1)
	}
	gw.SetTraceRecorder(tracer)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var executionQueue *queue.Queue
	if cfg.Queue.Enabled {
		executionQueue = queue.New(cfg.Queue.Capacity)
		if err := executionQueue.Start(ctx, cfg.Queue.Workers); err != nil {
			logger.Error("Failed to start queue: %v", err)
			os.Exit(1)
		}
		defer func() {
			if err := executionQueue.Stop(3 * time.Second); err != nil {
				logger.Error("Queue shutdown timeout: %v", err)
			}
		}()
		gw.SetExecutionQueue(executionQueue, gateway.QueueOptions{
			Enabled:        true,
			MaxRetries:     cfg.Queue.MaxRetries,
			RetryDelay:     time.Duration(cfg.Queue.RetryDelayMs) * time.Millisecond,
			AttemptTimeout: time.Duration(cfg.Queue.AttemptTimeoutSec) * time.Second,
			EnqueueTimeout: 2 * time.Second,
		})
	}

	cliChannel := cli.NewCLIChannel(cfg.Agent.CLIUserID)
	gw.RegisterChannel(cliChannel)

	httpChannel := http.NewHTTPChannel(cfg.HTTP.Port)
	httpChannel.SetTaskStore(taskStore)
	httpChannel.SetResponseTimeout(time.Duration(cfg.HTTP.ResponseTimeoutSec) * time.Second)
	httpChannel.SetStatusProvider(func(statusCtx context.Context) map[string]interface{} {
		runtime := map[string]interface{}{
			"agent":           brain.Name(),
			"active_sessions": sessions.Len(),
			"gateway":         gw.HealthStatus(),
		}
		if counts, err := taskStore.CountByStatus(statusCtx, cfg.Agent.CLIUserID); err == nil {
			runtime["local_user_tasks"] = counts
		}
		return runtime
	})
	gw.RegisterChannel(httpChannel)

	jobScheduler := scheduler.New()
	if err := jobScheduler.Register(scheduler.JobSpec{
		Name:     "session_sweep",
		Interval: time.Duration(cfg.Session.SweepIntervalSec) * time.Second,
		Timeout:  5 * time.Second,
		Run: func(context.Context) error {
			if removed := sessions.Sweep(); removed > 0 {
				logger.Info("Session sweep removed %d expired sessions", removed)
			}
			return nil
		},
	}); err != nil {
		logger.Error("Failed to register session sweep: %v", err)
		os.Exit(1)
	}
	if err := jobScheduler.Start(ctx); err != nil {
		logger.Error("Failed to start scheduler: %v", err)
		os.Exit(1)
	}
	defer func() {
		if err := jobScheduler.Stop(3 * time.Second); err != nil {
			logger.Error("Scheduler shutdown timeout: %v", err)
		}
	}()

	go func() {
		if err := gw.Start(ctx); err != nil {
			logger.Error("Gateway crashed: %v", err)
			os.Exit(1)
		}
	}()

	logger.Info("TodoChat is ready to serve.")
	fmt.Println("- CLI Interface: Interactive")
	fmt.Printf("- HTTP Interface: http://localhost:%d/api/message (POST)\n", cfg.HTTP.Port)
	fmt.Printf("- Todo API:       http://localhost:%d/api/todos\n", cfg.HTTP.Port)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	logger.Info("Received signal: %v. TodoChat Shutting Down...", sig)
	cancel()
}
