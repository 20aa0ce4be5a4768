// Command orchestrator drives a design pipeline's DAG to completion: it
// loads the plan graph and design context, connects to the broker and
// Redis, then runs the orchestrator loop until every node is DONE, one
// node stalls on FAILED, or it is asked to shut down.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-redis/redis/v8"

	"github.com/fpgaforge/orchestrator/broker"
	"github.com/fpgaforge/orchestrator/config"
	"github.com/fpgaforge/orchestrator/contextbuilder"
	"github.com/fpgaforge/orchestrator/contracts"
	"github.com/fpgaforge/orchestrator/dag"
	"github.com/fpgaforge/orchestrator/dlq"
	"github.com/fpgaforge/orchestrator/logging"
	"github.com/fpgaforge/orchestrator/orchestrator"
	"github.com/fpgaforge/orchestrator/statemachine"
	"github.com/fpgaforge/orchestrator/taskmemory"
	"github.com/fpgaforge/orchestrator/telemetry"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config override file")
	flag.Parse()

	logger := logging.NewSlogLogger()
	if err := run(*configPath, logger); err != nil {
		slog.Error("orchestrator exited with error", "error", err.Error())
		os.Exit(1)
	}
}

func run(configPath string, logger logging.ComponentLogger) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	graph, err := dag.LoadPlan(cfg.DAGPath)
	if err != nil {
		return fmt.Errorf("load plan graph: %w", err)
	}
	designCtx, err := contracts.LoadDesignContext(cfg.DesignContextPath)
	if err != nil {
		return fmt.Errorf("load design context: %w", err)
	}

	emitter, err := telemetry.NewOTelEmitter("rtl-orchestrator")
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	var ledger dlq.Ledger
	var inFlight orchestrator.InFlightCounter
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Warn("redis unavailable at startup, running with in-memory fallback", map[string]interface{}{"error": err.Error()})
		ledger = dlq.NewMemoryLedger()
		inFlight = orchestrator.NewMemoryInFlightCounter()
	} else {
		ledger = dlq.NewRedisLedger(redisClient, "orchestrator")
		inFlight = orchestrator.NewRedisInFlightCounter(redisClient, "orchestrator:inflight")
	}

	mem := taskmemory.New(cfg.TaskMemoryRoot)
	builder := contextbuilder.New(mem, cfg.StageToolConfig)
	classifier := dlq.New(ledger)

	brokerCfg := broker.DefaultConfig(cfg.BrokerURL)
	brokerCfg.Prefetch = cfg.BrokerPrefetch
	adapter := broker.NewAdapter(brokerCfg, logger)
	if err := adapter.Connect(ctx); err != nil {
		return fmt.Errorf("connect to broker: %w", err)
	}

	deliveries, err := adapter.Consume(ctx)
	if err != nil {
		return fmt.Errorf("start results consumer: %w", err)
	}

	orchestrator.Recover(graph, mem)

	loop := orchestrator.NewLoop(orchestrator.Deps{
		Graph:      graph,
		DesignCtx:  designCtx,
		Machine:    statemachine.New(),
		Builder:    builder,
		Memory:     mem,
		Broker:     adapter,
		Classifier: classifier,
		InFlight:   inFlight,
		Logger:     logger,
		Emitter:    emitter,
		Config:     cfg,
	}, deliveries)

	runErr := loop.Run(ctx)

	summary := loop.Summary()
	for _, node := range summary.Nodes {
		fields := map[string]interface{}{"node_id": node.NodeID, "state": string(node.State)}
		if node.State == dag.StateFailed {
			fields["failed_stage"] = string(node.FailedStage)
			fields["failure_reason"] = node.FailureReason
			logger.Error("node did not complete", fields)
			continue
		}
		logger.Info("node finished", fields)
	}

	if shutdownErr := loop.Shutdown(context.Background()); shutdownErr != nil {
		logger.Error("shutdown error", map[string]interface{}{"error": shutdownErr.Error()})
	}

	if runErr != nil {
		return fmt.Errorf("run: %w", runErr)
	}
	if !summary.AllSucceeded {
		return fmt.Errorf("run finished with at least one failed node")
	}
	return nil
}
