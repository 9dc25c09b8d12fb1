// Command worker is the platform's process entrypoint: it wires the
// scheduler tick loop, the rules-run worker pool, and the maintenance cron
// sweeps against PostgreSQL and Redis, then serves Prometheus metrics until
// an interrupt signal is received. No alerts-dispatch consumer is started
// in this process: dispatch jobs are enqueued but not processed here. Grounded on the
// teacher's cli/cmd/ariadne/main.go flag-and-signal startup shape, adapted
// from a one-shot crawl invocation into a long-running worker process.
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fabianmarian8/sentinel-sub000/internal/alerts"
	"github.com/fabianmarian8/sentinel-sub000/internal/config"
	"github.com/fabianmarian8/sentinel-sub000/internal/extraction"
	"github.com/fabianmarian8/sentinel-sub000/internal/maintenance"
	"github.com/fabianmarian8/sentinel-sub000/internal/models"
	"github.com/fabianmarian8/sentinel-sub000/internal/orchestrator"
	"github.com/fabianmarian8/sentinel-sub000/internal/provider"
	"github.com/fabianmarian8/sentinel-sub000/internal/queue"
	"github.com/fabianmarian8/sentinel-sub000/internal/ratelimit"
	"github.com/fabianmarian8/sentinel-sub000/internal/runprocessor"
	"github.com/fabianmarian8/sentinel-sub000/internal/scheduler"
	"github.com/fabianmarian8/sentinel-sub000/internal/storage"
	"github.com/fabianmarian8/sentinel-sub000/internal/telemetry/logging"
	"github.com/fabianmarian8/sentinel-sub000/internal/telemetry/metrics"
	"github.com/fabianmarian8/sentinel-sub000/internal/tierpolicy"
)

const (
	runWorkerConcurrency    = 5
	alertWorkerConcurrency  = 10
	maintenanceConcurrency  = 1
	dequeueTimeout          = 5 * time.Second
)

func main() {
	var showVersion bool
	flag.BoolVar(&showVersion, "version", false, "print version and exit")
	flag.Parse()
	if showVersion {
		log.Println("sentinel-worker (development build)")
		return
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(slog.Default())
	metricsProvider := metrics.NewPrometheusProvider(metrics.PrometheusOptions{})
	gauges := metrics.NewDomainGauges(metricsProvider)
	_ = gauges

	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	go func() {
		<-sigCh
		logger.InfoCtx(ctx, "worker: shutdown signal received")
		cancel()
	}()

	pool, err := storage.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("storage: %v", err)
	}
	defer pool.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisURL})
	defer redisClient.Close()

	q := queue.New(redisClient, nil)
	cooldown := alerts.NewCooldown(redisClient)

	rules := storage.NewRuleRepository(pool)
	runs := storage.NewRunRepository(pool)
	observations := storage.NewObservationRepository(runs)
	alertRepo := storage.NewAlertRepository(pool)
	ruleStates := storage.NewRuleStateStore(pool)
	budgetLedger := storage.NewBudgetLedger(pool)
	attemptWriter := storage.NewAttemptWriter(pool)
	schedulerStore := storage.NewSchedulerStore(pool)
	maintenanceRepo := storage.NewMaintenanceRepository(pool)

	tierDefaults, err := tierpolicy.LoadDefaultsFromFile(cfg.TierPolicyConfigPath)
	if err != nil {
		logger.WarnCtx(ctx, "worker: using built-in tier policy defaults", "error", err)
		tierDefaults = tierpolicy.NewDefaults()
	}
	watchableDefaults := tierpolicy.NewWatchableDefaults(tierDefaults)
	if stop, err := watchableDefaults.Watch(cfg.TierPolicyConfigPath,
		func(err error) { logger.ErrorCtx(ctx, "worker: tier policy reload failed", "error", err) },
		func() { logger.InfoCtx(ctx, "worker: tier policy reloaded") },
	); err != nil {
		logger.WarnCtx(ctx, "worker: tier policy hot-reload disabled", "error", err)
	} else {
		defer stop()
	}

	costTable, err := orchestrator.LoadCostTableFromFile(cfg.ProviderCostConfigPath)
	if err != nil {
		logger.WarnCtx(ctx, "worker: using built-in provider cost table", "error", err)
		costTable = orchestrator.DefaultCostTable()
	}

	registry := provider.NewRegistry(provider.DefaultAdapters(provider.AdapterConfig{
		BrightdataProxyURL:         cfg.BrightdataProxyURL,
		ScrapingBrowserProxyURL:    cfg.ScrapingBrowserProxyURL,
		TwoCaptchaProxyURL:         cfg.TwoCaptchaProxyURL,
		TwoCaptchaDatadomeProxyURL: cfg.TwoCaptchaDatadomeProxyURL,
		FlaresolverrEndpoint:       cfg.FlaresolverrEndpoint,
	})...)
	limiter := ratelimit.NewLimiter(nil, nil)
	budgetGuard := orchestrator.NewBudgetGuard(budgetLedger, models.DefaultBudgetCaps())
	orch := orchestrator.New(registry, limiter, budgetGuard, costTable, attemptWriter, nil)
	extractor := extraction.NewExtractor(nil, true)

	processor := runprocessor.New(
		rules, rules, runs, observations, alertRepo, ruleStates, cooldown, q, orch,
		orchestrator.Config{AllowPaid: cfg.TierPolicyEnabled, MaxAttemptsPerRun: 4},
		watchableDefaults, extractor, nil, nil,
	)

	sched := scheduler.New(schedulerStore, q, nil,
		scheduler.WithTickInterval(cfg.SchedulerTickInterval),
		scheduler.WithBatchSize(cfg.SchedulerBatchSize))

	maint := maintenance.New(maintenanceRepo, nil, slog.Default())
	if err := maint.Start(ctx); err != nil {
		log.Fatalf("maintenance: %v", err)
	}
	defer maint.Stop()

	var wg sync.WaitGroup

	if cfg.SchedulerEnabled {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sched.Run(ctx)
		}()
	}

	for i := 0; i < runWorkerConcurrency; i++ {
		wg.Add(1)
		go runRunWorker(ctx, &wg, q, processor, logger)
	}

	mux := http.NewServeMux()
	if p, ok := any(metricsProvider).(interface {
		MetricsHandler() http.Handler
	}); ok {
		mux.Handle("/metrics", p.MetricsHandler())
	}
	server := &http.Server{Addr: cfg.PrometheusListenAddr, Handler: mux}
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.ErrorCtx(ctx, "worker: metrics server failed", "error", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	_ = server.Shutdown(shutdownCtx)
	wg.Wait()
}

func runRunWorker(ctx context.Context, wg *sync.WaitGroup, q *queue.Queue, processor *runprocessor.Processor, logger logging.Logger) {
	defer wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		job, ok, err := q.DequeueRun(ctx, dequeueTimeout)
		if err != nil {
			logger.ErrorCtx(ctx, "worker: dequeue run job failed", "error", err)
			continue
		}
		if !ok {
			continue
		}
		if err := processor.Process(ctx, job); err != nil {
			logger.ErrorCtx(ctx, "worker: process run job failed", "rule", job.RuleID, "error", err)
		}
	}
}
