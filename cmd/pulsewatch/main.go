package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"gorm.io/gorm/logger"

	"github.com/pulsewatch/pulsewatch/internal/broker"
	"github.com/pulsewatch/pulsewatch/internal/classify"
	"github.com/pulsewatch/pulsewatch/internal/config"
	"github.com/pulsewatch/pulsewatch/internal/database"
	"github.com/pulsewatch/pulsewatch/internal/incidents"
	"github.com/pulsewatch/pulsewatch/internal/metrics"
	"github.com/pulsewatch/pulsewatch/internal/processor"
	"github.com/pulsewatch/pulsewatch/internal/scheduler"
	"github.com/pulsewatch/pulsewatch/internal/slackutil"
	"github.com/pulsewatch/pulsewatch/internal/sources"
)

func main() {
	// Load .env file if it exists (ignore error if file doesn't exist)
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file found or error loading it (this is fine if using environment variables): %v", err)
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	log.Printf("Starting pulsewatch...")

	// Initialize database connection
	if err := database.Connect(cfg.DatabaseURL, logger.Warn); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	// Run database migrations
	if err := database.AutoMigrate(); err != nil {
		log.Fatalf("Failed to run database migrations: %v", err)
	}

	db := database.GetDB()

	// Load classifier rules (optional YAML override)
	rules := classify.DefaultRuleConfig()
	if cfg.ClassifierRulesPath != "" {
		rules, err = classify.LoadRuleConfig(cfg.ClassifierRulesPath)
		if err != nil {
			log.Fatalf("Failed to load classifier rules: %v", err)
		}
		log.Printf("Classifier rules loaded from %s", cfg.ClassifierRulesPath)
	}
	classifier := classify.New(rules)

	// Provision broker topics. Provisioning failures leave the process in
	// degraded mode: events still persist, notifications are lossy.
	publisher := broker.NewPublisher(cfg.KafkaBrokers)
	provisionCtx, provisionCancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := publisher.EnsureTopics(provisionCtx); err != nil {
		log.Printf("Warning: broker provisioning incomplete, continuing degraded: %v", err)
	}
	provisionCancel()

	// Optional Slack incident notifications
	var notifier incidents.Notifier
	if cfg.SlackEnabled() {
		notifier = slackutil.NewNotifier(cfg.SlackBotToken, cfg.SlackAlertsChannel)
		log.Printf("Slack incident notifications enabled for channel %s", cfg.SlackAlertsChannel)
	} else {
		log.Println("Slack incident notifications disabled")
	}

	// Pipeline components
	synthesizer := incidents.NewSynthesizer(rules)
	creator := incidents.NewCreator(db, publisher, notifier)
	batchProcessor := processor.NewBatchProcessor(db, classifier, synthesizer, creator, cfg.BatchSize)
	batchProcessor.SetDeadLetterPublisher(publisher)

	sink := sources.NewStoreSink(db, publisher)
	wikimedia := sources.NewWikimediaAdapter(cfg.WikimediaStreamURL, cfg.HTTPTimeout, sink)
	github := sources.NewGitHubAdapter(cfg.GitHubEventsURL, cfg.GitHubToken, cfg.HTTPTimeout, sink)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Bring up the adapters. A stream start failure is recoverable: the
	// health check below retries on its interval.
	if err := wikimedia.Start(ctx); err != nil {
		log.Printf("Warning: failed to start wikimedia stream: %v", err)
	}
	if err := github.Start(ctx); err != nil {
		log.Printf("Warning: failed to start github adapter: %v", err)
	}

	// Periodic work: poll cycle, batch cycle, stream health check
	sched := scheduler.New()
	sched.Add("github-poll", cfg.PollInterval, func(ctx context.Context) {
		if err := github.Poll(ctx); err != nil {
			log.Printf("GitHub poll error: %v", err)
		}
	})
	sched.Add("batch-processor", cfg.BatchInterval, func(ctx context.Context) {
		if _, err := batchProcessor.Run(ctx); err != nil {
			log.Printf("Batch processor error: %v", err)
		}
	})
	sched.Add("stream-health-check", cfg.HealthCheckInterval, func(ctx context.Context) {
		wikimedia.EnsureRunning(ctx)
	})
	sched.Start(ctx)

	// Metrics listener
	go func() {
		if err := metrics.Serve(cfg.MetricsPort); err != nil {
			log.Printf("Metrics listener error: %v", err)
		}
	}()

	log.Println("Pipeline is running! Press Ctrl+C to exit.")

	// Graceful shutdown: stop timers first, then tear down connections.
	// In-flight single-item processing completes before exit.
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Println("Received shutdown signal, cleaning up...")
	cancel()
	sched.Stop()
	wikimedia.Stop()
	github.Stop()
	if err := publisher.Close(); err != nil {
		log.Printf("Error closing broker publisher: %v", err)
	}
	log.Println("Shutdown complete")
}
