package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/bmeyer99/docaiche-sub000/internal/common"
	"github.com/bmeyer99/docaiche-sub000/internal/context7"
	"github.com/bmeyer99/docaiche-sub000/internal/ingest"
	"github.com/bmeyer99/docaiche-sub000/internal/interfaces"
	"github.com/bmeyer99/docaiche-sub000/internal/jobs"
	"github.com/bmeyer99/docaiche-sub000/internal/llm"
	"github.com/bmeyer99/docaiche-sub000/internal/models"
	"github.com/bmeyer99/docaiche-sub000/internal/search"
	badgerstorage "github.com/bmeyer99/docaiche-sub000/internal/storage/badger"
	"github.com/bmeyer99/docaiche-sub000/internal/ttl"
	"github.com/bmeyer99/docaiche-sub000/internal/vector"
)

var (
	configFile   = flag.String("config", "", "Configuration file path")
	configFileC  = flag.String("c", "", "Configuration file path (shorthand)")
	queryFlag    = flag.String("query", "", "Run a single search and print the response as JSON")
	technology   = flag.String("technology", "", "Technology hint for -query")
	showVersion  = flag.Bool("version", false, "Print version information")
	showVersionV = flag.Bool("v", false, "Print version information (shorthand)")
)

func main() {
	flag.Parse()

	if *showVersion || *showVersionV {
		fmt.Printf("DocAIche version %s\n", common.GetFullVersion())
		os.Exit(0)
	}

	// Startup order: config, logger, banner, wiring, jobs, signal wait
	configPath := *configFile
	if configPath == "" {
		configPath = *configFileC
	}
	if configPath == "" {
		if _, err := os.Stat("docaiche.toml"); err == nil {
			configPath = "docaiche.toml"
		} else if _, err := os.Stat("deployments/local/docaiche.toml"); err == nil {
			configPath = "deployments/local/docaiche.toml"
		}
	}

	config, err := common.LoadFromFile(configPath)
	if err != nil {
		arbor.NewLogger().Fatal().Str("path", configPath).Err(err).Msg("Failed to load configuration")
		os.Exit(1)
	}

	logger := common.InitLogger(config)
	common.PrintBanner(common.GetVersion())

	logger.Info().
		Str("config", configPath).
		Str("environment", config.Environment).
		Str("badger_path", config.Storage.Badger.Path).
		Msg("Configuration loaded")

	if err := run(config, logger); err != nil {
		logger.Fatal().Err(err).Msg("Application failed")
		os.Exit(1)
	}
}

func run(config *common.Config, logger arbor.ILogger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Storage
	db, err := badgerstorage.NewBadgerDB(logger, &config.Storage.Badger)
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	defer db.Close()

	docStorage := badgerstorage.NewDocumentStorage(db, logger)
	jobStorage := badgerstorage.NewJobStorage(db, logger)

	// Internal search index, hydrated from persisted documents
	index := vector.NewLocalIndex(docStorage, logger)
	if err := index.Warm(ctx); err != nil {
		return err
	}

	// External search collaborator
	external := context7.NewClientFromConfig(&config.Context7, logger)

	// LLM strategy collaborator; nil means heuristic-only operation
	llmService, err := llm.NewService(ctx, &config.LLM, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize LLM service: %w", err)
	}
	if llmService != nil {
		defer llmService.Close()
	}

	// Ingestion and search pipeline
	calculator := ttl.NewCalculator(&config.TTL, logger)
	pipeline := ingest.NewPipeline(docStorage, index, calculator, &config.Ingestion, logger)

	evaluator, refiner := buildStrategies(config, llmService, logger)
	orchestrator := search.NewOrchestrator(
		index, external, pipeline,
		evaluator, refiner,
		search.NewStepRecorder(logger),
		&config.Search, logger,
	)

	// One-shot query mode
	if *queryFlag != "" {
		return runQuery(ctx, orchestrator, config, *queryFlag, *technology)
	}

	// Background jobs
	monitor := jobs.NewMonitor(jobStorage, config.Jobs.DegradedThreshold, config.Jobs.UnhealthyThreshold, logger)
	manager := jobs.NewManager(&config.Jobs, jobStorage, monitor, logger)

	if err := registerJobs(config, manager, docStorage, index, external, pipeline, db, monitor, logger); err != nil {
		return err
	}

	manager.Start(ctx)

	logger.Info().Msg("DocAIche ready - Press Ctrl+C to stop")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info().Msg("Interrupt signal received, shutting down")
	cancel()

	// Give in-flight executions a bounded window to finish
	done := make(chan struct{})
	go func() {
		manager.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(30 * time.Second):
		logger.Warn().Msg("Shutdown timed out waiting for jobs")
	}

	logger.Info().Msg("DocAIche stopped")
	return nil
}

// runQuery executes one search against the pipeline and prints the response
func runQuery(ctx context.Context, orchestrator *search.Orchestrator, config *common.Config, query, technologyHint string) error {
	if config.Search.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, config.Search.RequestTimeout)
		defer cancel()
	}

	resp, err := orchestrator.Search(ctx, models.SearchIntent{
		Query:          query,
		TechnologyHint: technologyHint,
	})
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(resp, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

// buildStrategies selects the evaluator and refiner implementations from
// configuration, falling back to heuristics when no LLM is available.
func buildStrategies(config *common.Config, llmService *llm.Service, logger arbor.ILogger) (search.Evaluator, search.Refiner) {
	if config.Search.EvaluatorMode == "llm" && llmService != nil {
		return search.NewLLMEvaluator(llmService, &config.Search, logger),
			search.NewLLMRefiner(llmService, logger)
	}
	if config.Search.EvaluatorMode == "llm" {
		logger.Warn().Msg("LLM evaluator requested but no provider configured, using heuristics")
	}
	return search.NewHeuristicEvaluator(&config.Search), search.NewHeuristicRefiner()
}

// registerJobs populates the job registry: the built-in lifecycle jobs plus
// any definitions found in the definitions directory.
func registerJobs(
	config *common.Config,
	manager *jobs.Manager,
	docStorage interfaces.DocumentStorage,
	index *vector.LocalIndex,
	external *context7.Client,
	pipeline *ingest.Pipeline,
	db *badgerstorage.BadgerDB,
	monitor *jobs.Monitor,
	logger arbor.ILogger,
) error {
	cleanup := jobs.NewCleanupJob(docStorage, index, db, config.Jobs.CleanupBatchSize, logger)
	if err := manager.Register(&models.JobDefinition{
		ID:               "ttl-cleanup",
		Name:             "TTL Cleanup",
		Description:      "Deletes documents whose TTL horizon has passed",
		Schedule:         models.ScheduleSpec{Kind: models.ScheduleCron, Cron: config.Jobs.CleanupSchedule},
		ConcurrencyClass: "storage-sweep",
		Enabled:          true,
	}, cleanup); err != nil {
		return err
	}

	refresh := jobs.NewRefreshJob(docStorage, external, pipeline, config.Jobs.RefreshThresholdDays, logger)
	if err := manager.Register(&models.JobDefinition{
		ID:          "document-refresh",
		Name:        "Document Refresh",
		Description: "Re-ingests documents approaching expiry",
		Schedule:    models.ScheduleSpec{Kind: models.ScheduleCron, Cron: config.Jobs.RefreshSchedule},
		Enabled:     true,
	}, refresh); err != nil {
		return err
	}

	healthCheck := jobs.NewHealthCheckJob(index, external, docStorage, monitor, logger)
	if err := manager.Register(&models.JobDefinition{
		ID:          "health-check",
		Name:        "Health Check",
		Description: "Probes collaborator availability",
		Schedule:    models.ScheduleSpec{Kind: models.ScheduleInterval, Interval: config.Jobs.HealthCheckInterval},
		Enabled:     true,
		AutoStart:   true,
	}, healthCheck); err != nil {
		return err
	}

	// Operator-defined jobs from the definitions directory map onto the
	// built-in handlers by id prefix.
	defs, err := jobs.LoadDefinitions(config.Jobs.DefinitionsDir, logger)
	if err != nil {
		return err
	}
	for _, def := range defs {
		handler := handlerFor(def.ID, cleanup, refresh, healthCheck)
		if handler == nil {
			logger.Warn().Str("job_id", def.ID).Msg("No handler for job definition, skipping")
			continue
		}
		if err := manager.Register(def, handler); err != nil {
			return err
		}
	}
	return nil
}

func handlerFor(id string, cleanup, refresh, healthCheck jobs.Handler) jobs.Handler {
	switch {
	case strings.HasPrefix(id, "cleanup"):
		return cleanup
	case strings.HasPrefix(id, "refresh"):
		return refresh
	case strings.HasPrefix(id, "health"):
		return healthCheck
	default:
		return nil
	}
}
