// Command server runs the research orchestration service: the HTTP API, the
// provider registry, the weekly research scheduler and the lifecycle engine
// over the core and cache databases.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/aristath/folios/internal/archive"
	"github.com/aristath/folios/internal/config"
	"github.com/aristath/folios/internal/database"
	"github.com/aristath/folios/internal/domain"
	"github.com/aristath/folios/internal/events"
	"github.com/aristath/folios/internal/orchestration"
	"github.com/aristath/folios/internal/providers"
	"github.com/aristath/folios/internal/providers/local"
	"github.com/aristath/folios/internal/runtime"
	"github.com/aristath/folios/internal/scheduler"
	"github.com/aristath/folios/internal/scheduling"
	"github.com/aristath/folios/internal/screener"
	"github.com/aristath/folios/internal/server"
	"github.com/aristath/folios/internal/storage"
	"github.com/aristath/folios/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallbackLog := logger.New(logger.Config{Level: "info", Pretty: true})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})
	logger.SetGlobalLogger(log)

	log.Info().Msg("Starting folios")

	coreDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "core.db"),
		Profile: database.ProfileCore,
		Name:    "core",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open core database")
	}
	defer coreDB.Close()

	cacheDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "cache.db"),
		Profile: database.ProfileCache,
		Name:    "cache",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open cache database")
	}
	defer cacheDB.Close()

	for _, db := range []*database.DB{coreDB, cacheDB} {
		if err := db.Migrate(); err != nil {
			log.Fatal().Err(err).Str("database", db.Name()).Msg("Failed to migrate database")
		}
	}

	store := storage.NewStore(coreDB, log)
	results := storage.NewResultRepository(cacheDB, log)
	bus := events.NewBus(log)

	registry := providers.NewRegistry()
	if err := registerPlugins(registry, cfg); err != nil {
		log.Fatal().Err(err).Msg("Failed to register provider plugins")
	}
	log.Info().Int("providers", registry.Count()).Msg("Provider registry ready")

	screenerSvc := screener.NewService(bus, log)
	if cfg.FinnhubAPIKey != "" {
		if err := screenerSvc.Register(screener.NewFinnhubClient(cfg.FinnhubAPIKey, log)); err != nil {
			log.Fatal().Err(err).Msg("Failed to register screener provider")
		}
	}

	calendar := scheduling.NewHolidayCalendar(nil)
	balancer := scheduling.NewWeekdayLoadBalancer(0)
	coordinator := orchestration.NewStrategyCoordinator(store, balancer, calendar, bus, log)
	lifecycle := orchestration.NewLifecycleEngine(store, bus, log)

	batchRuntime := runtime.NewBatchRuntime(cfg.PollInterval, cfg.MaxPolls, log)
	cliRuntime := runtime.NewCliRuntime(true, log)

	var archiver orchestration.Archiver
	if cfg.ArchiveBucket != "" {
		s3Archiver, err := archive.NewS3ArtifactArchiver(context.Background(), cfg.ArchiveBucket, cfg.ArchivePrefix, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize artifact archiver")
		}
		archiver = s3Archiver
	}

	driver := orchestration.NewTaskDriver(store, registry, lifecycle, batchRuntime, cliRuntime, results, archiver, bus, log)
	orch := orchestration.NewOrchestrator(store, registry, screenerSvc, bus, cfg.ArtifactDir, log)

	sched := scheduler.New(log)
	researchJob := scheduler.NewWeeklyResearchJob(store, coordinator, orch, driver, calendar, defaultProvider(registry), "", log)
	cronSpec := fmt.Sprintf("%d %d * * MON-FRI", cfg.ResearchMinute, cfg.ResearchHour)
	if err := sched.AddJob(cronSpec, researchJob); err != nil {
		log.Fatal().Err(err).Msg("Failed to register research job")
	}
	sched.Start()

	srv := server.New(server.Config{
		Log:          log,
		Port:         cfg.Port,
		DevMode:      cfg.DevMode,
		Store:        store,
		Results:      results,
		Registry:     registry,
		Orchestrator: orch,
		Bus:          bus,
	})

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- srv.Start()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		log.Error().Err(err).Msg("HTTP server stopped unexpectedly")
	case sig := <-quit:
		log.Info().Str("signal", sig.String()).Msg("Shutdown signal received")
	}

	sched.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server shutdown failed")
	}

	log.Info().Msg("Shutdown complete")
}

// registerPlugins builds the provider registry from the providers config
// file, falling back to a built-in set when none is configured.
func registerPlugins(registry *providers.Registry, cfg *config.Config) error {
	defs := defaultProviderDefinitions()
	if cfg.ProvidersPath != "" {
		file, err := config.LoadProviders(cfg.ProvidersPath)
		if err != nil {
			return err
		}
		defs = file.Providers
	}

	for _, def := range defs {
		id := domain.ProviderID(def.ID)
		spec := providers.PluginSpec{
			ID:            id,
			DisplayName:   def.DisplayName,
			SupportsBatch: def.SupportsBatch,
			SupportsCLI:   def.SupportsCLI,
			DefaultMode:   domain.ExecutionMode(def.DefaultMode),
			Throttle: providers.Throttle{
				MaxConcurrent:     def.Throttle.MaxConcurrent,
				RequestsPerMinute: def.Throttle.RequestsPerMinute,
				CoolDown:          time.Duration(def.Throttle.CoolDownSeconds) * time.Second,
			},
			Parser: providers.NewUnifiedResultParser(id),
		}
		if def.SupportsBatch {
			spec.Serializer = &local.JSONSerializer{ProviderID: id}
			spec.BatchExecutor = &local.BatchExecutor{ProviderID: id}
		}
		if def.SupportsCLI {
			spec.CliExecutor = &local.CommandCliExecutor{ProviderID: id, BaseCommand: def.CliCommand}
		}

		plugin, err := providers.NewPlugin(spec)
		if err != nil {
			return err
		}
		if err := registry.Register(plugin, false); err != nil {
			return err
		}
	}
	return nil
}

func defaultProviderDefinitions() []config.ProviderDefinition {
	openai := config.ProviderDefinition{ID: "openai", DisplayName: "OpenAI", SupportsBatch: true}
	anthropic := config.ProviderDefinition{ID: "anthropic", DisplayName: "Anthropic", SupportsBatch: true}
	gemini := config.ProviderDefinition{
		ID:          "gemini",
		DisplayName: "Gemini",
		SupportsCLI: true,
		CliCommand:  []string{"gemini", "--output-format", "json", "-y"},
	}
	return []config.ProviderDefinition{openai, anthropic, gemini}
}

// defaultProvider picks the first registered provider for scheduled runs.
func defaultProvider(registry *providers.Registry) domain.ProviderID {
	plugins := registry.List()
	if len(plugins) == 0 {
		return domain.ProviderOpenAI
	}
	return plugins[0].ID()
}
