package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"google.golang.org/adk/model"

	"github.com/lewisedginton/friday_assistant/internal/assistant"
	appconfig "github.com/lewisedginton/friday_assistant/internal/config"
	"github.com/lewisedginton/friday_assistant/internal/context_assembler"
	"github.com/lewisedginton/friday_assistant/internal/digest"
	"github.com/lewisedginton/friday_assistant/internal/intent"
	"github.com/lewisedginton/friday_assistant/internal/learning"
	"github.com/lewisedginton/friday_assistant/internal/memory_store"
	"github.com/lewisedginton/friday_assistant/internal/models"
	"github.com/lewisedginton/friday_assistant/internal/storage_manager"
	"github.com/lewisedginton/friday_assistant/internal/worker_pool"
	"github.com/lewisedginton/friday_assistant/pkg/logger"
	"github.com/lewisedginton/friday_assistant/pkg/metrics"
)

// runtime is the wired assistant shared by the long-running commands.
type runtime struct {
	cfg      *appconfig.AppConfig
	log      logger.Logger
	metrics  *metrics.Metrics
	location *time.Location

	store   *memory_store.Store
	pool    *worker_pool.Pool
	storage *storage_manager.StorageManager
	backups *storage_manager.BackupArchive

	provider   models.Provider
	model      model.LLM
	assistant  *assistant.Assistant
	summarizer *digest.Summarizer
}

// openStore opens the memory database on its own, for commands that only
// read or edit stored data.
func openStore(ctx context.Context, cfg *appconfig.AppConfig, log logger.Logger, m *metrics.Metrics) (*memory_store.Store, error) {
	loc, err := cfg.Assistant.Location()
	if err != nil {
		return nil, err
	}
	store, err := memory_store.Open(ctx, memory_store.Config{
		Database: cfg.Database,
		Logger:   log,
		Metrics:  m,
		Location: loc,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open memory store: %w", err)
	}
	return store, nil
}

func openStorage(ctx context.Context, cfg *appconfig.AppConfig) (*storage_manager.StorageManager, error) {
	smCfg, err := cfg.Storage.ManagerConfig()
	if err != nil {
		return nil, err
	}
	sm, err := storage_manager.New(ctx, smCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage manager: %w", err)
	}
	return sm, nil
}

// newRuntime wires every component from cfg. Without a configured model
// provider the assistant runs offline.
func newRuntime(ctx context.Context, cfg *appconfig.AppConfig, log logger.Logger) (rt *runtime, err error) {
	loc, err := cfg.Assistant.Location()
	if err != nil {
		return nil, err
	}

	rt = &runtime{
		cfg:      cfg,
		log:      log,
		metrics:  metrics.NewMetrics(cfg.Metrics.EnableHTTPMetrics, cfg.Metrics.EnableJobMetrics, log),
		location: loc,
	}
	defer func() {
		if err != nil {
			_ = rt.close(context.Background())
		}
	}()

	if rt.store, err = openStore(ctx, cfg, log, rt.metrics); err != nil {
		return nil, err
	}
	if rt.storage, err = openStorage(ctx, cfg); err != nil {
		return nil, err
	}
	rt.backups = storage_manager.NewBackupArchive(rt.storage.Provider(storage_manager.NamespaceBackups), cfg.Storage.BackupKeep)

	modelCfg, err := cfg.ModelConfig(log)
	if err != nil {
		return nil, err
	}
	rt.provider = modelCfg.Provider
	switch rt.model, err = models.New(ctx, modelCfg); {
	case errors.Is(err, models.ErrNoProvider):
		log.Warn("No model provider configured, running offline")
		rt.provider, err = models.ProviderNone, nil
	case err != nil:
		return nil, fmt.Errorf("failed to create model: %w", err)
	}

	rt.pool = worker_pool.New(worker_pool.Config{
		Workers:     cfg.Worker.Workers,
		QueueSize:   cfg.Worker.QueueSize,
		TaskTimeout: cfg.Worker.TaskTimeout,
		Logger:      log,
		Metrics:     rt.metrics,
	})

	persona := context_assembler.NewPersonaLoader(
		rt.storage.Provider(storage_manager.NamespacePersona), cfg.Assistant.Name, log)
	assembler := context_assembler.New(context_assembler.Config{
		Store:           rt.store,
		Persona:         persona,
		Logger:          log,
		Metrics:         rt.metrics,
		Location:        loc,
		LocationName:    cfg.Assistant.LocationName,
		MemoryLimit:     cfg.Memory.MemoryLimit,
		PreferenceLimit: cfg.Memory.PreferenceLimit,
		SummaryDays:     cfg.Memory.SummaryDays,
		LessonLimit:     cfg.Memory.LessonLimit,
		TokenBudget:     cfg.Memory.TokenBudget,
		HistoryTurns:    cfg.Assistant.HistoryTurns,
	})
	router := intent.New(intent.Config{
		Store:    rt.store,
		Logger:   log,
		Location: loc,
		WakeWord: cfg.Assistant.WakeWord,
	})

	if rt.assistant, err = assistant.New(assistant.Config{
		Store:           rt.store,
		Assembler:       assembler,
		Router:          router,
		Learner:         learning.NewLearner(rt.store, log),
		Model:           rt.model,
		Pool:            rt.pool,
		Logger:          log,
		Metrics:         rt.metrics,
		Provider:        string(rt.provider),
		MaxOutputTokens: int32(cfg.LLM.MaxOutputTokens),
		Temperature:     float32(cfg.LLM.Temperature),
		HistoryTurns:    cfg.Assistant.HistoryTurns,
		Retention:       cfg.RetentionPolicy(),
		PruneEvery:      cfg.Memory.PruneEvery,
	}); err != nil {
		return nil, err
	}

	rt.summarizer = digest.NewSummarizer(digest.Config{
		Store:    rt.store,
		Model:    rt.model,
		Logger:   log,
		Location: loc,
	})
	return rt, nil
}

// modelHealthURL is probed by the readiness check. Only local providers are
// probed; hosted APIs are not worth a request per probe.
func (rt *runtime) modelHealthURL() string {
	if rt.provider != models.ProviderOllama || rt.cfg.Ollama.BaseURL == "" {
		return ""
	}
	return strings.TrimSuffix(rt.cfg.Ollama.BaseURL, "/") + "/models"
}

// close drains background writes, then closes the database.
func (rt *runtime) close(ctx context.Context) error {
	var result error
	if rt.pool != nil {
		drainCtx, cancel := context.WithTimeout(ctx, rt.cfg.Worker.ShutdownTimeout)
		defer cancel()
		if err := rt.pool.Close(drainCtx); err != nil {
			result = multierror.Append(result, fmt.Errorf("drain background writes: %w", err))
		}
	}
	if rt.store != nil {
		if err := rt.store.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("close memory store: %w", err))
		}
	}
	return result
}
