package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nugget/krish/internal/agent"
	"github.com/nugget/krish/internal/assembly"
	"github.com/nugget/krish/internal/config"
	"github.com/nugget/krish/internal/forge"
	"github.com/nugget/krish/internal/httpkit"
	"github.com/nugget/krish/internal/intent"
	"github.com/nugget/krish/internal/llm"
	"github.com/nugget/krish/internal/memory"
	"github.com/nugget/krish/internal/metrics"
	"github.com/nugget/krish/internal/notion"
	"github.com/nugget/krish/internal/retrieval"
	"github.com/nugget/krish/internal/scheduler"
	"github.com/nugget/krish/internal/search"
	"github.com/nugget/krish/internal/tools"
)

// app holds every long-lived component of a configured assistant.
type app struct {
	cfg       *config.Config
	logger    *slog.Logger
	workspace *memory.Workspace
	sessions  *memory.Sessions
	models    *llm.MultiClient
	registry  *tools.Registry
	handler   *agent.Handler
	scheduler *scheduler.Scheduler // nil without a messenger

	closers []func() error
}

// buildApp wires the pipeline from cfg. messenger, when non-nil, is the
// outbound chat transport; it enables the reminder and messaging tools.
func buildApp(cfg *config.Config, logger *slog.Logger, messenger tools.Messenger) (_ *app, err error) {
	a := &app{cfg: cfg, logger: logger}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	loc, err := time.LoadLocation(cfg.Reminders.Timezone)
	if err != nil {
		return nil, fmt.Errorf("reminders timezone: %w", err)
	}

	a.workspace, err = memory.NewWorkspace(cfg.Workspace.Dir, loc, cfg.Context.RecentLogDays, logger)
	if err != nil {
		return nil, fmt.Errorf("open workspace: %w", err)
	}
	a.sessions = memory.NewSessions(cfg.Context.MaxHistory)

	a.models = createLLMClient(cfg, logger)
	mainModel := llm.NewCaller(a.models, cfg.LLM.MainModel, cfg.LLM.Timeout(), logger)
	smallModel := llm.NewCaller(a.models, cfg.LLM.ClassifierModel, cfg.LLM.Timeout(), logger)

	// Semantic retrieval is optional; without it the retrieval piece is
	// simply never assembled.
	var (
		retriever assembly.Retriever
		indexer   agent.LogIndexer
	)
	if cfg.Embeddings.Enabled {
		index, embedder, err := openIndex(cfg)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, index.Close)
		retriever = retrieval.NewRetriever(index, embedder, retrieval.DefaultTimeout, logger)
		indexer = retrieval.NewIndexer(index, embedder, logger)
		logger.Info("semantic retrieval enabled", "model", cfg.Embeddings.Model)
	}

	a.registry = tools.NewRegistry(tools.DefaultTimeout, logger)
	if err := a.registerTools(smallModel, messenger, loc); err != nil {
		return nil, err
	}
	logger.Info("tools registered", "tools", a.registry.Names())

	store, err := metrics.NewStore(cfg.DBPath("metrics"))
	if err != nil {
		return nil, fmt.Errorf("open metrics store: %w", err)
	}
	a.closers = append(a.closers, store.Close)

	a.handler = agent.NewHandler(agent.Config{
		Sessions:   a.sessions,
		Classifier: intent.NewClassifier(smallModel, logger),
		Context: assembly.New(assembly.Config{
			Name:      cfg.PersonaName,
			Sources:   a.workspace,
			Retriever: retriever,
			Tokenizer: assembly.NewTokenizer(cfg.Context.Encoding, logger),
			Budgets: assembly.Budgets{
				Casual:    cfg.Context.Budgets.Casual,
				Tool:      cfg.Context.Budgets.Tool,
				Personal:  cfg.Context.Budgets.Personal,
				Knowledge: cfg.Context.Budgets.Knowledge,
				Max:       cfg.Context.MaxContextTokens,
			},
			Logger: logger,
		}),
		Model:         mainModel,
		Tools:         a.registry,
		Log:           a.workspace,
		Indexer:       indexer,
		Extractor:     memory.NewExtractor(smallModel, a.workspace, logger),
		Metrics:       store,
		MaxIterations: cfg.Context.MaxToolIterations,
		Logger:        logger,
	})
	return a, nil
}

// registerTools binds every configured integration. Unconfigured ones
// are left out so the model is never offered a tool that cannot work.
func (a *app) registerTools(smallModel *llm.Caller, messenger tools.Messenger, loc *time.Location) error {
	cfg, logger := a.cfg, a.logger

	mgr := search.NewManager(cfg.Search.Provider)
	if cfg.Search.SerpAPIKey != "" {
		mgr.Register(search.NewSerpAPI(cfg.Search.SerpAPIKey, ""))
	}
	if cfg.Search.SearXNGURL != "" {
		mgr.Register(search.NewSearXNG(cfg.Search.SearXNGURL))
	}
	if mgr.Configured() {
		a.registry.RegisterSearch(mgr, cfg.Search.Count)
	} else {
		logger.Warn("no search provider configured, web_search unavailable")
	}

	if cfg.GitHub.Configured() {
		gh, err := forge.NewGitHub(httpkit.NewClient(httpkit.WithLogger(logger)),
			cfg.GitHub.Token, cfg.GitHub.BaseURL, cfg.GitHub.Owner, logger)
		if err != nil {
			return err
		}
		a.registry.RegisterGitHub(gh)
	}

	if cfg.Notion.Configured() {
		a.registry.RegisterNotion(notion.New(notion.Config{
			Token:   cfg.Notion.Token,
			PageID:  cfg.Notion.PageID,
			Version: cfg.Notion.Version,
		}))
	}

	if messenger == nil {
		return nil
	}

	store, err := scheduler.NewStore(cfg.DBPath("reminders"))
	if err != nil {
		return fmt.Errorf("open reminder store: %w", err)
	}
	a.closers = append(a.closers, store.Close)
	a.scheduler = scheduler.New(logger, store, messenger.Send, loc)
	a.registry.RegisterReminders(scheduler.NewParser(smallModel), a.scheduler)
	a.registry.RegisterMessaging(messenger, cfg.Telegram.KnownChats)
	return nil
}

// Close releases the databases in reverse order of opening.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}

// openIndex opens the retrieval index and its embedder.
func openIndex(cfg *config.Config) (*retrieval.Index, retrieval.Embedder, error) {
	index, err := retrieval.OpenIndex(cfg.DBPath("index"))
	if err != nil {
		return nil, nil, fmt.Errorf("open retrieval index: %w", err)
	}
	embedder := retrieval.NewOllamaEmbedder(retrieval.EmbedderConfig{
		BaseURL: cfg.Embeddings.BaseURL,
		Model:   cfg.Embeddings.Model,
	})
	return index, embedder, nil
}

// createLLMClient builds a multi-provider client from the configuration.
// Each provider's listed models route to it; any other model falls
// through to the first provider.
func createLLMClient(cfg *config.Config, logger *slog.Logger) *llm.MultiClient {
	httpClient := httpkit.NewClient(
		httpkit.WithTimeout(cfg.LLM.Timeout()),
		httpkit.WithRetry(2, time.Second),
		httpkit.WithLogger(logger),
	)

	multi := llm.NewMultiClient()
	for _, p := range cfg.LLM.Providers {
		multi.AddProvider(p.Name, llm.NewOpenAIClient(p.BaseURL, p.APIKey, cfg.LLM.MaxTokens, httpClient, logger), p.Models...)
	}
	logger.Info("LLM client initialized",
		"providers", multi.Providers(),
		"main_model", cfg.LLM.MainModel,
		"classifier_model", cfg.LLM.ClassifierModel,
	)
	return multi
}

// startScheduler arms persisted reminders when reminders are enabled.
func (a *app) startScheduler(ctx context.Context) error {
	if a.scheduler == nil {
		return nil
	}
	if err := a.scheduler.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	return nil
}

// checkProviders warns about unreachable model providers. Startup goes
// on regardless; turns will answer with the apology until they recover.
func (a *app) checkProviders(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := a.models.Ping(ctx); err != nil {
		a.logger.Warn("model provider unreachable", "error", err)
	}
}
