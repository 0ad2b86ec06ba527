// Dependency wiring shared by the CLI commands.
//
// Information Hiding:
// - Search backend selection (remote service vs local index) hidden
// - Conversation storage selection hidden
// - Logger construction hidden

package cli

import (
	"fmt"
	"os"

	"github.com/charmbracelet/log"

	"github.com/jesamkim/aws-strands-agents-chatbot/agent"
	"github.com/jesamkim/aws-strands-agents-chatbot/config"
	"github.com/jesamkim/aws-strands-agents-chatbot/llm"
	"github.com/jesamkim/aws-strands-agents-chatbot/search"
	"github.com/jesamkim/aws-strands-agents-chatbot/storage"
)

// Options holds CLI execution options.
type Options struct {
	SessionID string
	MaxIter   int
	Verbose   bool
}

// deps bundles the wired application: one engine, its search client, and
// the conversation store. cleanup releases whatever the wiring opened.
type deps struct {
	settings config.Settings
	engine   *agent.Engine
	search   *search.Client
	store    storage.ConversationStorage
	logger   *log.Logger
	cleanup  func()
}

// buildSettings loads settings for commands that need configuration but not
// the full application.
func buildSettings() (config.Settings, error) {
	return config.New()
}

// buildDeps wires the application from environment settings.
func buildDeps(opts Options) (*deps, error) {
	settings, err := config.New()
	if err != nil {
		return nil, err
	}

	logger, err := newLogger(settings.LogLevel, opts.Verbose)
	if err != nil {
		return nil, err
	}

	llmClient, err := llm.ClientFromEnv()
	if err != nil {
		return nil, err
	}

	var closers []func() error

	searchClient, closeIndex, err := newSearchClient(settings.Search)
	if err != nil {
		return nil, err
	}
	searchClient.SetLogger(logger.WithPrefix("search"))
	if closeIndex != nil {
		closers = append(closers, closeIndex)
	}

	store, closeStore, err := newConversationStore(settings.Storage)
	if err != nil {
		runClosers(closers, logger)
		return nil, err
	}
	if closeStore != nil {
		closers = append(closers, closeStore)
	}

	cfg := agent.Config{
		OrchestrationModel:   settings.Models.Orchestration,
		SynthesisModel:       settings.Models.Synthesis,
		Temperature:          settings.Models.Temperature,
		MaxTokens:            settings.Models.MaxTokens,
		MaxIterations:        settings.Loop.MaxIterations,
		MaxConsecutiveErrors: settings.Loop.MaxConsecutiveErrors,
		HistoryWindow:        settings.Loop.HistoryWindow,
		IndexDescription:     settings.Search.IndexDescription,
	}
	if opts.MaxIter > 0 {
		cfg.MaxIterations = opts.MaxIter
	}

	engine := agent.New(cfg, llmClient, searchClient).
		WithLogger(logger.WithPrefix("agent"))

	return &deps{
		settings: settings,
		engine:   engine,
		search:   searchClient,
		store:    store,
		logger:   logger,
		cleanup:  func() { runClosers(closers, logger) },
	}, nil
}

func newLogger(level string, verbose bool) (*log.Logger, error) {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL %q: %w", level, err)
	}
	if verbose {
		lvl = log.DebugLevel
	}
	return log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		Level:           lvl,
	}), nil
}

// newSearchClient picks the retrieval backend: the remote service when an
// index URL is set, the local sqlite index when a path is set, otherwise an
// unconfigured client (the agent then answers from model knowledge).
func newSearchClient(cfg config.SearchSettings) (*search.Client, func() error, error) {
	switch {
	case cfg.IndexURL != "":
		return search.NewClient(search.NewHTTPBackend(cfg.IndexURL, cfg.IndexID)), nil, nil
	case cfg.IndexPath != "":
		ix, err := search.OpenLocalIndex(cfg.IndexPath)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open local index: %w", err)
		}
		return search.NewClient(ix), ix.Close, nil
	default:
		return search.NewClient(nil), nil, nil
	}
}

func newConversationStore(cfg config.StorageSettings) (storage.ConversationStorage, func() error, error) {
	if cfg.ConversationDB == "" {
		return storage.NewInMemoryStorage(), nil, nil
	}
	s, err := storage.OpenSqlite(cfg.ConversationDB)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open conversation database: %w", err)
	}
	return s, s.Close, nil
}

func runClosers(closers []func() error, logger *log.Logger) {
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i](); err != nil {
			logger.Warn("cleanup failed", "error", err)
		}
	}
}
