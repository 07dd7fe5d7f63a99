package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/Vovarama1992/npc-dialogue/internal/ai"
	"github.com/Vovarama1992/npc-dialogue/internal/cache"
	"github.com/Vovarama1992/npc-dialogue/internal/casebook"
	"github.com/Vovarama1992/npc-dialogue/internal/config"
	"github.com/Vovarama1992/npc-dialogue/internal/dialogue"
	"github.com/Vovarama1992/npc-dialogue/internal/session"
)

// app is the wired service graph shared by every subcommand.
type app struct {
	store session.Store
	book  *casebook.Book
	svc   dialogue.Service
}

func newApp(ctx context.Context, cfg config.Config, logger *zap.Logger) (*app, error) {
	book, err := loadBook(cfg)
	if err != nil {
		return nil, err
	}

	provider, err := newProvider(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	store, err := newStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	svc := dialogue.NewService(
		store,
		casebook.NewBuilder(book, cfg.HistoryTurns),
		provider,
		cache.New(cfg.CacheSize),
		logger,
		dialogue.Options{MaxTextRunes: cfg.MaxTextRunes},
	)
	logger.Info("service wired",
		zap.String("provider", provider.Name()),
		zap.Int("cache_size", cfg.CacheSize),
		zap.Int("cases", len(book.Catalog().Cases)),
	)
	return &app{store: store, book: book, svc: svc}, nil
}

// Close waits for queued session writes before closing the store.
func (a *app) Close() error {
	a.svc.Drain()
	return a.store.Close()
}

func loadBook(cfg config.Config) (*casebook.Book, error) {
	if cfg.CasesFile == "" {
		return casebook.NewBook(casebook.Default()), nil
	}
	c, err := casebook.LoadFile(cfg.CasesFile)
	if err != nil {
		return nil, err
	}
	return casebook.NewBook(c), nil
}

func newProvider(ctx context.Context, cfg config.Config, logger *zap.Logger) (ai.Provider, error) {
	switch cfg.Provider {
	case config.ProviderDebug:
		logger.Warn("DEBUG_AI mode, replies are canned")
		return ai.DebugClient{}, nil
	case config.ProviderGemini:
		return ai.NewGeminiClient(ctx, ai.GeminiOptions{
			APIKey:  cfg.GeminiKey,
			Model:   cfg.GeminiModel,
			Timeout: cfg.ProviderTimeout,
		}, logger)
	case config.ProviderOpenAI:
		return ai.NewOpenAIClient(ai.OpenAIOptions{
			APIKey:  cfg.OpenAIKey,
			Model:   cfg.OpenAIModel,
			BaseURL: cfg.OpenAIBaseURL,
			Timeout: cfg.ProviderTimeout,
		}, logger), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
	}
}

func newStore(ctx context.Context, cfg config.Config, logger *zap.Logger) (session.Store, error) {
	if cfg.DatabaseURL == "" {
		logger.Info("DATABASE_URL not set, sessions are kept in memory")
		return session.NewMemoryStore(), nil
	}
	store, err := session.OpenSQL(ctx, cfg.DBDriver, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	logger.Info("session store ready", zap.String("driver", cfg.DBDriver))
	return store, nil
}
