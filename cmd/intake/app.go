package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/tbxark/intakeagent/catalog"
	"github.com/tbxark/intakeagent/config"
	"github.com/tbxark/intakeagent/interview"
	"github.com/tbxark/intakeagent/persist"
	"github.com/tbxark/intakeagent/question"
	"github.com/tbxark/intakeagent/session"
	"github.com/tbxark/intakeagent/validator"
)

type app struct {
	config    *config.Config
	logger    *slog.Logger
	persister session.Persister
	store     *session.Store
	engine    *interview.Engine
	closer    io.Closer
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.ToUpper(level))); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

func loadCatalog(path string) (*catalog.Catalog, error) {
	if path == "" {
		return catalog.Default(), nil
	}
	return catalog.LoadFile(path)
}

// openApp loads configuration, opens the session store and builds the engine.
func openApp(ctx context.Context, configPath string) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	c, err := loadCatalog(cfg.CatalogPath)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	persister, closer, err := persist.Open(ctx, cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.Store.Driver, err)
	}
	store := session.NewStore(
		session.WithCatalog(c),
		session.WithValidator(validator.New(validator.WithVagueMode(validator.VagueMode(cfg.VagueMode)))),
		session.WithPersister(persister),
		session.WithLogger(logger),
		session.WithUndoCapacity(cfg.UndoCapacity),
		session.WithAutosaveInterval(cfg.AutosaveInterval()),
	)
	if err := store.Open(ctx); err != nil {
		_ = closer.Close()
		return nil, err
	}

	selectorOpts := []question.Option{
		question.WithAllowFreeForm(cfg.AllowFreeFormQuestions),
		question.WithMaxFreeForm(cfg.MaxFreeFormQuestions),
		question.WithHistoryWindow(cfg.HistoryWindow),
	}
	var engine *interview.Engine
	if cfg.HasModel() {
		cm, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
			APIKey:  cfg.Model.APIKey,
			Model:   cfg.Model.Model,
			BaseURL: cfg.Model.BaseURL,
		})
		if err != nil {
			_ = store.Close(ctx)
			_ = closer.Close()
			return nil, fmt.Errorf("create chat model: %w", err)
		}
		engine, err = interview.NewToolBasedEngine(store, cm, interview.ToolBasedConfig{
			Selector: selectorOpts,
			Timeout:  cfg.AITimeout(),
			Logger:   logger,
		})
		if err != nil {
			_ = store.Close(ctx)
			_ = closer.Close()
			return nil, err
		}
	} else {
		logger.Info("no model configured, questions follow catalogue order")
		engine = interview.NewEngine(store,
			interview.WithSelector(question.NewSelector(c, append(selectorOpts, question.WithLogger(logger))...)),
			interview.WithLogger(logger),
		)
	}

	return &app{
		config:    cfg,
		logger:    logger,
		persister: persister,
		store:     store,
		engine:    engine,
		closer:    closer,
	}, nil
}

func (a *app) Close(ctx context.Context) error {
	err := a.store.Close(ctx)
	if cErr := a.closer.Close(); err == nil {
		err = cErr
	}
	return err
}
