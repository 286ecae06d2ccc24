// Package app assembles the storage, cache, vendor and analysis components
// from configuration. The API server and the CLI share it.
package app

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/nicetoya86/ticket/internal/cache"
	"github.com/nicetoya86/ticket/internal/cache/redis"
	"github.com/nicetoya86/ticket/internal/ingestion"
	"github.com/nicetoya86/ticket/internal/inquiry"
	"github.com/nicetoya86/ticket/internal/llm"
	"github.com/nicetoya86/ticket/internal/storage/sqlite"
	"github.com/nicetoya86/ticket/internal/transcript"
	"github.com/nicetoya86/ticket/internal/vendors/channeltalk"
	"github.com/nicetoya86/ticket/internal/vendors/zendesk"
	"github.com/nicetoya86/ticket/pkg/config"
	"github.com/nicetoya86/ticket/pkg/logger"
)

type App struct {
	Config    *config.Config
	Store     *sqlite.Client
	Cache     cache.Cache
	Redis     *redis.Client
	memory    *cache.Memory
	Extractor *transcript.Extractor
	Zendesk   *zendesk.Client
	Channel   *channeltalk.Client
	LLM       *llm.Client
	Inquiries *inquiry.Service
	Ingestion *ingestion.Processor
}

// New opens the store and builds every component. Vendors and the LLM are
// built only when their credentials are configured.
func New(cfg *config.Config) (*App, error) {
	log := logger.GetLogger()
	a := &App{Config: cfg}

	store, err := sqlite.NewClient(cfg.SQLite.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}
	if err := store.InitSchema(); err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	a.Store = store

	switch cfg.Cache.Backend {
	case "redis":
		rc, err := redis.NewClient(cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.Redis = rc
		a.Cache = rc
	case "none":
		a.Cache = cache.Nop{}
	default:
		a.memory = cache.NewMemory()
		a.Cache = a.memory
	}

	a.Extractor, err = transcript.NewFromFile(cfg.Pipeline.RulesFile, log.Named("transcript"))
	if err != nil {
		a.Close()
		return nil, err
	}

	a.Zendesk = zendesk.NewClient(cfg.Zendesk, log.Named("zendesk"))
	a.Channel = channeltalk.NewClient(cfg.ChannelTalk, log.Named("channeltalk"), channeltalk.WithCache(a.Cache))

	deps := inquiry.Deps{
		Store:         store,
		Tickets:       a.Zendesk,
		Chats:         a.Channel,
		Extractor:     a.Extractor,
		Cache:         a.Cache,
		Pipeline:      cfg.Pipeline,
		CacheTTL:      time.Duration(cfg.Cache.TTLSeconds) * time.Second,
		MaxInputChars: cfg.LLM.MaxInputChars,
		Logger:        log.Named("inquiry"),
	}
	if cfg.LLM.Enabled() {
		a.LLM = llm.NewClient(cfg.LLM)
		deps.Summarizer = a.LLM
	} else {
		log.Warn("LLM API key not set, analyses use the keyword fallback")
	}
	a.Inquiries = inquiry.New(deps)
	a.Ingestion = ingestion.NewProcessor(store, a.Zendesk, a.Channel, a.Inquiries)

	log.Info("Components initialized",
		zap.String("cache", cfg.Cache.Backend),
		zap.Bool("zendesk", a.Zendesk.Enabled()),
		zap.Bool("channel_talk", a.Channel.Enabled()),
		zap.Bool("llm", a.LLM != nil),
	)
	return a, nil
}

func (a *App) Close() {
	if a.memory != nil {
		a.memory.Close()
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			logger.Warn("Failed to close redis", zap.Error(err))
		}
	}
	if a.Store != nil {
		if err := a.Store.Close(); err != nil {
			logger.Warn("Failed to close sqlite", zap.Error(err))
		}
	}
}
