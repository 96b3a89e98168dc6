package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/mohammad-safakhou/newsdigest/config"
	"github.com/mohammad-safakhou/newsdigest/internal/conversation"
	"github.com/mohammad-safakhou/newsdigest/internal/extract"
	"github.com/mohammad-safakhou/newsdigest/internal/logging"
	"github.com/mohammad-safakhou/newsdigest/internal/server"
	"github.com/mohammad-safakhou/newsdigest/internal/store"
	"github.com/mohammad-safakhou/newsdigest/internal/summarizer"
	"github.com/mohammad-safakhou/newsdigest/news"
	"github.com/mohammad-safakhou/newsdigest/session"
	"github.com/mohammad-safakhou/newsdigest/tools/web_fetch"
)

func serveCMD() *cobra.Command {
	var serveAddr string
	var cfgPath string
	var serve = &cobra.Command{
		Use:   "serve",
		Short: "Run HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(cfgPath)
			if err != nil {
				return err
			}
			if serveAddr != "" {
				cfg.Server.Address = serveAddr
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return run(ctx, cfg)
		},
	}
	serve.Flags().StringVar(&serveAddr, "addr", "", "listen address (default server.address)")
	serve.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default is ./config or .)")

	return serve
}

func run(ctx context.Context, cfg *config.Config) error {
	logger := logging.New(cfg.General)
	log := logging.Component(logger, "main")

	if cfg.Server.MigrateOnStart {
		if err := store.Migrate(cfg.Server.MigrationsDir, cfg.Storage.Postgres.DSN(), "up", 0); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	pctx, cancel := context.WithTimeout(ctx, cfg.Storage.Postgres.Timeout)
	st, err := store.NewWithDSN(pctx, cfg.Storage.Postgres.DSN())
	cancel()
	if err != nil {
		return err
	}
	defer st.Close()

	sessions, closeSessions, err := newSessionStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeSessions()

	sweeper, err := session.NewSweeper(sessions, cfg.Session.SweepCron, cfg.Session.IdleTTL, logger)
	if err != nil {
		return err
	}
	go sweeper.Run(ctx)

	retriever, err := news.NewRetrieverFromConfig(cfg.Sources, news.WithLogger(logger))
	if err != nil {
		return err
	}
	fetcher, err := web_fetch.NewWebFetcher(web_fetch.FetcherType(cfg.Extractor.Fetcher), cfg.Extractor.Timeout, cfg.Extractor.UserAgent)
	if err != nil {
		return err
	}
	extractor := extract.New(fetcher, extract.Options{
		MinParagraphChars: cfg.Extractor.MinParagraphChars,
		MaxParagraphs:     cfg.Extractor.MaxParagraphs,
		MinContentChars:   cfg.Extractor.MinContentChars,
		MinWords:          cfg.Extractor.MinWords,
	}, logger)

	orch := conversation.New(sessions, retriever, extractor, summarizer.New(cfg.Summarizer, logger), st, conversation.Options{
		Flow:              conversation.Flow(cfg.Chat.Flow),
		MaxArticles:       cfg.Chat.MaxArticles,
		FetchPhaseDelay:   cfg.Chat.FetchPhaseDelay,
		SummaryPhaseDelay: cfg.Chat.SummaryPhaseDelay,
	}, logger)

	e := server.New(server.Options{
		Server:    cfg.Server,
		WordDelay: cfg.Chat.WordDelay,
		Store:     st,
		Turner:    orch,
		Logger:    logger,
	})
	log.WithFields(logrus.Fields{
		"addr":    cfg.Server.Address,
		"flow":    cfg.Chat.Flow,
		"primary": cfg.Sources.Primary,
		"session": cfg.Session.Store,
	}).Info("listening")
	return server.Run(ctx, e, cfg.Server.Address, cfg.Server.ShutdownTimeout)
}

// newSessionStore connects redis only when the redis store is configured.
func newSessionStore(ctx context.Context, cfg *config.Config) (session.Store, func(), error) {
	if session.StoreType(cfg.Session.Store) != session.RedisStore {
		s, err := session.NewStore(cfg.Session, nil)
		return s, func() {}, err
	}
	rc := cfg.Storage.Redis
	rdb := redis.NewClient(&redis.Options{
		Addr:        rc.Addr(),
		Password:    rc.Password,
		DB:          rc.DB,
		DialTimeout: rc.Timeout,
	})
	pctx, cancel := context.WithTimeout(ctx, rc.Timeout)
	defer cancel()
	if err := rdb.Ping(pctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, nil, fmt.Errorf("redis connection failed (%s): %w", rc.Addr(), err)
	}
	s, err := session.NewStore(cfg.Session, rdb)
	if err != nil {
		_ = rdb.Close()
		return nil, nil, err
	}
	return s, func() { _ = rdb.Close() }, nil
}
