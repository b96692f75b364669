package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/eupendra/simple-price-alert/pkg/config"
	pio "github.com/eupendra/simple-price-alert/pkg/io"
	"github.com/eupendra/simple-price-alert/pkg/notify"
	"github.com/eupendra/simple-price-alert/pkg/runlock"
	"github.com/eupendra/simple-price-alert/pkg/scraper"
	"github.com/eupendra/simple-price-alert/pkg/storage"
	"github.com/eupendra/simple-price-alert/pkg/tracker"
	"github.com/eupendra/simple-price-alert/pkg/web"
)

type cleanups []func()

func (c cleanups) run() {
	for i := len(c) - 1; i >= 0; i-- {
		c[i]()
	}
}

// newRunner wires the configured fetcher, stores and notification channels.
// The returned func releases browsers and database connections.
func newRunner(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*tracker.Runner, func(), error) {
	var done cleanups

	extractor, err := scraper.NewExtractor(cfg.PriceSelector)
	if err != nil {
		return nil, nil, err
	}

	var fetcher scraper.Fetcher
	switch cfg.Fetcher {
	case "browser":
		b := scraper.NewBrowserFetcher(cfg.UserAgent, cfg.FetchTimeout)
		done = append(done, b.Close)
		fetcher = b
	default:
		fetcher = scraper.NewCollyFetcher(cfg.UserAgent, cfg.FetchTimeout)
	}

	notifier, err := web.LoadNotifier(cfg.MailTemplate)
	if err != nil {
		done.run()
		return nil, nil, err
	}

	var store pio.Store
	if cfg.Persist {
		var closers cleanups
		store, closers, err = newStore(ctx, cfg)
		done = append(done, closers...)
		if err != nil {
			done.run()
			return nil, nil, err
		}
	}

	var channels []tracker.Sender
	if cfg.WebhookURL != "" {
		channels = append(channels, notify.NewWebhook(cfg.WebhookURL, "", logger))
	}

	r := &tracker.Runner{
		Products: func() ([]scraper.TrackedProduct, error) { return pio.LoadProducts(cfg.ProductsFile) },
		Pipeline: scraper.NewPipeline(fetcher, extractor,
			scraper.WithFetchTimeout(cfg.FetchTimeout),
			scraper.WithLogger(logger),
		),
		Store:    store,
		Notifier: notifier,
		Mailer:   notify.NewMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.Credentials, logger),
		Channels: channels,
		Options:  tracker.Options{Persist: cfg.Persist, Notify: cfg.Notify},
		Logger:   logger,
	}
	return r, done.run, nil
}

func newStore(ctx context.Context, cfg *config.Config) (pio.MultiStore, cleanups, error) {
	var (
		stores pio.MultiStore
		done   cleanups
	)
	for _, name := range cfg.Stores {
		switch name {
		case "csv":
			stores = append(stores, pio.NewHistoryFile(cfg.HistoryFile))
		case "snapshot":
			stores = append(stores, pio.NewSnapshotStore(cfg.SnapshotDir, time.Now()))
		case "postgres":
			pool, err := storage.Connect(ctx, cfg.DatabaseURL)
			if err != nil {
				return nil, done, fmt.Errorf("postgres: %w", err)
			}
			done = append(done, pool.Close)
			pg := storage.NewPostgresStore(pool)
			if err := pg.EnsureSchema(ctx); err != nil {
				return nil, done, err
			}
			stores = append(stores, pg)
		case "mongo":
			m, err := storage.ConnectMongo(ctx, storage.MongoConfig{
				URI:        cfg.MongoURI,
				Database:   cfg.MongoDatabase,
				Collection: cfg.MongoCollection,
			})
			if err != nil {
				return nil, done, err
			}
			done = append(done, func() { m.Close(context.Background()) })
			stores = append(stores, m)
		default:
			return nil, done, fmt.Errorf("unknown store %q", name)
		}
	}
	return stores, done, nil
}

func acquireLock(ctx context.Context, cfg *config.Config) (func(), error) {
	locker, err := runlock.Connect(ctx, runlock.Config{Addr: cfg.RedisAddr, Password: cfg.RedisPassword}, cfg.LockTTL)
	if err != nil {
		return nil, err
	}
	lease, err := locker.Acquire(ctx)
	if err != nil {
		locker.Close()
		return nil, err
	}
	return func() {
		lease.Release(context.Background())
		locker.Close()
	}, nil
}
