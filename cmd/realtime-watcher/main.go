package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/juju/clock"
	"github.com/sirupsen/logrus"

	"github.com/chetansierra/saan-mobile-app-sub001/internal/config"
	"github.com/chetansierra/saan-mobile-app-sub001/internal/feed"
	"github.com/chetansierra/saan-mobile-app-sub001/internal/feed/binlogfeed"
	"github.com/chetansierra/saan-mobile-app-sub001/internal/feed/natsfeed"
	"github.com/chetansierra/saan-mobile-app-sub001/internal/notify"
	"github.com/chetansierra/saan-mobile-app-sub001/internal/realtime"
)

func main() {
	// Setup logger
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
	logger.SetLevel(logrus.InfoLevel)

	// Load configuration
	configPath := "config.yaml"
	if len(os.Args) > 1 {
		configPath = os.Args[1]
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}

	// Set log level from config
	if level, err := logrus.ParseLevel(cfg.Logging.Level); err == nil {
		logger.SetLevel(level)
	}

	logger.Info("Starting realtime request watcher...")

	// Build the change feed for the configured transport
	var changeFeed feed.Feed
	var closeFeed func()
	var sink notify.Sink = notify.NewLogSink(logger)
	var closeSink func()

	switch cfg.Feed.Driver {
	case config.DriverNATS:
		natsFeed, err := natsfeed.New(cfg.NATS.URL, cfg.NATS.SubjectPrefix,
			cfg.NATS.MaxReconnect, cfg.NATS.ReconnectWait, logger)
		if err != nil {
			logger.Fatalf("Failed to create NATS feed: %v", err)
		}
		changeFeed = natsFeed
		closeFeed = natsFeed.Close
		if cfg.NATS.AlertSubject != "" {
			sink = notify.NewNATSSinkWithConn(natsFeed.Conn(), cfg.NATS.AlertSubject, logger)
		}

	case config.DriverBinlog:
		binlogFeed, err := binlogfeed.New(binlogfeed.Config{
			Host:         cfg.MySQL.Host,
			Port:         cfg.MySQL.Port,
			User:         cfg.MySQL.User,
			Password:     cfg.MySQL.Password,
			ServerID:     cfg.MySQL.ServerID,
			Flavor:       cfg.MySQL.Flavor,
			Database:     cfg.MySQL.Database,
			PositionFile: cfg.MySQL.PositionFile,
		}, logger)
		if err != nil {
			logger.Fatalf("Failed to create binlog feed: %v", err)
		}
		changeFeed = binlogFeed
		closeFeed = binlogFeed.Close
		if cfg.NATS.AlertSubject != "" && cfg.NATS.URL != "" {
			natsSink, err := notify.NewNATSSink(cfg.NATS.URL, cfg.NATS.AlertSubject,
				cfg.NATS.MaxReconnect, cfg.NATS.ReconnectWait, logger)
			if err != nil {
				logger.Fatalf("Failed to create alert sink: %v", err)
			}
			sink = natsSink
			closeSink = natsSink.Close
		}
	}

	// Optional JavaScript event filter
	if cfg.Feed.FilterScript != "" {
		filter, err := feed.NewFilter(cfg.Feed.FilterScript, logger)
		if err != nil {
			logger.Fatalf("Failed to load filter script: %v", err)
		}
		changeFeed = feed.WithFilter(changeFeed, filter)
	}

	table := cfg.Realtime.Table
	classifier := realtime.NewRequestClassifier(table, cfg.Realtime.DedupCap, clock.WallClock, logger)
	dispatcher := notify.NewDispatcher(sink, nil, cfg.Notifications.Cooldown, clock.WallClock, logger)
	refresh := func() {
		logger.Infof("Domain cache refresh requested for %s", table)
	}

	manager := realtime.NewManager(table, changeFeed, classifier, dispatcher,
		refresh, cfg.Realtime.RefreshDebounce, clock.WallClock, logger)

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := manager.Subscribe(ctx); err != nil {
		logger.Fatalf("Failed to subscribe: %v", err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	logger.Infof("Received signal: %v, shutting down...", sig)

	if err := manager.Unsubscribe(); err != nil {
		logger.Errorf("Error unsubscribing: %v", err)
	}
	if closeFeed != nil {
		closeFeed()
	}
	if closeSink != nil {
		closeSink()
	}

	logger.Info("Realtime request watcher stopped")
}
