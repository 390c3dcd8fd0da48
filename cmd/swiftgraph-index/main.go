// Command swiftgraph-index is a thin wiring example for the indexing
// core: load settings, open the master store, run initialize-or-update,
// then sync the feature-branch overlay if the working tree is on a
// non-default branch. It is not a tool-server transport; that surface
// is out of scope here (§6).
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/swiftgraph/indexer/internal/featureindex"
	"github.com/swiftgraph/indexer/internal/indexer"
	"github.com/swiftgraph/indexer/internal/repository"
	"github.com/swiftgraph/indexer/internal/settingscore"
	"github.com/swiftgraph/indexer/internal/store"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	if err := run(logger); err != nil {
		logger.WithError(err).Error("swiftgraph-index failed")
		os.Exit(1)
	}
}

func run(logger *logrus.Logger) error {
	configPath := os.Getenv("SWIFTGRAPH_CONFIG")
	settings, err := settingscore.Load(configPath)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	ctx := context.Background()

	master, err := store.Open(settings.MasterDBPath, logger)
	if err != nil {
		return fmt.Errorf("open master store: %w", err)
	}
	defer master.Close()

	records := repository.New(master)
	idx := indexer.New(settings, master, logger)

	last, err := records.LatestMasterCommit(ctx)
	if err != nil {
		return fmt.Errorf("read last master commit: %w", err)
	}

	if last == "" {
		head, err := idx.Initialize(ctx)
		if err != nil {
			return fmt.Errorf("initialize: %w", err)
		}
		logger.WithField("head", head).Info("master index initialized")
	} else {
		processed, err := idx.Update(ctx)
		if err != nil {
			return fmt.Errorf("update: %w", err)
		}
		logger.WithField("commits", len(processed)).Info("master index updated")
	}

	feature, err := store.Open(settings.FeatureDBPath, logger)
	if err != nil {
		return fmt.Errorf("open feature store: %w", err)
	}
	defer feature.Close()

	fi := featureindex.New(settings, feature, logger)
	head, err := fi.Sync(ctx)
	if err != nil {
		return fmt.Errorf("feature index sync: %w", err)
	}
	if head != "" {
		logger.WithField("head", head).Info("feature branch overlay synced")
	}
	return nil
}
