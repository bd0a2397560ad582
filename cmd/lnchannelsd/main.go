// Command lnchannelsd runs the ingestion and chain-analysis pipeline:
// periodically importing gossip-advertised channels and nodes, scanning
// the chain for opens and closes, running the chain-analysis deducer,
// and materializing summary aggregates.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lightningnetwork/lnchannels"
	"github.com/lightningnetwork/lnchannels/chainclient"
	"github.com/lightningnetwork/lnchannels/closure"
	"github.com/lightningnetwork/lnchannels/deducer"
	"github.com/lightningnetwork/lnchannels/gossip"
	"github.com/lightningnetwork/lnchannels/scanner"
	"github.com/lightningnetwork/lnchannels/store"
)

// unknownCloseReclassifyLimit bounds how many stuck "unknown" closes get
// revisited per cycle, so a large backlog can't make a single cycle run
// unboundedly long.
const unknownCloseReclassifyLimit = 500

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := lnchannels.LoadConfig()
	if err != nil {
		return err
	}

	if err := lnchannels.InitLogging(cfg); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	if err := store.Migrate(cfg.Postgres); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	db, err := store.Open(ctx, cfg.Postgres)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer db.Close()

	rpcClient, err := chainclient.NewRPCClient(cfg.RPC)
	if err != nil {
		return fmt.Errorf("connecting to chain RPC: %w", err)
	}
	esploraClient, err := chainclient.NewEsploraClient(cfg.Esplora)
	if err != nil {
		return fmt.Errorf("building esplora client: %w", err)
	}
	chain := chainclient.New(rpcClient, esploraClient)

	sc := scanner.New(chain, db, cfg.CursorFile)

	gossipClient := gossip.NewClient(gossip.Config{URL: cfg.GossipURL, Token: cfg.GossipToken})
	importer := gossip.NewImporter(db, nil)

	interval, err := time.ParseDuration(cfg.ScanInterval)
	if err != nil {
		return fmt.Errorf("parsing scaninterval: %w", err)
	}

	dedupeCfg := deducer.Config{Workers: cfg.DeduceWorkers, SampleProbability: cfg.SampleRate}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := runCycle(ctx, gossipClient, importer, sc, chain, db, dedupeCfg); err != nil {
			lnchannels.Log().Errorf("cycle failed: %v", err)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// runCycle performs one full pass: gossip import, block scan,
// reclassification of "unknown" closes, chain-analysis deduction, and
// aggregate materialization, in that order so the deducer always works
// from the freshest possible close facts.
func runCycle(ctx context.Context, gc *gossip.Client, importer *gossip.Importer, sc *scanner.Scanner, chain chainclient.Client, db *store.Store, dedupeCfg deducer.Config) error {
	channels, err := gc.ListChannels(ctx)
	if err != nil {
		return fmt.Errorf("listing channels: %w", err)
	}
	if err := importer.ImportChannels(ctx, channels); err != nil {
		return fmt.Errorf("importing channels: %w", err)
	}

	nodes, err := gc.ListNodes(ctx)
	if err != nil {
		return fmt.Errorf("listing nodes: %w", err)
	}
	if err := importer.ImportNodes(ctx, nodes); err != nil {
		return fmt.Errorf("importing nodes: %w", err)
	}

	if err := sc.Run(ctx); err != nil {
		return fmt.Errorf("scanning: %w", err)
	}

	tip, err := chain.Tip(ctx)
	if err != nil {
		return fmt.Errorf("fetching tip for reclassification: %w", err)
	}
	if _, err := closure.New(chain, tip).Reclassify(ctx, db, unknownCloseReclassifyLimit); err != nil {
		return fmt.Errorf("reclassifying unknown closes: %w", err)
	}

	if err := deducer.Run(ctx, db, dedupeCfg); err != nil {
		return fmt.Errorf("deducing: %w", err)
	}

	if err := db.Materialize(ctx); err != nil {
		return fmt.Errorf("materializing: %w", err)
	}

	return nil
}
