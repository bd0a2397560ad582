// Package deducer implements the chain-analysis deducer (C6): an
// iterative inference engine that uses transactions shared between
// channels (funding inputs, balance outputs, HTLC follow-ups) to assign
// the anonymous a/b/funder/closer labels to real node identities.
package deducer

import (
	"context"
	"math/rand"

	"github.com/lightningnetwork/lnchannels/graph"
	"golang.org/x/sync/errgroup"
)

// Store is the narrow persistence surface the deducer needs. Each worker
// goroutine is expected to use its own pooled connection internally; the
// interface itself is share-nothing from the caller's point of view.
type Store interface {
	// CandidateSCIDs returns every channel with a known close block and
	// at least one of a/funder still unset.
	CandidateSCIDs(ctx context.Context) ([]graph.ShortChannelID, error)

	// GetChannel fetches the full channel row.
	GetChannel(ctx context.Context, scid graph.ShortChannelID) (*graph.Channel, error)

	// ChannelsSharingNode returns every channel (other than scid itself)
	// that shares at least one node pubkey with it.
	ChannelsSharingNode(ctx context.Context, scid graph.ShortChannelID) ([]*graph.Channel, error)

	// ApplyUpdate writes value into the named label field of scid, but
	// only if that field is currently unset -- the deducer's
	// conservative monotone-refinement write rule.
	ApplyUpdate(ctx context.Context, scid graph.ShortChannelID, label Label, value graph.Side) error
}

// Label names which channel field an Update targets.
type Label string

const (
	LabelA      Label = "a"
	LabelB      Label = "b"
	LabelFunder Label = "funder"
)

// Update is one candidate write the rule set in §4.6 produces: channel
// scid's label field should become value, if it isn't set already.
type Update struct {
	SCID  graph.ShortChannelID
	Label Label
	Value graph.Side
}

// Config controls the deducer's fan-out and sampling.
type Config struct {
	// Workers is the fixed worker fan-out N; candidate scids are
	// partitioned by block-height mod N.
	Workers int
	// SampleProbability, if > 0 and < 1, makes each run process only a
	// random subset of the candidate set, trading full coverage in one
	// run for lower operational load; the full set is covered over many
	// runs.
	SampleProbability float64
}

// Run executes one deduction pass: partitions the candidate channel set
// across Config.Workers goroutines by block mod N, each independently
// computing and applying updates for its shard. Workers share no memory;
// all coordination is through Store.
func Run(ctx context.Context, store Store, cfg Config) error {
	candidates, err := store.CandidateSCIDs(ctx)
	if err != nil {
		return err
	}

	if cfg.SampleProbability > 0 && cfg.SampleProbability < 1 {
		candidates = sample(candidates, cfg.SampleProbability)
	}

	n := cfg.Workers
	if n <= 0 {
		n = 5
	}

	shards := make([][]graph.ShortChannelID, n)
	for _, scid := range candidates {
		shard := int(scid.BlockHeight) % n
		shards[shard] = append(shards[shard], scid)
	}

	g, gctx := errgroup.WithContext(ctx)
	for i, shard := range shards {
		shard := shard
		workerID := i
		g.Go(func() error {
			return runWorker(gctx, store, workerID, shard)
		})
	}
	return g.Wait()
}

func runWorker(ctx context.Context, store Store, workerID int, shard []graph.ShortChannelID) error {
	for _, scid := range shard {
		if err := runForChannel(ctx, store, scid); err != nil {
			log.Errorf("worker %d: deducing %v: %v", workerID, scid, err)
			// A single channel's failure never poisons the shard;
			// continue with the rest per the pipeline's
			// localized-failure policy.
			continue
		}
	}
	return nil
}

// runForChannel computes and applies every accepted update for one
// candidate channel.
func runForChannel(ctx context.Context, store Store, scid graph.ShortChannelID) error {
	x, err := store.GetChannel(ctx, scid)
	if err != nil {
		return err
	}
	if x == nil || !x.Close.IsSet() {
		return nil
	}

	peers, err := store.ChannelsSharingNode(ctx, scid)
	if err != nil {
		return err
	}

	var updates []Update
	for _, y := range peers {
		if y.Nodes == x.Nodes {
			continue
		}
		updates = append(updates, candidateUpdates(x, y)...)
	}

	for _, u := range dedupe(updates) {
		if err := store.ApplyUpdate(ctx, u.SCID, u.Label, u.Value); err != nil {
			log.Warnf("applying update %v.%s=%v: %v", u.SCID, u.Label, u.Value, err)
		}
	}

	return nil
}

// sample returns a random probability-p subset of scids.
func sample(scids []graph.ShortChannelID, p float64) []graph.ShortChannelID {
	out := make([]graph.ShortChannelID, 0, len(scids))
	for _, s := range scids {
		if rand.Float64() < p {
			out = append(out, s)
		}
	}
	return out
}

// dedupe removes duplicate (scid, label, value) updates, preserving first
// occurrence order.
func dedupe(updates []Update) []Update {
	seen := make(map[Update]struct{}, len(updates))
	out := make([]Update, 0, len(updates))
	for _, u := range updates {
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	return out
}
