package gossip

import (
	"context"
	"time"

	"github.com/lightningnetwork/lnchannels/graph"
)

// Store is the narrow persistence surface the importer needs. It is
// satisfied by *store.Store; kept as an interface here so this package
// only depends on the shapes it actually uses.
type Store interface {
	// UpsertChannel inserts scid if absent (and advances last_seen
	// regardless), reporting whether the row was newly created.
	UpsertChannel(ctx context.Context, scid graph.ShortChannelID, nodes [2]string, satoshis int64, lastSeen time.Time) (isNew bool, err error)

	// ChannelHasOpen reports whether scid's open facts are already set.
	ChannelHasOpen(ctx context.Context, scid graph.ShortChannelID) (bool, error)

	// LatestPolicy returns the most recent policy row for (scid,
	// direction), or nil if none exists yet.
	LatestPolicy(ctx context.Context, scid graph.ShortChannelID, direction int) (*graph.Policy, error)

	// InsertPolicy appends a new policy row.
	InsertPolicy(ctx context.Context, p graph.Policy) error

	// LatestAlias returns the most recently seen (alias, color) pair for
	// pubkey, or ("", "") if none exists yet.
	LatestAlias(ctx context.Context, pubkey string) (alias, color string, err error)

	// InsertAliasRecord appends a new alias/color row.
	InsertAliasRecord(ctx context.Context, r graph.AliasRecord) error

	// LatestFeatures returns the most recently seen feature bitstring
	// for pubkey, or "" if none exists yet.
	LatestFeatures(ctx context.Context, pubkey string) (string, error)

	// InsertFeatureRecord appends a new feature-bitstring row.
	InsertFeatureRecord(ctx context.Context, r graph.FeatureRecord) error
}

// OpenTrigger is invoked for channels discovered by gossip that have no
// on-chain open facts yet, so the scanner's try-later/open-handler path
// can fast-track them. It is optional; Importer.ImportChannels works fine
// with a nil trigger, it simply won't eagerly kick off C4.
type OpenTrigger func(ctx context.Context, scid graph.ShortChannelID)

// Importer drives the gossip-to-store upsert described in spec.md §4.2.
type Importer struct {
	store   Store
	trigger OpenTrigger
	now     func() time.Time
}

// NewImporter builds an Importer. trigger may be nil.
func NewImporter(store Store, trigger OpenTrigger) *Importer {
	return &Importer{store: store, trigger: trigger, now: time.Now}
}

// ImportChannels upserts every publicly advertised channel in listing,
// appending a new fee-policy row whenever the advertised terms changed,
// and triggering the open handler for channels new to the store.
func (imp *Importer) ImportChannels(ctx context.Context, listing []ChannelListing) error {
	now := imp.now()

	for _, ch := range listing {
		if !ch.Public {
			continue
		}

		scid, err := graph.ParseShortChannelID(ch.ShortChannelID)
		if err != nil {
			log.Warnf("skipping channel with unparseable scid %q: %v", ch.ShortChannelID, err)
			continue
		}

		source, err := graph.ParsePubkey(ch.Source)
		if err != nil {
			log.Warnf("skipping channel %v with invalid source pubkey: %v", scid, err)
			continue
		}
		destination, err := graph.ParsePubkey(ch.Destination)
		if err != nil {
			log.Warnf("skipping channel %v with invalid destination pubkey: %v", scid, err)
			continue
		}

		nodes, direction := graph.SortNodes(source, destination)

		isNew, err := imp.store.UpsertChannel(ctx, scid, nodes, ch.Satoshis, now)
		if err != nil {
			return err
		}

		if err := imp.updatePolicy(ctx, scid, direction, ch); err != nil {
			return err
		}

		if isNew {
			hasOpen, err := imp.store.ChannelHasOpen(ctx, scid)
			if err != nil {
				return err
			}
			if !hasOpen && imp.trigger != nil {
				imp.trigger(ctx, scid)
			}
		}
	}

	return nil
}

// updatePolicy implements the fee-policy append rule: insert a new policy
// row only if the advertised terms differ from the latest stored row for
// this (scid, direction).
func (imp *Importer) updatePolicy(ctx context.Context, scid graph.ShortChannelID, direction int, ch ChannelListing) error {
	latest, err := imp.store.LatestPolicy(ctx, scid, direction)
	if err != nil {
		return err
	}

	if latest != nil && latest.SameTerms(ch.BaseFeeMillisatoshi, ch.FeePerMillionth, ch.Delay) {
		return nil
	}

	return imp.store.InsertPolicy(ctx, graph.Policy{
		SCID:                scid,
		Direction:           direction,
		BaseFeeMillisatoshi: ch.BaseFeeMillisatoshi,
		FeePerMillionth:     ch.FeePerMillionth,
		Delay:               ch.Delay,
		UpdateTime:          ch.LastUpdate,
	})
}

// ImportNodes appends alias/color and feature-bitstring rows for every
// node whose advertised values changed since the last-seen row.
func (imp *Importer) ImportNodes(ctx context.Context, listing []NodeListing) error {
	now := imp.now()

	for _, n := range listing {
		pubkey, err := graph.ParsePubkey(n.NodeID)
		if err != nil {
			log.Warnf("skipping node with invalid pubkey %q: %v", n.NodeID, err)
			continue
		}

		if n.Alias != "" {
			alias, color, err := imp.store.LatestAlias(ctx, pubkey)
			if err != nil {
				return err
			}
			if alias != n.Alias || color != n.Color {
				if err := imp.store.InsertAliasRecord(ctx, graph.AliasRecord{
					Pubkey:    pubkey,
					Alias:     n.Alias,
					Color:     n.Color,
					FirstSeen: now.Unix(),
					LastSeen:  now.Unix(),
				}); err != nil {
					return err
				}
			}
		}

		if n.Features != "" {
			features, err := imp.store.LatestFeatures(ctx, pubkey)
			if err != nil {
				return err
			}
			if features != n.Features {
				if err := imp.store.InsertFeatureRecord(ctx, graph.FeatureRecord{
					Pubkey:    pubkey,
					Features:  n.Features,
					FirstSeen: now.Unix(),
					LastSeen:  now.Unix(),
				}); err != nil {
					return err
				}
			}
		}
	}

	return nil
}
