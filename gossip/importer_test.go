package gossip

import (
	"context"
	"testing"
	"time"

	"github.com/lightningnetwork/lnchannels/graph"
	"github.com/stretchr/testify/require"
)

// Two arbitrary, valid compressed secp256k1 public keys (the curve
// generator G and 2G), used as stand-ins for node pubkeys in tests that
// don't care whose key it is, only that graph.ParsePubkey accepts it.
const (
	pubkeyA = "0279be667ef9dcbbac55a06295ce870b07029bfcdb2dce28d959f2815b16f81798"
	pubkeyB = "02c6047f9441ed7d6d3045406e95c07cd85c778e4b8cef3ca7abac09b95c709ee5"
)

type fakeStore struct {
	channels    map[graph.ShortChannelID]bool // scid -> has open
	newlyCreated map[graph.ShortChannelID]bool
	policies    map[string]*graph.Policy
	aliases     map[string][2]string
	features    map[string]string
	triggered   []graph.ShortChannelID
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		channels:     make(map[graph.ShortChannelID]bool),
		newlyCreated: make(map[graph.ShortChannelID]bool),
		policies:     make(map[string]*graph.Policy),
		aliases:      make(map[string][2]string),
		features:     make(map[string]string),
	}
}

func (f *fakeStore) UpsertChannel(ctx context.Context, scid graph.ShortChannelID, nodes [2]string, satoshis int64, lastSeen time.Time) (bool, error) {
	_, existed := f.channels[scid]
	if !existed {
		f.channels[scid] = false
		f.newlyCreated[scid] = true
	}
	return !existed, nil
}

func (f *fakeStore) ChannelHasOpen(ctx context.Context, scid graph.ShortChannelID) (bool, error) {
	return f.channels[scid], nil
}

func policyKey(scid graph.ShortChannelID, direction int) string {
	return scid.String() + "/" + string(rune('0'+direction))
}

func (f *fakeStore) LatestPolicy(ctx context.Context, scid graph.ShortChannelID, direction int) (*graph.Policy, error) {
	return f.policies[policyKey(scid, direction)], nil
}

func (f *fakeStore) InsertPolicy(ctx context.Context, p graph.Policy) error {
	f.policies[policyKey(p.SCID, p.Direction)] = &p
	return nil
}

func (f *fakeStore) LatestAlias(ctx context.Context, pubkey string) (string, string, error) {
	a := f.aliases[pubkey]
	return a[0], a[1], nil
}

func (f *fakeStore) InsertAliasRecord(ctx context.Context, r graph.AliasRecord) error {
	f.aliases[r.Pubkey] = [2]string{r.Alias, r.Color}
	return nil
}

func (f *fakeStore) LatestFeatures(ctx context.Context, pubkey string) (string, error) {
	return f.features[pubkey], nil
}

func (f *fakeStore) InsertFeatureRecord(ctx context.Context, r graph.FeatureRecord) error {
	f.features[r.Pubkey] = r.Features
	return nil
}

func TestImportChannels_SkipsPrivateAndTriggersOpenForNew(t *testing.T) {
	store := newFakeStore()
	var triggered []graph.ShortChannelID
	imp := NewImporter(store, func(ctx context.Context, scid graph.ShortChannelID) {
		triggered = append(triggered, scid)
	})

	err := imp.ImportChannels(context.Background(), []ChannelListing{
		{ShortChannelID: "700000x1x0", Source: pubkeyB, Destination: pubkeyA, Public: true, Satoshis: 100000},
		{ShortChannelID: "700000x2x0", Source: pubkeyA, Destination: pubkeyB, Public: false, Satoshis: 50000},
	})
	require.NoError(t, err)

	require.Len(t, triggered, 1)
	require.Equal(t, "700000x1x0", triggered[0].String())
}

func TestImportChannels_AppendsPolicyOnlyOnChange(t *testing.T) {
	store := newFakeStore()
	imp := NewImporter(store, nil)

	listing := ChannelListing{
		ShortChannelID: "700000x1x0", Source: pubkeyA, Destination: pubkeyB, Public: true,
		Satoshis: 100000, BaseFeeMillisatoshi: 1000, FeePerMillionth: 1, Delay: 144, LastUpdate: 1,
	}

	require.NoError(t, imp.ImportChannels(context.Background(), []ChannelListing{listing}))
	require.Len(t, store.policies, 1)

	// Same terms, different timestamp: no new row.
	listing.LastUpdate = 2
	require.NoError(t, imp.ImportChannels(context.Background(), []ChannelListing{listing}))
	require.Len(t, store.policies, 1)

	// Changed terms: a new row is recorded.
	listing.FeePerMillionth = 2
	require.NoError(t, imp.ImportChannels(context.Background(), []ChannelListing{listing}))
	scid, _ := graph.ParseShortChannelID(listing.ShortChannelID)
	_, direction := graph.SortNodes(pubkeyA, pubkeyB)
	p, err := store.LatestPolicy(context.Background(), scid, direction)
	require.NoError(t, err)
	require.Equal(t, int64(2), p.FeePerMillionth)
}

func TestImportNodes_RecordsOnlyChanges(t *testing.T) {
	store := newFakeStore()
	imp := NewImporter(store, nil)

	err := imp.ImportNodes(context.Background(), []NodeListing{
		{NodeID: pubkeyA, Alias: "Alice", Color: "#fff", Features: "0200"},
	})
	require.NoError(t, err)

	alias, color, err := store.LatestAlias(context.Background(), pubkeyA)
	require.NoError(t, err)
	require.Equal(t, "Alice", alias)
	require.Equal(t, "#fff", color)

	features, err := store.LatestFeatures(context.Background(), pubkeyA)
	require.NoError(t, err)
	require.Equal(t, "0200", features)
}
