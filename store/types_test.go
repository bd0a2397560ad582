package store

import (
	"testing"

	"github.com/lightningnetwork/lnchannels/graph"
	"github.com/stretchr/testify/require"
)

func TestOpenJSONRoundTrip(t *testing.T) {
	open := graph.OpenFacts{Block: 700000, Txid: "abc", Address: "bc1q...", Time: 123, Fee: 500}
	require.Equal(t, open, fromOpenJSON(toOpenJSON(open)))

	require.Nil(t, toOpenJSON(graph.OpenFacts{}))
	require.Equal(t, graph.OpenFacts{}, fromOpenJSON(nil))
}

func TestCloseJSONRoundTrip(t *testing.T) {
	close := graph.CloseFacts{
		Block: 700001,
		Txid:  "def",
		Time:  456,
		Fee:   700,
		Type:  graph.CloseForce,
		Balance: graph.Balance{A: 1000, B: 2000},
		HTLCs: []graph.HTLC{
			{Amount: 500, Offerer: graph.CloserA, Fulfilled: true},
		},
	}
	require.Equal(t, close, fromCloseJSON(toCloseJSON(close)))
}

func TestTxsJSONRoundTrip(t *testing.T) {
	txs := graph.NewTxSet()
	graph.Union(txs.A, "tx1", "tx2")
	graph.Union(txs.Funding, "tx3")

	round := fromTxsJSON(toTxsJSON(txs))
	require.ElementsMatch(t, graph.Keys(txs.A), graph.Keys(round.A))
	require.ElementsMatch(t, graph.Keys(txs.B), graph.Keys(round.B))
	require.ElementsMatch(t, graph.Keys(txs.Funding), graph.Keys(round.Funding))
}

func TestNullSmallintRoundTrip(t *testing.T) {
	require.Nil(t, toNullSmallint(graph.Side{}))
	require.Equal(t, graph.Side{}, fromNullSmallint(nil))

	v := toNullSmallint(graph.NewSide(1))
	require.NotNil(t, v)
	require.Equal(t, graph.NewSide(1), fromNullSmallint(v))
}
