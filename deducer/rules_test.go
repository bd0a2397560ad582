package deducer

import (
	"testing"

	"github.com/lightningnetwork/lnchannels/graph"
	"github.com/stretchr/testify/require"
)

func txSetWith(a, b, funding []string) graph.TxSet {
	s := graph.NewTxSet()
	graph.Union(s.A, a...)
	graph.Union(s.B, b...)
	graph.Union(s.Funding, funding...)
	return s
}

func TestCandidateUpdates_FundingMatch(t *testing.T) {
	// x and y share node "alice". x's funder is deduced to be "alice" (idx
	// 0 in x.Nodes), established via x's funding tx matching one of y's txs.
	x := &graph.Channel{
		Nodes: [2]string{"alice", "bob"},
		Close: graph.CloseFacts{Block: 700000, Type: graph.CloseMutual},
		Txs:   txSetWith(nil, nil, []string{"shared-tx"}),
	}
	y := &graph.Channel{
		Nodes: [2]string{"alice", "carol"},
		Txs:   txSetWith([]string{"shared-tx"}, nil, nil),
	}

	updates := candidateUpdates(x, y)

	require.Contains(t, updates, Update{SCID: x.SCID, Label: LabelFunder, Value: graph.NewSide(0)})
}

func TestCandidateUpdates_PenaltyAssignsBothSides(t *testing.T) {
	x := &graph.Channel{
		Nodes: [2]string{"alice", "bob"},
		Close: graph.CloseFacts{Block: 700000, Type: graph.ClosePenalty},
		Txs:   txSetWith([]string{"justice-tx"}, nil, nil),
	}
	y := &graph.Channel{
		Nodes: [2]string{"bob", "carol"},
		Txs:   txSetWith(nil, []string{"justice-tx"}, nil),
	}

	updates := candidateUpdates(x, y)

	require.Contains(t, updates, Update{SCID: x.SCID, Label: LabelA, Value: graph.NewSide(1)})
	require.Contains(t, updates, Update{SCID: x.SCID, Label: LabelB, Value: graph.NewSide(1)})
}

func TestCandidateUpdates_ImplicationClosure(t *testing.T) {
	x := &graph.Channel{
		Nodes: [2]string{"alice", "bob"},
		Close: graph.CloseFacts{Block: 700000, Type: graph.CloseMutual},
		Txs:   txSetWith([]string{"a-follow-up"}, nil, nil),
	}
	y := &graph.Channel{
		Nodes: [2]string{"bob", "carol"},
		Txs:   txSetWith(nil, nil, []string{"a-follow-up"}),
	}

	updates := candidateUpdates(x, y)

	// a = idx(bob) = 1, implies b = other(1) = 0.
	require.Contains(t, updates, Update{SCID: x.SCID, Label: LabelA, Value: graph.NewSide(1)})
	require.Contains(t, updates, Update{SCID: x.SCID, Label: LabelB, Value: graph.NewSide(0)})
}

func TestCandidateUpdates_NoSharedNode(t *testing.T) {
	x := &graph.Channel{Nodes: [2]string{"alice", "bob"}}
	y := &graph.Channel{Nodes: [2]string{"carol", "dave"}}

	require.Nil(t, candidateUpdates(x, y))
}

func TestDedupe(t *testing.T) {
	scid := graph.ShortChannelID{BlockHeight: 1}
	in := []Update{
		{SCID: scid, Label: LabelA, Value: graph.NewSide(0)},
		{SCID: scid, Label: LabelA, Value: graph.NewSide(0)},
		{SCID: scid, Label: LabelB, Value: graph.NewSide(1)},
	}
	require.Len(t, dedupe(in), 2)
}
