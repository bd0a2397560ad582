package closure

import (
	"context"
	"testing"

	"github.com/lightningnetwork/lnchannels/chainclient"
	"github.com/lightningnetwork/lnchannels/graph"
	"github.com/stretchr/testify/require"
)

// fakeChain is a scripted chainclient.Client for classifier tests: every
// lookup is keyed by txid/script so a test can wire up exactly the chain
// state a scenario needs without touching the network.
type fakeChain struct {
	outspends map[string][]chainclient.Outspend
	txs       map[string]*chainclient.Tx
	scripts   map[string]string // witness hex -> decoded asm
	tip       int64
}

func newFakeChain() *fakeChain {
	return &fakeChain{
		outspends: make(map[string][]chainclient.Outspend),
		txs:       make(map[string]*chainclient.Tx),
		scripts:   make(map[string]string),
		tip:       800000,
	}
}

func (f *fakeChain) GetBlockAt(ctx context.Context, height int64) (*chainclient.Block, error) {
	panic("unused in classifier tests")
}

func (f *fakeChain) GetTx(ctx context.Context, txid string) (*chainclient.Tx, error) {
	tx, ok := f.txs[txid]
	if !ok {
		return nil, errUnknownTxid(txid)
	}
	return tx, nil
}

func (f *fakeChain) DecodeScript(ctx context.Context, hexScript string) (*chainclient.DecodedScript, error) {
	return &chainclient.DecodedScript{Asm: f.scripts[hexScript]}, nil
}

func (f *fakeChain) GetOutspends(ctx context.Context, txid string) ([]chainclient.Outspend, error) {
	return f.outspends[txid], nil
}

func (f *fakeChain) Tip(ctx context.Context) (int64, error) {
	return f.tip, nil
}

type errUnknownTxid string

func (e errUnknownTxid) Error() string { return "unknown txid: " + string(e) }

// closeTx builds a minimal closing transaction with n outputs, each
// worth 1 BTC, funded by a single non-coinbase input.
func closeTx(txid string, n int) *chainclient.Tx {
	vouts := make([]chainclient.Vout, n)
	for i := range vouts {
		vouts[i] = chainclient.Vout{N: uint32(i), Value: 1.0}
	}
	return &chainclient.Tx{
		Txid:      txid,
		Vin:       []chainclient.Vin{{Txid: "funding-in", Vout: 0}},
		Vout:      vouts,
		BlockTime: 1700000000,
	}
}

func TestClassify_MutualClose(t *testing.T) {
	chain := newFakeChain()
	chain.txs["funding-in"] = &chainclient.Tx{Txid: "funding-in", Vout: []chainclient.Vout{{N: 0, Value: 2.0}}}

	tx := closeTx("close1", 2)
	chain.outspends["close1"] = []chainclient.Outspend{
		{Spent: false},
		{Spent: false},
	}

	c := New(chain, chain.tip)
	res, err := c.Classify(context.Background(), 700000, 1700000000, tx)
	require.NoError(t, err)

	require.Equal(t, graph.CloseMutual, res.Close.Type)
	require.Equal(t, int64(1e8), res.Close.Balance.A)
	require.Equal(t, int64(1e8), res.Close.Balance.B)
	require.Equal(t, graph.CloserNone, res.Closer)
	require.Empty(t, res.Close.HTLCs)
}

func TestClassify_Unused(t *testing.T) {
	chain := newFakeChain()
	chain.txs["funding-in"] = &chainclient.Tx{Txid: "funding-in", Vout: []chainclient.Vout{{N: 0, Value: 1.0}}}

	tx := closeTx("close-unused", 1)
	chain.outspends["close-unused"] = []chainclient.Outspend{{Spent: false}}

	c := New(chain, chain.tip)
	res, err := c.Classify(context.Background(), 700000, 1700000000, tx)
	require.NoError(t, err)
	require.Equal(t, graph.CloseUnused, res.Close.Type)
}

func TestClassify_ForceCloseWithDelayedAndHTLC(t *testing.T) {
	chain := newFakeChain()
	chain.txs["funding-in"] = &chainclient.Tx{Txid: "funding-in", Vout: []chainclient.Vout{{N: 0, Value: 2.0}}}

	tx := closeTx("close-force", 2)
	// Output 0: to-local delayed output, swept via CSV without penalty
	// (witness[-2] != "01").
	chain.outspends["close-force"] = []chainclient.Outspend{
		{Spent: true, Txid: "sweep-delayed", Vin: 0},
		{Spent: true, Txid: "sweep-htlc", Vin: 0},
	}
	chain.txs["sweep-delayed"] = &chainclient.Tx{
		Txid: "sweep-delayed",
		Vin:  []chainclient.Vin{{Txid: "close-force", Vout: 0, TxInWitness: []string{"sig", "00", "csv-script-hex"}}},
	}
	chain.scripts["csv-script-hex"] = "OP_IF OP_CHECKSEQUENCEVERIFY OP_ELSE OP_ENDIF"
	chain.outspends["sweep-delayed"] = nil

	// Output 1: HTLC output offered by the closer (OP_NOTIF branch),
	// fulfilled (no covenant on the follow-up spend).
	chain.txs["sweep-htlc"] = &chainclient.Tx{
		Txid: "sweep-htlc",
		Vin:  []chainclient.Vin{{Txid: "close-force", Vout: 1, TxInWitness: []string{"sig", "preimage", "htlc-script-hex"}}},
	}
	chain.scripts["htlc-script-hex"] = "OP_HASH160 OP_NOTIF OP_ELSE OP_ENDIF"
	chain.outspends["sweep-htlc"] = []chainclient.Outspend{{Spent: false}}

	c := New(chain, chain.tip)
	res, err := c.Classify(context.Background(), 700000, 1700000000, tx)
	require.NoError(t, err)

	require.Equal(t, graph.CloseForce, res.Close.Type)
	require.Equal(t, graph.CloserA, res.Closer)
	require.Equal(t, graph.CloserNone, res.Taken)
	require.Len(t, res.Close.HTLCs, 1)
	require.Equal(t, graph.CloserA, res.Close.HTLCs[0].Offerer)
	require.True(t, res.Close.HTLCs[0].Fulfilled)
}

func TestClassify_PenaltyClose(t *testing.T) {
	chain := newFakeChain()
	chain.txs["funding-in"] = &chainclient.Tx{Txid: "funding-in", Vout: []chainclient.Vout{{N: 0, Value: 2.0}}}

	tx := closeTx("close-penalty", 2)
	chain.outspends["close-penalty"] = []chainclient.Outspend{
		{Spent: true, Txid: "justice-tx", Vin: 0},
		{Spent: false},
	}
	chain.txs["justice-tx"] = &chainclient.Tx{
		Txid: "justice-tx",
		Vin:  []chainclient.Vin{{Txid: "close-penalty", Vout: 0, TxInWitness: []string{"sig", "01", "revocation-script-hex"}}},
	}
	chain.scripts["revocation-script-hex"] = "OP_IF OP_CHECKSEQUENCEVERIFY OP_ELSE OP_ENDIF"
	chain.outspends["justice-tx"] = nil

	c := New(chain, chain.tip)
	res, err := c.Classify(context.Background(), 700000, 1700000000, tx)
	require.NoError(t, err)

	require.Equal(t, graph.ClosePenalty, res.Close.Type)
	require.Equal(t, graph.CloserA, res.Taken)
	require.Equal(t, graph.CloserNone, res.Closer)
	require.Empty(t, res.Close.HTLCs)
}
