// Package chainclient wraps the two external chain-data sources the
// pipeline consumes: a Bitcoin full-node JSON-RPC endpoint, and an Esplora
// HTTP API for output-spend lookups. It normalizes both behind a single
// Client interface so the scanner and classifier never touch the wire
// formats of either backend directly.
package chainclient

import (
	"context"

	"github.com/btcsuite/btcd/btcutil"
)

// ScriptPubKey is the subset of a vout's scriptPubKey the pipeline needs.
type ScriptPubKey struct {
	Type      string
	Addresses []string
}

// Vout is a transaction output.
type Vout struct {
	N            uint32
	Value        float64 // BTC, as returned by the full node; multiply by 1e8
	ScriptPubKey ScriptPubKey
}

// Vin is a transaction input.
type Vin struct {
	Txid        string
	Vout        uint32
	TxInWitness []string
	// Coinbase is non-empty for a coinbase input, which carries no Txid.
	Coinbase string
}

// IsCoinbase reports whether this input is a coinbase input.
func (v Vin) IsCoinbase() bool {
	return v.Coinbase != ""
}

// Tx is a decoded transaction, full verbosity (vin/vout/witness included).
type Tx struct {
	Txid      string
	Vin       []Vin
	Vout      []Vout
	BlockTime int64
}

// Block is a full-transaction-verbosity block.
type Block struct {
	Height int64
	Hash   string
	Time   int64
	Tx     []Tx
}

// DecodedScript is the result of decoding a witness/redeem script.
type DecodedScript struct {
	Asm string
}

// OutspendStatus describes the confirmation status of a spending
// transaction, as reported by Esplora.
type OutspendStatus struct {
	Confirmed   bool
	BlockHeight int64
	BlockTime   int64
}

// Outspend describes whether, and how, one output of a transaction has
// been spent.
type Outspend struct {
	Spent  bool
	Txid   string
	Vin    uint32
	Status OutspendStatus
}

// Client is the chain-data surface the scanner and classifier consume. It
// is deliberately small: every method maps to the RPC/HTTP call (or, for
// GetBlockAt, the getblockhash + getblock pair) named in its
// implementation's doc, with mirror failover handled internally.
type Client interface {
	// GetBlockAt returns the full-verbosity block at the given height.
	GetBlockAt(ctx context.Context, height int64) (*Block, error)

	// GetTx returns a full-verbosity transaction by txid.
	GetTx(ctx context.Context, txid string) (*Tx, error)

	// DecodeScript decodes a hex-encoded script into its ASM form.
	DecodeScript(ctx context.Context, hexScript string) (*DecodedScript, error)

	// GetOutspends returns, indexed by output index, whether and how
	// each output of txid has been spent.
	GetOutspends(ctx context.Context, txid string) ([]Outspend, error)

	// Tip returns the current best block height. Per the design notes,
	// callers should capture this once at the start of a run and reuse
	// it, rather than re-reading mid-scan.
	Tip(ctx context.Context) (int64, error)
}

// AmountSats converts a BTC decimal value (as returned by the full node)
// into an integer satoshi amount via btcutil.Amount, which rounds to the
// nearest satoshi rather than truncating.
func AmountSats(btc float64) int64 {
	amt, err := btcutil.NewAmount(btc)
	if err != nil {
		log.Warnf("amount %v out of range, clamping: %v", btc, err)
		if btc < 0 {
			return -(1 << 62)
		}
		return 1 << 62
	}
	return int64(amt)
}
