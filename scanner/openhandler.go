package scanner

import (
	"context"

	"github.com/lightningnetwork/lnchannels/chainclient"
	"github.com/lightningnetwork/lnchannels/graph"
)

// handleOpen implements the open handler (C4, spec.md §4.4): given the
// opening transaction and the output that anchors the channel, compute the
// funding fee, union the funding-input txids into txs.funding, and persist
// the open facts.
func (s *Scanner) handleOpen(ctx context.Context, block *chainclient.Block, tx chainclient.Tx, vout chainclient.Vout, ch *graph.Channel) error {
	fee, err := s.fundingFee(ctx, tx)
	if err != nil {
		return err
	}

	var address string
	if len(vout.ScriptPubKey.Addresses) > 0 {
		address = vout.ScriptPubKey.Addresses[0]
	}

	open := graph.OpenFacts{
		Block:   uint32(block.Height),
		Txid:    tx.Txid,
		Address: address,
		Time:    block.Time,
		Fee:     fee,
	}

	fundingTxs := make([]string, 0, len(tx.Vin))
	for _, vin := range tx.Vin {
		if !vin.IsCoinbase() {
			fundingTxs = append(fundingTxs, vin.Txid)
		}
	}

	return s.Store.RecordOpen(ctx, ch.SCID, ch.Nodes, ch.Satoshis, open, fundingTxs)
}

// fundingFee computes fee = sum(input values) - sum(output values),
// looking up each input's value via a second RPC call.
func (s *Scanner) fundingFee(ctx context.Context, tx chainclient.Tx) (int64, error) {
	var inputSum int64
	for _, vin := range tx.Vin {
		if vin.IsCoinbase() {
			continue
		}
		inTx, err := s.Chain.GetTx(ctx, vin.Txid)
		if err != nil {
			return 0, err
		}
		if int(vin.Vout) < len(inTx.Vout) {
			inputSum += chainclient.AmountSats(inTx.Vout[vin.Vout].Value)
		}
	}

	var outputSum int64
	for _, out := range tx.Vout {
		outputSum += chainclient.AmountSats(out.Value)
	}

	return inputSum - outputSum, nil
}
