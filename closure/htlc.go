package closure

import (
	"context"
	"strings"

	"github.com/lightningnetwork/lnchannels/graph"
)

// resolveHTLCs determines, for each buffered HTLC output, which side
// offered it and whether it was fulfilled, per spec.md §4.5's fulfillment
// table. Only called once the closer side is known.
func (c *Classifier) resolveHTLCs(ctx context.Context, buf []pendingHTLC, closer graph.CloserLabel, txs *graph.TxSet) ([]graph.HTLC, error) {
	noncloser := closer.Other()

	htlcs := make([]graph.HTLC, 0, len(buf))
	for _, h := range buf {
		hasCovenant, err := c.resolveCovenant(ctx, h, closer, noncloser, txs)
		if err != nil {
			return nil, err
		}

		offeredByCloser := strings.Contains(h.script, "OP_NOTIF")

		htlcs = append(htlcs, graph.HTLC{
			Amount:    h.amount,
			Offerer:   offerer(offeredByCloser, closer, noncloser),
			Fulfilled: fulfilled(offeredByCloser, hasCovenant),
		})
	}
	return htlcs, nil
}

// resolveCovenant inspects the first-level spend of an HTLC output to
// determine whether its follow-up was swept through a covenant
// (htlc-success/htlc-timeout with a CSV delay), attributing follow-up
// spends to the closer or noncloser side's tx set as it goes.
func (c *Classifier) resolveCovenant(ctx context.Context, h pendingHTLC, closer, noncloser graph.CloserLabel, txs *graph.TxSet) (hasCovenant bool, err error) {
	spends2, err := c.Chain.GetOutspends(ctx, h.txid)
	if err != nil {
		return false, err
	}

	if int(h.vout) < len(spends2) {
		spend2 := spends2[h.vout]
		if spend2.Spent && spend2.Status.Confirmed {
			f2, err := c.Chain.GetTx(ctx, spend2.Txid)
			if err != nil {
				return false, err
			}
			witness2 := witnessFor(f2, spend2.Vin)
			if len(witness2) > 0 {
				decoded, err := c.Chain.DecodeScript(ctx, witness2[len(witness2)-1])
				if err != nil {
					return false, err
				}
				if strings.Contains(decoded.Asm, "OP_CHECKSEQUENCEVERIFY") {
					followups, err := c.Chain.GetOutspends(ctx, f2.Txid)
					if err != nil {
						return false, err
					}
					for _, fu := range followups {
						if fu.Spent {
							graph.Union(sideSet(txs, closer), fu.Txid)
						}
					}
					return true, nil
				}
			}
		}
	}

	// No covenant: either the HTLC output's follow-up is unspent or
	// unconfirmed, or its spend script has no CSV delay. Attribute every
	// spent follow-up of the HTLC output itself to the noncloser.
	for _, s := range spends2 {
		if s.Spent {
			graph.Union(sideSet(txs, noncloser), s.Txid)
		}
	}
	return false, nil
}

// offerer implements the fulfillment table's offerer column: an HTLC
// offered by the closer (its script branches on OP_NOTIF) belongs to the
// closer; otherwise it was offered by the noncloser.
func offerer(offeredByCloser bool, closer, noncloser graph.CloserLabel) graph.CloserLabel {
	if offeredByCloser {
		return closer
	}
	return noncloser
}

// fulfilled implements the fulfillment table's fulfilled column, which
// flips with hasCovenant depending on which side offered the HTLC.
func fulfilled(offeredByCloser, hasCovenant bool) bool {
	return offeredByCloser != hasCovenant
}
