package deducer

import "github.com/lightningnetwork/lnchannels/graph"

// candidateUpdates applies every rule in §4.6 to the ordered pair (x, y):
// x is the channel being deduced, y is a channel sharing one of x's two
// endpoint nodes. Each rule that fires contributes zero or more Updates
// targeting x; none ever targets y, since the fan-out shards by x's block
// height and a write to y could race a different worker deducing y
// directly.
func candidateUpdates(x, y *graph.Channel) []Update {
	common, ok := commonNode(x, y)
	if !ok {
		// Two channels were selected as sharing a node, but by the time
		// we re-derive the intersection here it's empty -- the shared
		// value came from unrelated transactions (e.g. two fundings
		// paying change back to the same third-party address) rather
		// than a true shared endpoint. Skip this pair; other pairs
		// still contribute.
		log.Debugf("%v: empty node intersection with %v, skipping", x.SCID, y.SCID)
		return nil
	}

	idx := graph.IndexOf(x.Nodes, common)
	if !idx.Valid {
		return nil
	}

	otherTxs := unionAll(y.Txs.A, y.Txs.B, y.Txs.Funding)

	var updates []Update

	if x.Close.Type == graph.ClosePenalty {
		// Rule 2: a penalty close's appropriated output, if it matches
		// any of y's transactions, identifies the *taken* side -- a
		// single node occupies both the a and b slots for a penalty
		// close, so both labels are assigned the same index.
		if graph.Intersects(x.Txs.A, otherTxs) || graph.Intersects(x.Txs.B, otherTxs) {
			updates = append(updates,
				Update{SCID: x.SCID, Label: LabelA, Value: idx},
				Update{SCID: x.SCID, Label: LabelB, Value: idx},
			)
		}
	} else {
		// Rule 1: x's a-side or b-side follow-up transactions matching
		// any of y's transactions identifies that side as the shared
		// node.
		if graph.Intersects(x.Txs.A, otherTxs) {
			updates = append(updates, Update{SCID: x.SCID, Label: LabelA, Value: idx})
		}
		if graph.Intersects(x.Txs.B, otherTxs) {
			updates = append(updates, Update{SCID: x.SCID, Label: LabelB, Value: idx})
		}
	}

	// Rule 3: x's funding inputs matching any of y's transactions
	// identifies the funder.
	if graph.Intersects(x.Txs.Funding, otherTxs) {
		updates = append(updates, Update{SCID: x.SCID, Label: LabelFunder, Value: idx})
	}

	// Rule 4: a close with a zero b-side balance (one side took
	// everything without this being a penalty) lets funder and a-side
	// identity stand in for each other directly, with no dependence on
	// y at all -- the funder is assumed to be the side funding their own
	// channel and also the one left holding the balance.
	if x.Close.IsSet() && x.Close.Type != graph.ClosePenalty && x.Close.Balance.B == 0 {
		if x.Funder.Valid {
			updates = append(updates, Update{SCID: x.SCID, Label: LabelA, Value: x.Funder})
		}
		if x.A.Valid {
			updates = append(updates, Update{SCID: x.SCID, Label: LabelFunder, Value: x.A})
		}
	}

	// Rule 5: implication closure. Knowing one side of a non-penalty
	// channel implies the other: a=v implies b=other(v).
	if x.Close.Type != graph.ClosePenalty {
		closed := make([]Update, 0, len(updates)*2)
		for _, u := range updates {
			closed = append(closed, u)
			switch u.Label {
			case LabelA:
				closed = append(closed, Update{SCID: u.SCID, Label: LabelB, Value: u.Value.Other()})
			case LabelB:
				closed = append(closed, Update{SCID: u.SCID, Label: LabelA, Value: u.Value.Other()})
			}
		}
		updates = closed
	}

	return updates
}

// commonNode returns the single node pubkey shared between x and y's
// endpoint pairs.
func commonNode(x, y *graph.Channel) (string, bool) {
	yset := map[string]struct{}{y.Nodes[0]: {}, y.Nodes[1]: {}}
	var found string
	count := 0
	for _, n := range x.Nodes {
		if _, ok := yset[n]; ok {
			found = n
			count++
		}
	}
	if count != 1 {
		return "", false
	}
	return found, true
}

// unionAll returns the union of any number of txid sets without mutating
// any of them.
func unionAll(sets ...map[string]struct{}) map[string]struct{} {
	out := make(map[string]struct{})
	for _, s := range sets {
		for k := range s {
			out[k] = struct{}{}
		}
	}
	return out
}
