// Package scanner implements the block scanner (C3) and open handler
// (C4): a resumable, single-threaded, block-by-block traversal of the
// blockchain that detects channel opens and closes by matching
// transaction inputs/outputs against the set of known funding outpoints,
// and persists opening-side on-chain facts.
package scanner

import (
	"context"
	"fmt"

	"github.com/lightningnetwork/lnchannels/chainclient"
	"github.com/lightningnetwork/lnchannels/closure"
	"github.com/lightningnetwork/lnchannels/graph"
)

// Store is the narrow persistence surface the scanner needs.
type Store interface {
	// FundingIndex returns, for every channel, the funding txid to match
	// against spent inputs, together with the channel's expected output
	// index (so a same-txid input on a *different* output doesn't
	// falsely match).
	FundingIndex(ctx context.Context) (map[string]FundingEntry, error)

	// LookupBySCID returns whether a channel row for scid exists, its
	// funder/satoshis hint from gossip if any, and the node pair.
	LookupBySCID(ctx context.Context, scid graph.ShortChannelID) (*graph.Channel, error)

	// RecordOpen persists the open handler's findings (§4.4), inserting
	// the channel row if it doesn't already exist.
	RecordOpen(ctx context.Context, scid graph.ShortChannelID, nodes [2]string, satoshis int64, open graph.OpenFacts, fundingTxs []string) error

	// RecordClose persists the classifier's findings (§4.5).
	RecordClose(ctx context.Context, scid graph.ShortChannelID, result *closure.Result) error

	// TryLaterBump inserts-or-bumps the try-later row for a candidate
	// scid/txid pair seen on-chain but not yet known to gossip.
	TryLaterBump(ctx context.Context, scid graph.ShortChannelID, txid string) error

	// TryLaterPending returns try-later rows with tries below the cap,
	// for revisiting candidate opens not yet confirmed via gossip.
	TryLaterPending(ctx context.Context, maxTries int) ([]TryLaterRecord, error)
}

// TryLaterRecord is one row of the try-later queue.
type TryLaterRecord struct {
	SCID  graph.ShortChannelID
	Txid  string
	Tries int
}

// FundingEntry is one entry of the in-memory funding-outpoint index built
// once per scan: the channel this funding txid belongs to, and the output
// index the funding output is expected at.
type FundingEntry struct {
	SCID        graph.ShortChannelID
	OutputIndex uint32
}

// maxTryLaterAttempts bounds how many times a try-later candidate is
// revisited before being abandoned, per spec.md §3.
const maxTryLaterAttempts = 7

// Scanner drives the single-threaded, cooperative block scan.
type Scanner struct {
	Chain      chainclient.Client
	Store      Store
	CursorPath string
}

// New builds a Scanner.
func New(chain chainclient.Client, store Store, cursorPath string) *Scanner {
	return &Scanner{Chain: chain, Store: store, CursorPath: cursorPath}
}

// Run performs one catch-up scan: from the persisted cursor (rewound per
// policy) through the chain tip captured at the start of the run. Tip is
// captured once and never re-read mid-scan, so the near-tip predicate used
// by the classifier stays stable for the whole run.
func (s *Scanner) Run(ctx context.Context) error {
	tip, err := s.Chain.Tip(ctx)
	if err != nil {
		return fmt.Errorf("scanner: fetching tip: %w", err)
	}

	cursor, ok, err := ReadCursor(s.CursorPath)
	if err != nil {
		return fmt.Errorf("scanner: reading cursor: %w", err)
	}
	if !ok {
		cursor = tip
	}
	cursor = rewind(cursor, tip)

	fundingIndex, err := s.Store.FundingIndex(ctx)
	if err != nil {
		return fmt.Errorf("scanner: building funding index: %w", err)
	}

	if err := s.processTryLater(ctx, fundingIndex, tip); err != nil {
		log.Warnf("try-later pass failed: %v", err)
	}

	classifier := closure.New(s.Chain, tip)

	for h := cursor; h <= tip; h++ {
		if err := s.scanBlock(ctx, h, fundingIndex, classifier); err != nil {
			log.Errorf("scan of block %d aborted: %v", h, err)
			return nil
		}
		if err := WriteCursor(s.CursorPath, h+1); err != nil {
			return fmt.Errorf("scanner: persisting cursor: %w", err)
		}
	}

	return nil
}

// scanBlock fetches block h and inspects every non-coinbase transaction's
// inputs for channel closes and outputs for channel opens. It returns an
// error only for a fatal/transient RPC failure fetching the block itself,
// per the scanner's "commit no cursor advance for that block" contract.
func (s *Scanner) scanBlock(ctx context.Context, h int64, fundingIndex map[string]FundingEntry, classifier *closure.Classifier) error {
	block, err := s.Chain.GetBlockAt(ctx, h)
	if err != nil {
		return err
	}

	for txIndex, tx := range block.Tx {
		s.inspectCloses(ctx, block, tx, fundingIndex, classifier)
		s.inspectOpens(ctx, block, tx, txIndex, fundingIndex)
	}

	return nil
}

// inspectCloses matches every input of tx against the funding index; a
// match means the referenced channel's funding output has just been spent,
// i.e. the channel is closing.
func (s *Scanner) inspectCloses(ctx context.Context, block *chainclient.Block, tx chainclient.Tx, fundingIndex map[string]FundingEntry, classifier *closure.Classifier) {
	for _, vin := range tx.Vin {
		if vin.IsCoinbase() {
			continue
		}

		entry, ok := fundingIndex[vin.Txid]
		if !ok || entry.OutputIndex != vin.Vout {
			continue
		}

		log.Infof("channel %v closed by %v", entry.SCID, tx.Txid)

		result, err := classifier.Classify(ctx, uint32(block.Height), block.Time, &tx)
		if err != nil {
			log.Errorf("classifying close of %v: %v", entry.SCID, err)
			continue
		}

		if err := s.Store.RecordClose(ctx, entry.SCID, result); err != nil {
			log.Errorf("recording close of %v: %v", entry.SCID, err)
		}
	}
}

// inspectOpens matches every witness-script-hash output of tx against the
// expected scid derived from (block, tx_index, vout); a match means a
// channel is opening in this output. An unmatched output whose txid is not
// already in the funding index is queued in the try-later table.
func (s *Scanner) inspectOpens(ctx context.Context, block *chainclient.Block, tx chainclient.Tx, txIndex int, fundingIndex map[string]FundingEntry) {
	for _, vout := range tx.Vout {
		if vout.ScriptPubKey.Type != "witness_v0_scripthash" {
			continue
		}

		scid := graph.ShortChannelID{
			BlockHeight: uint32(block.Height),
			TxIndex:     uint32(txIndex),
			OutputIndex: vout.N,
		}

		ch, err := s.Store.LookupBySCID(ctx, scid)
		if err != nil {
			log.Errorf("looking up channel %v: %v", scid, err)
			continue
		}
		if ch == nil {
			if _, ok := fundingIndex[tx.Txid]; !ok {
				if err := s.Store.TryLaterBump(ctx, scid, tx.Txid); err != nil {
					log.Errorf("bumping try-later for %v: %v", scid, err)
				}
			}
			continue
		}

		log.Infof("channel %v opened by %v", scid, tx.Txid)
		if err := s.handleOpen(ctx, block, tx, vout, ch); err != nil {
			log.Errorf("recording open of %v: %v", scid, err)
		}
	}
}

// processTryLater retries candidate opens seen on-chain but not yet known
// to gossip, per spec.md §4.3's "revisit past stuff that may be channels".
func (s *Scanner) processTryLater(ctx context.Context, fundingIndex map[string]FundingEntry, tip int64) error {
	pending, err := s.Store.TryLaterPending(ctx, maxTryLaterAttempts)
	if err != nil {
		return err
	}

	for _, rec := range pending {
		// Every revisit counts against the retry cap, so a candidate is
		// abandoned once it has been tried maxTryLaterAttempts times.
		if err := s.Store.TryLaterBump(ctx, rec.SCID, rec.Txid); err != nil {
			log.Warnf("try-later: bumping %v: %v", rec.SCID, err)
		}

		tx, err := s.Chain.GetTx(ctx, rec.Txid)
		if err != nil {
			log.Warnf("try-later: fetching %v: %v", rec.Txid, err)
			continue
		}

		ch, err := s.Store.LookupBySCID(ctx, rec.SCID)
		if err != nil || ch == nil {
			continue
		}

		block := &chainclient.Block{Height: int64(rec.SCID.BlockHeight), Time: tx.BlockTime}
		if int(rec.SCID.OutputIndex) >= len(tx.Vout) {
			continue
		}
		if err := s.handleOpen(ctx, block, *tx, tx.Vout[rec.SCID.OutputIndex], ch); err != nil {
			log.Errorf("try-later: recording open of %v: %v", rec.SCID, err)
		}
	}

	return nil
}
