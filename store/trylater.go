package store

import (
	"context"
	"fmt"

	"github.com/lightningnetwork/lnchannels/graph"
	"github.com/lightningnetwork/lnchannels/scanner"
)

// TryLaterBump implements scanner.Store: insert a fresh try-later row, or
// bump its attempt counter if one already exists for this candidate scid.
func (s *Store) TryLaterBump(ctx context.Context, scid graph.ShortChannelID, txid string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO try_later (scid_block, scid_tx, scid_vout, txid, tries)
		VALUES ($1, $2, $3, $4, 1)
		ON CONFLICT (scid_block, scid_tx, scid_vout) DO UPDATE SET
			tries = try_later.tries + 1, txid = $4
	`, scid.BlockHeight, scid.TxIndex, scid.OutputIndex, txid)
	if err != nil {
		return fmt.Errorf("store: bumping try-later for %v: %w", scid, err)
	}
	return nil
}

// TryLaterPending implements scanner.Store.
func (s *Store) TryLaterPending(ctx context.Context, maxTries int) ([]scanner.TryLaterRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT scid_block, scid_tx, scid_vout, txid, tries FROM try_later
		WHERE tries < $1
	`, maxTries)
	if err != nil {
		return nil, fmt.Errorf("store: listing try-later: %w", err)
	}
	defer rows.Close()

	var out []scanner.TryLaterRecord
	for rows.Next() {
		var block, txIndex, vout uint32
		var txid string
		var tries int
		if err := rows.Scan(&block, &txIndex, &vout, &txid, &tries); err != nil {
			return nil, err
		}
		out = append(out, scanner.TryLaterRecord{
			SCID:  graph.ShortChannelID{BlockHeight: block, TxIndex: txIndex, OutputIndex: vout},
			Txid:  txid,
			Tries: tries,
		})
	}
	return out, rows.Err()
}
