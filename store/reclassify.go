package store

import (
	"context"
	"fmt"

	"github.com/lightningnetwork/lnchannels/closure"
	"github.com/lightningnetwork/lnchannels/graph"
)

// UnknownCloseTypes implements closure.ReclassifyStore.
func (s *Store) UnknownCloseTypes(ctx context.Context, limit int) ([]closure.UnknownClose, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT scid_block, scid_tx, scid_vout, close->>'txid',
		       (close->>'block')::int, (close->>'time')::bigint
		FROM channels
		WHERE close IS NOT NULL AND close->>'type' = $1
		LIMIT $2
	`, string(graph.CloseUnknown), limit)
	if err != nil {
		return nil, fmt.Errorf("store: listing unknown-type closes: %w", err)
	}
	defer rows.Close()

	var out []closure.UnknownClose
	for rows.Next() {
		var block, txIndex, vout, closeBlock uint32
		var txid string
		var closeTime int64
		if err := rows.Scan(&block, &txIndex, &vout, &txid, &closeBlock, &closeTime); err != nil {
			return nil, err
		}
		out = append(out, closure.UnknownClose{
			SCID:       graph.ShortChannelID{BlockHeight: block, TxIndex: txIndex, OutputIndex: vout},
			CloseTxid:  txid,
			CloseBlock: closeBlock,
			CloseTime:  closeTime,
		})
	}
	return out, rows.Err()
}
