package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/lightningnetwork/lnchannels/graph"
)

// LatestPolicy implements gossip.Store.
func (s *Store) LatestPolicy(ctx context.Context, scid graph.ShortChannelID, direction int) (*graph.Policy, error) {
	var p graph.Policy
	p.SCID = scid
	p.Direction = direction

	err := s.pool.QueryRow(ctx, `
		SELECT base_fee_msat, fee_ppm, delay, update_time FROM policies
		WHERE scid_block = $1 AND scid_tx = $2 AND scid_vout = $3 AND direction = $4
		ORDER BY id DESC LIMIT 1
	`, scid.BlockHeight, scid.TxIndex, scid.OutputIndex, direction).
		Scan(&p.BaseFeeMillisatoshi, &p.FeePerMillionth, &p.Delay, &p.UpdateTime)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: latest policy for %v/%d: %w", scid, direction, err)
	}
	return &p, nil
}

// InsertPolicy implements gossip.Store.
func (s *Store) InsertPolicy(ctx context.Context, p graph.Policy) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO policies (scid_block, scid_tx, scid_vout, direction, base_fee_msat, fee_ppm, delay, update_time)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, p.SCID.BlockHeight, p.SCID.TxIndex, p.SCID.OutputIndex, p.Direction,
		p.BaseFeeMillisatoshi, p.FeePerMillionth, p.Delay, p.UpdateTime)
	if err != nil {
		return fmt.Errorf("store: inserting policy for %v/%d: %w", p.SCID, p.Direction, err)
	}
	return nil
}
