package store

import (
	"context"
	"encoding/json"
	"fmt"
)

// Materialize implements the materializer (C7): recomputes per-node
// summary statistics and network-wide maxima/histograms from the current
// channels table. It is a full recompute, not an incremental update --
// cheap enough to run on a schedule given the table sizes this pipeline
// deals with, and immune to drift from missed incremental updates.
func (s *Store) Materialize(ctx context.Context) error {
	if err := s.materializeNodes(ctx); err != nil {
		return err
	}
	if err := s.materializeGlobal(ctx); err != nil {
		return err
	}
	log.Debugf("store: aggregates materialized")
	return nil
}

func (s *Store) materializeNodes(ctx context.Context) error {
	rows, err := s.pool.Query(ctx, `
		SELECT pubkey, count(*), coalesce(sum(satoshis), 0),
		       count(*) FILTER (WHERE close IS NOT NULL),
		       count(*) FILTER (WHERE close->>'type' IN ('force', 'penalty')),
		       count(*) FILTER (WHERE close->>'type' = 'penalty')
		FROM (
			SELECT node_a AS pubkey, satoshis, close FROM channels
			UNION ALL
			SELECT node_b AS pubkey, satoshis, close FROM channels
		) both_sides
		GROUP BY pubkey
	`)
	if err != nil {
		return fmt.Errorf("store: materializing node aggregates: %w", err)
	}
	defer rows.Close()

	type agg struct {
		pubkey                                    string
		numChannels, numClosed, numForce, numPen   int
		capacity                                   int64
	}
	var aggs []agg
	for rows.Next() {
		var a agg
		if err := rows.Scan(&a.pubkey, &a.numChannels, &a.capacity, &a.numClosed, &a.numForce, &a.numPen); err != nil {
			return err
		}
		aggs = append(aggs, a)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `TRUNCATE node_aggregates`); err != nil {
		return err
	}
	for _, a := range aggs {
		if _, err := tx.Exec(ctx, `
			INSERT INTO node_aggregates (pubkey, num_channels, capacity_sats, num_closed, num_force_close, num_penalty)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, a.pubkey, a.numChannels, a.capacity, a.numClosed, a.numForce, a.numPen); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

func (s *Store) materializeGlobal(ctx context.Context) error {
	var maxCapacity int64
	var maxChannelsANode int
	if err := s.pool.QueryRow(ctx, `SELECT coalesce(max(satoshis), 0) FROM channels`).Scan(&maxCapacity); err != nil {
		return fmt.Errorf("store: computing max capacity: %w", err)
	}
	if err := s.pool.QueryRow(ctx, `SELECT coalesce(max(num_channels), 0) FROM node_aggregates`).Scan(&maxChannelsANode); err != nil {
		return fmt.Errorf("store: computing max channel count: %w", err)
	}

	counts, err := s.closeTypeHistogram(ctx)
	if err != nil {
		return err
	}
	histBytes, err := json.Marshal(counts)
	if err != nil {
		return err
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO global_aggregates (id, max_capacity_sats, max_channels_a_node, closetype_counts)
		VALUES (true, $1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET
			max_capacity_sats = $1, max_channels_a_node = $2, closetype_counts = $3, computed_at = now()
	`, maxCapacity, maxChannelsANode, histBytes)
	if err != nil {
		return fmt.Errorf("store: writing global aggregates: %w", err)
	}
	return nil
}

// closeTypeHistogram counts closes by type, splitting out force_unused: a
// force close that left the whole balance on the closer's own side,
// indistinguishable on-chain from a channel that closed having never been
// used to route anything.
func (s *Store) closeTypeHistogram(ctx context.Context) (map[string]int, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT
			CASE
				WHEN close->>'type' = 'force'
				     AND (close->>'balance_b')::bigint = 0
				THEN 'force_unused'
				ELSE close->>'type'
			END AS effective_type,
			count(*)
		FROM channels
		WHERE close IS NOT NULL
		GROUP BY effective_type
	`)
	if err != nil {
		return nil, fmt.Errorf("store: histogramming close types: %w", err)
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var t string
		var n int
		if err := rows.Scan(&t, &n); err != nil {
			return nil, err
		}
		out[t] = n
	}
	return out, rows.Err()
}
