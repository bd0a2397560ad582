package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/lightningnetwork/lnchannels/graph"
)

// LatestAlias implements gossip.Store.
func (s *Store) LatestAlias(ctx context.Context, pubkey string) (alias, color string, err error) {
	err = s.pool.QueryRow(ctx, `
		SELECT alias, color FROM node_aliases
		WHERE pubkey = $1 ORDER BY id DESC LIMIT 1
	`, pubkey).Scan(&alias, &color)
	if err == pgx.ErrNoRows {
		return "", "", nil
	}
	if err != nil {
		return "", "", fmt.Errorf("store: latest alias for %s: %w", pubkey, err)
	}
	return alias, color, nil
}

// InsertAliasRecord implements gossip.Store.
func (s *Store) InsertAliasRecord(ctx context.Context, r graph.AliasRecord) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO node_aliases (pubkey, alias, color, first_seen, last_seen)
		VALUES ($1, $2, $3, $4, $5)
	`, r.Pubkey, r.Alias, r.Color, r.FirstSeen, r.LastSeen)
	if err != nil {
		return fmt.Errorf("store: inserting alias for %s: %w", r.Pubkey, err)
	}
	return nil
}

// LatestFeatures implements gossip.Store.
func (s *Store) LatestFeatures(ctx context.Context, pubkey string) (string, error) {
	var features string
	err := s.pool.QueryRow(ctx, `
		SELECT features FROM node_features
		WHERE pubkey = $1 ORDER BY id DESC LIMIT 1
	`, pubkey).Scan(&features)
	if err == pgx.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("store: latest features for %s: %w", pubkey, err)
	}
	return features, nil
}

// InsertFeatureRecord implements gossip.Store.
func (s *Store) InsertFeatureRecord(ctx context.Context, r graph.FeatureRecord) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO node_features (pubkey, features, first_seen, last_seen)
		VALUES ($1, $2, $3, $4)
	`, r.Pubkey, r.Features, r.FirstSeen, r.LastSeen)
	if err != nil {
		return fmt.Errorf("store: inserting features for %s: %w", r.Pubkey, err)
	}
	return nil
}
