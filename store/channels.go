package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/lightningnetwork/lnchannels/closure"
	"github.com/lightningnetwork/lnchannels/deducer"
	"github.com/lightningnetwork/lnchannels/graph"
	"github.com/lightningnetwork/lnchannels/scanner"
)

// UpsertChannel implements gossip.Store: insert scid if absent, bumping
// last_seen either way, and report whether the row was newly created.
func (s *Store) UpsertChannel(ctx context.Context, scid graph.ShortChannelID, nodes [2]string, satoshis int64, lastSeen time.Time) (bool, error) {
	var existedBefore bool
	if err := s.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM channels
			WHERE scid_block = $1 AND scid_tx = $2 AND scid_vout = $3
		)
	`, scid.BlockHeight, scid.TxIndex, scid.OutputIndex).Scan(&existedBefore); err != nil {
		return false, fmt.Errorf("store: checking channel %v novelty: %w", scid, err)
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO channels (scid_block, scid_tx, scid_vout, node_a, node_b, satoshis, last_seen)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (scid_block, scid_tx, scid_vout) DO UPDATE SET last_seen = $7
	`, scid.BlockHeight, scid.TxIndex, scid.OutputIndex, nodes[0], nodes[1], satoshis, lastSeen)
	if err != nil {
		return false, fmt.Errorf("store: upserting channel %v: %w", scid, err)
	}

	return !existedBefore, nil
}

// ChannelHasOpen implements gossip.Store.
func (s *Store) ChannelHasOpen(ctx context.Context, scid graph.ShortChannelID) (bool, error) {
	var hasOpen bool
	err := s.pool.QueryRow(ctx, `
		SELECT open IS NOT NULL FROM channels
		WHERE scid_block = $1 AND scid_tx = $2 AND scid_vout = $3
	`, scid.BlockHeight, scid.TxIndex, scid.OutputIndex).Scan(&hasOpen)
	if err == pgx.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("store: checking open for %v: %w", scid, err)
	}
	return hasOpen, nil
}

// LookupBySCID implements scanner.Store.
func (s *Store) LookupBySCID(ctx context.Context, scid graph.ShortChannelID) (*graph.Channel, error) {
	row := s.pool.QueryRow(ctx, channelSelectSQL+` WHERE scid_block = $1 AND scid_tx = $2 AND scid_vout = $3`,
		scid.BlockHeight, scid.TxIndex, scid.OutputIndex)
	ch, err := scanChannelRow(row)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	return ch, err
}

// GetChannel implements deducer.Store; identical to LookupBySCID, kept as
// a distinct method name so each consuming package's interface reads on
// its own terms.
func (s *Store) GetChannel(ctx context.Context, scid graph.ShortChannelID) (*graph.Channel, error) {
	return s.LookupBySCID(ctx, scid)
}

// FundingIndex implements scanner.Store: the full funding-txid to
// (scid, output index) map built once per scan run.
func (s *Store) FundingIndex(ctx context.Context) (map[string]scanner.FundingEntry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT scid_block, scid_tx, scid_vout, open->>'txid'
		FROM channels WHERE open IS NOT NULL
	`)
	if err != nil {
		return nil, fmt.Errorf("store: building funding index: %w", err)
	}
	defer rows.Close()

	index := make(map[string]scanner.FundingEntry)
	for rows.Next() {
		var block, txIndex, vout uint32
		var txid string
		if err := rows.Scan(&block, &txIndex, &vout, &txid); err != nil {
			return nil, err
		}
		index[txid] = scanner.FundingEntry{
			SCID:        graph.ShortChannelID{BlockHeight: block, TxIndex: txIndex, OutputIndex: vout},
			OutputIndex: vout,
		}
	}
	return index, rows.Err()
}

// RecordOpen implements scanner.Store.
func (s *Store) RecordOpen(ctx context.Context, scid graph.ShortChannelID, nodes [2]string, satoshis int64, open graph.OpenFacts, fundingTxs []string) error {
	openBytes, err := json.Marshal(toOpenJSON(open))
	if err != nil {
		return err
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO channels (scid_block, scid_tx, scid_vout, node_a, node_b, satoshis, open, txs, last_seen)
		VALUES ($1, $2, $3, $4, $5, $6, $7, jsonb_build_object('a', '[]'::jsonb, 'b', '[]'::jsonb, 'funding', $8::jsonb), now())
		ON CONFLICT (scid_block, scid_tx, scid_vout) DO UPDATE SET
			open = $7,
			txs  = jsonb_set(channels.txs, '{funding}',
				(SELECT jsonb_agg(DISTINCT e) FROM jsonb_array_elements_text(channels.txs->'funding' || $8::jsonb) e))
	`, scid.BlockHeight, scid.TxIndex, scid.OutputIndex, nodes[0], nodes[1], satoshis, openBytes, mustJSON(fundingTxs))
	if err != nil {
		return fmt.Errorf("store: recording open for %v: %w", scid, err)
	}
	return nil
}

// RecordClose implements scanner.Store.
func (s *Store) RecordClose(ctx context.Context, scid graph.ShortChannelID, result *closure.Result) error {
	closeBytes, err := json.Marshal(toCloseJSON(result.Close))
	if err != nil {
		return err
	}
	txs := toTxsJSON(result.Txs)

	_, err = s.pool.Exec(ctx, `
		UPDATE channels SET
			close  = $4,
			closer = $5,
			taken  = $6,
			txs    = jsonb_build_object(
				'a', coalesce((SELECT jsonb_agg(DISTINCT e) FROM jsonb_array_elements_text(coalesce(channels.txs->'a', '[]'::jsonb) || $7::jsonb) e), '[]'::jsonb),
				'b', coalesce((SELECT jsonb_agg(DISTINCT e) FROM jsonb_array_elements_text(coalesce(channels.txs->'b', '[]'::jsonb) || $8::jsonb) e), '[]'::jsonb),
				'funding', channels.txs->'funding'
			)
		WHERE scid_block = $1 AND scid_tx = $2 AND scid_vout = $3
	`, scid.BlockHeight, scid.TxIndex, scid.OutputIndex,
		closeBytes, string(result.Closer), string(result.Taken),
		mustJSON(txs.A), mustJSON(txs.B))
	if err != nil {
		return fmt.Errorf("store: recording close for %v: %w", scid, err)
	}
	return nil
}

// ChannelsSharingNode implements deducer.Store.
func (s *Store) ChannelsSharingNode(ctx context.Context, scid graph.ShortChannelID) ([]*graph.Channel, error) {
	x, err := s.LookupBySCID(ctx, scid)
	if err != nil || x == nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, channelSelectSQL+`
		WHERE (node_a = $1 OR node_b = $1 OR node_a = $2 OR node_b = $2)
		  AND NOT (scid_block = $3 AND scid_tx = $4 AND scid_vout = $5)
	`, x.Nodes[0], x.Nodes[1], scid.BlockHeight, scid.TxIndex, scid.OutputIndex)
	if err != nil {
		return nil, fmt.Errorf("store: querying peers of %v: %w", scid, err)
	}
	defer rows.Close()

	var out []*graph.Channel
	for rows.Next() {
		ch, err := scanChannelRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ch)
	}
	return out, rows.Err()
}

// CandidateSCIDs implements deducer.Store.
func (s *Store) CandidateSCIDs(ctx context.Context) ([]graph.ShortChannelID, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT scid_block, scid_tx, scid_vout FROM channels
		WHERE close IS NOT NULL AND (a_idx IS NULL OR funder_idx IS NULL)
	`)
	if err != nil {
		return nil, fmt.Errorf("store: listing deducer candidates: %w", err)
	}
	defer rows.Close()

	var out []graph.ShortChannelID
	for rows.Next() {
		var block, txIndex, vout uint32
		if err := rows.Scan(&block, &txIndex, &vout); err != nil {
			return nil, err
		}
		out = append(out, graph.ShortChannelID{BlockHeight: block, TxIndex: txIndex, OutputIndex: vout})
	}
	return out, rows.Err()
}

// ApplyUpdate implements deducer.Store: writes only take effect if the
// target column is currently NULL, the deducer's monotone-refinement
// rule.
func (s *Store) ApplyUpdate(ctx context.Context, scid graph.ShortChannelID, label deducer.Label, value graph.Side) error {
	if !value.Valid {
		return nil
	}

	var column string
	switch label {
	case deducer.LabelA:
		column = "a_idx"
	case deducer.LabelB:
		column = "b_idx"
	case deducer.LabelFunder:
		column = "funder_idx"
	default:
		return fmt.Errorf("store: unknown deducer label %q", label)
	}

	_, err := s.pool.Exec(ctx, fmt.Sprintf(`
		UPDATE channels SET %s = $4
		WHERE scid_block = $1 AND scid_tx = $2 AND scid_vout = $3 AND %s IS NULL
	`, column, column), scid.BlockHeight, scid.TxIndex, scid.OutputIndex, value.Value)
	if err != nil {
		return fmt.Errorf("store: applying %s=%d to %v: %w", column, value.Value, scid, err)
	}
	return nil
}

const channelSelectSQL = `
	SELECT scid_block, scid_tx, scid_vout, node_a, node_b, satoshis,
	       open, close, txs, a_idx, b_idx, funder_idx, closer, taken,
	       extract(epoch from last_seen)::bigint
	FROM channels
`

// rowScanner is the subset of pgx.Row / pgx.Rows this package needs to
// scan a channel row, satisfied by both single-row and multi-row results.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanChannelRow(row rowScanner) (*graph.Channel, error) {
	var block, txIndex, vout uint32
	var nodeA, nodeB, closer, taken string
	var satoshis, lastSeen int64
	var openRaw, closeRaw, txsRaw []byte
	var aIdx, bIdx, funderIdx *int16

	if err := row.Scan(&block, &txIndex, &vout, &nodeA, &nodeB, &satoshis,
		&openRaw, &closeRaw, &txsRaw, &aIdx, &bIdx, &funderIdx, &closer, &taken, &lastSeen); err != nil {
		return nil, err
	}

	var open *openJSON
	if len(openRaw) > 0 {
		if err := json.Unmarshal(openRaw, &open); err != nil {
			return nil, err
		}
	}
	var cl *closeJSON
	if len(closeRaw) > 0 {
		if err := json.Unmarshal(closeRaw, &cl); err != nil {
			return nil, err
		}
	}
	var txs txsJSON
	if len(txsRaw) > 0 {
		if err := json.Unmarshal(txsRaw, &txs); err != nil {
			return nil, err
		}
	}

	return &graph.Channel{
		SCID:     graph.ShortChannelID{BlockHeight: block, TxIndex: txIndex, OutputIndex: vout},
		Nodes:    [2]string{nodeA, nodeB},
		Satoshis: satoshis,
		Open:     fromOpenJSON(open),
		Close:    fromCloseJSON(cl),
		Txs:      fromTxsJSON(txs),
		A:        fromNullSmallint(aIdx),
		B:        fromNullSmallint(bIdx),
		Funder:   fromNullSmallint(funderIdx),
		Closer:   graph.CloserLabel(closer),
		Taken:    graph.CloserLabel(taken),
		LastSeen: lastSeen,
	}, nil
}

func mustJSON(v interface{}) string {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return string(b)
}
