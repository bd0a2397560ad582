package closure

import (
	"context"

	"github.com/lightningnetwork/lnchannels/graph"
)

// UnknownClose is one channel whose last recorded close was classified as
// "unknown", together with the facts needed to re-run the classifier
// against its closing transaction.
type UnknownClose struct {
	SCID        graph.ShortChannelID
	CloseTxid   string
	CloseBlock  uint32
	CloseTime   int64
}

// ReclassifyStore is the narrow persistence surface Reclassify needs.
type ReclassifyStore interface {
	// UnknownCloseTypes returns up to limit channels whose close.type is
	// still "unknown".
	UnknownCloseTypes(ctx context.Context, limit int) ([]UnknownClose, error)
	// RecordClose persists an improved classification, identical to the
	// scanner's write path.
	RecordClose(ctx context.Context, scid graph.ShortChannelID, result *Result) error
}

// Reclassify re-runs the classifier against every channel whose last
// recorded close type is "unknown", writing back an improved result where
// one is now available. It exists because outputs left unresolved at
// first classification -- an unconfirmed sweep, a not-yet-spent HTLC
// follow-up -- often resolve themselves a few blocks later, and nothing
// else in the pipeline revisits them on its own.
func (c *Classifier) Reclassify(ctx context.Context, store ReclassifyStore, limit int) (int, error) {
	pending, err := store.UnknownCloseTypes(ctx, limit)
	if err != nil {
		return 0, err
	}

	updated := 0
	for _, p := range pending {
		tx, err := c.Chain.GetTx(ctx, p.CloseTxid)
		if err != nil {
			log.Warnf("reclassify: fetching close tx for %v: %v", p.SCID, err)
			continue
		}

		result, err := c.Classify(ctx, p.CloseBlock, p.CloseTime, tx)
		if err != nil {
			log.Warnf("reclassify: classifying %v: %v", p.SCID, err)
			continue
		}
		if result.Close.Type == graph.CloseUnknown {
			continue
		}

		if err := store.RecordClose(ctx, p.SCID, result); err != nil {
			log.Warnf("reclassify: recording %v: %v", p.SCID, err)
			continue
		}
		updated++
	}
	return updated, nil
}
