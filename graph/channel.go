// Package graph defines the in-memory representation of the channel graph
// this pipeline ingests and enriches: channels, node metadata, and
// per-direction fee policies, along with the on-chain facts attached to a
// channel as it is opened, closed, and classified.
//
// The shapes here mirror the JSON-valued columns of the store's channels
// table (open, close, txs) as sum-typed Go structs instead of dynamic maps,
// per the re-architecture guidance for the source's dynamic JSON blobs.
package graph

import "fmt"

// ShortChannelID is the canonical channel identifier, the triple
// block x tx_index x output_index pointing at the funding output.
type ShortChannelID struct {
	BlockHeight uint32
	TxIndex     uint32
	OutputIndex uint32
}

// String renders the canonical "{block}x{tx_index}x{vout}" form.
func (s ShortChannelID) String() string {
	return fmt.Sprintf("%dx%dx%d", s.BlockHeight, s.TxIndex, s.OutputIndex)
}

// ParseShortChannelID parses the canonical scid string form.
func ParseShortChannelID(s string) (ShortChannelID, error) {
	var block, txIndex, vout uint32
	n, err := fmt.Sscanf(s, "%dx%dx%d", &block, &txIndex, &vout)
	if err != nil || n != 3 {
		return ShortChannelID{}, fmt.Errorf("invalid short_channel_id %q", s)
	}
	return ShortChannelID{BlockHeight: block, TxIndex: txIndex, OutputIndex: vout}, nil
}

// Side is a nullable index into a Channel's Nodes pair (0 or 1). Unlike a
// bare int with 0 as a sentinel for "unset" -- which would conflate index 0
// with "unknown", the bug the spec's Open Questions flag explicitly -- Side
// tracks validity separately from value.
type Side struct {
	Value uint8
	Valid bool
}

// NewSide returns a valid Side wrapping v. v must be 0 or 1.
func NewSide(v uint8) Side {
	return Side{Value: v, Valid: true}
}

// Other returns the opposite index, only meaningful when Valid.
func (s Side) Other() Side {
	if !s.Valid {
		return s
	}
	return NewSide(1 - s.Value)
}

// CloserLabel is the named side ("a" or "b") used in the close record,
// distinct from Side which indexes into Nodes.
type CloserLabel string

const (
	CloserNone CloserLabel = ""
	CloserA    CloserLabel = "a"
	CloserB    CloserLabel = "b"
)

// Other returns the opposite named side; only meaningful for "a"/"b".
func (c CloserLabel) Other() CloserLabel {
	switch c {
	case CloserA:
		return CloserB
	case CloserB:
		return CloserA
	default:
		return CloserNone
	}
}

// CloseType enumerates the closure-type vocabulary from the closure
// classifier, plus the force_unused variant produced at materialization
// time.
type CloseType string

const (
	CloseUnknown     CloseType = "unknown"
	CloseUnused      CloseType = "unused"
	CloseMutual      CloseType = "mutual"
	CloseForce       CloseType = "force"
	ClosePenalty     CloseType = "penalty"
	CloseForceUnused CloseType = "force_unused"
)

// OpenFacts are the on-chain facts about a channel's funding, written once
// and never revised.
type OpenFacts struct {
	Block   uint32
	Txid    string
	Address string
	Time    int64
	Fee     int64
}

// IsSet reports whether the open record has been populated.
func (o OpenFacts) IsSet() bool {
	return o.Txid != ""
}

// Balance holds the per-side satoshi balance of a closing transaction.
type Balance struct {
	A int64
	B int64
}

// HTLC describes one hash-time-locked-contract output of a closing
// transaction, resolved to which side offered it and whether it was
// fulfilled (claimed by the counterparty) or not (returned to the offerer).
type HTLC struct {
	Amount    int64
	Offerer   CloserLabel
	Fulfilled bool
}

// CloseFacts are the on-chain facts about a channel's closing transaction
// and its classification. They are written as soon as the close is seen,
// including when the type is "unknown"; such closes are rewritten if a
// later reclassification resolves them.
type CloseFacts struct {
	Block   uint32
	Txid    string
	Time    int64
	Fee     int64
	Type    CloseType
	Balance Balance
	HTLCs   []HTLC
}

// IsSet reports whether the close record has been populated.
func (c CloseFacts) IsSet() bool {
	return c.Block != 0
}

// TxSet is the set-of-txids partition a channel accumulates evidence into:
// funding inputs, and the follow-up spends attributed to each labeled side
// of a close.
type TxSet struct {
	A       map[string]struct{}
	B       map[string]struct{}
	Funding map[string]struct{}
}

// NewTxSet returns an empty, initialized TxSet.
func NewTxSet() TxSet {
	return TxSet{
		A:       make(map[string]struct{}),
		B:       make(map[string]struct{}),
		Funding: make(map[string]struct{}),
	}
}

// Union mutates dst so it additionally contains every member of src. Used
// to implement the append-only set union on txs.
func Union(dst map[string]struct{}, src ...string) {
	for _, txid := range src {
		dst[txid] = struct{}{}
	}
}

// Keys returns the sorted-by-insertion-unstable member list of a set; order
// is not significant since txs is a set, not a sequence.
func Keys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

// Intersects reports whether a and b share any member.
func Intersects(a, b map[string]struct{}) bool {
	small, big := a, b
	if len(big) < len(small) {
		small, big = big, small
	}
	for k := range small {
		if _, ok := big[k]; ok {
			return true
		}
	}
	return false
}

// Channel is the central entity of the graph: a gossip-advertised or
// on-chain-discovered payment channel, together with everything the
// pipeline has learned about its on-chain lifecycle.
type Channel struct {
	SCID     ShortChannelID
	Nodes    [2]string // lexicographically sorted pubkeys
	Satoshis int64

	Open  OpenFacts
	Close CloseFacts
	Txs   TxSet

	A      Side
	B      Side
	Funder Side
	Closer CloserLabel
	// Taken is set instead of Closer for a penalty close: the side whose
	// output was appropriated by the counterparty.
	Taken CloserLabel

	LastSeen int64
}

// NewChannel returns a freshly seeded Channel row for scid with the given
// (already sorted) node pair and funding amount.
func NewChannel(scid ShortChannelID, nodes [2]string, satoshis int64) *Channel {
	return &Channel{
		SCID:     scid,
		Nodes:    nodes,
		Satoshis: satoshis,
		Txs:      NewTxSet(),
	}
}

// SortNodes returns the lexicographically sorted pair, and direction=1 iff
// source < destination (the gossip wire order), matching the convention
// policies are keyed on.
func SortNodes(source, destination string) (nodes [2]string, direction int) {
	if source < destination {
		return [2]string{source, destination}, 1
	}
	return [2]string{destination, source}, 0
}

// IndexOf returns the Side of pubkey within nodes, invalid if absent.
func IndexOf(nodes [2]string, pubkey string) Side {
	switch pubkey {
	case nodes[0]:
		return NewSide(0)
	case nodes[1]:
		return NewSide(1)
	default:
		return Side{}
	}
}
