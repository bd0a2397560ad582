package graph

import (
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
)

// ParsePubkey validates that s is the hex encoding of a well-formed
// secp256k1 public key, as every Lightning node ID is, returning its
// canonical compressed hex encoding. Gossip-advertised node IDs are
// untrusted input; this rejects anything that isn't actually a point on
// the curve before it's stored or used as a join key.
func ParsePubkey(s string) (string, error) {
	raw, err := hex.DecodeString(s)
	if err != nil {
		return "", fmt.Errorf("pubkey %q: not hex: %w", s, err)
	}

	key, err := btcec.ParsePubKey(raw)
	if err != nil {
		return "", fmt.Errorf("pubkey %q: %w", s, err)
	}

	return hex.EncodeToString(key.SerializeCompressed()), nil
}

// AliasRecord is one row of a node's alias/color history: appended only
// when the alias or color differs from the latest seen value for that
// pubkey.
type AliasRecord struct {
	Pubkey    string
	Alias     string
	Color     string
	FirstSeen int64
	LastSeen  int64
}

// FeatureRecord is one row of a node's advertised feature-bitstring
// history, appended on the same change-detection rule as AliasRecord.
type FeatureRecord struct {
	Pubkey    string
	Features  string
	FirstSeen int64
	LastSeen  int64
}

// Node is the gossip-advertised identity of a Lightning node: a public key
// plus whatever alias/color/feature history has been observed for it.
type Node struct {
	Pubkey   string
	Alias    string
	Color    string
	Features string
}
