package graph

// Policy is one row of a channel direction's fee-policy history. Direction
// 1 means node0 -> node1 (source < destination in gossip order), 0 means
// the reverse.
type Policy struct {
	SCID                ShortChannelID
	Direction           int
	BaseFeeMillisatoshi int64
	FeePerMillionth     int64
	Delay               uint32
	UpdateTime          int64
}

// SameTerms reports whether p carries the given base fee, fee rate and
// delay, ignoring UpdateTime -- used by the gossip importer's append-on-change
// rule.
func (p Policy) SameTerms(base, ppm int64, delay uint32) bool {
	return p.BaseFeeMillisatoshi == base &&
		p.FeePerMillionth == ppm &&
		p.Delay == delay
}
