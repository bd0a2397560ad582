package store

import "github.com/lightningnetwork/lnchannels/graph"

// openJSON/closeJSON/txsJSON are the wire shapes stored in the channels
// table's JSON columns; they exist separately from graph's structs so
// column layout can evolve independently of the in-memory model.

type openJSON struct {
	Block   uint32 `json:"block"`
	Txid    string `json:"txid"`
	Address string `json:"address"`
	Time    int64  `json:"time"`
	Fee     int64  `json:"fee"`
}

type htlcJSON struct {
	Amount    int64  `json:"amount"`
	Offerer   string `json:"offerer"`
	Fulfilled bool   `json:"fulfilled"`
}

type closeJSON struct {
	Block   uint32     `json:"block"`
	Txid    string     `json:"txid"`
	Time    int64      `json:"time"`
	Fee     int64      `json:"fee"`
	Type    string     `json:"type"`
	BalA    int64      `json:"balance_a"`
	BalB    int64      `json:"balance_b"`
	HTLCs   []htlcJSON `json:"htlcs"`
}

type txsJSON struct {
	A       []string `json:"a"`
	B       []string `json:"b"`
	Funding []string `json:"funding"`
}

func toOpenJSON(o graph.OpenFacts) *openJSON {
	if !o.IsSet() {
		return nil
	}
	return &openJSON{Block: o.Block, Txid: o.Txid, Address: o.Address, Time: o.Time, Fee: o.Fee}
}

func fromOpenJSON(o *openJSON) graph.OpenFacts {
	if o == nil {
		return graph.OpenFacts{}
	}
	return graph.OpenFacts{Block: o.Block, Txid: o.Txid, Address: o.Address, Time: o.Time, Fee: o.Fee}
}

func toCloseJSON(c graph.CloseFacts) *closeJSON {
	if !c.IsSet() {
		return nil
	}
	htlcs := make([]htlcJSON, len(c.HTLCs))
	for i, h := range c.HTLCs {
		htlcs[i] = htlcJSON{Amount: h.Amount, Offerer: string(h.Offerer), Fulfilled: h.Fulfilled}
	}
	return &closeJSON{
		Block: c.Block,
		Txid:  c.Txid,
		Time:  c.Time,
		Fee:   c.Fee,
		Type:  string(c.Type),
		BalA:  c.Balance.A,
		BalB:  c.Balance.B,
		HTLCs: htlcs,
	}
}

func fromCloseJSON(c *closeJSON) graph.CloseFacts {
	if c == nil {
		return graph.CloseFacts{}
	}
	htlcs := make([]graph.HTLC, len(c.HTLCs))
	for i, h := range c.HTLCs {
		htlcs[i] = graph.HTLC{Amount: h.Amount, Offerer: graph.CloserLabel(h.Offerer), Fulfilled: h.Fulfilled}
	}
	return graph.CloseFacts{
		Block:   c.Block,
		Txid:    c.Txid,
		Time:    c.Time,
		Fee:     c.Fee,
		Type:    graph.CloseType(c.Type),
		Balance: graph.Balance{A: c.BalA, B: c.BalB},
		HTLCs:   htlcs,
	}
}

func toTxsJSON(t graph.TxSet) txsJSON {
	return txsJSON{A: graph.Keys(t.A), B: graph.Keys(t.B), Funding: graph.Keys(t.Funding)}
}

func fromTxsJSON(t txsJSON) graph.TxSet {
	set := graph.NewTxSet()
	graph.Union(set.A, t.A...)
	graph.Union(set.B, t.B...)
	graph.Union(set.Funding, t.Funding...)
	return set
}

func toNullSmallint(s graph.Side) *int16 {
	if !s.Valid {
		return nil
	}
	v := int16(s.Value)
	return &v
}

func fromNullSmallint(v *int16) graph.Side {
	if v == nil {
		return graph.Side{}
	}
	return graph.NewSide(uint8(*v))
}
