package chainclient

import "context"

// composite glues the full-node RPC leg and the Esplora leg together
// behind the single Client interface the rest of the pipeline consumes.
type composite struct {
	rpc     *bitcoindClient
	esplora *esploraClient
}

// New builds the combined chain client from its two backends.
func New(rpc *bitcoindClient, esplora *esploraClient) Client {
	return &composite{rpc: rpc, esplora: esplora}
}

func (c *composite) GetBlockAt(ctx context.Context, height int64) (*Block, error) {
	return c.rpc.GetBlockAt(ctx, height)
}

func (c *composite) GetTx(ctx context.Context, txid string) (*Tx, error) {
	return c.rpc.GetTx(ctx, txid)
}

func (c *composite) DecodeScript(ctx context.Context, hexScript string) (*DecodedScript, error) {
	return c.rpc.DecodeScript(ctx, hexScript)
}

func (c *composite) GetOutspends(ctx context.Context, txid string) ([]Outspend, error) {
	return c.esplora.GetOutspends(ctx, txid)
}

func (c *composite) Tip(ctx context.Context) (int64, error) {
	return c.rpc.Tip(ctx)
}
