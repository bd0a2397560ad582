package chainclient

import (
	"context"
	"encoding/json"

	"github.com/btcsuite/btcd/btcjson"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/rpcclient"
	"github.com/lightningnetwork/lnchannels/errs"
	"golang.org/x/time/rate"
)

// RPCConfig holds the connection parameters for the Bitcoin full-node
// JSON-RPC endpoint.
type RPCConfig struct {
	Host         string
	User         string
	Pass         string
	DisableTLS   bool
	RateLimitRPS float64
}

// bitcoindClient implements the full-node half of Client by wrapping
// btcsuite/btcd/rpcclient, the same JSON-RPC surface the teacher's
// chainregistry.go drives against btcd/bitcoind.
type bitcoindClient struct {
	rpc     *rpcclient.Client
	limiter *rate.Limiter
}

// NewRPCClient dials the configured full-node RPC endpoint.
func NewRPCClient(cfg RPCConfig) (*bitcoindClient, error) {
	connCfg := &rpcclient.ConnConfig{
		Host:         cfg.Host,
		User:         cfg.User,
		Pass:         cfg.Pass,
		HTTPPostMode: true,
		DisableTLS:   cfg.DisableTLS,
	}

	client, err := rpcclient.New(connCfg, nil)
	if err != nil {
		return nil, errs.Wrap(errs.KindTransientRPC, err)
	}

	rps := cfg.RateLimitRPS
	if rps <= 0 {
		rps = 25
	}

	return &bitcoindClient{
		rpc:     client,
		limiter: rate.NewLimiter(rate.Limit(rps), int(rps)+1),
	}, nil
}

func (c *bitcoindClient) wait(ctx context.Context) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return errs.Wrap(errs.KindTransientRPC, err)
	}
	return nil
}

// Tip returns getblockchaininfo().blocks.
func (c *bitcoindClient) Tip(ctx context.Context) (int64, error) {
	if err := c.wait(ctx); err != nil {
		return 0, err
	}
	info, err := c.rpc.GetBlockChainInfo()
	if err != nil {
		log.Errorf("getblockchaininfo failed: %v", err)
		return 0, errs.Wrap(errs.KindTransientRPC, err)
	}
	return int64(info.Blocks), nil
}

// GetBlockAt fetches getblockhash(height) then getblock(hash, 2).
func (c *bitcoindClient) GetBlockAt(ctx context.Context, height int64) (*Block, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	hash, err := c.rpc.GetBlockHash(height)
	if err != nil {
		log.Errorf("getblockhash(%d) failed: %v", height, err)
		return nil, errs.Wrap(errs.KindTransientRPC, err)
	}

	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	raw, err := c.rpc.RawRequest("getblock", []json.RawMessage{
		quoteJSON(hash.String()), json.RawMessage("2"),
	})
	if err != nil {
		log.Errorf("getblock(%s, 2) failed: %v", hash, err)
		return nil, errs.Wrap(errs.KindTransientRPC, err)
	}

	var verbose btcjson.GetBlockVerboseTxResult
	if err := json.Unmarshal(raw, &verbose); err != nil {
		return nil, errs.Wrap(errs.KindTransientRPC, err)
	}

	return blockFromVerbose(height, &verbose), nil
}

// GetTx fetches getrawtransaction(txid, true).
func (c *bitcoindClient) GetTx(ctx context.Context, txid string) (*Tx, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}

	hash, err := chainhash.NewHashFromStr(txid)
	if err != nil {
		return nil, errs.Wrap(errs.KindTransientRPC, err)
	}

	raw, err := c.rpc.GetRawTransactionVerbose(hash)
	if err != nil {
		log.Errorf("getrawtransaction(%s) failed: %v", txid, err)
		return nil, errs.Wrap(errs.KindTransientRPC, err)
	}

	return txFromVerbose(raw), nil
}

// DecodeScript fetches decodescript(hex).
func (c *bitcoindClient) DecodeScript(ctx context.Context, hexScript string) (*DecodedScript, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}

	raw, err := c.rpc.RawRequest("decodescript", []json.RawMessage{quoteJSON(hexScript)})
	if err != nil {
		log.Errorf("decodescript(%s) failed: %v", hexScript, err)
		return nil, errs.Wrap(errs.KindTransientRPC, err)
	}

	var result struct {
		Asm string `json:"asm"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, errs.Wrap(errs.KindTransientRPC, err)
	}

	return &DecodedScript{Asm: result.Asm}, nil
}

func quoteJSON(s string) json.RawMessage {
	b, _ := json.Marshal(s)
	return b
}

func blockFromVerbose(height int64, v *btcjson.GetBlockVerboseTxResult) *Block {
	b := &Block{
		Height: height,
		Hash:   v.Hash,
		Time:   v.Time,
		Tx:     make([]Tx, len(v.Tx)),
	}
	for i, tx := range v.Tx {
		b.Tx[i] = txFromRawTxResult(&tx, v.Time)
	}
	return b
}

func txFromVerbose(v *btcjson.TxRawResult) *Tx {
	return txFromRawTxResult(v, v.Blocktime)
}

func txFromRawTxResult(v *btcjson.TxRawResult, blockTime int64) Tx {
	tx := Tx{
		Txid:      v.Txid,
		BlockTime: blockTime,
		Vin:       make([]Vin, len(v.Vin)),
		Vout:      make([]Vout, len(v.Vout)),
	}
	for i, vin := range v.Vin {
		tx.Vin[i] = Vin{
			Txid:        vin.Txid,
			Vout:        vin.Vout,
			TxInWitness: vin.Witness,
			Coinbase:    vin.Coinbase,
		}
	}
	for i, vout := range v.Vout {
		tx.Vout[i] = Vout{
			N:     vout.N,
			Value: vout.Value,
			ScriptPubKey: ScriptPubKey{
				Type:      vout.ScriptPubKey.Type,
				Addresses: addressesOf(vout.ScriptPubKey),
			},
		}
	}
	return tx
}

func addressesOf(spk btcjson.ScriptPubKeyResult) []string {
	if spk.Address != "" {
		return []string{spk.Address}
	}
	if len(spk.Addresses) > 0 {
		return spk.Addresses
	}
	return nil
}
