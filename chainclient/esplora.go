package chainclient

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"time"

	"github.com/lightningnetwork/lnchannels/errs"
	"golang.org/x/time/rate"
)

// EsploraConfig holds the set of mirror base URLs to try. The configured
// order is not significant: each lookup tries the mirrors in a fresh
// random order.
type EsploraConfig struct {
	Mirrors      []string
	Timeout      time.Duration
	RateLimitRPS float64
}

// esploraClient implements the outspends lookup half of Client, failing
// over across a configured list of mirrors per spec.md's "tried in random
// order until one succeeds".
type esploraClient struct {
	mirrors []string
	http    *http.Client
	limiter *rate.Limiter
}

// NewEsploraClient builds an Esplora client over the configured mirrors.
func NewEsploraClient(cfg EsploraConfig) (*esploraClient, error) {
	if len(cfg.Mirrors) == 0 {
		return nil, fmt.Errorf("esplora: at least one mirror is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	rps := cfg.RateLimitRPS
	if rps <= 0 {
		rps = 10
	}

	return &esploraClient{
		mirrors: append([]string(nil), cfg.Mirrors...),
		http:    &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(rate.Limit(rps), int(rps)+1),
	}, nil
}

// GetOutspends calls GET {mirror}/tx/{txid}/outspends, failing over across
// mirrors in random order. A persistent failure across every mirror raises
// a KindTransientRPC error, which callers treat as "skip this item".
func (c *esploraClient) GetOutspends(ctx context.Context, txid string) ([]Outspend, error) {
	path := fmt.Sprintf("/tx/%s/outspends", txid)

	order := rand.Perm(len(c.mirrors))
	var lastErr error
	for _, idx := range order {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, errs.Wrap(errs.KindTransientRPC, err)
		}

		outspends, err := c.fetchOutspends(ctx, c.mirrors[idx]+path)
		if err != nil {
			log.Warnf("esplora mirror %s failed for %s: %v", c.mirrors[idx], txid, err)
			lastErr = err
			continue
		}
		return outspends, nil
	}

	return nil, errs.Wrap(errs.KindTransientRPC, fmt.Errorf("all esplora mirrors failed: %w", lastErr))
}

func (c *esploraClient) fetchOutspends(ctx context.Context, url string) ([]Outspend, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("esplora returned status %d", resp.StatusCode)
	}

	var raw []struct {
		Spent bool   `json:"spent"`
		Txid  string `json:"txid"`
		Vin   uint32 `json:"vin"`
		Status struct {
			Confirmed   bool  `json:"confirmed"`
			BlockHeight int64 `json:"block_height"`
			BlockTime   int64 `json:"block_time"`
		} `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, err
	}

	out := make([]Outspend, len(raw))
	for i, r := range raw {
		out[i] = Outspend{
			Spent: r.Spent,
			Txid:  r.Txid,
			Vin:   r.Vin,
			Status: OutspendStatus{
				Confirmed:   r.Status.Confirmed,
				BlockHeight: r.Status.BlockHeight,
				BlockTime:   r.Status.BlockTime,
			},
		}
	}
	return out, nil
}
