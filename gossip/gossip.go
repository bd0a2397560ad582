// Package gossip pulls the public channel and node listings from a
// Lightning node's RPC surface and upserts them into the store: channels,
// alias/feature history, and per-direction fee policies.
package gossip

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Config holds the gossip RPC endpoint and its bearer-style access token.
type Config struct {
	URL     string
	Token   string
	Timeout time.Duration
}

// ChannelListing is one entry of a listchannels response.
type ChannelListing struct {
	ShortChannelID      string `json:"short_channel_id"`
	Source              string `json:"source"`
	Destination         string `json:"destination"`
	Public              bool   `json:"public"`
	Satoshis            int64  `json:"satoshis"`
	LastUpdate          int64  `json:"last_update"`
	BaseFeeMillisatoshi int64  `json:"base_fee_millisatoshi"`
	FeePerMillionth     int64  `json:"fee_per_millionth"`
	Delay               uint32 `json:"delay"`
}

// NodeListing is one entry of a listnodes response.
type NodeListing struct {
	NodeID   string `json:"nodeid"`
	Alias    string `json:"alias"`
	Color    string `json:"color"`
	Features string `json:"features"`
}

// Client speaks the gossip RPC: a single HTTP POST endpoint dispatching on
// a JSON "method" field, carrying the access token as an X-Access header.
type Client struct {
	cfg Config
	http *http.Client
}

// NewClient builds a gossip RPC client.
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{cfg: cfg, http: &http.Client{Timeout: timeout}}
}

func (c *Client) call(ctx context.Context, method string, out interface{}) error {
	body, err := json.Marshal(map[string]string{"method": method})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("X-Access", c.cfg.Token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("gossip rpc %s: %w", method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("gossip rpc %s: status %d", method, resp.StatusCode)
	}

	return json.NewDecoder(resp.Body).Decode(out)
}

// ListChannels calls the "listchannels" method.
func (c *Client) ListChannels(ctx context.Context) ([]ChannelListing, error) {
	var result struct {
		Channels []ChannelListing `json:"channels"`
	}
	if err := c.call(ctx, "listchannels", &result); err != nil {
		return nil, err
	}
	return result.Channels, nil
}

// ListNodes calls the "listnodes" method.
func (c *Client) ListNodes(ctx context.Context) ([]NodeListing, error) {
	var result struct {
		Nodes []NodeListing `json:"nodes"`
	}
	if err := c.call(ctx, "listnodes", &result); err != nil {
		return nil, err
	}
	return result.Nodes, nil
}
