// Package entropy provides the random sources that drive outbreaks: a seeded
// PCG for reproducible runs, and true randomness from random.org with a
// crypto/rand fallback when the API is unavailable.
package entropy

import (
	"bytes"
	crand "crypto/rand"
	"encoding/binary"
	"encoding/json"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"sync"
	"time"
)

// DefaultEndpoint is the random.org JSON-RPC endpoint.
const DefaultEndpoint = "https://api.random.org/json-rpc/4/invoke"

// Refill tuning.
const (
	refillBelow = 10
	batchSize   = 100
)

// Rand is the draw interface shared by every source in this package.
type Rand interface {
	Float64() float64
	IntN(n int) int
}

// NewSeeded returns a deterministic PCG generator.
func NewSeeded(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// Client provides true random numbers from random.org with a local pool.
type Client struct {
	apiKey   string
	endpoint string
	client   *http.Client

	mu   sync.Mutex
	pool []float64

	fetched  int
	fallback int
}

// NewClient creates a random.org client. Returns nil if apiKey is empty.
func NewClient(apiKey string) *Client {
	if apiKey == "" {
		return nil
	}
	return &Client{
		apiKey:   apiKey,
		endpoint: DefaultEndpoint,
		client:   &http.Client{Timeout: 15 * time.Second},
	}
}

// WithEndpoint points the client at a different JSON-RPC server.
func (c *Client) WithEndpoint(url string) *Client {
	if c != nil {
		c.endpoint = url
	}
	return c
}

// Float64 returns a random float64 in [0, 1). Uses the pool, refilling from
// random.org when low. Falls back to crypto/rand on API failure.
func (c *Client) Float64() float64 {
	if c == nil {
		return cryptoRandFloat()
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.pool) < refillBelow {
		c.refill()
	}

	if len(c.pool) == 0 {
		c.fallback++
		return cryptoRandFloat()
	}

	val := c.pool[0]
	c.pool = c.pool[1:]
	return val
}

// IntN returns a uniform int in [0, n). It panics if n <= 0, like math/rand.
func (c *Client) IntN(n int) int {
	return scaleInt(c.Float64(), n)
}

// Stats reports how many values were fetched and how many draws fell back.
func (c *Client) Stats() (fetched, fallback, pooled int) {
	if c == nil {
		return 0, 0, 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fetched, c.fallback, len(c.pool)
}

func (c *Client) refill() {
	req := map[string]any{
		"jsonrpc": "2.0",
		"method":  "generateDecimalFractions",
		"params": map[string]any{
			"apiKey":        c.apiKey,
			"n":             batchSize,
			"decimalPlaces": 6,
		},
		"id": 1,
	}

	body, err := json.Marshal(req)
	if err != nil {
		slog.Debug("random.org marshal failed", "error", err)
		return
	}

	resp, err := c.client.Post(c.endpoint, "application/json", bytes.NewReader(body))
	if err != nil {
		slog.Debug("random.org fetch failed", "error", err)
		return
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		slog.Debug("random.org read failed", "error", err)
		return
	}

	var result struct {
		Result struct {
			Random struct {
				Data []float64 `json:"data"`
			} `json:"random"`
		} `json:"result"`
		Error *struct {
			Message string `json:"message"`
		} `json:"error"`
	}

	if err := json.Unmarshal(respBody, &result); err != nil {
		slog.Debug("random.org parse failed", "error", err)
		return
	}

	if result.Error != nil {
		slog.Debug("random.org API error", "error", result.Error.Message)
		return
	}

	for _, v := range result.Result.Random.Data {
		if v >= 0 && v < 1 {
			c.pool = append(c.pool, v)
		}
	}
	c.fetched += len(result.Result.Random.Data)
	slog.Debug("random.org pool refilled", "count", len(result.Result.Random.Data))
}

// Crypto draws straight from crypto/rand.
type Crypto struct{}

func (Crypto) Float64() float64 { return cryptoRandFloat() }
func (Crypto) IntN(n int) int { return scaleInt(cryptoRandFloat(), n) }

// Source picks the run's random source: random.org when a key is given,
// otherwise a PCG seeded with seed, otherwise crypto/rand.
func Source(apiKey string, seed uint64) Rand {
	if c := NewClient(apiKey); c != nil {
		return c
	}
	if seed != 0 {
		return NewSeeded(seed)
	}
	return Crypto{}
}

// cryptoRandFloat generates a random float64 using crypto/rand as fallback.
func cryptoRandFloat() float64 {
	var buf [8]byte
	_, err := crand.Read(buf[:])
	if err != nil {
		return 0.5
	}
	// Use only 53 bits for a uniform float64 in [0, 1).
	n := binary.LittleEndian.Uint64(buf[:]) >> 11
	return float64(n) / float64(1<<53)
}

func scaleInt(f float64, n int) int {
	if n <= 0 {
		panic("entropy: invalid argument to IntN")
	}
	i := int(f * float64(n))
	if i >= n {
		i = n - 1
	}
	return i
}
