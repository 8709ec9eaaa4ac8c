package influxdb

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"

	"github.com/nerrad567/ith-monitor-core/internal/infrastructure/config"
)

const (
	connectTimeout = 10 * time.Second
	pingTimeout    = 5 * time.Second

	defaultBatchSize     = 100
	defaultFlushInterval = 10 * time.Second
)

// Client mirrors accepted readings into one InfluxDB bucket. Writes are
// queued and batched; a failed batch is counted and handed to the SetOnError
// callback, never to the caller of WriteReading.
type Client struct {
	client   influxdb2.Client
	writeAPI api.WriteAPI

	open     atomic.Bool
	failures atomic.Uint64

	mu      sync.Mutex
	onError func(error)
}

// Connect pings cfg.URL and opens the batched write API. It returns
// ErrDisabled when the mirror is switched off.
func Connect(cfg config.InfluxDBConfig) (*Client, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}

	batch := uint(defaultBatchSize)
	if cfg.BatchSize > 0 {
		batch = uint(cfg.BatchSize) // #nosec G115 -- checked positive
	}
	flush := defaultFlushInterval
	if cfg.FlushInterval > 0 {
		flush = time.Duration(cfg.FlushInterval) * time.Second
	}

	client := influxdb2.NewClientWithOptions(cfg.URL, cfg.Token,
		influxdb2.DefaultOptions().
			SetBatchSize(batch).
			SetFlushInterval(uint(flush.Milliseconds())), // #nosec G115 -- positive duration
	)

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	if err := ping(ctx, client); err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	c := &Client{client: client, writeAPI: client.WriteAPI(cfg.Org, cfg.Bucket)}
	c.open.Store(true)
	go c.drainErrors(c.writeAPI.Errors())
	return c, nil
}

func ping(ctx context.Context, client influxdb2.Client) error {
	healthy, err := client.Ping(ctx)
	if err != nil {
		return fmt.Errorf("ping failed: %w", err)
	}
	if !healthy {
		return fmt.Errorf("server not healthy")
	}
	return nil
}

func (c *Client) drainErrors(errs <-chan error) {
	for err := range errs {
		c.failures.Add(1)
		c.mu.Lock()
		cb := c.onError
		c.mu.Unlock()
		if cb != nil {
			cb(err)
		}
	}
}

// SetOnError registers the callback for failed batches.
func (c *Client) SetOnError(cb func(error)) {
	c.mu.Lock()
	c.onError = cb
	c.mu.Unlock()
}

// WriteFailures returns how many batches the server has rejected so far.
func (c *Client) WriteFailures() uint64 {
	return c.failures.Load()
}

// Connected reports whether the client is open. Reachability is only
// checked by HealthCheck.
func (c *Client) Connected() bool {
	return c.open.Load()
}

// HealthCheck pings the server.
func (c *Client) HealthCheck(ctx context.Context) error {
	if !c.Connected() {
		return ErrNotConnected
	}
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := ping(ctx, c.client); err != nil {
		return fmt.Errorf("influxdb health check: %w", err)
	}
	return nil
}

// Flush sends queued points now. No-op once closed.
func (c *Client) Flush() {
	if c.Connected() {
		c.writeAPI.Flush()
	}
}

// Close flushes queued points and releases the client. Safe to call twice.
func (c *Client) Close() error {
	if !c.open.CompareAndSwap(true, false) {
		return nil
	}
	c.writeAPI.Flush()
	c.client.Close()
	return nil
}
