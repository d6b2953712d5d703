package esdex

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kailas-cloud/esdex/internal/engine/elastic"
)

// Client owns the engine connection and hands out Index and Reindexer
// handles that share it.
type Client struct {
	store *elastic.Store
	cfg   *config
	obs   *observer
}

// New creates a Client and waits for the cluster to respond.
func New(opts ...Option) (*Client, error) {
	cfg := newConfig(opts)

	store, err := createStore(cfg)
	if err != nil {
		return nil, err
	}

	obs, err := newObserver(cfg.logger, cfg.metricsReg)
	if err != nil {
		store.Close()
		return nil, err
	}

	if cfg.readinessTimeout > 0 {
		if err := store.WaitForReady(context.Background(), cfg.readinessTimeout); err != nil {
			store.Close()
			return nil, fmt.Errorf("esdex: cluster not ready: %w", err)
		}
	}

	return &Client{store: store, cfg: cfg, obs: obs}, nil
}

func createStore(cfg *config) (*elastic.Store, error) {
	if cfg.transport != nil {
		return elastic.NewStoreWithTransport(cfg.transport, cfg.logger), nil
	}
	if len(cfg.addresses) == 0 {
		return nil, errors.New("esdex: cluster address required (use WithAddresses or WithTransport)")
	}
	s, err := elastic.NewStore(elastic.Config{
		Addresses:  cfg.addresses,
		Username:   cfg.username,
		Password:   cfg.password,
		APIKey:     cfg.apiKey,
		MaxRetries: cfg.maxRetries,
		Logger:     cfg.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("esdex: create store: %w", err)
	}
	return s, nil
}

// Index returns a handle for the named index.
func (c *Client) Index(name string) *Index {
	return newIndex(name, c.store, c.cfg, c.obs)
}

// Reindexer returns a Reindexer over this client.
func (c *Client) Reindexer() *Reindexer {
	return newReindexer(c.store, c.cfg, c.obs)
}

// Ping checks cluster connectivity.
func (c *Client) Ping(ctx context.Context) (err error) {
	start := time.Now()
	defer func() { c.obs.observe("ping", "", start, err) }()

	if err := c.store.Ping(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// Close releases idle connections.
func (c *Client) Close() {
	if c.store != nil {
		c.store.Close()
	}
}
