// Package elastic implements engine.Client against Elasticsearch.
//
// Index-level calls go through esapi. Document calls address typed paths
// (/{index}/{type}/{id}) and are sent through the same transport.
package elastic

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/elastic/elastic-transport-go/v8/elastictransport"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"go.uber.org/zap"

	"github.com/kailas-cloud/esdex/internal/engine"
)

// Compile-time check: Store implements engine.Client.
var _ engine.Client = (*Store)(nil)

// Config holds connection parameters for an Elasticsearch cluster.
type Config struct {
	Addresses  []string
	Username   string
	Password   string
	APIKey     string
	MaxRetries int
	Logger     *zap.Logger
}

// Store implements engine.Client.
type Store struct {
	tp     esapi.Transport
	idle   *http.Transport
	logger *zap.Logger
}

// NewStore creates a store with its own transport.
func NewStore(cfg Config) (*Store, error) {
	if len(cfg.Addresses) == 0 {
		return nil, errors.New("addresses is required")
	}

	urls := make([]*url.URL, 0, len(cfg.Addresses))
	for _, addr := range cfg.Addresses {
		u, err := url.Parse(addr)
		if err != nil {
			return nil, fmt.Errorf("parse address %q: %w", addr, err)
		}
		urls = append(urls, u)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	httpTransport := http.DefaultTransport.(*http.Transport).Clone()
	tp, err := elastictransport.New(elastictransport.Config{
		URLs:       urls,
		Username:   cfg.Username,
		Password:   cfg.Password,
		APIKey:     cfg.APIKey,
		MaxRetries: cfg.MaxRetries,
		Transport:  httpTransport,
		Logger:     NewTransportLogger(logger),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create transport: %w", err)
	}

	return &Store{tp: tp, idle: httpTransport, logger: logger}, nil
}

// NewStoreWithTransport wraps an existing transport, such as an
// *elasticsearch.Client or a test double.
func NewStoreWithTransport(tp esapi.Transport, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{tp: tp, logger: logger}
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	res, err := esapi.PingRequest{}.Do(ctx, s.tp)
	if err != nil {
		return &engine.Error{Op: engine.OpPing, Err: err}
	}
	defer closeBody(res)
	if res.IsError() {
		return &engine.Error{Op: engine.OpPing, Status: res.StatusCode}
	}
	return nil
}

// Close releases idle connections of a transport created by NewStore.
func (s *Store) Close() {
	if s.idle != nil {
		s.idle.CloseIdleConnections()
	}
}

// WaitForReady polls Ping until the cluster responds or timeout expires.
func (s *Store) WaitForReady(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("timeout waiting for elasticsearch: %w", ctx.Err())
		case <-ticker.C:
			if err := s.Ping(ctx); err == nil {
				return nil
			}
		}
	}
}
