package esdex

import (
	"time"

	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

const (
	defaultReadinessTimeout = 10 * time.Second
	defaultReindexChunkSize = 1000
	defaultLockTTL          = 10 * time.Minute
)

// Option configures a Client, an Index or a Reindexer.
type Option interface {
	apply(*config)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*config)

func (f optionFunc) apply(c *config) { f(c) }

type config struct {
	addresses  []string
	username   string
	password   string
	apiKey     string
	maxRetries int
	transport  esapi.Transport

	readinessTimeout time.Duration

	chunkSize        int
	reindexChunkSize int

	locker  Locker
	lockTTL time.Duration

	logger     *zap.Logger
	metricsReg prometheus.Registerer
}

func newConfig(opts []Option) *config {
	c := &config{
		readinessTimeout: defaultReadinessTimeout,
		reindexChunkSize: defaultReindexChunkSize,
		lockTTL:          defaultLockTTL,
	}
	for _, o := range opts {
		o.apply(c)
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	return c
}

// WithAddresses sets the cluster node URLs.
func WithAddresses(addrs ...string) Option {
	return optionFunc(func(c *config) {
		c.addresses = append(c.addresses, addrs...)
	})
}

// WithBasicAuth sets HTTP basic credentials.
func WithBasicAuth(username, password string) Option {
	return optionFunc(func(c *config) {
		c.username = username
		c.password = password
	})
}

// WithAPIKey sets a base64-encoded API key.
func WithAPIKey(key string) Option {
	return optionFunc(func(c *config) {
		c.apiKey = key
	})
}

// WithMaxRetries sets how many times the transport retries a failed request.
func WithMaxRetries(n int) Option {
	return optionFunc(func(c *config) {
		c.maxRetries = n
	})
}

// WithTransport uses an existing transport instead of dialing addresses.
// An *elasticsearch.Client satisfies esapi.Transport.
func WithTransport(tp esapi.Transport) Option {
	return optionFunc(func(c *config) {
		c.transport = tp
	})
}

// WithReadinessTimeout bounds how long New waits for the cluster.
// Zero skips the readiness check.
func WithReadinessTimeout(d time.Duration) Option {
	return optionFunc(func(c *config) {
		c.readinessTimeout = d
	})
}

// WithChunkSize splits each per-type Import batch into bulk requests of at
// most n records. Zero (default) sends one request per type.
func WithChunkSize(n int) Option {
	return optionFunc(func(c *config) {
		c.chunkSize = n
	})
}

// WithReindexChunkSize sets how many records a reindex imports per bulk
// request. Default: 1000.
func WithReindexChunkSize(n int) Option {
	return optionFunc(func(c *config) {
		c.reindexChunkSize = n
	})
}

// WithLocker guards reindexing of an alias with a distributed lock. ttl is
// the lease length, which bounds how long a crashed holder blocks others.
// Pass a zero ttl to keep the default of ten minutes.
func WithLocker(l Locker, ttl time.Duration) Option {
	return optionFunc(func(c *config) {
		c.locker = l
		if ttl > 0 {
			c.lockTTL = ttl
		}
	})
}

// WithLogger enables structured logging. Default: no-op.
func WithLogger(l *zap.Logger) Option {
	return optionFunc(func(c *config) {
		c.logger = l
	})
}

// WithPrometheus registers operation metrics (counts and durations)
// on the given registerer. Pass nil to disable (default).
func WithPrometheus(reg prometheus.Registerer) Option {
	return optionFunc(func(c *config) {
		c.metricsReg = reg
	})
}
