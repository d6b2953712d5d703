package esdex

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/esdex/internal/domain"
	"github.com/kailas-cloud/esdex/internal/engine"
)

// Locker is a distributed mutual-exclusion lock.
type Locker interface {
	// Acquire takes key for at most ttl. It fails with ErrLocked when
	// another holder owns the key.
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(context.Context) error, err error)
}

// RecordSource streams the records of a model in batches.
type RecordSource interface {
	EachBatch(ctx context.Context, m Model, size int, fn func([]Record) error) error
}

// AdminClient is the part of the engine a Reindexer talks to.
type AdminClient interface {
	SearchClient
	engine.AliasManager
}

// ReindexResult summarises a completed reindex.
type ReindexResult struct {
	Index    string   // the new index the alias now points at
	Imported int      // records sent
	Failed   int      // bulk items the engine rejected
	Cleaned  []string // old indices removed
}

// Reindexer rebuilds an alias onto a fresh timestamped index.
type Reindexer struct {
	client    AdminClient
	chunkSize int
	locker    Locker
	lockTTL   time.Duration
	logger    *zap.Logger
	obs       *observer
	now       func() time.Time
}

// NewReindexer creates a Reindexer over an injected client.
func NewReindexer(client AdminClient, opts ...Option) *Reindexer {
	cfg := newConfig(opts)
	obs, err := newObserver(cfg.logger, cfg.metricsReg)
	if err != nil {
		cfg.logger.Warn("metrics disabled", zap.Error(err))
		obs = &observer{logger: cfg.logger}
	}
	return newReindexer(client, cfg, obs)
}

func newReindexer(client AdminClient, cfg *config, obs *observer) *Reindexer {
	return &Reindexer{
		client:    client,
		chunkSize: cfg.reindexChunkSize,
		locker:    cfg.locker,
		lockTTL:   cfg.lockTTL,
		logger:    cfg.logger,
		obs:       obs,
		now:       time.Now,
	}
}

// Reindex creates a new index for m and its children, imports every record
// from source, points alias at the new index and removes old indices.
// Child models must be reindexed through their parent.
func (r *Reindexer) Reindex(ctx context.Context, alias string, m Model, source RecordSource) (res *ReindexResult, err error) {
	start := time.Now()
	defer func() { r.obs.observe("reindex", alias, start, err) }()

	if m.SearchOptions().Parent != nil {
		return nil, fmt.Errorf("reindex %s: %w", m.ModelName(), domain.ErrChildReindex)
	}
	if alias == "" {
		return nil, errors.New("reindex: alias is required")
	}

	if r.locker != nil {
		release, err := r.locker.Acquire(ctx, "esdex:reindex:"+alias, r.lockTTL)
		if err != nil {
			return nil, fmt.Errorf("reindex %s: %w", alias, err)
		}
		defer func() {
			if relErr := release(context.WithoutCancel(ctx)); relErr != nil {
				r.logger.Warn("release reindex lock", zap.String("alias", alias), zap.Error(relErr))
			}
		}()
	}

	body, err := Mapping(m)
	if err != nil {
		return nil, err
	}

	idx := newIndex(IndexName(alias, r.now()), r.client, &config{chunkSize: r.chunkSize}, r.obs)
	if err := idx.Create(ctx, body); err != nil {
		return nil, fmt.Errorf("reindex %s: %w", alias, err)
	}
	res = &ReindexResult{Index: idx.Name()}

	if err := r.fill(ctx, idx, m, source, res); err != nil {
		return nil, r.rollback(ctx, idx, err)
	}
	if err := idx.Refresh(ctx); err != nil {
		return nil, r.rollback(ctx, idx, err)
	}
	if err := r.swap(ctx, alias, idx.Name()); err != nil {
		return nil, r.rollback(ctx, idx, err)
	}

	cleaned, err := r.CleanIndices(ctx, alias)
	if err != nil {
		return res, fmt.Errorf("reindex %s: clean: %w", alias, err)
	}
	res.Cleaned = cleaned

	r.logger.Info("reindexed",
		zap.String("alias", alias),
		zap.String("index", res.Index),
		zap.Int("imported", res.Imported),
		zap.Int("failed", res.Failed),
		zap.Strings("cleaned", res.Cleaned),
	)
	return res, nil
}

func (r *Reindexer) fill(ctx context.Context, idx *Index, m Model, source RecordSource, res *ReindexResult) error {
	models := append([]Model{m}, m.SearchOptions().Children...)
	for _, mm := range models {
		err := source.EachBatch(ctx, mm, r.chunkSize, func(batch []Record) error {
			records := indexable(batch)
			if len(records) == 0 {
				return nil
			}
			responses, err := idx.Import(ctx, records)
			if err != nil {
				return err
			}
			res.Imported += len(records)
			for _, resp := range responses {
				res.Failed += len(resp.Failed())
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("import %s: %w", mm.ModelName(), err)
		}
	}
	return nil
}

// swap points alias at index atomically. A concrete index that carries the
// alias name is deleted first.
func (r *Reindexer) swap(ctx context.Context, alias, index string) error {
	current, err := r.client.IndicesForAlias(ctx, alias)
	if err != nil {
		return fmt.Errorf("swap alias: %w", err)
	}
	if len(current) == 0 {
		exists, err := r.client.IndexExists(ctx, alias)
		if err != nil {
			return fmt.Errorf("swap alias: %w", err)
		}
		if exists {
			if err := r.client.DeleteIndex(ctx, alias); err != nil {
				return fmt.Errorf("swap alias: %w", err)
			}
		}
	}

	actions := make([]engine.AliasAction, 0, len(current)+1)
	for _, old := range current {
		actions = append(actions, engine.AliasAction{Index: old, Alias: alias})
	}
	actions = append(actions, engine.AliasAction{Add: true, Index: index, Alias: alias})
	if err := r.client.UpdateAliases(ctx, actions); err != nil {
		return fmt.Errorf("swap alias: %w", err)
	}
	return nil
}

func (r *Reindexer) rollback(ctx context.Context, idx *Index, cause error) error {
	err := fmt.Errorf("reindex %s: %w", idx.Name(), cause)
	if delErr := idx.Delete(context.WithoutCancel(ctx)); delErr != nil {
		return errors.Join(err, fmt.Errorf("rollback: %w", delErr))
	}
	return err
}

// CleanIndices deletes timestamped indices of alias that no alias points
// at, and returns their names.
func (r *Reindexer) CleanIndices(ctx context.Context, alias string) (deleted []string, err error) {
	start := time.Now()
	defer func() { r.obs.observe("clean_indices", alias, start, err) }()

	byIndex, err := r.client.GetAliases(ctx, alias+"_*")
	if err != nil {
		if errors.Is(err, domain.ErrIndexNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("clean indices %s: %w", alias, err)
	}

	pattern := timestampedName(alias)
	var candidates []string
	for index, aliases := range byIndex {
		if len(aliases) == 0 && pattern.MatchString(index) {
			candidates = append(candidates, index)
		}
	}
	sort.Strings(candidates)

	for _, index := range candidates {
		if err := r.client.DeleteIndex(ctx, index); err != nil {
			return deleted, fmt.Errorf("clean indices %s: %w", alias, err)
		}
		deleted = append(deleted, index)
	}
	return deleted, nil
}

// IndexName returns the timestamped index name for alias at t:
// <alias>_YYYYMMDDhhmmssSSS in UTC.
func IndexName(alias string, t time.Time) string {
	t = t.UTC()
	return fmt.Sprintf("%s_%s%03d", alias, t.Format("20060102150405"), t.Nanosecond()/int(time.Millisecond))
}

// timestampedName matches both the 14 and 17 digit name formats.
func timestampedName(alias string) *regexp.Regexp {
	return regexp.MustCompile(`^` + regexp.QuoteMeta(alias) + `_\d{14,17}$`)
}

func indexable(batch []Record) []Record {
	out := batch[:0:0]
	for _, rec := range batch {
		if ix, ok := rec.(Indexable); ok && !ix.ShouldIndex() {
			continue
		}
		out = append(out, rec)
	}
	return out
}
