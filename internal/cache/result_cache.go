package cache

import (
	"context"
	"fmt"
	"sort"
	"sync/atomic"
	"time"

	"routeengine/internal/domain/models"

	"github.com/bluele/gcache"
	"golang.org/x/sync/singleflight"
)

// Signature is the structured cache key of a search. TimeBucket is the
// requested minute of day, or -1 when the query carries no time. Buckets are
// one minute wide: the first boarding depends on the exact minute, so wider
// buckets would hand one caller another caller's departures.
type Signature struct {
	Origin      string
	Destination string
	Preference  models.Preference
	TimeBucket  int
	MaxOptions  int
}

func (s Signature) String() string {
	return fmt.Sprintf("%s|%s|%s|%d|%d", s.Origin, s.Destination, s.Preference, s.TimeBucket, s.MaxOptions)
}

func SignatureOf(q models.SearchQuery) Signature {
	bucket := -1
	if q.HasTime() {
		bucket = q.TimeOfDay
	}
	return Signature{
		Origin:      q.OriginStopID,
		Destination: q.DestinationStopID,
		Preference:  q.Preference,
		TimeBucket:  bucket,
		MaxOptions:  q.MaxOptions,
	}
}

type entry struct {
	result     models.SearchResult
	generation uint64
}

type Stats struct {
	Size       int      `json:"size"`
	Keys       []string `json:"keys"`
	Generation uint64   `json:"generation"`
}

type Options struct {
	TTL  time.Duration
	Size int
	// Clock drives expiry; nil means wall clock.
	Clock gcache.Clock
}

// ResultCache is a read-through TTL cache of search results. InvalidateAll bumps
// a generation counter; entries from older generations read as misses.
type ResultCache struct {
	store      gcache.Cache
	generation atomic.Uint64
	group      singleflight.Group
}

func New(opts Options) *ResultCache {
	if opts.TTL <= 0 {
		opts.TTL = 5 * time.Minute
	}
	if opts.Size <= 0 {
		opts.Size = 1000
	}
	b := gcache.New(opts.Size).
		LRU().
		Expiration(opts.TTL)
	if opts.Clock != nil {
		b = b.Clock(opts.Clock)
	}
	return &ResultCache{store: b.Build()}
}

type ComputeFunc func(ctx context.Context) (models.SearchResult, error)

// GetOrCompute returns the cached result for sig or runs compute once for all
// concurrent callers of the same signature. hit reports whether the value came
// from the cache. Errors are never cached.
//
// compute runs detached from the caller's cancellation, so bound it with its
// own deadline. A caller whose ctx ends stops waiting; the others keep theirs.
func (c *ResultCache) GetOrCompute(ctx context.Context, sig Signature, compute ComputeFunc) (models.SearchResult, bool, error) {
	gen := c.generation.Load()
	if res, ok := c.lookup(sig, gen); ok {
		return res, true, nil
	}

	flightKey := fmt.Sprintf("%d/%s", gen, sig.String())
	detached := context.WithoutCancel(ctx)
	ch := c.group.DoChan(flightKey, func() (any, error) {
		if res, ok := c.lookup(sig, gen); ok {
			return res, nil
		}
		res, err := compute(detached)
		if err != nil {
			return models.SearchResult{}, err
		}
		_ = c.store.Set(sig, entry{result: res, generation: gen})
		return res, nil
	})

	select {
	case <-ctx.Done():
		return models.SearchResult{}, false, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return models.SearchResult{}, false, r.Err
		}
		return r.Val.(models.SearchResult), false, nil
	}
}

func (c *ResultCache) lookup(sig Signature, gen uint64) (models.SearchResult, bool) {
	v, err := c.store.Get(sig)
	if err != nil {
		return models.SearchResult{}, false
	}
	e, ok := v.(entry)
	if !ok || e.generation != gen {
		return models.SearchResult{}, false
	}
	return e.result, true
}

// InvalidateAll makes every existing entry stale in O(1).
func (c *ResultCache) InvalidateAll() uint64 {
	return c.generation.Add(1)
}

func (c *ResultCache) Generation() uint64 {
	return c.generation.Load()
}

// Stats counts live entries of the current generation.
func (c *ResultCache) Stats() Stats {
	gen := c.generation.Load()
	keys := []string{}
	for k, v := range c.store.GetALL(true) {
		sig, ok := k.(Signature)
		e, eok := v.(entry)
		if !ok || !eok || e.generation != gen {
			continue
		}
		keys = append(keys, sig.String())
	}
	sort.Strings(keys)
	return Stats{Size: len(keys), Keys: keys, Generation: gen}
}
