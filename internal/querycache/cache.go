// Package querycache keeps the last fetched task collection per filter set.
//
// Reads of the same filter share one in-flight request. Any successful
// mutation must be followed by Invalidate, which bumps a generation counter
// that every entry is checked against: entries from an older generation are
// never served again, and responses for requests issued before the bump are
// not stored.
package querycache

import (
	"context"
	"errors"
	"slices"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"taskboard/internal/apiclient"
	"taskboard/internal/logging"
	"taskboard/internal/models"
)

// ErrClosed is returned by reads after Close.
var ErrClosed = errors.New("query cache closed")

// Fetcher is the read side of the task repository client.
type Fetcher interface {
	List(ctx context.Context, filter models.TaskFilter) ([]models.Task, error)
}

type Config struct {
	// StaleTime is the freshness window. Older entries are still served but
	// trigger a background refresh.
	StaleTime time.Duration `mapstructure:"stale_time"`
	// Retries is how many extra attempts a transient failure gets.
	Retries      int           `mapstructure:"retries"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff"`
	// FetchTimeout bounds a single fetch, including its retry.
	FetchTimeout time.Duration `mapstructure:"fetch_timeout"`
	MaxEntries   int           `mapstructure:"max_entries"`
}

func DefaultConfig() Config {
	return Config{
		StaleTime:    time.Minute,
		Retries:      1,
		RetryBackoff: 200 * time.Millisecond,
		FetchTimeout: 30 * time.Second,
		MaxEntries:   64,
	}
}

type Option func(*Cache)

func WithLogger(l *zap.Logger) Option {
	return func(c *Cache) { c.log = l }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// WithRefreshErrorHandler is called once for every failed background refresh.
func WithRefreshErrorHandler(fn func(filter models.TaskFilter, err error)) Option {
	return func(c *Cache) { c.onRefreshError = fn }
}

// WithRefreshHandler is called with the stored collection after a background
// refresh lands, so a view showing the stale value can redraw.
func WithRefreshHandler(fn func(filter models.TaskFilter, tasks []models.Task)) Option {
	return func(c *Cache) { c.onRefresh = fn }
}

type entry struct {
	tasks      []models.Task
	fetchedAt  time.Time
	generation uint64
	seq        uint64
}

type Cache struct {
	fetcher        Fetcher
	cfg            Config
	log            *zap.Logger
	now            func() time.Time
	onRefreshError func(models.TaskFilter, error)
	onRefresh      func(models.TaskFilter, []models.Task)
	flights        singleflight.Group

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu         sync.Mutex
	entries    map[string]*entry
	refreshing map[string]bool
	generation uint64
	seq        uint64
	closed     bool
}

// New creates a cache in front of fetcher. Call Close when done.
func New(fetcher Fetcher, cfg Config, opts ...Option) *Cache {
	def := DefaultConfig()
	if cfg.StaleTime < 0 {
		cfg.StaleTime = 0
	}
	if cfg.Retries < 0 {
		cfg.Retries = 0
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = def.FetchTimeout
	}
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = def.MaxEntries
	}
	ctx, cancel := context.WithCancel(context.Background())
	c := &Cache{
		fetcher:    fetcher,
		cfg:        cfg,
		log:        zap.NewNop(),
		now:        time.Now,
		ctx:        ctx,
		cancel:     cancel,
		entries:    make(map[string]*entry),
		refreshing: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Key returns the normalized cache key of filter: its canonical query string.
func Key(filter models.TaskFilter) (string, error) {
	q, err := apiclient.EncodeFilter(filter)
	if err != nil {
		return "", err
	}
	return q.Encode(), nil
}

// Get returns the collection for filter. A current entry is returned at once
// (starting a background refresh when it is past StaleTime); otherwise the
// call waits for a fetch, joining one already in flight for the same key.
func (c *Cache) Get(ctx context.Context, filter models.TaskFilter) ([]models.Task, error) {
	key, err := Key(filter)
	if err != nil {
		return nil, &apiclient.ValidationError{Field: "filter", Message: err.Error()}
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	if e := c.entries[key]; e != nil && e.generation == c.generation {
		tasks := slices.Clone(e.tasks)
		stale := c.now().Sub(e.fetchedAt) >= c.cfg.StaleTime
		c.mu.Unlock()
		if stale {
			c.refreshInBackground(key, filter)
		}
		return tasks, nil
	}
	gen := c.generation
	c.mu.Unlock()

	return c.wait(ctx, c.flight(ctx, key, filter, gen))
}

// Refetch ignores any current entry and waits for fresh data, joining a
// request already in flight for the same key.
func (c *Cache) Refetch(ctx context.Context, filter models.TaskFilter) ([]models.Task, error) {
	key, err := Key(filter)
	if err != nil {
		return nil, &apiclient.ValidationError{Field: "filter", Message: err.Error()}
	}
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	gen := c.generation
	c.mu.Unlock()

	return c.wait(ctx, c.flight(ctx, key, filter, gen))
}

// Peek returns the current entry for filter without fetching. ok is false when
// there is none or it was invalidated.
func (c *Cache) Peek(filter models.TaskFilter) (tasks []models.Task, fetchedAt time.Time, ok bool) {
	key, err := Key(filter)
	if err != nil {
		return nil, time.Time{}, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	e := c.entries[key]
	if e == nil || e.generation != c.generation {
		return nil, time.Time{}, false
	}
	return slices.Clone(e.tasks), e.fetchedAt, true
}

// Invalidate marks every entry as no longer authoritative. The next read of
// any key fetches, and responses to requests issued before this call are
// discarded instead of stored.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.generation++
	gen := c.generation
	n := len(c.entries)
	c.mu.Unlock()
	c.log.Debug("[cache][invalidate]", zap.Uint64("generation", gen), zap.Int("entries", n))
}

// Close stops background refreshes and waits for them to exit.
func (c *Cache) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()
	c.cancel()
	c.wg.Wait()
}

func (c *Cache) wait(ctx context.Context, ch <-chan singleflight.Result) ([]models.Task, error) {
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return slices.Clone(res.Val.([]models.Task)), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// flight starts or joins the request for key in generation gen. The request
// runs on the cache's own context so one caller giving up does not fail the
// others sharing it.
func (c *Cache) flight(ctx context.Context, key string, filter models.TaskFilter, gen uint64) <-chan singleflight.Result {
	reqID := logging.RequestID(ctx)
	return c.flights.DoChan(strconv.FormatUint(gen, 10)+"|"+key, func() (interface{}, error) {
		return c.load(logging.WithRequestID(c.ctx, reqID), key, filter, gen)
	})
}

func (c *Cache) load(ctx context.Context, key string, filter models.TaskFilter, gen uint64) ([]models.Task, error) {
	c.mu.Lock()
	c.seq++
	seq := c.seq
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, c.cfg.FetchTimeout)
	defer cancel()
	log := logging.For(ctx, c.log).With(zap.String("key", key), zap.Uint64("seq", seq))

	var (
		tasks []models.Task
		err   error
	)
	for attempt := 1; ; attempt++ {
		tasks, err = c.fetcher.List(ctx, filter)
		if err == nil || attempt > c.cfg.Retries || !apiclient.IsTransient(err) {
			break
		}
		log.Warn("[cache][fetch][retry]", zap.Int("attempt", attempt), zap.Error(err))
		select {
		case <-ctx.Done():
			return nil, err
		case <-time.After(c.cfg.RetryBackoff):
		}
	}
	if err != nil {
		log.Error("[cache][fetch][err]", zap.Error(err))
		return nil, err
	}
	if tasks == nil {
		tasks = []models.Task{}
	}

	if c.store(key, gen, seq, tasks) {
		log.Debug("[cache][fetch][ok]", zap.Int("count", len(tasks)))
	} else {
		log.Debug("[cache][fetch][discarded]", zap.Int("count", len(tasks)))
	}
	return tasks, nil
}

// store records a response unless it has been superseded: by an invalidation
// since the request was issued, or by a later request for the same key that
// already resolved.
func (c *Cache) store(key string, gen, seq uint64, tasks []models.Task) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.generation {
		return false
	}
	if e := c.entries[key]; e != nil && e.generation == gen && e.seq > seq {
		return false
	}
	c.entries[key] = &entry{
		tasks:      slices.Clone(tasks),
		fetchedAt:  c.now(),
		generation: gen,
		seq:        seq,
	}
	c.evictLocked()
	return true
}

// evictLocked drops invalidated entries first, then the oldest ones, until the
// map fits MaxEntries.
func (c *Cache) evictLocked() {
	if len(c.entries) <= c.cfg.MaxEntries {
		return
	}
	for k, e := range c.entries {
		if e.generation != c.generation {
			delete(c.entries, k)
		}
	}
	for len(c.entries) > c.cfg.MaxEntries {
		var (
			oldestKey string
			oldest    time.Time
			found     bool
		)
		for k, e := range c.entries {
			if !found || e.fetchedAt.Before(oldest) {
				oldestKey, oldest, found = k, e.fetchedAt, true
			}
		}
		delete(c.entries, oldestKey)
	}
}

func (c *Cache) refreshInBackground(key string, filter models.TaskFilter) {
	c.mu.Lock()
	if c.closed || c.refreshing[key] {
		c.mu.Unlock()
		return
	}
	c.refreshing[key] = true
	gen := c.generation
	c.wg.Add(1)
	c.mu.Unlock()

	go func() {
		defer c.wg.Done()
		defer func() {
			c.mu.Lock()
			delete(c.refreshing, key)
			c.mu.Unlock()
		}()
		res := <-c.flight(c.ctx, key, filter, gen)
		if res.Err != nil {
			if c.onRefreshError != nil {
				c.onRefreshError(filter, res.Err)
			}
			return
		}
		if c.onRefresh == nil {
			return
		}
		// only report what is now current: an invalidation since the
		// refresh started means the response was discarded
		c.mu.Lock()
		e := c.entries[key]
		var tasks []models.Task
		current := e != nil && e.generation == gen && gen == c.generation
		if current {
			tasks = slices.Clone(e.tasks)
		}
		c.mu.Unlock()
		if current {
			c.onRefresh(filter, tasks)
		}
	}()
}
