// Package resilience routes vector operations to the primary backend and
// fails over to the in-process fallback store when the primary stays
// unreachable after a bounded number of retries.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nikhilbhutani/ragvault/internal/apperr"
	"github.com/nikhilbhutani/ragvault/internal/config"
	"github.com/nikhilbhutani/ragvault/internal/vectorstore"
)

// Mode says which backend serves operations.
type Mode string

const (
	ModePrimary  Mode = "primary"
	ModeFallback Mode = "fallback"
)

// Config bounds retries and decides whether failover is allowed.
type Config struct {
	Dimension         int
	Strict            bool
	FallbackEnabled   bool
	MaxAttempts       int
	FallbackAttempts  int
	BootstrapAttempts int
	BaseDelay         time.Duration
	MaxDelay          time.Duration
}

// ConfigFrom maps the loaded resilience settings onto a controller config.
func ConfigFrom(r config.ResilienceConfig, dimension int) Config {
	return Config{
		Dimension:         dimension,
		Strict:            r.Strict,
		FallbackEnabled:   r.FallbackEnabled,
		MaxAttempts:       r.MaxAttempts,
		FallbackAttempts:  r.FallbackAttempts,
		BootstrapAttempts: r.BootstrapAttempts,
		BaseDelay:         r.BaseDelay,
		MaxDelay:          r.MaxDelay,
	}
}

// Status is a read-only snapshot for health reporting.
type Status struct {
	Mode            Mode   `json:"mode"`
	Primary         string `json:"primary"`
	Fallback        string `json:"fallback"`
	CollectionReady bool   `json:"collection_ready"`
	Strict          bool   `json:"strict"`
}

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// Option configures a Controller.
type Option func(*Controller)

// WithSleeper replaces the backoff wait, mostly for tests.
func WithSleeper(s Sleeper) Option {
	return func(c *Controller) { c.sleep = s }
}

// Controller owns the primary/fallback mode. Build one per process and share it.
type Controller struct {
	primary  vectorstore.Backend
	fallback vectorstore.Backend
	cfg      Config
	logger   *slog.Logger
	sleep    Sleeper

	mu              sync.Mutex
	mode            Mode
	collectionReady bool
}

// New builds a controller. A nil primary pins the controller to the fallback store.
func New(primary, fallback vectorstore.Backend, cfg Config, logger *slog.Logger, opts ...Option) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	cfg.MaxAttempts = max(1, cfg.MaxAttempts)
	cfg.FallbackAttempts = max(1, cfg.FallbackAttempts)
	cfg.BootstrapAttempts = max(1, cfg.BootstrapAttempts)

	c := &Controller{
		primary:  primary,
		fallback: fallback,
		cfg:      cfg,
		logger:   logger.With("component", "resilience"),
		sleep:    sleepContext,
		mode:     ModePrimary,
	}
	if primary == nil {
		c.mode = ModeFallback
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func sleepContext(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

// Dimension is the vector size every stored and queried vector is fitted to.
func (c *Controller) Dimension() int { return c.cfg.Dimension }

// Status reports the current mode and backend names.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Status{
		Mode:            c.mode,
		CollectionReady: c.collectionReady,
		Strict:          c.cfg.Strict,
	}
	if c.primary != nil {
		s.Primary = c.primary.Name()
	}
	if c.fallback != nil {
		s.Fallback = c.fallback.Name()
	}
	return s
}

// Bootstrap probes the primary once at startup. A failure is only logged;
// whether to fail over is decided by the first real operation.
func (c *Controller) Bootstrap(ctx context.Context) error {
	if c.primary == nil {
		return nil
	}
	var err error
	for attempt := 0; attempt < c.cfg.BootstrapAttempts; attempt++ {
		if attempt > 0 {
			if serr := c.sleep(ctx, c.backoff(attempt)); serr != nil {
				return serr
			}
		}
		if err = c.ensureCollection(ctx); err == nil {
			c.logger.Info("vector collection ready", "backend", c.primary.Name())
			return nil
		}
	}
	c.logger.Warn("vector backend not reachable at startup", "backend", c.primary.Name(), "error", err)
	return err
}

func (c *Controller) Add(ctx context.Context, chunk vectorstore.Chunk, vector []float32) error {
	return c.Upsert(ctx, []vectorstore.Point{{Chunk: chunk, Vector: vector}})
}

func (c *Controller) Upsert(ctx context.Context, points []vectorstore.Point) error {
	if len(points) == 0 {
		return nil
	}
	fitted := make([]vectorstore.Point, len(points))
	for i, p := range points {
		fitted[i] = vectorstore.Point{Chunk: p.Chunk, Vector: c.Fit(p.Vector)}
	}
	_, err := execute(ctx, c, "upsert", func(ctx context.Context, b vectorstore.Backend) (struct{}, error) {
		return struct{}{}, b.Upsert(ctx, fitted)
	})
	return err
}

func (c *Controller) Search(ctx context.Context, vector []float32, topK int) ([]vectorstore.SearchResult, error) {
	fitted := c.Fit(vector)
	return execute(ctx, c, "search", func(ctx context.Context, b vectorstore.Backend) ([]vectorstore.SearchResult, error) {
		return b.Search(ctx, fitted, topK)
	})
}

// DeleteByDocument removes the chunks of a document from the fallback store
// and the primary, whatever the current mode. An unreachable primary is
// reported as ErrBackendUnavailable even when the fallback side succeeded.
func (c *Controller) DeleteByDocument(ctx context.Context, documentID string) error {
	return c.deleteEverywhere(ctx, "delete", func(ctx context.Context, b vectorstore.Backend) error {
		return b.DeleteByDocument(ctx, documentID)
	})
}

// DeletePoints removes chunks by id from both stores, like DeleteByDocument.
func (c *Controller) DeletePoints(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	return c.deleteEverywhere(ctx, "delete_points", func(ctx context.Context, b vectorstore.Backend) error {
		return b.DeletePoints(ctx, ids)
	})
}

func (c *Controller) deleteEverywhere(ctx context.Context, op string, fn func(context.Context, vectorstore.Backend) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	// the fallback may hold chunks written during an earlier outage
	var fallbackErr error
	if c.fallback != nil {
		if fallbackErr = fn(ctx, c.fallback); fallbackErr != nil {
			fallbackErr = fmt.Errorf("%s on %s: %w", op, c.fallback.Name(), fallbackErr)
		}
	}
	if c.primary == nil {
		return fallbackErr
	}

	_, err := onPrimary(ctx, c, op, func(ctx context.Context, b vectorstore.Backend) (struct{}, error) {
		return struct{}{}, fn(ctx, b)
	})
	if apperr.IsBackendUnavailable(err) && c.canFallBack() {
		c.markFallback(op, err)
	}
	return errors.Join(err, fallbackErr)
}

func (c *Controller) ScrollByDocument(ctx context.Context, documentID string, limit int) ([]vectorstore.Chunk, error) {
	return execute(ctx, c, "scroll", func(ctx context.Context, b vectorstore.Backend) ([]vectorstore.Chunk, error) {
		return b.ScrollByDocument(ctx, documentID, limit)
	})
}

// Fit zero-pads or truncates v to the configured dimension.
func (c *Controller) Fit(v []float32) []float32 {
	d := c.cfg.Dimension
	if d <= 0 || len(v) == d {
		return v
	}
	out := make([]float32, d)
	copy(out, v)
	return out
}

// execute runs op against the primary with retries and falls back to the
// in-process store once the budget for the current mode is spent.
func execute[T any](ctx context.Context, c *Controller, op string, fn func(context.Context, vectorstore.Backend) (T, error)) (T, error) {
	if err := ctx.Err(); err != nil {
		var zero T
		return zero, err
	}
	if c.primary == nil {
		return fn(ctx, c.fallback)
	}

	res, err := onPrimary(ctx, c, op, fn)
	if !apperr.IsBackendUnavailable(err) || !c.canFallBack() {
		return res, err
	}
	c.markFallback(op, err)
	return fn(ctx, c.fallback)
}

func (c *Controller) canFallBack() bool {
	return !c.cfg.Strict && c.cfg.FallbackEnabled && c.fallback != nil
}

// onPrimary retries fn against the primary within the budget of the current
// mode. A spent budget is reported as ErrBackendUnavailable.
func onPrimary[T any](ctx context.Context, c *Controller, op string, fn func(context.Context, vectorstore.Backend) (T, error)) (T, error) {
	var zero T
	attempts := c.cfg.MaxAttempts
	if c.currentMode() == ModeFallback {
		attempts = c.cfg.FallbackAttempts
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			if err := c.sleep(ctx, c.backoff(attempt)); err != nil {
				return zero, err
			}
		}

		if err := c.ensureCollection(ctx); err != nil {
			if ctx.Err() != nil {
				return zero, ctx.Err()
			}
			lastErr = err
			c.logger.Debug("vector collection check failed",
				"operation", op, "attempt", attempt+1, "backend", c.primary.Name(), "error", err)
			continue
		}

		res, err := fn(ctx, c.primary)
		if err == nil {
			c.markPrimary(op)
			return res, nil
		}
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}
		if errors.Is(err, vectorstore.ErrCollectionMissing) {
			c.resetCollection()
		} else if apperr.IsNotFound(err) || apperr.IsInvalidInput(err) {
			return zero, err
		}
		lastErr = err
		c.logger.Debug("vector operation failed",
			"operation", op, "attempt", attempt+1, "backend", c.primary.Name(), "error", err)
	}

	return zero, apperr.BackendUnavailable(lastErr,
		fmt.Sprintf("%s: %s unavailable after %d attempts", op, c.primary.Name(), attempts),
		"backend", c.primary.Name(), "operation", op, "attempts", attempts)
}

func (c *Controller) currentMode() Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode
}

func (c *Controller) ensureCollection(ctx context.Context) error {
	c.mu.Lock()
	ready := c.collectionReady
	c.mu.Unlock()
	if ready {
		return nil
	}

	if err := c.primary.EnsureCollection(ctx); err != nil {
		return err
	}

	c.mu.Lock()
	c.collectionReady = true
	c.mu.Unlock()
	return nil
}

// resetCollection makes the next attempt check the collection again, which
// recreates it after a primary restart that lost it.
func (c *Controller) resetCollection() {
	c.mu.Lock()
	c.collectionReady = false
	c.mu.Unlock()
}

func (c *Controller) markPrimary(op string) {
	c.mu.Lock()
	recovered := c.mode == ModeFallback
	c.mode = ModePrimary
	c.mu.Unlock()

	if recovered {
		// vectors written to the fallback store while degraded stay there
		c.logger.Info("vector backend recovered, switching to primary",
			"backend", c.primary.Name(), "operation", op)
	}
}

func (c *Controller) markFallback(op string, cause error) {
	c.mu.Lock()
	switched := c.mode == ModePrimary
	c.mode = ModeFallback
	c.mu.Unlock()

	if switched {
		c.logger.Warn("vector backend unavailable, switching to fallback store",
			"backend", c.primary.Name(), "fallback", c.fallback.Name(), "operation", op, "error", cause)
	}
}

// backoff returns the delay before the given attempt (1-based retry number):
// base * 2^(attempt-1), capped at MaxDelay.
func (c *Controller) backoff(attempt int) time.Duration {
	d := c.cfg.BaseDelay
	for i := 1; i < attempt; i++ {
		d *= 2
		if c.cfg.MaxDelay > 0 && d >= c.cfg.MaxDelay {
			return c.cfg.MaxDelay
		}
	}
	if c.cfg.MaxDelay > 0 && d > c.cfg.MaxDelay {
		return c.cfg.MaxDelay
	}
	return d
}
