package archive

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/jonboulle/clockwork"
	"golang.org/x/time/rate"

	"github.com/lox/ghcnclimate/internal/metrics"
)

// Cache is the subset of the cache store the fetcher writes through.
type Cache interface {
	Exists(key string) bool
	Invalidate(key string) error
	WriteFrom(key string, r io.Reader) (string, int64, error)
	Path(key string) string
}

// FetchError reports a remote transfer that did not land intact in the cache.
type FetchError struct {
	RemoteID string
	Key      string
	Err      error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s into %s: %v", e.RemoteID, e.Key, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Fetcher keeps cache entries populated from a remote transport.
type Fetcher struct {
	cache     Cache
	transport Transport
	limiter   *rate.Limiter
	clock     clockwork.Clock
	logger    *slog.Logger
}

type Option func(*Fetcher)

// WithRateLimit paces remote transfers; NOAA throttles anonymous clients
// that open many connections.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(f *Fetcher) {
		f.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

func WithClock(c clockwork.Clock) Option {
	return func(f *Fetcher) { f.clock = c }
}

func WithLogger(l *slog.Logger) Option {
	return func(f *Fetcher) { f.logger = l }
}

func NewFetcher(c Cache, t Transport, opts ...Option) *Fetcher {
	f := &Fetcher{
		cache:     c,
		transport: t,
		clock:     clockwork.NewRealClock(),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch ensures cacheKey holds the resource remoteID. A present entry is
// reused unless force is set, in which case it is dropped and refetched.
func (f *Fetcher) Fetch(ctx context.Context, remoteID, cacheKey string, force bool) error {
	if f.cache.Exists(cacheKey) {
		if !force {
			metrics.CacheLookupsTotal.WithLabelValues("hit").Inc()
			f.logger.Info("cache hit", "key", cacheKey)
			return nil
		}
		metrics.CacheLookupsTotal.WithLabelValues("forced").Inc()
		f.logger.Info("deleting old cache entry", "key", cacheKey)
		if err := f.cache.Invalidate(cacheKey); err != nil {
			return &FetchError{RemoteID: remoteID, Key: cacheKey, Err: err}
		}
	} else {
		metrics.CacheLookupsTotal.WithLabelValues("miss").Inc()
	}

	if err := f.transfer(ctx, remoteID, cacheKey); err != nil {
		metrics.RemoteTransfersTotal.WithLabelValues(f.transport.Name(), "error").Inc()
		return &FetchError{RemoteID: remoteID, Key: cacheKey, Err: err}
	}
	metrics.RemoteTransfersTotal.WithLabelValues(f.transport.Name(), "ok").Inc()
	return nil
}

func (f *Fetcher) transfer(ctx context.Context, remoteID, cacheKey string) error {
	if f.limiter != nil {
		if err := f.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limit wait: %w", err)
		}
	}

	start := f.clock.Now()
	f.logger.Info("fetching", "remote", remoteID, "transport", f.transport.Name())

	rc, err := f.transport.Retrieve(ctx, remoteID)
	if err != nil {
		return err
	}
	defer rc.Close()

	path, n, err := f.cache.WriteFrom(cacheKey, rc)
	if err != nil {
		return err
	}
	if want := f.cache.Path(cacheKey); path != want {
		f.cache.Invalidate(cacheKey)
		return fmt.Errorf("payload written to %s, want %s", path, want)
	}
	if sb, ok := rc.(sizedBody); ok && sb.ExpectedSize() >= 0 && sb.ExpectedSize() != n {
		f.cache.Invalidate(cacheKey)
		return fmt.Errorf("short transfer: got %d of %d bytes", n, sb.ExpectedSize())
	}

	elapsed := f.clock.Since(start)
	metrics.RemoteBytesTotal.WithLabelValues(f.transport.Name()).Add(float64(n))
	metrics.RemoteTransferLatency.WithLabelValues(f.transport.Name()).Observe(elapsed.Seconds())
	f.logger.Info("fetched", "key", cacheKey, "bytes", n, "secs", fmt.Sprintf("%.1f", elapsed.Seconds()))
	return nil
}
