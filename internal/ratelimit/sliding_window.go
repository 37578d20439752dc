package ratelimit

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/labstack/echo/v4/middleware"

	"civicwatch/internal/cache"
)

const redisTimeout = 200 * time.Millisecond

// SlidingWindow limits each identifier to max attempts within any trailing window.
// Every attempt counts, including denied ones. Redis holds the window when
// reachable; otherwise an in-process window takes over.
type SlidingWindow struct {
	cache  *cache.Client
	prefix string
	window time.Duration
	max    int
	now    func() time.Time
	logger *slog.Logger

	mu        sync.Mutex
	hits      map[string][]time.Time
	lastSweep time.Time
}

var _ middleware.RateLimiterStore = (*SlidingWindow)(nil)

// New creates a limiter. prefix namespaces the redis keys of one route group.
func New(cacheClient *cache.Client, prefix string, window time.Duration, max int) *SlidingWindow {
	return &SlidingWindow{
		cache:  cacheClient,
		prefix: prefix,
		window: window,
		max:    max,
		now:    time.Now,
		logger: slog.Default(),
		hits:   make(map[string][]time.Time),
	}
}

// Allow implements echo's RateLimiterStore.
func (l *SlidingWindow) Allow(identifier string) (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), redisTimeout)
	defer cancel()
	return l.allowAt(ctx, identifier, l.now()), nil
}

func (l *SlidingWindow) allowAt(ctx context.Context, identifier string, now time.Time) bool {
	if l.cache != nil {
		count, err := l.cache.SlidingWindowHit(ctx, "ratelimit:"+l.prefix+":"+identifier, now, l.window)
		if err == nil {
			return count <= int64(l.max)
		}
		l.logger.Debug("rate limit store unavailable, using local window", "group", l.prefix, "error", err)
	}
	return l.allowLocal(identifier, now)
}

func (l *SlidingWindow) allowLocal(identifier string, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.lastSweep) > l.window {
		l.sweep(now)
	}

	cutoff := now.Add(-l.window)
	hits := prune(l.hits[identifier], cutoff)
	hits = append(hits, now)
	// Only the newest max+1 attempts matter for the decision.
	if len(hits) > l.max+1 {
		hits = hits[len(hits)-(l.max+1):]
	}
	l.hits[identifier] = hits
	return len(hits) <= l.max
}

func (l *SlidingWindow) sweep(now time.Time) {
	cutoff := now.Add(-l.window)
	for id, hits := range l.hits {
		if hits = prune(hits, cutoff); len(hits) == 0 {
			delete(l.hits, id)
		} else {
			l.hits[id] = hits
		}
	}
	l.lastSweep = now
}

func prune(hits []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(hits) && !hits[i].After(cutoff) {
		i++
	}
	return hits[i:]
}
