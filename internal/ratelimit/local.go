package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// LocalLimiter keeps a trailing-window log per key in process memory: a call
// is admitted when fewer than limit admitted calls fall inside the last
// window. Rejected calls are not logged, so a key never holds more than
// limit timestamps.
type LocalLimiter struct {
	mu         sync.Mutex
	windows    map[string]*hitLog
	sweepEvery time.Duration
	lastSweep  time.Time
	now        func() time.Time
}

type hitLog struct {
	span time.Duration
	hits []time.Time // admitted calls, oldest first
}

// expire drops hits that have left the window ending at now
func (h *hitLog) expire(now time.Time) {
	cutoff := now.Add(-h.span)
	i := 0
	for i < len(h.hits) && !h.hits[i].After(cutoff) {
		i++
	}
	if i > 0 {
		h.hits = append(h.hits[:0], h.hits[i:]...)
	}
}

// NewLocalLimiter creates an in-process limiter. Every sweepEvery it drops
// keys whose whole window has passed since their last admitted call.
func NewLocalLimiter(sweepEvery time.Duration) *LocalLimiter {
	if sweepEvery <= 0 {
		sweepEvery = time.Minute
	}
	return &LocalLimiter{
		windows:    make(map[string]*hitLog),
		sweepEvery: sweepEvery,
		lastSweep:  time.Now(),
		now:        time.Now,
	}
}

func (l *LocalLimiter) Allow(_ context.Context, key string, limit int, window time.Duration) (Decision, error) {
	if limit <= 0 {
		return Decision{Allowed: true, Limit: limit}, nil
	}
	if window <= 0 {
		return Decision{}, fmt.Errorf("rate limit window must be positive")
	}

	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	l.sweep(now)

	// the policy is part of the key so an edited quota starts a fresh window
	id := fmt.Sprintf("%s|%d|%s", key, limit, window)
	log, ok := l.windows[id]
	if !ok {
		log = &hitLog{span: window}
		l.windows[id] = log
	}
	log.expire(now)

	d := Decision{Limit: limit}
	if len(log.hits) < limit {
		log.hits = append(log.hits, now)
		d.Allowed = true
	}
	d.Remaining = limit - len(log.hits)
	d.ResetAt = log.hits[0].Add(window)
	return d, nil
}

func (l *LocalLimiter) sweep(now time.Time) {
	if now.Sub(l.lastSweep) < l.sweepEvery {
		return
	}
	for id, log := range l.windows {
		if len(log.hits) == 0 || !log.hits[len(log.hits)-1].After(now.Add(-log.span)) {
			delete(l.windows, id)
		}
	}
	l.lastSweep = now
}

// Len returns the number of tracked keys
func (l *LocalLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.windows)
}
