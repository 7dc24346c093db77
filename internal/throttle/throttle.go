// Package throttle paces outbound requests so the sweep stays under the
// remote endpoint's radar: a jittered delay between calls plus a hard cap
// on in-flight requests shared by every worker.
package throttle

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

type Limiter struct {
	base   time.Duration
	jitter time.Duration
	sem    chan struct{}

	mu  sync.Mutex
	rng *rand.Rand
}

// New builds a limiter sleeping base±jitter before each request and
// allowing at most maxInflight concurrent requests.
func New(base, jitter time.Duration, maxInflight int) *Limiter {
	if maxInflight <= 0 {
		maxInflight = 1
	}
	return &Limiter{
		base:   base,
		jitter: jitter,
		sem:    make(chan struct{}, maxInflight),
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Acquire waits out the jittered delay and takes an in-flight slot. Every
// successful Acquire must be paired with Release.
func (l *Limiter) Acquire(ctx context.Context) error {
	if err := l.wait(ctx); err != nil {
		return err
	}
	select {
	case l.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *Limiter) Release() {
	<-l.sem
}

func (l *Limiter) wait(ctx context.Context) error {
	d := l.delay()
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *Limiter) delay() time.Duration {
	if l.jitter <= 0 {
		return l.base
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	// Uniform in [base-jitter, base+jitter].
	return l.base - l.jitter + time.Duration(l.rng.Int63n(int64(2*l.jitter)+1))
}
