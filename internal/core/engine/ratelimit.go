package engine

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/insightdeck/insightdeck/internal/core"
)

const (
	// DefaultAdmissionRequests is the number of outbound requests allowed per window.
	DefaultAdmissionRequests = 5
	// DefaultAdmissionWindow is the fixed admission window length.
	DefaultAdmissionWindow = time.Minute
	// DefaultAdmissionKey identifies the window when a limiter is not given a key.
	DefaultAdmissionKey = "youtube-api-full.p.rapidapi.com"
)

// WindowStore stores admission window state. TryAdmit and ClearExpiredWindow must
// be atomic in the store itself, since several processes may share one store.
type WindowStore interface {
	LoadWindow(ctx context.Context, key string) (*core.AdmissionWindow, error)
	SaveWindow(ctx context.Context, key string, window *core.AdmissionWindow) error
	ClearWindow(ctx context.Context, key string) error

	// TryAdmit counts one request against key when fewer than limit were counted in
	// the current window. A missing or expired window restarts at now. When the
	// quota is exhausted nothing is counted and the time left in the window is
	// returned.
	TryAdmit(ctx context.Context, key string, limit int, length time.Duration, now time.Time) (admitted bool, wait time.Duration, err error)

	// ClearExpiredWindow removes the window for key only if it has run its length.
	ClearExpiredWindow(ctx context.Context, key string, length time.Duration, now time.Time) (bool, error)
}

// unbounded is the TryAdmit limit used to count a request unconditionally.
const unbounded = math.MaxInt32

// AdmissionLimiter enforces a fixed-window request quota.
//
// Check and count happen in one store operation, so limiters in different
// processes that share a store share one quota. The gate serializes Acquire
// within a process so that local callers queue behind one pause instead of
// waking together.
type AdmissionLimiter struct {
	Store    WindowStore
	Key      string
	Requests int
	Window   time.Duration
	Clock    func() time.Time
	Sleep    func(ctx context.Context, d time.Duration) error

	gate         sync.Mutex
	fallbackOnce sync.Once
	fallback     WindowStore
}

// NewAdmissionLimiter builds a limiter with the given quota. Zero values fall back
// to the defaults.
func NewAdmissionLimiter(store WindowStore, key string, requests int, window time.Duration) *AdmissionLimiter {
	return &AdmissionLimiter{
		Store:    store,
		Key:      key,
		Requests: requests,
		Window:   window,
	}
}

// CanProceed reports whether a request may be sent now. An expired window counts
// as empty; the next admission restarts it.
func (l *AdmissionLimiter) CanProceed(ctx context.Context) (bool, error) {
	allowed, _, err := l.Allow(ctx)
	return allowed, err
}

// WaitDuration returns how long until the current window ends, clamped at zero.
func (l *AdmissionLimiter) WaitDuration(ctx context.Context) (time.Duration, error) {
	if l == nil {
		return 0, nil
	}

	window, err := l.load(ctx)
	if err != nil {
		return 0, err
	}
	return window.Remaining(l.window(), l.now()), nil
}

// Allow checks the quota without counting and returns the wait duration when the
// quota is exhausted.
func (l *AdmissionLimiter) Allow(ctx context.Context) (bool, time.Duration, error) {
	if l == nil {
		return true, 0, nil
	}

	now := l.now()
	window, err := l.load(ctx)
	if err != nil {
		return true, 0, err
	}

	if window.Expired(l.window(), now) || window.RequestCount < l.requests() {
		return true, 0, nil
	}
	return false, window.Remaining(l.window(), now), nil
}

// RecordRequest counts one outbound attempt against the current window, whatever
// the quota says.
func (l *AdmissionLimiter) RecordRequest(ctx context.Context) error {
	if l == nil {
		return nil
	}

	_, _, err := l.store().TryAdmit(ctx, l.key(), unbounded, l.window(), l.now())
	return err
}

// Acquire admits and counts one request, pausing until the window ends when the
// quota is exhausted. It returns how long the caller waited. A limiter that is
// alone on its store pauses at most once; when another process takes the fresh
// window first, Acquire pauses again rather than exceed the quota.
func (l *AdmissionLimiter) Acquire(ctx context.Context) (time.Duration, error) {
	if l == nil {
		return 0, nil
	}

	l.gate.Lock()
	defer l.gate.Unlock()

	var waited time.Duration
	for {
		if err := ctx.Err(); err != nil {
			return waited, err
		}

		admitted, wait, err := l.store().TryAdmit(ctx, l.key(), l.requests(), l.window(), l.now())
		if err != nil {
			return waited, err
		}
		if admitted {
			return waited, nil
		}

		if err := l.sleep(ctx, wait); err != nil {
			return waited, err
		}
		waited += wait
	}
}

// Snapshot returns a copy of the current window without modifying it.
func (l *AdmissionLimiter) Snapshot(ctx context.Context) (core.AdmissionWindow, error) {
	if l == nil {
		return core.AdmissionWindow{}, nil
	}

	window, err := l.load(ctx)
	if err != nil {
		return core.AdmissionWindow{}, err
	}
	return *window, nil
}

// Reset clears the window unconditionally.
func (l *AdmissionLimiter) Reset(ctx context.Context) error {
	if l == nil {
		return nil
	}
	return l.store().ClearWindow(ctx, l.key())
}

// Sweep clears the window if it has outlived its length and reports whether it did.
// A live window is never touched, so a sweep cannot hand out a second quota.
func (l *AdmissionLimiter) Sweep(ctx context.Context) (bool, error) {
	if l == nil {
		return false, nil
	}
	return l.store().ClearExpiredWindow(ctx, l.key(), l.window(), l.now())
}

// RunSafeguard sweeps stale window state every interval until ctx is done. A
// non-positive interval uses the window length. The schedule has one-second
// resolution.
func (l *AdmissionLimiter) RunSafeguard(ctx context.Context, interval time.Duration) {
	if l == nil {
		return
	}
	if interval <= 0 {
		interval = l.window()
	}

	scheduler := cron.New()
	scheduler.Schedule(cron.Every(interval), cron.FuncJob(func() {
		_, _ = l.Sweep(ctx)
	}))
	scheduler.Start()

	<-ctx.Done()
	<-scheduler.Stop().Done()
}

// Limits returns the effective quota.
func (l *AdmissionLimiter) Limits() (int, time.Duration) {
	return l.requests(), l.window()
}

func (l *AdmissionLimiter) load(ctx context.Context) (*core.AdmissionWindow, error) {
	window, err := l.store().LoadWindow(ctx, l.key())
	if err != nil {
		return nil, err
	}
	if window == nil {
		window = &core.AdmissionWindow{}
	}
	return window, nil
}

func (l *AdmissionLimiter) store() WindowStore {
	if l.Store != nil {
		return l.Store
	}
	l.fallbackOnce.Do(func() {
		l.fallback = NewMemoryWindowStore()
	})
	return l.fallback
}

func (l *AdmissionLimiter) key() string {
	if l.Key != "" {
		return l.Key
	}
	return DefaultAdmissionKey
}

func (l *AdmissionLimiter) requests() int {
	if l == nil || l.Requests <= 0 {
		return DefaultAdmissionRequests
	}
	return l.Requests
}

func (l *AdmissionLimiter) window() time.Duration {
	if l == nil || l.Window <= 0 {
		return DefaultAdmissionWindow
	}
	return l.Window
}

func (l *AdmissionLimiter) now() time.Time {
	if l != nil && l.Clock != nil {
		return l.Clock()
	}
	return time.Now().UTC()
}

func (l *AdmissionLimiter) sleep(ctx context.Context, d time.Duration) error {
	if l.Sleep != nil {
		return l.Sleep(ctx, d)
	}
	return SleepContext(ctx, d)
}
