// internal/agent/sampler/sampler.go
//
// The platform location API (expo-location / play services on the real
// device) sits behind the Provider interface. Everything else in the
// agent only sees Fix values.
package sampler

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"fieldtrack_backend/internal/geo"
)

var (
	ErrPermissionDenied = errors.New("location permission not granted")
	ErrServicesDisabled = errors.New("device location services disabled")
)

// Fix is a single location reading.
type Fix struct {
	Latitude     float64
	Longitude    float64
	Accuracy     float64 // meters
	BatteryLevel int     // 0-100
	Timestamp    time.Time
}

// Tier returns the display accuracy bucket for this fix.
func (f Fix) Tier() string {
	return geo.AccuracyTier(f.Accuracy)
}

// Options controls sampling.
type Options struct {
	Interval       time.Duration // time between fixes
	DistanceMeters float64       // minimum movement before a fix is delivered; 0 = deliver all
}

// Provider is the device location API boundary.
type Provider interface {
	CurrentFix(ctx context.Context) (Fix, error)
}

// GetCurrentFix fetches one fix and flags staleness. A stale fix is still
// returned; the caller decides what to do with the warning.
func GetCurrentFix(ctx context.Context, p Provider) (Fix, error) {
	fix, err := p.CurrentFix(ctx)
	if err != nil {
		return Fix{}, err
	}
	if geo.IsStale(fix.Timestamp, time.Now()) {
		log.Printf("sampler: stale fix (%.0fs old)", time.Since(fix.Timestamp).Seconds())
	}
	return fix, nil
}

// Subscription is the handle returned by Watch. Dispose is idempotent and
// never panics.
type Subscription struct {
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

func (s *Subscription) Dispose() {
	s.once.Do(func() {
		s.cancel()
		<-s.done
	})
}

// Watch polls the provider every opts.Interval and delivers fixes to
// onUpdate. Fixes closer than opts.DistanceMeters to the last delivered
// one are skipped. Delivery is via callback on the watch goroutine; the
// caller must not block in onUpdate.
func Watch(ctx context.Context, p Provider, opts Options, onUpdate func(Fix)) *Subscription {
	if opts.Interval <= 0 {
		opts.Interval = 30 * time.Second
	}

	ctx, cancel := context.WithCancel(ctx)
	sub := &Subscription{cancel: cancel, done: make(chan struct{})}

	go func() {
		defer close(sub.done)

		ticker := time.NewTicker(opts.Interval)
		defer ticker.Stop()

		var last *Fix
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				fix, err := GetCurrentFix(ctx, p)
				if err != nil {
					// Sampling errors never kill the loop.
					log.Printf("sampler: fix failed: %v", err)
					continue
				}
				if last != nil && opts.DistanceMeters > 0 &&
					!geo.HasSignificantMovement(last.Latitude, last.Longitude,
						fix.Latitude, fix.Longitude, opts.DistanceMeters) {
					continue
				}
				last = &fix
				onUpdate(fix)
			}
		}
	}()

	return sub
}
