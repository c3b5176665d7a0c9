// internal/agent/tracker/tracker.go
//
// The background tracking service: keeps the sampler alive independent of
// the UI, persists every fix into the pending store, and records an
// emergency checkout when tracking stops without a clean user checkout.
// The OS foreground-service glue is an external collaborator behind the
// Foreground interface.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"fieldtrack_backend/internal/agent/sampler"
	"fieldtrack_backend/internal/agent/store"
)

type State string

const (
	StateStopped  State = "STOPPED"
	StateStarting State = "STARTING"
	StateRunning  State = "RUNNING"
	StateStopping State = "STOPPING"
)

// Foreground is the OS keepalive boundary (foreground service with a
// persistent notification on the real device).
type Foreground interface {
	Start(employeeID uint, employeeName string) error
	Stop() error
	Running() bool
}

// NoopForeground is used where no platform glue is attached (tests,
// simulation).
type NoopForeground struct {
	mu      sync.Mutex
	running bool
}

func (f *NoopForeground) Start(uint, string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.running = true
	return nil
}

func (f *NoopForeground) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.running = false
	return nil
}

func (f *NoopForeground) Running() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.running
}

// CheckoutPayload carries the data for an emergency checkout written when
// a stop is not a clean user-initiated one.
type CheckoutPayload struct {
	Fix    sampler.Fix
	Reason string
	Data   string
}

type Tracker struct {
	store      *store.PendingStore
	provider   sampler.Provider
	foreground Foreground
	opts       sampler.Options

	// OnDirtyStart runs when a start discovers the previous process died
	// with the running-marker still set. Wired to a best-effort sync.
	OnDirtyStart func()

	mu         sync.Mutex
	state      State
	employeeID uint
	sub        *sampler.Subscription
}

func New(st *store.PendingStore, p sampler.Provider, fg Foreground, opts sampler.Options) *Tracker {
	if fg == nil {
		fg = &NoopForeground{}
	}
	return &Tracker{
		store:      st,
		provider:   p,
		foreground: fg,
		opts:       opts,
		state:      StateStopped,
	}
}

func (t *Tracker) Status() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// StartTracking moves STOPPED -> STARTING -> RUNNING. RUNNING is only
// reached once the first fix has been persisted; any failure on the way
// rolls back to STOPPED.
func (t *Tracker) StartTracking(ctx context.Context, employeeID uint, employeeName string) error {
	t.mu.Lock()
	if t.state != StateStopped {
		state := t.state
		t.mu.Unlock()
		return fmt.Errorf("cannot start tracking from state %s", state)
	}
	t.state = StateStarting
	t.employeeID = employeeID
	t.mu.Unlock()

	dirty, err := t.store.WasTrackingActive(employeeID)
	if err != nil {
		log.Printf("tracker: running-marker check failed: %v", err)
	}
	if dirty {
		log.Printf("tracker: previous session for employee %d ended uncleanly", employeeID)
		if t.OnDirtyStart != nil {
			t.OnDirtyStart()
		}
	}

	fail := func(err error) error {
		_ = t.foreground.Stop()
		t.mu.Lock()
		t.state = StateStopped
		t.mu.Unlock()
		return err
	}

	if err := t.foreground.Start(employeeID, employeeName); err != nil {
		return fail(fmt.Errorf("foreground start: %w", err))
	}

	first, err := sampler.GetCurrentFix(ctx, t.provider)
	if err != nil {
		return fail(fmt.Errorf("first fix: %w", err))
	}
	if err := t.persistFix(first); err != nil {
		return fail(fmt.Errorf("persist first fix: %w", err))
	}

	if err := t.store.SetTrackingActive(employeeID); err != nil {
		log.Printf("tracker: set running-marker failed: %v", err)
	}

	sub := sampler.Watch(ctx, t.provider, t.opts, func(fix sampler.Fix) {
		// A dropped sample is lost; the capture path never dies for it.
		if err := t.persistFix(fix); err != nil {
			log.Printf("tracker: persist fix failed: %v", err)
		}
	})

	t.mu.Lock()
	t.sub = sub
	t.state = StateRunning
	t.mu.Unlock()
	return nil
}

// StopTracking moves RUNNING -> STOPPING -> STOPPED. A nil payload means a
// clean user-initiated checkout; a non-nil payload is flushed into the
// emergency checkout table for the syncer to deliver.
func (t *Tracker) StopTracking(payload *CheckoutPayload) error {
	t.mu.Lock()
	if t.state != StateRunning {
		state := t.state
		t.mu.Unlock()
		return fmt.Errorf("cannot stop tracking from state %s", state)
	}
	t.state = StateStopping
	sub := t.sub
	t.sub = nil
	employeeID := t.employeeID
	t.mu.Unlock()

	if sub != nil {
		sub.Dispose()
	}

	var firstErr error
	if payload != nil {
		_, err := t.store.SaveEmergencyCheckout(&store.EmergencyCheckout{
			EmployeeID:     employeeID,
			Latitude:       payload.Fix.Latitude,
			Longitude:      payload.Fix.Longitude,
			Accuracy:       payload.Fix.Accuracy,
			BatteryLevel:   payload.Fix.BatteryLevel,
			CheckOutTimeMs: payload.Fix.Timestamp.UnixMilli(),
			Reason:         payload.Reason,
			CheckOutData:   payload.Data,
		})
		if err != nil {
			firstErr = fmt.Errorf("save emergency checkout: %w", err)
		}
	}

	if err := t.foreground.Stop(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("foreground stop: %w", err)
	}
	if err := t.store.ClearTrackingActive(employeeID); err != nil {
		log.Printf("tracker: clear running-marker failed: %v", err)
	}

	t.mu.Lock()
	t.state = StateStopped
	t.mu.Unlock()
	return firstErr
}

// HandleBootCompleted is the reboot hook: cleanup and a best-effort sync
// only. Tracking is never respawned; the employee must re-initiate it.
func (t *Tracker) HandleBootCompleted(employeeID uint) {
	dirty, err := t.store.WasTrackingActive(employeeID)
	if err != nil {
		log.Printf("tracker: boot marker check failed: %v", err)
		return
	}
	if dirty {
		if err := t.store.ClearTrackingActive(employeeID); err != nil {
			log.Printf("tracker: boot cleanup failed: %v", err)
		}
		if t.OnDirtyStart != nil {
			t.OnDirtyStart()
		}
	}
}

func (t *Tracker) persistFix(fix sampler.Fix) error {
	if fix.Latitude < -90 || fix.Latitude > 90 || fix.Longitude < -180 || fix.Longitude > 180 {
		return errors.New("fix out of coordinate range")
	}

	t.mu.Lock()
	employeeID := t.employeeID
	t.mu.Unlock()

	_, err := t.store.Save(&store.LocationUpdate{
		EmployeeID:   employeeID,
		Latitude:     fix.Latitude,
		Longitude:    fix.Longitude,
		Accuracy:     fix.Accuracy,
		BatteryLevel: fix.BatteryLevel,
		TimestampMs:  fix.Timestamp.UnixMilli(),
	})
	return err
}
