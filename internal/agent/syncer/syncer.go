// internal/agent/syncer/syncer.go
//
// The sync scheduler: drains the pending store on a timer and pushes
// points to the attendance API. Failures leave rows unsynced with an
// incremented attempt count; delivery is at-least-once and the server
// deduplicates.
package syncer

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"fieldtrack_backend/internal/agent/api"
	"fieldtrack_backend/internal/agent/store"
	"fieldtrack_backend/internal/models"
)

type Config struct {
	Interval    time.Duration // tick period
	BaseBackoff time.Duration // first retry delay after a failure
	MaxAttempts int           // attempts before a row is dropped
	Retention   time.Duration // synced rows older than this are purged
}

func (c *Config) applyDefaults() {
	if c.Interval <= 0 {
		c.Interval = 30 * time.Second
	}
	if c.BaseBackoff <= 0 {
		c.BaseBackoff = 2 * time.Second
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 20
	}
	if c.Retention <= 0 {
		c.Retention = 7 * 24 * time.Hour
	}
}

type Syncer struct {
	store        *store.PendingStore
	client       *api.Client
	cfg          Config
	employeeID   uint
	attendanceID uint

	mu                  sync.Mutex // serializes sync passes and guards the backoff state
	consecutiveFailures int
	nextAllowed         time.Time
}

func New(st *store.PendingStore, client *api.Client, cfg Config, employeeID, attendanceID uint) *Syncer {
	cfg.applyDefaults()
	return &Syncer{
		store:        st,
		client:       client,
		cfg:          cfg,
		employeeID:   employeeID,
		attendanceID: attendanceID,
	}
}

// Run ticks until ctx is cancelled. An in-flight sync started before
// cancellation finishes and its results are applied to the store.
func (s *Syncer) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if s.inBackoff() {
				continue
			}
			// Deliberately not ctx: results of a sync in flight at stop
			// time still land in the store.
			s.SyncNow(context.Background())
		}
	}
}

func (s *Syncer) inBackoff() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return time.Now().Before(s.nextAllowed)
}

// SyncNow performs one drain pass: points first, then emergency
// checkouts, then retention housekeeping. Safe to call from any
// goroutine; concurrent calls run one pass at a time.
func (s *Syncer) SyncNow(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ok := s.syncPoints(ctx)
	if ok {
		ok = s.syncCheckouts(ctx)
	}

	if ok {
		s.consecutiveFailures = 0
		s.nextAllowed = time.Time{}
	} else {
		s.consecutiveFailures++
		backoff := s.cfg.BaseBackoff << (s.consecutiveFailures - 1)
		if backoff > s.cfg.Interval || backoff <= 0 {
			backoff = s.cfg.Interval
		}
		s.nextAllowed = time.Now().Add(backoff)
		log.Printf("syncer: sync failed (%d consecutive), backing off %s", s.consecutiveFailures, backoff)
	}

	s.housekeeping()
}

func (s *Syncer) syncPoints(ctx context.Context) bool {
	points, err := s.store.ListUnsynced(s.employeeID)
	if err != nil {
		log.Printf("syncer: list unsynced: %v", err)
		return false
	}

	for _, p := range points {
		battery := float64(p.BatteryLevel)
		req := models.LocationUpdateRequest{
			Location: models.LocationPayload{
				Latitude:  p.Latitude,
				Longitude: p.Longitude,
				Accuracy:  p.Accuracy,
				Timestamp: models.FlexTimestamp{Millis: p.TimestampMs},
			},
			BatteryLevel:   &battery,
			IdempotencyKey: p.IdempotencyKey,
		}

		err := s.client.PostLocationUpdate(ctx, s.attendanceID, req)
		if err == nil {
			if _, err := s.store.MarkSynced(p.ID); err != nil {
				log.Printf("syncer: mark synced %d: %v", p.ID, err)
			}
			continue
		}

		if err := s.store.IncrementSyncAttempts(p.ID); err != nil {
			log.Printf("syncer: bump attempts %d: %v", p.ID, err)
		}

		var netErr *api.NetworkError
		if errors.As(err, &netErr) {
			// Network is down; later points would fail too.
			return false
		}
		// Rejected point: leave it for the attempt cap to collect.
		log.Printf("syncer: point %d rejected: %v", p.ID, err)
	}
	return true
}

func (s *Syncer) syncCheckouts(ctx context.Context) bool {
	checkouts, err := s.store.ListUnsyncedCheckouts(s.employeeID)
	if err != nil {
		log.Printf("syncer: list checkouts: %v", err)
		return false
	}

	for _, e := range checkouts {
		battery := float64(e.BatteryLevel)
		req := models.EmergencyCheckoutRequest{
			Location: models.LocationPayload{
				Latitude:  e.Latitude,
				Longitude: e.Longitude,
				Accuracy:  e.Accuracy,
				Timestamp: models.FlexTimestamp{Millis: e.CheckOutTimeMs},
			},
			BatteryLevel:   &battery,
			Reason:         e.Reason,
			CheckOutData:   e.CheckOutData,
			IdempotencyKey: e.IdempotencyKey,
		}

		err := s.client.PostEmergencyCheckout(ctx, req)
		if err == nil {
			if _, err := s.store.MarkCheckoutSynced(e.ID); err != nil {
				log.Printf("syncer: mark checkout synced %d: %v", e.ID, err)
			}
			continue
		}

		if err := s.store.IncrementCheckoutAttempts(e.ID); err != nil {
			log.Printf("syncer: bump checkout attempts %d: %v", e.ID, err)
		}

		var netErr *api.NetworkError
		if errors.As(err, &netErr) {
			return false
		}
		log.Printf("syncer: checkout %d rejected: %v", e.ID, err)
	}
	return true
}

func (s *Syncer) housekeeping() {
	dropped, err := s.store.DropExhausted(s.employeeID, s.cfg.MaxAttempts)
	if err != nil {
		log.Printf("syncer: drop exhausted: %v", err)
	} else if dropped > 0 {
		log.Printf("syncer: dropped %d points after %d failed attempts", dropped, s.cfg.MaxAttempts)
	}

	if _, err := s.store.PurgeSyncedBefore(s.employeeID, time.Now().Add(-s.cfg.Retention)); err != nil {
		log.Printf("syncer: retention purge: %v", err)
	}
}
