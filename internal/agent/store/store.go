// internal/agent/store/store.go
//
// The on-device pending store: location points and emergency checkouts
// that the server has not yet acknowledged. This is the single shared
// mutable resource between the tracking service (producer) and the sync
// scheduler (consumer); every method holds the store mutex so a
// mark-synced can never race a concurrent insert.
package store

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// LocationUpdate is one unacknowledged fix.
type LocationUpdate struct {
	ID             uint    `gorm:"primaryKey"`
	EmployeeID     uint    `gorm:"index;not null"`
	Latitude       float64 `gorm:"not null"`
	Longitude      float64 `gorm:"not null"`
	Accuracy       float64
	BatteryLevel   int   // 0-100
	TimestampMs    int64 `gorm:"index;not null"`
	Synced         bool  `gorm:"not null;default:false"`
	SyncAttempts   int   `gorm:"not null;default:0"`
	IdempotencyKey string
	CreatedAt      time.Time
}

func (LocationUpdate) TableName() string { return "location_updates" }

// EmergencyCheckout is an out-of-band checkout awaiting sync. Immutable
// after creation except for sync bookkeeping.
type EmergencyCheckout struct {
	ID             uint    `gorm:"primaryKey"`
	EmployeeID     uint    `gorm:"index;not null"`
	Latitude       float64 `gorm:"not null"`
	Longitude      float64 `gorm:"not null"`
	Accuracy       float64
	BatteryLevel   int
	CheckOutTimeMs int64  `gorm:"not null"`
	Reason         string
	CheckOutData   string `gorm:"type:text"`
	Synced         bool   `gorm:"not null;default:false"`
	SyncAttempts   int    `gorm:"not null;default:0"`
	IdempotencyKey string
	CreatedAt      time.Time
}

func (EmergencyCheckout) TableName() string { return "emergency_checkouts" }

// TrackerState is the running-marker used to detect unclean shutdowns.
type TrackerState struct {
	EmployeeID  uint  `gorm:"primaryKey"`
	Active      bool  `gorm:"not null;default:false"`
	StartedAtMs int64
}

func (TrackerState) TableName() string { return "tracker_state" }

type PendingStore struct {
	mu sync.Mutex
	db *gorm.DB
}

// Open opens (or creates) the store at path. ":memory:" works for tests.
func Open(path string) (*PendingStore, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&LocationUpdate{}, &EmergencyCheckout{}, &TrackerState{}); err != nil {
		return nil, err
	}
	return &PendingStore{db: db}, nil
}

// Save inserts a point and returns its local id. An idempotency key is
// assigned here so retries of the same row reuse it.
func (s *PendingStore) Save(p *LocationUpdate) (uint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.IdempotencyKey == "" {
		p.IdempotencyKey = uuid.NewString()
	}
	if err := s.db.Create(p).Error; err != nil {
		return 0, err
	}
	return p.ID, nil
}

func (s *PendingStore) SaveEmergencyCheckout(e *EmergencyCheckout) (uint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e.IdempotencyKey == "" {
		e.IdempotencyKey = uuid.NewString()
	}
	if err := s.db.Create(e).Error; err != nil {
		return 0, err
	}
	return e.ID, nil
}

// ListUnsynced returns pending points oldest-first so the server receives
// a chronologically consistent path.
func (s *PendingStore) ListUnsynced(employeeID uint) ([]LocationUpdate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var rows []LocationUpdate
	err := s.db.Where("employee_id = ? AND synced = ?", employeeID, false).
		Order("timestamp_ms asc").Find(&rows).Error
	return rows, err
}

func (s *PendingStore) ListUnsyncedCheckouts(employeeID uint) ([]EmergencyCheckout, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var rows []EmergencyCheckout
	err := s.db.Where("employee_id = ? AND synced = ?", employeeID, false).
		Order("check_out_time_ms asc").Find(&rows).Error
	return rows, err
}

// MarkSynced flips the synced flag. Idempotent: marking an already-synced
// row succeeds and leaves it synced.
func (s *PendingStore) MarkSynced(id uint) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res := s.db.Model(&LocationUpdate{}).Where("id = ?", id).Update("synced", true)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (s *PendingStore) MarkCheckoutSynced(id uint) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res := s.db.Model(&EmergencyCheckout{}).Where("id = ?", id).Update("synced", true)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (s *PendingStore) IncrementSyncAttempts(id uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.db.Model(&LocationUpdate{}).Where("id = ?", id).
		UpdateColumn("sync_attempts", gorm.Expr("sync_attempts + 1")).Error
}

func (s *PendingStore) IncrementCheckoutAttempts(id uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.db.Model(&EmergencyCheckout{}).Where("id = ?", id).
		UpdateColumn("sync_attempts", gorm.Expr("sync_attempts + 1")).Error
}

// Purge removes everything for the employee, synced or not, from both
// tables and returns the combined count. Called on logout.
func (s *PendingStore) Purge(employeeID uint) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	points := s.db.Where("employee_id = ?", employeeID).Delete(&LocationUpdate{})
	if points.Error != nil {
		return 0, points.Error
	}
	checkouts := s.db.Where("employee_id = ?", employeeID).Delete(&EmergencyCheckout{})
	if checkouts.Error != nil {
		return points.RowsAffected, checkouts.Error
	}
	s.db.Where("employee_id = ?", employeeID).Delete(&TrackerState{})
	return points.RowsAffected + checkouts.RowsAffected, nil
}

// DropExhausted deletes unsynced rows that failed too many times and
// returns how many were dropped.
func (s *PendingStore) DropExhausted(employeeID uint, maxAttempts int) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res := s.db.Where("employee_id = ? AND synced = ? AND sync_attempts >= ?",
		employeeID, false, maxAttempts).Delete(&LocationUpdate{})
	return res.RowsAffected, res.Error
}

// PurgeSyncedBefore removes acknowledged rows older than the cutoff.
func (s *PendingStore) PurgeSyncedBefore(employeeID uint, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoffMs := cutoff.UnixMilli()
	points := s.db.Where("employee_id = ? AND synced = ? AND timestamp_ms < ?",
		employeeID, true, cutoffMs).Delete(&LocationUpdate{})
	if points.Error != nil {
		return 0, points.Error
	}
	checkouts := s.db.Where("employee_id = ? AND synced = ? AND check_out_time_ms < ?",
		employeeID, true, cutoffMs).Delete(&EmergencyCheckout{})
	return points.RowsAffected + checkouts.RowsAffected, checkouts.Error
}

// SetTrackingActive persists the running-marker.
func (s *PendingStore) SetTrackingActive(employeeID uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	state := TrackerState{EmployeeID: employeeID, Active: true, StartedAtMs: time.Now().UnixMilli()}
	return s.db.Save(&state).Error
}

func (s *PendingStore) ClearTrackingActive(employeeID uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.db.Model(&TrackerState{}).Where("employee_id = ?", employeeID).
		Update("active", false).Error
}

// WasTrackingActive reports whether a previous run left the marker set,
// meaning the process died without a clean stop.
func (s *PendingStore) WasTrackingActive(employeeID uint) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var state TrackerState
	err := s.db.First(&state, "employee_id = ?", employeeID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, err
	}
	return state.Active, nil
}
