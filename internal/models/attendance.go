// internal/models/attendance.go
package models

import "time"

type VerificationStatus string

const (
	VerificationPending  VerificationStatus = "PENDING"
	VerificationVerified VerificationStatus = "VERIFIED"
	VerificationFlagged  VerificationStatus = "FLAGGED"
	VerificationRejected VerificationStatus = "REJECTED"
)

// AttendanceRecord is the authoritative per-employee per-day record. The
// unique index on (employee_id, date) is what makes "one record per day"
// hold under concurrent check-in retries.
type AttendanceRecord struct {
	ID         uint   `gorm:"primaryKey" json:"id"`
	EmployeeID uint   `gorm:"not null;uniqueIndex:idx_attendance_employee_date" json:"employee_id"`
	Date       string `gorm:"type:varchar(10);not null;uniqueIndex:idx_attendance_employee_date" json:"date"` // YYYY-MM-DD

	CheckInLatitude  float64   `gorm:"not null" json:"check_in_latitude"`
	CheckInLongitude float64   `gorm:"not null" json:"check_in_longitude"`
	CheckInAccuracy  float64   `json:"check_in_accuracy"`
	CheckInTime      time.Time `gorm:"not null" json:"check_in_time"`
	CheckInAddress   string    `json:"check_in_address,omitempty"`

	CheckOutLatitude  *float64   `json:"check_out_latitude,omitempty"`
	CheckOutLongitude *float64   `json:"check_out_longitude,omitempty"`
	CheckOutAccuracy  *float64   `json:"check_out_accuracy,omitempty"`
	CheckOutTime      *time.Time `json:"check_out_time,omitempty"`
	CheckOutAddress   string     `json:"check_out_address,omitempty"`

	// Set when the checkout arrived through the emergency path.
	EmergencyCheckout bool   `gorm:"not null;default:false" json:"emergency_checkout"`
	CheckOutReason    string `json:"check_out_reason,omitempty"`
	CheckOutData      string `gorm:"type:text" json:"-"`

	Selfie         string `gorm:"type:text" json:"-"`
	DevicePlatform string `json:"device_platform,omitempty"`
	DeviceVersion  string `json:"device_version,omitempty"`
	DeviceModel    string `json:"device_model,omitempty"`

	LastBatteryLevel *int `json:"last_battery_level,omitempty"` // 0-100

	VerificationStatus VerificationStatus `gorm:"type:varchar(20);not null;default:PENDING" json:"verification_status"`
	VerificationNotes  string             `json:"verification_notes,omitempty"`
	VerifiedBy         *uint              `json:"verified_by,omitempty"`

	Path []LocationPathPoint `gorm:"foreignKey:AttendanceID" json:"path,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// LocationPathPoint is one accepted location update. The unique index on
// (attendance_id, timestamp_ms) makes retried submissions idempotent.
type LocationPathPoint struct {
	ID           uint  `gorm:"primaryKey" json:"id"`
	AttendanceID uint  `gorm:"not null;uniqueIndex:idx_path_attendance_ts" json:"attendance_id"`
	TimestampMs  int64 `gorm:"not null;uniqueIndex:idx_path_attendance_ts" json:"timestamp_ms"`

	Latitude  float64 `gorm:"not null" json:"latitude"`
	Longitude float64 `gorm:"not null" json:"longitude"`
	Accuracy  float64 `json:"accuracy"`

	BatteryLevel *int `json:"battery_level,omitempty"` // 0-100

	IdempotencyKey string `gorm:"index" json:"-"`

	CreatedAt time.Time `json:"created_at"`
}
