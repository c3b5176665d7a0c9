// internal/models/employee.go
package models

import "time"

type EmployeeRole string

const (
	RoleAdmin    EmployeeRole = "ADMIN"
	RoleEmployee EmployeeRole = "EMPLOYEE"
)

// Employee is the minimal identity the attendance pipeline needs. Profile
// management lives in the admin dashboard service; tokens come from the
// external auth provider.
type Employee struct {
	ID       uint         `gorm:"primaryKey" json:"id"`
	Role     EmployeeRole `gorm:"type:varchar(20);not null" json:"role"`
	FullName string       `gorm:"not null" json:"full_name"`
	Email    string       `gorm:"uniqueIndex;not null" json:"email"`
	Phone    string       `json:"phone"`

	// Sync auth: the agent presents the raw device key, we keep the hash.
	DeviceKeyHash string `json:"-"`
	BoundDeviceID string `gorm:"type:varchar(64)" json:"-"`

	CreatedAt time.Time `json:"created_at"`
}
