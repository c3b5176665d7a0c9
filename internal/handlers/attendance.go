// internal/handlers/attendance.go
package handlers

import (
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"fieldtrack_backend/internal/geo"
	"fieldtrack_backend/internal/models"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type AttendanceHandler struct {
	DB  *gorm.DB
	Hub *LiveHub
}

func NewAttendanceHandler(db *gorm.DB, hub *LiveHub) *AttendanceHandler {
	return &AttendanceHandler{DB: db, Hub: hub}
}

func attendanceDate(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

func validateLocation(loc models.LocationPayload) error {
	if err := geo.ValidateCoordinates(loc.Latitude, loc.Longitude); err != nil {
		return err
	}
	if loc.Accuracy < 0 {
		return errors.New("accuracy must be >= 0")
	}
	if loc.Timestamp.Millis == 0 {
		return errors.New("timestamp required")
	}
	return nil
}

// CheckIn opens the employee's record for today. The unique index on
// (employee_id, date) turns a double check-in into a conflict instead of
// a second record.
func (h *AttendanceHandler) CheckIn(c *gin.Context) {
	employeeID := c.GetUint("employee_id")

	var req models.CheckInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid body", "detail": err.Error()})
		return
	}
	if err := validateLocation(req.Location); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}

	checkInTime := req.Location.Timestamp.Time()
	row := models.AttendanceRecord{
		EmployeeID:         employeeID,
		Date:               attendanceDate(checkInTime),
		CheckInLatitude:    req.Location.Latitude,
		CheckInLongitude:   req.Location.Longitude,
		CheckInAccuracy:    req.Location.Accuracy,
		CheckInTime:        checkInTime,
		CheckInAddress:     req.Location.Address,
		Selfie:             req.Selfie,
		DevicePlatform:     req.DeviceInfo.Platform,
		DeviceVersion:      req.DeviceInfo.Version,
		DeviceModel:        req.DeviceInfo.Model,
		VerificationStatus: models.VerificationPending,
	}

	if err := h.DB.Create(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			var existing models.AttendanceRecord
			if ferr := h.DB.Where("employee_id = ? AND date = ?", employeeID, row.Date).First(&existing).Error; ferr == nil {
				c.JSON(http.StatusConflict, gin.H{"success": false, "error": "already checked in today", "data": gin.H{"id": existing.ID}})
				return
			}
			c.JSON(http.StatusConflict, gin.H{"success": false, "error": "already checked in today"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "failed to save", "detail": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": row})
}

// CheckOut closes today's open record with the final location.
func (h *AttendanceHandler) CheckOut(c *gin.Context) {
	employeeID := c.GetUint("employee_id")

	var req models.CheckOutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid body", "detail": err.Error()})
		return
	}
	if err := validateLocation(req.Location); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}

	checkOutTime := req.Location.Timestamp.Time()
	row, ok := h.openRecordForToday(c, employeeID, checkOutTime)
	if !ok {
		return
	}

	lat, lng, acc := req.Location.Latitude, req.Location.Longitude, req.Location.Accuracy
	row.CheckOutLatitude = &lat
	row.CheckOutLongitude = &lng
	row.CheckOutAccuracy = &acc
	row.CheckOutTime = &checkOutTime
	row.CheckOutAddress = req.Location.Address

	if err := h.DB.Save(row).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "failed to save", "detail": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": row})
}

// EmergencyCheckout closes today's open record out-of-band. The agent
// sends these when tracking stopped without a clean user checkout.
func (h *AttendanceHandler) EmergencyCheckout(c *gin.Context) {
	employeeID := c.GetUint("employee_id")

	var req models.EmergencyCheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid body", "detail": err.Error()})
		return
	}
	if err := validateLocation(req.Location); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}

	checkOutTime := req.Location.Timestamp.Time()
	row, ok := h.openRecordForToday(c, employeeID, checkOutTime)
	if !ok {
		return
	}

	lat, lng, acc := req.Location.Latitude, req.Location.Longitude, req.Location.Accuracy
	row.CheckOutLatitude = &lat
	row.CheckOutLongitude = &lng
	row.CheckOutAccuracy = &acc
	row.CheckOutTime = &checkOutTime
	row.EmergencyCheckout = true
	row.CheckOutReason = strings.TrimSpace(req.Reason)
	row.CheckOutData = req.CheckOutData

	if req.BatteryLevel != nil {
		level, err := models.NormalizeBatteryLevel(*req.BatteryLevel)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
			return
		}
		row.LastBatteryLevel = &level
	}

	if err := h.DB.Save(row).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "failed to save", "detail": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": gin.H{"message": "emergency checkout recorded", "id": row.ID}})
}

// LocationUpdate appends one point to the record's path. Duplicate
// submissions (same timestamp or same idempotency key) are acknowledged
// without appending again.
func (h *AttendanceHandler) LocationUpdate(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var req models.LocationUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid body", "detail": err.Error()})
		return
	}
	if err := validateLocation(req.Location); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}

	var batteryLevel *int
	if req.BatteryLevel != nil {
		level, err := models.NormalizeBatteryLevel(*req.BatteryLevel)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
			return
		}
		batteryLevel = &level
	}

	var row models.AttendanceRecord
	if err := h.DB.First(&row, id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "attendance record not found"})
		return
	}
	if row.EmployeeID != c.GetUint("employee_id") {
		c.JSON(http.StatusForbidden, gin.H{"success": false, "error": "not your record"})
		return
	}

	point := models.LocationPathPoint{
		AttendanceID:   row.ID,
		TimestampMs:    req.Location.Timestamp.Millis,
		Latitude:       req.Location.Latitude,
		Longitude:      req.Location.Longitude,
		Accuracy:       req.Location.Accuracy,
		BatteryLevel:   batteryLevel,
		IdempotencyKey: req.IdempotencyKey,
	}

	if req.IdempotencyKey != "" {
		var dup models.LocationPathPoint
		err := h.DB.Where("attendance_id = ? AND idempotency_key = ?", row.ID, req.IdempotencyKey).
			First(&dup).Error
		if err == nil {
			c.JSON(http.StatusOK, gin.H{"success": true, "data": gin.H{"message": "location already recorded"}})
			return
		}
	}

	// The unique index on (attendance_id, timestamp_ms) is the authority
	// on timestamp duplicates, so a concurrent retry cannot slip past a
	// pre-check.
	if err := h.DB.Create(&point).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			c.JSON(http.StatusOK, gin.H{"success": true, "data": gin.H{"message": "location already recorded"}})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "failed to save", "detail": err.Error()})
		return
	}

	if batteryLevel != nil {
		row.LastBatteryLevel = batteryLevel
		if err := h.DB.Save(&row).Error; err != nil {
			log.Printf("update battery level: %v", err)
		}
	}

	if h.Hub != nil {
		h.Hub.BroadcastLocation(row.EmployeeID, point)
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": gin.H{"message": "location recorded"}})
}

// Verify sets verification status/notes. Only the record owner or an
// admin may do so.
func (h *AttendanceHandler) Verify(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var req models.VerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid body", "detail": err.Error()})
		return
	}

	switch req.VerificationStatus {
	case models.VerificationPending, models.VerificationVerified,
		models.VerificationFlagged, models.VerificationRejected:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid verification status"})
		return
	}

	var row models.AttendanceRecord
	if err := h.DB.First(&row, id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "attendance record not found"})
		return
	}

	callerID := c.GetUint("employee_id")
	role, _ := c.Get("role")
	if row.EmployeeID != callerID && role != string(models.RoleAdmin) {
		c.JSON(http.StatusForbidden, gin.H{"success": false, "error": "not allowed to verify this record"})
		return
	}

	row.VerificationStatus = req.VerificationStatus
	row.VerificationNotes = strings.TrimSpace(req.VerificationNotes)
	row.VerifiedBy = &callerID
	if err := h.DB.Save(&row).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "failed to save", "detail": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": row})
}

// Get returns one record with its path in timestamp order.
func (h *AttendanceHandler) Get(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var row models.AttendanceRecord
	err := h.DB.Preload("Path", func(db *gorm.DB) *gorm.DB {
		return db.Order("timestamp_ms asc")
	}).First(&row, id).Error
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "attendance record not found"})
		return
	}

	callerID := c.GetUint("employee_id")
	role, _ := c.Get("role")
	if row.EmployeeID != callerID && role != string(models.RoleAdmin) {
		c.JSON(http.StatusForbidden, gin.H{"success": false, "error": "not your record"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": row})
}

// ListByEmployee returns recent daily records, newest first.
func (h *AttendanceHandler) ListByEmployee(c *gin.Context) {
	idStr := strings.TrimSpace(c.Param("employee_id"))
	id64, err := strconv.ParseUint(idStr, 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "employee_id required"})
		return
	}
	employeeID := uint(id64)

	callerID := c.GetUint("employee_id")
	role, _ := c.Get("role")
	if employeeID != callerID && role != string(models.RoleAdmin) {
		c.JSON(http.StatusForbidden, gin.H{"success": false, "error": "not your records"})
		return
	}

	var rows []models.AttendanceRecord
	if err := h.DB.Where("employee_id = ?", employeeID).Order("date desc").Limit(50).Find(&rows).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "failed to load", "detail": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": rows})
}

func (h *AttendanceHandler) openRecordForToday(c *gin.Context, employeeID uint, at time.Time) (*models.AttendanceRecord, bool) {
	var row models.AttendanceRecord
	err := h.DB.Where("employee_id = ? AND date = ?", employeeID, attendanceDate(at)).First(&row).Error
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "no check-in found for today"})
		return nil, false
	}
	if row.CheckOutTime != nil {
		c.JSON(http.StatusConflict, gin.H{"success": false, "error": "already checked out"})
		return nil, false
	}
	return &row, true
}

func parseID(c *gin.Context) (uint, bool) {
	idStr := strings.TrimSpace(c.Param("id"))
	id64, err := strconv.ParseUint(idStr, 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid id"})
		return 0, false
	}
	return uint(id64), true
}
