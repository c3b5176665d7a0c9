// internal/handlers/admin_handler.go
package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"fieldtrack_backend/internal/models"
	"fieldtrack_backend/internal/utils"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type AdminHandler struct {
	DB *gorm.DB
}

func NewAdminHandler(db *gorm.DB) *AdminHandler { return &AdminHandler{DB: db} }

// IssueDeviceKey mints a device key for the employee's phone and binds the
// device id. The raw key is returned once; only the hash is stored.
func (h *AdminHandler) IssueDeviceKey(c *gin.Context) {
	idStr := strings.TrimSpace(c.Param("id"))
	id64, _ := strconv.ParseUint(idStr, 10, 64)
	id := uint(id64)

	var req struct {
		DeviceID string `json:"device_id"`
	}
	_ = c.ShouldBindJSON(&req)

	var emp models.Employee
	if err := h.DB.First(&emp, id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "employee not found"})
		return
	}

	key := utils.NewDeviceKey()
	hash, err := utils.HashDeviceKey(key)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "key generation failed"})
		return
	}

	emp.DeviceKeyHash = hash
	emp.BoundDeviceID = strings.TrimSpace(req.DeviceID)
	if err := h.DB.Save(&emp).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "save failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": gin.H{"employee_id": emp.ID, "device_key": key}})
}

// RevokeDeviceKey clears the device binding so a lost phone can no longer
// sync.
func (h *AdminHandler) RevokeDeviceKey(c *gin.Context) {
	idStr := strings.TrimSpace(c.Param("id"))
	id64, _ := strconv.ParseUint(idStr, 10, 64)
	id := uint(id64)

	var emp models.Employee
	if err := h.DB.First(&emp, id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "employee not found"})
		return
	}

	emp.DeviceKeyHash = ""
	emp.BoundDeviceID = ""
	if err := h.DB.Save(&emp).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "revoke failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// ListUnverified returns records awaiting review, oldest first.
func (h *AdminHandler) ListUnverified(c *gin.Context) {
	var rows []models.AttendanceRecord
	if err := h.DB.Where("verification_status = ?", models.VerificationPending).
		Order("date asc").Limit(100).Find(&rows).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "load failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": rows})
}
