package middleware

import (
	"net/http"
	"os"
	"strconv"
	"strings"

	"fieldtrack_backend/internal/models"
	"fieldtrack_backend/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"gorm.io/gorm"
)

// Claims mirrors what the external auth provider puts into its tokens.
// This service only verifies; it never issues.
type Claims struct {
	EmployeeID uint   `json:"employee_id"`
	Role       string `json:"role"`
	jwt.RegisteredClaims
}

func AuthRequired() gin.HandlerFunc {
	secret := os.Getenv("JWT_SECRET")
	return func(c *gin.Context) {
		h := c.GetHeader("Authorization")
		if !strings.HasPrefix(h, "Bearer ") {
			c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "missing token"})
			c.Abort()
			return
		}
		tok := strings.TrimPrefix(h, "Bearer ")

		claims := &Claims{}
		parsed, err := jwt.ParseWithClaims(tok, claims, func(token *jwt.Token) (any, error) {
			return []byte(secret), nil
		})
		if err != nil || !parsed.Valid {
			c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "invalid token"})
			c.Abort()
			return
		}

		c.Set("employee_id", claims.EmployeeID)
		c.Set("role", claims.Role)
		c.Next()
	}
}

func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		role, _ := c.Get("role")
		if role != string(models.RoleAdmin) {
			c.JSON(http.StatusForbidden, gin.H{"success": false, "error": "admin only"})
			c.Abort()
			return
		}
		c.Next()
	}
}

// DeviceAuth authenticates the agent's sync calls: the device sends its
// employee id and raw device key, we check it against the stored hash.
func DeviceAuth(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		idStr := strings.TrimSpace(c.GetHeader("X-Employee-ID"))
		key := strings.TrimSpace(c.GetHeader("X-Device-Key"))
		if idStr == "" || key == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "missing device credentials"})
			c.Abort()
			return
		}

		id64, err := strconv.ParseUint(idStr, 10, 64)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "invalid device credentials"})
			c.Abort()
			return
		}

		var emp models.Employee
		if err := db.First(&emp, uint(id64)).Error; err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "invalid device credentials"})
			c.Abort()
			return
		}
		if emp.DeviceKeyHash == "" || !utils.CheckDeviceKey(emp.DeviceKeyHash, key) {
			c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "invalid device credentials"})
			c.Abort()
			return
		}

		c.Set("employee_id", emp.ID)
		c.Set("role", string(emp.Role))
		c.Next()
	}
}
