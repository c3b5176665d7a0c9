package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"fieldtrack_backend/internal/models"
	"fieldtrack_backend/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func signToken(t *testing.T, secret string, employeeID uint, role string) string {
	t.Helper()
	claims := jwt.MapClaims{
		"employee_id": employeeID,
		"role":        role,
		"exp":         time.Now().Add(time.Hour).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func TestAuthRequired(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.GET("/protected", AuthRequired(), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"employee_id": c.GetUint("employee_id")})
	})

	// No token.
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/protected", nil))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", w.Code)
	}

	// Token signed with the wrong secret.
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, "other-secret", 7, "EMPLOYEE"))
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad signature, got %d", w.Code)
	}

	// Valid token.
	req = httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, "test-secret", 7, "EMPLOYEE"))
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 for valid token, got %d body %s", w.Code, w.Body.String())
	}
}

func TestRequireAdmin(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.GET("/admin", func(c *gin.Context) { c.Set("role", "EMPLOYEE") }, RequireAdmin(), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/admin", nil))
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for employee role, got %d", w.Code)
	}
}

func TestDeviceAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&models.Employee{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	key := utils.NewDeviceKey()
	hash, err := utils.HashDeviceKey(key)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	emp := models.Employee{Role: models.RoleEmployee, FullName: "Tester", Email: "t@example.com", DeviceKeyHash: hash}
	if err := db.Create(&emp).Error; err != nil {
		t.Fatalf("create employee: %v", err)
	}

	r := gin.New()
	r.POST("/sync", DeviceAuth(db), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"employee_id": c.GetUint("employee_id")})
	})

	do := func(id, k string) int {
		req := httptest.NewRequest(http.MethodPost, "/sync", nil)
		if id != "" {
			req.Header.Set("X-Employee-ID", id)
		}
		if k != "" {
			req.Header.Set("X-Device-Key", k)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}

	if code := do("1", key); code != http.StatusOK {
		t.Fatalf("expected 200 with valid key, got %d", code)
	}
	if code := do("1", "wrong-key"); code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with wrong key, got %d", code)
	}
	if code := do("", ""); code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without credentials, got %d", code)
	}
	if code := do("999", key); code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for unknown employee, got %d", code)
	}
}
