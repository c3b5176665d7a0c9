// internal/routes/router.go
package routes

import (
	"os"
	"strings"

	"fieldtrack_backend/internal/handlers"
	"fieldtrack_backend/internal/middleware"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

func NewRouter(db *gorm.DB) *gin.Engine {
	r := gin.Default()

	origins := strings.Split(os.Getenv("CORS_ORIGINS"), ",")
	if len(origins) == 1 && origins[0] == "" {
		origins = []string{"http://localhost:3000"}
	}
	r.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Employee-ID", "X-Device-Key"},
		AllowCredentials: true,
	}))

	hub := handlers.NewLiveHub()
	attH := handlers.NewAttendanceHandler(db, hub)
	adminH := handlers.NewAdminHandler(db)

	r.GET("/health", handlers.Health)

	// Device-authenticated endpoints used by the mobile agent.
	device := r.Group("/api/v1/attendance")
	device.Use(middleware.DeviceAuth(db))
	{
		device.POST("/check-in", attH.CheckIn)
		device.POST("/check-out", attH.CheckOut)
		device.POST("/emergency-checkout", attH.EmergencyCheckout)
		device.POST("/:id/location-update", attH.LocationUpdate)
	}

	// Token-authenticated endpoints used by the dashboard.
	api := r.Group("/api/v1")
	api.Use(middleware.AuthRequired())
	{
		api.GET("/attendance/:id", attH.Get)
		api.GET("/attendance/employee/:employee_id", attH.ListByEmployee)
		api.PUT("/attendance/:id/verify", attH.Verify)
	}

	admin := r.Group("/api/v1/admin")
	admin.Use(middleware.AuthRequired(), middleware.RequireAdmin())
	{
		admin.GET("/live", hub.HandleWebSocket)
		admin.GET("/attendance/unverified", adminH.ListUnverified)
		admin.POST("/employees/:id/device-key", adminH.IssueDeviceKey)
		admin.DELETE("/employees/:id/device-key", adminH.RevokeDeviceKey)
	}

	return r
}
