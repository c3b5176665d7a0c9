// cmd/agent/main.go
//
// Device-side agent: samples location, queues points locally, and syncs
// them to the attendance server. On a real device the sampler provider
// and foreground service are backed by platform glue; standalone it runs
// against the simulated provider.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"fieldtrack_backend/internal/agent/api"
	"fieldtrack_backend/internal/agent/sampler"
	"fieldtrack_backend/internal/agent/store"
	"fieldtrack_backend/internal/agent/syncer"
	"fieldtrack_backend/internal/agent/tracker"
	"fieldtrack_backend/internal/models"
)

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func main() {
	_ = godotenv.Load()

	serverURL := os.Getenv("SERVER_URL")
	if serverURL == "" {
		serverURL = "http://localhost:8080"
	}
	employeeID := uint(envInt("EMPLOYEE_ID", 0))
	if employeeID == 0 {
		log.Fatal("EMPLOYEE_ID required")
	}
	employeeName := os.Getenv("EMPLOYEE_NAME")
	deviceKey := os.Getenv("DEVICE_KEY")
	if deviceKey == "" {
		log.Fatal("DEVICE_KEY required")
	}
	dbPath := os.Getenv("AGENT_DB")
	if dbPath == "" {
		dbPath = "fieldtrack_agent.db"
	}

	st, err := store.Open(dbPath)
	if err != nil {
		log.Fatal("open pending store: ", err)
	}

	client := api.NewClient(serverURL, employeeID, deviceKey)
	provider := sampler.NewSimulatedProvider(
		envFloat("START_LAT", -6.2088),
		envFloat("START_LNG", 106.8456),
	)

	opts := sampler.Options{
		Interval:       time.Duration(envInt("SAMPLE_INTERVAL_SECONDS", 30)) * time.Second,
		DistanceMeters: envFloat("SAMPLE_DISTANCE_METERS", 0),
	}
	trk := tracker.New(st, provider, &tracker.NoopForeground{}, opts)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Check in (or resume today's record) before tracking starts.
	first, err := sampler.GetCurrentFix(ctx, provider)
	if err != nil {
		log.Fatal("initial fix: ", err)
	}
	attendanceID, err := client.CheckIn(ctx, models.CheckInRequest{
		Location: models.LocationPayload{
			Latitude:  first.Latitude,
			Longitude: first.Longitude,
			Accuracy:  first.Accuracy,
			Timestamp: models.FlexTimestamp{Millis: first.Timestamp.UnixMilli()},
		},
		DeviceInfo: models.DeviceInfo{Platform: "agent", Version: "1", Model: "simulated"},
	})
	if err != nil {
		log.Fatal("check-in: ", err)
	}
	log.Printf("checked in, attendance record %d (accuracy tier %s)", attendanceID, first.Tier())

	sc := syncer.New(st, client, syncer.Config{
		Interval: time.Duration(envInt("SYNC_INTERVAL_SECONDS", 30)) * time.Second,
	}, employeeID, attendanceID)
	trk.OnDirtyStart = func() { sc.SyncNow(context.Background()) }

	syncCtx, stopSync := context.WithCancel(ctx)
	go sc.Run(syncCtx)

	if err := trk.StartTracking(ctx, employeeID, employeeName); err != nil {
		log.Fatal("start tracking: ", err)
	}
	log.Printf("tracking employee %d", employeeID)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	log.Printf("stopping")
	last, fixErr := sampler.GetCurrentFix(ctx, provider)

	var payload *tracker.CheckoutPayload
	if fixErr == nil {
		err := client.CheckOut(ctx, models.CheckOutRequest{
			Location: models.LocationPayload{
				Latitude:  last.Latitude,
				Longitude: last.Longitude,
				Accuracy:  last.Accuracy,
				Timestamp: models.FlexTimestamp{Millis: last.Timestamp.UnixMilli()},
			},
			DeviceInfo: models.DeviceInfo{Platform: "agent", Version: "1", Model: "simulated"},
		})
		if err != nil {
			// Could not complete the normal flow; queue an emergency
			// checkout for the next sync.
			log.Printf("clean checkout failed, queueing emergency checkout: %v", err)
			payload = &tracker.CheckoutPayload{Fix: last, Reason: "checkout failed: " + err.Error()}
		}
	} else {
		log.Printf("no final fix for checkout: %v", fixErr)
	}

	if err := trk.StopTracking(payload); err != nil {
		log.Printf("stop tracking: %v", err)
	}

	stopSync()
	// Final best-effort drain; not retried.
	sc.SyncNow(context.Background())
}
