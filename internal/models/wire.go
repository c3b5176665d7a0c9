// internal/models/wire.go
//
// Request/response shapes shared by the server handlers and the device
// agent's API client. Field names follow the mobile wire format
// (camelCase), unlike the snake_case storage entities.
package models

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// FlexTimestamp accepts epoch seconds, epoch milliseconds, or an ISO-8601
// string, and normalizes to epoch milliseconds. Numeric values below
// 1e10 are treated as seconds.
type FlexTimestamp struct {
	Millis int64
}

const secondsCutoff = 10_000_000_000

func (t *FlexTimestamp) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "" || s == "null" {
		return fmt.Errorf("timestamp required")
	}

	if s[0] == '"' {
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return err
		}
		// Quoted numerics show up from some serializers.
		if n, err := strconv.ParseFloat(str, 64); err == nil {
			t.Millis = normalizeEpoch(n)
			return nil
		}
		parsed, err := time.Parse(time.RFC3339Nano, str)
		if err != nil {
			parsed, err = time.Parse(time.RFC3339, str)
		}
		if err != nil {
			return fmt.Errorf("malformed timestamp %q", str)
		}
		t.Millis = parsed.UnixMilli()
		return nil
	}

	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("malformed timestamp %s", s)
	}
	t.Millis = normalizeEpoch(n)
	return nil
}

func (t FlexTimestamp) MarshalJSON() ([]byte, error) {
	return []byte(strconv.FormatInt(t.Millis, 10)), nil
}

func (t FlexTimestamp) Time() time.Time {
	return time.UnixMilli(t.Millis)
}

func normalizeEpoch(n float64) int64 {
	if n < secondsCutoff {
		return int64(n * 1000)
	}
	return int64(n)
}

// NormalizeBatteryLevel converts wire battery values to the canonical
// integer percentage. Values strictly between 0 and 1 are the legacy
// fraction variant and are scaled by 100. Exactly 1 means 1 percent:
// legacy clients must report a full battery as 100, never 1.0, so the
// agent's own 1% report is not misread as full.
func NormalizeBatteryLevel(raw float64) (int, error) {
	if raw > 0 && raw < 1 {
		raw = raw * 100
	}
	if raw < 0 || raw > 100 {
		return 0, fmt.Errorf("battery level %v out of range", raw)
	}
	return int(raw + 0.5), nil
}

// LocationPayload is the wire shape of a single fix.
type LocationPayload struct {
	Latitude  float64       `json:"latitude"`
	Longitude float64       `json:"longitude"`
	Accuracy  float64       `json:"accuracy,omitempty"`
	Timestamp FlexTimestamp `json:"timestamp"`
	Address   string        `json:"address,omitempty"`
}

type DeviceInfo struct {
	Platform string `json:"platform"`
	Version  string `json:"version"`
	Model    string `json:"model"`
}

type CheckInRequest struct {
	Location   LocationPayload `json:"location"`
	Selfie     string          `json:"selfie,omitempty"`
	DeviceInfo DeviceInfo      `json:"deviceInfo"`
}

type CheckOutRequest struct {
	Location   LocationPayload `json:"location"`
	Selfie     string          `json:"selfie,omitempty"`
	DeviceInfo DeviceInfo      `json:"deviceInfo"`
}

type LocationUpdateRequest struct {
	Location       LocationPayload `json:"location"`
	BatteryLevel   *float64        `json:"batteryLevel,omitempty"`
	IdempotencyKey string          `json:"idempotencyKey,omitempty"`
}

type EmergencyCheckoutRequest struct {
	Location       LocationPayload `json:"location"`
	BatteryLevel   *float64        `json:"batteryLevel,omitempty"`
	Reason         string          `json:"reason"`
	CheckOutData   string          `json:"checkOutData,omitempty"`
	IdempotencyKey string          `json:"idempotencyKey,omitempty"`
}

type VerifyRequest struct {
	VerificationStatus VerificationStatus `json:"verificationStatus"`
	VerificationNotes  string             `json:"verificationNotes,omitempty"`
}

// APIResponse is the uniform envelope the mobile client expects.
type APIResponse struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
}
