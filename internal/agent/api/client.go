// internal/agent/api/client.go
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"fieldtrack_backend/internal/models"
)

var (
	ErrNotFound   = errors.New("attendance record not found")
	ErrValidation = errors.New("request rejected by server")
	ErrForbidden  = errors.New("device not authorized")
)

// NetworkError marks transient failures the syncer should retry.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string { return fmt.Sprintf("network error: %v", e.Err) }
func (e *NetworkError) Unwrap() error { return e.Err }

// Client talks to the attendance API with device credentials.
type Client struct {
	BaseURL    string
	EmployeeID uint
	DeviceKey  string
	HTTPClient *http.Client
}

func NewClient(baseURL string, employeeID uint, deviceKey string) *Client {
	return &Client{
		BaseURL:    baseURL,
		EmployeeID: employeeID,
		DeviceKey:  deviceKey,
		HTTPClient: &http.Client{Timeout: 15 * time.Second},
	}
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
}

func (c *Client) post(ctx context.Context, path string, body any) (*envelope, int, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(raw))
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Employee-ID", strconv.FormatUint(uint64(c.EmployeeID), 10))
	req.Header.Set("X-Device-Key", c.DeviceKey)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, 0, &NetworkError{Err: err}
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, resp.StatusCode, &NetworkError{Err: err}
	}
	return &env, resp.StatusCode, nil
}

func mapStatus(status int, env *envelope) error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusBadRequest:
		return fmt.Errorf("%w: %s", ErrValidation, env.Error)
	case status == http.StatusNotFound:
		return ErrNotFound
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return fmt.Errorf("%w: %s", ErrForbidden, env.Error)
	default:
		return &NetworkError{Err: fmt.Errorf("server status %d: %s", status, env.Error)}
	}
}

// CheckIn opens today's record and returns its id. An "already checked in"
// conflict is not an error: the existing record id is returned so the
// agent can resume a day already in progress.
func (c *Client) CheckIn(ctx context.Context, req models.CheckInRequest) (uint, error) {
	env, status, err := c.post(ctx, "/api/v1/attendance/check-in", req)
	if err != nil {
		return 0, err
	}

	if status == http.StatusConflict || (status >= 200 && status < 300) {
		var data struct {
			ID uint `json:"id"`
		}
		if err := json.Unmarshal(env.Data, &data); err != nil || data.ID == 0 {
			return 0, &NetworkError{Err: fmt.Errorf("malformed check-in response")}
		}
		return data.ID, nil
	}
	return 0, mapStatus(status, env)
}

func (c *Client) CheckOut(ctx context.Context, req models.CheckOutRequest) error {
	env, status, err := c.post(ctx, "/api/v1/attendance/check-out", req)
	if err != nil {
		return err
	}
	return mapStatus(status, env)
}

func (c *Client) PostLocationUpdate(ctx context.Context, attendanceID uint, req models.LocationUpdateRequest) error {
	path := fmt.Sprintf("/api/v1/attendance/%d/location-update", attendanceID)
	env, status, err := c.post(ctx, path, req)
	if err != nil {
		return err
	}
	return mapStatus(status, env)
}

func (c *Client) PostEmergencyCheckout(ctx context.Context, req models.EmergencyCheckoutRequest) error {
	env, status, err := c.post(ctx, "/api/v1/attendance/emergency-checkout", req)
	if err != nil {
		return err
	}
	// An already-closed day means a previous attempt landed.
	if status == http.StatusConflict {
		return nil
	}
	return mapStatus(status, env)
}
