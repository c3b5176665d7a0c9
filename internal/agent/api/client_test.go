package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"fieldtrack_backend/internal/models"
)

func respond(w http.ResponseWriter, status int, body map[string]any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func TestPostLocationUpdateMapsStatuses(t *testing.T) {
	cases := []struct {
		name   string
		status int
		check  func(error) bool
	}{
		{"validation", http.StatusBadRequest, func(err error) bool { return errors.Is(err, ErrValidation) }},
		{"not found", http.StatusNotFound, func(err error) bool { return errors.Is(err, ErrNotFound) }},
		{"forbidden", http.StatusForbidden, func(err error) bool { return errors.Is(err, ErrForbidden) }},
		{"server error", http.StatusInternalServerError, func(err error) bool {
			var netErr *NetworkError
			return errors.As(err, &netErr)
		}},
	}

	for _, tc := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			respond(w, tc.status, map[string]any{"success": false, "error": tc.name})
		}))
		c := NewClient(srv.URL, 7, "key")

		err := c.PostLocationUpdate(context.Background(), 42, models.LocationUpdateRequest{})
		if err == nil || !tc.check(err) {
			t.Fatalf("%s: wrong error %v", tc.name, err)
		}
		srv.Close()
	}
}

func TestPostLocationUpdateSendsDeviceHeaders(t *testing.T) {
	var gotEmployee, gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotEmployee = r.Header.Get("X-Employee-ID")
		gotKey = r.Header.Get("X-Device-Key")
		respond(w, http.StatusOK, map[string]any{"success": true})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 7, "secret-key")
	if err := c.PostLocationUpdate(context.Background(), 42, models.LocationUpdateRequest{}); err != nil {
		t.Fatalf("post: %v", err)
	}
	if gotEmployee != "7" || gotKey != "secret-key" {
		t.Fatalf("missing device headers: employee=%q key=%q", gotEmployee, gotKey)
	}
}

func TestConnectionFailureIsNetworkError(t *testing.T) {
	c := NewClient("http://127.0.0.1:1", 7, "key")

	err := c.PostLocationUpdate(context.Background(), 42, models.LocationUpdateRequest{})
	var netErr *NetworkError
	if !errors.As(err, &netErr) {
		t.Fatalf("expected NetworkError, got %v", err)
	}
}

func TestCheckInReturnsRecordID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		respond(w, http.StatusOK, map[string]any{"success": true, "data": map[string]any{"id": 42}})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 7, "key")
	id, err := c.CheckIn(context.Background(), models.CheckInRequest{})
	if err != nil {
		t.Fatalf("check-in: %v", err)
	}
	if id != 42 {
		t.Fatalf("expected id 42, got %d", id)
	}
}

func TestCheckInConflictResumesExistingRecord(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		respond(w, http.StatusConflict, map[string]any{
			"success": false,
			"error":   "already checked in today",
			"data":    map[string]any{"id": 42},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 7, "key")
	id, err := c.CheckIn(context.Background(), models.CheckInRequest{})
	if err != nil {
		t.Fatalf("conflict should resume, got %v", err)
	}
	if id != 42 {
		t.Fatalf("expected existing id 42, got %d", id)
	}
}

func TestEmergencyCheckoutConflictIsSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		respond(w, http.StatusConflict, map[string]any{"success": false, "error": "already checked out"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 7, "key")
	if err := c.PostEmergencyCheckout(context.Background(), models.EmergencyCheckoutRequest{}); err != nil {
		t.Fatalf("conflict should be treated as delivered, got %v", err)
	}
}
