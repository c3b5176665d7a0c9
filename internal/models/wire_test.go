package models

import (
	"encoding/json"
	"testing"
)

func TestFlexTimestampEpochSeconds(t *testing.T) {
	var ts FlexTimestamp
	if err := json.Unmarshal([]byte(`1700000000`), &ts); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if ts.Millis != 1700000000000 {
		t.Fatalf("expected 1700000000000, got %d", ts.Millis)
	}
}

func TestFlexTimestampEpochMillis(t *testing.T) {
	var ts FlexTimestamp
	if err := json.Unmarshal([]byte(`1700000000000`), &ts); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if ts.Millis != 1700000000000 {
		t.Fatalf("expected millis unchanged, got %d", ts.Millis)
	}
}

func TestFlexTimestampISOString(t *testing.T) {
	var ts FlexTimestamp
	if err := json.Unmarshal([]byte(`"2023-11-14T22:13:20Z"`), &ts); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if ts.Millis != 1700000000000 {
		t.Fatalf("expected 1700000000000, got %d", ts.Millis)
	}
}

func TestFlexTimestampQuotedNumber(t *testing.T) {
	var ts FlexTimestamp
	if err := json.Unmarshal([]byte(`"1700000000"`), &ts); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if ts.Millis != 1700000000000 {
		t.Fatalf("expected 1700000000000, got %d", ts.Millis)
	}
}

func TestFlexTimestampMalformed(t *testing.T) {
	var ts FlexTimestamp
	if err := json.Unmarshal([]byte(`"not a time"`), &ts); err == nil {
		t.Fatalf("expected error for malformed timestamp")
	}
	if err := json.Unmarshal([]byte(`null`), &ts); err == nil {
		t.Fatalf("expected error for null timestamp")
	}
}

func TestNormalizeBatteryLevel(t *testing.T) {
	cases := []struct {
		in   float64
		want int
		ok   bool
	}{
		{0, 0, true},
		{0.15, 15, true}, // fraction variant
		{0.5, 50, true},
		{1, 1, true}, // integer percent, not a full-battery fraction
		{42, 42, true},
		{100, 100, true},
		{-1, 0, false},
		{101, 0, false},
	}
	for _, tc := range cases {
		got, err := NormalizeBatteryLevel(tc.in)
		if tc.ok && err != nil {
			t.Fatalf("battery %v: unexpected error %v", tc.in, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("battery %v: expected error", tc.in)
		}
		if tc.ok && got != tc.want {
			t.Fatalf("battery %v: expected %d, got %d", tc.in, tc.want, got)
		}
	}
}
