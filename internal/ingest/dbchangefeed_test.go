package ingest

import (
	"testing"
	"time"
)

func TestDiffSlotsBaselineAllZeroEmitsAddedForFirstOnes(t *testing.T) {
	var lastSeen [6]int
	current := [6]int{0, 1, 0, 0, 0, 0}
	upserts, removes := diffSlots(lastSeen, current, time.Now())
	if len(removes) != 0 {
		t.Fatalf("expected no removes, got %v", removes)
	}
	if len(upserts) != 1 || upserts[0].ID != "db:1" {
		t.Fatalf("expected a single db:1 upsert, got %+v", upserts)
	}
	if upserts[0].Device != "Bodega - microbiología refri 1" {
		t.Fatalf("unexpected device label: %s", upserts[0].Device)
	}
	if upserts[0].Description != tempAlertDescription {
		t.Fatalf("unexpected description: %s", upserts[0].Description)
	}
}

func TestDiffSlotsClearedSlotEmitsRemove(t *testing.T) {
	lastSeen := [6]int{0, 1, 0, 0, 0, 0}
	current := [6]int{0, 0, 0, 0, 0, 0}
	upserts, removes := diffSlots(lastSeen, current, time.Now())
	if len(upserts) != 0 {
		t.Fatalf("expected no upserts, got %+v", upserts)
	}
	if len(removes) != 1 || removes[0] != "db:1" {
		t.Fatalf("expected db:1 remove, got %v", removes)
	}
}

func TestDiffSlotsNoChangeIsNoOp(t *testing.T) {
	lastSeen := [6]int{1, 0, 1, 0, 0, 0}
	current := [6]int{1, 0, 1, 0, 0, 0}
	upserts, removes := diffSlots(lastSeen, current, time.Now())
	if len(upserts) != 0 || len(removes) != 0 {
		t.Fatalf("expected no diff, got upserts=%+v removes=%v", upserts, removes)
	}
}

func TestDiffSlotsMultipleTransitions(t *testing.T) {
	lastSeen := [6]int{1, 0, 0, 0, 0, 0}
	current := [6]int{0, 1, 1, 0, 0, 0}
	upserts, removes := diffSlots(lastSeen, current, time.Now())
	if len(upserts) != 2 {
		t.Fatalf("expected 2 upserts, got %+v", upserts)
	}
	if len(removes) != 1 || removes[0] != "db:0" {
		t.Fatalf("expected db:0 remove, got %v", removes)
	}
}

func TestParsePayloadRejectsOutOfRangeSlot(t *testing.T) {
	if _, _, err := parsePayload(`{"new":{"status":[0,1,2,0,0,0]}}`); err == nil {
		t.Fatalf("expected an error for an out-of-range slot value")
	}
}

func TestParsePayloadValid(t *testing.T) {
	status, _, err := parsePayload(`{"new":{"status":[0,1,0,0,0,0],"timestamp":"2026-01-01T12:00:00Z"}}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status != [6]int{0, 1, 0, 0, 0, 0} {
		t.Fatalf("unexpected status: %v", status)
	}
}

func TestToGMTMinus6Conversion(t *testing.T) {
	utc := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	local := toGMTMinus6(utc)
	if local.Hour() != 6 {
		t.Fatalf("expected 06:00 local, got %02d:00", local.Hour())
	}
}
