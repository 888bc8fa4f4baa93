package utils

import (
	"testing"
	"time"
)

// The day key must come back as midnight UTC of the LOCAL calendar day.
// Anything zone-attached would be shifted by the driver before binding and
// stop matching the stored DATE.
func TestConvertToDate_ReturnsUTCMidnightOfLocalDay(t *testing.T) {
	// 20:00 UTC on March 1 is already 02:30 on March 2 in Asia/Yangon (+06:30).
	in := time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC)
	got, err := ConvertToDate(in, "Asia/Yangon")
	if err != nil {
		t.Fatalf("ConvertToDate: %v", err)
	}
	want := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("expected %s, got %s", want, got)
	}
	if got.Location() != time.UTC {
		t.Fatalf("expected UTC location, got %s", got.Location())
	}
}

func TestConvertToDate_SameLocalDayCollapsesToOneKey(t *testing.T) {
	// Both timestamps fall on March 2 in Yangon although they straddle the
	// UTC day boundary.
	early := time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC)
	late := time.Date(2026, 3, 2, 3, 0, 0, 0, time.UTC)

	a, err := ConvertToDate(early, "Asia/Yangon")
	if err != nil {
		t.Fatalf("ConvertToDate(early): %v", err)
	}
	b, err := ConvertToDate(late, "Asia/Yangon")
	if err != nil {
		t.Fatalf("ConvertToDate(late): %v", err)
	}
	if !a.Equal(b) {
		t.Fatalf("expected one day key, got %s and %s", a, b)
	}
}

func TestConvertToDate_UTCBusiness(t *testing.T) {
	in := time.Date(2026, 3, 2, 23, 59, 0, 0, time.UTC)
	got, err := ConvertToDate(in, "UTC")
	if err != nil {
		t.Fatalf("ConvertToDate: %v", err)
	}
	if !got.Equal(time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("expected 2026-03-02 midnight UTC, got %s", got)
	}
}

func TestConvertToDate_EmptyTimezoneDefaults(t *testing.T) {
	in := time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC)
	got, err := ConvertToDate(in, "")
	if err != nil {
		t.Fatalf("ConvertToDate: %v", err)
	}
	// Default business timezone is Asia/Yangon.
	if !got.Equal(time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("expected Yangon default, got %s", got)
	}
}
