package service

import (
	"artemis/models"
	"testing"
	"time"
)

func TestHistoryCapAcrossSampleTypes(t *testing.T) {
	const limit = 10
	history := NewHistoryStore(limit)
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 25; i++ {
		at := base.Add(time.Duration(i) * time.Second)
		if i%2 == 0 {
			history.Append("dev-1", models.NewGpsEntry(models.GpsSample{Lat: float64(i)}, at))
		} else {
			history.Append("dev-1", models.NewImuEntry(models.ImuSample{Timestamp: int64(i)}, at))
		}
	}

	recent := history.Recent("dev-1", limit)
	if len(recent) != limit {
		t.Fatalf("expected %d entries, got %d", limit, len(recent))
	}
	for i, entry := range recent {
		want := base.Add(time.Duration(15+i) * time.Second)
		if !entry.RecordedAt.Equal(want) {
			t.Fatalf("entry %d: expected recordedAt %v, got %v", i, want, entry.RecordedAt)
		}
	}
	if history.Len("dev-1") != limit {
		t.Errorf("expected stored length %d, got %d", limit, history.Len("dev-1"))
	}
}

func TestHistoryRecentShorterThanRequested(t *testing.T) {
	history := NewHistoryStore(100)
	history.Append("dev-1", models.NewGpsEntry(models.GpsSample{Lat: 1}, time.Now()))
	history.Append("dev-1", models.NewGpsEntry(models.GpsSample{Lat: 2}, time.Now()))

	recent := history.Recent("dev-1", 50)
	if len(recent) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(recent))
	}
	if recent[0].Gps.Lat != 1 || recent[1].Gps.Lat != 2 {
		t.Errorf("expected arrival order, got %v then %v", recent[0].Gps.Lat, recent[1].Gps.Lat)
	}

	last := history.Recent("dev-1", 1)
	if len(last) != 1 || last[0].Gps.Lat != 2 {
		t.Errorf("expected newest entry, got %+v", last)
	}
}

func TestHistoryUnknownDeviceIsEmpty(t *testing.T) {
	history := NewHistoryStore(100)
	recent := history.Recent("ghost", 10)
	if recent == nil || len(recent) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", recent)
	}
	if history.Has("ghost") {
		t.Error("unknown device should have no history")
	}
}

func TestHistoryClear(t *testing.T) {
	history := NewHistoryStore(100)
	history.Append("dev-1", models.NewGpsEntry(models.GpsSample{}, time.Now()))
	history.Clear("dev-1")
	if history.Has("dev-1") || history.Len("dev-1") != 0 {
		t.Fatal("expected history to be cleared")
	}
}
