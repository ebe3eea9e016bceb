package session

import (
	"testing"
	"time"
)

func TestProgressCache_UpdateThenGet(t *testing.T) {
	c := NewProgressCache()
	c.Update(Entry{VideoID: "v1", LastSecond: 30, Percent: 25})

	e, ok := c.Get("v1")
	if !ok {
		t.Fatal("expected entry")
	}
	if e.Percent != 25 || e.UpdatedAtMs == 0 {
		t.Fatalf("unexpected entry %+v", e)
	}
}

func TestProgressCache_StaleSnapshotDoesNotClobberLocalWrite(t *testing.T) {
	c := NewProgressCache()

	// Snapshot was read from the server before the local write happened.
	stale := []Entry{{VideoID: "v1", Percent: 40, UpdatedAtMs: 1000}}

	c.Update(Entry{VideoID: "v1", Percent: 80, UpdatedAtMs: 2000})
	c.ApplySnapshot(stale)

	e, _ := c.Get("v1")
	if e.Percent != 80 {
		t.Fatalf("stale snapshot clobbered local write: percent %d", e.Percent)
	}
	if !c.Loaded() {
		t.Fatal("expected cache marked loaded")
	}
}

func TestProgressCache_NewerSnapshotWins(t *testing.T) {
	c := NewProgressCache()
	c.Update(Entry{VideoID: "v1", Percent: 20, UpdatedAtMs: 1000})
	c.ApplySnapshot([]Entry{{VideoID: "v1", Percent: 55, UpdatedAtMs: 3000}})

	e, _ := c.Get("v1")
	if e.Percent != 55 {
		t.Fatalf("expected server row applied, got percent %d", e.Percent)
	}
}

func TestProgressCache_SnapshotKeepsUnknownLocalEntries(t *testing.T) {
	c := NewProgressCache()
	c.Update(Entry{VideoID: "v-local", Percent: 10})
	c.ApplySnapshot([]Entry{{VideoID: "v-server", Percent: 90, UpdatedAtMs: 1}})

	if _, ok := c.Get("v-local"); !ok {
		t.Fatal("local-only entry dropped by snapshot")
	}
	if _, ok := c.Get("v-server"); !ok {
		t.Fatal("server entry missing")
	}
}

func TestProgressCache_Forget(t *testing.T) {
	c := NewProgressCache()
	c.Update(Entry{VideoID: "v1", Percent: 50})
	c.Forget("v1")
	if _, ok := c.Get("v1"); ok {
		t.Fatal("expected entry removed")
	}
}

func TestSessions_EvictsIdleUsers(t *testing.T) {
	s := NewSessions(10 * time.Millisecond)
	s.For("u1").Update(Entry{VideoID: "v1", Percent: 50})

	time.Sleep(20 * time.Millisecond)
	// Touching another user sweeps idle slots.
	s.For("u2")

	if _, ok := s.For("u1").Get("v1"); ok {
		t.Fatal("expected idle session evicted")
	}
}

func TestSessions_DropOnLogout(t *testing.T) {
	s := NewSessions(time.Hour)
	s.For("u1").Update(Entry{VideoID: "v1", Percent: 50})
	s.Drop("u1")
	if _, ok := s.For("u1").Get("v1"); ok {
		t.Fatal("expected cache dropped")
	}
}
