package playback

import "testing"

func TestTick_PersistsOnlyAfterDrift(t *testing.T) {
	r := NewReporter("v1", 1000, 0, false)

	if _, ok := r.Tick(50); ok {
		t.Fatal("5% drift should not persist")
	}
	s, ok := r.Tick(100)
	if !ok {
		t.Fatal("10% drift should persist")
	}
	if s.Percent != 10 || s.Second != 100 || s.Completed {
		t.Fatalf("unexpected sample %+v", s)
	}

	// The threshold restarts from the persisted point.
	if _, ok := r.Tick(150); ok {
		t.Fatal("5% past last persist should not persist")
	}
	if _, ok := r.Tick(200); !ok {
		t.Fatal("10% past last persist should persist")
	}
}

func TestTick_CrossingCompletionPersistsImmediately(t *testing.T) {
	r := NewReporter("v1", 1000, 850, false)

	// 85 -> 91 is only 6pp of drift but crosses the completion line.
	s, ok := r.Tick(910)
	if !ok {
		t.Fatal("completion crossing should persist")
	}
	if !s.Completed || s.Percent != 91 {
		t.Fatalf("unexpected sample %+v", s)
	}

	// Already completed: a later small move is plain drift again.
	if _, ok := r.Tick(930); ok {
		t.Fatal("2pp after persist should not emit")
	}
}

func TestPause_AlwaysPersists(t *testing.T) {
	r := NewReporter("v1", 1000, 0, false)
	r.Tick(30)
	s := r.Pause()
	if s.Second != 30 || s.Percent != 3 || s.Reason != "pause" {
		t.Fatalf("unexpected sample %+v", s)
	}
}

func TestEnded_PinsHundred(t *testing.T) {
	r := NewReporter("v1", 1000, 0, false)
	r.Tick(500)

	s := r.Ended()
	if s.Percent != 100 || s.Second != 1000 || !s.Completed {
		t.Fatalf("ended should pin the end, got %+v", s)
	}
}

func TestResumePosition_LatchesOnce(t *testing.T) {
	r := NewReporter("v1", 1000, 400, false)
	if got := r.ResumePosition(); got != 400 {
		t.Fatalf("expected resume at 400, got %d", got)
	}
	if got := r.ResumePosition(); got != 0 {
		t.Fatalf("second call should not resume, got %d", got)
	}
}

func TestResumePosition_ShortWatchStartsOver(t *testing.T) {
	r := NewReporter("v1", 1000, 239, false)
	if got := r.ResumePosition(); got != 0 {
		t.Fatalf("under four minutes should start over, got %d", got)
	}
}

func TestResumePosition_FinishedVideoStartsOver(t *testing.T) {
	r := NewReporter("v1", 300, 300, true)
	if got := r.ResumePosition(); got != 0 {
		t.Fatalf("finished video should start over, got %d", got)
	}
}

func TestMarkCompleted_JumpsToEnd(t *testing.T) {
	r := NewReporter("v1", 600, 300, false)

	s := r.MarkCompleted()
	if !s.Completed || s.Second != 600 || s.Percent != 100 {
		t.Fatalf("mark should write the very end, got %+v", s)
	}
}

func TestMarkUndoRoundtrip_RestoresPosition(t *testing.T) {
	r := NewReporter("v1", 1000, 500, false)

	r.MarkCompleted()
	s := r.UndoCompleted()
	if s.Completed || s.Second != 500 || s.Percent != 50 {
		t.Fatalf("undo should restore pre-mark position, got %+v", s)
	}

	// A second undo has nothing stashed and keeps the current position.
	s = r.UndoCompleted()
	if s.Second != 500 || s.Percent != 50 {
		t.Fatalf("repeated undo should be stable, got %+v", s)
	}
}

func TestMarkUndo_TickInBetweenDropsStash(t *testing.T) {
	r := NewReporter("v1", 1000, 500, false)

	r.MarkCompleted()
	r.Tick(700)
	s := r.UndoCompleted()
	if s.Second != 700 {
		t.Fatalf("organic playback after mark should win over the stash, got %+v", s)
	}
}

func TestReset_ZeroesEverything(t *testing.T) {
	r := NewReporter("v1", 1000, 500, false)
	r.MarkCompleted()

	s := r.Reset()
	if s.Completed || s.Second != 0 || s.Percent != 0 {
		t.Fatalf("reset should zero everything, got %+v", s)
	}
	if s = r.UndoCompleted(); s.Second != 0 {
		t.Fatalf("reset should also drop the mark stash, got %+v", s)
	}
}

func TestTick_ClampsBeyondDuration(t *testing.T) {
	r := NewReporter("v1", 600, 0, false)
	s, ok := r.Tick(900)
	if !ok {
		t.Fatal("expected persist")
	}
	if s.Second != 600 || s.Percent != 100 {
		t.Fatalf("expected clamp to duration, got %+v", s)
	}
}
