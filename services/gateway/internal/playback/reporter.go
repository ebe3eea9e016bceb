// Package playback tracks one viewing session and decides when progress is
// worth persisting. The player feeds it position ticks; the reporter answers
// with samples only when the server should hear about them, which keeps
// chatty players from turning every second of playback into a write.
package playback

const (
	// driftThresholdPP is how far (in percentage points) the position must
	// move from the last persisted sample before a tick persists again.
	driftThresholdPP = 10

	// completionThresholdPercent marks the video completed once playback
	// crosses it, even if the player never reports the very end.
	completionThresholdPercent = 90

	// resumeMinSeconds is the least watched time that makes resuming
	// worthwhile. Below it the player just starts over.
	resumeMinSeconds = 240
)

// Sample is a progress write the caller should persist.
type Sample struct {
	VideoID   string
	Second    int
	Percent   int
	Completed bool
	Reason    string
}

// Reporter is the per-session state machine. Not safe for concurrent use;
// each viewing session owns one.
type Reporter struct {
	videoID  string
	duration int

	second    int
	percent   int
	completed bool

	lastPersisted  int
	resumeSecond   int
	resumeConsumed bool

	// Pre-mark position, kept so an undo can put the session back where it
	// was before the manual completion jumped it to the end.
	stashSecond  int
	stashPercent int
	hasStash     bool
}

// NewReporter starts a session for videoID. durationSeconds must be positive;
// lastSecond and wasCompleted seed the session from stored progress.
func NewReporter(videoID string, durationSeconds, lastSecond int, wasCompleted bool) *Reporter {
	if durationSeconds <= 0 {
		durationSeconds = 1
	}
	r := &Reporter{
		videoID:   videoID,
		duration:  durationSeconds,
		second:    clamp(lastSecond, 0, durationSeconds),
		completed: wasCompleted,
	}
	r.percent = r.percentAt(r.second)
	r.lastPersisted = r.percent
	if lastSecond >= resumeMinSeconds && lastSecond < durationSeconds {
		r.resumeSecond = lastSecond
	}
	return r
}

// ResumePosition returns the second to seek to, exactly once per session.
// Sessions that watched less than four minutes, or finished the video, start
// from the top.
func (r *Reporter) ResumePosition() int {
	if r.resumeConsumed || r.resumeSecond == 0 {
		return 0
	}
	r.resumeConsumed = true
	return r.resumeSecond
}

// Tick records the player position. It returns a sample when the position has
// drifted at least 10 points from the last persisted one, or when the tick
// crosses the completion threshold for the first time.
func (r *Reporter) Tick(second int) (Sample, bool) {
	r.hasStash = false
	r.second = clamp(second, 0, r.duration)
	r.percent = r.percentAt(r.second)

	crossed := false
	if !r.completed && r.percent >= completionThresholdPercent {
		r.completed = true
		crossed = true
	}

	if !crossed && abs(r.percent-r.lastPersisted) < driftThresholdPP {
		return Sample{}, false
	}
	return r.emit("drift"), true
}

// Pause always persists the current position.
func (r *Reporter) Pause() Sample {
	return r.emit("pause")
}

// Ended pins the session to the very end regardless of the last reported
// tick, so a player that stops emitting ticks near the end still lands on
// 100.
func (r *Reporter) Ended() Sample {
	r.hasStash = false
	r.second = r.duration
	r.percent = 100
	r.completed = true
	return r.emit("ended")
}

// MarkCompleted is the explicit "mark as done" action. It jumps the session
// to the very end, as if the viewer had watched it through, remembering the
// position it left in case the mark is undone.
func (r *Reporter) MarkCompleted() Sample {
	if !r.hasStash {
		r.stashSecond, r.stashPercent = r.second, r.percent
		r.hasStash = true
	}
	r.second = r.duration
	r.percent = 100
	r.completed = true
	return r.emit("mark_completed")
}

// UndoCompleted clears the completed flag and restores the position the
// session held before MarkCompleted, when there is one to restore.
func (r *Reporter) UndoCompleted() Sample {
	r.completed = false
	if r.hasStash {
		r.second, r.percent = r.stashSecond, r.stashPercent
		r.hasStash = false
	}
	return r.emit("undo_completed")
}

// Reset wipes the session back to zero.
func (r *Reporter) Reset() Sample {
	r.second = 0
	r.percent = 0
	r.completed = false
	r.hasStash = false
	return r.emit("reset")
}

// Completed reports the session's current completion state.
func (r *Reporter) Completed() bool { return r.completed }

func (r *Reporter) emit(reason string) Sample {
	r.lastPersisted = r.percent
	return Sample{
		VideoID:   r.videoID,
		Second:    r.second,
		Percent:   r.percent,
		Completed: r.completed,
		Reason:    reason,
	}
}

func (r *Reporter) percentAt(second int) int {
	return clamp(100*second/r.duration, 0, 100)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
