package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/example/course-platform/internal/platform/analytics"
	"github.com/example/course-platform/internal/platform/api"
	"github.com/example/course-platform/internal/platform/signing"
	"github.com/example/course-platform/services/gateway/internal/clients"
	"github.com/example/course-platform/services/gateway/internal/playback"
	"github.com/example/course-platform/services/gateway/internal/session"
	"github.com/example/course-platform/services/gateway/internal/unlock"
)

type watchResponse struct {
	Video       clients.Video   `json:"video"`
	Chapter     clients.Chapter `json:"chapter"`
	Course      clients.Course  `json:"course"`
	PlaybackURL string          `json:"playback_url"`
	LastSecond  int             `json:"last_second"`
	Percent     int             `json:"percent"`
	Completed   bool            `json:"completed"`
}

// Watch handles GET /v1/watch/{videoID}: the watch page with a signed
// playback URL. Locked videos are refused; the unlock frontier is computed
// over the course's full ordered video list.
func (h *Handlers) Watch(w http.ResponseWriter, r *http.Request) {
	rid := requestID(r)
	userID, ok := requireUserID(w, r, rid)
	if !ok {
		return
	}

	videoID := strings.TrimSpace(chi.URLParam(r, "videoID"))
	vc, err := h.cachedVideoContext(r.Context(), videoID)
	if err != nil {
		if clients.IsStatus(err, http.StatusNotFound) {
			api.NotFound(w, "VIDEO_NOT_FOUND", "video not found", rid)
			return
		}
		h.Log.Error("video context failed", zap.String("video_id", videoID), zap.Error(err))
		api.BadGateway(w, "CATALOG_UNAVAILABLE", "catalog unavailable", rid)
		return
	}

	progress, err := h.userProgress(r.Context(), userID)
	if err != nil && !progress.Loaded() {
		api.BadGateway(w, "PROGRESS_UNAVAILABLE", "progress unavailable", rid)
		return
	}

	locked, err := h.videoLocked(r, vc, progress)
	if err != nil {
		api.BadGateway(w, "CATALOG_UNAVAILABLE", "catalog unavailable", rid)
		return
	}
	if locked {
		api.Forbidden(w, "VIDEO_LOCKED", "complete earlier videos first", rid)
		return
	}

	signed := h.Signer.Sign(vc.Video.ProviderVideoID, userID, time.Now().Add(signedURLTTL))
	playURL, err := signing.BuildSignedURL(h.PlayBaseURL, signed)
	if err != nil {
		h.Log.Error("signed url build failed", zap.Error(err))
		api.Internal(w, rid)
		return
	}

	out := watchResponse{
		Video:       vc.Video,
		Chapter:     vc.Chapter,
		Course:      vc.Course,
		PlaybackURL: playURL,
	}
	if e, ok := progress.Get(videoID); ok {
		out.LastSecond = e.LastSecond
		out.Percent = e.Percent
		out.Completed = e.Completed
	}

	h.Analytics.Publish(analytics.SubjectPlaybackStarted, "gateway.playback_started", userID, map[string]any{
		"video_id":  videoID,
		"course_id": vc.Course.ID,
	})
	api.WriteJSON(w, http.StatusOK, out)
}

// videoLocked applies the unlock rule to the video's course.
func (h *Handlers) videoLocked(r *http.Request, vc clients.VideoContext, progress *session.ProgressCache) (bool, error) {
	videos, err := h.cachedCourseVideos(r.Context(), vc.Course.ID)
	if err != nil {
		return false, err
	}
	ordered := make([]string, 0, len(videos))
	for _, v := range videos {
		ordered = append(ordered, v.ID)
	}
	unlocked := unlock.Map(ordered, func(id string) bool {
		e, ok := progress.Get(id)
		return ok && e.Completed
	})
	return !unlocked[vc.Video.ID], nil
}

type openSessionRequest struct {
	DurationSeconds int `json:"duration_seconds"`
}

type openSessionResponse struct {
	ResumeSecond int `json:"resume_second"`
}

// OpenSession handles POST /v1/watch/{videoID}/session: the player reports
// the duration it learned from the manifest, and gets back where to seek.
// The resume offset is handed out once per viewing session.
func (h *Handlers) OpenSession(w http.ResponseWriter, r *http.Request) {
	rid := requestID(r)
	userID, ok := requireUserID(w, r, rid)
	if !ok {
		return
	}
	videoID := strings.TrimSpace(chi.URLParam(r, "videoID"))

	var req openSessionRequest
	if !decodeJSON(w, r, rid, &req) {
		return
	}
	if req.DurationSeconds <= 0 {
		api.BadRequest(w, "INVALID_DURATION", "duration_seconds must be positive", rid, nil)
		return
	}

	progress, _ := h.userProgress(r.Context(), userID)
	entry, _ := progress.Get(videoID)

	h.dropReporter(userID, videoID)
	rep := h.reporterFor(userID, videoID, req.DurationSeconds, entry)
	api.WriteJSON(w, http.StatusOK, openSessionResponse{ResumeSecond: rep.ResumePosition()})
}

type playerEventRequest struct {
	Type            string `json:"type"`
	Second          int    `json:"second"`
	DurationSeconds int    `json:"duration_seconds,omitempty"`
}

type playerEventResponse struct {
	Persisted bool   `json:"persisted"`
	Completed bool   `json:"completed"`
	EventID   string `json:"event_id,omitempty"`
}

// PlayerEvent handles POST /v1/watch/{videoID}/events. Ticks persist only
// after enough drift; pause and ended always persist; ended pins the video to
// its end.
func (h *Handlers) PlayerEvent(w http.ResponseWriter, r *http.Request) {
	rid := requestID(r)
	userID, ok := requireUserID(w, r, rid)
	if !ok {
		return
	}
	videoID := strings.TrimSpace(chi.URLParam(r, "videoID"))

	var req playerEventRequest
	if !decodeJSON(w, r, rid, &req) {
		return
	}

	h.mu.Lock()
	_, exists := h.reporters[userID+"|"+videoID]
	h.mu.Unlock()
	if !exists && req.DurationSeconds <= 0 {
		api.BadRequest(w, "SESSION_REQUIRED", "open a session or include duration_seconds", rid, nil)
		return
	}

	progress, _ := h.userProgress(r.Context(), userID)
	entry, _ := progress.Get(videoID)
	rep := h.reporterFor(userID, videoID, req.DurationSeconds, entry)

	var (
		sample    playback.Sample
		persisted bool
	)
	switch req.Type {
	case "tick":
		sample, persisted = rep.Tick(req.Second)
	case "pause":
		sample, persisted = rep.Pause(), true
	case "ended":
		sample, persisted = rep.Ended(), true
	default:
		api.BadRequest(w, "INVALID_EVENT", "unknown event type", rid, nil)
		return
	}

	out := playerEventResponse{Persisted: persisted, Completed: rep.Completed()}
	if persisted {
		eventID, err := h.persistSample(r, userID, sample)
		if err != nil {
			h.Log.Error("sample persist failed", zap.String("video_id", videoID), zap.Error(err))
			api.BadGateway(w, "PROGRESS_UNAVAILABLE", "progress unavailable", rid)
			return
		}
		out.EventID = eventID
		if sample.Completed && !entry.Completed {
			h.Analytics.Publish(analytics.SubjectVideoCompleted, "gateway.video_completed", userID, map[string]any{
				"video_id": videoID,
			})
		}
	}
	api.WriteJSON(w, http.StatusOK, out)
}

// MarkCompleted handles POST /v1/videos/{videoID}/complete.
func (h *Handlers) MarkCompleted(w http.ResponseWriter, r *http.Request) {
	h.applyCompletion(w, r, completionMark)
}

// UndoCompleted handles DELETE /v1/videos/{videoID}/complete.
func (h *Handlers) UndoCompleted(w http.ResponseWriter, r *http.Request) {
	h.applyCompletion(w, r, completionUndo)
}

// ResetProgress handles DELETE /v1/videos/{videoID}/progress: back to zero.
func (h *Handlers) ResetProgress(w http.ResponseWriter, r *http.Request) {
	h.applyCompletion(w, r, completionReset)
}

type completionOp int

const (
	completionMark completionOp = iota
	completionUndo
	completionReset
)

// applyCompletion flips completion state off the playback path. Marking
// writes the video's end, the same write a fully watched session produces;
// undo restores the pre-mark position when the viewing session remembers it.
// An active session stays in step so later ticks report consistent state.
func (h *Handlers) applyCompletion(w http.ResponseWriter, r *http.Request, op completionOp) {
	rid := requestID(r)
	userID, ok := requireUserID(w, r, rid)
	if !ok {
		return
	}
	videoID := strings.TrimSpace(chi.URLParam(r, "videoID"))

	progress, _ := h.userProgress(r.Context(), userID)
	entry, _ := progress.Get(videoID)

	params := clients.UpsertParams{
		UserID:     userID,
		VideoID:    videoID,
		LastSecond: entry.LastSecond,
		Percent:    entry.Percent,
	}
	h.mu.Lock()
	rep := h.reporters[userID+"|"+videoID]
	h.mu.Unlock()
	switch op {
	case completionMark:
		params.Completed = true
		if rep != nil {
			s := rep.MarkCompleted()
			params.LastSecond, params.Percent = s.Second, s.Percent
		} else {
			// The video's end is only known while a session is open, so a
			// sessionless mark pins the percent and keeps the stored second.
			params.Percent = 100
		}
	case completionUndo:
		if rep != nil {
			s := rep.UndoCompleted()
			params.LastSecond, params.Percent = s.Second, s.Percent
		}
	case completionReset:
		params.LastSecond = 0
		params.Percent = 0
		h.dropReporter(userID, videoID)
	}

	// Completion toggles must be visible immediately, so they bypass the
	// async path and hit the progress service directly.
	item, err := h.Progress.Upsert(r.Context(), params)
	if err != nil {
		h.Log.Error("completion write failed", zap.String("video_id", videoID), zap.Error(err))
		api.BadGateway(w, "PROGRESS_UNAVAILABLE", "progress unavailable", rid)
		return
	}
	progress.Update(item.Entry())
	api.WriteJSON(w, http.StatusOK, playerEventResponse{Persisted: true, Completed: params.Completed})
}

// persistSample writes one sample, preferring the async JetStream path and
// falling back to a synchronous upsert when publishing is off or failing.
// The session cache is updated either way so reads reflect the write at once.
func (h *Handlers) persistSample(r *http.Request, userID string, sample playback.Sample) (string, error) {
	progress := h.Sessions.For(userID)

	eventID, err := h.Events.PublishJSON("progress.samples", map[string]any{
		"user_id":     userID,
		"video_id":    sample.VideoID,
		"last_second": sample.Second,
		"percent":     sample.Percent,
		"completed":   sample.Completed,
	})
	if err == nil {
		entry := session.Entry{
			VideoID:    sample.VideoID,
			LastSecond: sample.Second,
			Percent:    sample.Percent,
			Completed:  sample.Completed,
		}
		if sample.Completed {
			now := time.Now().UTC()
			entry.CompletedAt = &now
		}
		progress.Update(entry)
		return eventID, nil
	}
	if !errors.Is(err, ErrAsyncPublishDisabled) {
		h.Log.Warn("async sample publish failed, falling back", zap.Error(err))
	}

	item, err := h.Progress.Upsert(r.Context(), clients.UpsertParams{
		UserID:     userID,
		VideoID:    sample.VideoID,
		LastSecond: sample.Second,
		Percent:    sample.Percent,
		Completed:  sample.Completed,
	})
	if err != nil {
		return "", err
	}
	progress.Update(item.Entry())
	return "", nil
}
