package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/example/course-platform/internal/platform/analytics"
	"github.com/example/course-platform/internal/platform/api"
	"github.com/example/course-platform/internal/platform/httpserver"
	"github.com/example/course-platform/internal/platform/signing"
	"github.com/example/course-platform/services/vod/internal/cache"
	"github.com/example/course-platform/services/vod/internal/provider"
)

// defaultDurationSeconds is used when the provider has not reported a length
// yet, so resume math on the watch page still has something to work with.
const defaultDurationSeconds = 600

// Enqueuer schedules encode-status polling for a new video.
type Enqueuer interface {
	Enqueue(videoGUID string) error
}

type Handlers struct {
	Provider  provider.VideoAPI
	Cache     cache.StatusCache
	Signer    *signing.Signer
	Poller    Enqueuer
	Analytics *analytics.Publisher
	Log       *zap.Logger

	// StreamHost is the CDN host serving HLS manifests, e.g.
	// "https://vz-learnhub.b-cdn.net".
	StreamHost string
}

type statusJSON struct {
	GUID           string `json:"guid"`
	Status         int    `json:"status"`
	EncodeProgress int    `json:"encode_progress"`
	LengthSeconds  int    `json:"length_seconds"`
	Ready          bool   `json:"ready"`
}

func toStatusJSON(info provider.VideoInfo) statusJSON {
	return statusJSON{
		GUID:           info.GUID,
		Status:         info.Status,
		EncodeProgress: info.EncodeProgress,
		LengthSeconds:  info.Length,
		Ready:          info.Ready(),
	}
}

// CreateVideo handles POST /v1/admin/videos: registers a video with the
// provider and schedules encode polling. The caller uploads the file directly
// to the provider afterwards.
func (h *Handlers) CreateVideo(w http.ResponseWriter, r *http.Request) {
	rid := httpserver.RequestIDFromContext(r.Context())

	var req struct {
		Title string `json:"title"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10)).Decode(&req); err != nil {
		api.BadRequest(w, "INVALID_JSON", "Invalid JSON", rid, nil)
		return
	}
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		api.BadRequest(w, "INVALID_TITLE", "title is required", rid, nil)
		return
	}

	info, err := h.Provider.CreateVideo(r.Context(), req.Title)
	if err != nil {
		h.Log.Error("provider create failed", zap.String("title", req.Title), zap.Error(err))
		api.BadGateway(w, "PROVIDER_UNAVAILABLE", "video provider unavailable", rid)
		return
	}
	if err := h.Cache.Set(r.Context(), info); err != nil {
		h.Log.Warn("status cache set failed", zap.String("video_guid", info.GUID), zap.Error(err))
	}
	if h.Poller != nil {
		if err := h.Poller.Enqueue(info.GUID); err != nil {
			h.Log.Warn("poll enqueue failed", zap.String("video_guid", info.GUID), zap.Error(err))
		}
	}
	h.Analytics.Publish(analytics.SubjectVideoUploaded, "vod.video_uploaded", "", map[string]any{"video_guid": info.GUID})

	api.WriteJSON(w, http.StatusCreated, toStatusJSON(info))
}

// GetStatus handles GET /v1/videos/{videoGUID}/status, cache first.
func (h *Handlers) GetStatus(w http.ResponseWriter, r *http.Request) {
	rid := httpserver.RequestIDFromContext(r.Context())

	videoGUID := strings.TrimSpace(chi.URLParam(r, "videoGUID"))
	if videoGUID == "" {
		api.BadRequest(w, "INVALID_ID", "video guid is required", rid, nil)
		return
	}

	if info, ok, err := h.Cache.Get(r.Context(), videoGUID); err == nil && ok {
		api.WriteJSON(w, http.StatusOK, toStatusJSON(info))
		return
	}

	info, err := h.Provider.GetVideo(r.Context(), videoGUID)
	if err != nil {
		h.Log.Warn("provider status failed", zap.String("video_guid", videoGUID), zap.Error(err))
		api.BadGateway(w, "PROVIDER_UNAVAILABLE", "video provider unavailable", rid)
		return
	}
	if err := h.Cache.Set(r.Context(), info); err != nil {
		h.Log.Warn("status cache set failed", zap.String("video_guid", videoGUID), zap.Error(err))
	}
	api.WriteJSON(w, http.StatusOK, toStatusJSON(info))
}

// DeleteVideo handles DELETE /v1/admin/videos/{videoGUID}.
func (h *Handlers) DeleteVideo(w http.ResponseWriter, r *http.Request) {
	rid := httpserver.RequestIDFromContext(r.Context())

	videoGUID := strings.TrimSpace(chi.URLParam(r, "videoGUID"))
	if videoGUID == "" {
		api.BadRequest(w, "INVALID_ID", "video guid is required", rid, nil)
		return
	}
	if err := h.Provider.DeleteVideo(r.Context(), videoGUID); err != nil {
		h.Log.Error("provider delete failed", zap.String("video_guid", videoGUID), zap.Error(err))
		api.BadGateway(w, "PROVIDER_UNAVAILABLE", "video provider unavailable", rid)
		return
	}
	_ = h.Cache.Invalidate(r.Context(), videoGUID)
	api.NoContent(w)
}

type playResponse struct {
	PlaybackURL     string `json:"playback_url"`
	DurationSeconds int    `json:"duration_seconds"`
}

// Play handles GET /v1/play?video=&exp=&uid=&sig=: the gateway issues these
// signed URLs, and the player exchanges one here for an HLS manifest URL.
func (h *Handlers) Play(w http.ResponseWriter, r *http.Request) {
	rid := httpserver.RequestIDFromContext(r.Context())

	videoGUID, uid, exp, sig, err := signing.ExtractSigned(r.URL.Query())
	if err != nil {
		api.BadRequest(w, "INVALID_SIGNATURE", "missing signed params", rid, nil)
		return
	}
	if !h.Signer.Verify(videoGUID, uid, exp, sig) {
		api.Forbidden(w, "SIGNATURE_REJECTED", "signature invalid or expired", rid)
		return
	}

	duration := defaultDurationSeconds
	if info, ok, err := h.Cache.Get(r.Context(), videoGUID); err == nil && ok && info.Length > 0 {
		duration = info.Length
	} else if info, err := h.Provider.GetVideo(r.Context(), videoGUID); err == nil {
		_ = h.Cache.Set(r.Context(), info)
		if info.Length > 0 {
			duration = info.Length
		}
	}

	api.WriteJSON(w, http.StatusOK, playResponse{
		PlaybackURL:     fmt.Sprintf("%s/%s/playlist.m3u8", strings.TrimRight(h.StreamHost, "/"), videoGUID),
		DurationSeconds: duration,
	})
}

// Routes mounts the vod endpoints on r.
func (h *Handlers) Routes(r chi.Router) {
	r.Get("/v1/videos/{videoGUID}/status", h.GetStatus)
	r.Get("/v1/play", h.Play)
	r.Post("/v1/admin/videos", h.CreateVideo)
	r.Delete("/v1/admin/videos/{videoGUID}", h.DeleteVideo)
}
