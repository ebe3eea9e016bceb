package handlers

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/example/course-platform/internal/platform/api"
	"github.com/example/course-platform/internal/platform/httpserver"
	"github.com/example/course-platform/services/progress/internal/store"
)

const maxRequestBodyBytes = 1 << 20 // 1 MiB

type upsertRequest struct {
	UserID     string `json:"user_id"`
	VideoID    string `json:"video_id"`
	LastSecond int    `json:"last_second"`
	Percent    int    `json:"percent"`
	Completed  bool   `json:"completed"`
}

// ProgressJSON is the wire form of a progress record.
type ProgressJSON struct {
	VideoID     string  `json:"video_id"`
	LastSecond  int     `json:"last_second"`
	Percent     int     `json:"percent"`
	CompletedAt *string `json:"completed_at"`
	UpdatedAtMs int64   `json:"updated_at_ms"`
}

type listResponse struct {
	Items []ProgressJSON `json:"items"`
}

type continueResponse struct {
	Items      []ProgressJSON `json:"items"`
	Limit      int            `json:"limit"`
	NextCursor string         `json:"next_cursor,omitempty"`
}

// Upsert handles PUT /v1/progress.
func Upsert(repo store.Repository, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())

		var req upsertRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)).Decode(&req); err != nil {
			api.BadRequest(w, "INVALID_JSON", "Invalid JSON", rid, nil)
			return
		}
		userID, err := uuid.Parse(strings.TrimSpace(req.UserID))
		if err != nil {
			api.BadRequest(w, "INVALID_USER_ID", "invalid user_id", rid, nil)
			return
		}
		videoID, err := uuid.Parse(strings.TrimSpace(req.VideoID))
		if err != nil {
			api.BadRequest(w, "INVALID_VIDEO_ID", "invalid video_id", rid, nil)
			return
		}

		rec, err := repo.Upsert(r.Context(), store.UpsertParams{
			UserID:     userID,
			VideoID:    videoID,
			LastSecond: req.LastSecond,
			Percent:    req.Percent,
			Completed:  req.Completed,
		})
		if err != nil {
			log.Error("progress upsert failed", zap.String("video_id", req.VideoID), zap.Error(err))
			api.Internal(w, rid)
			return
		}
		api.WriteJSON(w, http.StatusOK, ToJSON(rec))
	}
}

// List handles GET /v1/progress?user_id=.
func List(repo store.Repository, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())

		userID, err := uuid.Parse(strings.TrimSpace(r.URL.Query().Get("user_id")))
		if err != nil {
			api.BadRequest(w, "INVALID_USER_ID", "invalid user_id", rid, nil)
			return
		}

		recs, err := repo.ListByUser(r.Context(), userID)
		if err != nil {
			log.Error("progress list failed", zap.String("user_id", userID.String()), zap.Error(err))
			api.Internal(w, rid)
			return
		}

		out := listResponse{Items: make([]ProgressJSON, 0, len(recs))}
		for _, rec := range recs {
			out.Items = append(out.Items, ToJSON(rec))
		}
		api.WriteJSON(w, http.StatusOK, out)
	}
}

// ContinueWatching handles GET /v1/continue-watching?user_id=&limit=&cursor=.
func ContinueWatching(repo store.Repository, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())

		userID, err := uuid.Parse(strings.TrimSpace(r.URL.Query().Get("user_id")))
		if err != nil {
			api.BadRequest(w, "INVALID_USER_ID", "invalid user_id", rid, nil)
			return
		}

		limit := clampLimit(atoiDefault(r.URL.Query().Get("limit"), 0), 25, 100)
		cursor := decodeCursor(r.URL.Query().Get("cursor"))

		recs, err := repo.ListInProgress(r.Context(), userID, limit, cursor)
		if err != nil {
			log.Error("continue-watching list failed", zap.String("user_id", userID.String()), zap.Error(err))
			api.Internal(w, rid)
			return
		}

		out := continueResponse{Limit: limit, Items: make([]ProgressJSON, 0, len(recs))}
		for _, rec := range recs {
			out.Items = append(out.Items, ToJSON(rec))
		}
		if len(recs) == limit {
			last := recs[len(recs)-1]
			out.NextCursor = encodeCursor(last.UpdatedAt.UnixMicro(), last.VideoID.String())
		}
		api.WriteJSON(w, http.StatusOK, out)
	}
}

// ToJSON converts a record to its wire form.
func ToJSON(rec store.ProgressRecord) ProgressJSON {
	out := ProgressJSON{
		VideoID:     rec.VideoID.String(),
		LastSecond:  rec.LastSecond,
		Percent:     rec.Percent,
		UpdatedAtMs: rec.UpdatedAt.UnixMilli(),
	}
	if rec.CompletedAt != nil {
		s := rec.CompletedAt.UTC().Format(time.RFC3339)
		out.CompletedAt = &s
	}
	return out
}

// encodeCursor encodes updated_at and the video UUID as a base64 opaque
// cursor. The timestamp is kept at microseconds, the precision the store
// compares at; anything coarser loses rows written in the same instant.
func encodeCursor(tsMicro int64, videoID string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(strconv.FormatInt(tsMicro, 10) + ":" + videoID))
}

// decodeCursor parses the opaque cursor produced by encodeCursor.
func decodeCursor(raw string) *store.ContinueCursor {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	b, err := base64.RawURLEncoding.DecodeString(raw)
	if err != nil {
		return nil
	}
	parts := strings.SplitN(string(b), ":", 2)
	if len(parts) != 2 {
		return nil
	}
	ts, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return nil
	}
	vid, err := uuid.Parse(parts[1])
	if err != nil {
		return nil
	}
	return &store.ContinueCursor{
		UpdatedAt: time.UnixMicro(ts).UTC(),
		VideoID:   vid,
	}
}

func atoiDefault(s string, def int) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

func clampLimit(v, def, maxVal int) int {
	if v <= 0 {
		return def
	}
	if v > maxVal {
		return maxVal
	}
	return v
}
