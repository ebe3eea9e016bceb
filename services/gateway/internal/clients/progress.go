package clients

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/example/course-platform/services/gateway/internal/session"
)

// ProgressItem mirrors the progress service's wire form.
type ProgressItem struct {
	VideoID     string  `json:"video_id"`
	LastSecond  int     `json:"last_second"`
	Percent     int     `json:"percent"`
	CompletedAt *string `json:"completed_at"`
	UpdatedAtMs int64   `json:"updated_at_ms"`
}

// Entry converts the wire form into the session cache's shape.
func (p ProgressItem) Entry() session.Entry {
	e := session.Entry{
		VideoID:     p.VideoID,
		LastSecond:  p.LastSecond,
		Percent:     p.Percent,
		UpdatedAtMs: p.UpdatedAtMs,
	}
	if p.CompletedAt != nil {
		if ts, err := time.Parse(time.RFC3339, *p.CompletedAt); err == nil {
			e.Completed = true
			e.CompletedAt = &ts
		}
	}
	return e
}

// UpsertParams is one progress write.
type UpsertParams struct {
	UserID     string `json:"user_id"`
	VideoID    string `json:"video_id"`
	LastSecond int    `json:"last_second"`
	Percent    int    `json:"percent"`
	Completed  bool   `json:"completed"`
}

// ContinuePage is one page of the continue-watching feed.
type ContinuePage struct {
	Items      []ProgressItem `json:"items"`
	Limit      int            `json:"limit"`
	NextCursor string         `json:"next_cursor,omitempty"`
}

// Progress talks to the progress service.
type Progress struct {
	base
}

func NewProgress(baseURL string, hc *http.Client) *Progress {
	return &Progress{base: newBase(baseURL, hc)}
}

// Upsert writes one progress record and returns the stored row.
func (c *Progress) Upsert(ctx context.Context, p UpsertParams) (ProgressItem, error) {
	var out ProgressItem
	err := c.doJSON(ctx, http.MethodPut, "/v1/progress", p, &out)
	return out, err
}

// ListByUser returns every progress record for a user.
func (c *Progress) ListByUser(ctx context.Context, userID string) ([]ProgressItem, error) {
	var out struct {
		Items []ProgressItem `json:"items"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/v1/progress?user_id="+url.QueryEscape(userID), nil, &out); err != nil {
		return nil, err
	}
	return out.Items, nil
}

// ContinueWatching returns the user's in-progress videos, most recent first.
func (c *Progress) ContinueWatching(ctx context.Context, userID string, limit int, cursor string) (ContinuePage, error) {
	q := url.Values{}
	q.Set("user_id", userID)
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if cursor != "" {
		q.Set("cursor", cursor)
	}
	var out ContinuePage
	err := c.doJSON(ctx, http.MethodGet, "/v1/continue-watching?"+q.Encode(), nil, &out)
	return out, err
}
