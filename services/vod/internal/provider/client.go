package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Encode status codes as reported by the provider's video API.
const (
	StatusCreated     = 0
	StatusUploaded    = 1
	StatusProcessing  = 2
	StatusTranscoding = 3
	StatusFinished    = 4
	StatusError       = 5
)

// VideoInfo is the provider's view of a video.
type VideoInfo struct {
	GUID           string `json:"guid"`
	Title          string `json:"title"`
	Status         int    `json:"status"`
	EncodeProgress int    `json:"encodeProgress"`
	Length         int    `json:"length"`
}

// Ready reports whether the video is fully transcoded and playable.
func (v VideoInfo) Ready() bool { return v.Status == StatusFinished }

// Failed reports whether the provider gave up on encoding this video.
func (v VideoInfo) Failed() bool { return v.Status == StatusError }

// Client talks to a Bunny-style video library API.
type Client struct {
	BaseURL    string
	LibraryID  string
	APIKey     string
	HTTPClient *http.Client
}

func New(baseURL, libraryID, apiKey string) *Client {
	if baseURL == "" {
		baseURL = "https://video.bunnycdn.com"
	}
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		LibraryID:  libraryID,
		APIKey:     apiKey,
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *Client) CreateVideo(ctx context.Context, title string) (VideoInfo, error) {
	body, _ := json.Marshal(map[string]string{"title": title})
	var out VideoInfo
	if err := c.do(ctx, http.MethodPost, c.videosURL(""), bytes.NewReader(body), &out); err != nil {
		return VideoInfo{}, err
	}
	return out, nil
}

func (c *Client) GetVideo(ctx context.Context, videoGUID string) (VideoInfo, error) {
	if strings.TrimSpace(videoGUID) == "" {
		return VideoInfo{}, fmt.Errorf("videoGUID required")
	}
	var out VideoInfo
	if err := c.do(ctx, http.MethodGet, c.videosURL(videoGUID), nil, &out); err != nil {
		return VideoInfo{}, err
	}
	return out, nil
}

func (c *Client) DeleteVideo(ctx context.Context, videoGUID string) error {
	if strings.TrimSpace(videoGUID) == "" {
		return fmt.Errorf("videoGUID required")
	}
	return c.do(ctx, http.MethodDelete, c.videosURL(videoGUID), nil, nil)
}

func (c *Client) videosURL(videoGUID string) string {
	u := fmt.Sprintf("%s/library/%s/videos", c.BaseURL, c.LibraryID)
	if videoGUID != "" {
		u += "/" + videoGUID
	}
	return u
}

func (c *Client) do(ctx context.Context, method, rawURL string, body io.Reader, dest any) error {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("AccessKey", c.APIKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(io.LimitReader(resp.Body, 2<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("provider: status %d body=%q", resp.StatusCode, string(b[:min(len(b), 200)]))
	}
	if dest == nil {
		return nil
	}
	if err := json.Unmarshal(b, dest); err != nil {
		return fmt.Errorf("provider: decode error: %w body=%q", err, string(b[:min(len(b), 200)]))
	}
	return nil
}
