package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCreateVideo_SendsTitleAndKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/library/lib-1/videos" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("AccessKey") != "key-1" {
			t.Errorf("missing AccessKey header")
		}
		var req map[string]string
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req["title"] != "Lesson 1" {
			t.Errorf("unexpected title %q", req["title"])
		}
		_ = json.NewEncoder(w).Encode(VideoInfo{GUID: "guid-1", Title: "Lesson 1", Status: StatusCreated})
	}))
	defer srv.Close()

	c := New(srv.URL, "lib-1", "key-1")
	info, err := c.CreateVideo(context.Background(), "Lesson 1")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if info.GUID != "guid-1" || info.Status != StatusCreated {
		t.Fatalf("unexpected info %+v", info)
	}
}

func TestGetVideo_ParsesStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/library/lib-1/videos/guid-1" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(VideoInfo{GUID: "guid-1", Status: StatusFinished, EncodeProgress: 100, Length: 742})
	}))
	defer srv.Close()

	c := New(srv.URL, "lib-1", "key-1")
	info, err := c.GetVideo(context.Background(), "guid-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !info.Ready() || info.Length != 742 {
		t.Fatalf("unexpected info %+v", info)
	}
}

func TestGetVideo_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := New(srv.URL, "lib-1", "key-1")
	if _, err := c.GetVideo(context.Background(), "missing"); err == nil {
		t.Fatal("expected error for 404")
	}
}

func TestGetVideo_RequiresGUID(t *testing.T) {
	c := New("http://example.invalid", "lib-1", "key-1")
	if _, err := c.GetVideo(context.Background(), " "); err == nil {
		t.Fatal("expected error for empty guid")
	}
}
