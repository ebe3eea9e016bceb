package handlers

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"testing"
)

func TestWatch_SignedURLAndProgress(t *testing.T) {
	progress := newFakeProgress()
	progress.seed("u1", clientsProgressItem("v1", 300, 50, 2000))
	h := newTestHandlers(testWorld(), progress)

	rr := serveAs(h, "u1", http.MethodGet, "/v1/watch/v1", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var out watchResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.LastSecond != 300 || out.Percent != 50 || out.Completed {
		t.Fatalf("unexpected progress %+v", out)
	}

	u, err := url.Parse(out.PlaybackURL)
	if err != nil {
		t.Fatalf("parse playback url: %v", err)
	}
	q := u.Query()
	if q.Get("video") != "guid-1" || q.Get("uid") != "u1" || q.Get("sig") == "" {
		t.Fatalf("unexpected signed params %v", q)
	}
	exp, _ := strconv.ParseInt(q.Get("exp"), 10, 64)
	if !h.Signer.Verify(q.Get("video"), q.Get("uid"), exp, q.Get("sig")) {
		t.Fatal("issued signature does not verify")
	}
}

func TestWatch_LockedVideoForbidden(t *testing.T) {
	h := newTestHandlers(testWorld(), newFakeProgress())

	rr := serveAs(h, "u1", http.MethodGet, "/v1/watch/v3", "")
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestWatch_UnknownVideo404(t *testing.T) {
	h := newTestHandlers(testWorld(), newFakeProgress())

	rr := serveAs(h, "u1", http.MethodGet, "/v1/watch/nope", "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}

func TestOpenSession_ReturnsResumeOffset(t *testing.T) {
	progress := newFakeProgress()
	progress.seed("u1", clientsProgressItem("v1", 400, 40, 2000))
	h := newTestHandlers(testWorld(), progress)

	rr := serveAs(h, "u1", http.MethodPost, "/v1/watch/v1/session", `{"duration_seconds":1000}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var out openSessionResponse
	_ = json.Unmarshal(rr.Body.Bytes(), &out)
	if out.ResumeSecond != 400 {
		t.Fatalf("expected resume at 400, got %d", out.ResumeSecond)
	}
}

func TestOpenSession_ShortWatchStartsOver(t *testing.T) {
	progress := newFakeProgress()
	progress.seed("u1", clientsProgressItem("v1", 120, 12, 2000))
	h := newTestHandlers(testWorld(), progress)

	rr := serveAs(h, "u1", http.MethodPost, "/v1/watch/v1/session", `{"duration_seconds":1000}`)
	var out openSessionResponse
	_ = json.Unmarshal(rr.Body.Bytes(), &out)
	if out.ResumeSecond != 0 {
		t.Fatalf("expected start over, got %d", out.ResumeSecond)
	}
}

func TestPlayerEvent_TickBelowThresholdNotPersisted(t *testing.T) {
	progress := newFakeProgress()
	h := newTestHandlers(testWorld(), progress)

	serveAs(h, "u1", http.MethodPost, "/v1/watch/v1/session", `{"duration_seconds":1000}`)
	rr := serveAs(h, "u1", http.MethodPost, "/v1/watch/v1/events", `{"type":"tick","second":50}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var out playerEventResponse
	_ = json.Unmarshal(rr.Body.Bytes(), &out)
	if out.Persisted {
		t.Fatal("5% drift should not persist")
	}
	if len(progress.upserts) != 0 {
		t.Fatalf("expected no upserts, got %d", len(progress.upserts))
	}
}

func TestPlayerEvent_PausePersistsViaSyncFallback(t *testing.T) {
	progress := newFakeProgress()
	h := newTestHandlers(testWorld(), progress)

	serveAs(h, "u1", http.MethodPost, "/v1/watch/v1/session", `{"duration_seconds":1000}`)
	serveAs(h, "u1", http.MethodPost, "/v1/watch/v1/events", `{"type":"tick","second":50}`)
	rr := serveAs(h, "u1", http.MethodPost, "/v1/watch/v1/events", `{"type":"pause","second":50}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	if len(progress.upserts) != 1 {
		t.Fatalf("expected one upsert, got %d", len(progress.upserts))
	}
	up := progress.upserts[0]
	if up.VideoID != "v1" || up.LastSecond != 50 || up.Percent != 5 || up.Completed {
		t.Fatalf("unexpected upsert %+v", up)
	}
}

func TestPlayerEvent_EndedPinsAndCompletes(t *testing.T) {
	progress := newFakeProgress()
	h := newTestHandlers(testWorld(), progress)

	serveAs(h, "u1", http.MethodPost, "/v1/watch/v1/session", `{"duration_seconds":1000}`)
	rr := serveAs(h, "u1", http.MethodPost, "/v1/watch/v1/events", `{"type":"ended","second":930}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var out playerEventResponse
	_ = json.Unmarshal(rr.Body.Bytes(), &out)
	if !out.Persisted || !out.Completed {
		t.Fatalf("unexpected response %+v", out)
	}

	up := progress.upserts[len(progress.upserts)-1]
	if up.Percent != 100 || up.LastSecond != 1000 || !up.Completed {
		t.Fatalf("ended should pin the end, got %+v", up)
	}
}

func TestPlayerEvent_CompletionUnlocksNextVideo(t *testing.T) {
	progress := newFakeProgress()
	h := newTestHandlers(testWorld(), progress)

	// v2 starts locked behind v1's frontier plus one.
	if rr := serveAs(h, "u1", http.MethodGet, "/v1/watch/v3", ""); rr.Code != http.StatusForbidden {
		t.Fatalf("expected v3 locked, got %d", rr.Code)
	}

	serveAs(h, "u1", http.MethodPost, "/v1/watch/v2/session", `{"duration_seconds":1000}`)
	serveAs(h, "u1", http.MethodPost, "/v1/watch/v2/events", `{"type":"ended","second":1000}`)

	if rr := serveAs(h, "u1", http.MethodGet, "/v1/watch/v3", ""); rr.Code != http.StatusOK {
		t.Fatalf("expected v3 unlocked after completing v2, got %d", rr.Code)
	}
}

func TestMarkCompleted_WithSessionWritesEnd(t *testing.T) {
	progress := newFakeProgress()
	progress.seed("u1", clientsProgressItem("v1", 300, 50, 2000))
	h := newTestHandlers(testWorld(), progress)

	rr := serveAs(h, "u1", http.MethodPost, "/v1/watch/v1/session", `{"duration_seconds":600}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("open session: expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	rr = serveAs(h, "u1", http.MethodPost, "/v1/videos/v1/complete", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	up := progress.upserts[len(progress.upserts)-1]
	if !up.Completed || up.LastSecond != 600 || up.Percent != 100 {
		t.Fatalf("mark should write the video end, got %+v", up)
	}

	rr = serveAs(h, "u1", http.MethodDelete, "/v1/videos/v1/complete", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	up = progress.upserts[len(progress.upserts)-1]
	if up.Completed || up.LastSecond != 300 || up.Percent != 50 {
		t.Fatalf("undo should restore the pre-mark position, got %+v", up)
	}
}

func TestMarkCompleted_WithoutSessionPinsPercent(t *testing.T) {
	progress := newFakeProgress()
	progress.seed("u1", clientsProgressItem("v1", 300, 50, 2000))
	h := newTestHandlers(testWorld(), progress)

	rr := serveAs(h, "u1", http.MethodPost, "/v1/videos/v1/complete", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	up := progress.upserts[len(progress.upserts)-1]
	if !up.Completed || up.Percent != 100 {
		t.Fatalf("mark should pin percent to 100, got %+v", up)
	}

	rr = serveAs(h, "u1", http.MethodDelete, "/v1/videos/v1/complete", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	up = progress.upserts[len(progress.upserts)-1]
	if up.Completed {
		t.Fatalf("undo should clear completion, got %+v", up)
	}
}

func TestResetProgress_ZeroesEverything(t *testing.T) {
	progress := newFakeProgress()
	progress.seed("u1", completedItem("v1", 2000))
	h := newTestHandlers(testWorld(), progress)

	rr := serveAs(h, "u1", http.MethodDelete, "/v1/videos/v1/progress", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	up := progress.upserts[len(progress.upserts)-1]
	if up.LastSecond != 0 || up.Percent != 0 || up.Completed {
		t.Fatalf("reset should zero everything, got %+v", up)
	}
}
