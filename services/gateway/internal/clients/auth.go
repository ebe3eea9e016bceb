package clients

import (
	"io"
	"net"
	"net/http"
	"strings"
	"time"
)

// Auth forwards authentication traffic to the auth service. The gateway does
// not reinterpret these bodies; it passes status and payload straight through
// so token semantics live in one place.
type Auth struct {
	baseURL string
	hc      *http.Client
}

func NewAuth(baseURL string, hc *http.Client) *Auth {
	if hc == nil {
		hc = &http.Client{Timeout: 10 * time.Second}
	}
	return &Auth{baseURL: strings.TrimRight(baseURL, "/"), hc: hc}
}

// Forward proxies r to the auth service at path and copies the reply back.
// The Authorization header and the caller's IP travel upstream; hop-by-hop
// headers do not.
func (a *Auth) Forward(w http.ResponseWriter, r *http.Request, path string) error {
	body := http.MaxBytesReader(w, r.Body, 64<<10)
	req, err := http.NewRequestWithContext(r.Context(), r.Method, a.baseURL+path, body)
	if err != nil {
		return err
	}
	if ct := r.Header.Get("Content-Type"); ct != "" {
		req.Header.Set("Content-Type", ct)
	}
	if authz := r.Header.Get("Authorization"); authz != "" {
		req.Header.Set("Authorization", authz)
	}
	req.Header.Set("X-Forwarded-For", clientIP(r))

	res, err := a.hc.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if ct := res.Header.Get("Content-Type"); ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	w.WriteHeader(res.StatusCode)
	_, err = io.Copy(w, io.LimitReader(res.Body, maxResponseBytes))
	return err
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if i := strings.IndexByte(fwd, ','); i >= 0 {
			return strings.TrimSpace(fwd[:i])
		}
		return strings.TrimSpace(fwd)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
