package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/example/course-platform/internal/platform/analytics"
	"github.com/example/course-platform/internal/platform/api"
	"github.com/example/course-platform/internal/platform/auth"
	"github.com/example/course-platform/internal/platform/httpserver"
	"github.com/example/course-platform/services/auth/internal/config"
	"github.com/example/course-platform/services/auth/internal/domain"
	"github.com/example/course-platform/services/auth/internal/store"
	"github.com/example/course-platform/services/auth/internal/tokens"
)

const maxRequestBodyBytes = 64 << 10

// UserStore is the subset of the auth store the handlers need; the tests swap
// in an in-memory implementation.
type UserStore interface {
	CreateUser(ctx context.Context, p store.CreateUserParams) (domain.User, error)
	FindUserByLogin(ctx context.Context, login string) (store.UserRow, error)
	GetUserByID(ctx context.Context, userID string) (domain.User, error)
	SetUserRoleByID(ctx context.Context, userID uuid.UUID, role string) error
	ListUsers(ctx context.Context) ([]store.UserSummary, error)
	CreateRefreshSession(ctx context.Context, p store.CreateRefreshSessionParams) error
	GetRefreshSessionByHash(ctx context.Context, tokenHash string) (store.RefreshSession, error)
	RevokeRefreshSession(ctx context.Context, sessionID uuid.UUID, now time.Time) error
	ReplaceRefreshSession(ctx context.Context, oldID, newID uuid.UUID, now time.Time) error
}

type AuthHandlers struct {
	Store     UserStore
	Tokens    tokens.Service
	Cfg       config.AuthConfig
	Analytics *analytics.Publisher
}

type userJSON struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	Username  string `json:"username"`
	Role      string `json:"role"`
	CreatedAt string `json:"created_at"`
}

type tokenResponse struct {
	User         userJSON `json:"user"`
	AccessToken  string   `json:"access_token"`
	RefreshToken string   `json:"refresh_token"`
	ExpiresIn    int64    `json:"expires_in"`
}

// Register handles POST /v1/auth/register.
func (h *AuthHandlers) Register(w http.ResponseWriter, r *http.Request) {
	rid := httpserver.RequestIDFromContext(r.Context())

	var req struct {
		Email    string `json:"email"`
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)).Decode(&req); err != nil {
		api.BadRequest(w, "INVALID_JSON", "Invalid JSON", rid, nil)
		return
	}
	email := strings.TrimSpace(req.Email)
	username := strings.TrimSpace(req.Username)

	if !isValidEmail(email) {
		api.BadRequest(w, "VALIDATION_EMAIL", "Invalid email", rid, map[string]any{"email": "invalid"})
		return
	}
	if !isValidUsername(username) {
		api.BadRequest(w, "VALIDATION_USERNAME", "Invalid username", rid, map[string]any{"username": "invalid"})
		return
	}
	if len(req.Password) < 8 {
		api.BadRequest(w, "VALIDATION_PASSWORD", "Password too short", rid, map[string]any{"password": "min length 8"})
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		api.Internal(w, rid)
		return
	}

	u, err := h.Store.CreateUser(r.Context(), store.CreateUserParams{Email: email, Username: username, PasswordHash: string(hash)})
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			api.Conflict(w, "USER_ALREADY_EXISTS", "User already exists", rid, nil)
			return
		}
		api.Internal(w, rid)
		return
	}

	// If bootstrap admin username matches, promote this user immediately.
	if h.Cfg.BootstrapAdminUsername != "" && strings.EqualFold(h.Cfg.BootstrapAdminUsername, u.Username) {
		if id, err := uuid.Parse(u.ID); err == nil {
			_ = h.Store.SetUserRoleByID(r.Context(), id, "admin")
			u.Role = "admin"
		}
	}

	resp, err := h.issueTokens(r.Context(), u, clientIP(r), r.UserAgent())
	if err != nil {
		api.Internal(w, rid)
		return
	}
	h.Analytics.Publish(analytics.SubjectAuthRegistered, "auth.registered", u.ID, nil)
	api.WriteJSON(w, http.StatusCreated, resp)
}

// Login handles POST /v1/auth/login.
func (h *AuthHandlers) Login(w http.ResponseWriter, r *http.Request) {
	rid := httpserver.RequestIDFromContext(r.Context())

	var req struct {
		Login    string `json:"login"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)).Decode(&req); err != nil {
		api.BadRequest(w, "INVALID_JSON", "Invalid JSON", rid, nil)
		return
	}
	login := strings.TrimSpace(req.Login)
	if login == "" {
		api.BadRequest(w, "VALIDATION_LOGIN", "Login is required", rid, map[string]any{"login": "required"})
		return
	}
	if req.Password == "" {
		api.BadRequest(w, "VALIDATION_PASSWORD", "Password is required", rid, map[string]any{"password": "required"})
		return
	}

	row, err := h.Store.FindUserByLogin(r.Context(), login)
	if err != nil {
		api.Unauthorized(w, "AUTH_INVALID_CREDENTIALS", "Invalid credentials", rid)
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(row.PasswordHash), []byte(req.Password)) != nil {
		api.Unauthorized(w, "AUTH_INVALID_CREDENTIALS", "Invalid credentials", rid)
		return
	}

	resp, err := h.issueTokens(r.Context(), row.User, clientIP(r), r.UserAgent())
	if err != nil {
		api.Internal(w, rid)
		return
	}
	h.Analytics.Publish(analytics.SubjectAuthLoggedIn, "auth.logged_in", row.User.ID, nil)
	api.WriteJSON(w, http.StatusOK, resp)
}

// Refresh handles POST /v1/auth/refresh. The old session is revoked and
// chained to the new one, so a replayed refresh token fails closed.
func (h *AuthHandlers) Refresh(w http.ResponseWriter, r *http.Request) {
	rid := httpserver.RequestIDFromContext(r.Context())

	raw, ok := refreshTokenFromBody(w, r)
	if !ok {
		api.BadRequest(w, "VALIDATION_REFRESH_TOKEN", "refresh_token is required", rid, nil)
		return
	}

	sess, err := h.Store.GetRefreshSessionByHash(r.Context(), tokens.HashToken(raw))
	if err != nil {
		api.Unauthorized(w, "AUTH_INVALID_REFRESH", "Invalid refresh token", rid)
		return
	}
	now := time.Now().UTC()
	if sess.RevokedAt != nil || now.After(sess.ExpiresAt) {
		api.Unauthorized(w, "AUTH_INVALID_REFRESH", "Invalid refresh token", rid)
		return
	}

	u, err := h.Store.GetUserByID(r.Context(), sess.UserID.String())
	if err != nil {
		api.Internal(w, rid)
		return
	}

	access, exp, err := h.Tokens.NewAccessToken(sess.UserID.String(), u.Role, now)
	if err != nil {
		api.Internal(w, rid)
		return
	}
	newRaw, newHash, err := tokens.NewRefreshToken()
	if err != nil {
		api.Internal(w, rid)
		return
	}
	newID := uuid.New()
	if err := h.Store.ReplaceRefreshSession(r.Context(), sess.ID, newID, now); err != nil {
		api.Internal(w, rid)
		return
	}
	if err := h.Store.CreateRefreshSession(r.Context(), store.CreateRefreshSessionParams{
		SessionID: newID,
		UserID:    sess.UserID,
		TokenHash: newHash,
		ExpiresAt: now.Add(h.Cfg.RefreshTokenTTL),
		UserAgent: r.UserAgent(),
		IP:        clientIP(r),
		Now:       now,
	}); err != nil {
		api.Internal(w, rid)
		return
	}

	api.WriteJSON(w, http.StatusOK, tokenResponse{
		User:         toUserJSON(u),
		AccessToken:  access,
		RefreshToken: newRaw,
		ExpiresIn:    int64(time.Until(exp).Seconds()),
	})
}

// Logout handles POST /v1/auth/logout. Best-effort: an unknown token still
// returns success.
func (h *AuthHandlers) Logout(w http.ResponseWriter, r *http.Request) {
	rid := httpserver.RequestIDFromContext(r.Context())

	raw, ok := refreshTokenFromBody(w, r)
	if !ok {
		api.BadRequest(w, "VALIDATION_REFRESH_TOKEN", "refresh_token is required", rid, nil)
		return
	}
	if sess, err := h.Store.GetRefreshSessionByHash(r.Context(), tokens.HashToken(raw)); err == nil {
		_ = h.Store.RevokeRefreshSession(r.Context(), sess.ID, time.Now().UTC())
	}
	api.NoContent(w)
}

// Me handles GET /v1/auth/me.
func (h *AuthHandlers) Me(w http.ResponseWriter, r *http.Request) {
	rid := httpserver.RequestIDFromContext(r.Context())

	authz := strings.TrimSpace(r.Header.Get("Authorization"))
	if authz == "" {
		api.Unauthorized(w, "AUTH_MISSING", "Missing bearer token", rid)
		return
	}
	parts := strings.SplitN(authz, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		api.Unauthorized(w, "AUTH_INVALID", "Invalid bearer token", rid)
		return
	}
	claims, err := h.Tokens.ParseAccessToken(strings.TrimSpace(parts[1]))
	if err != nil || strings.TrimSpace(claims.Subject) == "" {
		api.Unauthorized(w, "AUTH_INVALID", "Invalid token", rid)
		return
	}

	u, err := h.Store.GetUserByID(r.Context(), claims.Subject)
	if err != nil {
		api.WriteJSON(w, http.StatusOK, userJSON{ID: claims.Subject, Role: claims.Role})
		return
	}
	api.WriteJSON(w, http.StatusOK, toUserJSON(u))
}

// AdminListUsers handles GET /v1/admin/users: every account with its role
// and last sign-in, for the admin user management view.
func (h *AuthHandlers) AdminListUsers(w http.ResponseWriter, r *http.Request) {
	rid := httpserver.RequestIDFromContext(r.Context())

	users, err := h.Store.ListUsers(r.Context())
	if err != nil {
		api.Internal(w, rid)
		return
	}

	items := make([]adminUserJSON, 0, len(users))
	for _, u := range users {
		item := adminUserJSON{userJSON: toUserJSON(u.User)}
		if u.LastLoginAt != nil {
			s := u.LastLoginAt.UTC().Format(time.RFC3339)
			item.LastLoginAt = &s
		}
		items = append(items, item)
	}
	api.WriteJSON(w, http.StatusOK, map[string]any{"items": items})
}

type adminUserJSON struct {
	userJSON
	LastLoginAt *string `json:"last_login_at"`
}

// Routes mounts the auth endpoints on r.
func (h *AuthHandlers) Routes(r chi.Router) {
	r.Post("/v1/auth/register", h.Register)
	r.Post("/v1/auth/login", h.Login)
	r.Post("/v1/auth/refresh", h.Refresh)
	r.Post("/v1/auth/logout", h.Logout)
	r.Get("/v1/auth/me", h.Me)

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireUser(auth.JWTVerifier{Secret: h.Tokens.Secret}), auth.RequireAdmin)
		r.Get("/v1/admin/users", h.AdminListUsers)
	})
}

func (h *AuthHandlers) issueTokens(ctx context.Context, u domain.User, ip net.IP, userAgent string) (tokenResponse, error) {
	now := time.Now().UTC()
	access, exp, err := h.Tokens.NewAccessToken(u.ID, u.Role, now)
	if err != nil {
		return tokenResponse{}, err
	}
	refreshRaw, refreshHash, err := tokens.NewRefreshToken()
	if err != nil {
		return tokenResponse{}, err
	}
	sessionID := uuid.New()
	userID, _ := uuid.Parse(u.ID)
	if err := h.Store.CreateRefreshSession(ctx, store.CreateRefreshSessionParams{
		SessionID: sessionID,
		UserID:    userID,
		TokenHash: refreshHash,
		ExpiresAt: now.Add(h.Cfg.RefreshTokenTTL),
		UserAgent: userAgent,
		IP:        ip,
		Now:       now,
	}); err != nil {
		return tokenResponse{}, err
	}

	return tokenResponse{
		User:         toUserJSON(u),
		AccessToken:  access,
		RefreshToken: refreshRaw,
		ExpiresIn:    int64(time.Until(exp).Seconds()),
	}, nil
}

func toUserJSON(u domain.User) userJSON {
	return userJSON{
		ID:        u.ID,
		Email:     u.Email,
		Username:  u.Username,
		Role:      u.Role,
		CreatedAt: u.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func refreshTokenFromBody(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)).Decode(&req); err != nil {
		return "", false
	}
	raw := strings.TrimSpace(req.RefreshToken)
	return raw, raw != ""
}

var usernameRe = regexp.MustCompile(`^[a-zA-Z0-9_]{3,32}$`)

func isValidUsername(s string) bool {
	return usernameRe.MatchString(strings.TrimSpace(s))
}

var emailRe = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

func isValidEmail(s string) bool {
	s = strings.TrimSpace(s)
	if len(s) > 254 {
		return false
	}
	return emailRe.MatchString(s)
}

// clientIP trusts X-Forwarded-For from the gateway when present.
func clientIP(r *http.Request) net.IP {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		if ip := net.ParseIP(strings.TrimSpace(parts[0])); ip != nil {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return nil
	}
	return net.ParseIP(host)
}
