// Package httpapi serves the account and statistics endpoints used by the
// lobby page: register, login, leaderboard and per-account stats.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"survival.io/internal/persistence/statsdb"
	"survival.io/internal/protocol"
)

// Accounts is implemented by *statsdb.Store.
type Accounts interface {
	Register(ctx context.Context, username, password string) (statsdb.User, error)
	Authenticate(ctx context.Context, username, password string) (statsdb.User, error)
	Stats(ctx context.Context, userID int64) (statsdb.Stats, error)
	Leaderboard(ctx context.Context, limit int) ([]statsdb.LeaderboardEntry, error)
}

type API struct {
	accounts         Accounts
	log              *zap.Logger
	leaderboardLimit int
}

func New(accounts Accounts, leaderboardLimit int, logger *zap.Logger) *API {
	if logger == nil {
		logger = zap.NewNop()
	}
	if leaderboardLimit <= 0 {
		leaderboardLimit = 10
	}
	return &API{accounts: accounts, log: logger.Named("httpapi"), leaderboardLimit: leaderboardLimit}
}

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type registerResponse struct {
	Success bool  `json:"success"`
	UserID  int64 `json:"userId"`
}

type loginResponse struct {
	Success bool         `json:"success"`
	User    statsdb.User `json:"user"`
}

const maxBodyBytes = 4 * 1024

// Register mounts the endpoints on mux. With no account store every endpoint
// answers 503.
func (a *API) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/register", a.handleRegister)
	mux.HandleFunc("POST /api/login", a.handleLogin)
	mux.HandleFunc("GET /api/leaderboard", a.handleLeaderboard)
	mux.HandleFunc("GET /api/stats/{id}", a.handleStats)
}

func (a *API) handleRegister(rw http.ResponseWriter, r *http.Request) {
	if !a.available(rw) {
		return
	}
	var c credentials
	if !decodeBody(rw, r, &c) {
		return
	}
	u, err := a.accounts.Register(r.Context(), c.Username, c.Password)
	switch {
	case errors.Is(err, statsdb.ErrInvalidInput):
		writeError(rw, http.StatusBadRequest, protocol.ErrBadRequest, err.Error())
	case errors.Is(err, statsdb.ErrUsernameTaken):
		writeError(rw, http.StatusConflict, protocol.ErrConflict, err.Error())
	case err != nil:
		a.internal(rw, "register", err)
	default:
		writeJSON(rw, http.StatusOK, registerResponse{Success: true, UserID: u.ID})
	}
}

func (a *API) handleLogin(rw http.ResponseWriter, r *http.Request) {
	if !a.available(rw) {
		return
	}
	var c credentials
	if !decodeBody(rw, r, &c) {
		return
	}
	u, err := a.accounts.Authenticate(r.Context(), c.Username, c.Password)
	switch {
	case errors.Is(err, statsdb.ErrUserNotFound), errors.Is(err, statsdb.ErrInvalidPassword):
		writeError(rw, http.StatusUnauthorized, protocol.ErrUnauthorized, err.Error())
	case err != nil:
		a.internal(rw, "login", err)
	default:
		writeJSON(rw, http.StatusOK, loginResponse{Success: true, User: u})
	}
}

func (a *API) handleLeaderboard(rw http.ResponseWriter, r *http.Request) {
	if !a.available(rw) {
		return
	}
	limit := a.leaderboardLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 100 {
			writeError(rw, http.StatusBadRequest, protocol.ErrBadRequest, "limit must be 1..100")
			return
		}
		limit = n
	}
	lb, err := a.accounts.Leaderboard(r.Context(), limit)
	if err != nil {
		a.internal(rw, "leaderboard", err)
		return
	}
	writeJSON(rw, http.StatusOK, lb)
}

func (a *API) handleStats(rw http.ResponseWriter, r *http.Request) {
	if !a.available(rw) {
		return
	}
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(rw, http.StatusBadRequest, protocol.ErrBadRequest, "bad user id")
		return
	}
	st, err := a.accounts.Stats(r.Context(), id)
	switch {
	case errors.Is(err, statsdb.ErrUserNotFound):
		writeError(rw, http.StatusNotFound, protocol.ErrNotFound, err.Error())
	case err != nil:
		a.internal(rw, "stats", err)
	default:
		writeJSON(rw, http.StatusOK, st)
	}
}

func (a *API) available(rw http.ResponseWriter) bool {
	if a.accounts == nil {
		writeError(rw, http.StatusServiceUnavailable, protocol.ErrUnavailable, "accounts disabled")
		return false
	}
	return true
}

func (a *API) internal(rw http.ResponseWriter, op string, err error) {
	a.log.Error(op+" failed", zap.Error(err))
	writeError(rw, http.StatusInternalServerError, protocol.ErrInternal, "internal error")
}

func decodeBody(rw http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(rw, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		writeError(rw, http.StatusBadRequest, protocol.ErrBadRequest, "invalid json body")
		return false
	}
	return true
}

func writeJSON(rw http.ResponseWriter, status int, v any) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)
	_ = json.NewEncoder(rw).Encode(v)
}

func writeError(rw http.ResponseWriter, status int, code, msg string) {
	writeJSON(rw, status, protocol.ErrorResponse{Success: false, Error: msg, Code: code})
}

// requestTimeout bounds every API call; bcrypt and SQLite are the slow parts.
const requestTimeout = 10 * time.Second

// Handler returns a mux with only the API mounted, wrapped in a timeout.
func (a *API) Handler() http.Handler {
	mux := http.NewServeMux()
	a.Register(mux)
	return http.TimeoutHandler(mux, requestTimeout, `{"success":false,"error":"timeout","code":"E_UNAVAILABLE"}`)
}
