// Package httpapi is the browser-facing HTTP surface: the sign-in widget, the
// password and Google sign-in endpoints and the websocket bridge.
package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/and161185/pto-keeper/internal/errs"
	"github.com/and161185/pto-keeper/internal/oauth"
	"github.com/and161185/pto-keeper/internal/repository"
	"github.com/and161185/pto-keeper/internal/service"
	"github.com/and161185/pto-keeper/internal/widget"
)

// Deps are the collaborators the router needs.
type Deps struct {
	Auth   service.AuthService
	Users  repository.UserRepository
	Google *oauth.Provider // nil or disabled hides the Google routes
	Widget widget.Options
	WS     http.Handler
	Log    *zap.Logger

	// SecureCookies marks cookies Secure (set behind TLS).
	SecureCookies bool
	// OpenerOrigin restricts the popup postMessage target; empty means any.
	OpenerOrigin string
}

type api struct {
	Deps
}

// NewRouter wires routes and middleware.
func NewRouter(d Deps) http.Handler {
	a := &api{Deps: d}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(Recover(d.Log))
	r.Use(Logging(d.Log))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/auth/me", a.me)

	r.Group(func(r chi.Router) {
		r.Use(Session(d.SecureCookies))

		r.Get("/widget", a.widgetMount)
		r.Get("/widget/config", a.widgetConfig)

		r.Route("/auth", func(r chi.Router) {
			r.Post("/password/signup", a.signUp)
			r.Post("/password/signin", a.signIn)
			r.Post("/signout", a.signOut)
			r.Get("/google/start", a.googleStart)
			r.Get("/google/callback", a.googleCallback)
		})

		if d.WS != nil {
			r.Handle("/ws", d.WS)
		}
	})
	return r
}

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, errs.ErrInvalidArgument):
		return http.StatusBadRequest, "invalid argument"
	case errors.Is(err, errs.ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, errs.ErrAlreadyExists):
		return http.StatusConflict, "already exists"
	case errors.Is(err, errs.ErrNotFound):
		return http.StatusNotFound, "not found"
	case errors.Is(err, errs.ErrUnavailable):
		return http.StatusServiceUnavailable, "backend unavailable"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

func (a *api) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := statusFor(err)
	if status >= http.StatusInternalServerError {
		a.Log.Error("request failed",
			zap.String("path", r.URL.Path),
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Error(err))
	}
	writeError(w, status, msg)
}
