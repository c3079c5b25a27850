package httpapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/and161185/pto-keeper/internal/errs"
	"github.com/and161185/pto-keeper/internal/model"
	"github.com/and161185/pto-keeper/internal/server/sessionctx"
	"github.com/and161185/pto-keeper/internal/widget"
)

const (
	pkceCookie   = "pto_pkce"
	pkcePath     = "/auth/google"
	maxBodyBytes = 1 << 16
)

type credentials struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"displayName"`
}

func (a *api) sessionID(w http.ResponseWriter, r *http.Request) (string, bool) {
	sid, ok := sessionctx.SessionIDFromCtx(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "session required")
	}
	return sid, ok
}

func decodeCredentials(w http.ResponseWriter, r *http.Request) (credentials, error) {
	var c credentials
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&c); err != nil {
		return c, fmt.Errorf("%w: %v", errs.ErrInvalidArgument, err)
	}
	return c, nil
}

func (a *api) signUp(w http.ResponseWriter, r *http.Request) {
	sid, ok := a.sessionID(w, r)
	if !ok {
		return
	}
	c, err := decodeCredentials(w, r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	sess, err := a.Auth.SignUp(r.Context(), sid, c.Email, c.Password, c.DisplayName)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, model.AuthUserFromSession(*sess))
}

func (a *api) signIn(w http.ResponseWriter, r *http.Request) {
	sid, ok := a.sessionID(w, r)
	if !ok {
		return
	}
	c, err := decodeCredentials(w, r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	sess, err := a.Auth.SignInWithPassword(r.Context(), sid, c.Email, c.Password)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, model.AuthUserFromSession(*sess))
}

func (a *api) signOut(w http.ResponseWriter, r *http.Request) {
	sid, ok := a.sessionID(w, r)
	if !ok {
		return
	}
	if err := a.Auth.SignOut(r.Context(), sid); err != nil {
		a.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// me resolves a bearer id token to the stored user.
func (a *api) me(w http.ResponseWriter, r *http.Request) {
	tok, ok := bearerToken(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	uid, err := a.Auth.VerifyIDToken(tok)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	u, err := a.Users.GetByUID(r.Context(), uid)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func bearerToken(r *http.Request) (string, bool) {
	for _, v := range r.Header.Values("Authorization") {
		v = strings.TrimSpace(v)
		if len(v) >= 7 && strings.EqualFold(v[:7], "bearer ") {
			if t := strings.TrimSpace(v[7:]); t != "" {
				return t, true
			}
		}
	}
	return "", false
}

func (a *api) widgetMount(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := widget.RenderMount(&buf, r.URL.Query().Get("id"), a.Widget); err != nil {
		a.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}

func (a *api) widgetConfig(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, a.Widget)
}

func (a *api) googleEnabled() bool {
	return a.Google != nil && a.Google.Enabled()
}

func (a *api) googleStart(w http.ResponseWriter, r *http.Request) {
	if !a.googleEnabled() {
		http.NotFound(w, r)
		return
	}
	sid, ok := a.sessionID(w, r)
	if !ok {
		return
	}
	authURL, verifier, err := a.Google.Begin(sid)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     pkceCookie,
		Value:    verifier,
		Path:     pkcePath,
		MaxAge:   600,
		HttpOnly: true,
		Secure:   a.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, authURL, http.StatusFound)
}

// googleCallback finishes the popup flow. The response is always the popup
// completion page; it never redirects.
func (a *api) googleCallback(w http.ResponseWriter, r *http.Request) {
	if !a.googleEnabled() {
		http.NotFound(w, r)
		return
	}
	http.SetCookie(w, &http.Cookie{Name: pkceCookie, Path: pkcePath, MaxAge: -1, HttpOnly: true, Secure: a.SecureCookies})

	sid, _ := sessionctx.SessionIDFromCtx(r.Context())
	q := r.URL.Query()
	if e := q.Get("error"); e != "" {
		a.popup(w, http.StatusUnauthorized, widget.PopupResult{Error: e})
		return
	}
	verifier := ""
	if c, err := r.Cookie(pkceCookie); err == nil {
		verifier = c.Value
	}

	id, err := a.Google.Complete(r.Context(), sid, q.Get("state"), q.Get("code"), verifier)
	if err == nil {
		_, err = a.Auth.SignInWithIdentity(r.Context(), sid, id)
	}
	if err != nil {
		status, msg := statusFor(err)
		if status >= http.StatusInternalServerError {
			a.Log.Error("google sign-in failed", zap.Error(err))
		} else {
			a.Log.Info("google sign-in rejected", zap.Error(err))
		}
		a.popup(w, status, widget.PopupResult{Error: msg})
		return
	}
	a.popup(w, http.StatusOK, widget.PopupResult{OK: true})
}

func (a *api) popup(w http.ResponseWriter, status int, res widget.PopupResult) {
	res.OpenerOrigin = a.OpenerOrigin
	var buf bytes.Buffer
	if err := widget.RenderPopupResult(&buf, res); err != nil {
		a.Log.Error("render popup result", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}
