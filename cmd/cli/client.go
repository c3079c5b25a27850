package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/websocket"

	"github.com/and161185/pto-keeper/internal/bridge"
	"github.com/and161185/pto-keeper/internal/convert"
	"github.com/and161185/pto-keeper/internal/model"
)

const sessionCookie = "pto_sid"

var errNotSignedIn = errors.New("not signed in (run signin first)")

// client talks to pto-server over HTTP and the websocket bridge.
type client struct {
	base   *url.URL
	origin string
	http   *http.Client
	sess   *sessionFile
}

func newClient(addr, origin string, sess *sessionFile) (*client, error) {
	base, err := url.Parse(strings.TrimRight(addr, "/"))
	if err != nil {
		return nil, err
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("addr must be http(s)://host:port, got %q", addr)
	}
	if origin == "" {
		origin = base.Scheme + "://" + base.Host
	}
	if sess == nil {
		sess = &sessionFile{}
	}
	return &client{base: base, origin: origin, http: &http.Client{Timeout: 30 * time.Second}, sess: sess}, nil
}

func (c *client) url(path string) string { return c.base.String() + path }

// do sends the session cookie and records a new one if the server assigns it.
func (c *client) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var rd *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		rd = bytes.NewReader(b)
	} else {
		rd = bytes.NewReader(nil)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.url(path), rd)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.sess.SessionID != "" {
		req.AddCookie(&http.Cookie{Name: sessionCookie, Value: c.sess.SessionID})
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	for _, ck := range resp.Cookies() {
		if ck.Name == sessionCookie && ck.Value != "" {
			c.sess.SessionID = ck.Value
		}
	}
	return resp, nil
}

func httpError(resp *http.Response) error {
	var body struct {
		Error string `json:"error"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&body)
	if body.Error == "" {
		return fmt.Errorf("server: %s", resp.Status)
	}
	return fmt.Errorf("server: %s: %s", resp.Status, body.Error)
}

type credentials struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"displayName,omitempty"`
}

// signIn posts to /auth/password/{signin|signup} and stores the returned user.
func (c *client) signIn(ctx context.Context, mode string, cr credentials) (model.AuthUser, error) {
	resp, err := c.do(ctx, http.MethodPost, "/auth/password/"+mode, cr)
	if err != nil {
		return model.AuthUser{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return model.AuthUser{}, httpError(resp)
	}
	var u model.AuthUser
	if err := json.NewDecoder(resp.Body).Decode(&u); err != nil {
		return model.AuthUser{}, err
	}
	c.sess.UID, c.sess.IDToken, c.sess.ExpiresAt = u.UID, u.IDToken, u.ExpiresAt
	return u, nil
}

func (c *client) signOut(ctx context.Context) error {
	resp, err := c.do(ctx, http.MethodPost, "/auth/signout", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return httpError(resp)
	}
	c.sess.UID, c.sess.IDToken, c.sess.ExpiresAt = "", "", time.Time{}
	return nil
}

func (c *client) me(ctx context.Context) (model.User, error) {
	if c.sess.IDToken == "" {
		return model.User{}, errNotSignedIn
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url("/auth/me"), nil)
	if err != nil {
		return model.User{}, err
	}
	req.Header.Set("Authorization", "Bearer "+c.sess.IDToken)
	resp, err := c.http.Do(req)
	if err != nil {
		return model.User{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return model.User{}, httpError(resp)
	}
	var u model.User
	err = json.NewDecoder(resp.Body).Decode(&u)
	return u, err
}

// bridgeConn is one websocket bridge connection.
type bridgeConn struct {
	ws     *websocket.Conn
	nextID int
}

func (c *client) dialBridge(ctx context.Context) (*bridgeConn, error) {
	if c.sess.SessionID == "" {
		return nil, errNotSignedIn
	}
	wsURL := *c.base
	wsURL.Scheme = "ws"
	if c.base.Scheme == "https" {
		wsURL.Scheme = "wss"
	}
	wsURL.Path = strings.TrimRight(wsURL.Path, "/") + "/ws"
	cfg, err := websocket.NewConfig(wsURL.String(), c.origin)
	if err != nil {
		return nil, err
	}
	cfg.Header.Set("Cookie", (&http.Cookie{Name: sessionCookie, Value: c.sess.SessionID}).String())
	conn, err := cfg.DialContext(ctx)
	if err != nil {
		return nil, err
	}
	if dl, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(dl)
	}
	return &bridgeConn{ws: conn}, nil
}

func (b *bridgeConn) Close() error { return b.ws.Close() }

// send writes one request and returns its request id.
func (b *bridgeConn) send(req bridge.Request) (string, error) {
	b.nextID++
	id := fmt.Sprintf("%s-%d", req.Op(), b.nextID)
	f, err := convert.EncodeRequest(id, req)
	if err != nil {
		return "", err
	}
	return id, websocket.JSON.Send(b.ws, f)
}

// next reads the next event. Transport error frames are returned as errors.
func (b *bridgeConn) next() (bridge.Event, error) {
	var f convert.Frame
	if err := websocket.JSON.Receive(b.ws, &f); err != nil {
		return nil, err
	}
	if f.Type == convert.FrameError {
		var p convert.ErrorPayload
		_ = json.Unmarshal(f.Payload, &p)
		return nil, fmt.Errorf("bridge: %s: %s", p.Code, p.Message)
	}
	return convert.DecodeEvent(f)
}

// awaitAuth reads the auth snapshot every connection starts with.
func (b *bridgeConn) awaitAuth() (model.AuthUser, error) {
	for {
		ev, err := b.next()
		if err != nil {
			return model.AuthUser{}, err
		}
		switch e := ev.(type) {
		case bridge.LoggedIn:
			return e.User, nil
		case bridge.LoggedOut:
			return model.AuthUser{}, errNotSignedIn
		}
	}
}

// awaitData waits for the next ptoData, failing on a ptoError for reqID.
func (b *bridgeConn) awaitData(reqID string) (model.PtoCollection, error) {
	for {
		ev, err := b.next()
		if err != nil {
			return nil, err
		}
		switch e := ev.(type) {
		case bridge.PtoData:
			return e.Records, nil
		case bridge.PtoError:
			if e.RequestID == reqID {
				return nil, ptoErr(e)
			}
		case bridge.LoggedOut:
			return nil, errNotSignedIn
		}
	}
}

// awaitError waits up to d for a ptoError for reqID.
func (b *bridgeConn) awaitError(reqID string, d time.Duration) error {
	_ = b.ws.SetReadDeadline(time.Now().Add(d))
	defer func() { _ = b.ws.SetReadDeadline(time.Time{}) }()
	for {
		ev, err := b.next()
		if err != nil {
			var ne interface{ Timeout() bool }
			if errors.As(err, &ne) && ne.Timeout() {
				return nil
			}
			return err
		}
		if e, ok := ev.(bridge.PtoError); ok && e.RequestID == reqID {
			return ptoErr(e)
		}
	}
}

func ptoErr(e bridge.PtoError) error {
	if e.Retryable {
		return fmt.Errorf("%s failed: %s: %s (retryable)", e.Op, e.Code, e.Message)
	}
	return fmt.Errorf("%s failed: %s: %s", e.Op, e.Code, e.Message)
}
