// Package ws serves the bridge over a websocket: one Bridge per connection.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/net/websocket"

	"github.com/and161185/pto-keeper/internal/backend"
	"github.com/and161185/pto-keeper/internal/bridge"
	"github.com/and161185/pto-keeper/internal/convert"
	"github.com/and161185/pto-keeper/internal/server/sessionctx"
	"github.com/and161185/pto-keeper/internal/service"
)

const maxDecodeErrorsPerConn = 3

// Handler upgrades requests carrying a session id to websocket bridges.
type Handler struct {
	auth    service.AuthService
	pto     service.PtoService
	log     *zap.Logger
	opts    bridge.Options
	origins map[string]struct{}

	// base is cancelled on server shutdown; every bridge derives from it.
	base context.Context
	wg   sync.WaitGroup
}

// NewHandler constructs the websocket handler. An empty allowedOrigins list only
// accepts same-host origins.
func NewHandler(base context.Context, auth service.AuthService, pto service.PtoService, log *zap.Logger,
	opts bridge.Options, allowedOrigins []string) *Handler {
	origins := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		origins[o] = struct{}{}
	}
	return &Handler{auth: auth, pto: pto, log: log, opts: opts, origins: origins, base: base}
}

// ServeHTTP requires a session id in the request context.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	sid, ok := sessionctx.SessionIDFromCtx(r.Context())
	if !ok {
		http.Error(w, "session required", http.StatusUnauthorized)
		return
	}
	srv := websocket.Server{
		Handshake: func(cfg *websocket.Config, req *http.Request) error {
			return h.checkOrigin(cfg, req)
		},
		Handler: func(conn *websocket.Conn) { h.serveConn(conn, sid) },
	}
	h.wg.Add(1)
	defer h.wg.Done()
	srv.ServeHTTP(w, r)
}

// Wait blocks until every connection has finished draining.
func (h *Handler) Wait() { h.wg.Wait() }

func (h *Handler) checkOrigin(cfg *websocket.Config, req *http.Request) error {
	origin, err := websocket.Origin(cfg, req)
	if err != nil {
		return err
	}
	if origin == nil {
		return errors.New("missing origin")
	}
	if _, ok := h.origins[origin.Scheme+"://"+origin.Host]; ok {
		return nil
	}
	if sameHost(origin, req) {
		return nil
	}
	return fmt.Errorf("origin %q not allowed", origin.String())
}

func sameHost(origin *url.URL, req *http.Request) bool {
	return origin.Host == req.Host
}

type peer struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (p *peer) writeFrame(f convert.Frame) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return websocket.JSON.Send(p.conn, f)
}

// Emit implements bridge.Emitter.
func (p *peer) Emit(ev bridge.Event) error {
	f, err := convert.EncodeEvent(ev)
	if err != nil {
		return err
	}
	return p.writeFrame(f)
}

func (h *Handler) serveConn(conn *websocket.Conn, sid string) {
	defer func() { _ = conn.Close() }()

	log := h.log.With(zap.String("remote", conn.Request().RemoteAddr))
	log.Info("ws: connected")

	ctx, cancel := context.WithCancel(h.base)
	defer cancel()

	p := &peer{conn: conn}
	b := bridge.New(backend.New(sid, h.auth, h.pto), p, log, h.opts)
	calls := make(chan bridge.Call)
	done := make(chan error, 1)
	go func() { done <- b.Run(ctx, calls) }()

	// closing the socket on shutdown unblocks the read loop
	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	h.readLoop(ctx, conn, p, calls, log)
	close(calls)
	cancel()
	if err := <-done; err != nil {
		log.Warn("ws: bridge stopped", zap.Error(err))
	}
	log.Info("ws: disconnected")
}

func (h *Handler) readLoop(ctx context.Context, conn *websocket.Conn, p *peer, calls chan<- bridge.Call, log *zap.Logger) {
	decodeErrors := 0
	for {
		var frame convert.Frame
		if err := websocket.JSON.Receive(conn, &frame); err != nil {
			if !isDecodeError(err) {
				if !errors.Is(err, io.EOF) && ctx.Err() == nil {
					log.Debug("ws: read failed", zap.Error(err))
				}
				return
			}
			decodeErrors++
			_ = p.writeFrame(convert.ErrorFrame("", string(bridge.CodeInvalidArgument), "invalid frame"))
			if decodeErrors >= maxDecodeErrorsPerConn {
				log.Warn("ws: too many invalid frames, closing")
				return
			}
			continue
		}
		decodeErrors = 0

		call, err := convert.DecodeRequest(frame)
		if err != nil {
			_ = p.writeFrame(convert.ErrorFrame(frame.RequestID, string(bridge.CodeInvalidArgument), err.Error()))
			continue
		}
		select {
		case calls <- call:
		case <-ctx.Done():
			return
		}
	}
}

func isDecodeError(err error) bool {
	var syn *json.SyntaxError
	var typ *json.UnmarshalTypeError
	return errors.As(err, &syn) || errors.As(err, &typ)
}
