// Package bridge relays UI requests to backend calls and backend results and
// auth-state changes back to the UI.
//
// Every request maps to exactly one backend call. Nothing is buffered, retried,
// batched or reordered: overlapping requests run concurrently and two writes to
// the same uid resolve as whichever lands last in storage. There are no timeouts;
// a call ends when the backend answers or the Bridge context is cancelled.
package bridge

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/and161185/pto-keeper/internal/model"
)

// Backend is the set of auth and collection calls the Bridge performs.
type Backend interface {
	SignOut(ctx context.Context) error
	AuthStates(ctx context.Context) (<-chan model.AuthState, error)
	Records(ctx context.Context) (model.PtoCollection, error)
	CreateRecordIfAbsent(ctx context.Context, uid string, seedYear int) (bool, error)
	UpdateYears(ctx context.Context, uid string, years model.Years) error
	UpdateName(ctx context.Context, uid string, name model.NameField) error
}

// Emitter delivers events to the UI. It must be safe for concurrent use.
type Emitter interface {
	Emit(ev Event) error
}

// EmitterFunc adapts a function to Emitter.
type EmitterFunc func(Event) error

// Emit calls f(ev).
func (f EmitterFunc) Emit(ev Event) error { return f(ev) }

// Options configures a Bridge.
type Options struct {
	// CurrentYear is the seed year for createSelf. Fixed for the process lifetime.
	CurrentYear int
	// RefreshOnWrite re-fetches the collection and emits ptoData after every
	// successful updatePto, setName and removeName. createSelf never refreshes.
	RefreshOnWrite bool
}

// Bridge serves one UI connection.
type Bridge struct {
	be   Backend
	out  Emitter
	log  *zap.Logger
	opts Options

	inflight sync.WaitGroup
}

// New constructs a Bridge.
func New(be Backend, out Emitter, log *zap.Logger, opts Options) *Bridge {
	return &Bridge{be: be, out: out, log: log, opts: opts}
}

// Run observes auth state and dispatches calls, each in its own goroutine, until
// ctx is done. A closed calls channel stops dispatching; auth observation keeps
// running until ctx is cancelled. Run waits for in-flight calls before returning.
func (b *Bridge) Run(ctx context.Context, calls <-chan Call) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return b.ObserveAuth(gctx) })
	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return nil
			case c, ok := <-calls:
				if !ok {
					return nil
				}
				b.inflight.Add(1)
				go func() {
					defer b.inflight.Done()
					b.Handle(gctx, c)
				}()
			}
		}
	})
	err := g.Wait()
	b.inflight.Wait()
	return err
}

// ObserveAuth subscribes once and emits loggedIn or loggedOut for every
// notification until ctx is done. The first notification is the current state.
func (b *Bridge) ObserveAuth(ctx context.Context) error {
	states, err := b.be.AuthStates(ctx)
	if err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case st, ok := <-states:
			if !ok {
				return nil
			}
			if st.SignedIn() {
				b.emit(LoggedIn{User: model.AuthUserFromSession(*st.Session)})
			} else {
				b.emit(LoggedOut{})
			}
		}
	}
}

// Handle performs the backend call for one request and emits its outcome.
func (b *Bridge) Handle(ctx context.Context, c Call) {
	if c.Request == nil {
		return
	}
	b.log.Debug("bridge: request", zap.String("op", c.Request.Op()), zap.String("request_id", c.RequestID))

	switch r := c.Request.(type) {
	case SignOut:
		if err := b.be.SignOut(ctx); err != nil {
			b.fail(ctx, c, "", err)
		}
	case CreateSelf:
		if _, err := b.be.CreateRecordIfAbsent(ctx, r.UID, b.opts.CurrentYear); err != nil {
			b.fail(ctx, c, r.UID, err)
		}
	case RequestPto:
		b.requestPto(ctx, c)
	case UpdatePto:
		b.write(ctx, c, r.UID, func() error { return b.be.UpdateYears(ctx, r.UID, r.Years) })
	case SetName:
		b.write(ctx, c, r.UID, func() error { return b.be.UpdateName(ctx, r.UID, model.NameOf(r.Name)) })
	case RemoveName:
		b.write(ctx, c, r.UID, func() error { return b.be.UpdateName(ctx, r.UID, model.NullName()) })
	default:
		b.log.Warn("bridge: unknown request", zap.String("op", c.Request.Op()))
	}
}

func (b *Bridge) requestPto(ctx context.Context, c Call) {
	recs, err := b.be.Records(ctx)
	if err != nil {
		b.fail(ctx, c, "", err)
		return
	}
	b.emit(PtoData{Records: recs})
}

func (b *Bridge) write(ctx context.Context, c Call, uid string, call func() error) {
	if err := call(); err != nil {
		b.fail(ctx, c, uid, err)
		return
	}
	if b.opts.RefreshOnWrite {
		b.requestPto(ctx, c)
	}
}

// fail logs err once and emits ptoError. Failures caused by the Bridge being
// torn down are only logged at debug level.
func (b *Bridge) fail(ctx context.Context, c Call, uid string, err error) {
	op := c.Request.Op()
	if ctx.Err() != nil && errors.Is(err, context.Canceled) {
		b.log.Debug("bridge: call cancelled", zap.String("op", op))
		return
	}
	b.log.Error("bridge: backend call failed",
		zap.String("op", op),
		zap.String("uid", uid),
		zap.String("request_id", c.RequestID),
		zap.Error(err))
	ev := ErrorFor(op, err)
	ev.RequestID = c.RequestID
	b.emit(ev)
}

func (b *Bridge) emit(ev Event) {
	if err := b.out.Emit(ev); err != nil {
		b.log.Debug("bridge: emit failed", zap.String("event", ev.Name()), zap.Error(err))
	}
}
