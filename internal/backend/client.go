// Package backend is the client facade over the auth and document services,
// bound to one browser session.
package backend

import (
	"context"
	"errors"

	"github.com/and161185/pto-keeper/internal/errs"
	"github.com/and161185/pto-keeper/internal/model"
	"github.com/and161185/pto-keeper/internal/service"
)

// Client performs auth and pto collection calls on behalf of session sid.
// Collection calls require the session to be signed in.
type Client struct {
	sid  string
	auth service.AuthService
	pto  service.PtoService
}

// New binds a client to sid.
func New(sid string, auth service.AuthService, pto service.PtoService) *Client {
	return &Client{sid: sid, auth: auth, pto: pto}
}

// SessionID returns the bound session id.
func (c *Client) SessionID() string { return c.sid }

// SignOut signs the session out; observers see a logged-out state.
func (c *Client) SignOut(ctx context.Context) error {
	return c.auth.SignOut(ctx, c.sid)
}

// AuthStates subscribes to auth-state changes of the session.
func (c *Client) AuthStates(ctx context.Context) (<-chan model.AuthState, error) {
	return c.auth.AuthStates(ctx, c.sid)
}

// Records fetches the whole collection.
func (c *Client) Records(ctx context.Context) (model.PtoCollection, error) {
	if err := c.requireSignedIn(ctx); err != nil {
		return nil, err
	}
	return c.pto.List(ctx)
}

// CreateRecordIfAbsent writes the seed record of uid unless one exists.
func (c *Client) CreateRecordIfAbsent(ctx context.Context, uid string, seedYear int) (bool, error) {
	if err := c.requireSignedIn(ctx); err != nil {
		return false, err
	}
	return c.pto.CreateIfAbsent(ctx, uid, seedYear)
}

// UpdateYears replaces the years field of uid.
func (c *Client) UpdateYears(ctx context.Context, uid string, years model.Years) error {
	if err := c.requireSignedIn(ctx); err != nil {
		return err
	}
	return c.pto.UpdateYears(ctx, uid, years)
}

// UpdateName replaces the name field of uid; a field without value writes null.
func (c *Client) UpdateName(ctx context.Context, uid string, name model.NameField) error {
	if err := c.requireSignedIn(ctx); err != nil {
		return err
	}
	if name.Value == nil {
		return c.pto.RemoveName(ctx, uid)
	}
	return c.pto.SetName(ctx, uid, *name.Value)
}

func (c *Client) requireSignedIn(ctx context.Context) error {
	_, err := c.auth.CurrentSession(ctx, c.sid)
	if errors.Is(err, errs.ErrNotFound) {
		return errs.ErrUnauthorized
	}
	return err
}
