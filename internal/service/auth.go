// Package service contains application services for authentication and pto records.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/golang-jwt/jwt/v5"

	"github.com/and161185/pto-keeper/internal/authstate"
	pkgcrypto "github.com/and161185/pto-keeper/internal/crypto"
	"github.com/and161185/pto-keeper/internal/errs"
	"github.com/and161185/pto-keeper/internal/model"
	"github.com/and161185/pto-keeper/internal/repository"
	"github.com/and161185/pto-keeper/internal/session"
)

// AuthService signs browser sessions in and out and reports their auth state.
type AuthService interface {
	// SignUp creates a password account and signs sid in as it.
	SignUp(ctx context.Context, sid, email, password, displayName string) (*model.Session, error)
	// SignInWithPassword authenticates by email and password.
	SignInWithPassword(ctx context.Context, sid, email, password string) (*model.Session, error)
	// SignInWithIdentity signs in a federated identity, creating the account on first use.
	SignInWithIdentity(ctx context.Context, sid string, id model.FederatedIdentity) (*model.Session, error)
	// SignOut ends the session. Signing out a session that is not signed in still notifies observers.
	SignOut(ctx context.Context, sid string) error
	// CurrentSession returns the signed-in session or errs.ErrNotFound.
	CurrentSession(ctx context.Context, sid string) (*model.Session, error)
	// AuthStates streams auth-state changes of sid; the first value is the current state.
	// The channel is closed when ctx is done.
	AuthStates(ctx context.Context, sid string) (<-chan model.AuthState, error)
	// VerifyIDToken checks an id token and returns its uid.
	VerifyIDToken(token string) (string, error)
}

// AuthServiceImpl is the default AuthService.
type AuthServiceImpl struct {
	users      repository.UserRepository
	sessions   session.Store
	pub        authstate.Publisher
	hub        *authstate.Hub
	signKey    []byte
	idTokenTTL time.Duration
	sessionTTL time.Duration
	now        func() time.Time
}

// NewAuthService constructs AuthService with required dependencies. pub is where
// changes are announced (the hub itself, or a relay feeding it).
func NewAuthService(users repository.UserRepository, sessions session.Store, pub authstate.Publisher, hub *authstate.Hub,
	signKey []byte, idTokenTTL, sessionTTL time.Duration) *AuthServiceImpl {
	return &AuthServiceImpl{
		users:      users,
		sessions:   sessions,
		pub:        pub,
		hub:        hub,
		signKey:    signKey,
		idTokenTTL: idTokenTTL,
		sessionTTL: sessionTTL,
		now:        time.Now,
	}
}

// SignUp registers an email/password account.
func (s *AuthServiceImpl) SignUp(ctx context.Context, sid, email, password, displayName string) (*model.Session, error) {
	email = strings.TrimSpace(email)
	if sid == "" || email == "" || password == "" {
		return nil, fmt.Errorf("%w: empty session, email or password", errs.ErrInvalidArgument)
	}
	uid, err := uuid.NewV4()
	if err != nil {
		return nil, err
	}
	hash, err := pkgcrypto.HashPassword(password)
	if err != nil {
		return nil, err
	}
	u := &model.User{
		UID:             uid.String(),
		Email:           strings.ToLower(email),
		DisplayName:     displayName,
		ProviderID:      model.ProviderPassword,
		ProviderSubject: uid.String(),
		PwdHash:         hash,
	}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, err
	}
	return s.startSession(ctx, sid, *u)
}

// SignInWithPassword authenticates email/password; unknown email and wrong password are indistinguishable.
func (s *AuthServiceImpl) SignInWithPassword(ctx context.Context, sid, email, password string) (*model.Session, error) {
	if sid == "" {
		return nil, fmt.Errorf("%w: empty session", errs.ErrInvalidArgument)
	}
	u, err := s.users.GetByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return nil, errs.ErrUnauthorized
		}
		return nil, err
	}
	ok, err := pkgcrypto.VerifyPassword(password, u.PwdHash)
	if err != nil || !ok {
		return nil, errs.ErrUnauthorized
	}
	return s.startSession(ctx, sid, *u)
}

// SignInWithIdentity finds the account linked to the provider subject or creates one.
func (s *AuthServiceImpl) SignInWithIdentity(ctx context.Context, sid string, id model.FederatedIdentity) (*model.Session, error) {
	if sid == "" || id.ProviderID == "" || id.Subject == "" {
		return nil, fmt.Errorf("%w: empty session or identity", errs.ErrInvalidArgument)
	}
	u, err := s.users.GetByProvider(ctx, id.ProviderID, id.Subject)
	switch {
	case err == nil:
	case errors.Is(err, errs.ErrNotFound):
		uid, err := uuid.NewV4()
		if err != nil {
			return nil, err
		}
		u = &model.User{
			UID:             uid.String(),
			Email:           strings.ToLower(id.Email),
			DisplayName:     id.DisplayName,
			ProviderID:      id.ProviderID,
			ProviderSubject: id.Subject,
		}
		if err := s.users.Create(ctx, u); err != nil {
			return nil, err
		}
	default:
		return nil, err
	}
	return s.startSession(ctx, sid, *u)
}

// SignOut deletes the session and announces the logged-out state.
func (s *AuthServiceImpl) SignOut(ctx context.Context, sid string) error {
	if sid == "" {
		return fmt.Errorf("%w: empty session", errs.ErrInvalidArgument)
	}
	if err := s.sessions.Delete(ctx, sid); err != nil {
		return err
	}
	return s.pub.Publish(ctx, sid, model.AuthState{})
}

// CurrentSession loads sid from the session store.
func (s *AuthServiceImpl) CurrentSession(ctx context.Context, sid string) (*model.Session, error) {
	if sid == "" {
		return nil, errs.ErrNotFound
	}
	return s.sessions.Get(ctx, sid)
}

// AuthStates subscribes before reading the current state so no change is lost in between.
// A change published in that window is already part of the snapshot, so the first
// change is dropped when it matches the snapshot.
func (s *AuthServiceImpl) AuthStates(ctx context.Context, sid string) (<-chan model.AuthState, error) {
	if sid == "" {
		return nil, fmt.Errorf("%w: empty session", errs.ErrInvalidArgument)
	}
	changes, cancel := s.hub.Subscribe(sid)

	initial := model.AuthState{}
	sess, err := s.sessions.Get(ctx, sid)
	switch {
	case err == nil:
		initial.Session = sess
	case errors.Is(err, errs.ErrNotFound):
	default:
		cancel()
		return nil, err
	}

	out := make(chan model.AuthState)
	go func() {
		defer close(out)
		defer cancel()
		select {
		case out <- initial:
		case <-ctx.Done():
			return
		}
		first := true
		for {
			select {
			case <-ctx.Done():
				return
			case st, ok := <-changes:
				if !ok {
					return
				}
				if first {
					first = false
					if st.Same(initial) {
						continue
					}
				}
				select {
				case out <- st:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// VerifyIDToken verifies an HS256 id token issued by this service.
func (s *AuthServiceImpl) VerifyIDToken(token string) (string, error) {
	var claims jwt.RegisteredClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return s.signKey, nil
	}, jwt.WithLeeway(30*time.Second), jwt.WithTimeFunc(s.now))
	if err != nil || !parsed.Valid {
		return "", errs.ErrUnauthorized
	}
	if claims.Subject == "" {
		return "", errs.ErrUnauthorized
	}
	return claims.Subject, nil
}

func (s *AuthServiceImpl) startSession(ctx context.Context, sid string, u model.User) (*model.Session, error) {
	tok, exp, err := s.issueIDToken(u.UID)
	if err != nil {
		return nil, err
	}
	u.PwdHash = ""
	sess := &model.Session{ID: sid, User: u, IDToken: tok, ExpiresAt: exp}
	if err := s.sessions.Put(ctx, sess, s.sessionTTL); err != nil {
		return nil, err
	}
	if err := s.pub.Publish(ctx, sid, model.AuthState{Session: sess}); err != nil {
		return nil, fmt.Errorf("publish auth state: %w", err)
	}
	return sess, nil
}

// issueIDToken creates a signed HS256 JWT for the given uid.
func (s *AuthServiceImpl) issueIDToken(uid string) (string, time.Time, error) {
	now := s.now()
	exp := now.Add(s.idTokenTTL)
	claims := jwt.RegisteredClaims{
		Subject:   uid,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString(s.signKey)
	return signed, exp, err
}
