// Package oauth implements the federated identity sign-in flow (Google, PKCE).
package oauth

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"

	pkgcrypto "github.com/and161185/pto-keeper/internal/crypto"
	"github.com/and161185/pto-keeper/internal/errs"
	"github.com/and161185/pto-keeper/internal/model"
)

// Google endpoints. Overridable for tests.
const (
	GoogleAuthURL     = "https://accounts.google.com/o/oauth2/auth"
	GoogleTokenURL    = "https://oauth2.googleapis.com/token"
	GoogleUserInfoURL = "https://openidconnect.googleapis.com/v1/userinfo"
)

const stateAudience = "pto-oauth-state"

// GoogleConfig holds client credentials from the backend config file.
type GoogleConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string

	AuthURL     string
	TokenURL    string
	UserInfoURL string
}

// Provider runs the authorization-code flow for one identity provider.
// The state parameter is a short-lived JWT bound to the browser session id,
// so no server-side state is kept between Begin and Complete.
type Provider struct {
	id          string
	cfg         *oauth2.Config
	userInfoURL string
	stateKey    []byte
	stateTTL    time.Duration
	httpClient  *http.Client
	now         func() time.Time
}

// NewGoogle builds the Google provider. stateKey signs the state parameter.
func NewGoogle(c GoogleConfig, stateKey []byte) *Provider {
	authURL, tokenURL, userInfo := GoogleAuthURL, GoogleTokenURL, GoogleUserInfoURL
	if c.AuthURL != "" {
		authURL = c.AuthURL
	}
	if c.TokenURL != "" {
		tokenURL = c.TokenURL
	}
	if c.UserInfoURL != "" {
		userInfo = c.UserInfoURL
	}
	return &Provider{
		id: model.ProviderGoogle,
		cfg: &oauth2.Config{
			ClientID:     c.ClientID,
			ClientSecret: c.ClientSecret,
			RedirectURL:  c.RedirectURL,
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint: oauth2.Endpoint{
				AuthURL:   authURL,
				TokenURL:  tokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		userInfoURL: userInfo,
		stateKey:    stateKey,
		stateTTL:    10 * time.Minute,
		httpClient:  &http.Client{Timeout: 15 * time.Second},
		now:         time.Now,
	}
}

// ID returns the provider id ("google.com").
func (p *Provider) ID() string { return p.id }

// Enabled reports whether client credentials are configured.
func (p *Provider) Enabled() bool { return p.cfg.ClientID != "" }

// Begin returns the consent URL for sid and the PKCE verifier the caller must
// keep until Complete.
func (p *Provider) Begin(sid string) (authURL, verifier string, err error) {
	if sid == "" {
		return "", "", fmt.Errorf("%w: empty session", errs.ErrInvalidArgument)
	}
	nonce, err := pkgcrypto.RandBytes(16)
	if err != nil {
		return "", "", err
	}
	now := p.now()
	claims := jwt.RegisteredClaims{
		Subject:   sid,
		Audience:  jwt.ClaimStrings{stateAudience},
		ID:        base64.RawURLEncoding.EncodeToString(nonce),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(p.stateTTL)),
	}
	state, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.stateKey)
	if err != nil {
		return "", "", err
	}
	verifier = oauth2.GenerateVerifier()
	authURL = p.cfg.AuthCodeURL(state, oauth2.AccessTypeOnline, oauth2.S256ChallengeOption(verifier))
	return authURL, verifier, nil
}

// Complete validates state against sid, exchanges code and loads the profile.
func (p *Provider) Complete(ctx context.Context, sid, state, code, verifier string) (model.FederatedIdentity, error) {
	if err := p.checkState(sid, state); err != nil {
		return model.FederatedIdentity{}, err
	}
	if code == "" || verifier == "" {
		return model.FederatedIdentity{}, fmt.Errorf("%w: missing code or verifier", errs.ErrInvalidArgument)
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)
	tok, err := p.cfg.Exchange(ctx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		return model.FederatedIdentity{}, fmt.Errorf("exchange code: %w", err)
	}
	return p.fetchProfile(ctx, tok)
}

func (p *Provider) checkState(sid, state string) error {
	var claims jwt.RegisteredClaims
	parsed, err := jwt.ParseWithClaims(state, &claims, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return p.stateKey, nil
	}, jwt.WithAudience(stateAudience), jwt.WithExpirationRequired(), jwt.WithTimeFunc(p.now))
	if err != nil || !parsed.Valid {
		return fmt.Errorf("%w: invalid oauth state", errs.ErrUnauthorized)
	}
	if sid == "" || claims.Subject != sid {
		return fmt.Errorf("%w: oauth state belongs to another session", errs.ErrUnauthorized)
	}
	return nil
}

func (p *Provider) fetchProfile(ctx context.Context, tok *oauth2.Token) (model.FederatedIdentity, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.userInfoURL, nil)
	if err != nil {
		return model.FederatedIdentity{}, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.cfg.Client(ctx, tok).Do(req)
	if err != nil {
		return model.FederatedIdentity{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return model.FederatedIdentity{}, fmt.Errorf("userinfo: status %d", resp.StatusCode)
	}

	var payload struct {
		Sub   string `json:"sub"`
		Name  string `json:"name"`
		Email string `json:"email"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return model.FederatedIdentity{}, err
	}
	if payload.Sub == "" {
		return model.FederatedIdentity{}, errors.New("userinfo: missing subject")
	}
	return model.FederatedIdentity{
		ProviderID:  p.id,
		Subject:     payload.Sub,
		Email:       payload.Email,
		DisplayName: payload.Name,
	}, nil
}
