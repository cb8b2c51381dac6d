package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Claims are the token claims understood by JWTProvider.
type Claims struct {
	Name string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// TokenSource obtains a token interactively, for example by prompting.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// TokenFunc adapts a function to TokenSource.
type TokenFunc func(ctx context.Context) (string, error)

func (f TokenFunc) Token(ctx context.Context) (string, error) {
	return f(ctx)
}

// JWTProvider signs users in by verifying HS256 tokens from a TokenSource.
// The token subject becomes the identity UID.
type JWTProvider struct {
	signingKey []byte
	issuer     string
	source     TokenSource

	mu      sync.Mutex
	current *Identity
}

// NewJWTProvider creates a provider verifying tokens signed with signingKey.
// An empty issuer accepts any issuer.
func NewJWTProvider(signingKey, issuer string, source TokenSource) *JWTProvider {
	return &JWTProvider{
		signingKey: []byte(signingKey),
		issuer:     issuer,
		source:     source,
	}
}

func (p *JWTProvider) Current() *Identity {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == nil {
		return nil
	}
	id := *p.current
	return &id
}

// SignIn obtains a token and, if it verifies, makes its subject the current
// identity.
func (p *JWTProvider) SignIn(ctx context.Context) (Result, error) {
	token, err := p.source.Token(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrSignInFailed, err)
	}

	id, err := p.Verify(token)
	if err != nil {
		return Result{Status: http.StatusUnauthorized, Message: err.Error()}, nil
	}

	p.mu.Lock()
	p.current = id
	p.mu.Unlock()
	return Result{Status: StatusOK, Message: "signed in as " + id.UID}, nil
}

// SignOut clears the current identity.
func (p *JWTProvider) SignOut() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.current = nil
}

// Verify parses token and returns the identity it names.
func (p *JWTProvider) Verify(token string) (*Identity, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if p.issuer != "" {
		opts = append(opts, jwt.WithIssuer(p.issuer))
	}

	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return p.signingKey, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: token has expired", ErrInvalidToken)
		}
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return &Identity{UID: claims.Subject, DisplayName: claims.Name}, nil
}

// Issue signs a token for uid that expires after ttl.
func (p *JWTProvider) Issue(uid, name string, ttl time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Name: name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   uid,
			Issuer:    p.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
	})
	return token.SignedString(p.signingKey)
}
