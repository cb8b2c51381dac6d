// Package auth provides the identity used to author feed messages.
package auth

import (
	"context"
	"errors"
	"net/http"
)

var (
	// ErrInvalidToken is returned when a token fails verification.
	ErrInvalidToken = errors.New("livefeed: invalid token")

	// ErrSignInFailed is returned when no token could be obtained.
	ErrSignInFailed = errors.New("livefeed: sign-in failed")
)

// StatusOK is the Result status of a successful sign-in.
const StatusOK = http.StatusOK

// Identity is an authenticated user.
type Identity struct {
	UID         string
	DisplayName string
}

// Result reports the outcome of an interactive sign-in.
type Result struct {
	Status  int
	Message string
}

// OK reports whether the sign-in succeeded.
func (r Result) OK() bool {
	return r.Status == StatusOK
}

// Provider exposes the current identity and an interactive sign-in flow.
type Provider interface {
	// Current returns the signed-in identity, or nil.
	Current() *Identity

	// SignIn runs the interactive flow. A non-OK Result means the user was
	// not signed in; an error means the flow itself could not run.
	SignIn(ctx context.Context) (Result, error)
}

// Static is a Provider with a fixed identity. A nil identity makes every
// SignIn fail with status 401.
type Static struct {
	Identity *Identity
}

// Current returns the configured identity.
func (s Static) Current() *Identity {
	return s.Identity
}

// SignIn succeeds when an identity is configured and reports 401 otherwise.
// It never returns an error.
func (s Static) SignIn(_ context.Context) (Result, error) {
	if s.Identity == nil {
		return Result{Status: http.StatusUnauthorized, Message: "no identity configured"}, nil
	}
	return Result{Status: StatusOK}, nil
}
