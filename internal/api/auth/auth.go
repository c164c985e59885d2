// Package auth guards the admin API with a bearer token compared against a
// bcrypt hash.
package auth

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"golang.org/x/crypto/bcrypt"

	"github.com/hazardwatch/hazardwatch/internal/errors"
	"github.com/hazardwatch/hazardwatch/internal/hazard"
	"github.com/hazardwatch/hazardwatch/internal/logging"
)

// bearerTokenParts is the expected number of parts when splitting Authorization header.
const bearerTokenParts = 2

// HeaderActorID names the acting principal of an authenticated request.
const HeaderActorID = "X-Actor-ID"

// DefaultActorID is used when an authenticated request names no actor.
const DefaultActorID = "admin"

// Context keys for values stored in echo.Context.
const (
	CtxKeyActor = "auth:actor"
)

// Failure reasons reported to the failure hook.
const (
	ReasonMissingToken = "missing_token"
	ReasonMalformed    = "malformed_header"
	ReasonInvalidToken = "invalid_token"
)

// Sentinel errors for authentication failures.
var (
	ErrInvalidToken = errors.NewStd("invalid token")
	ErrInvalidHash  = errors.NewStd("invalid bcrypt hash")
)

func getLogger() *slog.Logger {
	return logging.ForService("auth")
}

// TokenAuth validates bearer tokens.
type TokenAuth struct {
	hash []byte
	// OnFailure, when set, is called with the reason of every rejected request
	OnFailure func(reason string)
}

// NewTokenAuth creates a TokenAuth for a bcrypt hash.
func NewTokenAuth(hash string) (*TokenAuth, error) {
	if _, err := bcrypt.Cost([]byte(hash)); err != nil {
		return nil, errors.New(ErrInvalidHash).
			Component("auth").
			Category(errors.CategoryConfiguration).
			Build()
	}
	return &TokenAuth{hash: []byte(hash)}, nil
}

// HashToken returns the bcrypt hash stored in webserver.admintokenhash.
func HashToken(token string) (string, error) {
	if token == "" {
		return "", errors.Newf("token must not be empty").
			Component("auth").
			Category(errors.CategoryValidation).
			Build()
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.DefaultCost)
	if err != nil {
		return "", errors.New(err).Component("auth").Category(errors.CategorySystem).Build()
	}
	return string(hash), nil
}

// ValidateToken checks token against the hash.
func (a *TokenAuth) ValidateToken(token string) error {
	if token == "" || bcrypt.CompareHashAndPassword(a.hash, []byte(token)) != nil {
		return ErrInvalidToken
	}
	return nil
}

// Authenticate is the echo middleware. Authenticated requests carry their
// actor under CtxKeyActor.
func (a *TokenAuth) Authenticate(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		authHeader := c.Request().Header.Get(echo.HeaderAuthorization)
		if authHeader == "" {
			return a.reject(c, ReasonMissingToken)
		}

		parts := strings.SplitN(authHeader, " ", bearerTokenParts)
		if len(parts) != bearerTokenParts || !strings.EqualFold(parts[0], "Bearer") {
			return a.reject(c, ReasonMalformed)
		}
		if err := a.ValidateToken(strings.TrimSpace(parts[1])); err != nil {
			return a.reject(c, ReasonInvalidToken)
		}

		actor := strings.TrimSpace(c.Request().Header.Get(HeaderActorID))
		if actor == "" {
			actor = DefaultActorID
		}
		c.Set(CtxKeyActor, hazard.Actor{ID: actor})
		return next(c)
	}
}

func (a *TokenAuth) reject(c echo.Context, reason string) error {
	getLogger().Warn("Rejected admin request",
		"reason", reason,
		"path", c.Request().URL.Path,
		"ip", c.RealIP())
	if a.OnFailure != nil {
		a.OnFailure(reason)
	}
	c.Response().Header().Set(echo.HeaderWWWAuthenticate, "Bearer")
	return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
}

// ActorFrom returns the actor stored by Authenticate, or the system actor.
func ActorFrom(c echo.Context) hazard.Actor {
	if actor, ok := c.Get(CtxKeyActor).(hazard.Actor); ok {
		return actor
	}
	return hazard.SystemActor
}
