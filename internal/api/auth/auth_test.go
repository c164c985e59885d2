package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/hazardwatch/hazardwatch/internal/errors"
)

func newAuth(t *testing.T, token string) *TokenAuth {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.MinCost)
	require.NoError(t, err)
	a, err := NewTokenAuth(string(hash))
	require.NoError(t, err)
	return a
}

func TestNewTokenAuth_RejectsInvalidHash(t *testing.T) {
	_, err := NewTokenAuth("plaintext")
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))
}

func TestHashToken(t *testing.T) {
	hash, err := HashToken("s3cret")
	require.NoError(t, err)

	a, err := NewTokenAuth(hash)
	require.NoError(t, err)
	assert.NoError(t, a.ValidateToken("s3cret"))
	assert.ErrorIs(t, a.ValidateToken("wrong"), ErrInvalidToken)

	_, err = HashToken("")
	assert.Error(t, err)
}

func TestAuthenticate(t *testing.T) {
	a := newAuth(t, "s3cret")
	var reasons []string
	a.OnFailure = func(reason string) { reasons = append(reasons, reason) }

	tests := []struct {
		name      string
		header    string
		actor     string
		wantCode  int
		wantActor string
		reason    string
	}{
		{"missing header", "", "", http.StatusUnauthorized, "", ReasonMissingToken},
		{"basic scheme", "Basic czNjcmV0", "", http.StatusUnauthorized, "", ReasonMalformed},
		{"wrong token", "Bearer nope", "", http.StatusUnauthorized, "", ReasonInvalidToken},
		{"default actor", "Bearer s3cret", "", http.StatusOK, DefaultActorID, ""},
		{"named actor", "bearer s3cret", "42", http.StatusOK, "42", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reasons = nil
			e := echo.New()
			req := httptest.NewRequest(http.MethodPost, "/api/v1/sources/bmkg-felt/trigger", http.NoBody)
			if tt.header != "" {
				req.Header.Set(echo.HeaderAuthorization, tt.header)
			}
			if tt.actor != "" {
				req.Header.Set(HeaderActorID, tt.actor)
			}
			rec := httptest.NewRecorder()
			c := e.NewContext(req, rec)

			var gotActor string
			handler := a.Authenticate(func(c echo.Context) error {
				gotActor = ActorFrom(c).ID
				return c.NoContent(http.StatusOK)
			})
			require.NoError(t, handler(c))

			assert.Equal(t, tt.wantCode, rec.Code)
			assert.Equal(t, tt.wantActor, gotActor)
			if tt.reason != "" {
				assert.Equal(t, []string{tt.reason}, reasons)
				assert.Equal(t, "Bearer", rec.Header().Get(echo.HeaderWWWAuthenticate))
			} else {
				assert.Empty(t, reasons)
			}
		})
	}
}
