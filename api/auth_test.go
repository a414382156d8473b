package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/worktrack/core"
)

func TestToken_RoundTrip(t *testing.T) {
	tok, err := IssueToken(testSecret, managerActor, time.Hour)
	require.NoError(t, err)

	actor, err := ParseToken(testSecret, tok)

	require.NoError(t, err)
	assert.Equal(t, managerActor, actor)
}

func TestToken_Rejected(t *testing.T) {
	sign := func(claims Claims) string {
		tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(testSecret)
		require.NoError(t, err)
		return tok
	}
	future := jwt.NewNumericDate(time.Now().Add(time.Hour))

	tests := []struct {
		name  string
		token string
	}{
		{"expired", func() string {
			tok, err := IssueToken(testSecret, workerSeven, -time.Minute)
			require.NoError(t, err)
			return tok
		}()},
		{"unknown role", sign(Claims{Role: "owner", RegisteredClaims: jwt.RegisteredClaims{Subject: "7", ExpiresAt: future}})},
		{"non-numeric sub", sign(Claims{Role: "worker", RegisteredClaims: jwt.RegisteredClaims{Subject: "jan", ExpiresAt: future}})},
		{"garbage", "not.a.token"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseToken(testSecret, tt.token)
			assert.Error(t, err)
		})
	}
}

func TestRequireAuth_StoresActor(t *testing.T) {
	var seen core.Actor
	h := RequireAuth(testSecret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = ActorFrom(r.Context())
	}))
	tok, err := IssueToken(testSecret, workerSeven, time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	h.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, workerSeven, seen)
}

func TestRequireAuth_MalformedHeader(t *testing.T) {
	h := RequireAuth(testSecret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	}))

	for _, header := range []string{"Basic abc", "Bearer ", "token"} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", header)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, header)
	}
}
