package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"cinema-ticketing/pkg/utils"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const testSecret = "test-signing-secret"

func signToken(t *testing.T, method jwt.SigningMethod, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(method, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func validClaims(sub string) jwt.MapClaims {
	return jwt.MapClaims{
		"sub": sub,
		"iss": "cinema-auth",
		"exp": time.Now().Add(time.Hour).Unix(),
	}
}

func TestJWTAuth(t *testing.T) {
	config := utils.JWTConfig{Secret: testSecret, Issuer: "cinema-auth"}
	userID := uuid.New()

	var (
		gotUser uuid.UUID
		gotRole string
	)
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser, _ = utils.GetUserIDFromContext(r.Context())
		gotRole, _ = utils.GetRoleFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})
	handler := JWTAuth(config, zaptest.NewLogger(t))(next)

	expired := validClaims(userID.String())
	expired["exp"] = time.Now().Add(-time.Minute).Unix()

	wrongIssuer := validClaims(userID.String())
	wrongIssuer["iss"] = "someone-else"

	admin := validClaims(userID.String())
	admin["role"] = "admin"

	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantRole   string
	}{
		{name: "missing header", header: "", wantStatus: http.StatusUnauthorized},
		{name: "not bearer", header: "Basic abc", wantStatus: http.StatusUnauthorized},
		{name: "garbage token", header: "Bearer not.a.jwt", wantStatus: http.StatusUnauthorized},
		{
			name:       "wrong secret",
			header:     "Bearer " + signToken(t, jwt.SigningMethodHS256, "other-secret", validClaims(userID.String())),
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "expired",
			header:     "Bearer " + signToken(t, jwt.SigningMethodHS256, testSecret, expired),
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "wrong issuer",
			header:     "Bearer " + signToken(t, jwt.SigningMethodHS256, testSecret, wrongIssuer),
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "subject is not a uuid",
			header:     "Bearer " + signToken(t, jwt.SigningMethodHS256, testSecret, validClaims("user-1")),
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "customer by default",
			header:     "Bearer " + signToken(t, jwt.SigningMethodHS256, testSecret, validClaims(userID.String())),
			wantStatus: http.StatusNoContent,
			wantRole:   "customer",
		},
		{
			name:       "admin role",
			header:     "Bearer " + signToken(t, jwt.SigningMethodHS512, testSecret, admin),
			wantStatus: http.StatusNoContent,
			wantRole:   utils.RoleAdmin,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotUser, gotRole = uuid.Nil, ""

			req := httptest.NewRequest(http.MethodGet, "/api/user/tickets", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantStatus == http.StatusNoContent {
				assert.Equal(t, userID, gotUser)
				assert.Equal(t, tt.wantRole, gotRole)
			}
		})
	}
}

func TestAdmin(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	handler := Admin(zaptest.NewLogger(t))(next)

	serve := func(req *http.Request) int {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	anonymous := httptest.NewRequest(http.MethodGet, "/api/admin/showtimes", nil)
	assert.Equal(t, http.StatusUnauthorized, serve(anonymous))

	customer := httptest.NewRequest(http.MethodGet, "/api/admin/showtimes", nil)
	customer = customer.WithContext(utils.SetUserContext(customer.Context(), uuid.New(), "customer"))
	assert.Equal(t, http.StatusForbidden, serve(customer))

	admin := httptest.NewRequest(http.MethodGet, "/api/admin/showtimes", nil)
	admin = admin.WithContext(utils.SetUserContext(admin.Context(), uuid.New(), utils.RoleAdmin))
	assert.Equal(t, http.StatusOK, serve(admin))
}
