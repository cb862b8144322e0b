package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestGenerateAndValidateToken(t *testing.T) {
	token, err := GenerateToken(12, "driver")
	require.NoError(t, err)

	claims, err := ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, uint(12), claims.UserID)
	assert.Equal(t, "driver", claims.Role)
	assert.True(t, claims.ExpiresAt.After(time.Now()))
}

func TestValidateToken_Rejects(t *testing.T) {
	t.Run("garbage", func(t *testing.T) {
		_, err := ValidateToken("not-a-token")
		assert.Error(t, err)
	})

	t.Run("wrong secret", func(t *testing.T) {
		forged := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{UserID: 1, Role: "admin"})
		s, err := forged.SignedString([]byte("someone-else"))
		require.NoError(t, err)
		_, err = ValidateToken(s)
		assert.Error(t, err)
	})

	t.Run("expired", func(t *testing.T) {
		expired := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
			UserID: 1,
			Role:   "admin",
			RegisteredClaims: jwt.RegisteredClaims{
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
			},
		})
		s, err := expired.SignedString(secret)
		require.NoError(t, err)
		_, err = ValidateToken(s)
		assert.Error(t, err)
	})

	t.Run("missing identity", func(t *testing.T) {
		s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{}).SignedString(secret)
		require.NoError(t, err)
		_, err = ValidateToken(s)
		assert.Error(t, err)
	})
}

func newRoleRouter(roles ...string) *gin.Engine {
	r := gin.New()
	r.GET("/private", RequireRoles(roles...), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"id": CurrentUserID(c), "role": CurrentRole(c)})
	})
	return r
}

func request(t *testing.T, r http.Handler, header string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/private", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRequireRoles(t *testing.T) {
	r := newRoleRouter("admin", "driver")

	driverToken, err := GenerateToken(3, "driver")
	require.NoError(t, err)
	passengerToken, err := GenerateToken(4, "passenger")
	require.NoError(t, err)

	w := request(t, r, "Bearer "+driverToken)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"id":3,"role":"driver"}`, w.Body.String())

	assert.Equal(t, http.StatusForbidden, request(t, r, "Bearer "+passengerToken).Code)
	assert.Equal(t, http.StatusUnauthorized, request(t, r, "").Code)
	assert.Equal(t, http.StatusUnauthorized, request(t, r, "Token "+driverToken).Code)
	assert.Equal(t, http.StatusUnauthorized, request(t, r, "Bearer nope").Code)
}

func TestEnableCORS(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	t.Run("preflight", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/api/buses", nil)
		req.Header.Set("Origin", "http://localhost:3000")
		w := httptest.NewRecorder()
		EnableCORS(next, nil).ServeHTTP(w, req)
		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("allow list", func(t *testing.T) {
		h := EnableCORS(next, []string{"https://admin.ridra.app"})

		req := httptest.NewRequest(http.MethodGet, "/api/buses", nil)
		req.Header.Set("Origin", "https://evil.example")
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		assert.Equal(t, http.StatusTeapot, w.Code)
		assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))

		req.Header.Set("Origin", "https://admin.ridra.app")
		w = httptest.NewRecorder()
		h.ServeHTTP(w, req)
		assert.Equal(t, "https://admin.ridra.app", w.Header().Get("Access-Control-Allow-Origin"))
	})
}

func TestRequireRolesStopsChainForWrongRole(t *testing.T) {
	calls := 0
	r := gin.New()
	r.POST("/admin-only", RequireRoles("admin"), func(c *gin.Context) {
		calls++
		c.JSON(http.StatusCreated, gin.H{"created": true})
	})

	passengerToken, err := GenerateToken(4, "passenger")
	require.NoError(t, err)
	adminToken, err := GenerateToken(1, "admin")
	require.NoError(t, err)

	send := func(token string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/admin-only", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	w := send(passengerToken)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.JSONEq(t, `{"error":"Insufficient permissions"}`, w.Body.String())
	assert.Zero(t, calls)

	w = send(adminToken)
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, 1, calls)
}

func TestRequireAuthRunsHandlerOnce(t *testing.T) {
	calls := 0
	r := gin.New()
	r.GET("/private", RequireAuth(), func(c *gin.Context) {
		calls++
		c.Status(http.StatusNoContent)
	})

	token, err := GenerateToken(9, "passenger")
	require.NoError(t, err)
	w := request(t, r, "Bearer "+token)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, 1, calls)

	w = request(t, r, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, 1, calls)
}
