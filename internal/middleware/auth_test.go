package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"ordertrack/internal/domain"
	"ordertrack/internal/modules/access"
	"ordertrack/internal/modules/auth"
	"ordertrack/internal/pkg/jwt"
	"ordertrack/internal/repository"
	"ordertrack/internal/testutil"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type authFixture struct {
	db     *gorm.DB
	router *gin.Engine
	tokens *jwt.Service
	users  *repository.UserRepository
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()
	db := testutil.NewDB(t)
	users := repository.NewUserRepository(db)
	tokens := jwt.New("test-secret-123", time.Hour)

	router := gin.New()
	router.Use(JWTAuth(auth.NewVerifier(tokens, users)))
	router.GET("/protected", func(c *gin.Context) {
		id := auth.MustIdentity(c)
		c.JSON(http.StatusOK, gin.H{"user_id": c.GetInt64("user_id"), "role": id.Role})
	})
	router.GET("/admin", RequireAnyRole(access.UserAdmins), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return &authFixture{db: db, router: router, tokens: tokens, users: users}
}

func (f *authFixture) do(path, header string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	f.router.ServeHTTP(w, req)
	return w
}

func (f *authFixture) bearer(t *testing.T, u *domain.User) string {
	t.Helper()
	token, err := f.tokens.GenerateToken(u.ID, string(u.Role))
	require.NoError(t, err)
	return "Bearer " + token
}

func TestJWTAuth_ValidToken(t *testing.T) {
	f := newAuthFixture(t)
	u := testutil.CreateUser(t, f.db, "ayse", domain.RoleStoreStaff)

	w := f.do("/protected", f.bearer(t, u))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"role":"magaza_personeli"`)
}

func TestJWTAuth_InvalidToken(t *testing.T) {
	f := newAuthFixture(t)

	w := f.do("/protected", "Bearer invalid-jwt-here")

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "INVALID_TOKEN")
}

func TestJWTAuth_NoToken(t *testing.T) {
	f := newAuthFixture(t)

	w := f.do("/protected", "")

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "MISSING_CREDENTIAL")
}

func TestJWTAuth_WrongFormat(t *testing.T) {
	f := newAuthFixture(t)

	w := f.do("/protected", "Basic dGVzdA==")

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "INVALID_AUTH_FORMAT")
}

func TestJWTAuth_DeactivatedUserRejected(t *testing.T) {
	f := newAuthFixture(t)
	u := testutil.CreateUser(t, f.db, "mehmet", domain.RoleFactoryWorker)
	header := f.bearer(t, u)

	require.Equal(t, http.StatusOK, f.do("/protected", header).Code)
	require.NoError(t, f.users.SetActive(context.Background(), u.ID, false))

	w := f.do("/protected", header)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "ACCOUNT_INACTIVE")
}

func TestRequireAnyRole(t *testing.T) {
	f := newAuthFixture(t)
	admin := testutil.CreateUser(t, f.db, "admin", domain.RoleAdmin)
	staff := testutil.CreateUser(t, f.db, "ayse", domain.RoleStoreStaff)

	assert.Equal(t, http.StatusOK, f.do("/admin", f.bearer(t, admin)).Code)

	w := f.do("/admin", f.bearer(t, staff))
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "FORBIDDEN")
}

func TestCORS_Preflight(t *testing.T) {
	router := gin.New()
	router.Use(CORS([]string{"https://app.example.com"}))
	router.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodOptions, "/x", nil)
	req.Header.Set("Origin", "https://app.example.com")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://app.example.com", w.Header().Get("Access-Control-Allow-Origin"))

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}
