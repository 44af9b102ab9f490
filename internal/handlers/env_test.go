package handlers

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/dverbin/ecom_api/internal/config"
	"github.com/dverbin/ecom_api/internal/hash"
	"github.com/dverbin/ecom_api/internal/models"
	"github.com/dverbin/ecom_api/internal/service/orders"
	"github.com/dverbin/ecom_api/internal/token"
)

type testEnv struct {
	T       *testing.T
	E       *echo.Echo
	DB      *gorm.DB
	Tokens  *token.Service
	Auth    *AuthHandler
	Product *ProductHandler
	Cart    *CartHandler
	Address *AddressHandler
	Order   *OrderHandler
	Admin   *AdminHandler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, config.Migrate(db))

	tokens := &token.Service{DB: db, JWTSecret: []byte("test-secret")}

	return &testEnv{
		T:       t,
		E:       echo.New(),
		DB:      db,
		Tokens:  tokens,
		Auth:    &AuthHandler{DB: db, Tokens: tokens},
		Product: &ProductHandler{DB: db, UploadDir: t.TempDir()},
		Cart:    &CartHandler{DB: db},
		Address: &AddressHandler{DB: db},
		Order:   &OrderHandler{Orders: &orders.Service{DB: db}},
		Admin:   &AdminHandler{DB: db},
	}
}

func (env *testEnv) doJSONRequest(method, path string, body interface{}) (*httptest.ResponseRecorder, echo.Context) {
	var buf bytes.Buffer
	if body != nil {
		require.NoError(env.T, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := env.E.NewContext(req, rec)
	return rec, c
}

// createUser inserts a user directly and stamps the auth context the way
// the middleware would.
func (env *testEnv) createUser(email string, admin bool) *models.User {
	env.T.Helper()
	hashed, err := hash.HashPassword("password")
	require.NoError(env.T, err)

	user := &models.User{Email: email, PasswordHash: hashed, IsActive: true, IsAdmin: admin}
	require.NoError(env.T, env.DB.Create(user).Error)
	return user
}

func asUser(c echo.Context, user *models.User) {
	c.Set("userID", user.ID)
	c.Set("isAdmin", user.IsAdmin)
	c.Set("user", user)
}

func httpCode(t *testing.T, err error) int {
	t.Helper()
	var he *echo.HTTPError
	require.ErrorAs(t, err, &he)
	return he.Code
}

func (env *testEnv) createProduct(name string, price float64, stock uint, active bool) *models.Product {
	env.T.Helper()
	p := &models.Product{Name: name, Description: name + " description", Price: price, Stock: stock, IsActive: active}
	require.NoError(env.T, env.DB.Create(p).Error)
	return p
}
