package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dverbin/ecom_api/internal/models"
)

func TestAddToCartCreatesLine(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser("user@example.com", false)
	p := env.createProduct("widget", 9.99, 10, true)

	load := map[string]uint{"product_id": p.ID, "quantity": 2}
	rec, c := env.doJSONRequest(http.MethodPost, "/api/v1/cart", load)
	asUser(c, user)
	require.NoError(t, env.Cart.AddToCart(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp models.CartItem
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, user.ID, resp.UserID)
	require.Equal(t, p.ID, resp.ProductID)
	require.EqualValues(t, 2, resp.Quantity)
}

func TestAddToCartAccumulatesQuantity(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser("user@example.com", false)
	p := env.createProduct("widget", 9.99, 10, true)

	for i := 0; i < 2; i++ {
		_, c := env.doJSONRequest(http.MethodPost, "/api/v1/cart", map[string]uint{"product_id": p.ID, "quantity": 2})
		asUser(c, user)
		require.NoError(t, env.Cart.AddToCart(c))
	}

	var item models.CartItem
	require.NoError(t, env.DB.Where("user_id = ? AND product_id = ?", user.ID, p.ID).First(&item).Error)
	require.EqualValues(t, 4, item.Quantity)
}

func TestAddToCartUnknownProduct(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser("user@example.com", false)

	_, c := env.doJSONRequest(http.MethodPost, "/api/v1/cart", map[string]uint{"product_id": 42, "quantity": 1})
	asUser(c, user)
	err := env.Cart.AddToCart(c)
	require.Equal(t, http.StatusNotFound, httpCode(t, err))
}

func TestAddToCartZeroQuantity(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser("user@example.com", false)
	p := env.createProduct("widget", 9.99, 10, true)

	_, c := env.doJSONRequest(http.MethodPost, "/api/v1/cart", map[string]uint{"product_id": p.ID, "quantity": 0})
	asUser(c, user)
	err := env.Cart.AddToCart(c)
	require.Equal(t, http.StatusBadRequest, httpCode(t, err))
}

func TestGetCartComputesTotalsAndSkipsDanglingLines(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser("user@example.com", false)
	p1 := env.createProduct("widget", 10, 10, true)
	p2 := env.createProduct("gadget", 5, 10, true)

	require.NoError(t, env.DB.Create(&models.CartItem{UserID: user.ID, ProductID: p1.ID, Quantity: 2}).Error)
	require.NoError(t, env.DB.Create(&models.CartItem{UserID: user.ID, ProductID: p2.ID, Quantity: 3}).Error)
	// Line referencing a product that was deleted afterwards.
	require.NoError(t, env.DB.Create(&models.CartItem{UserID: user.ID, ProductID: 777, Quantity: 1}).Error)

	rec, c := env.doJSONRequest(http.MethodGet, "/api/v1/cart", nil)
	asUser(c, user)
	require.NoError(t, env.Cart.GetCart(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Items []struct {
			ProductID uint    `json:"product_id"`
			Subtotal  float64 `json:"subtotal"`
		} `json:"items"`
		TotalPrice float64 `json:"total_price"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Items, 2)
	require.Equal(t, float64(35), resp.TotalPrice)
}

func TestUpdateQuantityOverwrites(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser("user@example.com", false)
	p := env.createProduct("widget", 10, 10, true)
	require.NoError(t, env.DB.Create(&models.CartItem{UserID: user.ID, ProductID: p.ID, Quantity: 2}).Error)

	rec, c := env.doJSONRequest(http.MethodPut, fmt.Sprintf("/api/v1/cart/%d?quantity=7", p.ID), nil)
	asUser(c, user)
	c.SetParamNames("productID")
	c.SetParamValues(fmt.Sprint(p.ID))
	require.NoError(t, env.Cart.UpdateQuantity(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var item models.CartItem
	require.NoError(t, env.DB.Where("user_id = ? AND product_id = ?", user.ID, p.ID).First(&item).Error)
	require.EqualValues(t, 7, item.Quantity)
}

func TestUpdateQuantityToZeroDeletesLine(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser("user@example.com", false)
	p := env.createProduct("widget", 10, 10, true)
	require.NoError(t, env.DB.Create(&models.CartItem{UserID: user.ID, ProductID: p.ID, Quantity: 2}).Error)

	_, c := env.doJSONRequest(http.MethodPut, fmt.Sprintf("/api/v1/cart/%d?quantity=0", p.ID), nil)
	asUser(c, user)
	c.SetParamNames("productID")
	c.SetParamValues(fmt.Sprint(p.ID))
	require.NoError(t, env.Cart.UpdateQuantity(c))

	var n int64
	require.NoError(t, env.DB.Model(&models.CartItem{}).Where("user_id = ?", user.ID).Count(&n).Error)
	require.EqualValues(t, 0, n)
}

func TestUpdateQuantityMissingLine(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser("user@example.com", false)

	_, c := env.doJSONRequest(http.MethodPut, "/api/v1/cart/5?quantity=3", nil)
	asUser(c, user)
	c.SetParamNames("productID")
	c.SetParamValues("5")
	err := env.Cart.UpdateQuantity(c)
	require.Equal(t, http.StatusNotFound, httpCode(t, err))
}

func TestRemoveFromCart(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser("user@example.com", false)
	p := env.createProduct("widget", 10, 10, true)
	require.NoError(t, env.DB.Create(&models.CartItem{UserID: user.ID, ProductID: p.ID, Quantity: 2}).Error)

	rec, c := env.doJSONRequest(http.MethodDelete, fmt.Sprintf("/api/v1/cart/%d", p.ID), nil)
	asUser(c, user)
	c.SetParamNames("productID")
	c.SetParamValues(fmt.Sprint(p.ID))
	require.NoError(t, env.Cart.RemoveFromCart(c))
	require.Equal(t, http.StatusOK, rec.Code)

	_, c = env.doJSONRequest(http.MethodDelete, fmt.Sprintf("/api/v1/cart/%d", p.ID), nil)
	asUser(c, user)
	c.SetParamNames("productID")
	c.SetParamValues(fmt.Sprint(p.ID))
	err := env.Cart.RemoveFromCart(c)
	require.Equal(t, http.StatusNotFound, httpCode(t, err))
}
