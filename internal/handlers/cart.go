package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/dverbin/ecom_api/internal/logging"
	"github.com/dverbin/ecom_api/internal/models"
	"github.com/dverbin/ecom_api/internal/mykafka"
	"github.com/dverbin/ecom_api/internal/token"
)

type CartHandler struct {
	DB       *gorm.DB
	Producer *mykafka.Producer
}

func (h *CartHandler) publish(c echo.Context, userID uint, event map[string]any) {
	publish(c, h.Producer, "cart_events", fmt.Sprint(userID), event)
}

// AddToCart accumulates quantity on an existing (user, product) line or
// creates a new one. Stock is not checked here, only at order creation.
func (h *CartHandler) AddToCart(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "cart.add")
	userID := token.UserID(c)

	var req struct {
		ProductID uint `json:"product_id"`
		Quantity  uint `json:"quantity"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if req.Quantity < 1 {
		return echo.NewHTTPError(http.StatusBadRequest, "quantity must be at least 1")
	}

	var product models.Product
	if err := h.DB.WithContext(ctx).First(&product, req.ProductID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "product does not exist")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot read product")
	}

	var item models.CartItem
	tx := h.DB.WithContext(ctx).
		Where("user_id = ? AND product_id = ?", userID, req.ProductID).
		First(&item)
	if tx.Error == nil {
		item.Quantity += req.Quantity
		if err := h.DB.WithContext(ctx).Save(&item).Error; err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, "cannot update cart")
		}
	} else if errors.Is(tx.Error, gorm.ErrRecordNotFound) {
		item = models.CartItem{UserID: userID, ProductID: req.ProductID, Quantity: req.Quantity}
		if err := h.DB.WithContext(ctx).Create(&item).Error; err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, "cannot update cart")
		}
	} else {
		l.Error("cart_add_error", "error", tx.Error)
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot read cart")
	}

	h.publish(c, userID, map[string]any{
		"type":      "cart_item_added",
		"userID":    userID,
		"productID": req.ProductID,
		"quantity":  item.Quantity,
	})
	return c.JSON(http.StatusOK, item)
}

// GetCart joins cart lines with current product data and computes live
// subtotals. Lines whose product was deleted are skipped.
func (h *CartHandler) GetCart(c echo.Context) error {
	ctx := c.Request().Context()
	userID := token.UserID(c)

	var items []models.CartItem
	if err := h.DB.WithContext(ctx).Where("user_id = ?", userID).Find(&items).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot read cart")
	}

	type cartLine struct {
		ProductID uint    `json:"product_id"`
		Name      string  `json:"name"`
		Price     float64 `json:"price"`
		Quantity  uint    `json:"quantity"`
		Subtotal  float64 `json:"subtotal"`
	}

	lines := make([]cartLine, 0, len(items))
	var total float64
	for _, it := range items {
		var p models.Product
		if err := h.DB.WithContext(ctx).First(&p, it.ProductID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				continue
			}
			return echo.NewHTTPError(http.StatusInternalServerError, "cannot read product")
		}
		subtotal := p.Price * float64(it.Quantity)
		total += subtotal
		lines = append(lines, cartLine{
			ProductID: it.ProductID,
			Name:      p.Name,
			Price:     p.Price,
			Quantity:  it.Quantity,
			Subtotal:  subtotal,
		})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"items":       lines,
		"total_price": total,
	})
}

// UpdateQuantity overwrites the line's quantity; zero or less removes
// the line entirely.
func (h *CartHandler) UpdateQuantity(c echo.Context) error {
	ctx := c.Request().Context()
	userID := token.UserID(c)

	productID, err := parseUintParam(c, "productID")
	if err != nil {
		return err
	}
	quantity := parseIntDefault(c.QueryParam("quantity"), -1)
	if quantity < 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "quantity is required")
	}

	var item models.CartItem
	if err := h.DB.WithContext(ctx).
		Where("user_id = ? AND product_id = ?", userID, productID).
		First(&item).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "item not found in cart")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot read cart")
	}

	if quantity == 0 {
		if err := h.DB.WithContext(ctx).Delete(&item).Error; err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, "cannot update cart")
		}
		h.publish(c, userID, map[string]any{
			"type":      "cart_item_removed",
			"userID":    userID,
			"productID": productID,
		})
		return c.JSON(http.StatusOK, echo.Map{"message": "item removed from cart"})
	}

	item.Quantity = uint(quantity)
	if err := h.DB.WithContext(ctx).Save(&item).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot update cart")
	}

	h.publish(c, userID, map[string]any{
		"type":      "cart_quantity_updated",
		"userID":    userID,
		"productID": productID,
		"quantity":  item.Quantity,
	})
	return c.JSON(http.StatusOK, item)
}

func (h *CartHandler) RemoveFromCart(c echo.Context) error {
	ctx := c.Request().Context()
	userID := token.UserID(c)

	productID, err := parseUintParam(c, "productID")
	if err != nil {
		return err
	}

	res := h.DB.WithContext(ctx).
		Where("user_id = ? AND product_id = ?", userID, productID).
		Delete(&models.CartItem{})
	if res.Error != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot update cart")
	}
	if res.RowsAffected == 0 {
		return echo.NewHTTPError(http.StatusNotFound, "item not found in cart")
	}

	h.publish(c, userID, map[string]any{
		"type":      "cart_item_removed",
		"userID":    userID,
		"productID": productID,
	})
	return c.JSON(http.StatusOK, echo.Map{"message": "item removed from cart"})
}
