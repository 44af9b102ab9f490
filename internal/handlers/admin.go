package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/dverbin/ecom_api/internal/models"
)

const lowStockThreshold = 5

type AdminHandler struct {
	DB *gorm.DB
}

func (h *AdminHandler) GetUsers(c echo.Context) error {
	var users []models.User
	if err := h.DB.WithContext(c.Request().Context()).Order("id ASC").Find(&users).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot list users")
	}
	return c.JSON(http.StatusOK, users)
}

func (h *AdminHandler) MakeAdmin(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := parseUintParam(c, "id")
	if err != nil {
		return err
	}

	var user models.User
	if err := h.DB.WithContext(ctx).First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "user not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot read user")
	}

	user.IsAdmin = true
	if err := h.DB.WithContext(ctx).Save(&user).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot update user")
	}

	return c.JSON(http.StatusOK, echo.Map{
		"message": fmt.Sprintf("user %s is now an admin", user.Email),
	})
}

func (h *AdminHandler) GetOrders(c echo.Context) error {
	var list []models.Order
	if err := h.DB.WithContext(c.Request().Context()).
		Preload("Items").
		Order("id ASC").
		Find(&list).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot list orders")
	}
	return c.JSON(http.StatusOK, list)
}

func (h *AdminHandler) GetRevenue(c echo.Context) error {
	var total float64
	if err := h.DB.WithContext(c.Request().Context()).
		Model(&models.Order{}).
		Select("COALESCE(SUM(total_amount), 0)").
		Scan(&total).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot compute revenue")
	}
	return c.JSON(http.StatusOK, echo.Map{"total_revenue": total})
}

func (h *AdminHandler) GetLowStock(c echo.Context) error {
	var products []models.Product
	if err := h.DB.WithContext(c.Request().Context()).
		Where("stock < ?", lowStockThreshold).
		Order("stock ASC").
		Find(&products).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot list products")
	}
	return c.JSON(http.StatusOK, products)
}

func (h *AdminHandler) GetStats(c echo.Context) error {
	ctx := c.Request().Context()

	var totalUsers, totalOrders, totalProducts int64
	var totalRevenue float64

	if err := h.DB.WithContext(ctx).Model(&models.User{}).Count(&totalUsers).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot count users")
	}
	if err := h.DB.WithContext(ctx).Model(&models.Order{}).Count(&totalOrders).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot count orders")
	}
	if err := h.DB.WithContext(ctx).Model(&models.Product{}).Count(&totalProducts).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot count products")
	}
	if err := h.DB.WithContext(ctx).
		Model(&models.Order{}).
		Select("COALESCE(SUM(total_amount), 0)").
		Scan(&totalRevenue).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot compute revenue")
	}

	return c.JSON(http.StatusOK, echo.Map{
		"total_users":    totalUsers,
		"total_orders":   totalOrders,
		"total_products": totalProducts,
		"total_revenue":  totalRevenue,
	})
}
