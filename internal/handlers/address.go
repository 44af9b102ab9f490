package handlers

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/dverbin/ecom_api/internal/logging"
	"github.com/dverbin/ecom_api/internal/models"
	"github.com/dverbin/ecom_api/internal/token"
)

type AddressHandler struct {
	DB *gorm.DB
}

type addressRequest struct {
	Name      string `json:"name"`
	Phone     string `json:"phone"`
	Street    string `json:"street"`
	City      string `json:"city"`
	State     string `json:"state"`
	Pincode   string `json:"pincode"`
	Landmark  string `json:"landmark"`
	Country   string `json:"country"`
	IsPrimary bool   `json:"is_primary"`
}

// AddAddress inserts a new address. Clear-then-set inside one
// transaction keeps at most one primary per user.
func (h *AddressHandler) AddAddress(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "address.add")
	userID := token.UserID(c)

	var req addressRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if req.Name == "" || req.Street == "" || req.City == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "name, street and city are required")
	}

	addr := models.Address{
		UserID:    userID,
		Name:      req.Name,
		Phone:     req.Phone,
		Street:    req.Street,
		City:      req.City,
		State:     req.State,
		Pincode:   req.Pincode,
		Landmark:  req.Landmark,
		Country:   req.Country,
		IsPrimary: req.IsPrimary,
	}

	txErr := h.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if req.IsPrimary {
			if err := tx.Model(&models.Address{}).
				Where("user_id = ?", userID).
				Update("is_primary", false).Error; err != nil {
				return err
			}
		}
		return tx.Create(&addr).Error
	})
	if txErr != nil {
		l.Error("address_add_error", "error", txErr)
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot create address")
	}

	return c.JSON(http.StatusCreated, addr)
}

func (h *AddressHandler) GetAddresses(c echo.Context) error {
	userID := token.UserID(c)

	var list []models.Address
	if err := h.DB.WithContext(c.Request().Context()).
		Where("user_id = ?", userID).
		Order("id ASC").
		Find(&list).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot list addresses")
	}
	return c.JSON(http.StatusOK, list)
}

// SetPrimary clears the primary flag on all of the user's addresses and
// sets it on the target, in one transaction.
func (h *AddressHandler) SetPrimary(c echo.Context) error {
	ctx := c.Request().Context()
	userID := token.UserID(c)

	id, err := parseUintParam(c, "id")
	if err != nil {
		return err
	}

	var addr models.Address
	txErr := h.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ? AND user_id = ?", id, userID).First(&addr).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.Address{}).
			Where("user_id = ?", userID).
			Update("is_primary", false).Error; err != nil {
			return err
		}
		addr.IsPrimary = true
		return tx.Save(&addr).Error
	})
	if txErr != nil {
		if errors.Is(txErr, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "address not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot update address")
	}

	return c.JSON(http.StatusOK, addr)
}

// DeleteAddress removes the address. No new primary is auto-selected if
// the deleted one was primary.
func (h *AddressHandler) DeleteAddress(c echo.Context) error {
	userID := token.UserID(c)

	id, err := parseUintParam(c, "id")
	if err != nil {
		return err
	}

	res := h.DB.WithContext(c.Request().Context()).
		Where("id = ? AND user_id = ?", id, userID).
		Delete(&models.Address{})
	if res.Error != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot delete address")
	}
	if res.RowsAffected == 0 {
		return echo.NewHTTPError(http.StatusNotFound, "address not found")
	}

	return c.JSON(http.StatusOK, echo.Map{"message": "address deleted"})
}
