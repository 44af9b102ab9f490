package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/dverbin/ecom_api/internal/logging"
	"github.com/dverbin/ecom_api/internal/models"
	"github.com/dverbin/ecom_api/internal/mykafka"
	"github.com/dverbin/ecom_api/internal/service/search"
	"github.com/dverbin/ecom_api/internal/util"
)

type ProductHandler struct {
	DB        *gorm.DB
	Producer  *mykafka.Producer
	Indexer   *search.Indexer
	UploadDir string
}

type productRequest struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
	Stock       uint    `json:"stock"`
	IsActive    *bool   `json:"is_active"`
}

func (h *ProductHandler) publish(c echo.Context, event map[string]any) {
	publish(c, h.Producer, "product_events", fmt.Sprint(event["productID"]), event)
}

func (h *ProductHandler) GetProduct(c echo.Context) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return err
	}

	var product models.Product
	if err := h.DB.WithContext(c.Request().Context()).First(&product, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "product not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot read product")
	}
	return c.JSON(http.StatusOK, product)
}

// GetProducts lists the catalog with price-range, substring and
// active-flag filters plus offset/limit pagination.
func (h *ProductHandler) GetProducts(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "product.get_products")

	page := parseIntDefault(c.QueryParam("page"), 1)
	size := parseIntDefault(c.QueryParam("size"), util.DefaultPageSize)
	offset, limit := util.Calculate(page, size)

	q := h.DB.WithContext(ctx).Model(&models.Product{})

	if v := c.QueryParam("q"); v != "" {
		q = q.Where("LOWER(name) LIKE ?", "%"+strings.ToLower(v)+"%")
	}
	if v := c.QueryParam("min_price"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			q = q.Where("price >= ?", f)
		}
	}
	if v := c.QueryParam("max_price"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			q = q.Where("price <= ?", f)
		}
	}
	if v := c.QueryParam("active"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			q = q.Where("is_active = ?", b)
		}
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		l.Error("get_products_error", "reason", "count", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot count products")
	}

	var items []models.Product
	if err := q.Order("id ASC").Offset(offset).Limit(limit).Find(&items).Error; err != nil {
		l.Error("get_products_error", "reason", "find", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot list products")
	}

	return c.JSON(http.StatusOK, map[string]any{
		"data": items,
		"meta": map[string]any{
			"page":        page,
			"size":        limit,
			"total":       total,
			"total_pages": (total + int64(limit) - 1) / int64(limit),
			"has_prev":    page > 1,
			"has_next":    int64(offset+limit) < total,
		},
	})
}

func (h *ProductHandler) CreateProduct(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "product.create")

	var req productRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if req.Name == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "name is required")
	}
	if req.Price < 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "price cannot be negative")
	}

	prod := models.Product{
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		Stock:       req.Stock,
		IsActive:    true,
	}
	if req.IsActive != nil {
		prod.IsActive = *req.IsActive
	}

	if err := h.DB.WithContext(ctx).Create(&prod).Error; err != nil {
		l.Error("product_create_error", "reason", "db create", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot create product")
	}

	if err := h.Indexer.IndexProduct(ctx, &prod); err != nil {
		l.Error("product_index_error", "productID", prod.ID, "error", err)
	}
	h.publish(c, map[string]any{"type": "product_created", "productID": prod.ID, "name": prod.Name})

	l.Info("product_create_success", "productID", prod.ID)
	return c.JSON(http.StatusCreated, prod)
}

func (h *ProductHandler) UpdateProduct(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "product.update")

	id, err := parseUintParam(c, "id")
	if err != nil {
		return err
	}

	var req productRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if req.Price < 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "price cannot be negative")
	}

	var prod models.Product
	if err := h.DB.WithContext(ctx).First(&prod, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "product not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot read product")
	}

	prod.Name = req.Name
	prod.Description = req.Description
	prod.Price = req.Price
	prod.Stock = req.Stock
	if req.IsActive != nil {
		prod.IsActive = *req.IsActive
	}

	if err := h.DB.WithContext(ctx).Save(&prod).Error; err != nil {
		l.Error("product_update_error", "reason", "db save", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot update product")
	}

	if err := h.Indexer.IndexProduct(ctx, &prod); err != nil {
		l.Error("product_index_error", "productID", prod.ID, "error", err)
	}
	h.publish(c, map[string]any{"type": "product_updated", "productID": prod.ID, "name": prod.Name})

	return c.JSON(http.StatusOK, prod)
}

// ToggleProduct flips the active flag without touching other fields.
func (h *ProductHandler) ToggleProduct(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := parseUintParam(c, "id")
	if err != nil {
		return err
	}

	var prod models.Product
	if err := h.DB.WithContext(ctx).First(&prod, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "product not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot read product")
	}

	prod.IsActive = !prod.IsActive
	if err := h.DB.WithContext(ctx).Save(&prod).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot update product")
	}

	h.publish(c, map[string]any{"type": "product_toggled", "productID": prod.ID, "is_active": prod.IsActive})
	return c.JSON(http.StatusOK, prod)
}

func (h *ProductHandler) DeleteProduct(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "product.delete")

	id, err := parseUintParam(c, "id")
	if err != nil {
		return err
	}

	res := h.DB.WithContext(ctx).Delete(&models.Product{}, id)
	if res.Error != nil {
		l.Error("product_delete_error", "reason", "db delete", "error", res.Error)
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot delete product")
	}
	if res.RowsAffected == 0 {
		return echo.NewHTTPError(http.StatusNotFound, "product not found")
	}

	if err := h.Indexer.DeleteProduct(ctx, id); err != nil {
		l.Error("product_index_error", "productID", id, "error", err)
	}
	h.publish(c, map[string]any{"type": "product_deleted", "productID": id})

	return c.NoContent(http.StatusNoContent)
}

// UploadImage stores the file under the upload dir and records metadata.
// A primary image clears the primary flag on the product's other images
// first, so at most one survives.
func (h *ProductHandler) UploadImage(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "product.upload_image")

	id, err := parseUintParam(c, "id")
	if err != nil {
		return err
	}

	var prod models.Product
	if err := h.DB.WithContext(ctx).First(&prod, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "product not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot read product")
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "file is required")
	}
	altText := c.FormValue("alt_text")
	isPrimary, _ := strconv.ParseBool(c.FormValue("is_primary"))

	src, err := fileHeader.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "cannot open uploaded file")
	}
	defer src.Close()

	if err := os.MkdirAll(h.UploadDir, 0o755); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot create upload dir")
	}
	name := fmt.Sprintf("product_%d_%s", prod.ID, filepath.Base(fileHeader.Filename))
	dstPath := filepath.Join(h.UploadDir, name)

	dst, err := os.Create(dstPath)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot store file")
	}
	defer dst.Close()
	if _, err := io.Copy(dst, src); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot store file")
	}

	img := models.ProductImage{
		ProductID: prod.ID,
		FilePath:  dstPath,
		AltText:   altText,
		IsPrimary: isPrimary,
	}
	txErr := h.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if isPrimary {
			if err := tx.Model(&models.ProductImage{}).
				Where("product_id = ?", prod.ID).
				Update("is_primary", false).Error; err != nil {
				return err
			}
		}
		return tx.Create(&img).Error
	})
	if txErr != nil {
		l.Error("image_upload_error", "reason", "db create", "error", txErr)
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot save image")
	}

	h.publish(c, map[string]any{"type": "product_image_added", "productID": prod.ID, "imageID": img.ID})
	return c.JSON(http.StatusCreated, img)
}

func (h *ProductHandler) GetImages(c echo.Context) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return err
	}

	var images []models.ProductImage
	if err := h.DB.WithContext(c.Request().Context()).
		Where("product_id = ?", id).
		Find(&images).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot list images")
	}
	return c.JSON(http.StatusOK, images)
}
