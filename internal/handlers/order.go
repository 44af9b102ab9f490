package handlers

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/dverbin/ecom_api/internal/apperr"
	"github.com/dverbin/ecom_api/internal/logging"
	"github.com/dverbin/ecom_api/internal/mykafka"
	"github.com/dverbin/ecom_api/internal/service/orders"
	"github.com/dverbin/ecom_api/internal/token"
)

type OrderHandler struct {
	Orders   *orders.Service
	Producer *mykafka.Producer
}

func (h *OrderHandler) publish(c echo.Context, userID uint, event map[string]any) {
	publish(c, h.Producer, "order_events", fmt.Sprint(userID), event)
}

func (h *OrderHandler) CreateOrder(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.create")
	userID := token.UserID(c)

	order, err := h.Orders.CreateFromCart(ctx, userID)
	if err != nil {
		l.Warn("order_create_failed", "userID", userID, "error", err)
		return apperr.ToHTTP(err)
	}

	h.publish(c, userID, map[string]any{
		"type":    "order_created",
		"userID":  userID,
		"orderID": order.ID,
		"total":   order.TotalAmount,
	})
	l.Info("order_create_success", "orderID", order.ID, "total", order.TotalAmount)
	return c.JSON(http.StatusCreated, order)
}

func (h *OrderHandler) ListOrders(c echo.Context) error {
	userID := token.UserID(c)

	list, err := h.Orders.ListForUser(c.Request().Context(), userID)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, list)
}

func (h *OrderHandler) GetOrder(c echo.Context) error {
	userID := token.UserID(c)

	id, err := parseUintParam(c, "id")
	if err != nil {
		return err
	}

	order, err := h.Orders.GetForUser(c.Request().Context(), id, userID)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, order)
}

func (h *OrderHandler) UpdateStatus(c echo.Context) error {
	ctx := c.Request().Context()
	actor := token.CurrentUser(c)

	id, err := parseUintParam(c, "id")
	if err != nil {
		return err
	}

	var req struct {
		Status string `json:"status" query:"status"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	order, err := h.Orders.UpdateStatus(ctx, id, req.Status, actor)
	if err != nil {
		return apperr.ToHTTP(err)
	}

	h.publish(c, order.UserID, map[string]any{
		"type":    "order_status_updated",
		"orderID": order.ID,
		"status":  order.Status,
	})
	return c.JSON(http.StatusOK, echo.Map{"message": "order status updated", "order": order})
}

func (h *OrderHandler) Pay(c echo.Context) error {
	ctx := c.Request().Context()
	userID := token.UserID(c)

	id, err := parseUintParam(c, "id")
	if err != nil {
		return err
	}

	order, err := h.Orders.Pay(ctx, id, userID)
	if err != nil {
		return apperr.ToHTTP(err)
	}

	h.publish(c, userID, map[string]any{
		"type":    "order_paid",
		"orderID": order.ID,
		"amount":  order.TotalAmount,
	})
	return c.JSON(http.StatusOK, echo.Map{
		"message":        "mock payment successful",
		"order_id":       order.ID,
		"amount_charged": order.TotalAmount,
		"status":         order.Status,
		"paid_at":        order.PaidAt,
	})
}

func (h *OrderHandler) Refund(c echo.Context) error {
	ctx := c.Request().Context()
	userID := token.UserID(c)

	id, err := parseUintParam(c, "id")
	if err != nil {
		return err
	}

	order, err := h.Orders.Refund(ctx, id, userID)
	if err != nil {
		return apperr.ToHTTP(err)
	}

	h.publish(c, userID, map[string]any{
		"type":    "order_refunded",
		"orderID": order.ID,
		"amount":  order.TotalAmount,
	})
	return c.JSON(http.StatusOK, echo.Map{
		"message":     "mock refund successful",
		"order_id":    order.ID,
		"status":      order.Status,
		"refunded_at": order.RefundedAt,
	})
}

func (h *OrderHandler) GetTimeline(c echo.Context) error {
	userID := token.UserID(c)

	id, err := parseUintParam(c, "id")
	if err != nil {
		return err
	}

	events, err := h.Orders.Timeline(c.Request().Context(), id, userID)
	if err != nil {
		return apperr.ToHTTP(err)
	}
	return c.JSON(http.StatusOK, events)
}
