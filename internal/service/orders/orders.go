package orders

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dverbin/ecom_api/internal/apperr"
	"github.com/dverbin/ecom_api/internal/models"
)

// Service owns the order lifecycle: creation from a cart, the status
// machine, mock payment and refund, and the status-history timeline.
type Service struct {
	DB *gorm.DB
}

var allowedStatuses = map[string]bool{
	models.StatusPending:   true,
	models.StatusPaid:      true,
	models.StatusShipped:   true,
	models.StatusDelivered: true,
	models.StatusCancelled: true,
	models.StatusRefunded:  true,
}

var terminalStatuses = map[string]bool{
	models.StatusRefunded:  true,
	models.StatusDelivered: true,
	models.StatusCancelled: true,
}

func logStatus(tx *gorm.DB, orderID uint, status string) error {
	return tx.Create(&models.OrderStatusEvent{OrderID: orderID, Status: status}).Error
}

// CreateFromCart converts the user's cart into an order. The whole
// sequence runs in one transaction: if any line fails, every stock
// decrement and the order row itself are rolled back.
func (s *Service) CreateFromCart(ctx context.Context, userID uint) (*models.Order, error) {
	var order models.Order

	txErr := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var items []models.CartItem
		if err := tx.Where("user_id = ?", userID).Find(&items).Error; err != nil {
			return err
		}
		if len(items) == 0 {
			return apperr.InvalidState("cart is empty")
		}

		var addr models.Address
		if err := tx.Where("user_id = ? AND is_primary = ?", userID, true).First(&addr).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.InvalidState("no primary address set")
			}
			return err
		}

		order = models.Order{
			PublicID:        uuid.New(),
			UserID:          userID,
			Status:          models.StatusPending,
			ShippingName:    addr.Name,
			ShippingPhone:   addr.Phone,
			ShippingStreet:  addr.Street,
			ShippingCity:    addr.City,
			ShippingState:   addr.State,
			ShippingPincode: addr.Pincode,
		}
		if err := tx.Create(&order).Error; err != nil {
			return err
		}

		var total float64
		for _, it := range items {
			var p models.Product
			if err := tx.First(&p, it.ProductID).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return apperr.NotFound("product %d is no longer available", it.ProductID)
				}
				return err
			}

			// Guarded decrement: the stock >= quantity condition makes the
			// check-then-decrement atomic, so concurrent orders cannot
			// drive stock negative.
			res := tx.Model(&models.Product{}).
				Where("id = ? AND stock >= ?", p.ID, it.Quantity).
				Update("stock", gorm.Expr("stock - ?", it.Quantity))
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return apperr.InsufficientStock(p.Name)
			}

			oi := models.OrderItem{
				OrderID:   order.ID,
				ProductID: p.ID,
				Quantity:  it.Quantity,
				Price:     p.Price,
			}
			if err := tx.Create(&oi).Error; err != nil {
				return err
			}
			total += p.Price * float64(it.Quantity)
		}

		if err := tx.Model(&order).Update("total_amount", total).Error; err != nil {
			return err
		}
		order.TotalAmount = total

		if err := tx.Where("user_id = ?", userID).Delete(&models.CartItem{}).Error; err != nil {
			return err
		}

		return logStatus(tx, order.ID, models.StatusPending)
	})
	if txErr != nil {
		return nil, txErr
	}

	if err := s.DB.WithContext(ctx).Preload("Items").First(&order, order.ID).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (s *Service) getOwned(ctx context.Context, orderID, userID uint) (*models.Order, error) {
	var order models.Order
	err := s.DB.WithContext(ctx).
		Where("id = ? AND user_id = ?", orderID, userID).
		First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("order %d not found", orderID)
		}
		return nil, err
	}
	return &order, nil
}

func (s *Service) ListForUser(ctx context.Context, userID uint) ([]models.Order, error) {
	var list []models.Order
	err := s.DB.WithContext(ctx).
		Preload("Items").
		Where("user_id = ?", userID).
		Order("id ASC").
		Find(&list).Error
	return list, err
}

func (s *Service) GetForUser(ctx context.Context, orderID, userID uint) (*models.Order, error) {
	var order models.Order
	err := s.DB.WithContext(ctx).
		Preload("Items").
		Where("id = ? AND user_id = ?", orderID, userID).
		First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("order %d not found", orderID)
		}
		return nil, err
	}
	return &order, nil
}

// UpdateStatus is the administrative transition path. Terminal orders
// admit no further transitions.
func (s *Service) UpdateStatus(ctx context.Context, orderID uint, newStatus string, actor *models.User) (*models.Order, error) {
	if actor == nil || !actor.IsAdmin {
		return nil, apperr.Forbidden("only admin can update order status")
	}
	if !allowedStatuses[newStatus] {
		return nil, apperr.InvalidArgument("unknown status %q", newStatus)
	}

	var order models.Order
	txErr := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&order, orderID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("order %d not found", orderID)
			}
			return err
		}
		if terminalStatuses[order.Status] {
			return apperr.InvalidState("order is already %s", order.Status)
		}

		order.Status = newStatus
		if err := tx.Save(&order).Error; err != nil {
			return err
		}
		return logStatus(tx, order.ID, newStatus)
	})
	if txErr != nil {
		return nil, txErr
	}
	return &order, nil
}

// Pay simulates a successful payment without a real gateway.
func (s *Service) Pay(ctx context.Context, orderID, userID uint) (*models.Order, error) {
	var order *models.Order
	txErr := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		o, err := (&Service{DB: tx}).getOwned(ctx, orderID, userID)
		if err != nil {
			return err
		}
		if o.Status != models.StatusPending {
			return apperr.InvalidState("order is already %s", o.Status)
		}

		now := time.Now()
		o.Status = models.StatusPaid
		o.PaidAt = &now
		if err := tx.Save(o).Error; err != nil {
			return err
		}
		order = o
		return logStatus(tx, o.ID, models.StatusPaid)
	})
	if txErr != nil {
		return nil, txErr
	}
	return order, nil
}

// Refund transitions a paid order to Refunded.
func (s *Service) Refund(ctx context.Context, orderID, userID uint) (*models.Order, error) {
	var order *models.Order
	txErr := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		o, err := (&Service{DB: tx}).getOwned(ctx, orderID, userID)
		if err != nil {
			return err
		}
		if o.Status != models.StatusPaid {
			return apperr.InvalidState("only paid orders can be refunded")
		}

		now := time.Now()
		o.Status = models.StatusRefunded
		o.RefundedAt = &now
		if err := tx.Save(o).Error; err != nil {
			return err
		}
		order = o
		return logStatus(tx, o.ID, models.StatusRefunded)
	})
	if txErr != nil {
		return nil, txErr
	}
	return order, nil
}

// Timeline returns the order's status history, oldest first.
func (s *Service) Timeline(ctx context.Context, orderID, userID uint) ([]models.OrderStatusEvent, error) {
	if _, err := s.getOwned(ctx, orderID, userID); err != nil {
		return nil, err
	}

	var events []models.OrderStatusEvent
	err := s.DB.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at ASC, id ASC").
		Find(&events).Error
	return events, err
}
