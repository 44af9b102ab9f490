package orders

import (
	"context"
	"errors"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/dverbin/ecom_api/internal/apperr"
	"github.com/dverbin/ecom_api/internal/config"
	"github.com/dverbin/ecom_api/internal/models"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, config.Migrate(db))
	return &Service{DB: db}
}

func seedUser(t *testing.T, db *gorm.DB, email string) *models.User {
	t.Helper()
	u := &models.User{Email: email, PasswordHash: "x", IsActive: true}
	require.NoError(t, db.Create(u).Error)
	return u
}

func seedProduct(t *testing.T, db *gorm.DB, name string, price float64, stock uint) *models.Product {
	t.Helper()
	p := &models.Product{Name: name, Price: price, Stock: stock, IsActive: true}
	require.NoError(t, db.Create(p).Error)
	return p
}

func seedPrimaryAddress(t *testing.T, db *gorm.DB, userID uint) *models.Address {
	t.Helper()
	a := &models.Address{
		UserID: userID, Name: "Home", Phone: "555-0101",
		Street: "12 Main St", City: "Springfield", State: "IL", Pincode: "62704",
		IsPrimary: true,
	}
	require.NoError(t, db.Create(a).Error)
	return a
}

func seedCartLine(t *testing.T, db *gorm.DB, userID, productID, quantity uint) {
	t.Helper()
	require.NoError(t, db.Create(&models.CartItem{UserID: userID, ProductID: productID, Quantity: quantity}).Error)
}

func TestCreateFromCartEmptyCart(t *testing.T) {
	s := newTestService(t)
	u := seedUser(t, s.DB, "user@example.com")
	seedPrimaryAddress(t, s.DB, u.ID)

	_, err := s.CreateFromCart(context.Background(), u.ID)
	require.ErrorIs(t, err, apperr.ErrInvalidState)
}

func TestCreateFromCartNoPrimaryAddress(t *testing.T) {
	s := newTestService(t)
	u := seedUser(t, s.DB, "user@example.com")
	p := seedProduct(t, s.DB, "widget", 10, 5)
	seedCartLine(t, s.DB, u.ID, p.ID, 1)

	// An address exists but none is primary.
	require.NoError(t, s.DB.Create(&models.Address{
		UserID: u.ID, Name: "Home", Phone: "x", Street: "x", City: "x",
	}).Error)

	_, err := s.CreateFromCart(context.Background(), u.ID)
	require.ErrorIs(t, err, apperr.ErrInvalidState)
}

func TestCreateFromCartSuccess(t *testing.T) {
	s := newTestService(t)
	u := seedUser(t, s.DB, "user@example.com")
	addr := seedPrimaryAddress(t, s.DB, u.ID)
	p := seedProduct(t, s.DB, "widget", 25, 5)
	seedCartLine(t, s.DB, u.ID, p.ID, 2)

	order, err := s.CreateFromCart(context.Background(), u.ID)
	require.NoError(t, err)

	require.Equal(t, models.StatusPending, order.Status)
	require.Equal(t, float64(50), order.TotalAmount)
	require.NotEqual(t, "00000000-0000-0000-0000-000000000000", order.PublicID.String())
	require.Len(t, order.Items, 1)
	require.Equal(t, float64(25), order.Items[0].Price)
	require.EqualValues(t, 2, order.Items[0].Quantity)

	// Shipping snapshot comes from the primary address.
	require.Equal(t, addr.Name, order.ShippingName)
	require.Equal(t, addr.Street, order.ShippingStreet)
	require.Equal(t, addr.City, order.ShippingCity)

	var got models.Product
	require.NoError(t, s.DB.First(&got, p.ID).Error)
	require.EqualValues(t, 3, got.Stock)

	var cartCount int64
	require.NoError(t, s.DB.Model(&models.CartItem{}).Where("user_id = ?", u.ID).Count(&cartCount).Error)
	require.EqualValues(t, 0, cartCount)

	events, err := s.Timeline(context.Background(), order.ID, u.ID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, models.StatusPending, events[0].Status)
}

func TestCreateFromCartTotalMatchesLines(t *testing.T) {
	s := newTestService(t)
	u := seedUser(t, s.DB, "user@example.com")
	seedPrimaryAddress(t, s.DB, u.ID)
	p1 := seedProduct(t, s.DB, "widget", 9.5, 10)
	p2 := seedProduct(t, s.DB, "gadget", 3.25, 10)
	seedCartLine(t, s.DB, u.ID, p1.ID, 3)
	seedCartLine(t, s.DB, u.ID, p2.ID, 4)

	order, err := s.CreateFromCart(context.Background(), u.ID)
	require.NoError(t, err)

	var sum float64
	for _, it := range order.Items {
		sum += it.Price * float64(it.Quantity)
	}
	require.Equal(t, sum, order.TotalAmount)
}

func TestCreateFromCartInsufficientStockRollsBackEverything(t *testing.T) {
	s := newTestService(t)
	u := seedUser(t, s.DB, "user@example.com")
	seedPrimaryAddress(t, s.DB, u.ID)
	p1 := seedProduct(t, s.DB, "widget", 10, 5)
	p2 := seedProduct(t, s.DB, "gadget", 10, 1)
	seedCartLine(t, s.DB, u.ID, p1.ID, 2)
	seedCartLine(t, s.DB, u.ID, p2.ID, 3)

	_, err := s.CreateFromCart(context.Background(), u.ID)
	require.ErrorIs(t, err, apperr.ErrInsufficientStock)
	require.Contains(t, err.Error(), "gadget")

	// The earlier decrement on widget must have been rolled back.
	var got models.Product
	require.NoError(t, s.DB.First(&got, p1.ID).Error)
	require.EqualValues(t, 5, got.Stock)

	var orderCount, itemCount, cartCount int64
	require.NoError(t, s.DB.Model(&models.Order{}).Count(&orderCount).Error)
	require.NoError(t, s.DB.Model(&models.OrderItem{}).Count(&itemCount).Error)
	require.NoError(t, s.DB.Model(&models.CartItem{}).Where("user_id = ?", u.ID).Count(&cartCount).Error)
	require.EqualValues(t, 0, orderCount)
	require.EqualValues(t, 0, itemCount)
	require.EqualValues(t, 2, cartCount)
}

func TestCreateFromCartDeletedProductRejectsOrder(t *testing.T) {
	s := newTestService(t)
	u := seedUser(t, s.DB, "user@example.com")
	seedPrimaryAddress(t, s.DB, u.ID)
	p := seedProduct(t, s.DB, "widget", 10, 5)
	seedCartLine(t, s.DB, u.ID, p.ID, 1)
	seedCartLine(t, s.DB, u.ID, 999, 1)

	_, err := s.CreateFromCart(context.Background(), u.ID)
	require.ErrorIs(t, err, apperr.ErrNotFound)

	var orderCount int64
	require.NoError(t, s.DB.Model(&models.Order{}).Count(&orderCount).Error)
	require.EqualValues(t, 0, orderCount)
}

func TestPriceSnapshotSurvivesPriceChange(t *testing.T) {
	s := newTestService(t)
	u := seedUser(t, s.DB, "user@example.com")
	seedPrimaryAddress(t, s.DB, u.ID)
	p := seedProduct(t, s.DB, "widget", 20, 5)
	seedCartLine(t, s.DB, u.ID, p.ID, 1)

	order, err := s.CreateFromCart(context.Background(), u.ID)
	require.NoError(t, err)

	require.NoError(t, s.DB.Model(&models.Product{}).Where("id = ?", p.ID).Update("price", 99).Error)

	got, err := s.GetForUser(context.Background(), order.ID, u.ID)
	require.NoError(t, err)
	require.Equal(t, float64(20), got.Items[0].Price)
	require.Equal(t, float64(20), got.TotalAmount)
}

func TestLastUnitGoesToOneBuyerOnly(t *testing.T) {
	s := newTestService(t)
	first := seedUser(t, s.DB, "first@example.com")
	second := seedUser(t, s.DB, "second@example.com")
	seedPrimaryAddress(t, s.DB, first.ID)
	seedPrimaryAddress(t, s.DB, second.ID)
	p := seedProduct(t, s.DB, "widget", 10, 1)
	seedCartLine(t, s.DB, first.ID, p.ID, 1)
	seedCartLine(t, s.DB, second.ID, p.ID, 1)

	_, err := s.CreateFromCart(context.Background(), first.ID)
	require.NoError(t, err)

	_, err = s.CreateFromCart(context.Background(), second.ID)
	require.ErrorIs(t, err, apperr.ErrInsufficientStock)

	var got models.Product
	require.NoError(t, s.DB.First(&got, p.ID).Error)
	require.EqualValues(t, 0, got.Stock)
}

func makeOrder(t *testing.T, s *Service, userID uint) *models.Order {
	t.Helper()
	seedPrimaryAddress(t, s.DB, userID)
	p := seedProduct(t, s.DB, "widget", 10, 10)
	seedCartLine(t, s.DB, userID, p.ID, 1)
	order, err := s.CreateFromCart(context.Background(), userID)
	require.NoError(t, err)
	return order
}

func TestPayOnlyFromPending(t *testing.T) {
	s := newTestService(t)
	u := seedUser(t, s.DB, "user@example.com")
	order := makeOrder(t, s, u.ID)

	paid, err := s.Pay(context.Background(), order.ID, u.ID)
	require.NoError(t, err)
	require.Equal(t, models.StatusPaid, paid.Status)
	require.NotNil(t, paid.PaidAt)

	_, err = s.Pay(context.Background(), order.ID, u.ID)
	require.ErrorIs(t, err, apperr.ErrInvalidState)
}

func TestPayNotOwnedIsNotFound(t *testing.T) {
	s := newTestService(t)
	owner := seedUser(t, s.DB, "owner@example.com")
	other := seedUser(t, s.DB, "other@example.com")
	order := makeOrder(t, s, owner.ID)

	_, err := s.Pay(context.Background(), order.ID, other.ID)
	require.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestRefundOnlyFromPaid(t *testing.T) {
	s := newTestService(t)
	u := seedUser(t, s.DB, "user@example.com")
	order := makeOrder(t, s, u.ID)

	_, err := s.Refund(context.Background(), order.ID, u.ID)
	require.ErrorIs(t, err, apperr.ErrInvalidState)

	_, err = s.Pay(context.Background(), order.ID, u.ID)
	require.NoError(t, err)

	refunded, err := s.Refund(context.Background(), order.ID, u.ID)
	require.NoError(t, err)
	require.Equal(t, models.StatusRefunded, refunded.Status)
	require.NotNil(t, refunded.RefundedAt)

	_, err = s.Refund(context.Background(), order.ID, u.ID)
	require.ErrorIs(t, err, apperr.ErrInvalidState)
}

func TestUpdateStatusRequiresAdmin(t *testing.T) {
	s := newTestService(t)
	u := seedUser(t, s.DB, "user@example.com")
	order := makeOrder(t, s, u.ID)

	_, err := s.UpdateStatus(context.Background(), order.ID, models.StatusShipped, u)
	require.ErrorIs(t, err, apperr.ErrForbidden)
}

func TestUpdateStatusUnknownValue(t *testing.T) {
	s := newTestService(t)
	u := seedUser(t, s.DB, "user@example.com")
	admin := &models.User{ID: 99, IsAdmin: true}
	order := makeOrder(t, s, u.ID)

	_, err := s.UpdateStatus(context.Background(), order.ID, "Teleported", admin)
	require.ErrorIs(t, err, apperr.ErrInvalidArgument)
}

func TestUpdateStatusMissingOrder(t *testing.T) {
	s := newTestService(t)
	admin := &models.User{ID: 99, IsAdmin: true}

	_, err := s.UpdateStatus(context.Background(), 12345, models.StatusShipped, admin)
	require.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestUpdateStatusTerminalIsFinal(t *testing.T) {
	s := newTestService(t)
	u := seedUser(t, s.DB, "user@example.com")
	admin := &models.User{ID: 99, IsAdmin: true}
	order := makeOrder(t, s, u.ID)

	_, err := s.UpdateStatus(context.Background(), order.ID, models.StatusCancelled, admin)
	require.NoError(t, err)

	_, err = s.UpdateStatus(context.Background(), order.ID, models.StatusShipped, admin)
	require.ErrorIs(t, err, apperr.ErrInvalidState)
}

func TestTimelineRecordsTransitionsInOrder(t *testing.T) {
	s := newTestService(t)
	u := seedUser(t, s.DB, "user@example.com")
	admin := &models.User{ID: 99, IsAdmin: true}
	order := makeOrder(t, s, u.ID)

	_, err := s.Pay(context.Background(), order.ID, u.ID)
	require.NoError(t, err)
	_, err = s.UpdateStatus(context.Background(), order.ID, models.StatusShipped, admin)
	require.NoError(t, err)

	events, err := s.Timeline(context.Background(), order.ID, u.ID)
	require.NoError(t, err)
	require.Len(t, events, 3)
	require.Equal(t, models.StatusPending, events[0].Status)
	require.Equal(t, models.StatusPaid, events[1].Status)
	require.Equal(t, models.StatusShipped, events[2].Status)
}

func TestTimelineNotOwnedIsNotFound(t *testing.T) {
	s := newTestService(t)
	owner := seedUser(t, s.DB, "owner@example.com")
	other := seedUser(t, s.DB, "other@example.com")
	order := makeOrder(t, s, owner.ID)

	_, err := s.Timeline(context.Background(), order.ID, other.ID)
	require.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestGetForUserMissing(t *testing.T) {
	s := newTestService(t)
	u := seedUser(t, s.DB, "user@example.com")

	_, err := s.GetForUser(context.Background(), 42, u.ID)
	require.True(t, errors.Is(err, apperr.ErrNotFound))
}
