package models

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID           uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	Email        string `gorm:"unique;not null;index"    json:"email"`
	PasswordHash string `gorm:"not null"                 json:"-"`
	IsActive     bool   `gorm:"not null;default:true"    json:"is_active"`
	IsAdmin      bool   `gorm:"not null;default:false"   json:"is_admin"`
}

type Product struct {
	ID          uint    `gorm:"primaryKey;autoIncrement" json:"id"`
	Name        string  `gorm:"not null;index"           json:"name"`
	Description string  `json:"description"`
	Price       float64 `gorm:"not null"                 json:"price"`
	Stock       uint    `gorm:"not null;default:0"       json:"stock"`
	IsActive    bool    `gorm:"not null;default:true"    json:"is_active"`
}

type ProductImage struct {
	ID        uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	ProductID uint   `gorm:"index;not null"           json:"product_id"`
	FilePath  string `gorm:"not null"                 json:"file_path"`
	AltText   string `json:"alt_text"`
	IsPrimary bool   `gorm:"not null;default:false"   json:"is_primary"`
}

type CartItem struct {
	ID        uint `gorm:"primaryKey;autoIncrement"   json:"id"`
	UserID    uint `gorm:"index;not null"             json:"user_id"`
	ProductID uint `gorm:"not null"                   json:"product_id"`
	Quantity  uint `gorm:"default:1;check:quantity>0" json:"quantity"`
}

type Address struct {
	ID        uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID    uint   `gorm:"index;not null"           json:"user_id"`
	Name      string `gorm:"not null"                 json:"name"`
	Phone     string `gorm:"not null"                 json:"phone"`
	Street    string `gorm:"not null"                 json:"street"`
	City      string `gorm:"not null"                 json:"city"`
	State     string `json:"state"`
	Pincode   string `json:"pincode"`
	Landmark  string `json:"landmark"`
	Country   string `json:"country"`
	IsPrimary bool   `gorm:"not null;default:false"   json:"is_primary"`
}

// Order status vocabulary. Refunded, Delivered and Cancelled are terminal.
const (
	StatusPending   = "Pending"
	StatusPaid      = "Paid"
	StatusShipped   = "Shipped"
	StatusDelivered = "Delivered"
	StatusCancelled = "Cancelled"
	StatusRefunded  = "Refunded"
)

// Shipping fields are a snapshot of the primary address at creation time
// and are never re-derived.
type Order struct {
	ID              uint        `gorm:"primaryKey;autoIncrement" json:"id"`
	PublicID        uuid.UUID   `gorm:"type:uuid;uniqueIndex"    json:"public_id"`
	UserID          uint        `gorm:"index;not null"           json:"user_id"`
	TotalAmount     float64     `gorm:"not null;default:0"       json:"total_amount"`
	Status          string      `gorm:"not null;default:Pending" json:"status"`
	ShippingName    string      `json:"shipping_name"`
	ShippingPhone   string      `json:"shipping_phone"`
	ShippingStreet  string      `json:"shipping_street"`
	ShippingCity    string      `json:"shipping_city"`
	ShippingState   string      `json:"shipping_state"`
	ShippingPincode string      `json:"shipping_pincode"`
	PaidAt          *time.Time  `json:"paid_at,omitempty"`
	RefundedAt      *time.Time  `json:"refunded_at,omitempty"`
	CreatedAt       time.Time   `json:"created_at"`
	Items           []OrderItem `gorm:"foreignKey:OrderID" json:"items,omitempty"`
}

// Price is snapshotted at order-creation time, independent of later
// product price changes.
type OrderItem struct {
	ID        uint    `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderID   uint    `gorm:"index;not null"           json:"order_id"`
	ProductID uint    `gorm:"not null"                 json:"product_id"`
	Quantity  uint    `gorm:"not null"                 json:"quantity"`
	Price     float64 `gorm:"not null"                 json:"price"`
}

// OrderStatusEvent is the append-only audit trail, one row per transition.
type OrderStatusEvent struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderID   uint      `gorm:"index;not null"           json:"order_id"`
	Status    string    `gorm:"not null"                 json:"status"`
	CreatedAt time.Time `json:"created_at"`
}
