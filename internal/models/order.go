package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "Pending"
	OrderStatusProcessing OrderStatus = "Processing"
	OrderStatusShipped    OrderStatus = "Shipped"
	OrderStatusDelivered  OrderStatus = "Delivered"
	OrderStatusCanceled   OrderStatus = "Canceled"
)

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusProcessing, OrderStatusShipped, OrderStatusDelivered, OrderStatusCanceled:
		return true
	}
	return false
}

// RequiresPayment reports statuses that only make sense for a paid order.
func (s OrderStatus) RequiresPayment() bool {
	return s == OrderStatusShipped || s == OrderStatusDelivered
}

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "Pending"
	PaymentStatusCompleted PaymentStatus = "Completed"
	PaymentStatusFailed    PaymentStatus = "Failed"
	PaymentStatusCancelled PaymentStatus = "Cancelled"
)

const (
	PaymentMethodRazorpay = "Razorpay"

	PendingMarker = "Pending"
	FailedMarker  = "Failed"
)

// GatewayAssigned reports whether id names a gateway order. Every order
// carries PendingMarker until initiation stores the real id, so the marker
// never identifies a single order.
func GatewayAssigned(id string) bool {
	id = strings.TrimSpace(id)
	return id != "" && id != PendingMarker
}

type Order struct {
	Base
	OrderNumber     string          `gorm:"size:16;uniqueIndex;not null"                    json:"orderId"`
	UserID          uuid.UUID       `gorm:"type:uuid;index;not null"                        json:"user"`
	Items           []OrderItem     `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"  json:"products"`
	Status          OrderStatus     `gorm:"size:20;not null;default:Pending"                json:"status"`
	TrackingID      string          `gorm:"size:100"                                        json:"trackingId,omitempty"`
	DeliveryPartner string          `gorm:"size:100"                                        json:"deliveryPartner,omitempty"`
	PaymentMethod   string          `gorm:"size:30;not null;default:Razorpay"               json:"paymentMethod"`
	PaymentStatus   PaymentStatus   `gorm:"size:20;not null;default:Pending;index"          json:"paymentStatus"`
	PaymentID       string          `gorm:"size:100;not null;default:Pending"               json:"paymentId"`
	GatewayOrderID  string          `gorm:"size:100;not null;default:Pending;index"         json:"gatewayOrderId"`
	DeliveryAddress Address         `gorm:"embedded;embeddedPrefix:delivery_"               json:"deliveryAddress"`
	ContactNumber   string          `gorm:"size:30;not null"                                json:"contactNumber"`
	OrderNotes      string          `gorm:"type:text"                                       json:"orderNotes,omitempty"`
	TotalPrice      decimal.Decimal `gorm:"type:numeric(12,2);not null"                     json:"totalPrice"`
	PaidAt          *time.Time      `json:"paidAt,omitempty"`
}

func (Order) TableName() string {
	return "orders"
}

type OrderItem struct {
	Base
	OrderID   uuid.UUID       `gorm:"type:uuid;index;not null"            json:"-"`
	ProductID uuid.UUID       `gorm:"type:uuid;not null"                  json:"productId"`
	Name      string          `gorm:"size:255"                            json:"name"`
	Image     string          `json:"image"`
	Quantity  uint            `gorm:"not null;check:quantity>0"           json:"quantity"`
	Color     string          `gorm:"size:50;not null"                    json:"color"`
	Price     decimal.Decimal `gorm:"type:numeric(12,2);not null"         json:"price"`
}

func (OrderItem) TableName() string {
	return "order_items"
}
