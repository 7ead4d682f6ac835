package models

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Cart struct {
	Base
	UserID        uuid.UUID       `gorm:"type:uuid;uniqueIndex;not null"                json:"user"`
	TotalCartCost decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0"         json:"totalCartCost"`
	CartItems     []CartItem      `gorm:"foreignKey:CartID;constraint:OnDelete:CASCADE" json:"cartItems"`
}

func (Cart) TableName() string {
	return "carts"
}

// Recalculate derives line totals and the cart total from quantity and price.
func (c *Cart) Recalculate() {
	total := decimal.Zero
	for i := range c.CartItems {
		it := &c.CartItems[i]
		it.TotalCost = it.Price.Mul(decimal.NewFromInt(int64(it.Quantity)))
		total = total.Add(it.TotalCost)
	}
	c.TotalCartCost = total
}

type CartItem struct {
	Base
	CartID    uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_cart_product_color" json:"-"`
	ProductID uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_cart_product_color" json:"productId"`
	Color     string          `gorm:"size:50;not null;uniqueIndex:idx_cart_product_color"   json:"color"`
	Name      string          `gorm:"size:255;not null"                                     json:"name"`
	Price     decimal.Decimal `gorm:"type:numeric(12,2);not null"                           json:"price"`
	Image     string          `gorm:"not null"                                              json:"image"`
	Quantity  uint            `gorm:"not null;default:1;check:quantity>0"                   json:"quantity"`
	TotalCost decimal.Decimal `gorm:"type:numeric(12,2);not null"                           json:"totalCost"`
}

func (CartItem) TableName() string {
	return "cart_items"
}
