package repo

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Skotchmaster/custom_stores/internal/models"
)

func orderedItems(db *gorm.DB) *gorm.DB {
	return db.Order("created_at ASC").Order("id ASC")
}

func (r *GormRepo) GetCart(ctx context.Context, userID uuid.UUID) (*models.Cart, error) {
	var cart models.Cart
	if err := r.DB.WithContext(ctx).
		Preload("CartItems", orderedItems).
		Where("user_id = ?", userID).
		First(&cart).Error; err != nil {
		return nil, err
	}
	return &cart, nil
}

func (r *GormRepo) GetCartByID(ctx context.Context, id uuid.UUID) (*models.Cart, error) {
	var cart models.Cart
	if err := r.DB.WithContext(ctx).Where("id = ?", id).First(&cart).Error; err != nil {
		return nil, err
	}
	return &cart, nil
}

// lockCart takes the row lock every cart mutation starts with. When create is
// set a missing cart is inserted first; created reports whether this call did
// the insert.
func lockCart(tx *gorm.DB, userID uuid.UUID, create bool) (cart *models.Cart, created bool, err error) {
	if create {
		fresh := models.Cart{UserID: userID, TotalCartCost: decimal.Zero}
		res := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoNothing: true,
		}).Create(&fresh)
		if res.Error != nil {
			return nil, false, res.Error
		}
		created = res.RowsAffected == 1
	}

	var locked models.Cart
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ?", userID).
		First(&locked).Error; err != nil {
		return nil, false, err
	}
	return &locked, created, nil
}

// recalculate reloads the lines and rewrites every derived total.
func recalculate(tx *gorm.DB, cart *models.Cart) error {
	var items []models.CartItem
	if err := orderedItems(tx.Where("cart_id = ?", cart.ID)).Find(&items).Error; err != nil {
		return err
	}
	cart.CartItems = items
	cart.Recalculate()

	for i := range cart.CartItems {
		it := &cart.CartItems[i]
		if err := tx.Model(&models.CartItem{}).
			Where("id = ?", it.ID).
			Update("total_cost", it.TotalCost).Error; err != nil {
			return err
		}
	}
	return tx.Model(&models.Cart{}).
		Where("id = ?", cart.ID).
		Update("total_cart_cost", cart.TotalCartCost).Error
}

// findLine picks the line for (product, color). Without a color the product
// must have exactly one line, otherwise ErrAmbiguousLine.
func findLine(tx *gorm.DB, cartID, productID uuid.UUID, color string) (*models.CartItem, error) {
	q := tx.Where("cart_id = ? AND product_id = ?", cartID, productID)
	if color != "" {
		q = q.Where("color = ?", color)
	}
	var items []models.CartItem
	if err := orderedItems(q).Limit(2).Find(&items).Error; err != nil {
		return nil, err
	}
	switch {
	case len(items) == 0:
		return nil, gorm.ErrRecordNotFound
	case len(items) > 1:
		return nil, ErrAmbiguousLine
	}
	return &items[0], nil
}

// AddItem merges line into the user's cart on (product, color) or appends
// it. The cart is created on first use.
func (r *GormRepo) AddItem(ctx context.Context, userID uuid.UUID, line models.CartItem) (*models.Cart, bool, error) {
	var (
		cart    *models.Cart
		created bool
	)
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		cart, created, err = lockCart(tx, userID, true)
		if err != nil {
			return err
		}

		res := tx.Model(&models.CartItem{}).
			Where("cart_id = ? AND product_id = ? AND color = ?", cart.ID, line.ProductID, line.Color).
			Updates(map[string]any{
				"quantity": gorm.Expr("quantity + ?", line.Quantity),
				"price":    line.Price,
				"name":     line.Name,
				"image":    line.Image,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			line.ID = uuid.Nil
			line.CartID = cart.ID
			line.TotalCost = line.Price.Mul(decimal.NewFromInt(int64(line.Quantity)))
			if err := tx.Create(&line).Error; err != nil {
				return err
			}
		}

		return recalculate(tx, cart)
	})
	if err != nil {
		return nil, false, err
	}
	return cart, created, nil
}

// UpdateItemQuantity sets an absolute quantity and re-snapshots the price.
func (r *GormRepo) UpdateItemQuantity(ctx context.Context, userID, productID uuid.UUID, color string, quantity uint, price decimal.Decimal) (*models.Cart, error) {
	var cart *models.Cart
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		cart, _, err = lockCart(tx, userID, false)
		if err != nil {
			return err
		}

		item, err := findLine(tx, cart.ID, productID, color)
		if err != nil {
			return err
		}
		if err := tx.Model(&models.CartItem{}).
			Where("id = ?", item.ID).
			Updates(map[string]any{"quantity": quantity, "price": price}).Error; err != nil {
			return err
		}

		return recalculate(tx, cart)
	})
	if err != nil {
		return nil, err
	}
	return cart, nil
}

// RemoveItem decrements a line by one and deletes it when it reaches zero.
// The stored price is kept.
func (r *GormRepo) RemoveItem(ctx context.Context, userID, productID uuid.UUID, color string) (*models.Cart, bool, error) {
	var (
		cart    *models.Cart
		deleted bool
	)
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		cart, _, err = lockCart(tx, userID, false)
		if err != nil {
			return err
		}

		item, err := findLine(tx, cart.ID, productID, color)
		if err != nil {
			return err
		}
		if item.Quantity > 1 {
			if err := tx.Model(&models.CartItem{}).
				Where("id = ?", item.ID).
				Update("quantity", gorm.Expr("quantity - 1")).Error; err != nil {
				return err
			}
		} else {
			if err := tx.Where("id = ?", item.ID).Delete(&models.CartItem{}).Error; err != nil {
				return err
			}
			deleted = true
		}

		return recalculate(tx, cart)
	})
	if err != nil {
		return nil, false, err
	}
	return cart, deleted, nil
}

// ClearCart empties the user's cart but keeps the row. A missing cart is not
// an error.
func (r *GormRepo) ClearCart(ctx context.Context, userID uuid.UUID) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		_, err := clearCart(tx, userID)
		return err
	})
}

// clearCart reports whether there was anything to clear.
func clearCart(tx *gorm.DB, userID uuid.UUID) (bool, error) {
	cart, _, err := lockCart(tx, userID, false)
	if err != nil {
		if IsNotFound(err) {
			return false, nil
		}
		return false, err
	}

	res := tx.Where("cart_id = ?", cart.ID).Delete(&models.CartItem{})
	if res.Error != nil {
		return false, res.Error
	}
	if err := tx.Model(&models.Cart{}).
		Where("id = ?", cart.ID).
		Update("total_cart_cost", decimal.Zero).Error; err != nil {
		return false, err
	}
	return res.RowsAffected > 0, nil
}
