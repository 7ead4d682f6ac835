package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Skotchmaster/custom_stores/internal/logging"
	"github.com/Skotchmaster/custom_stores/internal/models"
	"github.com/Skotchmaster/custom_stores/internal/mykafka"
	"github.com/Skotchmaster/custom_stores/internal/repo"
)

type CartService struct {
	Repo   *repo.GormRepo
	Events mykafka.Publisher
}

// emptyCart is what an absent cart looks like to callers.
func emptyCart(userID uuid.UUID) *models.Cart {
	return &models.Cart{UserID: userID, TotalCartCost: decimal.Zero, CartItems: []models.CartItem{}}
}

func (s *CartService) GetCart(ctx context.Context, userID uuid.UUID) (*models.Cart, error) {
	cart, err := s.Repo.GetCart(ctx, userID)
	if err != nil {
		if repo.IsNotFound(err) {
			return emptyCart(userID), nil
		}
		return nil, err
	}
	if cart.CartItems == nil {
		cart.CartItems = []models.CartItem{}
	}
	return cart, nil
}

// sellable loads the product a cart line points at and refuses it when it
// is gone or out of stock.
func (s *CartService) sellable(ctx context.Context, productID uuid.UUID) (*models.Product, error) {
	prod, err := s.Repo.GetProduct(ctx, productID)
	if err != nil {
		if repo.IsNotFound(err) {
			return nil, fmt.Errorf("%w: product", ErrNotFound)
		}
		return nil, err
	}
	if !prod.InStock {
		return nil, fmt.Errorf("%w: %s", ErrOutOfStock, prod.Name)
	}
	return prod, nil
}

// AddItem returns the updated cart and whether the cart itself was created
// by this call.
func (s *CartService) AddItem(ctx context.Context, userID, productID uuid.UUID, quantity int, color string) (*models.Cart, bool, error) {
	color = strings.TrimSpace(color)
	if productID == uuid.Nil {
		return nil, false, fmt.Errorf("%w: productId required", ErrValidation)
	}
	if quantity < 1 {
		return nil, false, fmt.Errorf("%w: quantity must be at least 1", ErrValidation)
	}
	if color == "" {
		return nil, false, fmt.Errorf("%w: color required", ErrValidation)
	}

	prod, err := s.sellable(ctx, productID)
	if err != nil {
		return nil, false, err
	}

	cart, created, err := s.Repo.AddItem(ctx, userID, models.CartItem{
		ProductID: prod.ID,
		Color:     color,
		Name:      prod.Name,
		Price:     prod.DiscountPrice,
		Image:     prod.PrimaryImage,
		Quantity:  uint(quantity),
	})
	if err != nil {
		return nil, false, err
	}

	publish(ctx, s.Events, mykafka.TopicCartEvents, userID.String(), map[string]any{
		"type":      "cart_item_added",
		"userID":    userID,
		"productID": productID,
		"color":     color,
		"quantity":  quantity,
	})
	return cart, created, nil
}

func (s *CartService) UpdateItemQuantity(ctx context.Context, userID, productID uuid.UUID, quantity int, color string) (*models.Cart, error) {
	if quantity < 1 {
		return nil, fmt.Errorf("%w: quantity must be at least 1", ErrValidation)
	}
	prod, err := s.sellable(ctx, productID)
	if err != nil {
		return nil, err
	}

	cart, err := s.Repo.UpdateItemQuantity(ctx, userID, productID, strings.TrimSpace(color), uint(quantity), prod.DiscountPrice)
	if err != nil {
		return nil, lineError(err)
	}

	publish(ctx, s.Events, mykafka.TopicCartEvents, userID.String(), map[string]any{
		"type":      "cart_item_updated",
		"userID":    userID,
		"productID": productID,
		"quantity":  quantity,
	})
	return cart, nil
}

func (s *CartService) RemoveItem(ctx context.Context, userID, productID uuid.UUID, color string) (*models.Cart, bool, error) {
	cart, deleted, err := s.Repo.RemoveItem(ctx, userID, productID, strings.TrimSpace(color))
	if err != nil {
		return nil, false, lineError(err)
	}

	publish(ctx, s.Events, mykafka.TopicCartEvents, userID.String(), map[string]any{
		"type":      "cart_item_removed",
		"userID":    userID,
		"productID": productID,
		"deleted":   deleted,
	})
	return cart, deleted, nil
}

func lineError(err error) error {
	switch {
	case repo.IsNotFound(err):
		return fmt.Errorf("%w: cart item", ErrNotFound)
	case errors.Is(err, repo.ErrAmbiguousLine):
		return fmt.Errorf("%w: color required, %v", ErrValidation, err)
	}
	return err
}

func (s *CartService) ClearCart(ctx context.Context, userID uuid.UUID) error {
	if err := s.Repo.ClearCart(ctx, userID); err != nil {
		return err
	}
	logging.FromContext(ctx).Debug("cart_cleared", "user_id", userID)
	publish(ctx, s.Events, mykafka.TopicCartEvents, userID.String(), map[string]any{
		"type":   "cart_cleared",
		"userID": userID,
	})
	return nil
}
