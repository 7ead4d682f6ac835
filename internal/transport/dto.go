package transport

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Skotchmaster/custom_stores/internal/gateway"
	"github.com/Skotchmaster/custom_stores/internal/models"
)

type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type LoginResult struct {
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	AccessExp    time.Time    `json:"access_expires_at"`
	RefreshExp   time.Time    `json:"refresh_expires_at"`
	IsAdmin      bool         `json:"is_admin"`
	User         *models.User `json:"user,omitempty"`
}

type VerifyEmailRequest struct {
	Code string `json:"code"`
}

type UpdateProfileRequest struct {
	Name     *string `json:"name"`
	Email    *string `json:"email"`
	Password *string `json:"password"`
	Phone    *string `json:"phone"`
}

type AddressRequest struct {
	Street  string `json:"street"`
	City    string `json:"city"`
	State   string `json:"state"`
	ZipCode string `json:"zipCode"`
	Country string `json:"country"`
}

func (a AddressRequest) Model() models.Address {
	return models.Address{
		Street:  a.Street,
		City:    a.City,
		State:   a.State,
		ZipCode: a.ZipCode,
		Country: a.Country,
	}
}

type ForgotPasswordRequest struct {
	Email string `json:"email"`
}

type ResetPasswordRequest struct {
	Password string `json:"password"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type CreateCategoryRequest struct {
	Name  string `json:"name"`
	Image string `json:"image"`
}

type PatchCategoryRequest struct {
	Name  *string `json:"name"`
	Image *string `json:"image"`
}

type CreateProductRequest struct {
	Name          string                `json:"name"`
	Description   string                `json:"description"`
	ActualPrice   decimal.Decimal       `json:"actualPrice"`
	DiscountPrice decimal.Decimal       `json:"discountPrice"`
	Rating        float64               `json:"rating"`
	Colors        []models.ProductColor `json:"colors"`
	PrimaryImage  string                `json:"primaryImage"`
	Features      string                `json:"features"`
	CategoryID    uuid.UUID             `json:"categoryId"`
	IsNewArrival  bool                  `json:"isNewArrival"`
	IsFeatured    bool                  `json:"isFeatured"`
	InStock       *bool                 `json:"inStock"`
}

type PatchProductRequest struct {
	Name          *string                `json:"name"`
	Description   *string                `json:"description"`
	ActualPrice   *decimal.Decimal       `json:"actualPrice"`
	DiscountPrice *decimal.Decimal       `json:"discountPrice"`
	Rating        *float64               `json:"rating"`
	Colors        *[]models.ProductColor `json:"colors"`
	PrimaryImage  *string                `json:"primaryImage"`
	Features      *string                `json:"features"`
	CategoryID    *uuid.UUID             `json:"categoryId"`
	IsNewArrival  *bool                  `json:"isNewArrival"`
	IsFeatured    *bool                  `json:"isFeatured"`
	InStock       *bool                  `json:"inStock"`
}

type AddToCartRequest struct {
	ProductID uuid.UUID `json:"productId"`
	Quantity  int       `json:"quantity"`
	Color     string    `json:"color"`
}

type UpdateCartItemRequest struct {
	Quantity int    `json:"quantity"`
	Color    string `json:"color"`
}

type RemoveCartItemResponse struct {
	ProductID uuid.UUID    `json:"productId"`
	Deleted   bool         `json:"deleted"`
	Cart      *models.Cart `json:"cart"`
}

type CreateOrderItem struct {
	ProductID uuid.UUID `json:"productId"`
	Quantity  int       `json:"quantity"`
	Color     string    `json:"color"`
}

type CreateOrderRequest struct {
	Products        []CreateOrderItem `json:"products"`
	DeliveryAddress AddressRequest    `json:"deliveryAddress"`
	ContactNumber   string            `json:"contactNumber"`
	OrderNotes      string            `json:"orderNotes"`
	TotalPrice      *decimal.Decimal  `json:"totalPrice"`
}

type UpdateOrderRequest struct {
	Status          *string `json:"status"`
	TrackingID      *string `json:"trackingId"`
	DeliveryPartner *string `json:"deliveryPartner"`
}

type InitiatePaymentResponse struct {
	GatewayOrder *gateway.Order `json:"gatewayOrder"`
	CreatedOrder *models.Order  `json:"createdOrder"`
}

type VerifyPaymentRequest struct {
	GatewayOrderID   string     `json:"gateway_order_id"`
	GatewayPaymentID string     `json:"gateway_payment_id"`
	Signature        string     `json:"signature"`
	CartID           *uuid.UUID `json:"cartId"`
}

type VerifyPaymentResponse struct {
	Message string        `json:"message"`
	Order   *models.Order `json:"order"`
}

type GatewayOrderRequest struct {
	GatewayOrderID string `json:"gatewayOrderId"`
}

type GatewayKeyResponse struct {
	Key string `json:"key"`
}
