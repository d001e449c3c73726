package httpx

import (
	"github.com/rahulrai17/shoply-checkout/internal/cart"
	"github.com/rahulrai17/shoply-checkout/internal/order"
	"github.com/rahulrai17/shoply-checkout/internal/store"
)

type AddItemRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type UpdateItemRequest struct {
	Delta int `json:"delta"`
}

type PlaceOrderRequest struct {
	AddressID      string `json:"address_id"`
	PaymentMethod  string `json:"payment_method"`
	PaymentDetails string `json:"payment_details"`
}

type RestockRequest struct {
	Delta int `json:"delta"`
}

type PriceChangeRequest struct {
	Price    float64 `json:"price"`
	Discount float64 `json:"discount"`
}

type UpdateStatusRequest struct {
	Status string `json:"status"`
}

type CartResponse struct {
	ID         string             `json:"id"`
	UserID     string             `json:"user_id"`
	TotalPrice float64            `json:"total_price"`
	Items      []CartItemResponse `json:"items"`
}

type CartItemResponse struct {
	ProductID string  `json:"product_id"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unit_price"`
	Discount  float64 `json:"discount"`
	AddedAt   string  `json:"added_at"`
}

type OrderResponse struct {
	ID            string              `json:"id"`
	UserID        string              `json:"user_id"`
	AddressID     string              `json:"address_id"`
	PaymentMethod string              `json:"payment_method"`
	TotalAmount   float64             `json:"total_amount"`
	Status        string              `json:"status"`
	Items         []OrderItemResponse `json:"items"`
	CreatedAt     string              `json:"created_at"`
}

type OrderItemResponse struct {
	ProductID string  `json:"product_id"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unit_price"`
	Discount  float64 `json:"discount"`
}

type StatusMessage struct {
	Message string `json:"message"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`

	// Populated for insufficient_stock / unavailable so the client can act
	// without parsing the message.
	ProductID string `json:"product_id,omitempty"`
	Requested int    `json:"requested,omitempty"`
	Available int    `json:"available,omitempty"`
}

func mapCartToResponse(c *cart.Cart) CartResponse {
	items := make([]CartItemResponse, 0, len(c.Items))
	for _, it := range c.Items {
		items = append(items, CartItemResponse{
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
			Discount:  it.Discount,
			AddedAt:   store.FormatTime(it.AddedAt),
		})
	}
	return CartResponse{
		ID:         c.ID,
		UserID:     c.UserID,
		TotalPrice: c.TotalPrice,
		Items:      items,
	}
}

func mapOrderToResponse(o *order.Order) OrderResponse {
	items := make([]OrderItemResponse, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, OrderItemResponse{
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
			Discount:  it.Discount,
		})
	}
	return OrderResponse{
		ID:            o.ID,
		UserID:        o.UserID,
		AddressID:     o.AddressID,
		PaymentMethod: o.PaymentMethod,
		TotalAmount:   o.TotalAmount,
		Status:        string(o.Status),
		Items:         items,
		CreatedAt:     store.FormatTime(o.CreatedAt),
	}
}
