package models

import (
	"time"
)

type Size string

const (
	SizeS      Size = "S"
	SizeM      Size = "M"
	SizeL      Size = "L"
	SizeXL     Size = "XL"
	SizeCustom Size = "Custom"
)

func ValidSize(s Size) bool {
	switch s {
	case SizeS, SizeM, SizeL, SizeXL, SizeCustom:
		return true
	}
	return false
}

type OrderStatus string

const (
	OrderStatusPending       OrderStatus = "pending"
	OrderStatusPaid          OrderStatus = "paid"
	OrderStatusPaymentFailed OrderStatus = "payment_failed"
	OrderStatusCompleted     OrderStatus = "completed"
)

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusFailed    PaymentStatus = "failed"
)

type PaymentMethod string

const (
	PaymentMethodCard PaymentMethod = "card"
	PaymentMethodEFT  PaymentMethod = "eft"
)

// Amounts are integer minor-currency units (cents).
type Order struct {
	ID                  string      `json:"id"`
	CustomerName        string      `json:"customer_name"`
	CustomerEmail       string      `json:"customer_email"`
	CustomerPhone       string      `json:"customer_phone,omitempty"`
	Item                string      `json:"item"`
	Quantity            int         `json:"quantity"`
	Color               string      `json:"color,omitempty"`
	Size                Size        `json:"size"`
	SpecialInstructions string      `json:"special_instructions,omitempty"`
	TotalAmount         int64       `json:"total_amount"`
	Currency            string      `json:"currency"`
	Status              OrderStatus `json:"status"`
	ProcessorPaymentID  string      `json:"processor_payment_id,omitempty"`
	SubmissionID        string      `json:"submission_id,omitempty"`
	CreatedAt           time.Time   `json:"created_at"`
	UpdatedAt           time.Time   `json:"updated_at"`
}

type Payment struct {
	ID                 string        `json:"id"`
	OrderID            string        `json:"order_id"`
	Amount             int64         `json:"amount"`
	Currency           string        `json:"currency"`
	Method             PaymentMethod `json:"payment_method,omitempty"`
	Status             PaymentStatus `json:"status"`
	ProcessorPaymentID string        `json:"processor_payment_id,omitempty"`
	Reference          string        `json:"reference,omitempty"`
	CreatedAt          time.Time     `json:"created_at"`
	UpdatedAt          time.Time     `json:"updated_at"`
}

type OrderConfirmation struct {
	ID                 string    `json:"id"`
	OrderID            string    `json:"order_id"`
	ConfirmationNumber string    `json:"confirmation_number"`
	Status             string    `json:"status"`
	EstimatedDelivery  time.Time `json:"estimated_delivery,omitempty"`
	TrackingNumber     string    `json:"tracking_number,omitempty"`
	Notes              string    `json:"notes,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// CartItem is the pre-checkout line item. Carts live client-side before
// sign-in and are merged into the persisted cart afterwards; a cart becomes
// an Order only at checkout time.
type CartItem struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id,omitempty"`
	ProductID    string    `json:"product_id"`
	ProductTitle string    `json:"product_title"`
	ProductImage string    `json:"product_image,omitempty"`
	ProductPrice string    `json:"product_price"`
	Size         string    `json:"size,omitempty"`
	Color        string    `json:"color,omitempty"`
	Quantity     int       `json:"quantity"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// PaymentResult is the outcome reported by the processor's client-side
// widget. It is never trusted on its own: a success result only triggers a
// server-side verification call.
type PaymentResult struct {
	Success       bool   `json:"success"`
	TransactionID string `json:"transaction_id,omitempty"`
	Reason        string `json:"reason,omitempty"`
}

type OrderResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Order   *Order `json:"order,omitempty"`
}
