package domain

import (
	"fmt"
	"strings"
	"time"
)

type Ratings struct {
	Average float64 `json:"average"`
	Count   int     `json:"count"`
	Sum     int     `json:"sum"`
}

// RatingsFrom derives the aggregate from count and sum. Average is 0 when
// there are no active reviews.
func RatingsFrom(count, sum int) Ratings {
	if count <= 0 {
		return Ratings{}
	}
	return Ratings{Average: float64(sum) / float64(count), Count: count, Sum: sum}
}

type Product struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	PriceCents int64     `json:"price_cents"`
	Stock      int       `json:"stock"`
	IsActive   bool      `json:"is_active"`
	Ratings    Ratings   `json:"ratings"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type Address struct {
	Name       string `json:"name" validate:"required,max=200"`
	Line1      string `json:"line1" validate:"required,max=200"`
	Line2      string `json:"line2,omitempty" validate:"max=200"`
	City       string `json:"city" validate:"required,max=100"`
	PostalCode string `json:"postal_code" validate:"required,max=20"`
	Country    string `json:"country" validate:"required,max=60"`
}

// LineItem holds the unit price frozen at checkout.
type LineItem struct {
	ProductID  string `json:"product_id"`
	Name       string `json:"name"`
	Qty        int    `json:"qty"`
	PriceCents int64  `json:"price_cents"`
}

type Order struct {
	ID              string        `json:"id"`
	Number          string        `json:"order_number"`
	UserID          string        `json:"user_id"`
	Items           []LineItem    `json:"items"`
	SubTotalCents   int64         `json:"sub_total_cents"`
	ShippingCents   int64         `json:"shipping_cents"`
	TaxCents        int64         `json:"tax_cents"`
	TotalCents      int64         `json:"total_cents"`
	ShippingAddress Address       `json:"shipping_address"`
	PaymentMethod   string        `json:"payment_method"`
	PaymentStatus   PaymentStatus `json:"payment_status"`
	Status          Status        `json:"status"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

// Clone returns a copy that shares no slice memory with o.
func (o Order) Clone() Order {
	o.Items = append([]LineItem(nil), o.Items...)
	return o
}

type Review struct {
	ID        string    `json:"id"`
	ProductID string    `json:"product_id"`
	UserID    string    `json:"user_id"`
	Rating    int       `json:"rating"`
	Title     string    `json:"title"`
	Comment   string    `json:"comment"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// UserProduct is the purchase ledger entry for one (user, product) pair.
// A zero LastPurchasedAt means the product was never delivered to the user.
type UserProduct struct {
	UserID          string    `json:"user_id"`
	ProductID       string    `json:"product_id"`
	PurchaseCount   int       `json:"purchase_count"`
	LastPurchasedAt time.Time `json:"last_purchased_at,omitempty"`
	IsReviewed      bool      `json:"is_reviewed"`
}

type Role string

const (
	RoleCustomer Role = "customer"
	RoleSeller   Role = "seller"
	RoleAdmin    Role = "admin"
)

// ParseRole maps a role name to a Role. An empty name is a customer.
func ParseRole(s string) (Role, error) {
	switch r := Role(strings.ToLower(strings.TrimSpace(s))); r {
	case "":
		return RoleCustomer, nil
	case RoleCustomer, RoleSeller, RoleAdmin:
		return r, nil
	default:
		return "", fmt.Errorf("%w: unknown role %q", ErrValidation, s)
	}
}

// Identity is the caller as resolved by the authentication layer.
type Identity struct {
	UserID string
	Role   Role
}

func (i Identity) IsAdmin() bool { return i.Role == RoleAdmin }

// CanManageCatalog reports whether the caller may create or edit products.
func (i Identity) CanManageCatalog() bool { return i.Role == RoleAdmin || i.Role == RoleSeller }
