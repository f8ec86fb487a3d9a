package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

// OrderStatus is the fulfilment state recorded against a client order.
type OrderStatus string

const (
	OrderStatusConfirmed OrderStatus = "Confirmed"
	OrderStatusCancelled OrderStatus = "Cancelled"
	OrderStatusDelivered OrderStatus = "Delivered"
	OrderStatusShipped   OrderStatus = "Shipped"
	OrderStatusReturned  OrderStatus = "Returned"
)

var orderStatuses = []OrderStatus{
	OrderStatusConfirmed,
	OrderStatusCancelled,
	OrderStatusDelivered,
	OrderStatusShipped,
	OrderStatusReturned,
}

// OrderStatuses lists every known status in display order.
func OrderStatuses() []OrderStatus {
	out := make([]OrderStatus, len(orderStatuses))
	copy(out, orderStatuses)
	return out
}

// ParseOrderStatus matches s case-insensitively against the known statuses.
func ParseOrderStatus(s string) (OrderStatus, bool) {
	s = strings.TrimSpace(s)
	for _, st := range orderStatuses {
		if strings.EqualFold(string(st), s) {
			return st, true
		}
	}
	return "", false
}

// Valid reports whether the status is one of the known values.
func (s OrderStatus) Valid() bool {
	for _, st := range orderStatuses {
		if s == st {
			return true
		}
	}
	return false
}

// Client is one row of the Clients sheet. Index is the zero-based row
// position used by update and delete calls.
type Client struct {
	Index   int             `json:"index"`
	Name    string          `json:"name"`
	Phone   string          `json:"phone"`
	City    string          `json:"city"`
	Address string          `json:"address"`
	Items   string          `json:"items"`
	Qty     int             `json:"qty"`
	Price   decimal.Decimal `json:"price"`
	Status  OrderStatus     `json:"status"`
	Note    string          `json:"note"`
	Date    string          `json:"date"`
}

// Recipient holds the text values a message template can reference.
type Recipient struct {
	Phone string
	Name  string
	City  string
	Item  string
	Price string
}

// Recipient projects the client onto the personalization fields.
func (c Client) Recipient() Recipient {
	return Recipient{
		Phone: c.Phone,
		Name:  c.Name,
		City:  c.City,
		Item:  c.Items,
		Price: c.Price.String(),
	}
}

// Matches reports whether the free-text query hits the client's name or
// city (case-insensitive) or its phone number.
func (c Client) Matches(query string) bool {
	if query == "" {
		return true
	}
	q := strings.ToLower(query)
	return strings.Contains(strings.ToLower(c.Name), q) ||
		strings.Contains(strings.ToLower(c.City), q) ||
		strings.Contains(c.Phone, query)
}
