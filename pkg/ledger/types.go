// Package ledger holds the in-memory customer and order tables the assistant
// reads from, plus the sources that populate them.
//
// A Ledger is immutable once built: every accessor is safe for concurrent use
// and no accessor hands out memory that aliases the internal tables.
package ledger

import (
	"errors"
	"time"
)

// DateLayout is the ISO-8601 calendar date format used for order dates.
const DateLayout = "2006-01-02"

// ErrCustomerNotFound is returned at service boundaries for unknown ids.
var ErrCustomerNotFound = errors.New("customer not found")

// Customer is a row of the customers table.
type Customer struct {
	CustomerID  string `json:"customer_id"`
	Name        string `json:"name"`
	Segment     string `json:"segment"`
	Territory   string `json:"territory"`
	CreditTerms string `json:"credit_terms"`
}

// Order is a single order line.
type Order struct {
	CustomerID string    `json:"customer_id"`
	OrderID    string    `json:"order_id"`
	OrderDate  time.Time `json:"order_date"`
	SKU        string    `json:"sku"`
	Quantity   int       `json:"qty"`
	UnitPrice  float64   `json:"price"`
}

// LineTotal is quantity times unit price.
func (o Order) LineTotal() float64 {
	return float64(o.Quantity) * o.UnitPrice
}

// OrderSummary aggregates a customer's orders as of a reference time.
// With zero orders the monetary fields are zero and the date fields are nil.
type OrderSummary struct {
	TotalOrders        int        `json:"total_orders"`
	TotalSpent         float64    `json:"total_spent"`
	AvgOrderValue      float64    `json:"avg_order_value"`
	LastOrderDate      *time.Time `json:"last_order_date"`
	DaysSinceLastOrder *int       `json:"days_since_last_order"`
}

// HasOrders reports whether the summary covers at least one order.
func (s OrderSummary) HasOrders() bool {
	return s.TotalOrders > 0
}

// ProductCount is the quantity bought of one SKU.
type ProductCount struct {
	SKU      string `json:"sku"`
	Quantity int    `json:"quantity"`
}

// PurchaseBehavior describes ordering patterns beyond the summary totals.
type PurchaseBehavior struct {
	TopProducts          []ProductCount `json:"top_products"`
	AvgDaysBetweenOrders *float64       `json:"avg_days_between_orders"`
}

// DaysBetween returns the whole days from a to b, flooring like a calendar
// difference. Both values are reduced to their UTC date first.
func DaysBetween(a, b time.Time) int {
	da := truncateDay(a)
	db := truncateDay(b)
	return int(db.Sub(da).Hours() / 24)
}

// ParseDate parses an ISO-8601 calendar date. Longer timestamp strings are
// accepted when they start with a date.
func ParseDate(s string) (time.Time, error) {
	if len(s) > len(DateLayout) {
		s = s[:len(DateLayout)]
	}
	return time.Parse(DateLayout, s)
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
