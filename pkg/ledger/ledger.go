package ledger

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/gowebpki/jcs"
)

// Ledger is the read-only customer and order dataset.
type Ledger struct {
	customers   []Customer
	byID        map[string]int
	orders      []Order
	ordersByCID map[string][]int
	fingerprint string
}

// New builds a ledger. Customers keep their input order; duplicate customer
// ids are rejected. Orders may reference customers that are not in the
// customers table; they still count toward population totals.
func New(customers []Customer, orders []Order) (*Ledger, error) {
	l := &Ledger{
		customers:   make([]Customer, 0, len(customers)),
		byID:        make(map[string]int, len(customers)),
		orders:      make([]Order, 0, len(orders)),
		ordersByCID: make(map[string][]int),
	}

	for _, c := range customers {
		if c.CustomerID == "" {
			return nil, fmt.Errorf("ledger: customer with empty id")
		}
		if _, dup := l.byID[c.CustomerID]; dup {
			return nil, fmt.Errorf("ledger: duplicate customer %q", c.CustomerID)
		}
		l.byID[c.CustomerID] = len(l.customers)
		l.customers = append(l.customers, c)
	}

	for _, o := range orders {
		if o.CustomerID == "" {
			return nil, fmt.Errorf("ledger: order %q has no customer", o.OrderID)
		}
		if o.Quantity <= 0 {
			return nil, fmt.Errorf("ledger: order %q has non-positive quantity %d", o.OrderID, o.Quantity)
		}
		if o.UnitPrice < 0 {
			return nil, fmt.Errorf("ledger: order %q has negative price", o.OrderID)
		}
		o.OrderDate = truncateDay(o.OrderDate)
		l.ordersByCID[o.CustomerID] = append(l.ordersByCID[o.CustomerID], len(l.orders))
		l.orders = append(l.orders, o)
	}

	fp, err := computeFingerprint(l.customers, l.orders)
	if err != nil {
		return nil, fmt.Errorf("ledger: fingerprint: %w", err)
	}
	l.fingerprint = fp

	return l, nil
}

// Customer returns the customer record and whether it exists.
func (l *Ledger) Customer(id string) (Customer, bool) {
	i, ok := l.byID[id]
	if !ok {
		return Customer{}, false
	}
	return l.customers[i], true
}

// Customers returns a copy of the customers table in load order.
func (l *Ledger) Customers() []Customer {
	out := make([]Customer, len(l.customers))
	copy(out, l.customers)
	return out
}

// CustomerIDs returns every customer id in load order.
func (l *Ledger) CustomerIDs() []string {
	ids := make([]string, len(l.customers))
	for i, c := range l.customers {
		ids[i] = c.CustomerID
	}
	return ids
}

// Orders returns a copy of the customer's orders; empty for unknown ids.
func (l *Ledger) Orders(customerID string) []Order {
	idx := l.ordersByCID[customerID]
	out := make([]Order, len(idx))
	for i, j := range idx {
		out[i] = l.orders[j]
	}
	return out
}

// AllOrders returns a copy of every order.
func (l *Ledger) AllOrders() []Order {
	out := make([]Order, len(l.orders))
	copy(out, l.orders)
	return out
}

// OrderCount returns the number of orders in the ledger.
func (l *Ledger) OrderCount() int {
	return len(l.orders)
}

// TotalSpent returns the sum of line totals for one customer.
func (l *Ledger) TotalSpent(customerID string) float64 {
	var total float64
	for _, j := range l.ordersByCID[customerID] {
		total += l.orders[j].LineTotal()
	}
	return total
}

// MaxTotalSpent returns the largest per-customer spend across the whole
// order table. It walks every order; callers that score many customers in
// one pass should compute it once.
func (l *Ledger) MaxTotalSpent() float64 {
	var maxSpent float64
	for cid := range l.ordersByCID {
		if t := l.TotalSpent(cid); t > maxSpent {
			maxSpent = t
		}
	}
	return maxSpent
}

// Summary aggregates a customer's orders as of now. Unknown customers and
// customers without orders get the zero summary.
func (l *Ledger) Summary(customerID string, now time.Time) OrderSummary {
	idx := l.ordersByCID[customerID]
	if len(idx) == 0 {
		return OrderSummary{}
	}

	var total float64
	var last time.Time
	for _, j := range idx {
		o := l.orders[j]
		total += o.LineTotal()
		if o.OrderDate.After(last) {
			last = o.OrderDate
		}
	}

	days := DaysBetween(last, now)
	if days < 0 {
		days = 0
	}

	return OrderSummary{
		TotalOrders:        len(idx),
		TotalSpent:         total,
		AvgOrderValue:      total / float64(len(idx)),
		LastOrderDate:      &last,
		DaysSinceLastOrder: &days,
	}
}

// Behavior reports the top three SKUs by quantity and the mean gap between
// consecutive order dates.
func (l *Ledger) Behavior(customerID string) PurchaseBehavior {
	orders := l.Orders(customerID)
	if len(orders) == 0 {
		return PurchaseBehavior{TopProducts: []ProductCount{}}
	}

	qty := make(map[string]int)
	for _, o := range orders {
		qty[o.SKU] += o.Quantity
	}
	top := make([]ProductCount, 0, len(qty))
	for sku, n := range qty {
		top = append(top, ProductCount{SKU: sku, Quantity: n})
	}
	sort.Slice(top, func(i, j int) bool {
		if top[i].Quantity != top[j].Quantity {
			return top[i].Quantity > top[j].Quantity
		}
		return top[i].SKU < top[j].SKU
	})
	if len(top) > 3 {
		top = top[:3]
	}

	behavior := PurchaseBehavior{TopProducts: top}
	if len(orders) > 1 {
		dates := make([]time.Time, len(orders))
		for i, o := range orders {
			dates[i] = o.OrderDate
		}
		sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
		var gaps int
		for i := 1; i < len(dates); i++ {
			gaps += DaysBetween(dates[i-1], dates[i])
		}
		avg := float64(gaps) / float64(len(dates)-1)
		behavior.AvgDaysBetweenOrders = &avg
	}
	return behavior
}

// Fingerprint identifies the ledger contents. Two ledgers built from the same
// rows share a fingerprint regardless of map iteration order.
func (l *Ledger) Fingerprint() string {
	return l.fingerprint
}

func computeFingerprint(customers []Customer, orders []Order) (string, error) {
	raw, err := json.Marshal(struct {
		Customers []Customer `json:"customers"`
		Orders    []Order    `json:"orders"`
	}{customers, orders})
	if err != nil {
		return "", err
	}
	canonical, err := jcs.Transform(raw)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}
