package ledger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSample_Totals(t *testing.T) {
	l := Sample()

	assert.Equal(t, []string{"C001", "C002", "C003", "C004"}, l.CustomerIDs())
	assert.Equal(t, 7, l.OrderCount())
	assert.InDelta(t, 60.5, l.TotalSpent("C001"), 1e-9)
	assert.InDelta(t, 12.0, l.TotalSpent("C002"), 1e-9)
	assert.InDelta(t, 28.3, l.TotalSpent("C003"), 1e-9)
	assert.InDelta(t, 14.0, l.TotalSpent("C004"), 1e-9)
	assert.InDelta(t, 60.5, l.MaxTotalSpent(), 1e-9)
}

func TestSummary(t *testing.T) {
	l := Sample()
	now := day("2025-09-15")

	s := l.Summary("C001", now)
	require.True(t, s.HasOrders())
	assert.Equal(t, 3, s.TotalOrders)
	assert.InDelta(t, 60.5/3, s.AvgOrderValue, 1e-9)
	require.NotNil(t, s.LastOrderDate)
	assert.Equal(t, day("2025-09-12"), *s.LastOrderDate)
	require.NotNil(t, s.DaysSinceLastOrder)
	assert.Equal(t, 3, *s.DaysSinceLastOrder)
}

func TestSummary_UnknownCustomer(t *testing.T) {
	s := Sample().Summary("C999", time.Now())

	assert.False(t, s.HasOrders())
	assert.Zero(t, s.TotalSpent)
	assert.Nil(t, s.LastOrderDate)
	assert.Nil(t, s.DaysSinceLastOrder)
}

func TestSummary_FutureOrderClampsToZero(t *testing.T) {
	l, err := New(
		[]Customer{{CustomerID: "X1", Name: "Future"}},
		[]Order{{CustomerID: "X1", OrderID: "O1", OrderDate: day("2026-01-10"), SKU: "A", Quantity: 1, UnitPrice: 5}},
	)
	require.NoError(t, err)

	s := l.Summary("X1", day("2026-01-01"))
	require.NotNil(t, s.DaysSinceLastOrder)
	assert.Equal(t, 0, *s.DaysSinceLastOrder)
}

func TestBehavior(t *testing.T) {
	b := Sample().Behavior("C001")

	require.Len(t, b.TopProducts, 2)
	assert.Equal(t, ProductCount{SKU: "COOK-OAT", Quantity: 5}, b.TopProducts[0])
	assert.Equal(t, ProductCount{SKU: "CAKE-CHOC", Quantity: 4}, b.TopProducts[1])
	require.NotNil(t, b.AvgDaysBetweenOrders)
	assert.InDelta(t, 11.5, *b.AvgDaysBetweenOrders, 1e-9)

	single := Sample().Behavior("C002")
	assert.Nil(t, single.AvgDaysBetweenOrders)
	assert.Empty(t, Sample().Behavior("C999").TopProducts)
}

func TestNew_Rejects(t *testing.T) {
	tests := []struct {
		name      string
		customers []Customer
		orders    []Order
	}{
		{"empty customer id", []Customer{{Name: "x"}}, nil},
		{"duplicate customer", []Customer{{CustomerID: "A"}, {CustomerID: "A"}}, nil},
		{"order without customer", nil, []Order{{OrderID: "O1", Quantity: 1}}},
		{"zero quantity", nil, []Order{{CustomerID: "A", OrderID: "O1"}}},
		{"negative price", nil, []Order{{CustomerID: "A", OrderID: "O1", Quantity: 1, UnitPrice: -1}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.customers, tt.orders)
			assert.Error(t, err)
		})
	}
}

func TestOrders_ReturnsCopy(t *testing.T) {
	l := Sample()
	orders := l.Orders("C001")
	orders[0].Quantity = 999

	assert.NotEqual(t, 999, l.Orders("C001")[0].Quantity)
}

func TestFingerprint_StableAcrossBuilds(t *testing.T) {
	a := Sample()
	b := Sample()
	assert.Equal(t, a.Fingerprint(), b.Fingerprint())
	assert.Len(t, a.Fingerprint(), 64)

	orders := SampleOrders()
	orders[0].Quantity++
	c, err := New(SampleCustomers(), orders)
	require.NoError(t, err)
	assert.NotEqual(t, a.Fingerprint(), c.Fingerprint())
}

func TestDaysBetween(t *testing.T) {
	a := time.Date(2025, 9, 1, 23, 59, 0, 0, time.UTC)
	b := time.Date(2025, 9, 2, 0, 1, 0, 0, time.UTC)
	assert.Equal(t, 1, DaysBetween(a, b))
	assert.Equal(t, -1, DaysBetween(b, a))
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2025-09-15T10:00:00Z")
	require.NoError(t, err)
	assert.Equal(t, day("2025-09-15"), d)

	_, err = ParseDate("15/09/2025")
	assert.Error(t, err)
}
