package ledger

import "time"

func day(s string) time.Time {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		panic(err)
	}
	return t
}

// SampleCustomers is the built-in customers table used when no data source is
// available.
func SampleCustomers() []Customer {
	return []Customer{
		{CustomerID: "C001", Name: "Gourmet Gateway", Segment: "HO.RE.CA", Territory: "West", CreditTerms: "NET15"},
		{CustomerID: "C002", Name: "Snack Shack", Segment: "Retail", Territory: "East", CreditTerms: "PREPAID"},
		{CustomerID: "C003", Name: "Daily Delights", Segment: "Retail", Territory: "North", CreditTerms: "NET30"},
		{CustomerID: "C004", Name: "Leaf & Cup", Segment: "Cafe", Territory: "South", CreditTerms: "NET15"},
	}
}

// SampleOrders is the built-in orders table matching SampleCustomers.
func SampleOrders() []Order {
	return []Order{
		{CustomerID: "C001", OrderID: "SO-101", OrderDate: day("2025-08-20"), SKU: "CAKE-CHOC", Quantity: 3, UnitPrice: 12.50},
		{CustomerID: "C001", OrderID: "SO-122", OrderDate: day("2025-09-05"), SKU: "COOK-OAT", Quantity: 5, UnitPrice: 2.10},
		{CustomerID: "C002", OrderID: "SO-130", OrderDate: day("2025-09-01"), SKU: "JUICE-ORG", Quantity: 10, UnitPrice: 1.20},
		{CustomerID: "C003", OrderID: "SO-140", OrderDate: day("2025-07-30"), SKU: "CAKE-CHOC", Quantity: 1, UnitPrice: 12.50},
		{CustomerID: "C003", OrderID: "SO-155", OrderDate: day("2025-09-10"), SKU: "COFF-BEAN", Quantity: 2, UnitPrice: 7.90},
		{CustomerID: "C001", OrderID: "SO-160", OrderDate: day("2025-09-12"), SKU: "CAKE-CHOC", Quantity: 1, UnitPrice: 12.50},
		{CustomerID: "C004", OrderID: "SO-170", OrderDate: day("2025-08-01"), SKU: "TEA-GREEN", Quantity: 4, UnitPrice: 3.50},
	}
}

// Sample builds the built-in ledger.
func Sample() *Ledger {
	l, err := New(SampleCustomers(), SampleOrders())
	if err != nil {
		panic(err)
	}
	return l
}
