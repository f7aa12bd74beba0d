package ledger

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// File names expected by the file-backed sources.
const (
	CustomersFile = "customers.csv"
	OrdersFile    = "orders.csv"
)

var (
	customerColumns = []string{"customer_id", "name", "segment", "territory", "credit_terms"}
	orderColumns    = []string{"customer_id", "order_id", "order_date", "sku", "qty", "price"}
)

// CSVSource reads customers.csv and orders.csv from a directory.
type CSVSource struct {
	Dir string
}

func NewCSVSource(dir string) *CSVSource {
	return &CSVSource{Dir: dir}
}

func (s *CSVSource) Name() string { return "csv:" + s.Dir }

func (s *CSVSource) Load(_ context.Context) (*Ledger, error) {
	cf, err := os.Open(filepath.Join(s.Dir, CustomersFile))
	if err != nil {
		return nil, fmt.Errorf("csv source: %w", err)
	}
	defer func() { _ = cf.Close() }()

	of, err := os.Open(filepath.Join(s.Dir, OrdersFile))
	if err != nil {
		return nil, fmt.Errorf("csv source: %w", err)
	}
	defer func() { _ = of.Close() }()

	return ReadCSV(cf, of)
}

// ReadCSV parses the two tables and builds a ledger. Columns are located by
// header name, so extra columns and any column order are accepted.
func ReadCSV(customers, orders io.Reader) (*Ledger, error) {
	cs, err := ReadCustomersCSV(customers)
	if err != nil {
		return nil, err
	}
	ords, err := ReadOrdersCSV(orders)
	if err != nil {
		return nil, err
	}
	return New(cs, ords)
}

// ReadCustomersCSV parses a customers table.
func ReadCustomersCSV(r io.Reader) ([]Customer, error) {
	rows, idx, err := readTable(r, customerColumns)
	if err != nil {
		return nil, fmt.Errorf("customers csv: %w", err)
	}
	out := make([]Customer, 0, len(rows))
	for _, row := range rows {
		out = append(out, Customer{
			CustomerID:  strings.TrimSpace(row[idx["customer_id"]]),
			Name:        strings.TrimSpace(row[idx["name"]]),
			Segment:     strings.TrimSpace(row[idx["segment"]]),
			Territory:   strings.TrimSpace(row[idx["territory"]]),
			CreditTerms: strings.TrimSpace(row[idx["credit_terms"]]),
		})
	}
	return out, nil
}

// ReadOrdersCSV parses an orders table.
func ReadOrdersCSV(r io.Reader) ([]Order, error) {
	rows, idx, err := readTable(r, orderColumns)
	if err != nil {
		return nil, fmt.Errorf("orders csv: %w", err)
	}
	out := make([]Order, 0, len(rows))
	for line, row := range rows {
		o, err := parseOrder(
			row[idx["customer_id"]], row[idx["order_id"]], row[idx["order_date"]],
			row[idx["sku"]], row[idx["qty"]], row[idx["price"]],
		)
		if err != nil {
			return nil, fmt.Errorf("orders csv row %d: %w", line+2, err)
		}
		out = append(out, o)
	}
	return out, nil
}

func parseOrder(customerID, orderID, date, sku, qty, price string) (Order, error) {
	d, err := ParseDate(strings.TrimSpace(date))
	if err != nil {
		return Order{}, fmt.Errorf("order_date %q: %w", date, err)
	}
	q, err := strconv.Atoi(strings.TrimSpace(qty))
	if err != nil {
		return Order{}, fmt.Errorf("qty %q: %w", qty, err)
	}
	p, err := strconv.ParseFloat(strings.TrimSpace(price), 64)
	if err != nil {
		return Order{}, fmt.Errorf("price %q: %w", price, err)
	}
	return Order{
		CustomerID: strings.TrimSpace(customerID),
		OrderID:    strings.TrimSpace(orderID),
		OrderDate:  d,
		SKU:        strings.TrimSpace(sku),
		Quantity:   q,
		UnitPrice:  p,
	}, nil
}

func readTable(r io.Reader, required []string) ([][]string, map[string]int, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil, fmt.Errorf("empty table")
	}
	if err != nil {
		return nil, nil, err
	}

	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, col := range required {
		if _, ok := idx[col]; !ok {
			return nil, nil, fmt.Errorf("missing column %q", col)
		}
	}

	rows, err := cr.ReadAll()
	if err != nil {
		return nil, nil, err
	}
	return rows, idx, nil
}
