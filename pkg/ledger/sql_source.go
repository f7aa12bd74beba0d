package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// SQLSource reads the customers and orders tables through database/sql.
// It works against Postgres (lib/pq) and SQLite (modernc.org/sqlite); the
// caller opens the handle with the driver it wants.
type SQLSource struct {
	db    *sql.DB
	label string
}

func NewSQLSource(db *sql.DB, label string) *SQLSource {
	return &SQLSource{db: db, label: label}
}

func (s *SQLSource) Name() string { return "sql:" + s.label }

const sqlSchema = `
CREATE TABLE IF NOT EXISTS customers (
	customer_id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	segment TEXT,
	territory TEXT,
	credit_terms TEXT
);
CREATE TABLE IF NOT EXISTS orders (
	order_id TEXT PRIMARY KEY,
	customer_id TEXT NOT NULL,
	order_date TEXT NOT NULL,
	sku TEXT NOT NULL,
	qty INTEGER NOT NULL,
	price DOUBLE PRECISION NOT NULL
);
`

// Init creates the tables when they do not exist.
func (s *SQLSource) Init(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqlSchema)
	return err
}

// Seed writes the given rows in a single transaction, replacing rows that
// share a primary key.
func (s *SQLSource) Seed(ctx context.Context, customers []Customer, orders []Order) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("seed: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, c := range customers {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO customers (customer_id, name, segment, territory, credit_terms)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (customer_id) DO UPDATE SET
				name = EXCLUDED.name,
				segment = EXCLUDED.segment,
				territory = EXCLUDED.territory,
				credit_terms = EXCLUDED.credit_terms
		`, c.CustomerID, c.Name, c.Segment, c.Territory, c.CreditTerms)
		if err != nil {
			return fmt.Errorf("seed customer %s: %w", c.CustomerID, err)
		}
	}

	for _, o := range orders {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO orders (order_id, customer_id, order_date, sku, qty, price)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (order_id) DO UPDATE SET
				customer_id = EXCLUDED.customer_id,
				order_date = EXCLUDED.order_date,
				sku = EXCLUDED.sku,
				qty = EXCLUDED.qty,
				price = EXCLUDED.price
		`, o.OrderID, o.CustomerID, o.OrderDate.Format(DateLayout), o.SKU, o.Quantity, o.UnitPrice)
		if err != nil {
			return fmt.Errorf("seed order %s: %w", o.OrderID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("seed: commit: %w", err)
	}
	return nil
}

func (s *SQLSource) Load(ctx context.Context) (*Ledger, error) {
	customers, err := s.loadCustomers(ctx)
	if err != nil {
		return nil, err
	}
	orders, err := s.loadOrders(ctx)
	if err != nil {
		return nil, err
	}
	return New(customers, orders)
}

func (s *SQLSource) loadCustomers(ctx context.Context) ([]Customer, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT customer_id, name, segment, territory, credit_terms FROM customers ORDER BY customer_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query customers: %w", err)
	}
	defer func() { _ = rows.Close() }()

	result := make([]Customer, 0)
	for rows.Next() {
		var c Customer
		var segment, territory, terms sql.NullString
		if err := rows.Scan(&c.CustomerID, &c.Name, &segment, &territory, &terms); err != nil {
			return nil, err
		}
		c.Segment, c.Territory, c.CreditTerms = segment.String, territory.String, terms.String
		result = append(result, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *SQLSource) loadOrders(ctx context.Context) ([]Order, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT customer_id, order_id, order_date, sku, qty, price FROM orders ORDER BY order_date, order_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer func() { _ = rows.Close() }()

	result := make([]Order, 0)
	for rows.Next() {
		var o Order
		var date any
		if err := rows.Scan(&o.CustomerID, &o.OrderID, &date, &o.SKU, &o.Quantity, &o.UnitPrice); err != nil {
			return nil, err
		}
		d, err := scanDate(date)
		if err != nil {
			return nil, fmt.Errorf("order %s: %w", o.OrderID, err)
		}
		o.OrderDate = d
		result = append(result, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// scanDate accepts the shapes drivers hand back for a date column: a native
// time for DATE/TIMESTAMP columns, text or bytes for TEXT columns.
func scanDate(v any) (time.Time, error) {
	switch d := v.(type) {
	case time.Time:
		return d, nil
	case string:
		return ParseDate(d)
	case []byte:
		return ParseDate(string(d))
	default:
		return time.Time{}, fmt.Errorf("unsupported order_date type %T", v)
	}
}
