// Package sqlite provides the SQLite-backed implementation of store.Store.
//
// WAL mode is enabled on Open so that readers never block writers and vice
// versa — the dashboard and activity feed read while the engines commit.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/jcmexdev/stockroom/internal/domain"
	"github.com/jcmexdev/stockroom/internal/store"

	// Register the pure-Go SQLite driver.
	// We use modernc.org/sqlite instead of mattn/go-sqlite3 to avoid CGO
	// requirements, making it easier to build and run in Docker (Alpine).
	_ "modernc.org/sqlite"
)

// querier is the subset of database/sql shared by *sql.DB and *sql.Tx, so
// the same query methods serve both the read side and transactions.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store is the SQLite implementation of store.Store.
type Store struct {
	db *sql.DB
	queries
}

var _ store.Store = (*Store)(nil)

// sqlTx wraps an open *sql.Tx as a store.Tx.
type sqlTx struct {
	queries
}

var _ store.Tx = (*sqlTx)(nil)

// Open opens (or creates) the SQLite database at the given path and applies
// the schema migrations.
//
//	st, err := sqlite.Open("./data/stockroom.db")
func Open(path string) (*Store, error) {
	// The pure-Go driver uses _pragma query parameters to configure connection state.
	// WAL enables concurrent readers. foreign_keys=on enforces the cascade and
	// set-null rules. busy_timeout waits for locks instead of failing immediately.
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=foreign_keys(on)&_pragma=busy_timeout(5000)", path)

	// Use "sqlite", not "sqlite3" for the modernc driver.
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %q: %w", path, err)
	}

	// SQLite performs best with a single writer connection.
	db.SetMaxOpenConns(1)

	s := &Store{db: db, queries: queries{q: db}}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the database connection. Call it with defer in main().
func (s *Store) Close() error {
	return s.db.Close()
}

// WithTx runs fn inside a single transaction. Commit happens only when fn
// returns nil; any error or panic rolls back every write made through the
// handle, leaving the store exactly as before the call.
func (s *Store) WithTx(ctx context.Context, fn func(tx store.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin tx: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(&sqlTx{queries{q: tx}}); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: commit tx: %w", err)
	}
	return nil
}

// queries holds every SQL operation. Embedded by both Store (over *sql.DB)
// and sqlTx (over *sql.Tx).
type queries struct {
	q querier
}

// ── Products ────────────────────────────────────────────────────────────────

func (s queries) Product(ctx context.Context, id int64) (*domain.Product, error) {
	const q = `
		SELECT id, name, description, price, stock_quantity, created_at
		FROM   products
		WHERE  id = ?`

	p, err := scanProduct(s.q.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("product %d: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: get product %d: %w", id, err)
	}
	return p, nil
}

func (s queries) Products(ctx context.Context) ([]domain.Product, error) {
	const q = `
		SELECT id, name, description, price, stock_quantity, created_at
		FROM   products
		ORDER  BY created_at DESC, id DESC`

	rows, err := s.q.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list products: %w", err)
	}
	defer rows.Close()

	var out []domain.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scan product: %w", err)
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func (s queries) LowStockProducts(ctx context.Context, threshold int) ([]domain.Product, error) {
	const q = `
		SELECT id, name, description, price, stock_quantity, created_at
		FROM   products
		WHERE  stock_quantity < ?
		ORDER  BY stock_quantity ASC, id ASC`

	rows, err := s.q.QueryContext(ctx, q, threshold)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list low-stock products: %w", err)
	}
	defer rows.Close()

	var out []domain.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scan product: %w", err)
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func (s queries) CreateProduct(ctx context.Context, p *domain.Product) error {
	const q = `
		INSERT INTO products (name, description, price, stock_quantity, created_at)
		VALUES (?, ?, ?, ?, ?)`

	res, err := s.q.ExecContext(ctx, q,
		p.Name, p.Description, p.Price.String(), p.StockQuantity, formatTime(p.CreatedAt))
	if err != nil {
		return fmt.Errorf("sqlite: create product %q: %w", p.Name, err)
	}
	p.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("sqlite: create product %q: %w", p.Name, err)
	}
	return nil
}

func (s queries) UpdateProduct(ctx context.Context, p *domain.Product) error {
	const q = `
		UPDATE products
		SET    name = ?, description = ?, price = ?, stock_quantity = ?
		WHERE  id = ?`

	res, err := s.q.ExecContext(ctx, q,
		p.Name, p.Description, p.Price.String(), p.StockQuantity, p.ID)
	if err != nil {
		return fmt.Errorf("sqlite: update product %d: %w", p.ID, err)
	}
	return requireRow(res, fmt.Sprintf("product %d", p.ID))
}

func (s queries) DeleteProduct(ctx context.Context, id int64) error {
	res, err := s.q.ExecContext(ctx, `DELETE FROM products WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: delete product %d: %w", id, err)
	}
	return requireRow(res, fmt.Sprintf("product %d", id))
}

func (s queries) SetProductStock(ctx context.Context, productID int64, quantity int) error {
	res, err := s.q.ExecContext(ctx,
		`UPDATE products SET stock_quantity = ? WHERE id = ?`, quantity, productID)
	if err != nil {
		return fmt.Errorf("sqlite: set stock of product %d: %w", productID, err)
	}
	return requireRow(res, fmt.Sprintf("product %d", productID))
}

// ── Orders ──────────────────────────────────────────────────────────────────

func (s queries) Order(ctx context.Context, id int64) (*domain.Order, error) {
	const q = `
		SELECT id, order_number, status, total_amount, created_at
		FROM   orders
		WHERE  id = ?`

	o, err := scanOrder(s.q.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("order %d: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: get order %d: %w", id, err)
	}

	o.Items, err = s.OrderItems(ctx, id)
	if err != nil {
		return nil, err
	}
	return o, nil
}

func (s queries) Orders(ctx context.Context) ([]domain.Order, error) {
	const q = `
		SELECT id, order_number, status, total_amount, created_at
		FROM   orders
		ORDER  BY created_at DESC, id DESC`

	rows, err := s.q.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list orders: %w", err)
	}
	defer rows.Close()

	var out []domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scan order: %w", err)
		}
		out = append(out, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range out {
		out[i].Items, err = s.OrderItems(ctx, out[i].ID)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (s queries) CreateOrder(ctx context.Context, o *domain.Order) error {
	const q = `
		INSERT INTO orders (order_number, status, total_amount, created_at)
		VALUES (?, ?, ?, ?)`

	res, err := s.q.ExecContext(ctx, q,
		o.OrderNumber, string(o.Status), o.TotalAmount.String(), formatTime(o.CreatedAt))
	if err != nil {
		return fmt.Errorf("sqlite: create order %q: %w", o.OrderNumber, err)
	}
	o.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("sqlite: create order %q: %w", o.OrderNumber, err)
	}
	return nil
}

func (s queries) SetOrderStatus(ctx context.Context, orderID int64, status domain.OrderStatus) error {
	res, err := s.q.ExecContext(ctx,
		`UPDATE orders SET status = ? WHERE id = ?`, string(status), orderID)
	if err != nil {
		return fmt.Errorf("sqlite: set status of order %d: %w", orderID, err)
	}
	return requireRow(res, fmt.Sprintf("order %d", orderID))
}

func (s queries) SetOrderTotal(ctx context.Context, orderID int64, total decimal.Decimal) error {
	res, err := s.q.ExecContext(ctx,
		`UPDATE orders SET total_amount = ? WHERE id = ?`, total.String(), orderID)
	if err != nil {
		return fmt.Errorf("sqlite: set total of order %d: %w", orderID, err)
	}
	return requireRow(res, fmt.Sprintf("order %d", orderID))
}

func (s queries) DeleteOrder(ctx context.Context, id int64) error {
	res, err := s.q.ExecContext(ctx, `DELETE FROM orders WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: delete order %d: %w", id, err)
	}
	return requireRow(res, fmt.Sprintf("order %d", id))
}

func (s queries) CountOrders(ctx context.Context) (int, error) {
	var n int
	err := s.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM orders`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("sqlite: count orders: %w", err)
	}
	return n, nil
}

// ConfirmedRevenue sums total_amount over confirmed orders. The decimal
// arithmetic happens in Go because the amounts are stored as TEXT.
func (s queries) ConfirmedRevenue(ctx context.Context) (decimal.Decimal, error) {
	const q = `SELECT total_amount FROM orders WHERE status = ?`

	rows, err := s.q.QueryContext(ctx, q, string(domain.StatusConfirmed))
	if err != nil {
		return decimal.Zero, fmt.Errorf("sqlite: confirmed revenue: %w", err)
	}
	defer rows.Close()

	total := decimal.Zero
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return decimal.Zero, fmt.Errorf("sqlite: confirmed revenue: %w", err)
		}
		amount, err := decimal.NewFromString(raw)
		if err != nil {
			return decimal.Zero, fmt.Errorf("sqlite: parse amount %q: %w", raw, err)
		}
		total = total.Add(amount)
	}
	return total, rows.Err()
}

// ── Order items ─────────────────────────────────────────────────────────────

func (s queries) OrderItems(ctx context.Context, orderID int64) ([]domain.OrderItem, error) {
	const q = `
		SELECT id, order_id, product_id, quantity, unit_price
		FROM   order_items
		WHERE  order_id = ?
		ORDER  BY id ASC`

	rows, err := s.q.QueryContext(ctx, q, orderID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list items of order %d: %w", orderID, err)
	}
	defer rows.Close()

	var out []domain.OrderItem
	for rows.Next() {
		it, err := scanOrderItem(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scan order item: %w", err)
		}
		out = append(out, *it)
	}
	return out, rows.Err()
}

func (s queries) OrderItem(ctx context.Context, orderID, itemID int64) (*domain.OrderItem, error) {
	const q = `
		SELECT id, order_id, product_id, quantity, unit_price
		FROM   order_items
		WHERE  id = ? AND order_id = ?`

	it, err := scanOrderItem(s.q.QueryRowContext(ctx, q, itemID, orderID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("order item %d: %w", itemID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: get order item %d: %w", itemID, err)
	}
	return it, nil
}

func (s queries) CreateOrderItem(ctx context.Context, item *domain.OrderItem) error {
	const q = `
		INSERT INTO order_items (order_id, product_id, quantity, unit_price)
		VALUES (?, ?, ?, ?)`

	res, err := s.q.ExecContext(ctx, q,
		item.OrderID, item.ProductID, item.Quantity, item.UnitPrice.String())
	if err != nil {
		return fmt.Errorf("sqlite: create item for order %d: %w", item.OrderID, err)
	}
	item.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("sqlite: create item for order %d: %w", item.OrderID, err)
	}
	return nil
}

func (s queries) SetOrderItemQuantity(ctx context.Context, itemID int64, quantity int) error {
	res, err := s.q.ExecContext(ctx,
		`UPDATE order_items SET quantity = ? WHERE id = ?`, quantity, itemID)
	if err != nil {
		return fmt.Errorf("sqlite: set quantity of item %d: %w", itemID, err)
	}
	return requireRow(res, fmt.Sprintf("order item %d", itemID))
}

func (s queries) DeleteOrderItem(ctx context.Context, itemID int64) error {
	res, err := s.q.ExecContext(ctx, `DELETE FROM order_items WHERE id = ?`, itemID)
	if err != nil {
		return fmt.Errorf("sqlite: delete item %d: %w", itemID, err)
	}
	return requireRow(res, fmt.Sprintf("order item %d", itemID))
}

// ── Audit streams ───────────────────────────────────────────────────────────

// AppendInventoryLog inserts one audit row. The table is append-only: rows
// are never updated, and product deletion only nulls the weak reference.
func (s queries) AppendInventoryLog(ctx context.Context, entry *domain.InventoryLog) error {
	const q = `
		INSERT INTO inventory_logs
			(product_id, product_name, change_type, quantity_change, reason, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`

	res, err := s.q.ExecContext(ctx, q,
		nullableID(entry.ProductID),
		entry.ProductName,
		string(entry.ChangeType),
		entry.QuantityChange,
		entry.Reason,
		formatTime(entry.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("sqlite: append inventory log for %q: %w", entry.ProductName, err)
	}
	entry.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("sqlite: append inventory log for %q: %w", entry.ProductName, err)
	}
	return nil
}

func (s queries) InventoryLogs(ctx context.Context) ([]domain.InventoryLog, error) {
	const q = `
		SELECT id, product_id, product_name, change_type, quantity_change, reason, created_at
		FROM   inventory_logs
		ORDER  BY created_at DESC, id DESC`

	rows, err := s.q.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list inventory logs: %w", err)
	}
	defer rows.Close()

	var out []domain.InventoryLog
	for rows.Next() {
		var entry domain.InventoryLog
		var productID sql.NullInt64
		var changeType, createdAt string
		err := rows.Scan(&entry.ID, &productID, &entry.ProductName,
			&changeType, &entry.QuantityChange, &entry.Reason, &createdAt)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scan inventory log: %w", err)
		}
		if productID.Valid {
			id := productID.Int64
			entry.ProductID = &id
		}
		entry.ChangeType = domain.ChangeType(changeType)
		entry.CreatedAt, err = parseTime(createdAt)
		if err != nil {
			return nil, err
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}

func (s queries) AppendOrderActivity(ctx context.Context, entry *domain.OrderActivity) error {
	const q = `
		INSERT INTO order_activities (order_id, activity_type, description, created_at)
		VALUES (?, ?, ?, ?)`

	res, err := s.q.ExecContext(ctx, q,
		entry.OrderID, entry.ActivityType, entry.Description, formatTime(entry.CreatedAt))
	if err != nil {
		return fmt.Errorf("sqlite: append activity for order %d: %w", entry.OrderID, err)
	}
	entry.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("sqlite: append activity for order %d: %w", entry.OrderID, err)
	}
	return nil
}

func (s queries) OrderActivities(ctx context.Context) ([]domain.OrderActivity, error) {
	const q = `
		SELECT id, order_id, activity_type, description, created_at
		FROM   order_activities
		ORDER  BY created_at DESC, id DESC`

	rows, err := s.q.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list order activities: %w", err)
	}
	defer rows.Close()

	var out []domain.OrderActivity
	for rows.Next() {
		var entry domain.OrderActivity
		var createdAt string
		err := rows.Scan(&entry.ID, &entry.OrderID, &entry.ActivityType,
			&entry.Description, &createdAt)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scan order activity: %w", err)
		}
		entry.CreatedAt, err = parseTime(createdAt)
		if err != nil {
			return nil, err
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}

// ── Scan helpers ────────────────────────────────────────────────────────────

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (*domain.Product, error) {
	var p domain.Product
	var price, createdAt string
	if err := row.Scan(&p.ID, &p.Name, &p.Description, &price, &p.StockQuantity, &createdAt); err != nil {
		return nil, err
	}
	var err error
	if p.Price, err = decimal.NewFromString(price); err != nil {
		return nil, fmt.Errorf("parse price %q: %w", price, err)
	}
	if p.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	return &p, nil
}

func scanOrder(row rowScanner) (*domain.Order, error) {
	var o domain.Order
	var status, total, createdAt string
	if err := row.Scan(&o.ID, &o.OrderNumber, &status, &total, &createdAt); err != nil {
		return nil, err
	}
	o.Status = domain.OrderStatus(status)
	var err error
	if o.TotalAmount, err = decimal.NewFromString(total); err != nil {
		return nil, fmt.Errorf("parse total %q: %w", total, err)
	}
	if o.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	return &o, nil
}

func scanOrderItem(row rowScanner) (*domain.OrderItem, error) {
	var it domain.OrderItem
	var unitPrice string
	if err := row.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.Quantity, &unitPrice); err != nil {
		return nil, err
	}
	var err error
	if it.UnitPrice, err = decimal.NewFromString(unitPrice); err != nil {
		return nil, fmt.Errorf("parse unit price %q: %w", unitPrice, err)
	}
	return &it, nil
}

// requireRow converts a zero-row UPDATE/DELETE into ErrNotFound.
func requireRow(res sql.Result, what string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", what, domain.ErrNotFound)
	}
	return nil
}

// nullableID returns nil for a nil pointer so SQLite stores NULL.
func nullableID(id *int64) any {
	if id == nil {
		return nil
	}
	return *id
}
