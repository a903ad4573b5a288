package orders

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/ariefcatur/go-storefront-orders/internal/apperr"
	"github.com/ariefcatur/go-storefront-orders/internal/catalog"
	"github.com/ariefcatur/go-storefront-orders/internal/postgres"
)

// PGStore persists orders in Postgres. Transactions lock the order row
// with SELECT ... FOR UPDATE, so a customer cancel and a gateway callback
// for the same order serialize and the second one sees the first's result.
type PGStore struct{ DB postgres.Beginner }

func (s *PGStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	return postgres.WithinTx(ctx, s.DB, func(tx pgx.Tx) error {
		return fn(ctx, &pgTx{tx: tx, ledger: catalog.NewPGLedger(tx)})
	})
}

func (s *PGStore) Get(ctx context.Context, id string) (Order, error) {
	return loadOrder(ctx, s.DB, `WHERE o.id=$1`, id)
}

func (s *PGStore) GetByNumber(ctx context.Context, number string) (Order, error) {
	return loadByNumber(ctx, s.DB, `WHERE o.order_number=$1`, number)
}

func (s *PGStore) ListByUser(ctx context.Context, userID string) ([]Order, error) {
	rows, err := s.DB.Query(ctx, selectOrder+` WHERE o.user_id=$1 ORDER BY o.created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	var out []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		out = append(out, o)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range out {
		if out[i].Items, err = loadItems(ctx, s.DB, out[i].ID); err != nil {
			return nil, err
		}
	}
	return out, nil
}

type pgTx struct {
	tx     pgx.Tx
	ledger *catalog.PGLedger
}

func (t *pgTx) Ledger() catalog.Ledger { return t.ledger }

func (t *pgTx) LockOrder(ctx context.Context, id string) (Order, error) {
	return loadOrder(ctx, t.tx, `WHERE o.id=$1 FOR UPDATE`, id)
}

func (t *pgTx) LockOrderByNumber(ctx context.Context, number string) (Order, error) {
	return loadByNumber(ctx, t.tx, `WHERE o.order_number=$1 FOR UPDATE`, number)
}

func (t *pgTx) InsertOrder(ctx context.Context, o Order) error {
	ship, bill, err := marshalAddresses(o)
	if err != nil {
		return err
	}
	_, err = t.tx.Exec(ctx, `
		INSERT INTO orders(id, order_number, user_id, status, payment_method, payment_token,
			stock_committed, subtotal, shipping_amount, tax_amount, total_amount,
			shipping_address, billing_address, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)`,
		o.ID, o.Number, o.UserID, string(o.Status), string(o.PaymentMethod), o.PaymentToken,
		o.StockCommitted, o.Totals.Subtotal, o.Totals.Shipping, o.Totals.Tax, o.Totals.Total,
		ship, bill, o.CreatedAt, o.UpdatedAt)
	if err != nil {
		return err
	}

	for i, it := range o.Items {
		opts, err := json.Marshal(it.Options)
		if err != nil {
			return err
		}
		if _, err := t.tx.Exec(ctx, `
			INSERT INTO order_items(id, order_id, position, product_id, product_name, sku, size,
				quantity, unit_price, total_price, options)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
			it.ID, o.ID, i, it.ProductID, it.ProductName, it.SKU, it.Size,
			it.Quantity, it.UnitPrice, it.TotalPrice, opts); err != nil {
			return err
		}
	}
	return nil
}

// UpdateOrder writes the mutable columns only; the snapshot stays as
// inserted.
func (t *pgTx) UpdateOrder(ctx context.Context, o Order) error {
	ct, err := t.tx.Exec(ctx, `
		UPDATE orders SET status=$2, payment_token=$3, payment_type=$4, transaction_id=$5,
			stock_committed=$6, tracking_number=$7, paid_at=$8, shipped_at=$9, delivered_at=$10,
			updated_at=$11
		WHERE id=$1`,
		o.ID, string(o.Status), o.PaymentToken, o.PaymentType, o.TransactionID,
		o.StockCommitted, o.TrackingNumber, o.PaidAt, o.ShippedAt, o.DeliveredAt, o.UpdatedAt)
	if err != nil {
		return err
	}
	if ct.RowsAffected() != 1 {
		return apperr.NotFound("order.update", "order %s not found", o.ID)
	}
	return nil
}

func (t *pgTx) DeleteOrder(ctx context.Context, id string) error {
	_, err := t.tx.Exec(ctx, `
		WITH gone AS (DELETE FROM orders WHERE id=$1 RETURNING order_number)
		INSERT INTO deleted_orders(order_number) SELECT order_number FROM gone
		ON CONFLICT DO NOTHING`, id)
	return err
}

const selectOrder = `
	SELECT o.id, o.order_number, o.user_id, o.status, o.payment_method, o.payment_token,
		o.payment_type, o.transaction_id, o.stock_committed, o.subtotal, o.shipping_amount,
		o.tax_amount, o.total_amount, o.shipping_address, o.billing_address, o.tracking_number,
		o.paid_at, o.shipped_at, o.delivered_at, o.created_at, o.updated_at
	FROM orders o`

func loadOrder(ctx context.Context, db postgres.DBTX, where string, arg any) (Order, error) {
	o, err := scanOrder(db.QueryRow(ctx, selectOrder+" "+where, arg))
	if errors.Is(err, pgx.ErrNoRows) {
		return Order{}, apperr.NotFound("order.get", "order %v not found", arg)
	}
	if err != nil {
		return Order{}, err
	}
	o.Items, err = loadItems(ctx, db, o.ID)
	return o, err
}

func loadByNumber(ctx context.Context, db postgres.DBTX, where, number string) (Order, error) {
	o, err := loadOrder(ctx, db, where, number)
	if apperr.KindOf(err) != apperr.KindNotFound {
		return o, err
	}
	var gone bool
	if qerr := db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM deleted_orders WHERE order_number=$1)`, number).Scan(&gone); qerr != nil {
		return Order{}, qerr
	}
	if gone {
		return Order{}, DeletedError(number)
	}
	return Order{}, err
}

func scanOrder(row pgx.Row) (Order, error) {
	var (
		o              Order
		status, method string
		ship, bill     []byte
	)
	err := row.Scan(&o.ID, &o.Number, &o.UserID, &status, &method, &o.PaymentToken,
		&o.PaymentType, &o.TransactionID, &o.StockCommitted, &o.Totals.Subtotal, &o.Totals.Shipping,
		&o.Totals.Tax, &o.Totals.Total, &ship, &bill, &o.TrackingNumber,
		&o.PaidAt, &o.ShippedAt, &o.DeliveredAt, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return Order{}, err
	}
	o.Status = Status(status)
	o.PaymentMethod = PaymentMethod(method)
	if err := json.Unmarshal(ship, &o.Shipping); err != nil {
		return Order{}, fmt.Errorf("decode shipping address: %w", err)
	}
	if err := json.Unmarshal(bill, &o.Billing); err != nil {
		return Order{}, fmt.Errorf("decode billing address: %w", err)
	}
	return o, nil
}

func loadItems(ctx context.Context, db postgres.DBTX, orderID string) ([]Item, error) {
	rows, err := db.Query(ctx, `
		SELECT id, order_id, product_id, product_name, sku, size, quantity, unit_price, total_price, options
		FROM order_items WHERE order_id=$1 ORDER BY position`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Item
	for rows.Next() {
		var (
			it   Item
			opts []byte
		)
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.ProductName, &it.SKU, &it.Size,
			&it.Quantity, &it.UnitPrice, &it.TotalPrice, &opts); err != nil {
			return nil, err
		}
		if len(opts) > 0 {
			if err := json.Unmarshal(opts, &it.Options); err != nil {
				return nil, fmt.Errorf("decode item options: %w", err)
			}
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func marshalAddresses(o Order) ([]byte, []byte, error) {
	ship, err := json.Marshal(o.Shipping)
	if err != nil {
		return nil, nil, err
	}
	bill, err := json.Marshal(o.Billing)
	if err != nil {
		return nil, nil, err
	}
	return ship, bill, nil
}
