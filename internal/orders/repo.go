package orders

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MarcosDevYT/ecommerce-core/internal/inventory"
	"github.com/MarcosDevYT/ecommerce-core/internal/postgres"
)

// Repo is the pgx-backed order store. It implements the workflow's
// UnitOfWork and Store ports plus the guarded transitions the webhook
// reconciler drives.
type Repo struct {
	DB     *pgxpool.Pool
	Ledger inventory.Ledger
}

// Run opens one transaction and hands the checkout steps a view bound to it.
func (r *Repo) Run(ctx context.Context, fn func(tx Checkout) error) error {
	return postgres.InTx(ctx, r.DB, func(q postgres.Querier) error {
		return fn(&checkoutTx{q: q, ledger: r.Ledger})
	})
}

type checkoutTx struct {
	q      postgres.Querier
	ledger inventory.Ledger
}

func (t *checkoutTx) Reserve(ctx context.Context, lines []inventory.Line) error {
	return t.ledger.Reserve(ctx, t.q, lines)
}

func (t *checkoutTx) Prices(ctx context.Context, ids []string) (map[string]int64, error) {
	return t.ledger.Prices(ctx, t.q, ids)
}

func (t *checkoutTx) Insert(ctx context.Context, o *Order) error {
	_, err := t.q.Exec(ctx, `
		INSERT INTO orders (id, customer_id, customer_email, customer_name,
		                    status, payment_status, total_cents, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$8)`,
		o.ID, o.CustomerID, o.CustomerEmail, o.CustomerName,
		o.Status, o.PaymentStatus, o.TotalCents, o.CreatedAt)
	if err != nil {
		return err
	}
	for _, it := range o.Items {
		if _, err := t.q.Exec(ctx, `
			INSERT INTO order_items (order_id, product_id, qty, unit_price_cents)
			VALUES ($1,$2,$3,$4)`,
			it.OrderID, it.ProductID, it.Qty, it.UnitPriceCents); err != nil {
			return err
		}
	}
	return nil
}

const orderCols = `id, customer_id, customer_email, customer_name, status, payment_status,
	total_cents, COALESCE(gateway_session_id,''), COALESCE(payment_ref,''), created_at, updated_at`

func scanOrder(row pgx.Row, o *Order) error {
	return row.Scan(&o.ID, &o.CustomerID, &o.CustomerEmail, &o.CustomerName,
		&o.Status, &o.PaymentStatus, &o.TotalCents,
		&o.GatewaySessionID, &o.PaymentRef, &o.CreatedAt, &o.UpdatedAt)
}

func (r *Repo) Order(ctx context.Context, orderID string) (*Order, error) {
	return r.orderBy(ctx, `id=$1`, orderID)
}

func (r *Repo) orderBy(ctx context.Context, where string, arg any) (*Order, error) {
	var o Order
	err := scanOrder(r.DB.QueryRow(ctx, `SELECT `+orderCols+` FROM orders WHERE `+where, arg), &o)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	items, err := r.itemsFor(ctx, []string{o.ID})
	if err != nil {
		return nil, err
	}
	o.Items = items[o.ID]
	return &o, nil
}

func (r *Repo) OrdersFor(ctx context.Context, customerID string) ([]Order, error) {
	rows, err := r.DB.Query(ctx,
		`SELECT `+orderCols+` FROM orders WHERE customer_id=$1 ORDER BY created_at DESC`, customerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Order
	var ids []string
	for rows.Next() {
		var o Order
		if err := scanOrder(rows, &o); err != nil {
			return nil, err
		}
		out = append(out, o)
		ids = append(ids, o.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return out, nil
	}
	items, err := r.itemsFor(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Items = items[out[i].ID]
	}
	return out, nil
}

func (r *Repo) itemsFor(ctx context.Context, orderIDs []string) (map[string][]OrderItem, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT order_id, product_id, qty, unit_price_cents
		FROM order_items WHERE order_id = ANY($1) ORDER BY id`, orderIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string][]OrderItem, len(orderIDs))
	for rows.Next() {
		var it OrderItem
		if err := rows.Scan(&it.OrderID, &it.ProductID, &it.Qty, &it.UnitPriceCents); err != nil {
			return nil, err
		}
		out[it.OrderID] = append(out[it.OrderID], it)
	}
	return out, rows.Err()
}

// AttachSession stores the gateway session id, guarded on PENDING so a
// session can never be attached to a finished order.
func (r *Repo) AttachSession(ctx context.Context, orderID, sessionID string) error {
	ct, err := r.DB.Exec(ctx, `
		UPDATE orders SET gateway_session_id=$2, updated_at=now()
		WHERE id=$1 AND status=$3`, orderID, sessionID, StatusPending)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrInvalidOrderState
	}
	return nil
}

// IDBySession resolves an order through the gateway session id echoed back
// in webhook events.
func (r *Repo) IDBySession(ctx context.Context, sessionID string) (string, error) {
	var id string
	err := r.DB.QueryRow(ctx, `SELECT id FROM orders WHERE gateway_session_id=$1`, sessionID).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrOrderNotFound
	}
	return id, err
}

// MarkPaid applies the PENDING→PAID transition. The guard on the current
// status makes the update at-most-once even under racing deliveries: the
// loser sees zero affected rows and reports applied=false. On an applied
// transition the full order is returned for the notification payload.
func (r *Repo) MarkPaid(ctx context.Context, orderID, paymentRef string) (*Order, bool, error) {
	ct, err := r.DB.Exec(ctx, `
		UPDATE orders SET status=$2, payment_status=$3, payment_ref=$4, updated_at=now()
		WHERE id=$1 AND status=$5`,
		orderID, StatusPaid, PaymentCompleted, paymentRef, StatusPending)
	if err != nil {
		return nil, false, err
	}
	if ct.RowsAffected() == 0 {
		// Either the order does not exist or the transition already ran.
		if _, err := r.Order(ctx, orderID); err != nil {
			return nil, false, err
		}
		return nil, false, nil
	}
	o, err := r.Order(ctx, orderID)
	if err != nil {
		return nil, false, err
	}
	return o, true, nil
}

// MarkCancelled applies PENDING→CANCELLED and gives the reserved stock back
// in the same transaction. Decrement is the reservation, so cancellation is
// the only place stock flows back.
func (r *Repo) MarkCancelled(ctx context.Context, orderID string) (bool, error) {
	applied := false
	err := postgres.InTx(ctx, r.DB, func(q postgres.Querier) error {
		ct, err := q.Exec(ctx, `
			UPDATE orders SET status=$2, payment_status=$3, updated_at=now()
			WHERE id=$1 AND status=$4`,
			orderID, StatusCancelled, PaymentFailed, StatusPending)
		if err != nil {
			return err
		}
		if ct.RowsAffected() == 0 {
			return nil
		}
		rows, err := q.Query(ctx, `SELECT product_id, qty FROM order_items WHERE order_id=$1`, orderID)
		if err != nil {
			return err
		}
		defer rows.Close()
		var lines []inventory.Line
		for rows.Next() {
			var ln inventory.Line
			if err := rows.Scan(&ln.ProductID, &ln.Qty); err != nil {
				return err
			}
			lines = append(lines, ln)
		}
		if err := rows.Err(); err != nil {
			return err
		}
		if err := r.Ledger.Release(ctx, q, lines); err != nil {
			return err
		}
		applied = true
		return nil
	})
	return applied, err
}
