package orders

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/danukusuma/go-order-saga/internal/apperr"
	"github.com/danukusuma/go-order-saga/internal/money"
)

type Repo struct{ DB *pgxpool.Pool }

// Create persists the order and its line items in one transaction.
func (r *Repo) Create(ctx context.Context, o Order) error {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return apperr.Wrap(apperr.Infrastructure, "orders.begin", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, `
		INSERT INTO orders(id, customer_id, customer_email, status, total_cents, currency, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		o.ID, o.CustomerID, o.CustomerEmail, o.Status, o.Total.Cents, o.Total.Currency, o.CreatedAt, o.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return apperr.New(apperr.Conflict, "orders.duplicate", "order %s already exists", o.ID)
		}
		return apperr.Wrap(apperr.Infrastructure, "orders.insert", err)
	}

	for _, li := range o.Items {
		if _, err := tx.Exec(ctx, `
			INSERT INTO order_items(order_id, product_id, name, unit_cents, qty)
			VALUES ($1,$2,$3,$4,$5)`,
			o.ID, li.ProductID, li.Name, li.UnitPrice.Cents, li.Qty); err != nil {
			return apperr.Wrap(apperr.Infrastructure, "orders.insert_item", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return apperr.Wrap(apperr.Infrastructure, "orders.commit", err)
	}
	return nil
}

func (r *Repo) GetByID(ctx context.Context, orderID string) (Order, error) {
	var o Order
	var cents int64
	var currency string
	err := r.DB.QueryRow(ctx, `
		SELECT id, customer_id, customer_email, status, total_cents, currency,
		       COALESCE(cancel_reason, ''), created_at, updated_at
		FROM orders WHERE id=$1`, orderID).
		Scan(&o.ID, &o.CustomerID, &o.CustomerEmail, &o.Status, &cents, &currency,
			&o.CancelReason, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Order{}, apperr.New(apperr.NotFound, "orders.not_found", "order %s not found", orderID)
	}
	if err != nil {
		return Order{}, apperr.Wrap(apperr.Infrastructure, "orders.get", err)
	}
	o.Total = money.FromCents(cents, currency)

	rows, err := r.DB.Query(ctx, `
		SELECT product_id, name, unit_cents, qty FROM order_items WHERE order_id=$1`, orderID)
	if err != nil {
		return Order{}, apperr.Wrap(apperr.Infrastructure, "orders.get_items", err)
	}
	defer rows.Close()
	for rows.Next() {
		var li LineItem
		var unit int64
		if err := rows.Scan(&li.ProductID, &li.Name, &unit, &li.Qty); err != nil {
			return Order{}, apperr.Wrap(apperr.Infrastructure, "orders.scan_item", err)
		}
		li.UnitPrice = money.FromCents(unit, currency)
		o.Items = append(o.Items, li)
	}
	if err := rows.Err(); err != nil {
		return Order{}, apperr.Wrap(apperr.Infrastructure, "orders.scan_items", err)
	}
	return o, nil
}

func (r *Repo) ListByCustomer(ctx context.Context, customerID string) ([]Order, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT id, status, total_cents, currency, COALESCE(cancel_reason, ''), created_at, updated_at
		FROM orders WHERE customer_id=$1 ORDER BY created_at DESC`, customerID)
	if err != nil {
		return nil, apperr.Wrap(apperr.Infrastructure, "orders.list", err)
	}
	defer rows.Close()

	var out []Order
	for rows.Next() {
		o := Order{CustomerID: customerID}
		var cents int64
		var currency string
		if err := rows.Scan(&o.ID, &o.Status, &cents, &currency, &o.CancelReason, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, apperr.Wrap(apperr.Infrastructure, "orders.scan", err)
		}
		o.Total = money.FromCents(cents, currency)
		out = append(out, o)
	}
	return out, rows.Err()
}

// ConfirmIfPending is the confirm-if-pending guard: the write succeeds
// at most once, no matter how many deliveries race it.
func (r *Repo) ConfirmIfPending(ctx context.Context, orderID string) (bool, error) {
	ct, err := r.DB.Exec(ctx, `
		UPDATE orders SET status=$2, updated_at=now()
		WHERE id=$1 AND status=$3`,
		orderID, StatusConfirmed, StatusPending)
	if err != nil {
		return false, apperr.Wrap(apperr.Infrastructure, "orders.confirm", err)
	}
	return ct.RowsAffected() == 1, nil
}

// CancelIfCancellable cancels only from PENDING or CONFIRMED and
// records the reason. Returns false when the order was already past
// cancellation (including already cancelled), which callers treat as a
// no-op rather than an error.
func (r *Repo) CancelIfCancellable(ctx context.Context, orderID, reason string) (bool, error) {
	ct, err := r.DB.Exec(ctx, `
		UPDATE orders SET status=$2, cancel_reason=$3, updated_at=now()
		WHERE id=$1 AND status = ANY($4)`,
		orderID, StatusCancelled, reason, []string{string(StatusPending), string(StatusConfirmed)})
	if err != nil {
		return false, apperr.Wrap(apperr.Infrastructure, "orders.cancel", err)
	}
	return ct.RowsAffected() == 1, nil
}

// GetSaga loads the per-order saga record, or a fresh one when the
// first signal for this order arrives.
func (r *Repo) GetSaga(ctx context.Context, orderID string) (SagaRecord, error) {
	rec := SagaRecord{OrderID: orderID}
	err := r.DB.QueryRow(ctx, `
		SELECT inventory_outcome, payment_outcome, updated_at
		FROM order_sagas WHERE order_id=$1`, orderID).
		Scan(&rec.Inventory, &rec.Payment, &rec.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return rec, nil
	}
	if err != nil {
		return rec, apperr.Wrap(apperr.Infrastructure, "saga.get", err)
	}
	return rec, nil
}

// SaveSaga replaces the record by order id (per-entity optimistic
// write; concurrent deliveries for one order serialize at the store).
func (r *Repo) SaveSaga(ctx context.Context, rec SagaRecord) error {
	_, err := r.DB.Exec(ctx, `
		INSERT INTO order_sagas(order_id, inventory_outcome, payment_outcome, updated_at)
		VALUES ($1,$2,$3,$4)
		ON CONFLICT (order_id) DO UPDATE
		SET inventory_outcome=EXCLUDED.inventory_outcome,
		    payment_outcome=EXCLUDED.payment_outcome,
		    updated_at=EXCLUDED.updated_at`,
		rec.OrderID, rec.Inventory, rec.Payment, rec.UpdatedAt)
	if err != nil {
		return apperr.Wrap(apperr.Infrastructure, "saga.save", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
