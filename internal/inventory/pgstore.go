package inventory

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/danukusuma/go-order-saga/internal/apperr"
	"github.com/danukusuma/go-order-saga/internal/events"
)

// PGStore keeps the ledger in Postgres. Row locks (FOR UPDATE) per
// product serialize concurrent reservations; partial reservations are
// rolled back with the transaction.
type PGStore struct{ DB *pgxpool.Pool }

func (s *PGStore) ReserveOrder(ctx context.Context, orderID string, items []events.ItemQty, expiresAt time.Time) (bool, []Failure, error) {
	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return false, nil, apperr.Wrap(apperr.Infrastructure, "inventory.begin", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// Idempotency short-circuit: an earlier delivery already reserved
	// this order.
	var existing int
	if err := tx.QueryRow(ctx, `
		SELECT COUNT(*) FROM inventory_reservations
		WHERE order_id=$1 AND status=$2`, orderID, StatusReserved).Scan(&existing); err != nil {
		return false, nil, apperr.Wrap(apperr.Infrastructure, "inventory.check", err)
	}
	if existing > 0 {
		return true, nil, nil
	}

	var failures []Failure
	for _, it := range items {
		var onHand, reserved int
		var active bool
		err := tx.QueryRow(ctx, `
			SELECT on_hand, reserved, active FROM inventory_items
			WHERE product_id=$1 FOR UPDATE`, it.ProductID).Scan(&onHand, &reserved, &active)
		if errors.Is(err, pgx.ErrNoRows) {
			failures = append(failures, Failure{
				ProductID: it.ProductID, Requested: it.Qty,
				Reason: events.ReasonProductNotFound,
			})
			continue
		}
		if err != nil {
			return false, nil, apperr.Wrap(apperr.Infrastructure, "inventory.lock", err)
		}
		if !active {
			failures = append(failures, Failure{
				ProductID: it.ProductID, Requested: it.Qty, Available: onHand - reserved,
				Reason: events.ReasonProductInactive,
			})
			continue
		}
		if onHand-reserved < it.Qty {
			failures = append(failures, Failure{
				ProductID: it.ProductID, Requested: it.Qty, Available: onHand - reserved,
				Reason: events.ReasonInsufficientStock,
			})
			continue
		}

		if _, err := tx.Exec(ctx, `
			UPDATE inventory_items SET reserved = reserved + $2, updated_at = now()
			WHERE product_id=$1`, it.ProductID, it.Qty); err != nil {
			return false, nil, apperr.Wrap(apperr.Infrastructure, "inventory.reserve", err)
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO inventory_reservations(id, order_id, product_id, qty, status, created_at, expires_at)
			VALUES ($1,$2,$3,$4,$5,now(),$6)
			ON CONFLICT (order_id, product_id) DO NOTHING`,
			uuid.NewString(), orderID, it.ProductID, it.Qty, StatusReserved, expiresAt); err != nil {
			return false, nil, apperr.Wrap(apperr.Infrastructure, "inventory.insert", err)
		}
	}

	if len(failures) > 0 {
		return false, failures, nil // rollback via defer
	}
	if err := tx.Commit(ctx); err != nil {
		return false, nil, apperr.Wrap(apperr.Infrastructure, "inventory.commit", err)
	}
	return false, nil, nil
}

func (s *PGStore) ReleaseOrder(ctx context.Context, orderID string) ([]events.ItemQty, error) {
	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, apperr.Wrap(apperr.Infrastructure, "inventory.begin", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	rows, err := tx.Query(ctx, `
		SELECT product_id, qty FROM inventory_reservations
		WHERE order_id=$1 AND status=$2 FOR UPDATE`, orderID, StatusReserved)
	if err != nil {
		return nil, apperr.Wrap(apperr.Infrastructure, "inventory.select", err)
	}
	var released []events.ItemQty
	for rows.Next() {
		var it events.ItemQty
		if err := rows.Scan(&it.ProductID, &it.Qty); err != nil {
			rows.Close()
			return nil, apperr.Wrap(apperr.Infrastructure, "inventory.scan", err)
		}
		released = append(released, it)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, apperr.Wrap(apperr.Infrastructure, "inventory.rows", err)
	}
	if len(released) == 0 {
		return nil, nil
	}

	for _, it := range released {
		if _, err := tx.Exec(ctx, `
			UPDATE inventory_items SET reserved = reserved - $2, updated_at = now()
			WHERE product_id=$1`, it.ProductID, it.Qty); err != nil {
			return nil, apperr.Wrap(apperr.Infrastructure, "inventory.restore", err)
		}
	}
	if _, err := tx.Exec(ctx, `
		UPDATE inventory_reservations SET status=$2, cancelled_at=now()
		WHERE order_id=$1 AND status=$3`, orderID, StatusCancelled, StatusReserved); err != nil {
		return nil, apperr.Wrap(apperr.Infrastructure, "inventory.cancel", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, apperr.Wrap(apperr.Infrastructure, "inventory.commit", err)
	}
	return released, nil
}

func (s *PGStore) FulfillOrder(ctx context.Context, orderID string) (int, error) {
	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, apperr.Wrap(apperr.Infrastructure, "inventory.begin", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	rows, err := tx.Query(ctx, `
		SELECT product_id, qty FROM inventory_reservations
		WHERE order_id=$1 AND status=$2 FOR UPDATE`, orderID, StatusReserved)
	if err != nil {
		return 0, apperr.Wrap(apperr.Infrastructure, "inventory.select", err)
	}
	var fulfilled []events.ItemQty
	for rows.Next() {
		var it events.ItemQty
		if err := rows.Scan(&it.ProductID, &it.Qty); err != nil {
			rows.Close()
			return 0, apperr.Wrap(apperr.Infrastructure, "inventory.scan", err)
		}
		fulfilled = append(fulfilled, it)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, apperr.Wrap(apperr.Infrastructure, "inventory.rows", err)
	}
	if len(fulfilled) == 0 {
		return 0, nil
	}

	for _, it := range fulfilled {
		if _, err := tx.Exec(ctx, `
			UPDATE inventory_items
			SET on_hand = on_hand - $2, reserved = reserved - $2, updated_at = now()
			WHERE product_id=$1`, it.ProductID, it.Qty); err != nil {
			return 0, apperr.Wrap(apperr.Infrastructure, "inventory.fulfill", err)
		}
	}
	if _, err := tx.Exec(ctx, `
		UPDATE inventory_reservations SET status=$2, fulfilled_at=now()
		WHERE order_id=$1 AND status=$3`, orderID, StatusFulfilled, StatusReserved); err != nil {
		return 0, apperr.Wrap(apperr.Infrastructure, "inventory.mark", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, apperr.Wrap(apperr.Infrastructure, "inventory.commit", err)
	}
	return len(fulfilled), nil
}

func (s *PGStore) ExpireDue(ctx context.Context, now time.Time) (map[string][]events.ItemQty, error) {
	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, apperr.Wrap(apperr.Infrastructure, "inventory.begin", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	rows, err := tx.Query(ctx, `
		SELECT order_id, product_id, qty FROM inventory_reservations
		WHERE status=$1 AND expires_at <= $2 FOR UPDATE`, StatusReserved, now)
	if err != nil {
		return nil, apperr.Wrap(apperr.Infrastructure, "inventory.select", err)
	}
	expired := map[string][]events.ItemQty{}
	for rows.Next() {
		var orderID string
		var it events.ItemQty
		if err := rows.Scan(&orderID, &it.ProductID, &it.Qty); err != nil {
			rows.Close()
			return nil, apperr.Wrap(apperr.Infrastructure, "inventory.scan", err)
		}
		expired[orderID] = append(expired[orderID], it)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, apperr.Wrap(apperr.Infrastructure, "inventory.rows", err)
	}
	if len(expired) == 0 {
		return nil, nil
	}

	for _, items := range expired {
		for _, it := range items {
			if _, err := tx.Exec(ctx, `
				UPDATE inventory_items SET reserved = reserved - $2, updated_at = now()
				WHERE product_id=$1`, it.ProductID, it.Qty); err != nil {
				return nil, apperr.Wrap(apperr.Infrastructure, "inventory.restore", err)
			}
		}
	}
	if _, err := tx.Exec(ctx, `
		UPDATE inventory_reservations SET status=$2, cancelled_at=now()
		WHERE status=$3 AND expires_at <= $1`, now, StatusExpired, StatusReserved); err != nil {
		return nil, apperr.Wrap(apperr.Infrastructure, "inventory.expire", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, apperr.Wrap(apperr.Infrastructure, "inventory.commit", err)
	}
	return expired, nil
}

// UpsertItem projects a catalog event into the ledger. on_hand seeds
// only on insert; afterwards the ledger owns the counters. Stale event
// versions are skipped.
func (s *PGStore) UpsertItem(ctx context.Context, item Item) error {
	_, err := s.DB.Exec(ctx, `
		INSERT INTO inventory_items(product_id, name, on_hand, reserved, active, version, updated_at)
		VALUES ($1,$2,$3,0,$4,$5,now())
		ON CONFLICT (product_id) DO UPDATE
		SET name=EXCLUDED.name, active=EXCLUDED.active, version=EXCLUDED.version, updated_at=now()
		WHERE inventory_items.version < EXCLUDED.version`,
		item.ProductID, item.Name, item.OnHand, item.Active, item.Version)
	if err != nil {
		return apperr.Wrap(apperr.Infrastructure, "inventory.upsert", err)
	}
	return nil
}

func (s *PGStore) RemoveItem(ctx context.Context, productID string) error {
	if _, err := s.DB.Exec(ctx, `DELETE FROM inventory_items WHERE product_id=$1`, productID); err != nil {
		return apperr.Wrap(apperr.Infrastructure, "inventory.remove", err)
	}
	return nil
}

func (s *PGStore) GetItem(ctx context.Context, productID string) (Item, error) {
	var it Item
	err := s.DB.QueryRow(ctx, `
		SELECT product_id, name, on_hand, reserved, active, version, updated_at
		FROM inventory_items WHERE product_id=$1`, productID).
		Scan(&it.ProductID, &it.Name, &it.OnHand, &it.Reserved, &it.Active, &it.Version, &it.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Item{}, apperr.New(apperr.NotFound, "inventory.item_not_found", "product %s not in inventory", productID)
	}
	if err != nil {
		return Item{}, apperr.Wrap(apperr.Infrastructure, "inventory.get", err)
	}
	return it, nil
}
