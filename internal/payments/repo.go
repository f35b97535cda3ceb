package payments

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/danukusuma/go-order-saga/internal/apperr"
)

type Store interface {
	Create(ctx context.Context, p *Payment) error
	GetByOrderID(ctx context.Context, orderID string) (*Payment, error)
	Update(ctx context.Context, p *Payment) error
}

type Repo struct{ DB *pgxpool.Pool }

func (r *Repo) Create(ctx context.Context, p *Payment) error {
	_, err := r.DB.Exec(ctx, `
		INSERT INTO payments(id, order_id, customer_id, amount_cents, currency, status,
		                     charge_ref, fail_reason, created_at, processed_at, refunded_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		p.ID, p.OrderID, p.CustomerID, p.Amount.Cents, p.Amount.Currency, p.Status,
		p.ChargeRef, p.FailReason, p.CreatedAt, p.ProcessedAt, p.RefundedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return apperr.New(apperr.Conflict, "payment.exists", "payment for order %s already exists", p.OrderID)
		}
		return apperr.Wrap(apperr.Infrastructure, "payment.create", err)
	}
	return nil
}

func (r *Repo) GetByOrderID(ctx context.Context, orderID string) (*Payment, error) {
	var p Payment
	err := r.DB.QueryRow(ctx, `
		SELECT id, order_id, customer_id, amount_cents, currency, status,
		       COALESCE(charge_ref,''), COALESCE(fail_reason,''), created_at, processed_at, refunded_at
		FROM payments WHERE order_id=$1`, orderID).
		Scan(&p.ID, &p.OrderID, &p.CustomerID, &p.Amount.Cents, &p.Amount.Currency, &p.Status,
			&p.ChargeRef, &p.FailReason, &p.CreatedAt, &p.ProcessedAt, &p.RefundedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.New(apperr.NotFound, "payment.not_found", "no payment for order %s", orderID)
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.Infrastructure, "payment.get", err)
	}
	return &p, nil
}

func (r *Repo) Update(ctx context.Context, p *Payment) error {
	tag, err := r.DB.Exec(ctx, `
		UPDATE payments
		SET status=$2, charge_ref=$3, fail_reason=$4, processed_at=$5, refunded_at=$6
		WHERE id=$1`,
		p.ID, p.Status, p.ChargeRef, p.FailReason, p.ProcessedAt, p.RefundedAt)
	if err != nil {
		return apperr.Wrap(apperr.Infrastructure, "payment.update", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.New(apperr.NotFound, "payment.not_found", "payment %s not found", p.ID)
	}
	return nil
}
