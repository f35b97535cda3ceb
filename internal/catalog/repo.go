package catalog

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/danukusuma/go-order-saga/internal/apperr"
)

type Store interface {
	Create(ctx context.Context, p *Product) error
	GetByID(ctx context.Context, id string) (*Product, error)
	List(ctx context.Context, limit, offset int) ([]Product, error)
	Update(ctx context.Context, p *Product) error
	Delete(ctx context.Context, id string) (int64, error)
}

type Repo struct{ DB *pgxpool.Pool }

func (r *Repo) Create(ctx context.Context, p *Product) error {
	_, err := r.DB.Exec(ctx, `
		INSERT INTO products(id, name, price_cents, currency, stock, active, version, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		p.ID, p.Name, p.Price.Cents, p.Price.Currency, p.Stock, p.Active, p.Version, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return apperr.Wrap(apperr.Infrastructure, "product.create", err)
	}
	return nil
}

func (r *Repo) GetByID(ctx context.Context, id string) (*Product, error) {
	var p Product
	err := r.DB.QueryRow(ctx, `
		SELECT id, name, price_cents, currency, stock, active, version, created_at, updated_at
		FROM products WHERE id=$1`, id).
		Scan(&p.ID, &p.Name, &p.Price.Cents, &p.Price.Currency, &p.Stock, &p.Active,
			&p.Version, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.New(apperr.NotFound, "product.not_found", "product %s not found", id)
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.Infrastructure, "product.get", err)
	}
	return &p, nil
}

func (r *Repo) List(ctx context.Context, limit, offset int) ([]Product, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT id, name, price_cents, currency, stock, active, version, created_at, updated_at
		FROM products ORDER BY created_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, apperr.Wrap(apperr.Infrastructure, "product.list", err)
	}
	defer rows.Close()
	var out []Product
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Price.Cents, &p.Price.Currency, &p.Stock, &p.Active,
			&p.Version, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, apperr.Wrap(apperr.Infrastructure, "product.scan", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Wrap(apperr.Infrastructure, "product.rows", err)
	}
	return out, nil
}

// Update writes the row guarded by the previous version, so two
// concurrent edits cannot both win with the same version number.
func (r *Repo) Update(ctx context.Context, p *Product) error {
	tag, err := r.DB.Exec(ctx, `
		UPDATE products
		SET name=$2, price_cents=$3, currency=$4, stock=$5, active=$6, version=$7, updated_at=$8
		WHERE id=$1 AND version=$7-1`,
		p.ID, p.Name, p.Price.Cents, p.Price.Currency, p.Stock, p.Active, p.Version, p.UpdatedAt)
	if err != nil {
		return apperr.Wrap(apperr.Infrastructure, "product.update", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.New(apperr.Conflict, "product.version", "product %s changed concurrently", p.ID)
	}
	return nil
}

func (r *Repo) Delete(ctx context.Context, id string) (int64, error) {
	var version int64
	err := r.DB.QueryRow(ctx, `
		UPDATE products SET version=version+1, active=false, updated_at=now()
		WHERE id=$1 RETURNING version`, id).Scan(&version)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, apperr.New(apperr.NotFound, "product.not_found", "product %s not found", id)
	}
	if err != nil {
		return 0, apperr.Wrap(apperr.Infrastructure, "product.delete", err)
	}
	return version, nil
}
