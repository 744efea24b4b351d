package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/segyhp/agriloan-engine/internal/domain"
	customError "github.com/segyhp/agriloan-engine/pkg/errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const productColumns = `id, name, description, interest_rate, min_amount, max_amount, term_months, created_at, updated_at`

type productRepository struct {
	db *sqlx.DB
}

func NewProductRepository(db *sqlx.DB) ProductRepository {
	return &productRepository{db: db}
}

func (r *productRepository) Create(ctx context.Context, product *domain.LoanProduct) error {
	query := r.db.Rebind(`
		INSERT INTO loan_products (` + productColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)

	_, err := r.db.ExecContext(ctx, query,
		product.ID,
		product.Name,
		product.Description,
		product.InterestRate,
		product.MinAmount,
		product.MaxAmount,
		product.TermMonths,
		product.CreatedAt.UTC(),
		product.UpdatedAt.UTC(),
	)

	return err
}

func (r *productRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.LoanProduct, error) {
	query := r.db.Rebind(`SELECT ` + productColumns + ` FROM loan_products WHERE id = ?`)

	var product domain.LoanProduct
	if err := r.db.GetContext(ctx, &product, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, customError.WrapProductNotFound(id.String())
		}
		return nil, err
	}

	return &product, nil
}

func (r *productRepository) List(ctx context.Context) ([]*domain.LoanProduct, error) {
	products := []*domain.LoanProduct{}
	err := r.db.SelectContext(ctx, &products, `SELECT `+productColumns+` FROM loan_products ORDER BY name, id`)
	if err != nil {
		return nil, err
	}
	return products, nil
}

func (r *productRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM loan_products WHERE id = ?`), id)
	if err != nil {
		return err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return customError.WrapProductNotFound(id.String())
	}
	return nil
}
