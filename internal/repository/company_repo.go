package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"rfqgateway/internal/model"
)

type CompanyRepository struct {
	db *pgxpool.Pool
}

func NewCompanyRepository(db *pgxpool.Pool) *CompanyRepository {
	return &CompanyRepository{db: db}
}

// CreateCompanyWithOwner inserts the company and its owner membership in one transaction.
func (r *CompanyRepository) CreateCompanyWithOwner(ctx context.Context, c *model.Company, ownerRole string) (*model.Company, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	created, err := insertCompanyTx(ctx, tx, c)
	if err != nil {
		return nil, fmt.Errorf("insert company: %w", err)
	}

	if err := insertMembershipTx(ctx, tx, created.ID, c.CreatedBy, ownerRole); err != nil {
		return nil, fmt.Errorf("insert owner membership: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return created, nil
}

func insertCompanyTx(ctx context.Context, tx pgx.Tx, c *model.Company) (*model.Company, error) {
	query := `
        INSERT INTO companies (name, country, state, city, website, created_by)
        VALUES ($1, $2, $3, $4, $5, $6)
        RETURNING id::text, created_at
    `
	out := *c
	err := tx.QueryRow(ctx, query, c.Name, c.Country, c.State, c.City, c.Website, c.CreatedBy).
		Scan(&out.ID, &out.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func insertMembershipTx(ctx context.Context, tx pgx.Tx, companyID, userID, role string) error {
	query := `
        INSERT INTO company_memberships (company_id, user_id, role)
        VALUES ($1, $2, $3)
    `
	_, err := tx.Exec(ctx, query, companyID, userID, role)
	return err
}
