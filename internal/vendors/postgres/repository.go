// Package postgres provides PostgreSQL implementation of the vendors repository.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/bissquit/oprisk/internal/domain"
	pgutil "github.com/bissquit/oprisk/internal/pkg/postgres"
	"github.com/bissquit/oprisk/internal/vendors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository implements the vendors.Repository interface using PostgreSQL.
type Repository struct {
	db *pgxpool.Pool
}

var _ vendors.Repository = (*Repository)(nil)

// NewRepository creates a new PostgreSQL repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// GetVendor retrieves the scoring profile of a vendor.
func (r *Repository) GetVendor(ctx context.Context, id string) (*domain.VendorProfile, error) {
	query := `
		SELECT id, name, criticality, status, last_assessment_date, contract_end_date, sla_expiry_date
		FROM vendors
		WHERE id = $1
	`
	var v domain.VendorProfile
	err := r.db.QueryRow(ctx, query, id).Scan(
		&v.ID,
		&v.Name,
		&v.Criticality,
		&v.Status,
		&v.LastAssessmentDate,
		&v.ContractEndDate,
		&v.SLAExpiryDate,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || pgutil.IsInvalidInput(err) {
			return nil, &domain.NotFoundError{Entity: "vendor", ID: id}
		}
		return nil, fmt.Errorf("get vendor: %w", err)
	}
	return &v, nil
}
