package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/license-service/internal/domain"
)

// ErrStoreNotConfigured is returned by every method of a repository built without a pool.
var ErrStoreNotConfigured = errors.New("license store not configured")

// LicenseRepository defines the read side of the license store plus the expiry write-back.
type LicenseRepository interface {
	// GetByKey returns the license issued under licenseKey, or pgx.ErrNoRows. Keys are issued
	// as UUIDv4 strings, so callers may reject anything that does not parse as a UUID without
	// asking the store.
	GetByKey(ctx context.Context, licenseKey string) (*domain.License, error)
	MarkExpired(ctx context.Context, id string) error
}

type licenseRepository struct {
	pool *pgxpool.Pool
}

// NewLicenseRepository returns a Postgres-backed implementation.
func NewLicenseRepository(pool *pgxpool.Pool) LicenseRepository {
	return &licenseRepository{pool: pool}
}

func (r *licenseRepository) GetByKey(ctx context.Context, licenseKey string) (*domain.License, error) {
	if r.pool == nil {
		return nil, ErrStoreNotConfigured
	}
	const query = `
        SELECT l.id, l.license_key, l.client_name, l.domain, l.product_id, COALESCE(p.name, ''),
               l.expiration_date, l.status, l.created_at, l.updated_at
        FROM licenses l
        LEFT JOIN products p ON p.id = l.product_id
        WHERE l.license_key=$1`

	var license domain.License
	if err := r.pool.QueryRow(ctx, query, licenseKey).Scan(
		&license.ID,
		&license.LicenseKey,
		&license.ClientName,
		&license.Domain,
		&license.ProductID,
		&license.ProductName,
		&license.ExpirationDate,
		&license.Status,
		&license.CreatedAt,
		&license.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &license, nil
}

func (r *licenseRepository) MarkExpired(ctx context.Context, id string) error {
	if r.pool == nil {
		return ErrStoreNotConfigured
	}
	const query = `
        UPDATE licenses SET status=$1, updated_at=NOW()
        WHERE id=$2`

	cmd, err := r.pool.Exec(ctx, query, domain.LicenseStatusExpired, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
