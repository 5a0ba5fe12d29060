package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/todoer/internal/model"
)

// ProviderRepo stores OAuth provider registrations and their association
// with sites.  There is at most one registration per provider key.
type ProviderRepo struct {
	db *sql.DB
}

func NewProviderRepo(db *sql.DB) *ProviderRepo {
	return &ProviderRepo{db: db}
}

const providerColumns = "id, provider, name, client_id, secret, created_at, updated_at"

// GetByProvider fetches the registration for a provider key, or
// ErrProviderNotFound.
func (r *ProviderRepo) GetByProvider(ctx context.Context, provider string) (*model.ProviderRegistration, error) {
	const q = "SELECT " + providerColumns + " FROM provider_registrations WHERE provider = ?"
	p, err := scanProvider(r.db.QueryRowContext(ctx, q, provider))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrProviderNotFound
	}
	return p, err
}

// Create inserts a registration and fills in its ID and timestamps.
func (r *ProviderRepo) Create(ctx context.Context, p *model.ProviderRegistration) error {
	now := time.Now().UTC()
	const q = "INSERT INTO provider_registrations (provider, name, client_id, secret, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)"
	res, err := r.db.ExecContext(ctx, q, p.Provider, p.Name, p.ClientID, p.Secret, now, now)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	p.ID = uint64(id)
	p.CreatedAt, p.UpdatedAt = now, now
	return nil
}

// Update overwrites name and credentials of an existing registration.
func (r *ProviderRepo) Update(ctx context.Context, p *model.ProviderRegistration) error {
	now := time.Now().UTC()
	const q = "UPDATE provider_registrations SET name = ?, client_id = ?, secret = ?, updated_at = ? WHERE id = ?"
	res, err := r.db.ExecContext(ctx, q, p.Name, p.ClientID, p.Secret, now, p.ID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrProviderNotFound
	}
	p.UpdatedAt = now
	return nil
}

// AddSite associates a registration with a site.  Adding an existing
// association is a no-op.
func (r *ProviderRepo) AddSite(ctx context.Context, registrationID, siteID uint64) error {
	var one int
	err := r.db.QueryRowContext(ctx,
		"SELECT 1 FROM provider_sites WHERE provider_registration_id = ? AND site_id = ?",
		registrationID, siteID).Scan(&one)
	if err == nil {
		return nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return err
	}
	_, err = r.db.ExecContext(ctx,
		"INSERT INTO provider_sites (provider_registration_id, site_id) VALUES (?, ?)",
		registrationID, siteID)
	if _, dup := duplicateKey(err); dup {
		return nil
	}
	return err
}

// ListForSite returns the registrations enabled for a site, ordered by
// provider key.
func (r *ProviderRepo) ListForSite(ctx context.Context, siteID uint64) ([]model.ProviderRegistration, error) {
	const q = `SELECT p.id, p.provider, p.name, p.client_id, p.secret, p.created_at, p.updated_at
		FROM provider_registrations p
		JOIN provider_sites ps ON ps.provider_registration_id = p.id
		WHERE ps.site_id = ?
		ORDER BY p.provider`
	rows, err := r.db.QueryContext(ctx, q, siteID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.ProviderRegistration
	for rows.Next() {
		p, err := scanProvider(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func scanProvider(s rowScanner) (*model.ProviderRegistration, error) {
	var p model.ProviderRegistration
	if err := s.Scan(&p.ID, &p.Provider, &p.Name, &p.ClientID, &p.Secret, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}
