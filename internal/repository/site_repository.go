package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/todoer/internal/model"
)

// SiteRepo reads and creates rows of the sites table.
type SiteRepo struct {
	db *sql.DB
}

func NewSiteRepo(db *sql.DB) *SiteRepo {
	return &SiteRepo{db: db}
}

// GetOrCreate returns the site with the given id, creating it with domain
// and name when it does not exist yet.  An existing site keeps its values.
// created reports whether a row was inserted.
func (r *SiteRepo) GetOrCreate(ctx context.Context, id uint64, domain, name string) (site model.Site, created bool, err error) {
	const qSelect = "SELECT id, domain, name FROM sites WHERE id = ?"
	err = r.db.QueryRowContext(ctx, qSelect, id).Scan(&site.ID, &site.Domain, &site.Name)
	if err == nil {
		return site, false, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return model.Site{}, false, err
	}

	const qInsert = "INSERT INTO sites (id, domain, name) VALUES (?, ?, ?)"
	if _, err = r.db.ExecContext(ctx, qInsert, id, domain, name); err != nil {
		// lost a race with another setup run; read the winner
		if _, dup := duplicateKey(err); dup {
			err = r.db.QueryRowContext(ctx, qSelect, id).Scan(&site.ID, &site.Domain, &site.Name)
			return site, false, err
		}
		return model.Site{}, false, err
	}
	return model.Site{ID: id, Domain: domain, Name: name}, true, nil
}
