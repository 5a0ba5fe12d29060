package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/iliyamo/todoer/internal/model"
)

// SocialAccountRepo links users to identities at external providers.
type SocialAccountRepo struct {
	db *sql.DB
}

func NewSocialAccountRepo(db *sql.DB) *SocialAccountRepo {
	return &SocialAccountRepo{db: db}
}

// GetByProviderUID fetches the link for an external identity, or
// ErrSocialAccountNotFound.
func (r *SocialAccountRepo) GetByProviderUID(ctx context.Context, provider, uid string) (*model.SocialAccount, error) {
	const q = "SELECT id, user_id, provider, uid, extra_data, created_at FROM social_accounts WHERE provider = ? AND uid = ?"
	var (
		a     model.SocialAccount
		extra []byte
	)
	err := r.db.QueryRowContext(ctx, q, provider, uid).Scan(&a.ID, &a.UserID, &a.Provider, &a.UID, &extra, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSocialAccountNotFound
		}
		return nil, err
	}
	if len(extra) > 0 {
		if err := json.Unmarshal(extra, &a.ExtraData); err != nil {
			return nil, err
		}
	}
	return &a, nil
}

// Create stores a new link.  A second link for the same (provider, uid)
// fails with ErrSocialAccountExists.
func (r *SocialAccountRepo) Create(ctx context.Context, a *model.SocialAccount) error {
	extra, err := json.Marshal(a.ExtraData)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	const q = "INSERT INTO social_accounts (user_id, provider, uid, extra_data, created_at) VALUES (?, ?, ?, ?, ?)"
	res, err := r.db.ExecContext(ctx, q, a.UserID, a.Provider, a.UID, string(extra), now)
	if err != nil {
		if _, dup := duplicateKey(err); dup {
			return ErrSocialAccountExists
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	a.ID = uint64(id)
	a.CreatedAt = now
	return nil
}
