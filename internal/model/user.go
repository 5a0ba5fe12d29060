package model

import "time"

// User represents an account as stored in the `users` table.  Accounts
// created through an external identity provider have no password and a
// synthetic username; accounts created through email/password signup
// get a synthetic username as well because sign-in is email based.
//
// Fields:
//  ID           – primary key identifier of the user.
//  Username     – unique handle, e.g. user_1a2b3c4d.
//  Email        – email address; empty when unknown (stored as NULL).
//  PasswordHash – bcrypt hash; empty for external-only accounts.
//  IsActive     – whether the account may sign in.
//  CreatedAt    – timestamp of creation.
//  UpdatedAt    – timestamp of last update.
type User struct {
	ID           uint64    // users.id
	Username     string    // users.username
	Email        string    // users.email (nullable)
	PasswordHash string    // users.password_hash
	IsActive     bool      // users.is_active
	CreatedAt    time.Time // users.created_at
	UpdatedAt    time.Time // users.updated_at
}

// HasUsablePassword reports whether the user can sign in with a password.
func (u *User) HasUsablePassword() bool { return u.PasswordHash != "" }

// RefreshToken models an entry in the `refresh_tokens` table.  Only the
// SHA‑256 hash of the raw token is persisted.
//
// Fields:
//  ID        – primary key identifier.
//  UserID    – owner of the token.
//  TokenHash – SHA‑256 hex digest of the token value.
//  ExpiresAt – expiration timestamp of the token.
//  RevokedAt – when the token was revoked (nil if still active).
//  CreatedAt – timestamp of creation.
type RefreshToken struct {
	ID        uint64     // refresh_tokens.id
	UserID    uint64     // refresh_tokens.user_id
	TokenHash string     // refresh_tokens.token_hash
	ExpiresAt time.Time  // refresh_tokens.expires_at
	RevokedAt *time.Time // refresh_tokens.revoked_at (nullable)
	CreatedAt time.Time  // refresh_tokens.created_at
}
