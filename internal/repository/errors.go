// Package repository defines error types that are reused across multiple
// repositories.  These sentinel values allow higher layers such as
// services and handlers to distinguish "no such row" from infrastructure
// failures without inspecting driver errors.
package repository

import (
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
)

var (
	// ErrTodoNotFound is returned when no to-do item matches both the id
	// and the owner.  Items of other users are indistinguishable from
	// missing ones.
	ErrTodoNotFound = errors.New("todo not found")

	ErrUserNotFound          = errors.New("user not found")
	ErrEmailExists           = errors.New("email already exists")
	ErrUsernameExists        = errors.New("username already exists")
	ErrProviderNotFound      = errors.New("provider registration not found")
	ErrSocialAccountNotFound = errors.New("social account not found")
	ErrSocialAccountExists   = errors.New("social account already linked")

	// ErrInvalidRefresh covers unknown, revoked and expired refresh tokens.
	ErrInvalidRefresh = errors.New("invalid refresh token")
)

// mysqlDuplicateEntry is ER_DUP_ENTRY.
const mysqlDuplicateEntry = 1062

// duplicateKey reports whether err is a unique-key violation and, if so,
// the name of the violated key without its table qualifier.  The server
// message looks like
//
//	Duplicate entry 'a@example.com' for key 'users.uq_users_email'
//
// and older servers omit the "users." part.  Only the text after
// "for key" is used since the duplicate value may contain anything.
func duplicateKey(err error) (string, bool) {
	var me *mysql.MySQLError
	if !errors.As(err, &me) || me.Number != mysqlDuplicateEntry {
		return "", false
	}
	i := strings.LastIndex(me.Message, "for key '")
	if i < 0 {
		return "", true
	}
	key := strings.TrimSuffix(me.Message[i+len("for key '"):], "'")
	if dot := strings.LastIndex(key, "."); dot >= 0 {
		key = key[dot+1:]
	}
	return key, true
}

// duplicateOn reports whether err is a unique-key violation of the named
// key, e.g. "uq_users_email".
func duplicateOn(err error, key string) bool {
	name, ok := duplicateKey(err)
	return ok && name == key
}
