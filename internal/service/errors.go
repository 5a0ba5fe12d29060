// Package service holds the application logic between the HTTP handlers
// and the repositories: the to-do lifecycle, provider provisioning and
// account linking.
package service

import "errors"

var (
	// ErrValidation marks input the caller must fix, such as empty content.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound means the item does not exist for this user.  Items of
	// other users are reported the same way so their existence never leaks.
	ErrNotFound = errors.New("todo not found")
)
