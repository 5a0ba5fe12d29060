// Package queue defines message payloads exchanged over the message broker
// together with the publisher and the background consumer for them.
package queue

// SignupQueueName is the durable queue carrying UserRegisteredEvent.
const SignupQueueName = "user.registered"

// UserRegisteredEvent is published when a new account is created, either
// through email/password signup or on the first sign-in with an external
// provider.  It carries enough for downstream consumers to log or notify
// without querying the primary database.
type UserRegisteredEvent struct {
	UserID       uint64 `json:"user_id"`
	Username     string `json:"username"`
	Email        string `json:"email,omitempty"`
	Provider     string `json:"provider,omitempty"` // empty for password signups
	RegisteredAt string `json:"registered_at"`      // RFC 3339, UTC
}
