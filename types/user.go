package types

import "time"

// Roles a user can hold. There is no hierarchy between them; routes
// list every role they admit.
const (
	RoleUser  = "USER"
	RoleAdmin = "ADMIN"
)

// PlaceholderEmail is stored when the identity provider returns no
// email for the signed-in user. Email is the upsert key, so it must
// never be empty.
const PlaceholderEmail = "--no-email--"

// User represents an account in the system.
// It contains identity, role, and audit metadata.
type User struct {
	// ID is the unique identifier of the user, assigned on creation.
	ID string `json:"id" db:"id"`

	// Email is the user's email address. It uniquely identifies the
	// user and is the sole upsert key during sign-in.
	Email string `json:"email" db:"email"`

	// FirstName is the first whitespace-delimited token of the
	// provider's display name. May be empty.
	FirstName string `json:"firstName" db:"first_name"`

	// LastName is the remainder of the provider's display name.
	// May be empty.
	LastName string `json:"lastName" db:"last_name"`

	// Picture is the avatar URL reported by the provider. May be empty.
	Picture string `json:"picture" db:"picture"`

	// Role indicates the user's authorization level
	// within the system ("USER" or "ADMIN").
	Role string `json:"role" db:"role"`

	// Provider tags which identity provider the account came from
	// (e.g., "google").
	Provider string `json:"provider" db:"provider"`

	// CreatedAt is the timestamp when the user account was created.
	CreatedAt time.Time `json:"createdAt" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update to the user account.
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}
