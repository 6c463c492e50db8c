package oauth

import "context"

// Identity is the normalized identity assertion returned by a provider
// after a successful code exchange. It contains facts only; user
// creation and token decisions happen elsewhere.
type Identity struct {
	// Provider is the identity-provider tag (e.g., "google").
	Provider string

	// Email is the address asserted by the provider. May be empty.
	Email string

	// FullName is the display name asserted by the provider. May be empty.
	FullName string

	// AvatarURL is the profile picture URL. May be empty.
	AvatarURL string
}

// Exchanger abstracts the third-party identity provider.
type Exchanger interface {
	// SignInURL returns the provider consent-screen URL carrying the
	// given state parameter. Providers that obtain the URL from an
	// upstream service may fail here.
	SignInURL(state string) (string, error)

	// Exchange swaps a one-time authorization code for a verified
	// identity. It fails if the code is invalid, expired, or already
	// consumed, or if the provider returns no usable identity.
	Exchange(ctx context.Context, code string) (Identity, error)
}
