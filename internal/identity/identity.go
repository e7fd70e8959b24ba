// Package identity manages accounts on the collaboration platform.
package identity

import "context"

// Account describes an account to create
type Account struct {
	Username   string
	Email      string
	GivenName  string
	FamilyName string
}

// Provider lists and creates accounts on the collaboration platform
type Provider interface {
	// ListIdentities returns every existing identity name mapped to its
	// email address. Identities without an email map to "".
	ListIdentities(ctx context.Context) (map[string]string, error)
	CreateAccount(ctx context.Context, account Account) error
}
