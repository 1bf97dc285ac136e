// Package outbound defines the outbound port interfaces for talking to
// the platform's admin REST API.
package outbound

import (
	"context"

	"github.com/lurekit/lurekit/internal/domain/campaign"
	"github.com/lurekit/lurekit/internal/domain/session"
)

// AuthResult is what the authentication endpoints return: a fresh bearer
// token and the user it belongs to, always as a pair.
type AuthResult struct {
	Token string
	User  *session.User
}

// AuthAPI is the outbound port for the authentication endpoints.
// Adapters implement this over HTTP; tests implement it in memory.
type AuthAPI interface {
	// Login exchanges credentials for a session. twoFactorCode may be
	// empty when the account does not require one.
	Login(ctx context.Context, email, password, twoFactorCode string) (*AuthResult, error)

	// Register creates an account and returns its first session.
	Register(ctx context.Context, email, password, name string) (*AuthResult, error)

	// Refresh exchanges the current token for a new token and user.
	Refresh(ctx context.Context, token string) (*AuthResult, error)

	// Me returns the profile of the token's owner.
	Me(ctx context.Context, token string) (*session.User, error)

	// Logout notifies the server that the token should be revoked.
	Logout(ctx context.Context, token string) error
}

// CampaignAPI is the outbound port for the read-only campaign endpoints.
type CampaignAPI interface {
	// ListCampaigns returns all campaigns visible to the token's owner.
	ListCampaigns(ctx context.Context, token string) ([]campaign.Campaign, error)

	// Campaign returns a single campaign by ID.
	Campaign(ctx context.Context, token string, id int64) (*campaign.Campaign, error)

	// CampaignStats returns aggregate result counts for a campaign.
	CampaignStats(ctx context.Context, token string, id int64) (*campaign.Stats, error)
}
