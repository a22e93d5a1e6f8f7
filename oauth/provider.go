// Package oauth abstracts the token service a bot uses to obtain, exchange
// and revoke user tokens for a named OAuth connection.
package oauth

import (
	"context"

	"github.com/convoflow/convoflow/types"
)

// TokenProvider is the token service surface the OAuth prompt drives.
// Implementations talk to the channel's token endpoint; tests use an
// in-memory double.
type TokenProvider interface {
	// GetUserToken fetches the user's token for the connection. magicCode
	// is the out-of-band verification code, empty when none was supplied.
	// A nil response with a nil error means no token is available yet.
	GetUserToken(ctx context.Context, tc *types.TurnContext, connectionName, magicCode string) (*types.TokenResponse, error)

	// GetSignInResource returns the sign-in link and token exchange
	// details used to render an OAuth card.
	GetSignInResource(ctx context.Context, tc *types.TurnContext, connectionName string) (*types.SignInResource, error)

	// ExchangeToken performs a token exchange for single sign-on. A nil
	// response with a nil error means the exchange was not honored.
	ExchangeToken(ctx context.Context, tc *types.TurnContext, connectionName string, request *types.TokenExchangeInvokeRequest) (*types.TokenResponse, error)

	// SignOutUser revokes the user's token for the connection.
	SignOutUser(ctx context.Context, tc *types.TurnContext, connectionName string) error
}
