package testutil

import (
	"context"
	"sync"

	"github.com/convoflow/convoflow/types"
)

// TokenProvider is an in-memory token service double for OAuth prompt
// tests.
type TokenProvider struct {
	mu sync.Mutex
	// tokens maps connection/user to the token returned once any required
	// magic code is satisfied.
	tokens     map[string]string
	magicCodes map[string]string
	// exchangeable maps connection/user/exchange-token to the user token
	// granted for it.
	exchangeable map[string]string
	signOuts     []string
}

// NewTokenProvider creates an empty token service double.
func NewTokenProvider() *TokenProvider {
	return &TokenProvider{
		tokens:       map[string]string{},
		magicCodes:   map[string]string{},
		exchangeable: map[string]string{},
	}
}

func key(connection, userID string) string { return connection + "/" + userID }

// AddToken makes a token immediately available for the connection and user.
func (p *TokenProvider) AddToken(connection, userID, token string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tokens[key(connection, userID)] = token
}

// AddTokenWithMagicCode makes a token available only once the user sends
// the matching verification code.
func (p *TokenProvider) AddTokenWithMagicCode(connection, userID, token, magicCode string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tokens[key(connection, userID)] = token
	p.magicCodes[key(connection, userID)] = magicCode
}

// AddExchangeableToken registers an exchange token the provider will trade
// for a user token.
func (p *TokenProvider) AddExchangeableToken(connection, userID, exchangeToken, userToken string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.exchangeable[key(connection, userID)+"/"+exchangeToken] = userToken
}

// SignOutCount returns how many times SignOutUser was called.
func (p *TokenProvider) SignOutCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.signOuts)
}

func (p *TokenProvider) GetUserToken(ctx context.Context, tc *types.TurnContext, connectionName, magicCode string) (*types.TokenResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	userID := userIDFrom(tc)
	token, ok := p.tokens[key(connectionName, userID)]
	if !ok {
		return nil, nil
	}
	if required, needs := p.magicCodes[key(connectionName, userID)]; needs && required != magicCode {
		return nil, nil
	}
	return &types.TokenResponse{ConnectionName: connectionName, Token: token}, nil
}

func (p *TokenProvider) GetSignInResource(ctx context.Context, tc *types.TurnContext, connectionName string) (*types.SignInResource, error) {
	return &types.SignInResource{
		SignInLink: "https://login.test/" + connectionName,
		TokenExchangeResource: &types.TokenExchangeResource{
			ID:  "exchange-" + connectionName,
			URI: "api://test/" + connectionName,
		},
	}, nil
}

func (p *TokenProvider) ExchangeToken(ctx context.Context, tc *types.TurnContext, connectionName string, request *types.TokenExchangeInvokeRequest) (*types.TokenResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if request == nil {
		return nil, nil
	}
	userID := userIDFrom(tc)
	token, ok := p.exchangeable[key(connectionName, userID)+"/"+request.Token]
	if !ok {
		return nil, nil
	}
	return &types.TokenResponse{ConnectionName: connectionName, Token: token}, nil
}

func (p *TokenProvider) SignOutUser(ctx context.Context, tc *types.TurnContext, connectionName string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	userID := userIDFrom(tc)
	delete(p.tokens, key(connectionName, userID))
	delete(p.magicCodes, key(connectionName, userID))
	p.signOuts = append(p.signOuts, key(connectionName, userID))
	return nil
}

func userIDFrom(tc *types.TurnContext) string {
	if a := tc.Activity(); a != nil && a.From != nil {
		return a.From.ID
	}
	return ""
}
