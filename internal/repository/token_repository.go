package repository

import (
	"sync"
)

// DeviceToken represents a registered device token
type DeviceToken struct {
	Token     string
	UserID    string
	Platform  string // "android", "ios" or "web"
	CreatedAt int64
}

// TokenRepository manages device tokens for push notifications, keyed by
// the owning user so a mutation can notify that user's other devices.
type TokenRepository struct {
	tokens map[string]*DeviceToken // token -> DeviceToken
	mu     sync.RWMutex
}

func NewTokenRepository() *TokenRepository {
	return &TokenRepository{
		tokens: make(map[string]*DeviceToken),
	}
}

// RegisterToken adds or updates a device token
func (r *TokenRepository) RegisterToken(token, userID, platform string, timestamp int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.tokens[token] = &DeviceToken{
		Token:     token,
		UserID:    userID,
		Platform:  platform,
		CreatedAt: timestamp,
	}
}

// UnregisterToken removes a device token
func (r *TokenRepository) UnregisterToken(token string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.tokens, token)
}

// GetTokensForUser returns the registered tokens of one user
func (r *TokenRepository) GetTokensForUser(userID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tokens := make([]string, 0)
	for token, dt := range r.tokens {
		if dt.UserID == userID {
			tokens = append(tokens, token)
		}
	}
	return tokens
}

// GetTokenCount returns the number of registered tokens
func (r *TokenRepository) GetTokenCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.tokens)
}
