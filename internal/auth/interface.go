package auth

import "kbase/internal/domain/models"

// TokenVerifier validates bearer tokens so the middleware stays agnostic of how keys are obtained
type TokenVerifier interface {
	// VerifyToken validates a token and returns its claims.
	// Returns domain.ErrUnauthorized for any invalid, expired or unsigned token.
	VerifyToken(tokenString string) (*models.Claims, error)

	// Close releases any resources held by the verifier
	Close() error
}
