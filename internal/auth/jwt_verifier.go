package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"
	"kbase/internal/domain"
	"kbase/internal/domain/models"
)

// roleAnonymous marks tokens issued to signed-out visitors
const roleAnonymous = "anon"

// allowedAlgorithms guards against algorithm confusion
var allowedAlgorithms = []string{"RS256", "ES256"}

// JWKSVerifier implements TokenVerifier with keys fetched from a JWKS endpoint
type JWKSVerifier struct {
	keyFunc jwt.Keyfunc
	logger  *slog.Logger
}

// NewJWTVerifier creates a verifier backed by jwksURL.
// keyfunc caches the key set and refreshes it according to HTTP cache headers.
func NewJWTVerifier(ctx context.Context, jwksURL string, logger *slog.Logger) (TokenVerifier, error) {
	if jwksURL == "" {
		return nil, errors.New("JWKS URL cannot be empty")
	}

	jwks, err := keyfunc.NewDefaultCtx(ctx, []string{jwksURL})
	if err != nil {
		return nil, fmt.Errorf("failed to create JWKS client: %w", err)
	}

	logger.Info("JWT verifier initialized", "jwks_url", jwksURL)
	return newVerifier(jwks.Keyfunc, logger), nil
}

func newVerifier(keyFunc jwt.Keyfunc, logger *slog.Logger) *JWKSVerifier {
	return &JWKSVerifier{keyFunc: keyFunc, logger: logger}
}

// VerifyToken implements TokenVerifier
func (v *JWKSVerifier) VerifyToken(tokenString string) (*models.Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &models.Claims{}, v.keyFunc,
		jwt.WithValidMethods(allowedAlgorithms),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		v.logger.Debug("token rejected", "error", err)
		return nil, domain.ErrUnauthorized
	}

	claims, ok := token.Claims.(*models.Claims)
	if !ok || !token.Valid {
		return nil, domain.ErrUnauthorized
	}

	if claims.Subject == "" {
		v.logger.Debug("token missing subject claim")
		return nil, domain.ErrUnauthorized
	}

	if claims.Role == roleAnonymous {
		v.logger.Debug("anonymous token rejected", "user_id", claims.Subject)
		return nil, domain.ErrUnauthorized
	}

	return claims, nil
}

// Close is a no-op; keyfunc owns its refresh goroutine through the context it was created with
func (v *JWKSVerifier) Close() error {
	return nil
}
