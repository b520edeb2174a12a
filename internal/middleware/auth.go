// Package middleware holds the fiber middleware shared by every route group.
package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"

	"github.com/MLSAKIIT/Showcase/internal/apperrors"
)

const userIDKey = "userId"

// Claims are the token claims the API reads. The subject is the user id.
type Claims struct {
	jwt.RegisteredClaims
}

// NewAuthMiddleware validates a Bearer HS256 token and stores its subject
// under c.Locals("userId"). A bare token without the Bearer prefix is
// accepted as well.
func NewAuthMiddleware(secret, expectedIssuer string) fiber.Handler {
	secretBytes := []byte(secret)
	return func(c *fiber.Ctx) error {
		authHeader := strings.TrimSpace(c.Get(fiber.HeaderAuthorization))
		if authHeader == "" {
			return apperrors.Authentication("Missing Authorization header")
		}

		tokenStr := authHeader
		if scheme, rest, found := strings.Cut(authHeader, " "); found && strings.EqualFold(scheme, "Bearer") {
			tokenStr = strings.TrimSpace(rest)
		}
		if tokenStr == "" {
			return apperrors.Authentication("Empty bearer token")
		}

		claims := &Claims{}
		token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (any, error) {
			return secretBytes, nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}))
		if err != nil || !token.Valid {
			return apperrors.Authentication("Invalid or expired token")
		}
		if expectedIssuer != "" && claims.Issuer != expectedIssuer {
			return apperrors.Authentication("Invalid token issuer")
		}
		if claims.Subject == "" {
			return apperrors.Authentication("Token has no subject")
		}

		c.Locals(userIDKey, claims.Subject)
		return c.Next()
	}
}

// UserID returns the authenticated user, or "" on public routes.
func UserID(c *fiber.Ctx) string {
	id, _ := c.Locals(userIDKey).(string)
	return id
}

// IssueToken signs a token for userID. Used by the CLI and tests.
func IssueToken(secret, issuer, userID string, claims jwt.RegisteredClaims) (string, error) {
	claims.Subject = userID
	if issuer != "" {
		claims.Issuer = issuer
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{RegisteredClaims: claims})
	return token.SignedString([]byte(secret))
}
