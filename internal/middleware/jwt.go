package middleware

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"

	"github.com/noah-isme/gema-notify/internal/utils"
)

// Claims are the token claims understood by the notifier. Either Role or the first entry of Roles is used.
type Claims struct {
	Role  string   `json:"role,omitempty"`
	Roles []string `json:"roles,omitempty"`
	jwt.RegisteredClaims
}

// PrimaryRole returns the normalised role carried by the token.
func (c Claims) PrimaryRole() string {
	if roles := c.AllRoles(); len(roles) > 0 {
		return roles[0]
	}
	return ""
}

// AllRoles returns Role followed by Roles, normalised and without blanks.
func (c Claims) AllRoles() []string {
	roles := make([]string, 0, len(c.Roles)+1)
	for _, candidate := range append([]string{c.Role}, c.Roles...) {
		if role := normalizeRole(candidate); role != "" {
			roles = append(roles, role)
		}
	}
	return roles
}

// JWTProtected returns a middleware that validates HMAC signed bearer tokens.
// The subject and roles are exposed as the "subject", "user_role" and "user_roles" locals.
func JWTProtected(secret string) fiber.Handler {
	parser := jwt.NewParser(jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}))

	return func(c *fiber.Ctx) error {
		tokenString, err := bearerToken(c.Get(fiber.HeaderAuthorization))
		if err != nil {
			return utils.SendError(c, fiber.StatusUnauthorized, err.Error())
		}

		claims := &Claims{}
		token, err := parser.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
			return []byte(secret), nil
		})
		if err != nil || !token.Valid {
			return utils.SendError(c, fiber.StatusUnauthorized, "invalid token")
		}

		if subject := strings.TrimSpace(claims.Subject); subject != "" {
			c.Locals("subject", subject)
		}
		if roles := claims.AllRoles(); len(roles) > 0 {
			c.Locals("user_role", roles[0])
			c.Locals("user_roles", roles)
		}

		return c.Next()
	}
}

func bearerToken(authorization string) (string, error) {
	if authorization == "" {
		return "", errors.New("authorization header missing")
	}

	const bearer = "bearer "
	if len(authorization) < len(bearer) || !strings.EqualFold(authorization[:len(bearer)], bearer) {
		return "", errors.New("invalid authorization header")
	}

	token := strings.TrimSpace(authorization[len(bearer):])
	if token == "" {
		return "", errors.New("invalid token")
	}
	return token, nil
}
