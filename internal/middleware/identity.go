package middleware

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"

	"github.com/noah-isme/learnflow-api/internal/utils"
)

// Roles recognised by the identity context.
const (
	RoleStudent   = "student"
	RoleTeacher   = "teacher"
	RoleAnonymous = "anonymous"
)

const (
	localUserID   = "user_id"
	localUserRole = "user_role"
)

// Identity is the calling principal as established by JWTProtected.
type Identity struct {
	UserID uint
	Role   string
}

// IdentityFromContext returns the principal bound to the request, or an anonymous identity.
func IdentityFromContext(c *fiber.Ctx) Identity {
	identity := Identity{Role: RoleAnonymous}
	if c == nil {
		return identity
	}

	switch v := c.Locals(localUserID).(type) {
	case uint:
		identity.UserID = v
	case int:
		if v > 0 {
			identity.UserID = uint(v)
		}
	}

	if role := normalizeRoleValue(c.Locals(localUserRole)); role != "" {
		identity.Role = canonicalRole(role)
	}

	return identity
}

// JWTProtected returns a middleware that validates HMAC-signed bearer tokens and
// binds the subject and role claims to the request.
func JWTProtected(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authorization := c.Get("Authorization")
		if authorization == "" {
			return utils.SendError(c, fiber.StatusUnauthorized, "authorization header missing")
		}

		const bearer = "bearer "
		if !strings.HasPrefix(strings.ToLower(authorization), bearer) {
			return utils.SendError(c, fiber.StatusUnauthorized, "invalid authorization header")
		}

		tokenString := strings.TrimSpace(authorization[len(bearer):])
		if tokenString == "" {
			return utils.SendError(c, fiber.StatusUnauthorized, "invalid token")
		}

		token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
			}
			return []byte(secret), nil
		})
		if err != nil || !token.Valid {
			return utils.SendError(c, fiber.StatusUnauthorized, "invalid token")
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			return utils.SendError(c, fiber.StatusUnauthorized, "invalid token claims")
		}

		userID, ok := userIDFromClaims(claims)
		if !ok {
			return utils.SendError(c, fiber.StatusUnauthorized, "token subject missing")
		}

		c.Locals(localUserID, userID)
		c.Locals(localUserRole, canonicalRole(roleFromClaims(claims)))

		return c.Next()
	}
}

// IssueToken signs a token for the given principal. Used by seed tooling and tests.
func IssueToken(secret string, identity Identity) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  strconv.FormatUint(uint64(identity.UserID), 10),
		"role": identity.Role,
	})
	return token.SignedString([]byte(secret))
}

func userIDFromClaims(claims jwt.MapClaims) (uint, bool) {
	for _, key := range []string{"sub", "user_id", "id"} {
		value, ok := claims[key]
		if !ok {
			continue
		}
		if id, err := normalizeUserID(value); err == nil && id > 0 {
			return id, true
		}
	}
	return 0, false
}

func normalizeUserID(value interface{}) (uint, error) {
	switch v := value.(type) {
	case float64:
		if v < 0 {
			return 0, fmt.Errorf("invalid subject")
		}
		return uint(v), nil
	case string:
		parsed, err := strconv.ParseUint(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return 0, err
		}
		return uint(parsed), nil
	default:
		return 0, fmt.Errorf("unsupported subject type %T", value)
	}
}

func roleFromClaims(claims jwt.MapClaims) string {
	for _, key := range []string{"role", "roles"} {
		switch v := claims[key].(type) {
		case string:
			return v
		case []interface{}:
			for _, item := range v {
				if str, ok := item.(string); ok && strings.TrimSpace(str) != "" {
					return str
				}
			}
		}
	}
	return ""
}

// canonicalRole folds admin into teacher and anything unknown into anonymous.
func canonicalRole(role string) string {
	switch strings.ToLower(strings.TrimSpace(role)) {
	case RoleStudent:
		return RoleStudent
	case RoleTeacher, "admin":
		return RoleTeacher
	default:
		return RoleAnonymous
	}
}
