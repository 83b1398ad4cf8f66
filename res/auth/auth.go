package auth

import (
	"github.com/golang-jwt/jwt"
)

const AccessTokenLifespanInHours = 12

type Role string

const (
	RoleAdmin    Role = "admin"
	RoleOperator Role = "operator"
	RoleStaff    Role = "staff"
	RoleViewer   Role = "viewer"
)

// ParseRole maps unknown or missing roles onto RoleViewer
func ParseRole(s string) Role {
	switch r := Role(s); r {
	case RoleAdmin, RoleOperator, RoleStaff, RoleViewer:
		return r
	}
	return RoleViewer
}

// Principal is the authenticated caller of a request
type Principal struct {
	UID   string
	Email string
	Role  Role
}

func (p *Principal) HasRole(roles ...Role) bool {
	for _, r := range roles {
		if p.Role == r {
			return true
		}
	}
	return false
}

type Auth interface {
	ValidateToken(token string, claims jwt.Claims) error

	// Authenticate validates an access token and returns its principal
	Authenticate(token string) (*Principal, error)

	GenerateAccessToken(principal Principal) (string, error)
}

type authImpl struct {
	jwtPrivateKey string
}

func New(jwtSecret string) *authImpl {
	return &authImpl{
		jwtPrivateKey: jwtSecret,
	}
}
