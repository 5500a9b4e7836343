package echoapi

import (
	"net/mail"
	"sort"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/trezcool/contractgrading/core"
)

const (
	RoleAdmin   = "admin"
	RoleTeacher = "teacher"

	jwtContextKey = "userToken"
	jwtAudience   = "ContractGrading"
)

func newJWTConfig(conf *core.Config) middleware.JWTConfig {
	return middleware.JWTConfig{
		SigningKey:    []byte(conf.SecretKey),
		SigningMethod: middleware.AlgorithmHS256,
		ContextKey:    jwtContextKey,
		Claims:        new(Claims),
	}
}

// Claims represents the authorization claims transmitted via a JWT.
type Claims struct {
	jwt.StandardClaims
	Name      string   `json:"name,omitempty"`
	Username  string   `json:"username,omitempty"`
	Email     string   `json:"email,omitempty"`
	IsTeacher bool     `json:"is_teacher,omitempty"`
	IsAdmin   bool     `json:"is_admin,omitempty"`
	Roles     []string `json:"roles,omitempty"`
}

// NewClaims returns the claims of an instructor account, issued now.
func NewClaims(conf *core.Config, person core.Person, name string, roles ...string) *Claims {
	now := time.Now()
	claims := &Claims{
		StandardClaims: jwt.StandardClaims{
			Issuer:    conf.AppName,
			Subject:   person.ID,
			Audience:  jwtAudience,
			ExpiresAt: now.Add(conf.Server.JWTExpirationDelta).Unix(),
			IssuedAt:  now.Unix(),
		},
		Name:     name,
		Username: person.Username,
		Email:    person.Email,
		Roles:    roles,
	}
	for _, role := range roles {
		switch role {
		case RoleAdmin:
			claims.IsAdmin = true
		case RoleTeacher:
			claims.IsTeacher = true
		}
	}
	return claims
}

func (c Claims) Person() core.Person {
	return core.Person{ID: c.Subject, Username: c.Username, Email: c.Email}
}

// Address is where result notifications go; empty when the token carries no email.
func (c Claims) Address() mail.Address {
	if c.Email == "" {
		return mail.Address{}
	}
	return mail.Address{Name: c.Name, Address: c.Email}
}

// GenerateToken generates a signed JWT token string representing the user Claims.
func GenerateToken(conf *core.Config, claims *Claims) (string, error) {
	cfg := newJWTConfig(conf)
	method := jwt.GetSigningMethod(cfg.SigningMethod)
	token := jwt.NewWithClaims(method, claims)

	ss, err := token.SignedString(cfg.SigningKey)
	if err != nil {
		return "", errors.Wrap(err, "signing token")
	}
	return ss, nil
}

func getContextClaims(ctx echo.Context) (Claims, error) {
	if token, ok := ctx.Get(jwtContextKey).(*jwt.Token); ok {
		if claims, ok := token.Claims.(*Claims); ok {
			return *claims, nil
		}
	}
	return Claims{}, errUnauthorized
}

func contextHasAnyRole(ctx echo.Context, roles []string) bool {
	if len(roles) == 0 {
		return true
	}
	if claims, err := getContextClaims(ctx); err == nil {
		sorted := append([]string(nil), claims.Roles...)
		sort.Strings(sorted)
		for _, role := range roles {
			if i := sort.SearchStrings(sorted, role); i < len(sorted) && sorted[i] == role {
				return true
			}
		}
	}
	return false
}
