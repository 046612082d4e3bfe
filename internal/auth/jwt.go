package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Roles carried in tokens.
const (
	RoleAdmin   = "admin"
	RoleTeacher = "teacher"
	RoleStudent = "student"
	RoleCaptain = "captain"
)

// Token is a signed access token.
type Token struct {
	Value     string
	ExpiresAt time.Time
}

// Identity is who a token is issued for. Students and captains carry their
// class placement.
type Identity struct {
	Subject string
	Role    string
	Program string
	Year    string
	Section string
}

// Claims represents JWT payload.
type Claims struct {
	Subject string `json:"sub"`
	Role    string `json:"role"`
	Program string `json:"program,omitempty"`
	Year    string `json:"year,omitempty"`
	Section string `json:"section,omitempty"`
	jwt.RegisteredClaims
}

// InSection reports whether the claims place the holder in the given class.
func (c Claims) InSection(program, year, section string) bool {
	return c.Program != "" && c.Program == program && c.Year == year && c.Section == section
}

// Issue signs an access token for id valid for ttl.
func Issue(id Identity, issuer, key string, ttl time.Duration) (Token, error) {
	now := time.Now()
	exp := now.Add(ttl)
	claims := Claims{
		Subject: id.Subject,
		Role:    id.Role,
		Program: id.Program,
		Year:    id.Year,
		Section: id.Section,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   id.Subject,
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(key))
	if err != nil {
		return Token{}, err
	}
	return Token{Value: signed, ExpiresAt: exp}, nil
}

// Parse validates a token and returns claims.
func Parse(tokenStr, key, issuer string) (Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(key), nil
	})
	if err != nil {
		return Claims{}, err
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return Claims{}, errors.New("invalid token")
	}
	if issuer != "" && claims.Issuer != issuer {
		return Claims{}, errors.New("issuer mismatch")
	}
	return *claims, nil
}
