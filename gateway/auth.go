package gateway

import (
	"errors"
	"strings"
	"time"

	"github.com/MicahParks/keyfunc"
	"github.com/golang-jwt/jwt/v4"
)

// Auth resolves bearer tokens on gateway requests to user ids.
type Auth struct {
	jwks     *keyfunc.JWKS
	audience string
	issuer   string

	// hmacSecret switches validation to HMAC-signed tokens, for local
	// runs without an identity provider.
	hmacSecret []byte
}

// NewAuth creates an Auth validating RS256 tokens against the given JWKS.
func NewAuth(jwks *keyfunc.JWKS, audience, issuer string) *Auth {
	return &Auth{jwks: jwks, audience: audience, issuer: issuer}
}

// NewTestAuth creates an Auth accepting HS256 tokens signed with secret.
func NewTestAuth(secret []byte) *Auth {
	if len(secret) == 0 {
		panic("gateway.NewTestAuth: empty secret")
	}
	return &Auth{hmacSecret: secret}
}

// UserIDFromAuthHeader extracts the user identifier from the Authorization
// header.
func (a *Auth) UserIDFromAuthHeader(h string) (string, error) {
	tokenStr, err := bearerToken(h)
	if err != nil {
		return "", err
	}
	if a.hmacSecret != nil {
		return a.parseHMAC(tokenStr)
	}
	return a.parseRS256(tokenStr)
}

func bearerToken(h string) (string, error) {
	if h == "" {
		return "", errors.New("missing authorization header")
	}
	parts := strings.SplitN(h, " ", 2)
	if len(parts) != 2 || strings.Count(parts[1], ".") != 2 {
		return "", errors.New("bad auth header")
	}
	return parts[1], nil
}

func (a *Auth) parseHMAC(tokenStr string) (string, error) {
	token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return a.hmacSecret, nil
	})
	if err != nil {
		return "", err
	}
	return subjectOf(token)
}

func (a *Auth) parseRS256(tokenStr string) (string, error) {
	parser := jwt.NewParser(jwt.WithValidMethods([]string{"RS256"}))
	token, err := parser.Parse(tokenStr, a.jwks.Keyfunc)
	if err != nil {
		return "", err
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", errors.New("invalid claims")
	}
	now := time.Now().Add(time.Minute).Unix()
	if !claims.VerifyExpiresAt(now, true) {
		return "", errors.New("token expired")
	}
	if !claims.VerifyNotBefore(now, false) {
		return "", errors.New("token not valid yet")
	}
	if !claims.VerifyAudience(a.audience, false) {
		return "", errors.New("invalid audience")
	}
	if !claims.VerifyIssuer(a.issuer, false) {
		return "", errors.New("invalid issuer")
	}
	return subjectOf(token)
}

func subjectOf(token *jwt.Token) (string, error) {
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", errors.New("invalid claims")
	}
	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return "", errors.New("missing sub")
	}
	return sub, nil
}
