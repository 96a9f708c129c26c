package security

import (
	"crypto/rand"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidToken is returned when a token is malformed or invalid.
	ErrInvalidToken = errors.New("invalid token")
)

// sessionTokenLength is the length of opaque session tokens. 64 characters
// from a 62-char alphabet give well over 256 bits of entropy.
const sessionTokenLength = 64

const sessionTokenAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// GenerateSessionToken returns an opaque, unguessable session token.
// Uses crypto/rand for randomness.
func GenerateSessionToken() (string, error) {
	b := make([]byte, sessionTokenLength)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	s := make([]byte, sessionTokenLength)
	for i := 0; i < sessionTokenLength; i++ {
		s[i] = sessionTokenAlphabet[int(b[i])%len(sessionTokenAlphabet)]
	}
	return string(s), nil
}

// AccessClaims holds JWT claims for the API access token. SessionToken carries
// the opaque session token so API requests can be validated against the
// session store.
type AccessClaims struct {
	jwt.RegisteredClaims
	SessionToken string `json:"session_token"`
	Role         string `json:"role"`
}

// TokenProvider issues and validates HS256 JWT access tokens for API clients.
type TokenProvider struct {
	secret    []byte
	issuer    string
	audience  string
	accessTTL time.Duration
}

// NewTokenProvider returns a TokenProvider signing with the given HMAC secret.
// issuer and audience are set on claims and checked on validation.
func NewTokenProvider(secret []byte, issuer, audience string, accessTTL time.Duration) *TokenProvider {
	return &TokenProvider{
		secret:    secret,
		issuer:    issuer,
		audience:  audience,
		accessTTL: accessTTL,
	}
}

// IssueAccess issues a short-lived access JWT for the given user, role, and
// opaque session token. Returns the token string and its expiration time.
func (p *TokenProvider) IssueAccess(userID, role, sessionToken string) (string, time.Time, error) {
	if len(p.secret) == 0 {
		return "", time.Time{}, errors.New("security: JWT secret not configured")
	}
	now := time.Now().UTC()
	expiresAt := now.Add(p.accessTTL)
	claims := AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    p.issuer,
			Audience:  jwt.ClaimStrings{p.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		SessionToken: sessionToken,
		Role:         role,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// ValidateAccess parses and validates an access JWT. Returns the user id,
// role, and embedded session token, or ErrInvalidToken.
func (p *TokenProvider) ValidateAccess(tokenString string) (userID, role, sessionToken string, err error) {
	var claims AccessClaims
	tok, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return p.secret, nil
	}, jwt.WithIssuer(p.issuer), jwt.WithAudience(p.audience), jwt.WithExpirationRequired())
	if err != nil || !tok.Valid {
		return "", "", "", ErrInvalidToken
	}
	if claims.Subject == "" || claims.SessionToken == "" {
		return "", "", "", ErrInvalidToken
	}
	return claims.Subject, claims.Role, claims.SessionToken, nil
}
