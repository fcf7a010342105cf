package security

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// JWT validation errors.
var (
	// ErrInvalidToken indicates a token is malformed or fails validation.
	ErrInvalidToken = errors.New("invalid token")
	// ErrExpiredToken indicates a token has expired.
	ErrExpiredToken = errors.New("token expired")
	// ErrMissingSecret indicates the signer was built without a secret.
	ErrMissingSecret = errors.New("jwt secret is not configured")
)

const (
	audienceUser  = "creditledger:user"
	audienceAdmin = "creditledger:admin"
)

// UserClaims identifies an end user calling the credit endpoints.
type UserClaims struct {
	UserID   uint64 `json:"user_id"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// AdminClaims identifies an administrator.
type AdminClaims struct {
	AdminID  uint64 `json:"admin_id"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// Signer issues and validates HS256 tokens for users and admins.
type Signer struct {
	secret []byte
	expiry time.Duration
	now    func() time.Time
}

// NewSigner constructs a Signer. A non-positive expiry defaults to 24h.
func NewSigner(secret string, expiry time.Duration) (*Signer, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, ErrMissingSecret
	}
	if expiry <= 0 {
		expiry = 24 * time.Hour
	}
	return &Signer{secret: []byte(secret), expiry: expiry, now: time.Now}, nil
}

func (s *Signer) registered(audience string) jwt.RegisteredClaims {
	now := s.now().UTC()
	return jwt.RegisteredClaims{
		Audience:  jwt.ClaimStrings{audience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.expiry)),
	}
}

// IssueUser signs a user token.
func (s *Signer) IssueUser(userID uint64, username string) (string, error) {
	claims := UserClaims{UserID: userID, Username: username, RegisteredClaims: s.registered(audienceUser)}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// IssueAdmin signs an admin token.
func (s *Signer) IssueAdmin(adminID uint64, username string) (string, error) {
	claims := AdminClaims{AdminID: adminID, Username: username, RegisteredClaims: s.registered(audienceAdmin)}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// ParseUser validates a user token.
func (s *Signer) ParseUser(tokenString string) (*UserClaims, error) {
	claims := &UserClaims{}
	if errParse := s.parse(tokenString, claims, audienceUser); errParse != nil {
		return nil, errParse
	}
	if claims.UserID == 0 {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// ParseAdmin validates an admin token.
func (s *Signer) ParseAdmin(tokenString string) (*AdminClaims, error) {
	claims := &AdminClaims{}
	if errParse := s.parse(tokenString, claims, audienceAdmin); errParse != nil {
		return nil, errParse
	}
	if claims.AdminID == 0 {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func (s *Signer) parse(tokenString string, claims jwt.Claims, audience string) error {
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return s.secret, nil
	}, jwt.WithAudience(audience), jwt.WithTimeFunc(s.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return ErrExpiredToken
		}
		return ErrInvalidToken
	}
	if !token.Valid {
		return ErrInvalidToken
	}
	return nil
}
