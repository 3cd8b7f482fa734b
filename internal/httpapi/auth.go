package httpapi

import (
	"errors"
	"fmt"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"kasirinaja/register/internal/domain"
)

// TokenIssuer is the iss claim the store's identity service puts on
// register tokens.
const TokenIssuer = "kasirinaja"

var errPINDisabled = errors.New("manager PIN is not configured")

// AuthManager verifies bearer tokens minted elsewhere and holds the bcrypt
// hash of the manager PIN. It never sees a password.
type AuthManager struct {
	secret  []byte
	pinHash []byte
	leeway  time.Duration
}

type registerClaims struct {
	jwtlib.RegisteredClaims
	Role string `json:"role"`
}

func NewAuthManager(secret string, managerPIN string) *AuthManager {
	if secret == "" {
		secret = "dev-change-me"
	}
	auth := &AuthManager{secret: []byte(secret), leeway: 30 * time.Second}
	if pin := strings.TrimSpace(managerPIN); pin != "" {
		if hash, err := bcrypt.GenerateFromPassword([]byte(pin), bcrypt.DefaultCost); err == nil {
			auth.pinHash = hash
		}
	}
	return auth
}

// ParseToken accepts only HS256 tokens from TokenIssuer that carry a subject,
// a role and an expiry.
func (a *AuthManager) ParseToken(raw string) (domain.Actor, error) {
	claims := &registerClaims{}
	_, err := jwtlib.ParseWithClaims(raw, claims,
		func(*jwtlib.Token) (any, error) { return a.secret, nil },
		jwtlib.WithValidMethods([]string{jwtlib.SigningMethodHS256.Alg()}),
		jwtlib.WithIssuer(TokenIssuer),
		jwtlib.WithExpirationRequired(),
		jwtlib.WithLeeway(a.leeway),
	)
	if err != nil {
		return domain.Actor{}, fmt.Errorf("invalid or expired token: %w", err)
	}
	if claims.Subject == "" || strings.TrimSpace(claims.Role) == "" {
		return domain.Actor{}, errors.New("token is missing subject or role")
	}
	return domain.Actor{Username: claims.Subject, Role: strings.ToLower(claims.Role)}, nil
}

// sign mints a token the way the identity service does. Tests only.
func (a *AuthManager) sign(username, role string, expiresAt time.Time) (string, error) {
	now := time.Now().UTC()
	return jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, registerClaims{
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   username,
			Issuer:    TokenIssuer,
			IssuedAt:  jwtlib.NewNumericDate(now),
			ExpiresAt: jwtlib.NewNumericDate(expiresAt),
		},
		Role: role,
	}).SignedString(a.secret)
}

func (a *AuthManager) ValidateManagerPIN(pin string) bool {
	return a.checkPIN(pin) == nil
}

func (a *AuthManager) checkPIN(pin string) error {
	if len(a.pinHash) == 0 {
		return errPINDisabled
	}
	input := strings.TrimSpace(pin)
	if input == "" {
		return errors.New("manager PIN is required")
	}
	return bcrypt.CompareHashAndPassword(a.pinHash, []byte(input))
}
