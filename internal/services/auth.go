package services

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// AuthService issues identities for anonymous participants. There are no
// accounts: signing in mints a fresh opaque uid and a token bound to it, and
// clients keep the pair for the lifetime of their local identity.
type AuthService struct {
	jwtSecret []byte
}

func NewAuthService(jwtSecret string) *AuthService {
	return &AuthService{jwtSecret: []byte(jwtSecret)}
}

type AnonymousIdentity struct {
	UID   string `json:"uid"`
	Token string `json:"token"`
}

// SignInAnonymously issues a token for uid, minting a fresh uid when the
// caller has none yet. Re-authenticating with a stored uid keeps a
// participant's identity stable across runs.
func (s *AuthService) SignInAnonymously(uid string) (*AnonymousIdentity, error) {
	if uid == "" {
		uid = uuid.NewString()
	}
	token, err := s.GenerateToken(uid)
	if err != nil {
		return nil, err
	}
	return &AnonymousIdentity{UID: uid, Token: token}, nil
}

func (s *AuthService) GenerateToken(uid string) (string, error) {
	claims := jwt.MapClaims{
		"uid": uid,
		"exp": time.Now().Add(24 * time.Hour).Unix(),
		"iat": time.Now().Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}

func (s *AuthService) ValidateToken(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.jwtSecret, nil
	})
	if err != nil || !token.Valid {
		return "", errors.New("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", errors.New("invalid claims")
	}

	uid, ok := claims["uid"].(string)
	if !ok || uid == "" {
		return "", errors.New("invalid uid in token")
	}

	return uid, nil
}
