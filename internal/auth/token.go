package auth

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"github.com/job-portal/job-portal-server/internal/apperr"
)

const DefaultTokenTTL = time.Hour

// Identity is the decoded content of a verified session token.
type Identity struct {
	Email  string                 `json:"email"`
	Claims map[string]interface{} `json:"claims"`
}

// TokenService signs and verifies HS256 session tokens. Tokens are not
// recorded anywhere, so a token stays valid until it expires even after the
// cookie holding it has been cleared.
type TokenService struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenService(secret string, ttl time.Duration) *TokenService {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &TokenService{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Issue signs claims with an iat/exp pair; caller supplied iat/exp are replaced.
func (s *TokenService) Issue(claims map[string]interface{}) (string, time.Time, error) {
	now := s.now()
	expiresAt := now.Add(s.ttl)

	mc := jwt.MapClaims{}
	for k, v := range claims {
		mc[k] = v
	}
	mc["iat"] = now.Unix()
	mc["exp"] = expiresAt.Unix()

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, mc).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, apperr.Internal("failed to sign token", err)
	}
	return signed, expiresAt, nil
}

// Verify fails with Unauthorized when no token is given and Forbidden when
// the token is malformed, expired, or signed with another key or algorithm.
func (s *TokenService) Verify(token string) (*Identity, error) {
	if strings.TrimSpace(token) == "" {
		return nil, apperr.Unauthorized("Unauthorized")
	}

	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	parsed, err := parser.ParseWithClaims(token, jwt.MapClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil || !parsed.Valid {
		return nil, apperr.Wrap(apperr.KindForbidden, "Forbidden", err)
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok || !claims.VerifyExpiresAt(s.now().Unix(), true) {
		return nil, apperr.Forbidden("Forbidden")
	}

	email, _ := claims["email"].(string)
	return &Identity{Email: email, Claims: claims}, nil
}
