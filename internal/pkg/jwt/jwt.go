package jwt

import (
	"errors"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	// ErrTokenExpired means signature and shape were fine but the token is past
	// its expiry. Callers may react with a silent refresh; never on ErrTokenInvalid.
	ErrTokenExpired = errors.New("token expired")
	ErrTokenInvalid = errors.New("token invalid")
)

type Service struct {
	secret []byte
}

// Claims is the fixed token payload. Subject carries the member's external id.
// TokenVersion is compared against the live member row on every validation.
type Claims struct {
	Role         string `json:"role"`
	TokenVersion int    `json:"token_version"`
	KeepAlive    bool   `json:"keep_alive,omitempty"`
	jwtlib.RegisteredClaims
}

func New(secret string) *Service {
	return &Service{secret: []byte(secret)}
}

func (s *Service) Issue(externalID, role string, tokenVersion int, keepAlive bool, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Role:         role,
		TokenVersion: tokenVersion,
		KeepAlive:    keepAlive,
		RegisteredClaims: jwtlib.RegisteredClaims{
			// Unique per mint. iat/exp have second granularity, so without a
			// JTI two tokens issued in the same second would be identical and
			// their storage hashes would collide.
			ID:        uuid.NewString(),
			Subject:   externalID,
			ExpiresAt: jwtlib.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwtlib.NewNumericDate(now),
		},
	}

	token := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

func (s *Service) Decode(tokenStr string) (*Claims, error) {
	token, err := jwtlib.ParseWithClaims(tokenStr, &Claims{}, func(t *jwtlib.Token) (any, error) {
		if _, ok := t.Method.(*jwtlib.SigningMethodHMAC); !ok {
			return nil, ErrTokenInvalid
		}
		return s.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwtlib.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}
	if !token.Valid {
		return nil, ErrTokenInvalid
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || claims.Subject == "" {
		return nil, ErrTokenInvalid
	}

	return claims, nil
}
