package jwt

import (
	"fmt"
	"time"

	"DBAdminDO/internal/models"

	"github.com/golang-jwt/jwt/v4"
)

// Claims represents the JWT claims structure
type Claims struct {
	Username string `json:"username"`
	TeamID   int64  `json:"team_id"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// Caller converts the claims into the request identity
func (c *Claims) Caller() *models.Caller {
	return &models.Caller{
		Username: c.Username,
		TeamID:   c.TeamID,
		Role:     c.Role,
	}
}

// GenerateToken creates a new signed token for a caller
func GenerateToken(caller *models.Caller, secret, issuer string, expirationTime time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		Username: caller.Username,
		TeamID:   caller.TeamID,
		Role:     caller.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   caller.Username,
			ExpiresAt: jwt.NewNumericDate(now.Add(expirationTime)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// ValidateToken validates a JWT token and returns the claims
func ValidateToken(tokenString, secret string) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}

	if !token.Valid {
		return nil, jwt.ErrSignatureInvalid
	}

	if claims.TeamID <= 0 {
		return nil, fmt.Errorf("token carries no team")
	}

	return claims, nil
}
