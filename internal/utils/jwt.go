// internal/utils/jwt.go
package utils

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
)

const jwtIssuer = "shareview-insights"

// JWTClaims is the identity issued by the portal's sign-in provider.
type JWTClaims struct {
	UserID      string   `json:"user_id"`
	Role        string   `json:"role"`
	RetailerIDs []string `json:"retailer_ids,omitempty"`
	jwt.RegisteredClaims
}

// AccessSessionClaims proves a successful password check for one access token.
type AccessSessionClaims struct {
	PasswordFingerprint string `json:"pwd"`
	jwt.RegisteredClaims
}

var (
	jwtSecret           = []byte("your-secret-key-change-in-production")
	accessSessionSecret = []byte("access-session-secret-change-in-production")
)

func SetJWTSecret(secret string) {
	jwtSecret = []byte(secret)
}

func SetAccessSessionSecret(secret string) {
	accessSessionSecret = []byte(secret)
}

func GenerateJWT(userID uuid.UUID, role string, retailerIDs []string, ttlHours int) (string, error) {
	now := time.Now()
	claims := JWTClaims{
		UserID:      userID.String(),
		Role:        role,
		RetailerIDs: retailerIDs,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Duration(ttlHours) * time.Hour)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    jwtIssuer,
			Subject:   userID.String(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(jwtSecret)
}

func ValidateJWT(tokenString string) (*JWTClaims, error) {
	claims := &JWTClaims{}
	if err := parseHMAC(tokenString, claims, jwtSecret); err != nil {
		return nil, err
	}
	return claims, nil
}

// GenerateAccessSession signs a session marker bound to the token hash
// (subject) and the password hash in force when the password was checked.
func GenerateAccessSession(tokenHash, passwordFingerprint string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := AccessSessionClaims{
		PasswordFingerprint: passwordFingerprint,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    jwtIssuer,
			Subject:   tokenHash,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(accessSessionSecret)
}

func ValidateAccessSession(marker string) (*AccessSessionClaims, error) {
	claims := &AccessSessionClaims{}
	if err := parseHMAC(marker, claims, accessSessionSecret); err != nil {
		return nil, err
	}
	return claims, nil
}

func parseHMAC(tokenString string, claims jwt.Claims, secret []byte) error {
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return secret, nil
	})
	if err != nil {
		return err
	}
	if !token.Valid {
		return errors.New("invalid token")
	}
	return nil
}
