// Package auth issues and verifies device trust tokens and opaque session
// tokens.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/securevault/internal/common"
	"github.com/golang-jwt/jwt/v5"
)

// SessionTokenBytes is the entropy of an opaque session token; the hex form
// is twice as long.
const SessionTokenBytes = 32

// TrustClaims binds a trust token to one user and one device fingerprint.
type TrustClaims struct {
	jwt.RegisteredClaims
	UserID      string `json:"uid"`
	Fingerprint string `json:"fp"`
}

// GenerateTrustToken signs a trust token with HS256.
func GenerateTrustToken(userID, fingerprint string, secretKey []byte, validityDuration time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, TrustClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(validityDuration)),
		},
		UserID:      userID,
		Fingerprint: fingerprint,
	})

	tokenString, err := token.SignedString(secretKey)
	if err != nil {
		return "", err
	}

	return tokenString, nil
}

// VerifyTrustToken checks the signature and expiry and that the token was
// minted for userID on fingerprint.
func VerifyTrustToken(tokenString, userID, fingerprint string, secretKey []byte) error {
	claims := &TrustClaims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return secretKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return common.ErrTokenExpired
		}
		return fmt.Errorf("%w: %v", common.ErrInvalidToken, err)
	}

	if !token.Valid || claims.UserID != userID || claims.Fingerprint != fingerprint {
		return common.ErrInvalidToken
	}

	return nil
}

// NewSessionToken returns a random opaque token.
func NewSessionToken() (string, error) {
	return common.MakeRandHexString(SessionTokenBytes)
}
