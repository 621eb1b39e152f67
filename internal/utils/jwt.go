package utils

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const merchantTokenIssuer = "froydpay"

type merchantClaims struct {
	MerchantID string `json:"merchant_id"`
	jwt.RegisteredClaims
}

// GenerateMerchantToken creates a signed session JWT for a merchant.
func GenerateMerchantToken(secret string, merchantID uuid.UUID, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &merchantClaims{
		MerchantID: merchantID.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    merchantTokenIssuer,
			Subject:   merchantID.String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// ParseMerchantToken validates the token and returns the merchant ID it carries.
func ParseMerchantToken(secret, tokenString string) (uuid.UUID, error) {
	token, err := jwt.ParseWithClaims(tokenString, &merchantClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(secret), nil
	}, jwt.WithIssuer(merchantTokenIssuer))
	if err != nil {
		return uuid.Nil, err
	}

	if claims, ok := token.Claims.(*merchantClaims); ok && token.Valid {
		return uuid.Parse(claims.MerchantID)
	}

	return uuid.Nil, jwt.ErrTokenInvalidClaims
}
