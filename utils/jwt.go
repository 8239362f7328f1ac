package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"sync"
	"time"

	"github.com/golang-jwt/jwt"
)

var (
	secretMu  sync.RWMutex
	secretKey []byte
)

// SetJWTSecret sets the HMAC secret used to sign and verify merchant tokens.
func SetJWTSecret(secret string) {
	secretMu.Lock()
	defer secretMu.Unlock()
	secretKey = []byte(secret)
}

func signingKey() ([]byte, error) {
	secretMu.RLock()
	defer secretMu.RUnlock()
	if len(secretKey) == 0 {
		return nil, errors.New("jwt secret is not configured")
	}
	return secretKey, nil
}

// MerchantClaims identifies the point-of-sale merchant behind a request.
type MerchantClaims struct {
	MerchantID string
	SiteID     string
	ExpiresAt  time.Time
}

// GenerateToken creates a signed merchant token that expires after duration.
func GenerateToken(merchantID, siteID string, duration time.Duration) (string, error) {
	key, err := signingKey()
	if err != nil {
		return "", err
	}
	claims := jwt.MapClaims{
		"sub":  merchantID,
		"site": siteID,
		"iat":  time.Now().Unix(),
		"exp":  time.Now().Add(duration).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(key)
}

// HashToken computes a SHA-256 hash of the token string.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// ValidateToken parses and validates a token string and returns the token if valid.
func ValidateToken(tokenString string) (*jwt.Token, error) {
	key, err := signingKey()
	if err != nil {
		return nil, err
	}
	return jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return key, nil
	})
}

// ExtractMerchantClaims validates tokenString and returns its merchant claims.
func ExtractMerchantClaims(tokenString string) (MerchantClaims, error) {
	token, err := ValidateToken(tokenString)
	if err != nil {
		return MerchantClaims{}, err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return MerchantClaims{}, errors.New("invalid token")
	}

	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return MerchantClaims{}, errors.New("token does not contain a valid 'sub' claim")
	}
	site, _ := claims["site"].(string)
	out := MerchantClaims{MerchantID: sub, SiteID: site}
	if exp, ok := claims["exp"].(float64); ok {
		out.ExpiresAt = time.Unix(int64(exp), 0)
	}
	return out, nil
}
