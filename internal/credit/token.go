package credit

import (
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// AccessTokenTTL is the fixed lifetime of a session access token. Expiry is
// checked at use time by the ledger, not enforced by an external timer.
const AccessTokenTTL = 15 * time.Minute

// TokenIssuer mints the single-use access tokens handed to the voice
// collaborator for one practice session.
type TokenIssuer struct {
	secret []byte
}

func NewTokenIssuer(secret string) *TokenIssuer {
	return &TokenIssuer{secret: []byte(secret)}
}

type accessClaims struct {
	AccountID int64 `json:"account_id"`
	jwt.RegisteredClaims
}

// Issue mints a signed token for the session with the fixed TTL.
func (i *TokenIssuer) Issue(sessionID, accountID int64, now time.Time) (string, time.Time, error) {
	expiresAt := now.Add(AccessTokenTTL)
	claims := accessClaims{
		AccountID: accountID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   strconv.FormatInt(sessionID, 10),
			Issuer:    "hanashi",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign access token: %w", err)
	}
	return token, expiresAt, nil
}

// Verify parses a token and returns the session id it was minted for.
func (i *TokenIssuer) Verify(token string) (int64, error) {
	var claims accessClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return i.secret, nil
	})
	if err != nil {
		return 0, fmt.Errorf("parse access token: %w", err)
	}

	sessionID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse token subject: %w", err)
	}
	return sessionID, nil
}
