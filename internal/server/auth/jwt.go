// Package auth signs and validates access tokens and hashes passwords.
package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/dmitrijs2005/utask/internal/common"
	"github.com/golang-jwt/jwt/v5"
	"github.com/jonboulle/clockwork"
)

// Claims is the access token payload. Subject carries the user id.
type Claims struct {
	jwt.RegisteredClaims
	RoleID int64 `json:"role"`
}

// UserID parses the subject back into a user id.
func (c *Claims) UserID() (int64, error) {
	id, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: bad subject", common.ErrMalformedToken)
	}
	return id, nil
}

// Codec mints and validates HS256 access tokens. It holds no mutable state
// and is safe for concurrent use.
type Codec struct {
	secret   []byte
	validity time.Duration
	clock    clockwork.Clock
}

func NewCodec(secret []byte, validity time.Duration, clock clockwork.Clock) *Codec {
	return &Codec{secret: secret, validity: validity, clock: clock}
}

// Validity returns the configured access token lifetime.
func (c *Codec) Validity() time.Duration { return c.validity }

// Mint signs a token for subject issued at issuedAt and returns it together
// with its expiry instant. Both instants are truncated to the claim precision
// so the returned expiry is exactly the one encoded in the token.
func (c *Codec) Mint(subject string, roleID int64, issuedAt time.Time) (string, time.Time, error) {
	issuedAt = issuedAt.Truncate(jwt.TimePrecision)
	expiresAt := issuedAt.Add(c.validity)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		RoleID: roleID,
	})

	s, err := token.SignedString(c.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return s, expiresAt, nil
}

// Validate checks the signature and expiry of tokenString against the codec
// clock. A token is expired once now is past exp; at exactly exp it is still
// valid. It fails with common.ErrTokenExpired or common.ErrMalformedToken.
func (c *Codec) Validate(tokenString string) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return c.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.clock.Now),
		// jwt rejects now == exp; one nanosecond of leeway makes exp inclusive.
		jwt.WithLeeway(time.Nanosecond),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, common.ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", common.ErrMalformedToken, err)
	}

	if !token.Valid || claims.Subject == "" {
		return nil, common.ErrMalformedToken
	}

	return claims, nil
}
