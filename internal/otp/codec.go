// Package otp implements the stateless one-time-passcode mechanism used
// to gate signup and password reset. The issued 6-digit code travels to
// the user by mail; its signed token travels back to the caller, which
// holds it across the resend/verify round trip. Nothing is stored
// server-side: the token itself carries the code and the expiry.
package otp

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

var ErrInvalidToken = errors.New("otp token is invalid")

// Result is the outcome of a verification. A token past its expiry
// reports Expired=true and is never accepted, even on a code match.
type Result struct {
	Matches bool
	Expired bool
}

type claims struct {
	Code string `json:"otp"`
	jwt.RegisteredClaims
}

// Codec signs and checks OTP tokens. now is injectable for tests.
type Codec struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewCodec(secret string, ttl time.Duration) *Codec {
	return &Codec{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

// Issue generates a fresh 6-digit code and wraps it in a signed token
// expiring after the codec's TTL.
func (c *Codec) Issue() (token, code string, err error) {
	code, err = generateCode()
	if err != nil {
		return "", "", fmt.Errorf("generate code: %w", err)
	}

	now := c.now()
	cl := claims{
		Code: code,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.ttl)),
		},
	}

	token, err = jwt.NewWithClaims(jwt.SigningMethodHS256, cl).SignedString(c.secret)
	if err != nil {
		return "", "", fmt.Errorf("sign otp token: %w", err)
	}

	return token, code, nil
}

// Verify decodes and signature-checks the token, then compares the
// supplied code. It fails closed: a tampered or undecodable token is
// ErrInvalidToken, an expired one reports Expired without a match
// verdict that could be acted on.
func (c *Codec) Verify(token, suppliedCode string) (Result, error) {
	var cl claims
	// Claims validation is done by hand below so expiry is judged
	// against the codec's clock; the signature check still runs.
	_, err := jwt.ParseWithClaims(token, &cl, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return c.secret, nil
	}, jwt.WithoutClaimsValidation())
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if cl.ExpiresAt == nil || !c.now().Before(cl.ExpiresAt.Time) {
		return Result{Matches: false, Expired: true}, nil
	}

	return Result{Matches: cl.Code == suppliedCode, Expired: false}, nil
}

func generateCode() (string, error) {
	// 100000..999999 so the code is always six digits.
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}
