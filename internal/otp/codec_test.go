package otp

import (
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-signing-secret"

func TestIssueAndVerify_Match(t *testing.T) {
	c := NewCodec(testSecret, time.Minute)

	token, code, err := c.Issue()
	require.NoError(t, err)
	require.NotEmpty(t, token)

	res, err := c.Verify(token, code)
	require.NoError(t, err)
	assert.True(t, res.Matches)
	assert.False(t, res.Expired)
}

func TestIssue_CodeIsSixDigits(t *testing.T) {
	c := NewCodec(testSecret, time.Minute)
	sixDigits := regexp.MustCompile(`^\d{6}$`)

	for i := 0; i < 50; i++ {
		_, code, err := c.Issue()
		require.NoError(t, err)
		assert.Regexp(t, sixDigits, code)
	}
}

func TestVerify_WrongCode(t *testing.T) {
	c := NewCodec(testSecret, time.Minute)

	token, code, err := c.Issue()
	require.NoError(t, err)

	wrong := "000000"
	if code == wrong {
		wrong = "000001"
	}

	res, err := c.Verify(token, wrong)
	require.NoError(t, err)
	assert.False(t, res.Matches)
	assert.False(t, res.Expired)
}

func TestVerify_Expired(t *testing.T) {
	c := NewCodec(testSecret, time.Minute)

	token, code, err := c.Issue()
	require.NoError(t, err)

	c.now = func() time.Time { return time.Now().Add(time.Minute + time.Second) }

	res, err := c.Verify(token, code)
	require.NoError(t, err)
	assert.True(t, res.Expired)
	assert.False(t, res.Matches, "an expired token must never report a match")
}

func TestVerify_ExactlyAtExpiryIsExpired(t *testing.T) {
	issued := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	c := NewCodec(testSecret, time.Minute)
	c.now = func() time.Time { return issued }

	token, code, err := c.Issue()
	require.NoError(t, err)

	c.now = func() time.Time { return issued.Add(time.Minute) }

	res, err := c.Verify(token, code)
	require.NoError(t, err)
	assert.True(t, res.Expired)
}

func TestVerify_TamperedToken(t *testing.T) {
	c := NewCodec(testSecret, time.Minute)

	token, code, err := c.Issue()
	require.NoError(t, err)

	tampered := token[:len(token)-2] + "xx"
	_, err = c.Verify(tampered, code)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerify_WrongSecret(t *testing.T) {
	issuer := NewCodec(testSecret, time.Minute)
	verifier := NewCodec("some-other-secret", time.Minute)

	token, code, err := issuer.Issue()
	require.NoError(t, err)

	_, err = verifier.Verify(token, code)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerify_Garbage(t *testing.T) {
	c := NewCodec(testSecret, time.Minute)

	_, err := c.Verify("not.a.jwt", "123456")
	require.ErrorIs(t, err, ErrInvalidToken)
}
