package otp

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubMailer struct {
	err  error
	to   string
	code string
}

func (m *stubMailer) SendCode(to, code string) error {
	m.to = to
	m.code = code
	return m.err
}

func TestIssue_MailsCodeAndReturnsToken(t *testing.T) {
	codec := NewCodec(testSecret, time.Minute)
	mailer := &stubMailer{}
	svc := NewService(codec, mailer, zap.NewNop())

	token, err := svc.Issue(context.Background(), "patient@example.com")
	require.NoError(t, err)
	assert.Equal(t, "patient@example.com", mailer.to)

	// The token must prove exactly the code that was mailed.
	res, err := svc.Verify(token, mailer.code)
	require.NoError(t, err)
	assert.True(t, res.Matches)
}

func TestIssue_MailFailureYieldsNoToken(t *testing.T) {
	codec := NewCodec(testSecret, time.Minute)
	mailer := &stubMailer{err: errors.New("smtp: connection refused")}
	svc := NewService(codec, mailer, zap.NewNop())

	token, err := svc.Issue(context.Background(), "patient@example.com")
	require.ErrorIs(t, err, ErrDeliveryFailure)
	assert.Empty(t, token)
}

func TestIssue_RequiresEmail(t *testing.T) {
	svc := NewService(NewCodec(testSecret, time.Minute), &stubMailer{}, zap.NewNop())

	_, err := svc.Issue(context.Background(), "")
	require.Error(t, err)
}
