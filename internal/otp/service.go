package otp

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

var ErrDeliveryFailure = errors.New("otp delivery failed")

// Service ties the codec to the mail channel. Issue hands the signed
// token back to the caller; the caller keeps the most recent token for
// its registration or reset attempt and echoes it to Verify.
type Service struct {
	codec  *Codec
	mailer Mailer
	log    *zap.SugaredLogger
}

func NewService(codec *Codec, mailer Mailer, logger *zap.Logger) *Service {
	return &Service{
		codec:  codec,
		mailer: mailer,
		log:    logger.Sugar(),
	}
}

// Issue mails a fresh code to the recipient and returns the token that
// proves it later. A mail failure surfaces as ErrDeliveryFailure and no
// token is handed out.
func (s *Service) Issue(ctx context.Context, email string) (string, error) {
	if email == "" {
		return "", errors.New("email must be provided")
	}

	token, code, err := s.codec.Issue()
	if err != nil {
		return "", err
	}

	if err := s.mailer.SendCode(email, code); err != nil {
		s.log.Warnw("otp mail not delivered", "email", email, "error", err)
		return "", fmt.Errorf("%w: %v", ErrDeliveryFailure, err)
	}

	s.log.Infow("otp issued", "email", email)
	return token, nil
}

func (s *Service) Verify(token, code string) (Result, error) {
	return s.codec.Verify(token, code)
}
