package otp

import (
	"fmt"
	"net/smtp"
)

// Mailer delivers the human-readable code out-of-band.
type Mailer interface {
	SendCode(to, code string) error
}

type SMTPMailer struct {
	addr   string
	auth   smtp.Auth
	sender string
}

func NewSMTPMailer(host string, port int, username, password, sender string) *SMTPMailer {
	var auth smtp.Auth
	if username != "" {
		auth = smtp.PlainAuth("", username, password, host)
	}
	return &SMTPMailer{
		addr:   fmt.Sprintf("%s:%d", host, port),
		auth:   auth,
		sender: sender,
	}
}

const codeMailBody = `
<div style="max-width: 600px; margin: auto; padding: 20px; background-color: #f9f9f9; border-radius: 5px;">
    <h2 style="text-align: center; color: #333;">Verify Your Account</h2>
    <p style="text-align: center; color: #666;">Hello,</p>
    <p style="text-align: center; color: #666;">We received a request to verify your account. Please enter the OTP below:</p>
    <p style="text-align: center;"><strong>Your OTP is:</strong> %s</p>
    <p style="text-align: center; color: #666;">If you did not make this request, please ignore this email.</p>
    <p style="text-align: center; color: #666;">Thank you!</p>
</div>`

func (m *SMTPMailer) SendCode(to, code string) error {
	msg := []byte(fmt.Sprintf(
		"From: %s\r\nTo: %s\r\nSubject: OTP Verification\r\nMIME-Version: 1.0\r\nContent-Type: text/html; charset=\"UTF-8\"\r\n\r\n%s\r\n",
		m.sender, to, fmt.Sprintf(codeMailBody, code),
	))

	if err := smtp.SendMail(m.addr, m.auth, m.sender, []string{to}, msg); err != nil {
		return fmt.Errorf("send otp mail: %w", err)
	}
	return nil
}
