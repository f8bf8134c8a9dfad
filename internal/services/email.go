package services

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/smtp"
	"net/url"
	"strings"

	"github.com/noteguard/backend/internal/config"
	"github.com/noteguard/backend/internal/models"
	"github.com/noteguard/backend/pkg/logger"
)

// ConfirmationMailer delivers the email confirmation token to a freshly
// registered account.
type ConfirmationMailer interface {
	SendConfirmation(ctx context.Context, user *models.User, confirmToken string) error
}

// EmailService sends confirmation mail over SMTP. When SMTP is disabled
// it logs the confirmation link instead, which keeps local development
// working without a mail server.
type EmailService struct {
	cfg     *config.SMTPConfig
	baseURL string
}

func NewEmailService(cfg *config.SMTPConfig, baseURL string) *EmailService {
	return &EmailService{cfg: cfg, baseURL: baseURL}
}

func (s *EmailService) SendConfirmation(ctx context.Context, user *models.User, confirmToken string) error {
	link := s.confirmationLink(user.ID, confirmToken)

	if !s.cfg.Enabled || s.cfg.Host == "" {
		logger.Info().
			Str("user_id", user.ID).
			Str("link", link).
			Msg("smtp disabled, confirmation link logged instead of mailed")
		return nil
	}

	subject := "Confirm your email address"
	body := s.buildConfirmationBody(user.Username, link)
	return s.sendEmail([]string{user.Email}, subject, body)
}

func (s *EmailService) confirmationLink(userID, confirmToken string) string {
	q := url.Values{}
	q.Set("userId", userID)
	q.Set("token", confirmToken)
	return fmt.Sprintf("%s/api/auth/confirm-email?%s", strings.TrimRight(s.baseURL, "/"), q.Encode())
}

func (s *EmailService) buildConfirmationBody(username, link string) string {
	var sb strings.Builder
	sb.WriteString("<html><body style=\"font-family: Arial, sans-serif;\">")
	sb.WriteString(fmt.Sprintf("<h2>Welcome, %s</h2>", username))
	sb.WriteString("<p>Please confirm your email address to activate your account:</p>")
	sb.WriteString(fmt.Sprintf("<p><a href=\"%s\">Confirm email</a></p>", link))
	sb.WriteString("<p>If you did not create this account, you can ignore this message.</p>")
	sb.WriteString("</body></html>")
	return sb.String()
}

func (s *EmailService) sendEmail(recipients []string, subject, body string) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	from := s.cfg.From
	if from == "" {
		from = s.cfg.Username
	}

	msg := s.buildMessage(from, recipients, subject, body)

	var auth smtp.Auth
	if s.cfg.Username != "" {
		auth = smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	}

	if s.cfg.UseTLS {
		return s.sendWithTLS(addr, auth, from, recipients, msg)
	}
	return smtp.SendMail(addr, auth, from, recipients, msg)
}

func (s *EmailService) buildMessage(from string, recipients []string, subject, body string) []byte {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("From: %s\r\n", from))
	sb.WriteString(fmt.Sprintf("To: %s\r\n", strings.Join(recipients, ", ")))
	sb.WriteString(fmt.Sprintf("Subject: %s\r\n", subject))
	sb.WriteString("MIME-Version: 1.0\r\n")
	sb.WriteString("Content-Type: text/html; charset=UTF-8\r\n")
	sb.WriteString("\r\n")
	sb.WriteString(body)
	return []byte(sb.String())
}

func (s *EmailService) sendWithTLS(addr string, auth smtp.Auth, from string, recipients []string, msg []byte) error {
	conn, err := tls.Dial("tcp", addr, &tls.Config{ServerName: s.cfg.Host})
	if err != nil {
		return err
	}
	defer conn.Close()

	client, err := smtp.NewClient(conn, s.cfg.Host)
	if err != nil {
		return err
	}
	defer client.Close()

	if auth != nil {
		if err := client.Auth(auth); err != nil {
			return err
		}
	}
	if err := client.Mail(from); err != nil {
		return err
	}
	for _, rcpt := range recipients {
		if err := client.Rcpt(rcpt); err != nil {
			return err
		}
	}

	w, err := client.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(msg); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return client.Quit()
}
