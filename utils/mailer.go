package utils

import (
	"fmt"

	"github.com/badoux/checkmail"
	"github.com/google/uuid"
	"gopkg.in/gomail.v2"

	"leadgen/models"
)

// SMTPMailer dispatches lead emails over plain SMTP (MAIL_TRANSPORT=smtp).
// SMTP servers assign no retrievable message id, so the mailer generates its
// own Message-Id header; webhook correlation then works the same as with the
// API transport.
type SMTPMailer struct {
	Host            string
	Port            int
	Username        string
	Password        string
	FromName        string
	FromEmail       string
	MessageIDDomain string
}

func NewSMTPMailer(host string, port int, username, password, fromName, fromEmail, messageIDDomain string) *SMTPMailer {
	return &SMTPMailer{
		Host:            host,
		Port:            port,
		Username:        username,
		Password:        password,
		FromName:        fromName,
		FromEmail:       fromEmail,
		MessageIDDomain: messageIDDomain,
	}
}

func (s *SMTPMailer) Send(lead models.Lead) (string, error) {
	if err := checkmail.ValidateFormat(lead.Email); err != nil {
		return "", fmt.Errorf("invalid recipient %q: %w", lead.Email, err)
	}

	messageID := fmt.Sprintf("%s@%s", uuid.New().String(), s.MessageIDDomain)

	m := gomail.NewMessage()
	m.SetHeader("From", fmt.Sprintf("%s <%s>", s.FromName, s.FromEmail))
	m.SetHeader("To", lead.Email)
	m.SetHeader("Subject", lead.EmailSubject)
	m.SetHeader("Message-Id", "<"+messageID+">")
	m.SetBody("text/plain", lead.EmailBody)

	d := gomail.NewDialer(s.Host, s.Port, s.Username, s.Password)
	if err := d.DialAndSend(m); err != nil {
		return "", fmt.Errorf("error sending email: %v", err)
	}

	return messageID, nil
}
