// Package mail sends signature request notifications over SMTP.
package mail

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/gomail.v2"

	"signflow/internal/models"
)

// Service delivers signing invitations to signers
type Service struct {
	dialer  *gomail.Dialer
	from    string
	baseURL string
}

// New creates a mail service from environment configuration
func New() (*Service, error) {
	host := os.Getenv("SMTP_HOST")
	if host == "" {
		return nil, fmt.Errorf("SMTP_HOST environment variable is required")
	}

	port := 587
	if portStr := os.Getenv("SMTP_PORT"); portStr != "" {
		p, err := strconv.Atoi(portStr)
		if err != nil {
			return nil, fmt.Errorf("invalid SMTP_PORT: %w", err)
		}
		port = p
	}

	from := os.Getenv("MAIL_FROM")
	if from == "" {
		return nil, fmt.Errorf("MAIL_FROM environment variable is required")
	}

	baseURL := os.Getenv("SIGNING_BASE_URL")
	if baseURL == "" {
		baseURL = "http://localhost:3000"
	}

	dialer := gomail.NewDialer(host, port, os.Getenv("SMTP_USERNAME"), os.Getenv("SMTP_PASSWORD"))

	return &Service{
		dialer:  dialer,
		from:    from,
		baseURL: baseURL,
	}, nil
}

// SendSignatureRequests sends one invitation per request, each carrying
// that signer's signing link. The requests themselves are never
// touched, so a batch can be re-sent after a transport failure.
func (s *Service) SendSignatureRequests(operatorName, requestName string, requests []models.SignatureRequest) error {
	sender, err := s.dialer.Dial()
	if err != nil {
		return fmt.Errorf("failed to connect to mail server: %w", err)
	}
	defer sender.Close()

	for _, request := range requests {
		message := gomail.NewMessage()
		message.SetHeader("From", s.from)
		message.SetHeader("To", request.SignerEmail)
		message.SetHeader("Subject", fmt.Sprintf("%s requested your signature: %s", operatorName, requestName))
		message.SetBody("text/html", s.body(operatorName, requestName, request))

		if err := gomail.Send(sender, message); err != nil {
			return fmt.Errorf("failed to send to %s: %w", request.SignerEmail, err)
		}
	}

	return nil
}

func (s *Service) body(operatorName, requestName string, request models.SignatureRequest) string {
	return fmt.Sprintf(`
		<p>Hello %s,</p>
		<p>%s has asked you to sign <strong>%s</strong>.</p>
		<p><a href="%s">Review and sign the document</a></p>
		<p>This link expires on %s.</p>
	`, request.SignerName, operatorName, requestName,
		request.SigningLink(s.baseURL),
		request.ExpiredAt.Format("January 2, 2006 15:04 MST"))
}
