// FILE: internal/pkg/mailer/email_service.go
package mailer

import (
	"fmt"

	"gopkg.in/gomail.v2"
)

type IEmailService interface {
	SendHandoffEscalation(toEmail, conversationId, agentName, reason string) error
}

type emailService struct {
	dialer      *gomail.Dialer
	senderEmail string
	senderName  string
}

func NewEmailService(host string, port int, username, password, senderEmail, senderName string) IEmailService {
	d := gomail.NewDialer(host, port, username, password)

	return &emailService{
		dialer:      d,
		senderEmail: senderEmail,
		senderName:  senderName,
	}
}

func (s *emailService) SendHandoffEscalation(toEmail, conversationId, agentName, reason string) error {
	m := gomail.NewMessage()
	m.SetAddressHeader("From", s.senderEmail, s.senderName)
	m.SetHeader("To", toEmail)
	m.SetHeader("Subject", fmt.Sprintf("Human handoff requested: %s", conversationId))

	body := fmt.Sprintf(`
		<div style="font-family: Arial, sans-serif; padding: 20px; color: #333;">
			<h2>A conversation needs a human attendant</h2>
			<p><strong>Conversation:</strong> %s</p>
			<p><strong>Agent flow:</strong> %s</p>
			<p><strong>Reason:</strong> %s</p>
			<p>Please pick it up in the attendant console.</p>
		</div>
	`, conversationId, agentName, reason)

	m.SetBody("text/html", body)

	if err := s.dialer.DialAndSend(m); err != nil {
		fmt.Printf("[MAILER ERROR] Failed to send escalation for %s: %v\n", conversationId, err)
		return err
	}

	fmt.Printf("[MAILER] Escalation sent for %s\n", conversationId)
	return nil
}
