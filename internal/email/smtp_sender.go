package email

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/smtp"
	"strings"
	"time"

	"portfolio-chat/internal/domain"
)

// SMTPSender envia correos via SMTP.
type SMTPSender struct {
	host     string
	port     int
	username string
	password string
	from     string
	fromName string
	to       string
	useTLS   bool
}

// NewSMTPSender configura el envio hacia el buzon to; si to esta vacio se usa from.
func NewSMTPSender(host string, port int, username, password, from, fromName, to string, useTLS bool) (*SMTPSender, error) {
	if strings.TrimSpace(host) == "" {
		return nil, fmt.Errorf("smtp host is required")
	}
	if strings.TrimSpace(from) == "" {
		return nil, fmt.Errorf("smtp from is required")
	}
	if port == 0 {
		port = 587
	}
	if strings.TrimSpace(to) == "" {
		to = from
	}
	return &SMTPSender{
		host:     host,
		port:     port,
		username: username,
		password: password,
		from:     from,
		fromName: fromName,
		to:       to,
		useTLS:   useTLS,
	}, nil
}

func (s *SMTPSender) SendContactMessage(_ context.Context, req domain.ContactRequest) error {
	if strings.TrimSpace(req.Email) == "" {
		return fmt.Errorf("reply-to email is required")
	}

	replyTo := headerSanitizer.Replace(strings.TrimSpace(req.Email))
	msg := buildMessage(s.from, s.fromName, s.to, replyTo, contactSubject(req), contactBody(req))
	addr := fmt.Sprintf("%s:%d", s.host, s.port)
	toEmail := s.to

	var auth smtp.Auth
	if s.username != "" {
		auth = smtp.PlainAuth("", s.username, s.password, s.host)
	}

	if s.useTLS {
		conn, err := tls.Dial("tcp", addr, &tls.Config{
			ServerName: s.host,
		})
		if err != nil {
			return err
		}
		defer conn.Close()

		client, err := smtp.NewClient(conn, s.host)
		if err != nil {
			return err
		}
		defer client.Quit()

		if auth != nil {
			if err := client.Auth(auth); err != nil {
				return err
			}
		}
		if err := client.Mail(s.from); err != nil {
			return err
		}
		if err := client.Rcpt(toEmail); err != nil {
			return err
		}
		writer, err := client.Data()
		if err != nil {
			return err
		}
		if _, err := writer.Write([]byte(msg)); err != nil {
			_ = writer.Close()
			return err
		}
		return writer.Close()
	}

	return smtp.SendMail(addr, auth, s.from, []string{toEmail}, []byte(msg))
}

func buildMessage(from, fromName, to, replyTo, subject, body string) string {
	fromHeader := from
	if strings.TrimSpace(fromName) != "" {
		fromHeader = fmt.Sprintf("%s <%s>", fromName, from)
	}

	headers := []string{
		fmt.Sprintf("From: %s", fromHeader),
		fmt.Sprintf("To: %s", to),
		fmt.Sprintf("Reply-To: %s", replyTo),
		fmt.Sprintf("Subject: %s", subject),
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=\"UTF-8\"",
	}

	return strings.Join(headers, "\r\n") + "\r\n\r\n" + body
}

// headerSanitizer evita que datos del visitante agreguen cabeceras.
var headerSanitizer = strings.NewReplacer("\r", " ", "\n", " ")

func contactSubject(req domain.ContactRequest) string {
	subject := strings.TrimSpace(headerSanitizer.Replace(req.Subject))
	if subject == "" {
		subject = "Nuevo mensaje de contacto"
	}
	return fmt.Sprintf("[Portfolio] %s", subject)
}

func contactBody(req domain.ContactRequest) string {
	return fmt.Sprintf(
		"Nombre: %s\nEmail: %s\nFecha: %s UTC\n\n%s\n",
		req.Name,
		req.Email,
		req.CreatedAt.UTC().Format(time.RFC3339),
		req.Message,
	)
}
