package notification

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"ms-checkout/internal/config"
	"ms-checkout/internal/logger"
	"ms-checkout/internal/models"
	"strings"
	"time"

	"github.com/wneessen/go-mail"
)

var (
	ErrNoRecipient       = errors.New("participant has no email address")
	ErrMailerUnavailable = errors.New("smtp client is not configured")
)

// Sender delivers rendered messages. *mail.Client satisfies it.
type Sender interface {
	DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error
}

const (
	confirmationSubject = "Sua inscrição está confirmada"
	// embedded parts are addressed by file name
	qrFileName         = "ingresso.png"
	qrImageSize        = 256
	defaultSendTimeout = 15 * time.Second
)

// QRRenderer turns a participant token into a PNG.
type QRRenderer interface {
	PNG(token string, size int) ([]byte, error)
}

var confirmationTemplate = template.Must(template.New("confirmation").Parse(`<html>
<body style="font-family: Arial, sans-serif;">
  <h2>Olá, {{.Name}}!</h2>
  <p>O pagamento do pedido <strong>{{.CheckoutID}}</strong> foi aprovado.</p>
  <table>
    <tr><td>Evento</td><td>{{.EventID}}</td></tr>
    <tr><td>Ingresso</td><td>{{.TicketType}}</td></tr>
    <tr><td>Documento</td><td>{{.Document}}</td></tr>
    {{if .Total}}<tr><td>Total do pedido</td><td>R$ {{.Total}}</td></tr>{{end}}
  </table>
  {{if .QRCode}}<p>Apresente este código na entrada:</p>
  {{if .InlineQR}}<p><img src="cid:{{.ContentID}}" alt="QR code" width="256" height="256"></p>{{end}}
  <p><code>{{.QRCode}}</code></p>{{end}}
</body>
</html>`))

type confirmationData struct {
	Name       string
	CheckoutID string
	EventID    string
	TicketType string
	Document   string
	Total      string
	QRCode     string
	InlineQR   bool
	ContentID  string
}

// SMTPMailer sends participant confirmations over SMTP.
type SMTPMailer struct {
	cfg    config.EmailConfig
	sender Sender
	qr     QRRenderer
	log    *logger.Logger
}

func NewSMTPMailer(cfg config.EmailConfig, log *logger.Logger) *SMTPMailer {
	m := &SMTPMailer{cfg: cfg, log: log}
	if !cfg.Enabled {
		return m
	}
	client, err := newClient(cfg, m.timeout())
	if err != nil {
		log.Error("EMAIL", fmt.Sprintf("SMTP client unavailable, confirmations will fail: %v", err))
		return m
	}
	m.sender = client
	return m
}

func newClient(cfg config.EmailConfig, timeout time.Duration) (*mail.Client, error) {
	opts := []mail.Option{
		mail.WithPort(cfg.SMTPPort),
		mail.WithTimeout(timeout),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
	}
	if cfg.SMTPUsername != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.SMTPUsername),
			mail.WithPassword(cfg.SMTPPassword),
		)
	}
	return mail.NewClient(cfg.SMTPHost, opts...)
}

// WithQRRenderer embeds the participant QR code as an inline image.
func (m *SMTPMailer) WithQRRenderer(r QRRenderer) *SMTPMailer {
	m.qr = r
	return m
}

// WithSender replaces the transport, used by tests.
func (m *SMTPMailer) WithSender(s Sender) *SMTPMailer {
	m.sender = s
	return m
}

func (m *SMTPMailer) timeout() time.Duration {
	if m.cfg.SendTimeout > 0 {
		return m.cfg.SendTimeout
	}
	return defaultSendTimeout
}

// SendConfirmation gives up after the configured send timeout so a stalled server cannot hold the caller.
func (m *SMTPMailer) SendConfirmation(ctx context.Context, p *models.Participant, c *models.Checkout) error {
	if strings.TrimSpace(p.Email) == "" {
		return ErrNoRecipient
	}
	if !m.cfg.Enabled {
		m.log.Debug("EMAIL", fmt.Sprintf("Email disabled, skipping confirmation for participant %s", p.ID))
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if m.sender == nil {
		return ErrMailerUnavailable
	}

	var qrPNG []byte
	if m.qr != nil && p.QRCode != nil && *p.QRCode != "" {
		png, err := m.qr.PNG(*p.QRCode, qrImageSize)
		if err != nil {
			// the token is still printed in the body
			m.log.Warn("EMAIL", fmt.Sprintf("Failed to render QR code for participant %s: %v", p.ID, err))
		} else {
			qrPNG = png
		}
	}

	msg, err := buildConfirmation(m.cfg.From, p, c, qrPNG)
	if err != nil {
		return fmt.Errorf("failed to render confirmation: %w", err)
	}

	sendCtx, cancel := context.WithTimeout(ctx, m.timeout())
	defer cancel()
	if err := m.sender.DialAndSendWithContext(sendCtx, msg); err != nil {
		return fmt.Errorf("smtp send to %s: %w", p.Email, err)
	}

	m.log.Info("EMAIL", fmt.Sprintf("Confirmation sent to participant %s of checkout %s", p.ID, c.ID))
	return nil
}

func buildConfirmation(from string, p *models.Participant, c *models.Checkout, qrPNG []byte) (*mail.Msg, error) {
	data := confirmationData{
		Name:       p.Name,
		CheckoutID: c.ID,
		EventID:    c.EventID(),
		TicketType: string(p.TicketType),
		Document:   p.Document,
		InlineQR:   len(qrPNG) > 0,
		ContentID:  qrFileName,
	}
	if c.Total() > 0 {
		data.Total = fmt.Sprintf("%.2f", c.Total())
	}
	if p.QRCode != nil {
		data.QRCode = *p.QRCode
	}

	var html bytes.Buffer
	if err := confirmationTemplate.Execute(&html, data); err != nil {
		return nil, err
	}

	msg := mail.NewMsg()
	if err := msg.From(from); err != nil {
		return nil, fmt.Errorf("invalid sender %q: %w", from, err)
	}
	if err := msg.To(p.Email); err != nil {
		return nil, fmt.Errorf("invalid recipient %q: %w", p.Email, err)
	}
	msg.Subject(confirmationSubject)
	msg.SetDate()
	msg.SetMessageID()
	msg.SetBodyString(mail.TypeTextHTML, html.String())

	if len(qrPNG) > 0 {
		if err := msg.EmbedReader(qrFileName, bytes.NewReader(qrPNG), mail.WithFileContentType("image/png")); err != nil {
			return nil, fmt.Errorf("failed to embed QR code: %w", err)
		}
	}
	return msg, nil
}
