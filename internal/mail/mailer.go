package mail

import (
	"context"
	"errors"
	"fmt"
	"net/smtp"
	"strings"

	domain "github.com/snapedits/api/internal/domain"
)

// Config carries SMTP connection settings.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	// From is the sender address on outgoing mail.
	From string
}

// Mailer sends transactional mail over SMTP.
type Mailer struct {
	addr string
	auth smtp.Auth
	from string

	// send is swappable for tests.
	send func(addr string, auth smtp.Auth, from string, to []string, msg []byte) error
}

// NewMailer validates the SMTP settings and returns a Mailer.
func NewMailer(cfg Config) (*Mailer, error) {
	host := strings.TrimSpace(cfg.Host)
	from := strings.TrimSpace(cfg.From)
	if host == "" {
		return nil, errors.New("mail: smtp host is required")
	}
	if cfg.Port <= 0 {
		return nil, errors.New("mail: smtp port is required")
	}
	if from == "" {
		return nil, errors.New("mail: from address is required")
	}

	var auth smtp.Auth
	if cfg.Username != "" {
		auth = smtp.PlainAuth("", cfg.Username, cfg.Password, host)
	}

	return &Mailer{
		addr: fmt.Sprintf("%s:%d", host, cfg.Port),
		auth: auth,
		from: from,
		send: smtp.SendMail,
	}, nil
}

// SendOrderConfirmation emails the customer a plain-text order summary.
func (m *Mailer) SendOrderConfirmation(ctx context.Context, to string, order domain.Order) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	recipient := strings.TrimSpace(to)
	if recipient == "" {
		return errors.New("mail: recipient is required")
	}

	subject := fmt.Sprintf("Order confirmation %s", order.OrderNumber)
	body := confirmationBody(order)
	msg := buildMessage(m.from, recipient, subject, body)

	if err := m.send(m.addr, m.auth, m.from, []string{recipient}, msg); err != nil {
		return fmt.Errorf("mail: send to %s: %w", recipient, err)
	}
	return nil
}

func confirmationBody(order domain.Order) string {
	var b strings.Builder
	name := strings.TrimSpace(order.BillingAddress.FullName)
	if name == "" {
		name = "there"
	}
	fmt.Fprintf(&b, "Hi %s,\r\n\r\n", name)
	fmt.Fprintf(&b, "Thanks for your order %s.\r\n\r\n", order.OrderNumber)
	for _, item := range order.Items {
		label := item.ServiceName
		if label == "" {
			label = item.ServiceID
		}
		fmt.Fprintf(&b, "  %dx %s - %s\r\n", item.Quantity, label, formatCents(item.FinalPrice*int64(item.Quantity), order.Currency))
	}
	b.WriteString("\r\n")
	if order.Discount > 0 {
		fmt.Fprintf(&b, "Discount: -%s\r\n", formatCents(order.Discount, order.Currency))
	}
	fmt.Fprintf(&b, "Total: %s\r\n", formatCents(order.Total, order.Currency))
	if !order.ExpectedDelivery.IsZero() {
		fmt.Fprintf(&b, "Expected delivery: %s\r\n", order.ExpectedDelivery.Format("January 2, 2006"))
	}
	if order.InvoiceNumber != "" {
		fmt.Fprintf(&b, "Invoice: %s\r\n", order.InvoiceNumber)
	}
	b.WriteString("\r\nThe SnapEdits team\r\n")
	return b.String()
}

func buildMessage(from, to, subject, body string) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(body)
	return []byte(b.String())
}

func formatCents(cents int64, currency string) string {
	cur := strings.ToUpper(strings.TrimSpace(currency))
	if cur == "" {
		cur = "USD"
	}
	return fmt.Sprintf("%d.%02d %s", cents/100, cents%100, cur)
}

// NoopMailer discards outgoing mail. It stands in when SMTP is not configured
// so checkout side effects degrade gracefully in development.
type NoopMailer struct{}

// SendOrderConfirmation implements the mailer contract as a no-op.
func (NoopMailer) SendOrderConfirmation(context.Context, string, domain.Order) error {
	return nil
}
