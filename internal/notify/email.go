// Package notify sends order-confirmation emails off the order.paid stream.
package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/MarcosDevYT/ecommerce-core/internal/orders"
)

type Sender interface {
	SendOrderConfirmation(ctx context.Context, p orders.OrderPaidPayload) error
}

// SMTPSender delivers plain-text confirmations over SMTP.
type SMTPSender struct {
	Addr string // host:port
	User string
	Pass string
	From string
}

func (s *SMTPSender) SendOrderConfirmation(_ context.Context, p orders.OrderPaidPayload) error {
	name := p.CustomerName
	if name == "" {
		name = "customer"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "From: Ecommerce Core <%s>\r\n", s.From)
	fmt.Fprintf(&b, "To: %s\r\n", p.CustomerEmail)
	fmt.Fprintf(&b, "Subject: Order confirmation #%s\r\n", shortID(p.OrderID))
	b.WriteString("MIME-Version: 1.0\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n")

	fmt.Fprintf(&b, "Hi %s,\r\n\r\nyour payment was received. Order %s is confirmed.\r\n\r\n", name, p.OrderID)
	for _, it := range p.Items {
		fmt.Fprintf(&b, "  %d x %s @ %s\r\n", it.Qty, it.ProductID, formatCents(it.UnitPriceCents))
	}
	fmt.Fprintf(&b, "\r\nTotal: %s\r\n", formatCents(p.TotalCents))

	var auth smtp.Auth
	if s.User != "" {
		host := s.Addr
		if i := strings.IndexByte(host, ':'); i >= 0 {
			host = host[:i]
		}
		auth = smtp.PlainAuth("", s.User, s.Pass, host)
	}
	if err := smtp.SendMail(s.Addr, auth, s.From, []string{p.CustomerEmail}, []byte(b.String())); err != nil {
		return fmt.Errorf("send confirmation for order %s: %w", p.OrderID, err)
	}
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func formatCents(c int64) string {
	return fmt.Sprintf("$%d.%02d", c/100, c%100)
}
