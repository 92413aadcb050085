package notify

import (
	"bytes"
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"log/slog"

	"github.com/kavineshduraisamy/Wirstix-E-commerce/internal/domain"
	"github.com/kavineshduraisamy/Wirstix-E-commerce/internal/messaging"
)

//go:embed templates/*.html
var templateFS embed.FS

type message struct {
	subject  string
	template string
}

var messages = map[domain.OrderEventType]message{
	domain.OrderPaid:      {subject: "Payment received for order %s", template: "order_paid.html"},
	domain.OrderDelivered: {subject: "Order %s delivered", template: "order_delivered.html"},
}

type emailData struct {
	Name    string
	OrderID string
	Items   []domain.OrderItem
	Total   string
	When    string
}

type Notifier struct {
	mailer    Mailer
	templates *template.Template
	logger    *slog.Logger
}

func NewNotifier(mailer Mailer, logger *slog.Logger) (*Notifier, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse email templates: %w", err)
	}
	return &Notifier{mailer: mailer, templates: tmpl, logger: logger}, nil
}

// Handle emails the purchaser for paid and delivered events. Other event
// types, and payloads that cannot be decoded, are acknowledged and skipped.
// A mail failure is returned so the message is redelivered.
func (n *Notifier) Handle(ctx context.Context, d messaging.Delivery) error {
	if d.Type != "" {
		if _, ok := messages[domain.OrderEventType(d.Type)]; !ok {
			return nil
		}
	}

	var event domain.OrderEvent
	if err := json.Unmarshal(d.Payload, &event); err != nil {
		n.logger.Error("dropping undecodable order event", "error", err, "key", d.Key)
		return nil
	}

	msg, ok := messages[event.Type]
	if !ok {
		return nil
	}
	if event.Email == "" {
		n.logger.Warn("order event has no recipient", "order_id", event.OrderID, "type", event.Type)
		return nil
	}

	var body bytes.Buffer
	data := emailData{
		Name:    event.Name,
		OrderID: event.OrderID,
		Items:   event.Items,
		Total:   event.Total.StringFixed(2),
		When:    event.Timestamp.Format("January 2, 2006"),
	}
	if err := n.templates.ExecuteTemplate(&body, msg.template, data); err != nil {
		return fmt.Errorf("render %s: %w", msg.template, err)
	}

	if err := n.mailer.Send(ctx, event.Email, fmt.Sprintf(msg.subject, event.OrderID), body.String()); err != nil {
		n.logger.Error("failed to send order email", "error", err, "order_id", event.OrderID, "type", event.Type)
		return err
	}

	n.logger.Info("order email sent", "order_id", event.OrderID, "type", event.Type)
	return nil
}
