package notify

import (
	"bytes"
	"context"
	"fmt"
	"html/template"

	"github.com/mohamedebada21/last-online-halal/internal/apperr"
	"github.com/mohamedebada21/last-online-halal/pkg/contracts"
	"github.com/mohamedebada21/last-online-halal/pkg/logging"
	"github.com/mohamedebada21/last-online-halal/pkg/metrics"
	"github.com/mohamedebada21/last-online-halal/pkg/outbox"
)

var (
	placedTmpl = template.Must(template.New("placed").Parse(`<h2>New order {{.OrderNumber}}</h2>
<p>Customer: {{.CustomerName}} ({{.Phone}})<br>Deliver to: {{.Address}}</p>
<table>
{{range .Items}}<tr><td>{{.Name}}</td><td>{{.Quantity}}</td><td>${{.UnitPrice}}</td></tr>
{{end}}</table>
<p>Subtotal: ${{.Subtotal}}<br>Tax: ${{.Tax}}<br><strong>Total: ${{.Total}}</strong></p>
<p>Payment: {{.PaymentMethod}} ({{.PaymentStatus}})<br>Estimated delivery: {{.DeliveryDate.Format "Jan 2, 2006"}}</p>
`))

	fulfilledTmpl = template.Must(template.New("fulfilled").Parse(`<p>Hi {{.CustomerName}},</p>
<p>Your order {{.OrderNumber}} has been fulfilled and is on its way to {{.Address}}.</p>
<p>Total: ${{.Total}}</p>
`))
)

// Dispatcher turns order events into emails: order.placed goes to the
// administrator, order.fulfilled goes to the customer.
type Dispatcher struct {
	Notifier   Notifier
	AdminEmail string
	Service    string
	Metrics    *metrics.ShopMetrics
}

var _ outbox.Publisher = (*Dispatcher)(nil)

// Handle returns ErrNotificationFailed when the email could not be built or
// sent. Events of unknown type are ignored.
func (d *Dispatcher) Handle(ctx context.Context, evt contracts.Event) error {
	const op = "notify.Handle"
	var (
		msg  Message
		tmpl *template.Template
	)
	n, err := evt.Notice()
	if err != nil {
		return apperr.New(op, apperr.ErrNotificationFailed).WithID(evt.EventID).WithDetail("%v", err)
	}

	switch evt.Type {
	case contracts.EventOrderPlaced:
		tmpl = placedTmpl
		msg = Message{
			To:      d.AdminEmail,
			Subject: "New Order Received: #" + n.OrderNumber,
			Text:    fmt.Sprintf("Order %s from %s, total $%s.", n.OrderNumber, n.CustomerName, n.Total),
		}
	case contracts.EventOrderFulfilled:
		tmpl = fulfilledTmpl
		msg = Message{
			To:      n.CustomerEmail,
			Subject: "Your order #" + n.OrderNumber + " has been fulfilled",
			Text:    fmt.Sprintf("Your order %s has been fulfilled. Total $%s.", n.OrderNumber, n.Total),
		}
	default:
		return nil
	}
	if msg.To == "" {
		return d.fail(evt, apperr.New(op, apperr.ErrNotificationFailed).WithID(evt.EventID).WithDetail("no recipient"))
	}

	var body bytes.Buffer
	if err := tmpl.Execute(&body, n); err != nil {
		return d.fail(evt, apperr.New(op, apperr.ErrNotificationFailed).WithID(evt.EventID).WithDetail("render: %v", err))
	}
	msg.HTML = body.String()

	if err := d.Notifier.Send(ctx, msg); err != nil {
		return d.fail(evt, apperr.New(op, apperr.ErrNotificationFailed).WithID(evt.EventID).WithDetail("%v", err))
	}
	d.Metrics.Notification(evt.Type, "sent")
	logging.Log(logging.Fields{
		Service: d.Service,
		OrderID: evt.OrderID,
		EventID: evt.EventID,
		Step:    evt.Type,
		Status:  "notified",
	})
	return nil
}

// Publish hands a relayed outbox record to Handle. Notification failures are
// logged and swallowed so the record is still marked sent.
func (d *Dispatcher) Publish(ctx context.Context, rec outbox.Record) error {
	evt, err := rec.Event()
	if err != nil {
		logging.Log(logging.Fields{Service: d.Service, EventID: rec.EventID, Step: "decode", Error: err.Error()})
		return nil
	}
	_ = d.Handle(ctx, evt)
	return nil
}

func (d *Dispatcher) fail(evt contracts.Event, err error) error {
	d.Metrics.Notification(evt.Type, "failed")
	logging.Log(logging.Fields{
		Service: d.Service,
		OrderID: evt.OrderID,
		EventID: evt.EventID,
		Step:    evt.Type,
		Status:  "notification_failed",
		Error:   err.Error(),
	})
	return err
}
