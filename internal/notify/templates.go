package notify

import (
	"bytes"
	"fmt"
	"html/template"

	"github.com/ariefcatur/go-cosmetics-orders/internal/orders"
	"github.com/shopspring/decimal"
)

type statusTemplate struct {
	subject   string
	pushTitle string
	pushBody  string // fmt, one %s: order id
	email     *template.Template
}

var funcs = template.FuncMap{
	"money": func(d decimal.Decimal) string { return "₱" + d.StringFixed(2) },
	"mul":   func(d decimal.Decimal, q int) decimal.Decimal { return d.Mul(decimal.NewFromInt(int64(q))) },
}

const layoutTmpl = `{{define "items"}}<table>
{{range .Items}}<tr><td>{{.Name}}</td><td>x{{.Qty}}</td><td>{{money (mul .UnitPrice .Qty)}}</td></tr>
{{end}}</table>
<p>Total: <strong>{{money .TotalAmount}}</strong> (shipping {{money .ShippingFee}})</p>{{end}}`

func mustEmail(body string) *template.Template {
	t := template.Must(template.New("layout").Funcs(funcs).Parse(layoutTmpl))
	return template.Must(t.New("email").Parse(
		`<html><body><h2>{{.Heading}}</h2><p>Order <code>{{.Order.ID}}</code></p>` + body +
			`{{template "items" .Order}}</body></html>`))
}

var statusTemplates = map[orders.Status]statusTemplate{
	orders.StatusPlaced: {
		subject:   "We received your order",
		pushTitle: "Order placed",
		pushBody:  "Order %s has been placed.",
		email:     mustEmail(`<p>Thank you for shopping with us. We are preparing your items.</p>`),
	},
	orders.StatusToShip: {
		subject:   "Your order is being packed",
		pushTitle: "Preparing to ship",
		pushBody:  "Order %s is being packed for shipping.",
		email:     mustEmail(`<p>Your order is being packed and will be handed to the courier soon.</p>`),
	},
	orders.StatusShipped: {
		subject:   "Your order is on the way",
		pushTitle: "Order shipped",
		pushBody:  "Order %s is on its way.",
		email:     mustEmail(`<p>Good news! Your order has left our warehouse.</p>`),
	},
	orders.StatusCompleted: {
		subject:   "Your order is complete",
		pushTitle: "Order completed",
		pushBody:  "Order %s is complete. Enjoy!",
		email:     mustEmail(`<p>Your order has been delivered. We hope you love it.</p>`),
	},
	orders.StatusCancelled: {
		subject:   "Your order was cancelled",
		pushTitle: "Order cancelled",
		pushBody:  "Order %s has been cancelled.",
		email:     mustEmail(`<p>Your order has been cancelled. Reserved items were returned to stock.</p>`),
	},
}

var confirmationEmail = mustEmail(`<p>Thank you for your order! Here is your receipt.</p>`)

type emailData struct {
	Heading string
	Order   orders.Order
}

// Confirmation renders the receipt sent right after checkout.
func Confirmation(o orders.Order) (Notification, error) {
	body, err := render(confirmationEmail, emailData{Heading: "Order confirmation", Order: o})
	if err != nil {
		return Notification{}, err
	}
	return Notification{
		OrderID: o.ID,
		Channel: orders.ChannelEmail,
		To:      o.Email,
		Subject: fmt.Sprintf("Order confirmation #%s", o.ID),
		Body:    body,
	}, nil
}

// StatusEmail renders the HTML mail for o's current status.
func StatusEmail(o orders.Order) (Notification, error) {
	t, ok := statusTemplates[o.Status]
	if !ok {
		return Notification{}, fmt.Errorf("%w: no template for %q", orders.ErrInvalidStatus, o.Status)
	}
	body, err := render(t.email, emailData{Heading: t.subject, Order: o})
	if err != nil {
		return Notification{}, err
	}
	return Notification{
		OrderID: o.ID,
		Channel: orders.ChannelEmail,
		To:      o.Email,
		Subject: t.subject,
		Body:    body,
	}, nil
}

// StatusPush renders the short push text for o's current status.
func StatusPush(o orders.Order, endpoint string) (Notification, error) {
	t, ok := statusTemplates[o.Status]
	if !ok {
		return Notification{}, fmt.Errorf("%w: no template for %q", orders.ErrInvalidStatus, o.Status)
	}
	return Notification{
		OrderID: o.ID,
		Channel: orders.ChannelPush,
		To:      endpoint,
		Subject: t.pushTitle,
		Body:    fmt.Sprintf(t.pushBody, o.ID),
	}, nil
}

func render(t *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "email", data); err != nil {
		return "", fmt.Errorf("render %s: %w", t.Name(), err)
	}
	return buf.String(), nil
}
