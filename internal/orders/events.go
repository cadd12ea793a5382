package orders

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

const (
	EventOrderPlaced           = "OrderPlaced"
	EventOrderStatusChanged    = "OrderStatusChanged"
	EventNotificationRequested = "NotificationRequested"
)

type Envelope struct {
	EventID       string          `json:"event_id"`      // uuid
	EventType     string          `json:"event_type"`    // one of the consts above
	EventVersion  int             `json:"event_version"` // 1
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"` // e.g., "cosmetics-api"
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // usually order_id
	Payload       json.RawMessage `json:"payload"`
}

// ---- payloads ----

type ItemQty struct {
	ProductID string `json:"product_id"`
	Qty       int    `json:"qty"`
}

type OrderPlacedPayload struct {
	OrderID     string          `json:"order_id"`
	UserID      string          `json:"user_id"`
	Items       []OrderItem     `json:"items"`
	TotalAmount decimal.Decimal `json:"total_amount"`
}

type OrderStatusChangedPayload struct {
	OrderID       string    `json:"order_id"`
	UserID        string    `json:"user_id"`
	From          Status    `json:"from"`
	To            Status    `json:"to"`
	StockReleased []ItemQty `json:"stock_released,omitempty"`
}

type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelPush  Channel = "push"
)

// NotificationPayload is a fully rendered message; the delivery worker does
// no templating of its own.
type NotificationPayload struct {
	OrderID string  `json:"order_id"`
	Channel Channel `json:"channel"`
	To      string  `json:"to"` // email address or push endpoint
	Subject string  `json:"subject"`
	Body    string  `json:"body"`
}
