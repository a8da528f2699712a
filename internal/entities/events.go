package entities

// Routing keys for order domain events. Dead-letter topics append ".failed".
const (
	EventOrderCreated       = "order.created"
	EventOrderStatusChanged = "order.status.changed"
	EventOrderCancelled     = "order.cancelled"
)

// Event is a domain event emitted by an order state transition. Commands
// return the emitted event explicitly; the caller is responsible for writing
// it to the outbox in the same transaction as the state change.
type Event interface {
	Type() string
	AggregateID() string
}

type OrderCreated struct {
	OrderID     string `json:"orderId"`
	CustomerID  string `json:"customerId"`
	TotalAmount string `json:"totalAmount"`
}

func (e OrderCreated) Type() string        { return EventOrderCreated }
func (e OrderCreated) AggregateID() string { return e.OrderID }

type OrderStatusChanged struct {
	OrderID   string `json:"orderId"`
	OldStatus string `json:"oldStatus"`
	NewStatus string `json:"newStatus"`
}

func (e OrderStatusChanged) Type() string        { return EventOrderStatusChanged }
func (e OrderStatusChanged) AggregateID() string { return e.OrderID }

type OrderCancelled struct {
	OrderID    string `json:"orderId"`
	CustomerID string `json:"customerId"`
	Reason     string `json:"reason"`
}

func (e OrderCancelled) Type() string        { return EventOrderCancelled }
func (e OrderCancelled) AggregateID() string { return e.OrderID }
