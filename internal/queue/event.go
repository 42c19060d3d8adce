// Package queue defines message payloads exchanged over the message broker
// together with the publisher and the background consumer.
package queue

// Queue names.  Both queues are durable.
const (
    BookingConfirmedQueue = "booking.confirmed"
    OrderExpiredQueue     = "order.expired"
)

// BookingConfirmedEvent is published when a payment is matched and the
// reservation is confirmed, or when staff confirm a reservation by hand.
// It contains enough information for downstream consumers to log, notify,
// or trigger analytics without querying the primary database.
type BookingConfirmedEvent struct {
    OrderID        string `json:"order_id,omitempty"`
    ReservationID  string `json:"reservation_id,omitempty"`
    RoomID         string `json:"room_id,omitempty"`
    RoomTitle      string `json:"room_title,omitempty"`
    CustomerName   string `json:"customer_name"`
    CustomerPhone  string `json:"customer_phone"`
    CustomerEmail  string `json:"customer_email,omitempty"`
    CheckIn        string `json:"check_in,omitempty"`
    CheckOut       string `json:"check_out,omitempty"`
    Duration       string `json:"duration,omitempty"`
    Amount         int64  `json:"amount"`
    TransactionRef string `json:"transaction_ref,omitempty"`
    ConfirmedAt    string `json:"confirmed_at"`
}

// OrderExpiredEvent is published when an unpaid order runs out of time and
// its held reservation is released.
type OrderExpiredEvent struct {
    OrderID       string `json:"order_id"`
    ReservationID string `json:"reservation_id,omitempty"`
    ExpiredAt     string `json:"expired_at"`
}
