package model

import "time"

// PaymentStatus is the payment state of an order.  An order leaves unpaid
// exactly once, either to paid or to idled.
type PaymentStatus string

const (
	PaymentUnpaid PaymentStatus = "unpaid"
	PaymentPaid   PaymentStatus = "paid"
	PaymentIdled  PaymentStatus = "idled"
)

// CurrencyVND is the only currency the bank-transfer flow supports.
const CurrencyVND = "VND"

// OrderItem is a cart line frozen on the order.
type OrderItem struct {
	ProductID string `json:"productId"`
	Title     string `json:"title,omitempty"`
	Quantity  int    `json:"quantity"`
	Price     int64  `json:"price"`
}

// Order tracks what a customer owes and whether the bank transfer arrived.
//
// Fields:
//  TransferContent – exact reference the customer must put in the transfer
//                    description; fixed at creation.
//  TransactionRef  – provider transaction id recorded when the payment is
//                    matched.
//  BookingRoom, BookingDuration, CheckIn, CheckOut – booking summary as
//                    shown to the customer.
type Order struct {
	ID              string        `json:"id"`       // orders.id
	Amount          int64         `json:"amount"`   // orders.amount
	Currency        string        `json:"currency"` // orders.currency
	Items           []OrderItem   `json:"items"`    // orders.items (JSON)
	PaymentStatus   PaymentStatus `json:"paymentStatus"`
	TransferContent string        `json:"transferContent"`          // orders.transfer_content
	TransactionRef  string        `json:"transactionRef,omitempty"` // orders.transaction_ref (nullable, unique)
	CustomerName    string        `json:"customerName"`
	CustomerPhone   string        `json:"customerPhone"`
	CustomerEmail   string        `json:"customerEmail,omitempty"`
	Note            string        `json:"note,omitempty"`
	RoomID          string        `json:"roomId,omitempty"`
	BookingRoom     string        `json:"bookingRoom,omitempty"`
	BookingDuration string        `json:"bookingDuration,omitempty"`
	CheckIn         string        `json:"checkIn,omitempty"`
	CheckOut        string        `json:"checkOut,omitempty"`
	CreatedAt       time.Time     `json:"createdAt"`
	UpdatedAt       time.Time     `json:"updatedAt"`
	PaidAt          *time.Time    `json:"paidAt,omitempty"`
}
