package service

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/iliyamo/hotel-booking/internal/model"
	"github.com/iliyamo/hotel-booking/internal/payment"
)

// Ref is a relation that the storefront sends either as a bare id (string
// or number) or as a populated object carrying an id.
type Ref string

func (r *Ref) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case len(b) == 0 || bytes.Equal(b, []byte("null")):
		*r = ""
	case b[0] == '{':
		var obj struct {
			ID json.RawMessage `json:"id"`
		}
		if err := json.Unmarshal(b, &obj); err != nil {
			return err
		}
		if len(obj.ID) == 0 {
			*r = ""
			return nil
		}
		return r.UnmarshalJSON(obj.ID)
	case b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*r = Ref(strings.TrimSpace(s))
	default:
		var n json.Number
		if err := json.Unmarshal(b, &n); err != nil {
			return fmt.Errorf("ref: %w", err)
		}
		*r = Ref(n.String())
	}
	return nil
}

// Count is a small integer that may arrive quoted.
type Count int

func (c *Count) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(bytes.TrimSpace(b)), `"`)
	if s == "" || s == "null" {
		*c = 0
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("count: %w", err)
	}
	*c = Count(n)
	return nil
}

// CartProduct is the product snapshot the storefront puts in a cart line.
type CartProduct struct {
	ID         Ref    `json:"id"`
	Title      string `json:"title"`
	PriceInVND int64  `json:"priceInVND"`
	Room       Ref    `json:"room"`
	Branch     Ref    `json:"branch"`
}

type CartItem struct {
	Product  CartProduct `json:"product"`
	Quantity Count       `json:"quantity"`
}

// BookingDetails carries the guest and window.  Name, phone and email
// accept both the short and the customer-prefixed key.
type BookingDetails struct {
	CheckIn       string `json:"checkIn"`
	CheckOut      string `json:"checkOut"`
	Name          string `json:"name"`
	CustomerName  string `json:"customerName"`
	Phone         string `json:"phone"`
	CustomerPhone string `json:"customerPhone"`
	Email         string `json:"email"`
	CustomerEmail string `json:"customerEmail"`
	Note          string `json:"note"`
	BookingType   string `json:"bookingType"`
	Duration      Count  `json:"duration"`
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func (d BookingDetails) customer() (name, phone, email string) {
	return firstNonEmpty(d.Name, d.CustomerName),
		firstNonEmpty(d.Phone, d.CustomerPhone),
		firstNonEmpty(d.Email, d.CustomerEmail)
}

// mode returns the booking type, hourly when none was sent.
func (d BookingDetails) mode() model.BookingType {
	t := model.BookingType(strings.ToLower(strings.TrimSpace(d.BookingType)))
	if t == "" {
		return model.BookingHourly
	}
	return t
}

// CreateOrderInput is the create-payment request body.
type CreateOrderInput struct {
	CartItems      []CartItem     `json:"cartItems"`
	TotalAmount    int64          `json:"totalAmount"`
	BookingDetails BookingDetails `json:"bookingDetails"`
}

type CreateOrderResult struct {
	OrderID     string       `json:"orderId"`
	PaymentInfo payment.Info `json:"paymentInfo"`
}

// StatusResult is what a polling checkout page receives.
type StatusResult struct {
	Status      model.PaymentStatus `json:"status"`
	CreatedAt   time.Time           `json:"createdAt"`
	PaymentInfo *payment.Info       `json:"paymentInfo,omitempty"`
}

type WebhookResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// StaffReservationInput is a reservation entered by front-desk staff.
// RoomID may be empty when only a room type was requested.
type StaffReservationInput struct {
	RoomID        string `json:"roomId"`
	RoomType      string `json:"roomType"`
	BranchID      string `json:"branchId"`
	CheckIn       string `json:"checkIn" validate:"required"`
	CheckOut      string `json:"checkOut"`
	Type          string `json:"type" validate:"required,oneof=hourly overnight daily"`
	Hours         int    `json:"hours" validate:"gte=0,lte=720"`
	CustomerName  string `json:"customerName" validate:"required"`
	CustomerPhone string `json:"customerPhone" validate:"required"`
	CustomerEmail string `json:"customerEmail" validate:"omitempty,email"`
	Note          string `json:"note"`
}

// StaffReservationResult reports the reservation and, when one could be
// created, the order the guest can pay.
type StaffReservationResult struct {
	Reservation *model.Reservation `json:"reservation"`
	Order       *model.Order       `json:"order,omitempty"`
	PaymentInfo *payment.Info      `json:"paymentInfo,omitempty"`
}
