package model

import "time"

// BookingType selects how a stay is priced.
type BookingType string

const (
	BookingHourly    BookingType = "hourly"
	BookingOvernight BookingType = "overnight"
	BookingDaily     BookingType = "daily"
)

// Valid reports whether t is one of the known booking modes.
func (t BookingType) Valid() bool {
	switch t {
	case BookingHourly, BookingOvernight, BookingDaily:
		return true
	}
	return false
}

// ReservationStatus is the lifecycle state of a reservation.
type ReservationStatus string

const (
	ReservationPending   ReservationStatus = "pending"
	ReservationConfirmed ReservationStatus = "confirmed"
	ReservationCancelled ReservationStatus = "cancelled"
	ReservationCompleted ReservationStatus = "completed"
)

// HoldingStatuses lists the statuses that consume inventory.
var HoldingStatuses = []ReservationStatus{ReservationPending, ReservationConfirmed}

// Holds reports whether a reservation in this status occupies a room unit.
func (s ReservationStatus) Holds() bool {
	return s == ReservationPending || s == ReservationConfirmed
}

// Valid reports whether s is a known status.
func (s ReservationStatus) Valid() bool {
	switch s {
	case ReservationPending, ReservationConfirmed, ReservationCancelled, ReservationCompleted:
		return true
	}
	return false
}

// reservationTransitions maps a status to the statuses it may move to.
var reservationTransitions = map[ReservationStatus][]ReservationStatus{
	ReservationPending:   {ReservationConfirmed, ReservationCancelled},
	ReservationConfirmed: {ReservationCancelled, ReservationCompleted},
}

// CanTransition reports whether a reservation may move from s to next.
func (s ReservationStatus) CanTransition(next ReservationStatus) bool {
	for _, t := range reservationTransitions[s] {
		if t == next {
			return true
		}
	}
	return false
}

// SourcesFor returns every status from which next can be reached.
func SourcesFor(next ReservationStatus) []ReservationStatus {
	var out []ReservationStatus
	for from, targets := range reservationTransitions {
		for _, t := range targets {
			if t == next {
				out = append(out, from)
			}
		}
	}
	return out
}

// Reservation holds one room unit for a time window.
//
// Fields:
//  ID        – primary key identifier.
//  RoomID    – booked room; empty when staff only recorded a requested room type.
//  OrderID   – order that created the reservation, if any.
//  CheckIn   – start of the window.
//  CheckOut  – end of the window (nil when not fixed yet).
//  Status    – pending, confirmed, cancelled or completed.
//  Type      – booking mode the stay is priced under.
type Reservation struct {
	ID            string            `json:"id"`                  // reservations.id
	RoomID        string            `json:"roomId,omitempty"`    // reservations.room_id (nullable)
	BranchID      string            `json:"branchId,omitempty"`  // reservations.branch_id
	RoomType      string            `json:"roomType,omitempty"`  // reservations.room_type
	OrderID       string            `json:"orderId,omitempty"`   // reservations.order_id (nullable, indexed)
	CheckIn       time.Time         `json:"checkIn"`             // reservations.check_in
	CheckOut      *time.Time        `json:"checkOut,omitempty"`  // reservations.check_out (nullable)
	Status        ReservationStatus `json:"status"`              // reservations.status
	Type          BookingType       `json:"type"`                // reservations.booking_type
	CustomerName  string            `json:"customerName"`        // reservations.customer_name
	CustomerPhone string            `json:"customerPhone"`       // reservations.customer_phone
	CustomerEmail string            `json:"customerEmail,omitempty"`
	Note          string            `json:"note,omitempty"`
	CreatedAt     time.Time         `json:"createdAt"`
	UpdatedAt     time.Time         `json:"updatedAt"`
}

// Overlaps reports whether the reservation occupies any instant of
// [checkIn, checkOut].  Boundaries are inclusive, so a stay ending at 12:00
// collides with one starting at 12:00.  A reservation without a check-out
// is open ended.
func (r Reservation) Overlaps(checkIn, checkOut time.Time) bool {
	if r.CheckIn.After(checkOut) {
		return false
	}
	return r.CheckOut == nil || !r.CheckOut.Before(checkIn)
}
