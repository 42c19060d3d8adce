package service

import "errors"

// Errors returned by BookingService.  Messages are shown to customers as is.
var (
	ErrEmptyCart           = errors.New("Cart is empty")
	ErrInvalidCustomer     = errors.New("Customer name and phone are required")
	ErrInvalidDates        = errors.New("Invalid check-in or check-out")
	ErrInvalidAmount       = errors.New("Invalid total amount")
	ErrUnavailable         = errors.New("Rất tiếc, phòng này đã hết trong khoảng thời gian bạn chọn.")
	ErrPriceMismatch       = errors.New("Total amount does not match the room price")
	ErrMissingOrderID      = errors.New("Missing orderId")
	ErrOrderNotFound       = errors.New("Order not found")
	ErrRoomNotFound        = errors.New("Room not found")
	ErrInvalidWebhook      = errors.New("Invalid payload")
	ErrInvalidBookingType  = errors.New("Invalid booking type")
	ErrInvalidTransition   = errors.New("Status change not allowed")
	ErrReservationNotFound = errors.New("Reservation not found")
)
