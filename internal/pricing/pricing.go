// Package pricing turns a room's tariff table and a booking window into a
// chargeable duration and a price quote.  Everything here is pure: bad or
// missing input degrades to defaults so that a checkout page always has a
// quote to render.
package pricing

import (
	"fmt"
	"time"

	"github.com/iliyamo/hotel-booking/internal/model"
)

const (
	// baseHours is the block covered by First2HoursPrice.
	baseHours = 2
	// overnightCheckoutHour is when an overnight stay ends.
	overnightCheckoutHour = 12
)

// Quote is the priced result for one booking window.
type Quote struct {
	TotalPrice    int64      `json:"totalPrice"`
	Duration      int        `json:"duration"`
	DurationLabel string     `json:"durationLabel"`
	Breakdown     string     `json:"breakdown"`
	CheckOut      *time.Time `json:"checkOut,omitempty"` // set for overnight stays
}

// Duration returns the chargeable units for a window: hours for hourly
// stays, days for daily stays and always 1 for overnight stays.  The
// check-out wins over explicitHours when both are supplied.  Unknown modes
// yield 0.
func Duration(mode model.BookingType, checkIn time.Time, checkOut *time.Time, explicitHours int) int {
	switch mode {
	case model.BookingHourly:
		hours := 0
		switch {
		case checkOut != nil:
			hours = ceilDiv(int64(checkOut.Sub(checkIn)/time.Minute), 60)
		case explicitHours > 0:
			hours = explicitHours
		}
		if hours < 1 {
			hours = 1
		}
		return hours
	case model.BookingOvernight:
		return 1
	case model.BookingDaily:
		days := 1
		if checkOut != nil {
			days = ceilDiv(int64(checkOut.Sub(checkIn)/time.Hour), 24)
		}
		if days < 1 {
			days = 1
		}
		return days
	}
	return 0
}

// BookingDuration is Duration with the booking-creation floor applied:
// hourly stays are never recorded as shorter than two hours.
func BookingDuration(mode model.BookingType, checkIn time.Time, checkOut *time.Time, explicitHours int) int {
	d := Duration(mode, checkIn, checkOut, explicitHours)
	if mode == model.BookingHourly && d < baseHours {
		return baseHours
	}
	return d
}

// Calculate prices a booking window against p.
func Calculate(p model.Pricing, mode model.BookingType, checkIn time.Time, checkOut *time.Time, explicitHours int) Quote {
	if checkIn.IsZero() {
		return Quote{}
	}
	switch mode {
	case model.BookingHourly:
		hours := Duration(mode, checkIn, checkOut, explicitHours)
		q := Quote{Duration: hours, DurationLabel: fmt.Sprintf("%d giờ", hours)}
		if hours <= baseHours {
			q.TotalPrice = p.First2HoursPrice
			q.Breakdown = fmt.Sprintf("%sđ / 2h đầu", formatVND(p.First2HoursPrice))
			return q
		}
		extraHours := hours - baseHours
		extra := int64(extraHours) * p.ExtraHourPrice
		q.TotalPrice = p.First2HoursPrice + extra
		q.Breakdown = fmt.Sprintf("%sđ (2h đầu) + %sđ (%dh tiếp theo)",
			formatVND(p.First2HoursPrice), formatVND(extra), extraHours)
		return q

	case model.BookingOvernight:
		out := OvernightCheckout(checkIn)
		return Quote{
			TotalPrice:    p.OvernightPrice,
			Duration:      1,
			DurationLabel: "Qua đêm",
			Breakdown:     fmt.Sprintf("%sđ (22h - 12h hôm sau)", formatVND(p.OvernightPrice)),
			CheckOut:      &out,
		}

	case model.BookingDaily:
		days := Duration(mode, checkIn, checkOut, explicitHours)
		q := Quote{
			TotalPrice:    p.DailyPrice * int64(days),
			Duration:      days,
			DurationLabel: fmt.Sprintf("%d ngày", days),
			Breakdown:     fmt.Sprintf("%sđ / ngày", formatVND(p.DailyPrice)),
		}
		if days > 1 {
			q.Breakdown = fmt.Sprintf("%sđ x %d ngày", formatVND(p.DailyPrice), days)
		}
		return q
	}
	return Quote{}
}

// OvernightCheckout returns when an overnight stay starting at checkIn ends.
// Check-ins up to and including the noon hour leave at noon the same day;
// later check-ins leave at noon the next day.
func OvernightCheckout(checkIn time.Time) time.Time {
	y, m, d := checkIn.Date()
	if checkIn.Hour() > overnightCheckoutHour {
		d++
	}
	return time.Date(y, m, d, overnightCheckoutHour, 0, 0, 0, checkIn.Location())
}

// DurationText renders the order summary label, e.g. "3 giờ" or "1 đêm".
func DurationText(mode model.BookingType, n int) string {
	unit := "đêm"
	switch mode {
	case model.BookingHourly:
		unit = "giờ"
	case model.BookingDaily:
		unit = "ngày"
	}
	return fmt.Sprintf("%d %s", n, unit)
}

// ceilDiv divides rounding up for positive numerators.  Non-positive
// numerators return 0 or less and are clamped by callers.
func ceilDiv(n, d int64) int {
	if n <= 0 {
		return int(n / d)
	}
	return int((n + d - 1) / d)
}
