package model

import "time"

// Pricing is the per-room tariff table.  All amounts are whole VND.
//
// Fields:
//  First2HoursPrice – flat charge covering the first two hours of an hourly stay.
//  ExtraHourPrice   – charge for every started hour after the first two.
//  OvernightPrice   – flat charge for an overnight stay (22h to 12h next day).
//  DailyPrice       – charge per started 24h period.
type Pricing struct {
	First2HoursPrice int64 `json:"first2HoursPrice"` // rooms.first_2_hours_price
	ExtraHourPrice   int64 `json:"extraHourPrice"`   // rooms.extra_hour_price
	OvernightPrice   int64 `json:"overnightPrice"`   // rooms.overnight_price
	DailyPrice       int64 `json:"dailyPrice"`       // rooms.daily_price
}

// Room is a bookable room type at a branch.  TotalStock is the number of
// identical physical rooms behind this listing; a booking window is free as
// long as fewer than TotalStock holding reservations overlap it.
type Room struct {
	ID         string    `json:"id"`         // rooms.id
	Title      string    `json:"title"`      // rooms.title
	BranchID   string    `json:"branchId"`   // rooms.branch_id
	TotalStock int       `json:"totalStock"` // rooms.total_stock
	Pricing    Pricing   `json:"pricing"`
	CreatedAt  time.Time `json:"createdAt"` // rooms.created_at
	UpdatedAt  time.Time `json:"updatedAt"` // rooms.updated_at
}

// EffectiveStock returns the stock used for availability.  Rooms saved
// without a stock count are treated as a single unit.
func (r Room) EffectiveStock() int {
	if r.TotalStock < 1 {
		return 1
	}
	return r.TotalStock
}
