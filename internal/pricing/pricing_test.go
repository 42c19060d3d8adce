package pricing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/iliyamo/hotel-booking/internal/model"
)

var tariff = model.Pricing{
	First2HoursPrice: 200000,
	ExtraHourPrice:   50000,
	OvernightPrice:   350000,
	DailyPrice:       380000,
}

func at(hour, min int) time.Time {
	return time.Date(2025, 3, 10, hour, min, 0, 0, time.UTC)
}

func ptr(t time.Time) *time.Time { return &t }

func TestDurationHourlyRoundsUp(t *testing.T) {
	in := at(10, 0)
	require.Equal(t, 2, Duration(model.BookingHourly, in, ptr(in.Add(90*time.Minute)), 0))
	require.Equal(t, 1, Duration(model.BookingHourly, in, ptr(in.Add(30*time.Minute)), 0))
	require.Equal(t, 3, Duration(model.BookingHourly, in, ptr(in.Add(3*time.Hour)), 0))
}

func TestDurationHourlyFallbacks(t *testing.T) {
	in := at(10, 0)
	require.Equal(t, 4, Duration(model.BookingHourly, in, nil, 4))
	require.Equal(t, 1, Duration(model.BookingHourly, in, nil, 0))
	// check-out wins over the explicit value
	require.Equal(t, 2, Duration(model.BookingHourly, in, ptr(in.Add(2*time.Hour)), 5))
	// reversed window degrades to the minimum
	require.Equal(t, 1, Duration(model.BookingHourly, in, ptr(in.Add(-3*time.Hour)), 0))
}

func TestDurationDaily(t *testing.T) {
	in := at(12, 0)
	require.Equal(t, 2, Duration(model.BookingDaily, in, ptr(in.Add(25*time.Hour)), 0))
	require.Equal(t, 1, Duration(model.BookingDaily, in, ptr(in.Add(24*time.Hour)), 0))
	require.Equal(t, 1, Duration(model.BookingDaily, in, nil, 0))
	require.Equal(t, 1, Duration(model.BookingDaily, in, ptr(in.Add(time.Hour)), 0))
}

func TestDurationOvernightIgnoresCheckout(t *testing.T) {
	in := at(21, 0)
	require.Equal(t, 1, Duration(model.BookingOvernight, in, nil, 0))
	require.Equal(t, 1, Duration(model.BookingOvernight, in, ptr(in.Add(72*time.Hour)), 9))
}

func TestDurationUnknownMode(t *testing.T) {
	require.Equal(t, 0, Duration("weekly", at(10, 0), nil, 3))
}

func TestBookingDurationHourlyFloor(t *testing.T) {
	in := at(10, 0)
	require.Equal(t, 2, BookingDuration(model.BookingHourly, in, ptr(in.Add(30*time.Minute)), 0))
	require.Equal(t, 5, BookingDuration(model.BookingHourly, in, ptr(in.Add(5*time.Hour)), 0))
	require.Equal(t, 1, BookingDuration(model.BookingDaily, in, nil, 0))
}

func TestCalculateHourlyTiers(t *testing.T) {
	in := at(10, 0)

	q := Calculate(tariff, model.BookingHourly, in, nil, 1)
	require.EqualValues(t, 200000, q.TotalPrice, "below two hours pays the full base")
	require.Equal(t, "1 giờ", q.DurationLabel)
	require.Equal(t, formatVND(200000)+"đ / 2h đầu", q.Breakdown)

	q = Calculate(tariff, model.BookingHourly, in, ptr(in.Add(2*time.Hour)), 0)
	require.EqualValues(t, 200000, q.TotalPrice, "exactly two hours has no extra charge")

	q = Calculate(tariff, model.BookingHourly, in, nil, 3)
	require.EqualValues(t, 250000, q.TotalPrice)
	require.Equal(t, "3 giờ", q.DurationLabel)
	require.Equal(t, formatVND(200000)+"đ (2h đầu) + "+formatVND(50000)+"đ (1h tiếp theo)", q.Breakdown)
}

func TestCalculateHourlyMonotonic(t *testing.T) {
	in := at(8, 0)
	prev := int64(-1)
	for d := 1; d <= 24; d++ {
		q := Calculate(tariff, model.BookingHourly, in, nil, d)
		want := tariff.First2HoursPrice
		if d > 2 {
			want += int64(d-2) * tariff.ExtraHourPrice
		}
		require.Equal(t, want, q.TotalPrice, "duration %d", d)
		require.GreaterOrEqual(t, q.TotalPrice, prev)
		prev = q.TotalPrice
	}
}

func TestCalculateOvernight(t *testing.T) {
	in := at(22, 0)
	q := Calculate(tariff, model.BookingOvernight, in, ptr(in.Add(48*time.Hour)), 0)
	require.EqualValues(t, 350000, q.TotalPrice)
	require.Equal(t, 1, q.Duration)
	require.Equal(t, "Qua đêm", q.DurationLabel)
	require.Equal(t, formatVND(350000)+"đ (22h - 12h hôm sau)", q.Breakdown)
	require.NotNil(t, q.CheckOut)
	require.Equal(t, time.Date(2025, 3, 11, 12, 0, 0, 0, time.UTC), *q.CheckOut)
}

func TestCalculateDaily(t *testing.T) {
	in := at(12, 0)

	q := Calculate(tariff, model.BookingDaily, in, ptr(in.Add(24*time.Hour)), 0)
	require.EqualValues(t, 380000, q.TotalPrice)
	require.Equal(t, "1 ngày", q.DurationLabel)
	require.Equal(t, formatVND(380000)+"đ / ngày", q.Breakdown)

	q = Calculate(tariff, model.BookingDaily, in, ptr(in.Add(50*time.Hour)), 0)
	require.EqualValues(t, 3*380000, q.TotalPrice)
	require.Equal(t, "3 ngày", q.DurationLabel)
	require.Equal(t, formatVND(380000)+"đ x 3 ngày", q.Breakdown)
}

func TestCalculateDegradesToZero(t *testing.T) {
	require.Equal(t, Quote{}, Calculate(tariff, "monthly", at(10, 0), nil, 0))
	require.Equal(t, Quote{}, Calculate(tariff, model.BookingHourly, time.Time{}, nil, 3))

	q := Calculate(model.Pricing{}, model.BookingHourly, at(10, 0), nil, 5)
	require.Zero(t, q.TotalPrice)
	require.Equal(t, "5 giờ", q.DurationLabel)
}

func TestOvernightCheckout(t *testing.T) {
	require.Equal(t, at(12, 0), OvernightCheckout(at(9, 0)))
	require.Equal(t, at(12, 0), OvernightCheckout(at(12, 45)))
	require.Equal(t, time.Date(2025, 3, 11, 12, 0, 0, 0, time.UTC), OvernightCheckout(at(20, 0)))

	eom := time.Date(2025, 3, 31, 23, 0, 0, 0, time.UTC)
	require.Equal(t, time.Date(2025, 4, 1, 12, 0, 0, 0, time.UTC), OvernightCheckout(eom))
}

func TestDurationText(t *testing.T) {
	require.Equal(t, "3 giờ", DurationText(model.BookingHourly, 3))
	require.Equal(t, "2 ngày", DurationText(model.BookingDaily, 2))
	require.Equal(t, "1 đêm", DurationText(model.BookingOvernight, 1))
}
