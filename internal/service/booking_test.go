package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/hotel-booking/internal/model"
	"github.com/iliyamo/hotel-booking/internal/payment"
	"github.com/iliyamo/hotel-booking/internal/queue"
	"github.com/iliyamo/hotel-booking/internal/repository"
)

var ict = time.FixedZone("ICT", 7*3600)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type recordingPublisher struct {
	mu        sync.Mutex
	confirmed []queue.BookingConfirmedEvent
	expired   []queue.OrderExpiredEvent
}

func (p *recordingPublisher) PublishBookingConfirmed(_ context.Context, ev queue.BookingConfirmedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.confirmed = append(p.confirmed, ev)
	return nil
}

func (p *recordingPublisher) PublishOrderExpired(_ context.Context, ev queue.OrderExpiredEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.expired = append(p.expired, ev)
	return nil
}

type fixture struct {
	svc          *BookingService
	store        *repository.MemoryStore
	reservations *repository.MemoryReservations
	orders       repository.OrderRepository
	pub          *recordingPublisher
	clock        *fakeClock
	room         *model.Room
	hook         *test.Hook
}

func newFixture(t *testing.T, stock int, opts ...func(*Options, *Deps)) *fixture {
	t.Helper()
	store := repository.NewMemoryStore()
	rooms := repository.NewMemoryRooms(store)
	room := &model.Room{
		Title:      "Deluxe",
		BranchID:   "q1",
		TotalStock: stock,
		Pricing:    model.Pricing{First2HoursPrice: 200000, ExtraHourPrice: 50000, OvernightPrice: 400000, DailyPrice: 700000},
	}
	require.NoError(t, rooms.Create(context.Background(), room))

	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	f := &fixture{
		store:        store,
		reservations: repository.NewMemoryReservations(store),
		pub:          &recordingPublisher{},
		clock:        &fakeClock{t: time.Date(2025, 5, 1, 8, 0, 0, 0, ict)},
		room:         room,
		hook:         hook,
	}
	f.orders = repository.NewMemoryOrders(store)
	d := Deps{
		Rooms:        rooms,
		Reservations: f.reservations,
		Orders:       f.orders,
		Tx:           repository.NewMemoryTx(store),
		Instructions: payment.Instructions{AccountNumber: "0123456789", BankBin: "970422", AccountName: "KHACH SAN"},
		Publisher:    f.pub,
		Log:          logrus.NewEntry(logger),
	}
	o := Options{Location: ict}
	for _, fn := range opts {
		fn(&o, &d)
	}
	f.orders = d.Orders
	f.svc = NewBookingService(d, o).WithClock(f.clock.Now)
	return f
}

func orderInput(roomID string, total int64) CreateOrderInput {
	return CreateOrderInput{
		CartItems: []CartItem{{
			Product:  CartProduct{ID: "p-1", Title: "Deluxe", PriceInVND: total, Room: Ref(roomID)},
			Quantity: 1,
		}},
		TotalAmount: total,
		BookingDetails: BookingDetails{
			CheckIn:     "2025-05-01T10:00",
			CheckOut:    "2025-05-01T13:00",
			Name:        "An",
			Phone:       "0900000000",
			Email:       "an@example.com",
			BookingType: "hourly",
		},
	}
}

func (f *fixture) unpaidCount(t *testing.T) int {
	t.Helper()
	list, err := f.orders.ListExpiredUnpaid(context.Background(), f.clock.Now().Add(time.Hour), 0)
	require.NoError(t, err)
	return len(list)
}

func TestCreateOrderEmptyCart(t *testing.T) {
	f := newFixture(t, 1)
	in := orderInput(f.room.ID, 250000)
	in.CartItems = nil

	_, err := f.svc.CreateOrder(context.Background(), in)
	require.ErrorIs(t, err, ErrEmptyCart)
	require.Equal(t, "Cart is empty", err.Error())
	require.Zero(t, f.unpaidCount(t))
}

func TestCreateOrderRequiresCustomer(t *testing.T) {
	f := newFixture(t, 1)
	in := orderInput(f.room.ID, 250000)
	in.BookingDetails.Name = ""
	_, err := f.svc.CreateOrder(context.Background(), in)
	require.ErrorIs(t, err, ErrInvalidCustomer)

	in = orderInput(f.room.ID, 250000)
	in.BookingDetails.Name, in.BookingDetails.CustomerName = "", "Binh"
	in.BookingDetails.Phone, in.BookingDetails.CustomerPhone = "", "0911111111"
	res, err := f.svc.CreateOrder(context.Background(), in)
	require.NoError(t, err)

	o, err := f.orders.GetByID(context.Background(), res.OrderID)
	require.NoError(t, err)
	require.Equal(t, "Binh", o.CustomerName)
	require.Equal(t, "0911111111", o.CustomerPhone)
}

func TestCreateOrderHoldsRoom(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()

	res, err := f.svc.CreateOrder(ctx, orderInput(f.room.ID, 250000))
	require.NoError(t, err)
	require.Equal(t, payment.TransferContent(res.OrderID), res.PaymentInfo.Content)
	require.EqualValues(t, 250000, res.PaymentInfo.Amount)
	require.Equal(t, payment.QRURL("0123456789", "970422", 250000, res.PaymentInfo.Content), res.PaymentInfo.QRURL)

	o, err := f.orders.GetByID(ctx, res.OrderID)
	require.NoError(t, err)
	require.Equal(t, model.PaymentUnpaid, o.PaymentStatus)
	require.EqualValues(t, 250000, o.Amount)
	require.Equal(t, model.CurrencyVND, o.Currency)
	require.Equal(t, res.PaymentInfo.Content, o.TransferContent)
	require.Equal(t, "3 giờ", o.BookingDuration)
	require.Equal(t, f.clock.Now(), o.CreatedAt)

	r, err := f.reservations.FindByOrderID(ctx, res.OrderID)
	require.NoError(t, err)
	require.Equal(t, model.ReservationPending, r.Status)
	require.Equal(t, f.room.ID, r.RoomID)
	require.Equal(t, "q1", r.BranchID)
	require.Equal(t, "Auto-created from Order #"+res.OrderID, r.Note)
	require.True(t, r.CheckIn.Equal(time.Date(2025, 5, 1, 10, 0, 0, 0, ict)))

	// The unit is now held for the window.
	_, err = f.svc.CreateOrder(ctx, orderInput(f.room.ID, 250000))
	require.ErrorIs(t, err, ErrUnavailable)
}

func TestCreateOrderUnavailableWritesNothing(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()
	in := time.Date(2025, 5, 1, 12, 0, 0, 0, ict)
	out := in.Add(2 * time.Hour)
	require.NoError(t, f.reservations.Create(ctx, &model.Reservation{
		RoomID: f.room.ID, CheckIn: in, CheckOut: &out, Status: model.ReservationConfirmed,
		Type: model.BookingHourly, CustomerName: "X", CustomerPhone: "1",
	}))

	_, err := f.svc.CreateOrder(ctx, orderInput(f.room.ID, 250000))
	require.ErrorIs(t, err, ErrUnavailable)
	require.Equal(t, "Rất tiếc, phòng này đã hết trong khoảng thời gian bạn chọn.", err.Error())
	require.Zero(t, f.unpaidCount(t))
}

func TestCreateOrderCancelledReservationDoesNotBlock(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()
	in := time.Date(2025, 5, 1, 9, 0, 0, 0, ict)
	out := in.Add(6 * time.Hour)
	require.NoError(t, f.reservations.Create(ctx, &model.Reservation{
		RoomID: f.room.ID, CheckIn: in, CheckOut: &out, Status: model.ReservationCancelled,
		Type: model.BookingHourly, CustomerName: "X", CustomerPhone: "1",
	}))

	_, err := f.svc.CreateOrder(ctx, orderInput(f.room.ID, 250000))
	require.NoError(t, err)
}

func TestCreateOrderPriceCheck(t *testing.T) {
	t.Run("strict rejects", func(t *testing.T) {
		f := newFixture(t, 1)
		_, err := f.svc.CreateOrder(context.Background(), orderInput(f.room.ID, 500000))
		require.ErrorIs(t, err, ErrPriceMismatch)
		require.Contains(t, err.Error(), "expected 250000, got 500000")
		require.Zero(t, f.unpaidCount(t))
	})

	t.Run("tolerance", func(t *testing.T) {
		f := newFixture(t, 1, func(o *Options, _ *Deps) { o.PriceTolerance = 1000 })
		_, err := f.svc.CreateOrder(context.Background(), orderInput(f.room.ID, 250500))
		require.NoError(t, err)
	})

	t.Run("warn keeps client total", func(t *testing.T) {
		f := newFixture(t, 1, func(o *Options, _ *Deps) { o.PriceCheck = PriceCheckWarn })
		res, err := f.svc.CreateOrder(context.Background(), orderInput(f.room.ID, 500000))
		require.NoError(t, err)

		o, err := f.orders.GetByID(context.Background(), res.OrderID)
		require.NoError(t, err)
		require.EqualValues(t, 500000, o.Amount)

		var warned bool
		for _, e := range f.hook.AllEntries() {
			if e.Level == logrus.WarnLevel && e.Message == "client total differs from server quote" {
				warned = true
			}
		}
		require.True(t, warned)
	})
}

func TestCreateOrderOvernightUsesCheckoutRule(t *testing.T) {
	f := newFixture(t, 1)
	in := orderInput(f.room.ID, 400000)
	in.BookingDetails.BookingType = "overnight"
	in.BookingDetails.CheckIn = "2025-05-01T20:00"
	in.BookingDetails.CheckOut = ""

	res, err := f.svc.CreateOrder(context.Background(), in)
	require.NoError(t, err)
	r, err := f.reservations.FindByOrderID(context.Background(), res.OrderID)
	require.NoError(t, err)
	require.True(t, r.CheckOut.Equal(time.Date(2025, 5, 2, 12, 0, 0, 0, ict)))
	require.Equal(t, model.BookingOvernight, r.Type)
}

func TestCreateOrderOvernightNoonHour(t *testing.T) {
	f := newFixture(t, 3)
	ctx := context.Background()
	overnight := func(checkIn string) CreateOrderInput {
		in := orderInput(f.room.ID, 400000)
		in.BookingDetails.BookingType = "overnight"
		in.BookingDetails.CheckIn = checkIn
		in.BookingDetails.CheckOut = ""
		return in
	}

	for _, checkIn := range []string{"2025-05-01T12:00", "2025-05-01T12:30"} {
		_, err := f.svc.CreateOrder(ctx, overnight(checkIn))
		require.ErrorIs(t, err, ErrInvalidDates, checkIn)
		require.NotErrorIs(t, err, ErrUnavailable, checkIn)
	}
	require.Zero(t, f.unpaidCount(t))

	res, err := f.svc.CreateOrder(ctx, overnight("2025-05-01T09:00"))
	require.NoError(t, err)
	r, err := f.reservations.FindByOrderID(ctx, res.OrderID)
	require.NoError(t, err)
	require.True(t, r.CheckOut.Equal(time.Date(2025, 5, 1, 12, 0, 0, 0, ict)))

	res, err = f.svc.CreateOrder(ctx, overnight("2025-05-01T13:00"))
	require.NoError(t, err)
	r, err = f.reservations.FindByOrderID(ctx, res.OrderID)
	require.NoError(t, err)
	require.True(t, r.CheckOut.Equal(time.Date(2025, 5, 2, 12, 0, 0, 0, ict)))
}

func TestCreateOrderRejectsBadDates(t *testing.T) {
	f := newFixture(t, 1)
	in := orderInput(f.room.ID, 250000)
	in.BookingDetails.CheckOut = "2025-05-01T09:00"
	_, err := f.svc.CreateOrder(context.Background(), in)
	require.ErrorIs(t, err, ErrInvalidDates)

	in = orderInput(f.room.ID, 250000)
	in.BookingDetails.CheckIn = "tomorrow"
	_, err = f.svc.CreateOrder(context.Background(), in)
	require.ErrorIs(t, err, ErrInvalidDates)
}

func TestCreateOrderWithoutRoom(t *testing.T) {
	f := newFixture(t, 1)
	in := orderInput("", 123000)
	res, err := f.svc.CreateOrder(context.Background(), in)
	require.NoError(t, err)

	_, err = f.reservations.FindByOrderID(context.Background(), res.OrderID)
	require.ErrorIs(t, err, repository.ErrNotFound)
}

func TestCreateOrderConcurrentLastUnit(t *testing.T) {
	f := newFixture(t, 1)
	const n = 12
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.CreateOrder(context.Background(), orderInput(f.room.ID, 250000))
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		require.ErrorIs(t, err, ErrUnavailable)
	}
	require.Equal(t, 1, ok)
	require.Equal(t, 1, f.unpaidCount(t))
}

func TestCreateOrderRegeneratesCollidingReference(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()
	require.NoError(t, f.orders.Create(ctx, &model.Order{
		ID: "existing-aaaaaa", Amount: 1, PaymentStatus: model.PaymentUnpaid,
		TransferContent: "DHAAAAAA", CreatedAt: f.clock.Now(),
	}))

	ids := []string{"fresh-aaaaaa", "fresh-bbbbbb"}
	f.svc.newID = func() string {
		id := ids[0]
		ids = ids[1:]
		return id
	}

	res, err := f.svc.CreateOrder(ctx, orderInput("", 1000))
	require.NoError(t, err)
	require.Equal(t, "fresh-bbbbbb", res.OrderID)
	require.Equal(t, "DHbbbbbb", res.PaymentInfo.Content)
}

func TestCreateOrderGivesUpAfterRepeatedCollisions(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()
	require.NoError(t, f.orders.Create(ctx, &model.Order{
		ID: "existing-aaaaaa", Amount: 1, PaymentStatus: model.PaymentUnpaid,
		TransferContent: "DHaaaaaa", CreatedAt: f.clock.Now(),
	}))
	f.svc.newID = func() string { return "again-aaaaaa" }

	_, err := f.svc.CreateOrder(ctx, orderInput("", 1000))
	require.Error(t, err)
	require.Equal(t, 1, f.unpaidCount(t))
}

func TestPollStatus(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()

	_, err := f.svc.PollStatus(ctx, " ")
	require.ErrorIs(t, err, ErrMissingOrderID)
	_, err = f.svc.PollStatus(ctx, "nope")
	require.ErrorIs(t, err, ErrOrderNotFound)

	created, err := f.svc.CreateOrder(ctx, orderInput(f.room.ID, 250000))
	require.NoError(t, err)

	st, err := f.svc.PollStatus(ctx, created.OrderID)
	require.NoError(t, err)
	require.Equal(t, model.PaymentUnpaid, st.Status)
	require.NotNil(t, st.PaymentInfo)
	require.Equal(t, created.PaymentInfo, *st.PaymentInfo)

	// Exactly at the window edge the order is still payable.
	f.clock.Advance(15 * time.Minute)
	st, err = f.svc.PollStatus(ctx, created.OrderID)
	require.NoError(t, err)
	require.Equal(t, model.PaymentUnpaid, st.Status)

	f.clock.Advance(time.Minute)
	st, err = f.svc.PollStatus(ctx, created.OrderID)
	require.NoError(t, err)
	require.Equal(t, model.PaymentIdled, st.Status)
	require.Nil(t, st.PaymentInfo)

	o, err := f.orders.GetByID(ctx, created.OrderID)
	require.NoError(t, err)
	require.Equal(t, model.PaymentIdled, o.PaymentStatus)

	r, err := f.reservations.FindByOrderID(ctx, created.OrderID)
	require.NoError(t, err)
	require.Equal(t, model.ReservationCancelled, r.Status)

	require.Len(t, f.pub.expired, 1)
	require.Equal(t, created.OrderID, f.pub.expired[0].OrderID)
	require.Equal(t, r.ID, f.pub.expired[0].ReservationID)

	// Idempotent.
	st, err = f.svc.PollStatus(ctx, created.OrderID)
	require.NoError(t, err)
	require.Equal(t, model.PaymentIdled, st.Status)
	require.Nil(t, st.PaymentInfo)
	require.Len(t, f.pub.expired, 1)

	b, err := json.Marshal(st)
	require.NoError(t, err)
	require.NotContains(t, string(b), "paymentInfo")

	// The released unit can be booked again.
	_, err = f.svc.CreateOrder(ctx, orderInput(f.room.ID, 250000))
	require.NoError(t, err)
}

func TestPollStatusPaidKeepsPaymentInfo(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()
	created, err := f.svc.CreateOrder(ctx, orderInput(f.room.ID, 250000))
	require.NoError(t, err)

	_, err = f.svc.ConfirmPayment(ctx, webhook("1", created.PaymentInfo.Content, 250000))
	require.NoError(t, err)

	f.clock.Advance(time.Hour)
	st, err := f.svc.PollStatus(ctx, created.OrderID)
	require.NoError(t, err)
	require.Equal(t, model.PaymentPaid, st.Status)
	require.NotNil(t, st.PaymentInfo)
}

func TestExpireStale(t *testing.T) {
	f := newFixture(t, 3)
	ctx := context.Background()

	a, err := f.svc.CreateOrder(ctx, orderInput(f.room.ID, 250000))
	require.NoError(t, err)
	b, err := f.svc.CreateOrder(ctx, orderInput(f.room.ID, 250000))
	require.NoError(t, err)
	f.clock.Advance(10 * time.Minute)
	c, err := f.svc.CreateOrder(ctx, orderInput(f.room.ID, 250000))
	require.NoError(t, err)
	f.clock.Advance(6 * time.Minute)

	n, err := f.svc.ExpireStale(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, n)

	for _, id := range []string{a.OrderID, b.OrderID} {
		o, err := f.orders.GetByID(ctx, id)
		require.NoError(t, err)
		require.Equal(t, model.PaymentIdled, o.PaymentStatus)
		r, err := f.reservations.FindByOrderID(ctx, id)
		require.NoError(t, err)
		require.Equal(t, model.ReservationCancelled, r.Status)
	}
	o, err := f.orders.GetByID(ctx, c.OrderID)
	require.NoError(t, err)
	require.Equal(t, model.PaymentUnpaid, o.PaymentStatus)

	n, err = f.svc.ExpireStale(ctx)
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestExpireStaleBatches(t *testing.T) {
	f := newFixture(t, 10, func(o *Options, _ *Deps) { o.SweepBatch = 2 })
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		_, err := f.svc.CreateOrder(ctx, orderInput("", 1000))
		require.NoError(t, err)
	}
	f.clock.Advance(20 * time.Minute)

	n, err := f.svc.ExpireStale(ctx)
	require.NoError(t, err)
	require.Equal(t, 5, n)
	require.Zero(t, f.unpaidCount(t))
}

func TestRunSweeperStopsWithContext(t *testing.T) {
	f := newFixture(t, 1)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		f.svc.RunSweeper(ctx, 5*time.Millisecond)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}

func TestRefDecoding(t *testing.T) {
	var in CreateOrderInput
	require.NoError(t, json.Unmarshal([]byte(`{
		"cartItems":[{"product":{"id":7,"title":"Deluxe","priceInVND":250000,"room":{"id":"room-1"},"branch":3},"quantity":"2"}],
		"totalAmount":250000,
		"bookingDetails":{"customerName":"An","customerPhone":"09","duration":"3"}
	}`), &in))
	p := in.CartItems[0].Product
	require.Equal(t, Ref("7"), p.ID)
	require.Equal(t, Ref("room-1"), p.Room)
	require.Equal(t, Ref("3"), p.Branch)
	require.Equal(t, Count(2), in.CartItems[0].Quantity)
	require.Equal(t, Count(3), in.BookingDetails.Duration)

	var plain CreateOrderInput
	require.NoError(t, json.Unmarshal([]byte(`{"cartItems":[{"product":{"room":"room-2"}}]}`), &plain))
	require.Equal(t, Ref("room-2"), plain.CartItems[0].Product.Room)

	var none CreateOrderInput
	require.NoError(t, json.Unmarshal([]byte(`{"cartItems":[{"product":{"room":null}}]}`), &none))
	require.Empty(t, none.CartItems[0].Product.Room)
}

func TestGetOrder(t *testing.T) {
	f := newFixture(t, 1)
	_, err := f.svc.GetOrder(context.Background(), "")
	require.ErrorIs(t, err, ErrMissingOrderID)
	_, err = f.svc.GetOrder(context.Background(), "missing")
	require.True(t, errors.Is(err, ErrOrderNotFound))
}

func TestQuote(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()
	q, err := f.svc.Quote(ctx, f.room.ID, model.BookingHourly, "2025-05-01T10:00", "2025-05-01T11:30", 0)
	require.NoError(t, err)
	require.EqualValues(t, 200000, q.TotalPrice)
	require.Equal(t, 2, q.Duration)

	q, err = f.svc.Quote(ctx, f.room.ID, model.BookingDaily, "2025-05-01T10:00", "2025-05-02T11:00", 0)
	require.NoError(t, err)
	require.EqualValues(t, 1400000, q.TotalPrice)

	_, err = f.svc.Quote(ctx, f.room.ID, "weekly", "2025-05-01T10:00", "", 0)
	require.ErrorIs(t, err, ErrInvalidBookingType)
	_, err = f.svc.Quote(ctx, "missing", model.BookingHourly, "2025-05-01T10:00", "", 0)
	require.ErrorIs(t, err, ErrRoomNotFound)
}
