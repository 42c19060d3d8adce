// Package service implements the order and payment lifecycle: creating an
// order together with the reservation that holds inventory, reporting and
// expiring unpaid orders, matching incoming bank transfers, and the staff
// operations on reservations.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/hotel-booking/internal/availability"
	"github.com/iliyamo/hotel-booking/internal/model"
	"github.com/iliyamo/hotel-booking/internal/payment"
	"github.com/iliyamo/hotel-booking/internal/pricing"
	"github.com/iliyamo/hotel-booking/internal/queue"
	"github.com/iliyamo/hotel-booking/internal/repository"
)

// Publisher emits lifecycle events.  Implementations are best effort.
type Publisher interface {
	PublishBookingConfirmed(ctx context.Context, ev queue.BookingConfirmedEvent) error
	PublishOrderExpired(ctx context.Context, ev queue.OrderExpiredEvent) error
}

// PriceCheck selects how a client total that differs from the server
// quote is handled.
type PriceCheck string

const (
	PriceCheckStrict PriceCheck = "strict"
	PriceCheckWarn   PriceCheck = "warn"
)

const (
	defaultPaymentWindow = 15 * time.Minute
	defaultSweepBatch    = 100
	// maxReferenceAttempts bounds id regeneration when the derived transfer
	// content is already held by another unpaid order.
	maxReferenceAttempts = 5
	defaultBranchID      = "1"
)

// Options tune the lifecycle.
type Options struct {
	PaymentWindow  time.Duration
	PriceCheck     PriceCheck
	PriceTolerance int64
	Location       *time.Location
	SweepBatch     int
}

// Deps are the collaborators of BookingService.
type Deps struct {
	Rooms        repository.RoomRepository
	Reservations repository.ReservationRepository
	Orders       repository.OrderRepository
	Tx           repository.TxManager
	Checker      *availability.Checker
	Instructions payment.Instructions
	Publisher    Publisher
	Log          *logrus.Entry
}

type BookingService struct {
	rooms        repository.RoomRepository
	reservations repository.ReservationRepository
	orders       repository.OrderRepository
	tx           repository.TxManager
	checker      *availability.Checker
	instructions payment.Instructions
	publisher    Publisher
	log          *logrus.Entry
	opts         Options

	now   func() time.Time
	newID func() string
}

// NewBookingService wires d with opts, filling unset options with defaults.
func NewBookingService(d Deps, opts Options) *BookingService {
	if opts.PaymentWindow <= 0 {
		opts.PaymentWindow = defaultPaymentWindow
	}
	if opts.PriceCheck != PriceCheckWarn {
		opts.PriceCheck = PriceCheckStrict
	}
	if opts.PriceTolerance < 0 {
		opts.PriceTolerance = 0
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.SweepBatch <= 0 {
		opts.SweepBatch = defaultSweepBatch
	}
	if d.Log == nil {
		d.Log = logrus.NewEntry(logrus.StandardLogger())
	}
	if d.Publisher == nil {
		d.Publisher = queue.NopPublisher{Log: d.Log}
	}
	if d.Checker == nil {
		d.Checker = availability.NewChecker(d.Rooms, d.Reservations, opts.Location, d.Log)
	}
	return &BookingService{
		rooms:        d.Rooms,
		reservations: d.Reservations,
		orders:       d.Orders,
		tx:           d.Tx,
		checker:      d.Checker,
		instructions: d.Instructions,
		publisher:    d.Publisher,
		log:          d.Log,
		opts:         opts,
		now:          func() time.Time { return time.Now().UTC() },
		newID:        uuid.NewString,
	}
}

// WithClock replaces the time source.
func (s *BookingService) WithClock(now func() time.Time) *BookingService {
	s.now = now
	return s
}

// PaymentWindow is how long an order may stay unpaid.
func (s *BookingService) PaymentWindow() time.Duration { return s.opts.PaymentWindow }

// CreateOrder validates the cart, re-checks availability, and persists an
// unpaid order with the pending reservation that holds the room while the
// guest pays.  Both writes happen in one transaction.
func (s *BookingService) CreateOrder(ctx context.Context, in CreateOrderInput) (*CreateOrderResult, error) {
	if len(in.CartItems) == 0 {
		return nil, ErrEmptyCart
	}
	d := in.BookingDetails
	name, phone, email := d.customer()
	if name == "" || phone == "" {
		return nil, ErrInvalidCustomer
	}
	if in.TotalAmount <= 0 {
		return nil, ErrInvalidAmount
	}
	mode := d.mode()
	if !mode.Valid() {
		return nil, ErrInvalidBookingType
	}

	product := in.CartItems[0].Product
	roomID := string(product.Room)
	log := s.log.WithField("room_id", roomID)

	order := &model.Order{
		Amount:        in.TotalAmount,
		Currency:      model.CurrencyVND,
		Items:         orderItems(in.CartItems),
		PaymentStatus: model.PaymentUnpaid,
		CustomerName:  name,
		CustomerPhone: phone,
		CustomerEmail: email,
		Note:          strings.TrimSpace(d.Note),
		RoomID:        roomID,
		BookingRoom:   product.Title,
		CheckIn:       d.CheckIn,
		CheckOut:      d.CheckOut,
	}
	if d.Duration > 0 {
		order.BookingDuration = pricing.DurationText(mode, int(d.Duration))
	}

	var res *model.Reservation
	if roomID != "" {
		checkIn, checkOut, err := s.window(mode, d.CheckIn, d.CheckOut, int(d.Duration))
		if err != nil {
			return nil, err
		}
		room, err := s.rooms.GetByID(ctx, roomID)
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrRoomNotFound
		}
		if err != nil {
			return nil, fmt.Errorf("load room: %w", err)
		}
		if !s.checker.IsAvailable(ctx, roomID, checkIn.Format(time.RFC3339), checkOut.Format(time.RFC3339)) {
			return nil, ErrUnavailable
		}
		if err := s.checkPrice(log, room, mode, checkIn, checkOut, int(d.Duration), in.TotalAmount); err != nil {
			return nil, err
		}

		if order.BookingRoom == "" {
			order.BookingRoom = room.Title
		}
		order.BookingDuration = pricing.DurationText(mode, pricing.BookingDuration(mode, checkIn, &checkOut, int(d.Duration)))
		order.CheckIn = checkIn.Format(time.RFC3339)
		order.CheckOut = checkOut.Format(time.RFC3339)

		branch := string(product.Branch)
		if branch == "" {
			branch = room.BranchID
		}
		if branch == "" {
			branch = defaultBranchID
		}
		res = &model.Reservation{
			ID:            s.newID(),
			RoomID:        roomID,
			BranchID:      branch,
			CheckIn:       checkIn,
			CheckOut:      &checkOut,
			Status:        model.ReservationPending,
			Type:          mode,
			CustomerName:  name,
			CustomerPhone: phone,
			CustomerEmail: email,
		}
	}

	if err := s.assignReference(ctx, order); err != nil {
		return nil, err
	}
	now := s.now()
	order.CreatedAt = now

	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		if err := s.orders.Create(ctx, order); err != nil {
			return fmt.Errorf("insert order: %w", err)
		}
		if res == nil {
			return nil
		}
		res.OrderID = order.ID
		res.Note = "Auto-created from Order #" + order.ID
		res.CreatedAt = now
		if err := s.reservations.ReserveIfAvailable(ctx, res); err != nil {
			if errors.Is(err, repository.ErrSoldOut) {
				return ErrUnavailable
			}
			return fmt.Errorf("hold room: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	fields := logrus.Fields{"order_id": order.ID, "amount": order.Amount, "transfer_content": order.TransferContent}
	if res != nil {
		fields["reservation_id"] = res.ID
	}
	log.WithFields(fields).Info("order created")

	return &CreateOrderResult{
		OrderID:     order.ID,
		PaymentInfo: s.instructions.For(order.ID, order.Amount),
	}, nil
}

func orderItems(items []CartItem) []model.OrderItem {
	out := make([]model.OrderItem, 0, len(items))
	for _, it := range items {
		q := int(it.Quantity)
		if q < 1 {
			q = 1
		}
		out = append(out, model.OrderItem{
			ProductID: string(it.Product.ID),
			Title:     it.Product.Title,
			Quantity:  q,
			Price:     it.Product.PriceInVND,
		})
	}
	return out
}

// window parses the stay.  Overnight stays always end at the overnight
// checkout and are rejected when that checkout is not after check-in.
// Other modes derive a missing check-out from the duration.
func (s *BookingService) window(mode model.BookingType, inStr, outStr string, hours int) (time.Time, time.Time, error) {
	checkIn, err := availability.ParseTime(inStr, s.opts.Location)
	if err != nil {
		return time.Time{}, time.Time{}, ErrInvalidDates
	}
	if mode == model.BookingOvernight {
		// A check-in during the noon hour maps to a checkout at or before it.
		checkOut := pricing.OvernightCheckout(checkIn.In(s.opts.Location))
		if !checkOut.After(checkIn) {
			return time.Time{}, time.Time{}, fmt.Errorf("%w: overnight stays cannot start between 12:00 and 13:00", ErrInvalidDates)
		}
		return checkIn, checkOut, nil
	}
	if strings.TrimSpace(outStr) == "" {
		switch mode {
		case model.BookingHourly:
			h := pricing.BookingDuration(mode, checkIn, nil, hours)
			return checkIn, checkIn.Add(time.Duration(h) * time.Hour), nil
		default:
			return checkIn, checkIn.Add(24 * time.Hour), nil
		}
	}
	checkOut, err := availability.ParseTime(outStr, s.opts.Location)
	if err != nil || !checkOut.After(checkIn) {
		return time.Time{}, time.Time{}, ErrInvalidDates
	}
	return checkIn, checkOut, nil
}

// checkPrice compares the client total with the server quote.
func (s *BookingService) checkPrice(log *logrus.Entry, room *model.Room, mode model.BookingType, checkIn, checkOut time.Time, hours int, total int64) error {
	q := pricing.Calculate(room.Pricing, mode, checkIn.In(s.opts.Location), &checkOut, hours)
	diff := total - q.TotalPrice
	if diff < 0 {
		diff = -diff
	}
	if diff <= s.opts.PriceTolerance {
		return nil
	}
	entry := log.WithFields(logrus.Fields{"client_total": total, "server_total": q.TotalPrice, "mode": mode})
	if s.opts.PriceCheck == PriceCheckWarn {
		entry.Warn("client total differs from server quote")
		return nil
	}
	entry.Info("order rejected: price mismatch")
	return fmt.Errorf("%w: expected %d, got %d", ErrPriceMismatch, q.TotalPrice, total)
}

// assignReference picks an order id whose transfer content no other unpaid
// order holds.
func (s *BookingService) assignReference(ctx context.Context, o *model.Order) error {
	for i := 0; i < maxReferenceAttempts; i++ {
		id := s.newID()
		content := payment.TransferContent(id)
		inUse, err := s.orders.TransferContentInUse(ctx, content)
		if err != nil {
			return fmt.Errorf("check transfer content: %w", err)
		}
		if !inUse {
			o.ID, o.TransferContent = id, content
			return nil
		}
		s.log.WithField("transfer_content", content).Warn("transfer content collision, regenerating order id")
	}
	return errors.New("could not allocate a unique transfer reference")
}

// PollStatus reports the payment status of an order, expiring it first
// when the payment window has passed.
func (s *BookingService) PollStatus(ctx context.Context, orderID string) (*StatusResult, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return nil, ErrMissingOrderID
	}
	o, err := s.getOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.PaymentStatus == model.PaymentUnpaid && s.now().Sub(o.CreatedAt) > s.opts.PaymentWindow {
		idled, err := s.expire(ctx, o)
		if err != nil {
			return nil, err
		}
		if idled {
			return &StatusResult{Status: model.PaymentIdled, CreatedAt: o.CreatedAt}, nil
		}
		// Lost the race to a webhook or the sweeper; report what won.
		if o, err = s.getOrder(ctx, orderID); err != nil {
			return nil, err
		}
	}
	return s.status(o), nil
}

func (s *BookingService) status(o *model.Order) *StatusResult {
	out := &StatusResult{Status: o.PaymentStatus, CreatedAt: o.CreatedAt}
	// An idled order can no longer be paid, so it gets no instructions.
	if o.PaymentStatus != model.PaymentIdled {
		info := s.instructions.For(o.ID, o.Amount)
		out.PaymentInfo = &info
	}
	return out
}

func (s *BookingService) getOrder(ctx context.Context, id string) (*model.Order, error) {
	o, err := s.orders.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load order: %w", err)
	}
	return o, nil
}

// GetOrder returns an order for staff.
func (s *BookingService) GetOrder(ctx context.Context, id string) (*model.Order, error) {
	if strings.TrimSpace(id) == "" {
		return nil, ErrMissingOrderID
	}
	return s.getOrder(ctx, id)
}

// expire idles an unpaid order and releases its pending reservation.  It
// reports false when the order had already left unpaid.
func (s *BookingService) expire(ctx context.Context, o *model.Order) (bool, error) {
	now := s.now()
	var idled bool
	var reservationID string
	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		ok, err := s.orders.MarkIdled(ctx, o.ID, now)
		if err != nil {
			return fmt.Errorf("idle order: %w", err)
		}
		if !ok {
			return nil
		}
		idled = true
		res, err := s.reservations.FindByOrderID(ctx, o.ID)
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("find reservation: %w", err)
		}
		reservationID = res.ID
		if _, err := s.reservations.TransitionStatus(ctx, res.ID,
			[]model.ReservationStatus{model.ReservationPending}, model.ReservationCancelled); err != nil {
			return fmt.Errorf("release reservation: %w", err)
		}
		return nil
	})
	if err != nil || !idled {
		return false, err
	}

	s.log.WithFields(logrus.Fields{"order_id": o.ID, "reservation_id": reservationID}).Info("order expired")
	if err := s.publisher.PublishOrderExpired(ctx, queue.OrderExpiredEvent{
		OrderID:       o.ID,
		ReservationID: reservationID,
		ExpiredAt:     now.Format(time.RFC3339),
	}); err != nil {
		s.log.WithError(err).WithField("order_id", o.ID).Warn("publish order.expired failed")
	}
	return true, nil
}

// ExpireStale idles every unpaid order older than the payment window and
// returns how many it expired.
func (s *BookingService) ExpireStale(ctx context.Context) (int, error) {
	cutoff := s.now().Add(-s.opts.PaymentWindow)
	total := 0
	for {
		batch, err := s.orders.ListExpiredUnpaid(ctx, cutoff, s.opts.SweepBatch)
		if err != nil {
			return total, fmt.Errorf("list expired orders: %w", err)
		}
		n := 0
		for i := range batch {
			idled, err := s.expire(ctx, &batch[i])
			if err != nil {
				s.log.WithError(err).WithField("order_id", batch[i].ID).Warn("sweep: expire failed")
				continue
			}
			if idled {
				n++
			}
		}
		total += n
		if len(batch) < s.opts.SweepBatch || n == 0 {
			return total, nil
		}
	}
}

// RunSweeper calls ExpireStale every interval until ctx is done.
func (s *BookingService) RunSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			n, err := s.ExpireStale(ctx)
			if err != nil && ctx.Err() == nil {
				s.log.WithError(err).Warn("sweep failed")
				continue
			}
			if n > 0 {
				s.log.WithField("expired", n).Info("sweep expired unpaid orders")
			}
		}
	}
}

// Quote prices a stay in roomID.
func (s *BookingService) Quote(ctx context.Context, roomID string, mode model.BookingType, checkIn string, checkOut string, hours int) (*pricing.Quote, error) {
	if !mode.Valid() {
		return nil, ErrInvalidBookingType
	}
	room, err := s.rooms.GetByID(ctx, roomID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrRoomNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load room: %w", err)
	}
	in, err := availability.ParseTime(checkIn, s.opts.Location)
	if err != nil {
		return nil, ErrInvalidDates
	}
	var out *time.Time
	if strings.TrimSpace(checkOut) != "" {
		t, err := availability.ParseTime(checkOut, s.opts.Location)
		if err != nil {
			return nil, ErrInvalidDates
		}
		out = &t
	}
	q := pricing.Calculate(room.Pricing, mode, in.In(s.opts.Location), out, hours)
	return &q, nil
}
