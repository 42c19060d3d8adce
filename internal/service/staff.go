package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/hotel-booking/internal/availability"
	"github.com/iliyamo/hotel-booking/internal/model"
	"github.com/iliyamo/hotel-booking/internal/pricing"
	"github.com/iliyamo/hotel-booking/internal/queue"
	"github.com/iliyamo/hotel-booking/internal/repository"
)

// CreateReservation records a reservation entered by staff.  With a room
// the unit is held atomically; with only a room type the reservation is
// stored as a request.  An unpaid order for the quoted price is then
// created on a best-effort basis so the guest can pay by transfer.
func (s *BookingService) CreateReservation(ctx context.Context, in StaffReservationInput) (*StaffReservationResult, error) {
	name, phone := strings.TrimSpace(in.CustomerName), strings.TrimSpace(in.CustomerPhone)
	if name == "" || phone == "" {
		return nil, ErrInvalidCustomer
	}
	mode := model.BookingType(strings.ToLower(strings.TrimSpace(in.Type)))
	if !mode.Valid() {
		return nil, ErrInvalidBookingType
	}

	res := &model.Reservation{
		ID:            s.newID(),
		RoomID:        strings.TrimSpace(in.RoomID),
		BranchID:      strings.TrimSpace(in.BranchID),
		RoomType:      strings.TrimSpace(in.RoomType),
		Status:        model.ReservationPending,
		Type:          mode,
		CustomerName:  name,
		CustomerPhone: phone,
		CustomerEmail: strings.TrimSpace(in.CustomerEmail),
		Note:          strings.TrimSpace(in.Note),
		CreatedAt:     s.now(),
	}

	if res.RoomID == "" {
		checkIn, err := availability.ParseTime(in.CheckIn, s.opts.Location)
		if err != nil {
			return nil, ErrInvalidDates
		}
		res.CheckIn = checkIn
		if strings.TrimSpace(in.CheckOut) != "" {
			out, err := availability.ParseTime(in.CheckOut, s.opts.Location)
			if err != nil || !out.After(checkIn) {
				return nil, ErrInvalidDates
			}
			res.CheckOut = &out
		}
		if res.BranchID == "" {
			res.BranchID = defaultBranchID
		}
		if err := s.reservations.Create(ctx, res); err != nil {
			return nil, fmt.Errorf("insert reservation: %w", err)
		}
		s.log.WithField("reservation_id", res.ID).Info("staff reservation recorded without room")
		return &StaffReservationResult{Reservation: res}, nil
	}

	checkIn, checkOut, err := s.window(mode, in.CheckIn, in.CheckOut, in.Hours)
	if err != nil {
		return nil, err
	}
	res.CheckIn, res.CheckOut = checkIn, &checkOut
	if res.BranchID == "" {
		res.BranchID = defaultBranchID
	}

	if err := s.reservations.ReserveIfAvailable(ctx, res); err != nil {
		switch {
		case errors.Is(err, repository.ErrSoldOut):
			return nil, ErrUnavailable
		case errors.Is(err, repository.ErrNotFound):
			return nil, ErrRoomNotFound
		}
		return nil, fmt.Errorf("hold room: %w", err)
	}
	log := s.log.WithFields(logrus.Fields{"reservation_id": res.ID, "room_id": res.RoomID})
	log.Info("staff reservation created")

	out := &StaffReservationResult{Reservation: res}
	order, err := s.autoOrder(ctx, res, in.Hours)
	if err != nil {
		log.WithError(err).Warn("auto order for staff reservation failed; reservation kept")
		return out, nil
	}
	res.OrderID = order.ID
	info := s.instructions.For(order.ID, order.Amount)
	out.Order, out.PaymentInfo = order, &info
	return out, nil
}

// autoOrder creates the unpaid order for a staff reservation and links it.
func (s *BookingService) autoOrder(ctx context.Context, res *model.Reservation, hours int) (*model.Order, error) {
	room, err := s.rooms.GetByID(ctx, res.RoomID)
	if err != nil {
		return nil, fmt.Errorf("load room: %w", err)
	}
	q := pricing.Calculate(room.Pricing, res.Type, res.CheckIn.In(s.opts.Location), res.CheckOut, hours)
	if q.TotalPrice <= 0 {
		return nil, ErrInvalidAmount
	}
	order := &model.Order{
		Amount:          q.TotalPrice,
		Currency:        model.CurrencyVND,
		Items:           []model.OrderItem{{ProductID: room.ID, Title: room.Title, Quantity: 1, Price: q.TotalPrice}},
		PaymentStatus:   model.PaymentUnpaid,
		CustomerName:    res.CustomerName,
		CustomerPhone:   res.CustomerPhone,
		CustomerEmail:   res.CustomerEmail,
		Note:            res.Note,
		RoomID:          room.ID,
		BookingRoom:     room.Title,
		BookingDuration: pricing.DurationText(res.Type, q.Duration),
		CheckIn:         res.CheckIn.Format(time.RFC3339),
	}
	if res.CheckOut != nil {
		order.CheckOut = res.CheckOut.Format(time.RFC3339)
	}
	if err := s.assignReference(ctx, order); err != nil {
		return nil, err
	}
	order.CreatedAt = s.now()
	err = s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		if err := s.orders.Create(ctx, order); err != nil {
			return fmt.Errorf("insert order: %w", err)
		}
		return s.reservations.AttachOrder(ctx, res.ID, order.ID)
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

// UpdateReservationStatus moves a reservation along its lifecycle.
// Confirming a reservation announces it on the broker.
func (s *BookingService) UpdateReservationStatus(ctx context.Context, id string, next model.ReservationStatus) (*model.Reservation, error) {
	if !next.Valid() {
		return nil, ErrInvalidTransition
	}
	res, err := s.reservations.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrReservationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load reservation: %w", err)
	}
	if !res.Status.CanTransition(next) {
		return nil, ErrInvalidTransition
	}
	ok, err := s.reservations.TransitionStatus(ctx, id, []model.ReservationStatus{res.Status}, next)
	if err != nil {
		return nil, fmt.Errorf("update reservation: %w", err)
	}
	if !ok {
		// Someone else moved it first.
		return nil, ErrInvalidTransition
	}
	res.Status = next
	res.UpdatedAt = s.now()
	s.log.WithFields(logrus.Fields{"reservation_id": id, "status": next}).Info("reservation status changed")

	if next == model.ReservationConfirmed {
		s.announceConfirmed(ctx, res)
	}
	return res, nil
}

func (s *BookingService) announceConfirmed(ctx context.Context, res *model.Reservation) {
	ev := queue.BookingConfirmedEvent{
		OrderID:       res.OrderID,
		ReservationID: res.ID,
		RoomID:        res.RoomID,
		CustomerName:  res.CustomerName,
		CustomerPhone: res.CustomerPhone,
		CustomerEmail: res.CustomerEmail,
		CheckIn:       res.CheckIn.Format(time.RFC3339),
		ConfirmedAt:   s.now().Format(time.RFC3339),
	}
	if res.CheckOut != nil {
		ev.CheckOut = res.CheckOut.Format(time.RFC3339)
	}
	if res.RoomID != "" {
		if room, err := s.rooms.GetByID(ctx, res.RoomID); err == nil {
			ev.RoomTitle = room.Title
		}
	}
	if res.OrderID != "" {
		if o, err := s.orders.GetByID(ctx, res.OrderID); err == nil {
			ev.Amount = o.Amount
			ev.TransactionRef = o.TransactionRef
			ev.Duration = o.BookingDuration
		}
	}
	if err := s.publisher.PublishBookingConfirmed(ctx, ev); err != nil {
		s.log.WithError(err).WithField("reservation_id", res.ID).Warn("publish booking.confirmed failed")
	}
}

// ListRoomReservations returns the reservations of roomID touching
// [from, to].
func (s *BookingService) ListRoomReservations(ctx context.Context, roomID, from, to string) ([]model.Reservation, error) {
	if _, err := s.rooms.GetByID(ctx, roomID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrRoomNotFound
		}
		return nil, fmt.Errorf("load room: %w", err)
	}
	start, err := availability.ParseTime(from, s.opts.Location)
	if err != nil {
		return nil, ErrInvalidDates
	}
	end, err := availability.ParseTime(to, s.opts.Location)
	if err != nil || end.Before(start) {
		return nil, ErrInvalidDates
	}
	return s.reservations.ListByRoom(ctx, roomID, start, end)
}

// GetRoom returns a room by id.
func (s *BookingService) GetRoom(ctx context.Context, id string) (*model.Room, error) {
	room, err := s.rooms.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrRoomNotFound
	}
	return room, err
}

// Availability reports whether roomID has a free unit for the window.
func (s *BookingService) Availability(ctx context.Context, roomID, checkIn, checkOut string) (availability.Result, error) {
	in, err := availability.ParseTime(checkIn, s.opts.Location)
	if err != nil {
		return availability.Result{}, ErrInvalidDates
	}
	out, err := availability.ParseTime(checkOut, s.opts.Location)
	if err != nil {
		return availability.Result{}, ErrInvalidDates
	}
	r, err := s.checker.Check(ctx, roomID, in, out)
	switch {
	case errors.Is(err, availability.ErrInvalidWindow):
		return availability.Result{}, ErrInvalidDates
	case errors.Is(err, repository.ErrNotFound):
		return availability.Result{}, ErrRoomNotFound
	}
	return r, err
}
