package repository

import (
	"context"
	"time"

	"github.com/iliyamo/hotel-booking/internal/model"
)

// RoomRepository reads the room catalog.
type RoomRepository interface {
	GetByID(ctx context.Context, id string) (*model.Room, error)
	List(ctx context.Context) ([]model.Room, error)
	Create(ctx context.Context, room *model.Room) error
}

// ReservationRepository stores room reservations.
type ReservationRepository interface {
	// CountOverlapping counts holding reservations of roomID whose window
	// touches [checkIn, checkOut].
	CountOverlapping(ctx context.Context, roomID string, checkIn, checkOut time.Time) (int, error)
	// ReserveIfAvailable inserts res only if the room still has a free unit
	// for its window.  The count and the insert are atomic with respect to
	// other reservations of the same room.  Returns ErrSoldOut when full and
	// ErrNotFound when the room does not exist.
	ReserveIfAvailable(ctx context.Context, res *model.Reservation) error
	// Create inserts res without an availability check.
	Create(ctx context.Context, res *model.Reservation) error
	GetByID(ctx context.Context, id string) (*model.Reservation, error)
	FindByOrderID(ctx context.Context, orderID string) (*model.Reservation, error)
	// TransitionStatus moves reservation id to `to` only while its status is
	// one of `from`.  It reports whether a row changed.
	TransitionStatus(ctx context.Context, id string, from []model.ReservationStatus, to model.ReservationStatus) (bool, error)
	// AttachOrder links reservation id to orderID when it has no order yet.
	AttachOrder(ctx context.Context, id, orderID string) error
	// ListByRoom returns reservations of roomID overlapping [from, to],
	// ordered by check-in.
	ListByRoom(ctx context.Context, roomID string, from, to time.Time) ([]model.Reservation, error)
}

// OrderRepository stores orders.  Payment status changes are
// compare-and-swap updates guarded on the order still being unpaid.
type OrderRepository interface {
	Create(ctx context.Context, o *model.Order) error
	GetByID(ctx context.Context, id string) (*model.Order, error)
	// FindUnpaidByTransferContent returns unpaid orders whose transfer
	// content equals ref, ignoring case.
	FindUnpaidByTransferContent(ctx context.Context, ref string) ([]model.Order, error)
	// FindPaidByTransferContent returns paid orders whose transfer content
	// equals ref, ignoring case.
	FindPaidByTransferContent(ctx context.Context, ref string) ([]model.Order, error)
	FindByTransactionRef(ctx context.Context, ref string) (*model.Order, error)
	// TransferContentInUse reports whether an unpaid order already carries ref.
	TransferContentInUse(ctx context.Context, ref string) (bool, error)
	// MarkPaid moves an unpaid order to paid and records the provider
	// reference.  It reports false when the order was no longer unpaid.
	MarkPaid(ctx context.Context, id, transactionRef string, at time.Time) (bool, error)
	// MarkIdled moves an unpaid order to idled.  It reports false when the
	// order was no longer unpaid.
	MarkIdled(ctx context.Context, id string, at time.Time) (bool, error)
	// ListExpiredUnpaid returns up to limit unpaid orders created before cutoff.
	ListExpiredUnpaid(ctx context.Context, cutoff time.Time, limit int) ([]model.Order, error)
}

// TxManager runs fn inside a transaction carried by the context passed to
// fn.  Repository calls made with that context join the transaction.  The
// transaction commits when fn returns nil and rolls back otherwise.
type TxManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
