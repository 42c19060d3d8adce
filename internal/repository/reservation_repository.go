package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/hotel-booking/internal/model"
)

// ReservationRepo provides data access to the reservations table.  All
// timestamps are stored in UTC.  Writes that must see a consistent
// occupancy count lock the parent room row first, so concurrent
// reservations of the same room are serialized by MySQL.
type ReservationRepo struct {
	db *sql.DB
	tx *SQLTx
}

// NewReservationRepo returns a new ReservationRepo bound to the given database.
func NewReservationRepo(db *sql.DB) *ReservationRepo {
	return &ReservationRepo{db: db, tx: NewSQLTx(db)}
}

var _ ReservationRepository = (*ReservationRepo)(nil)

const reservationColumns = `id, room_id, branch_id, room_type, order_id, check_in, check_out, status, booking_type, customer_name, customer_phone, customer_email, note, created_at, updated_at`

// overlapPredicate selects holding reservations whose window touches the
// requested one.  Both boundaries are inclusive; a missing check-out is
// open ended.
const overlapPredicate = `room_id = ? AND status IN ('pending','confirmed') AND check_in <= ? AND (check_out IS NULL OR check_out >= ?)`

func scanReservation(sc interface{ Scan(...any) error }) (*model.Reservation, error) {
	var (
		r                      model.Reservation
		roomID, orderID, note  sql.NullString
		checkOut               sql.NullTime
	)
	err := sc.Scan(&r.ID, &roomID, &r.BranchID, &r.RoomType, &orderID, &r.CheckIn, &checkOut,
		&r.Status, &r.Type, &r.CustomerName, &r.CustomerPhone, &r.CustomerEmail, &note,
		&r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	r.RoomID = roomID.String
	r.OrderID = orderID.String
	r.Note = note.String
	if checkOut.Valid {
		co := checkOut.Time
		r.CheckOut = &co
	}
	return &r, nil
}

// CountOverlapping counts pending and confirmed reservations of roomID
// overlapping [checkIn, checkOut].  The (room_id, check_in) index bounds
// the scan.
func (r *ReservationRepo) CountOverlapping(ctx context.Context, roomID string, checkIn, checkOut time.Time) (int, error) {
	var n int
	err := conn(ctx, r.db).QueryRowContext(ctx,
		`SELECT COUNT(*) FROM reservations WHERE `+overlapPredicate,
		roomID, checkOut.UTC(), checkIn.UTC(),
	).Scan(&n)
	return n, err
}

// ReserveIfAvailable locks the room row, counts overlapping holds and
// inserts res when a unit is still free.  It joins the transaction in ctx
// or opens its own.
func (r *ReservationRepo) ReserveIfAvailable(ctx context.Context, res *model.Reservation) error {
	return r.tx.WithTransaction(ctx, func(ctx context.Context) error {
		var stock int
		err := conn(ctx, r.db).QueryRowContext(ctx,
			`SELECT total_stock FROM rooms WHERE id = ? FOR UPDATE`, res.RoomID,
		).Scan(&stock)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		if stock < 1 {
			stock = 1
		}
		checkOut := res.CheckIn
		if res.CheckOut != nil {
			checkOut = *res.CheckOut
		}
		n, err := r.CountOverlapping(ctx, res.RoomID, res.CheckIn, checkOut)
		if err != nil {
			return err
		}
		if n >= stock {
			return ErrSoldOut
		}
		return r.Create(ctx, res)
	})
}

// Create inserts a reservation, generating its id when empty.
func (r *ReservationRepo) Create(ctx context.Context, res *model.Reservation) error {
	if res.ID == "" {
		res.ID = uuid.NewString()
	}
	if res.CreatedAt.IsZero() {
		res.CreatedAt = time.Now().UTC()
	}
	res.UpdatedAt = res.CreatedAt
	var checkOut sql.NullTime
	if res.CheckOut != nil {
		checkOut = sql.NullTime{Time: res.CheckOut.UTC(), Valid: true}
	}
	_, err := conn(ctx, r.db).ExecContext(ctx,
		`INSERT INTO reservations (`+reservationColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		res.ID, nullString(res.RoomID), res.BranchID, res.RoomType, nullString(res.OrderID),
		res.CheckIn.UTC(), checkOut, res.Status, res.Type,
		res.CustomerName, res.CustomerPhone, res.CustomerEmail, nullString(res.Note),
		res.CreatedAt.UTC(), res.UpdatedAt.UTC(),
	)
	if isDuplicate(err) {
		return ErrConflict
	}
	return err
}

// GetByID returns the reservation with the given id or ErrNotFound.
func (r *ReservationRepo) GetByID(ctx context.Context, id string) (*model.Reservation, error) {
	row := conn(ctx, r.db).QueryRowContext(ctx, `SELECT `+reservationColumns+` FROM reservations WHERE id = ?`, id)
	res, err := scanReservation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return res, err
}

// FindByOrderID returns the reservation created for orderID.
func (r *ReservationRepo) FindByOrderID(ctx context.Context, orderID string) (*model.Reservation, error) {
	row := conn(ctx, r.db).QueryRowContext(ctx,
		`SELECT `+reservationColumns+` FROM reservations WHERE order_id = ? ORDER BY created_at LIMIT 1`, orderID)
	res, err := scanReservation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return res, err
}

// TransitionStatus updates the status only while the row is still in one
// of the from statuses.
func (r *ReservationRepo) TransitionStatus(ctx context.Context, id string, from []model.ReservationStatus, to model.ReservationStatus) (bool, error) {
	if len(from) == 0 {
		return false, nil
	}
	args := make([]any, 0, len(from)+3)
	args = append(args, to, time.Now().UTC(), id)
	for _, s := range from {
		args = append(args, s)
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(from)), ",")
	result, err := conn(ctx, r.db).ExecContext(ctx,
		`UPDATE reservations SET status = ?, updated_at = ? WHERE id = ? AND status IN (`+placeholders+`)`,
		args...)
	if err != nil {
		return false, err
	}
	n, err := result.RowsAffected()
	return n == 1, err
}

// AttachOrder sets order_id on a reservation that has none.
func (r *ReservationRepo) AttachOrder(ctx context.Context, id, orderID string) error {
	result, err := conn(ctx, r.db).ExecContext(ctx,
		`UPDATE reservations SET order_id = ?, updated_at = ? WHERE id = ? AND order_id IS NULL`,
		orderID, time.Now().UTC(), id)
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		var exists int
		err := conn(ctx, r.db).QueryRowContext(ctx, `SELECT 1 FROM reservations WHERE id = ?`, id).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		return ErrConflict
	}
	return nil
}

// ListByRoom returns reservations of roomID overlapping [from, to] in any
// status, ordered by check-in.
func (r *ReservationRepo) ListByRoom(ctx context.Context, roomID string, from, to time.Time) ([]model.Reservation, error) {
	rows, err := conn(ctx, r.db).QueryContext(ctx,
		`SELECT `+reservationColumns+` FROM reservations
		 WHERE room_id = ? AND check_in <= ? AND (check_out IS NULL OR check_out >= ?)
		 ORDER BY check_in`,
		roomID, to.UTC(), from.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Reservation, 0)
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *res)
	}
	return out, rows.Err()
}
