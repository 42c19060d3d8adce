package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/hotel-booking/internal/model"
)

// OrderRepo provides data access to the orders table.  Payment status
// changes are guarded updates that only match rows still in 'unpaid', so a
// webhook and an expiry racing on the same order cannot both win.
type OrderRepo struct {
	db *sql.DB
}

// NewOrderRepo returns a new OrderRepo bound to the given database.
func NewOrderRepo(db *sql.DB) *OrderRepo { return &OrderRepo{db: db} }

var _ OrderRepository = (*OrderRepo)(nil)

const orderColumns = `id, amount, currency, items, payment_status, transfer_content, transaction_ref, customer_name, customer_phone, customer_email, note, room_id, booking_room, booking_duration, check_in, check_out, created_at, updated_at, paid_at`

func scanOrder(sc interface{ Scan(...any) error }) (*model.Order, error) {
	var (
		o                      model.Order
		items                  []byte
		txRef, note, roomID    sql.NullString
		paidAt                 sql.NullTime
	)
	err := sc.Scan(&o.ID, &o.Amount, &o.Currency, &items, &o.PaymentStatus, &o.TransferContent, &txRef,
		&o.CustomerName, &o.CustomerPhone, &o.CustomerEmail, &note, &roomID,
		&o.BookingRoom, &o.BookingDuration, &o.CheckIn, &o.CheckOut,
		&o.CreatedAt, &o.UpdatedAt, &paidAt)
	if err != nil {
		return nil, err
	}
	if len(items) > 0 {
		if err := json.Unmarshal(items, &o.Items); err != nil {
			return nil, err
		}
	}
	o.TransactionRef = txRef.String
	o.Note = note.String
	o.RoomID = roomID.String
	if paidAt.Valid {
		t := paidAt.Time
		o.PaidAt = &t
	}
	return &o, nil
}

func (r *OrderRepo) queryOrders(ctx context.Context, query string, args ...any) ([]model.Order, error) {
	rows, err := conn(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Order, 0)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *o)
	}
	return out, rows.Err()
}

// Create inserts an order, generating its id when empty.
func (r *OrderRepo) Create(ctx context.Context, o *model.Order) error {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = time.Now().UTC()
	}
	o.UpdatedAt = o.CreatedAt
	if o.Items == nil {
		o.Items = []model.OrderItem{}
	}
	items, err := json.Marshal(o.Items)
	if err != nil {
		return err
	}
	_, err = conn(ctx, r.db).ExecContext(ctx,
		`INSERT INTO orders (`+orderColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		o.ID, o.Amount, o.Currency, items, o.PaymentStatus, o.TransferContent, nullString(o.TransactionRef),
		o.CustomerName, o.CustomerPhone, o.CustomerEmail, nullString(o.Note), nullString(o.RoomID),
		o.BookingRoom, o.BookingDuration, o.CheckIn, o.CheckOut,
		o.CreatedAt.UTC(), o.UpdatedAt.UTC(), nil,
	)
	if isDuplicate(err) {
		return ErrConflict
	}
	return err
}

// GetByID returns the order with the given id or ErrNotFound.
func (r *OrderRepo) GetByID(ctx context.Context, id string) (*model.Order, error) {
	row := conn(ctx, r.db).QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = ?`, id)
	o, err := scanOrder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return o, err
}

// FindUnpaidByTransferContent relies on the column's case-insensitive
// collation for the comparison.
func (r *OrderRepo) FindUnpaidByTransferContent(ctx context.Context, ref string) ([]model.Order, error) {
	return r.queryOrders(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE transfer_content = ? AND payment_status = 'unpaid'`, ref)
}

// FindPaidByTransferContent uses the same collation as
// FindUnpaidByTransferContent.
func (r *OrderRepo) FindPaidByTransferContent(ctx context.Context, ref string) ([]model.Order, error) {
	return r.queryOrders(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE transfer_content = ? AND payment_status = 'paid'`, ref)
}

// FindByTransactionRef returns the order that recorded the provider
// transaction ref or ErrNotFound.
func (r *OrderRepo) FindByTransactionRef(ctx context.Context, ref string) (*model.Order, error) {
	if ref == "" {
		return nil, ErrNotFound
	}
	row := conn(ctx, r.db).QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE transaction_ref = ?`, ref)
	o, err := scanOrder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return o, err
}

// TransferContentInUse reports whether an unpaid order carries ref.
func (r *OrderRepo) TransferContentInUse(ctx context.Context, ref string) (bool, error) {
	var n int
	err := conn(ctx, r.db).QueryRowContext(ctx,
		`SELECT COUNT(*) FROM orders WHERE transfer_content = ? AND payment_status = 'unpaid'`, ref,
	).Scan(&n)
	return n > 0, err
}

// MarkPaid sets payment_status to 'paid' only while it is still 'unpaid'.
func (r *OrderRepo) MarkPaid(ctx context.Context, id, transactionRef string, at time.Time) (bool, error) {
	result, err := conn(ctx, r.db).ExecContext(ctx,
		`UPDATE orders SET payment_status = 'paid', transaction_ref = ?, paid_at = ?, updated_at = ?
		 WHERE id = ? AND payment_status = 'unpaid'`,
		nullString(transactionRef), at.UTC(), at.UTC(), id)
	if isDuplicate(err) {
		return false, ErrConflict
	}
	if err != nil {
		return false, err
	}
	n, err := result.RowsAffected()
	return n == 1, err
}

// MarkIdled sets payment_status to 'idled' only while it is still 'unpaid'.
func (r *OrderRepo) MarkIdled(ctx context.Context, id string, at time.Time) (bool, error) {
	result, err := conn(ctx, r.db).ExecContext(ctx,
		`UPDATE orders SET payment_status = 'idled', updated_at = ? WHERE id = ? AND payment_status = 'unpaid'`,
		at.UTC(), id)
	if err != nil {
		return false, err
	}
	n, err := result.RowsAffected()
	return n == 1, err
}

// ListExpiredUnpaid returns the oldest unpaid orders created before cutoff.
func (r *OrderRepo) ListExpiredUnpaid(ctx context.Context, cutoff time.Time, limit int) ([]model.Order, error) {
	if limit <= 0 {
		limit = 100
	}
	return r.queryOrders(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE payment_status = 'unpaid' AND created_at < ? ORDER BY created_at LIMIT ?`,
		cutoff.UTC(), limit)
}
