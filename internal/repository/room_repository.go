package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/hotel-booking/internal/model"
)

// RoomRepo provides read access to the rooms table.  Room content is
// maintained by the back office; this service only needs stock and
// pricing, plus Create for seeding and tests.
type RoomRepo struct {
	db *sql.DB
}

// NewRoomRepo returns a new RoomRepo bound to the provided database.
func NewRoomRepo(db *sql.DB) *RoomRepo { return &RoomRepo{db: db} }

var _ RoomRepository = (*RoomRepo)(nil)

const roomColumns = `id, title, branch_id, total_stock, first_2_hours_price, extra_hour_price, overnight_price, daily_price, created_at, updated_at`

func scanRoom(sc interface{ Scan(...any) error }) (*model.Room, error) {
	var r model.Room
	err := sc.Scan(&r.ID, &r.Title, &r.BranchID, &r.TotalStock,
		&r.Pricing.First2HoursPrice, &r.Pricing.ExtraHourPrice, &r.Pricing.OvernightPrice, &r.Pricing.DailyPrice,
		&r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// GetByID returns the room with the given id or ErrNotFound.
func (r *RoomRepo) GetByID(ctx context.Context, id string) (*model.Room, error) {
	row := conn(ctx, r.db).QueryRowContext(ctx, `SELECT `+roomColumns+` FROM rooms WHERE id = ?`, id)
	room, err := scanRoom(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return room, err
}

// List returns all rooms ordered by title.
func (r *RoomRepo) List(ctx context.Context) ([]model.Room, error) {
	rows, err := conn(ctx, r.db).QueryContext(ctx, `SELECT `+roomColumns+` FROM rooms ORDER BY title`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Room, 0)
	for rows.Next() {
		room, err := scanRoom(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *room)
	}
	return out, rows.Err()
}

// Create inserts a room, generating its id when empty.
func (r *RoomRepo) Create(ctx context.Context, room *model.Room) error {
	if room.ID == "" {
		room.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	room.CreatedAt, room.UpdatedAt = now, now
	_, err := conn(ctx, r.db).ExecContext(ctx,
		`INSERT INTO rooms (`+roomColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		room.ID, room.Title, room.BranchID, room.TotalStock,
		room.Pricing.First2HoursPrice, room.Pricing.ExtraHourPrice, room.Pricing.OvernightPrice, room.Pricing.DailyPrice,
		room.CreatedAt, room.UpdatedAt)
	if isDuplicate(err) {
		return ErrConflict
	}
	return err
}
