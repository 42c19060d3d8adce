// Package availability decides whether a room still has a free unit for a
// requested window.  It fails closed: whenever the answer cannot be
// established (bad dates, unknown room, store failure) the room is
// reported as unavailable.
package availability

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/hotel-booking/internal/model"
)

// ErrInvalidWindow is returned by Check for a window whose check-out is
// not after its check-in.
var ErrInvalidWindow = errors.New("check-out must be after check-in")

// RoomReader loads a room by id.
type RoomReader interface {
	GetByID(ctx context.Context, id string) (*model.Room, error)
}

// OverlapCounter counts holding reservations overlapping a window.
type OverlapCounter interface {
	CountOverlapping(ctx context.Context, roomID string, checkIn, checkOut time.Time) (int, error)
}

// Result is the outcome of a typed availability check.
type Result struct {
	Available   bool `json:"available"`
	TotalStock  int  `json:"totalStock"`
	Overlapping int  `json:"overlapping"`
}

// Checker answers availability questions for rooms.
type Checker struct {
	Rooms        RoomReader
	Reservations OverlapCounter
	Location     *time.Location // zone for timestamps without an offset
	Log          *logrus.Entry
}

// NewChecker returns a Checker reading naive timestamps in loc.
func NewChecker(rooms RoomReader, reservations OverlapCounter, loc *time.Location, log *logrus.Entry) *Checker {
	if loc == nil {
		loc = time.UTC
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Checker{Rooms: rooms, Reservations: reservations, Location: loc, Log: log}
}

// IsAvailable reports whether roomID has a free unit for the window given
// as client-supplied strings.  Any failure yields false.
func (c *Checker) IsAvailable(ctx context.Context, roomID, checkIn, checkOut string) bool {
	in, err := ParseTime(checkIn, c.Location)
	if err != nil {
		return false
	}
	out, err := ParseTime(checkOut, c.Location)
	if err != nil {
		return false
	}
	res, err := c.Check(ctx, roomID, in, out)
	if err != nil {
		c.Log.WithFields(logrus.Fields{"room_id": roomID, "error": err}).Debug("availability check failed closed")
		return false
	}
	return res.Available
}

// Check counts overlapping holds for roomID in [in, out].  Errors from the
// store and unknown rooms are returned so callers can tell them apart;
// Available is false whenever err is non-nil.
func (c *Checker) Check(ctx context.Context, roomID string, in, out time.Time) (Result, error) {
	if roomID == "" || in.IsZero() || out.IsZero() || !out.After(in) {
		return Result{}, ErrInvalidWindow
	}
	room, err := c.Rooms.GetByID(ctx, roomID)
	if err != nil {
		return Result{}, err
	}
	n, err := c.Reservations.CountOverlapping(ctx, roomID, in, out)
	if err != nil {
		return Result{}, err
	}
	stock := room.EffectiveStock()
	return Result{Available: stock > n, TotalStock: stock, Overlapping: n}, nil
}

var layouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// ParseTime parses a client timestamp.  ISO-8601 values with an offset keep
// it; values without one are read in loc.
func ParseTime(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, errors.New("empty timestamp")
	}
	if loc == nil {
		loc = time.UTC
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	var lastErr error
	for _, layout := range layouts[1:] {
		t, err := time.ParseInLocation(layout, s, loc)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}
