package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/hotel-booking/internal/model"
)

// MemoryStore keeps rooms, reservations and orders in process memory.
// Reservations are additionally indexed per room, sorted by check-in, so
// overlap counting only walks reservations that start before the requested
// window ends.
type MemoryStore struct {
	mu           sync.RWMutex
	rooms        map[string]model.Room
	reservations map[string]model.Reservation
	byRoom       map[string][]string // room id -> reservation ids sorted by check-in
	orders       map[string]model.Order
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		rooms:        make(map[string]model.Room),
		reservations: make(map[string]model.Reservation),
		byRoom:       make(map[string][]string),
		orders:       make(map[string]model.Order),
	}
}

// transaction-aware locking helpers
type txKey struct{}

func isTx(ctx context.Context) bool {
	b, ok := ctx.Value(txKey{}).(bool)
	return ok && b
}

func (m *MemoryStore) rlock(ctx context.Context) {
	if !isTx(ctx) {
		m.mu.RLock()
	}
}
func (m *MemoryStore) runlock(ctx context.Context) {
	if !isTx(ctx) {
		m.mu.RUnlock()
	}
}
func (m *MemoryStore) wlock(ctx context.Context) {
	if !isTx(ctx) {
		m.mu.Lock()
	}
}
func (m *MemoryStore) wunlock(ctx context.Context) {
	if !isTx(ctx) {
		m.mu.Unlock()
	}
}

// indexReservation inserts or repositions id in its room's sorted index.
// Caller holds the write lock.
func (m *MemoryStore) indexReservation(r model.Reservation) {
	if r.RoomID == "" {
		return
	}
	ids := m.byRoom[r.RoomID]
	for i, id := range ids {
		if id == r.ID {
			ids = append(ids[:i], ids[i+1:]...)
			break
		}
	}
	pos := sort.Search(len(ids), func(i int) bool {
		return m.reservations[ids[i]].CheckIn.After(r.CheckIn)
	})
	ids = append(ids, "")
	copy(ids[pos+1:], ids[pos:])
	ids[pos] = r.ID
	m.byRoom[r.RoomID] = ids
}

// countOverlapping walks the room index up to the first reservation that
// starts after checkOut.  Caller holds a lock.
func (m *MemoryStore) countOverlapping(roomID string, checkIn, checkOut time.Time) int {
	ids := m.byRoom[roomID]
	end := sort.Search(len(ids), func(i int) bool {
		return m.reservations[ids[i]].CheckIn.After(checkOut)
	})
	n := 0
	for _, id := range ids[:end] {
		r := m.reservations[id]
		if r.Status.Holds() && r.Overlaps(checkIn, checkOut) {
			n++
		}
	}
	return n
}

type memorySnapshot struct {
	rooms        map[string]model.Room
	reservations map[string]model.Reservation
	byRoom       map[string][]string
	orders       map[string]model.Order
}

func (m *MemoryStore) snapshot() memorySnapshot {
	s := memorySnapshot{
		rooms:        make(map[string]model.Room, len(m.rooms)),
		reservations: make(map[string]model.Reservation, len(m.reservations)),
		byRoom:       make(map[string][]string, len(m.byRoom)),
		orders:       make(map[string]model.Order, len(m.orders)),
	}
	for k, v := range m.rooms {
		s.rooms[k] = v
	}
	for k, v := range m.reservations {
		s.reservations[k] = v
	}
	for k, v := range m.byRoom {
		s.byRoom[k] = append([]string(nil), v...)
	}
	for k, v := range m.orders {
		s.orders[k] = v
	}
	return s
}

func (m *MemoryStore) restore(s memorySnapshot) {
	m.rooms = s.rooms
	m.reservations = s.reservations
	m.byRoom = s.byRoom
	m.orders = s.orders
}

// ---- Rooms ----

type MemoryRooms struct{ store *MemoryStore }

func NewMemoryRooms(store *MemoryStore) *MemoryRooms { return &MemoryRooms{store: store} }

var _ RoomRepository = (*MemoryRooms)(nil)

func (mr *MemoryRooms) Create(ctx context.Context, room *model.Room) error {
	mr.store.wlock(ctx)
	defer mr.store.wunlock(ctx)
	if room.ID == "" {
		room.ID = uuid.NewString()
	}
	if _, ok := mr.store.rooms[room.ID]; ok {
		return ErrConflict
	}
	now := time.Now().UTC()
	room.CreatedAt, room.UpdatedAt = now, now
	mr.store.rooms[room.ID] = *room
	return nil
}

func (mr *MemoryRooms) GetByID(ctx context.Context, id string) (*model.Room, error) {
	mr.store.rlock(ctx)
	defer mr.store.runlock(ctx)
	r, ok := mr.store.rooms[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := r
	return &cp, nil
}

func (mr *MemoryRooms) List(ctx context.Context) ([]model.Room, error) {
	mr.store.rlock(ctx)
	defer mr.store.runlock(ctx)
	out := make([]model.Room, 0, len(mr.store.rooms))
	for _, r := range mr.store.rooms {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Title < out[j].Title })
	return out, nil
}

// ---- Reservations ----

type MemoryReservations struct{ store *MemoryStore }

func NewMemoryReservations(store *MemoryStore) *MemoryReservations {
	return &MemoryReservations{store: store}
}

var _ ReservationRepository = (*MemoryReservations)(nil)

func (mr *MemoryReservations) CountOverlapping(ctx context.Context, roomID string, checkIn, checkOut time.Time) (int, error) {
	mr.store.rlock(ctx)
	defer mr.store.runlock(ctx)
	return mr.store.countOverlapping(roomID, checkIn, checkOut), nil
}

func (mr *MemoryReservations) ReserveIfAvailable(ctx context.Context, res *model.Reservation) error {
	mr.store.wlock(ctx)
	defer mr.store.wunlock(ctx)
	room, ok := mr.store.rooms[res.RoomID]
	if !ok {
		return ErrNotFound
	}
	checkOut := res.CheckIn
	if res.CheckOut != nil {
		checkOut = *res.CheckOut
	}
	if mr.store.countOverlapping(res.RoomID, res.CheckIn, checkOut) >= room.EffectiveStock() {
		return ErrSoldOut
	}
	return mr.insert(res)
}

func (mr *MemoryReservations) Create(ctx context.Context, res *model.Reservation) error {
	mr.store.wlock(ctx)
	defer mr.store.wunlock(ctx)
	return mr.insert(res)
}

// insert stores res.  Caller holds the write lock.
func (mr *MemoryReservations) insert(res *model.Reservation) error {
	if res.ID == "" {
		res.ID = uuid.NewString()
	}
	if _, ok := mr.store.reservations[res.ID]; ok {
		return ErrConflict
	}
	if res.CreatedAt.IsZero() {
		res.CreatedAt = time.Now().UTC()
	}
	res.UpdatedAt = res.CreatedAt
	mr.store.reservations[res.ID] = *res
	mr.store.indexReservation(*res)
	return nil
}

func (mr *MemoryReservations) GetByID(ctx context.Context, id string) (*model.Reservation, error) {
	mr.store.rlock(ctx)
	defer mr.store.runlock(ctx)
	r, ok := mr.store.reservations[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := r
	return &cp, nil
}

func (mr *MemoryReservations) FindByOrderID(ctx context.Context, orderID string) (*model.Reservation, error) {
	mr.store.rlock(ctx)
	defer mr.store.runlock(ctx)
	if orderID == "" {
		return nil, ErrNotFound
	}
	for _, r := range mr.store.reservations {
		if r.OrderID == orderID {
			cp := r
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (mr *MemoryReservations) TransitionStatus(ctx context.Context, id string, from []model.ReservationStatus, to model.ReservationStatus) (bool, error) {
	mr.store.wlock(ctx)
	defer mr.store.wunlock(ctx)
	r, ok := mr.store.reservations[id]
	if !ok {
		return false, nil
	}
	for _, s := range from {
		if r.Status == s {
			r.Status = to
			r.UpdatedAt = time.Now().UTC()
			mr.store.reservations[id] = r
			return true, nil
		}
	}
	return false, nil
}

func (mr *MemoryReservations) AttachOrder(ctx context.Context, id, orderID string) error {
	mr.store.wlock(ctx)
	defer mr.store.wunlock(ctx)
	r, ok := mr.store.reservations[id]
	if !ok {
		return ErrNotFound
	}
	if r.OrderID != "" {
		return ErrConflict
	}
	r.OrderID = orderID
	r.UpdatedAt = time.Now().UTC()
	mr.store.reservations[id] = r
	return nil
}

func (mr *MemoryReservations) ListByRoom(ctx context.Context, roomID string, from, to time.Time) ([]model.Reservation, error) {
	mr.store.rlock(ctx)
	defer mr.store.runlock(ctx)
	out := make([]model.Reservation, 0)
	for _, id := range mr.store.byRoom[roomID] {
		r := mr.store.reservations[id]
		if r.CheckIn.After(to) {
			break
		}
		if r.Overlaps(from, to) {
			out = append(out, r)
		}
	}
	return out, nil
}

// ---- Orders ----

type MemoryOrders struct{ store *MemoryStore }

func NewMemoryOrders(store *MemoryStore) *MemoryOrders { return &MemoryOrders{store: store} }

var _ OrderRepository = (*MemoryOrders)(nil)

func (mo *MemoryOrders) Create(ctx context.Context, o *model.Order) error {
	mo.store.wlock(ctx)
	defer mo.store.wunlock(ctx)
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	if _, ok := mo.store.orders[o.ID]; ok {
		return ErrConflict
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = time.Now().UTC()
	}
	o.UpdatedAt = o.CreatedAt
	o.Items = append([]model.OrderItem(nil), o.Items...)
	mo.store.orders[o.ID] = *o
	return nil
}

func (mo *MemoryOrders) GetByID(ctx context.Context, id string) (*model.Order, error) {
	mo.store.rlock(ctx)
	defer mo.store.runlock(ctx)
	o, ok := mo.store.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := o
	return &cp, nil
}

func (mo *MemoryOrders) FindUnpaidByTransferContent(ctx context.Context, ref string) ([]model.Order, error) {
	return mo.findByTransferContent(ctx, ref, model.PaymentUnpaid), nil
}

func (mo *MemoryOrders) FindPaidByTransferContent(ctx context.Context, ref string) ([]model.Order, error) {
	return mo.findByTransferContent(ctx, ref, model.PaymentPaid), nil
}

func (mo *MemoryOrders) findByTransferContent(ctx context.Context, ref string, status model.PaymentStatus) []model.Order {
	mo.store.rlock(ctx)
	defer mo.store.runlock(ctx)
	out := make([]model.Order, 0, 1)
	for _, o := range mo.store.orders {
		if o.PaymentStatus == status && strings.EqualFold(o.TransferContent, ref) {
			out = append(out, o)
		}
	}
	return out
}

func (mo *MemoryOrders) FindByTransactionRef(ctx context.Context, ref string) (*model.Order, error) {
	mo.store.rlock(ctx)
	defer mo.store.runlock(ctx)
	if ref == "" {
		return nil, ErrNotFound
	}
	for _, o := range mo.store.orders {
		if o.TransactionRef == ref {
			cp := o
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (mo *MemoryOrders) TransferContentInUse(ctx context.Context, ref string) (bool, error) {
	found, err := mo.FindUnpaidByTransferContent(ctx, ref)
	return len(found) > 0, err
}

func (mo *MemoryOrders) MarkPaid(ctx context.Context, id, transactionRef string, at time.Time) (bool, error) {
	mo.store.wlock(ctx)
	defer mo.store.wunlock(ctx)
	o, ok := mo.store.orders[id]
	if !ok || o.PaymentStatus != model.PaymentUnpaid {
		return false, nil
	}
	if transactionRef != "" {
		for oid, other := range mo.store.orders {
			if oid != id && other.TransactionRef == transactionRef {
				return false, ErrConflict
			}
		}
	}
	o.PaymentStatus = model.PaymentPaid
	o.TransactionRef = transactionRef
	o.PaidAt = &at
	o.UpdatedAt = at
	mo.store.orders[id] = o
	return true, nil
}

func (mo *MemoryOrders) MarkIdled(ctx context.Context, id string, at time.Time) (bool, error) {
	mo.store.wlock(ctx)
	defer mo.store.wunlock(ctx)
	o, ok := mo.store.orders[id]
	if !ok || o.PaymentStatus != model.PaymentUnpaid {
		return false, nil
	}
	o.PaymentStatus = model.PaymentIdled
	o.UpdatedAt = at
	mo.store.orders[id] = o
	return true, nil
}

func (mo *MemoryOrders) ListExpiredUnpaid(ctx context.Context, cutoff time.Time, limit int) ([]model.Order, error) {
	mo.store.rlock(ctx)
	defer mo.store.runlock(ctx)
	out := make([]model.Order, 0)
	for _, o := range mo.store.orders {
		if o.PaymentStatus == model.PaymentUnpaid && o.CreatedAt.Before(cutoff) {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// MemoryTx emulates transactions with the store's write lock.  Repository
// calls made with the transaction context skip their own locking, and a
// failing fn restores the state captured when the transaction began.
type MemoryTx struct{ store *MemoryStore }

func NewMemoryTx(store *MemoryStore) *MemoryTx { return &MemoryTx{store: store} }

var _ TxManager = (*MemoryTx)(nil)

func (tx *MemoryTx) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if isTx(ctx) {
		return fn(ctx)
	}
	tx.store.mu.Lock()
	defer tx.store.mu.Unlock()
	snap := tx.store.snapshot()
	if err := fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		tx.store.restore(snap)
		return err
	}
	return nil
}
