// Package mocks provides an in-memory stand-in for the MySQL repositories.
// It follows the same sentinel errors (repository.ErrNotFound, ErrConflict,
// ErrPortOccupied) so handlers and middleware can be tested end to end.
package mocks

import (
	"context"
	"errors"
	"fmt"
	"math"
	"mime/multipart"
	"sort"
	"sync"
	"time"

	"github.com/iliyamo/ev-charging-backend/internal/model"
	"github.com/iliyamo/ev-charging-backend/internal/repository"
)

// Store holds every table. Use the typed views (Users, Vehicles, ...) as the
// repository implementations.
type Store struct {
	mu sync.Mutex

	nextID   uint64
	users    map[uint64]*model.User
	vehicles map[uint64]*model.Vehicle
	chargers map[uint64]*model.Charger
	ports    map[uint64]*model.ChargerPort
	portSeq  map[uint64]uint32
	plans    map[uint64]*model.Plan
	subs     map[uint64]*model.Subscription

	Now func() time.Time
}

func NewStore() *Store {
	return &Store{
		users:    map[uint64]*model.User{},
		vehicles: map[uint64]*model.Vehicle{},
		chargers: map[uint64]*model.Charger{},
		ports:    map[uint64]*model.ChargerPort{},
		portSeq:  map[uint64]uint32{},
		plans:    map[uint64]*model.Plan{},
		subs:     map[uint64]*model.Subscription{},
		Now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *Store) id() uint64 {
	s.nextID++
	return s.nextID
}

func conflict(what string) error { return fmt.Errorf("%w: duplicate %s", repository.ErrConflict, what) }

func (s *Store) Users() *Users        { return &Users{s} }
func (s *Store) Vehicles() *Vehicles  { return &Vehicles{s} }
func (s *Store) Chargers() *Chargers  { return &Chargers{s} }
func (s *Store) Ports() *Ports        { return &Ports{s} }
func (s *Store) Plans() *Plans        { return &Plans{s} }
func (s *Store) Subscriptions() *Subs { return &Subs{s} }

func (s *Store) PingContext(context.Context) error { return nil }

// ---- users ----

type Users struct{ s *Store }

func (r *Users) Create(_ context.Context, u *model.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, o := range r.s.users {
		if o.Username == u.Username || o.Email == u.Email {
			return conflict("user")
		}
	}
	u.ID = r.s.id()
	u.CreatedAt, u.UpdatedAt = r.s.Now(), r.s.Now()
	cp := *u
	r.s.users[u.ID] = &cp
	return nil
}

func (r *Users) get(id uint64) (*model.User, error) {
	u, ok := r.s.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return u, nil
}

func (r *Users) GetByID(_ context.Context, id uint64) (*model.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, err := r.get(id)
	if err != nil {
		return nil, err
	}
	cp := *u
	return &cp, nil
}

func (r *Users) GetByLogin(_ context.Context, username, email string) (*model.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var best *model.User
	for _, u := range r.s.users {
		if (username != "" && u.Username == username) || (email != "" && u.Email == email) {
			if best == nil || u.ID < best.ID {
				best = u
			}
		}
	}
	if best == nil {
		return nil, repository.ErrNotFound
	}
	cp := *best
	return &cp, nil
}

func (r *Users) GetByRefreshHash(_ context.Context, hash string) (*model.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if hash != "" && u.RefreshTokenHash == hash {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *Users) update(id uint64, fn func(u *model.User)) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, err := r.get(id)
	if err != nil {
		return err
	}
	fn(u)
	u.UpdatedAt = r.s.Now()
	return nil
}

func (r *Users) SetRefreshToken(_ context.Context, id uint64, hash string, exp time.Time) error {
	return r.update(id, func(u *model.User) {
		u.RefreshTokenHash = hash
		u.RefreshTokenExpiresAt = &exp
	})
}

func (r *Users) ClearRefreshToken(_ context.Context, id uint64) error {
	err := r.update(id, func(u *model.User) {
		u.RefreshTokenHash = ""
		u.RefreshTokenExpiresAt = nil
	})
	if errors.Is(err, repository.ErrNotFound) {
		return nil
	}
	return err
}

func (r *Users) SetPasswordResetOTP(_ context.Context, id uint64, hash string, exp time.Time) error {
	return r.update(id, func(u *model.User) {
		u.PasswordResetOTPHash = hash
		u.PasswordResetExpiresAt = &exp
	})
}

func (r *Users) UpdatePassword(_ context.Context, id uint64, hash string, endSession bool) error {
	return r.update(id, func(u *model.User) {
		u.PasswordHash = hash
		u.PasswordResetOTPHash = ""
		u.PasswordResetExpiresAt = nil
		if endSession {
			u.RefreshTokenHash = ""
			u.RefreshTokenExpiresAt = nil
		}
	})
}

func (r *Users) UpdateAccount(_ context.Context, id uint64, fullName, email, username string) error {
	r.s.mu.Lock()
	for _, o := range r.s.users {
		if o.ID != id && (o.Username == username || o.Email == email) {
			r.s.mu.Unlock()
			return conflict("user")
		}
	}
	r.s.mu.Unlock()
	return r.update(id, func(u *model.User) {
		u.FullName, u.Email, u.Username = fullName, email, username
	})
}

func (r *Users) UpdateAvatar(_ context.Context, id uint64, url string) error {
	return r.update(id, func(u *model.User) { u.AvatarURL = url })
}

func (r *Users) SetActiveVehicle(_ context.Context, id uint64, vehicleID *uint64) error {
	err := r.update(id, func(u *model.User) { u.ActiveVehicleID = vehicleID })
	if errors.Is(err, repository.ErrNotFound) {
		return nil
	}
	return err
}

// Delete cascades the same way the SQL repository does.
func (r *Users) Delete(_ context.Context, id uint64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.users[id]; !ok {
		return repository.ErrNotFound
	}
	for cid, c := range r.s.chargers {
		if c.OwnerID == id {
			r.s.deletePorts(cid)
			delete(r.s.chargers, cid)
		}
	}
	for vid, v := range r.s.vehicles {
		if v.OwnerID == id {
			r.s.clearActive(vid)
			delete(r.s.vehicles, vid)
		}
	}
	for sid, sub := range r.s.subs {
		if sub.OwnerID == id {
			delete(r.s.subs, sid)
		}
	}
	delete(r.s.users, id)
	return nil
}

func (s *Store) clearActive(vehicleID uint64) {
	for _, u := range s.users {
		if u.ActiveVehicleID != nil && *u.ActiveVehicleID == vehicleID {
			u.ActiveVehicleID = nil
		}
	}
}

// ---- vehicles ----

type Vehicles struct{ s *Store }

func (r *Vehicles) plateTaken(plate string, except uint64) bool {
	for _, v := range r.s.vehicles {
		if v.ID != except && v.LicensePlate == plate {
			return true
		}
	}
	return false
}

func (r *Vehicles) Create(_ context.Context, v *model.Vehicle) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.plateTaken(v.LicensePlate, 0) {
		return conflict("license_plate")
	}
	v.ID = r.s.id()
	v.CreatedAt, v.UpdatedAt = r.s.Now(), r.s.Now()
	cp := *v
	r.s.vehicles[v.ID] = &cp
	return nil
}

func (r *Vehicles) GetByID(_ context.Context, id uint64) (*model.Vehicle, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	v, ok := r.s.vehicles[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *v
	return &cp, nil
}

func (r *Vehicles) ListByOwner(_ context.Context, ownerID uint64) ([]*model.Vehicle, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []*model.Vehicle{}
	for _, v := range r.s.vehicles {
		if v.OwnerID == ownerID {
			cp := *v
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (r *Vehicles) Update(_ context.Context, v *model.Vehicle) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cur, ok := r.s.vehicles[v.ID]
	if !ok || cur.OwnerID != v.OwnerID {
		return repository.ErrNotFound
	}
	if r.plateTaken(v.LicensePlate, v.ID) {
		return conflict("license_plate")
	}
	v.CreatedAt, v.UpdatedAt = cur.CreatedAt, r.s.Now()
	cp := *v
	r.s.vehicles[v.ID] = &cp
	return nil
}

func (r *Vehicles) Delete(_ context.Context, id, ownerID uint64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	v, ok := r.s.vehicles[id]
	if !ok || v.OwnerID != ownerID {
		return repository.ErrNotFound
	}
	r.s.clearActive(id)
	delete(r.s.vehicles, id)
	return nil
}

// ---- chargers ----

type Chargers struct{ s *Store }

func (r *Chargers) Create(_ context.Context, c *model.Charger) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if c.Status == "" {
		c.Status = model.ChargerActive
	}
	c.ID = r.s.id()
	c.CreatedAt, c.UpdatedAt = r.s.Now(), r.s.Now()
	cp := *c
	r.s.chargers[c.ID] = &cp
	return nil
}

func (r *Chargers) GetByID(_ context.Context, id uint64) (*model.Charger, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.chargers[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (r *Chargers) ListByOwner(_ context.Context, ownerID uint64) ([]*model.Charger, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []*model.Charger{}
	for _, c := range r.s.chargers {
		if c.OwnerID == ownerID {
			cp := *c
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (r *Chargers) CountByOwner(_ context.Context, ownerID uint64) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for _, c := range r.s.chargers {
		if c.OwnerID == ownerID {
			n++
		}
	}
	return n, nil
}

func (r *Chargers) owned(id, ownerID uint64) (*model.Charger, error) {
	c, ok := r.s.chargers[id]
	if !ok || c.OwnerID != ownerID {
		return nil, repository.ErrNotFound
	}
	return c, nil
}

func (r *Chargers) Update(_ context.Context, c *model.Charger) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cur, err := r.owned(c.ID, c.OwnerID)
	if err != nil {
		return err
	}
	c.CreatedAt, c.UpdatedAt = cur.CreatedAt, r.s.Now()
	c.ImageURL = cur.ImageURL
	cp := *c
	r.s.chargers[c.ID] = &cp
	return nil
}

func (r *Chargers) SetStatus(_ context.Context, id, ownerID uint64, status model.ChargerStatus) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, err := r.owned(id, ownerID)
	if err != nil {
		return err
	}
	c.Status = status
	return nil
}

func (r *Chargers) SetImage(_ context.Context, id, ownerID uint64, url string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, err := r.owned(id, ownerID)
	if err != nil {
		return err
	}
	c.ImageURL = url
	return nil
}

// Delete removes the charger and every port under it, occupied or not.
func (r *Chargers) Delete(_ context.Context, id, ownerID uint64) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, err := r.owned(id, ownerID); err != nil {
		return 0, err
	}
	n := r.s.deletePorts(id)
	delete(r.s.chargers, id)
	return n, nil
}

func (s *Store) deletePorts(chargerID uint64) int64 {
	var n int64
	for pid, p := range s.ports {
		if p.ChargerID == chargerID {
			delete(s.ports, pid)
			n++
		}
	}
	delete(s.portSeq, chargerID)
	return n
}

const earthRadiusM = 6371008.8

// Haversine returns the great-circle distance in meters.
func Haversine(a, b model.Location) float64 {
	rad := math.Pi / 180
	dLat := (b.Lat - a.Lat) * rad
	dLng := (b.Lng - a.Lng) * rad
	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(a.Lat*rad)*math.Cos(b.Lat*rad)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusM * math.Asin(math.Sqrt(h))
}

func (r *Chargers) Nearby(_ context.Context, center model.Location, radiusM float64, limit int) ([]*model.Charger, error) {
	if limit <= 0 {
		limit = repository.NearbyDefaultLimit
	}
	if limit > repository.NearbyMaxLimit {
		limit = repository.NearbyMaxLimit
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []*model.Charger{}
	for _, c := range r.s.chargers {
		if c.Status != model.ChargerActive {
			continue
		}
		d := Haversine(center, c.Location)
		if d > radiusM {
			continue
		}
		cp := *c
		cp.DistanceM = &d
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if *out[i].DistanceM != *out[j].DistanceM {
			return *out[i].DistanceM < *out[j].DistanceM
		}
		return out[i].ID < out[j].ID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ---- ports ----

type Ports struct{ s *Store }

// Create numbers ports from a per-charger counter that only grows, so a
// number freed by a delete is never reused.
func (r *Ports) Create(_ context.Context, p *model.ChargerPort) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.chargers[p.ChargerID]; !ok {
		return repository.ErrNotFound
	}
	if p.Status == "" {
		p.Status = model.PortAvailable
	}
	seq := r.s.portSeq[p.ChargerID]
	for _, o := range r.s.ports {
		if o.ChargerID == p.ChargerID && o.PortNumber > seq {
			seq = o.PortNumber
		}
	}
	seq++
	r.s.portSeq[p.ChargerID] = seq
	p.PortNumber = seq
	p.ID = r.s.id()
	p.CreatedAt, p.UpdatedAt = r.s.Now(), r.s.Now()
	cp := *p
	r.s.ports[p.ID] = &cp
	return nil
}

func (r *Ports) GetByID(_ context.Context, id uint64) (*model.ChargerPort, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.ports[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *Ports) ListByCharger(_ context.Context, chargerID uint64) ([]*model.ChargerPort, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []*model.ChargerPort{}
	for _, p := range r.s.ports {
		if p.ChargerID == chargerID {
			cp := *p
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PortNumber < out[j].PortNumber })
	return out, nil
}

func (r *Ports) CountByCharger(_ context.Context, chargerID uint64) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for _, p := range r.s.ports {
		if p.ChargerID == chargerID {
			n++
		}
	}
	return n, nil
}

func (r *Ports) scoped(id, chargerID uint64) (*model.ChargerPort, error) {
	p, ok := r.s.ports[id]
	if !ok || p.ChargerID != chargerID {
		return nil, repository.ErrNotFound
	}
	return p, nil
}

func (r *Ports) Update(_ context.Context, p *model.ChargerPort) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cur, err := r.scoped(p.ID, p.ChargerID)
	if err != nil {
		return err
	}
	cur.ConnectorType, cur.MaxPowerKW, cur.PricePerKWh = p.ConnectorType, p.MaxPowerKW, p.PricePerKWh
	cur.UpdatedAt = r.s.Now()
	*p = *cur
	return nil
}

func (r *Ports) SetStatus(_ context.Context, id, chargerID uint64, status model.PortStatus) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, err := r.scoped(id, chargerID)
	if err != nil {
		return err
	}
	p.Status = status
	return nil
}

func (r *Ports) Delete(_ context.Context, id, chargerID uint64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, err := r.scoped(id, chargerID)
	if err != nil {
		return err
	}
	if p.Status == model.PortOccupied {
		return repository.ErrPortOccupied
	}
	delete(r.s.ports, id)
	return nil
}

// ---- plans ----

type Plans struct{ s *Store }

// Upsert inserts p or replaces the plan with the same name.
func (r *Plans) Upsert(_ context.Context, p *model.Plan) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if p.DurationDays <= 0 {
		p.DurationDays = 30
	}
	for id, o := range r.s.plans {
		if o.Name == p.Name {
			p.ID = id
			cp := *p
			r.s.plans[id] = &cp
			return nil
		}
	}
	p.ID = r.s.id()
	cp := *p
	r.s.plans[p.ID] = &cp
	return nil
}

func (r *Plans) List(_ context.Context, activeOnly bool) ([]*model.Plan, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []*model.Plan{}
	for _, p := range r.s.plans {
		if activeOnly && !p.IsActive {
			continue
		}
		cp := *p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Price < out[j].Price })
	return out, nil
}

func (r *Plans) GetByID(_ context.Context, id uint64) (*model.Plan, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.plans[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *Plans) GetActiveByID(ctx context.Context, id uint64) (*model.Plan, error) {
	p, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !p.IsActive {
		return nil, repository.ErrNotFound
	}
	return p, nil
}

// ---- subscriptions ----

type Subs struct{ s *Store }

func (r *Subs) withPlan(sub *model.Subscription) *model.Subscription {
	cp := *sub
	if p, ok := r.s.plans[sub.PlanID]; ok {
		pc := *p
		cp.Plan = &pc
	}
	return &cp
}

// Create enforces at most one active row per owner.
func (r *Subs) Create(_ context.Context, sub *model.Subscription) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if sub.Status == model.SubscriptionActive {
		for _, o := range r.s.subs {
			if o.OwnerID == sub.OwnerID && o.Status == model.SubscriptionActive {
				return conflict("active subscription")
			}
		}
	}
	sub.ID = r.s.id()
	sub.CreatedAt, sub.UpdatedAt = r.s.Now(), r.s.Now()
	cp := *sub
	cp.Plan = nil
	r.s.subs[sub.ID] = &cp
	return nil
}

func (r *Subs) GetActive(_ context.Context, ownerID uint64, now time.Time) (*model.Subscription, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, sub := range r.s.subs {
		if sub.OwnerID == ownerID && sub.Status == model.SubscriptionActive && sub.EndsAt.After(now) {
			return r.withPlan(sub), nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *Subs) HasActive(_ context.Context, ownerID uint64) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, sub := range r.s.subs {
		if sub.OwnerID == ownerID && sub.Status == model.SubscriptionActive {
			return true, nil
		}
	}
	return false, nil
}

func (r *Subs) ListByOwner(_ context.Context, ownerID uint64) ([]*model.Subscription, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []*model.Subscription{}
	for _, sub := range r.s.subs {
		if sub.OwnerID == ownerID {
			out = append(out, r.withPlan(sub))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (r *Subs) expire(now time.Time, match func(*model.Subscription) bool) int64 {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for _, sub := range r.s.subs {
		if sub.Status == model.SubscriptionActive && !sub.EndsAt.After(now) && match(sub) {
			sub.Status = model.SubscriptionExpired
			n++
		}
	}
	return n
}

func (r *Subs) ExpireStale(_ context.Context, now time.Time) (int64, error) {
	return r.expire(now, func(*model.Subscription) bool { return true }), nil
}

func (r *Subs) ExpireStaleForOwner(_ context.Context, ownerID uint64, now time.Time) (int64, error) {
	return r.expire(now, func(sub *model.Subscription) bool { return sub.OwnerID == ownerID }), nil
}

func (r *Subs) CancelActive(_ context.Context, ownerID uint64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, sub := range r.s.subs {
		if sub.OwnerID == ownerID && sub.Status == model.SubscriptionActive {
			sub.Status = model.SubscriptionCancelled
			return nil
		}
	}
	return repository.ErrNotFound
}

// Media records saved and deleted URLs without touching disk.
type Media struct {
	mu      sync.Mutex
	Saved   []string
	Deleted []string
	Err     error
}

func (m *Media) SaveImage(_ context.Context, prefix string, fh *multipart.FileHeader) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return "", m.Err
	}
	url := fmt.Sprintf("/media/%s/%d-%s", prefix, len(m.Saved)+1, fh.Filename)
	m.Saved = append(m.Saved, url)
	return url, nil
}

func (m *Media) Delete(_ context.Context, url string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Deleted = append(m.Deleted, url)
	return nil
}
