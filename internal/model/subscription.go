package model

import "time"

// Plan is reference data. A nil limit means unlimited.
type Plan struct {
	ID                 uint64    `json:"id"`
	Name               string    `json:"name"`
	Price              float64   `json:"price"`
	MaxChargers        *uint32   `json:"max_chargers"`
	MaxPortsPerCharger *uint32   `json:"max_ports_per_charger"`
	Description        string    `json:"description"`
	IsActive           bool      `json:"is_active"`
	DurationDays       int       `json:"duration_days"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// AllowsAnotherCharger reports whether an owner holding current chargers may
// create one more.
func (p *Plan) AllowsAnotherCharger(current int64) bool {
	return withinLimit(p.MaxChargers, current)
}

// AllowsAnotherPort is the per-charger equivalent of AllowsAnotherCharger.
func (p *Plan) AllowsAnotherPort(current int64) bool {
	return withinLimit(p.MaxPortsPerCharger, current)
}

func withinLimit(limit *uint32, current int64) bool {
	if limit == nil {
		return true
	}
	return current < int64(*limit)
}

type SubscriptionStatus string

const (
	SubscriptionActive    SubscriptionStatus = "active"
	SubscriptionPaused    SubscriptionStatus = "paused"
	SubscriptionCancelled SubscriptionStatus = "cancelled"
	SubscriptionExpired   SubscriptionStatus = "expired"
)

type PaymentStatus string

const (
	PaymentSuccess PaymentStatus = "success"
	PaymentFailed  PaymentStatus = "failed"
	PaymentPending PaymentStatus = "pending"
)

type Subscription struct {
	ID                uint64             `json:"id"`
	OwnerID           uint64             `json:"owner_id"`
	PlanID            uint64             `json:"plan_id"`
	Status            SubscriptionStatus `json:"status"`
	StartsAt          time.Time          `json:"starts_at"`
	EndsAt            time.Time          `json:"ends_at"`
	LastPaymentAt     *time.Time         `json:"last_payment_at,omitempty"`
	LastPaymentStatus PaymentStatus      `json:"last_payment_status,omitempty"`
	CreatedAt         time.Time          `json:"created_at"`
	UpdatedAt         time.Time          `json:"updated_at"`

	Plan *Plan `json:"plan,omitempty"`
}

// Entitled reports whether the subscription grants capacity at now. The
// status alone is not enough; ends_at must still be in the future.
func (s *Subscription) Entitled(now time.Time) bool {
	return s != nil && s.Status == SubscriptionActive && s.EndsAt.After(now)
}
