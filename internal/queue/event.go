// Package queue carries domain events over RabbitMQ: payload types, the
// publisher used by handlers and the consumer that records them.
package queue

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const (
	TypeSubscriptionStarted    = "subscription.started"
	TypeChargerDeleted         = "charger.deleted"
	TypePasswordResetRequested = "account.password_reset_requested"
	TypeAccountDeleted         = "account.deleted"
)

// Event is the envelope written to the queue.
type Event struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	OccurredAt time.Time       `json:"occurred_at"`
	UserID     uint64          `json:"user_id"`
	Payload    json.RawMessage `json:"payload"`
}

func NewEvent(eventType string, userID uint64, payload any) (Event, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}
	return Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		OccurredAt: time.Now().UTC(),
		UserID:     userID,
		Payload:    body,
	}, nil
}

type SubscriptionStarted struct {
	SubscriptionID uint64    `json:"subscription_id"`
	PlanID         uint64    `json:"plan_id"`
	PlanName       string    `json:"plan_name"`
	EndsAt         time.Time `json:"ends_at"`
}

type ChargerDeleted struct {
	ChargerID    uint64 `json:"charger_id"`
	PortsDeleted int64  `json:"ports_deleted"`
}

// PasswordResetRequested is consumed by the mail relay, which delivers OTP.
type PasswordResetRequested struct {
	Email     string    `json:"email"`
	Username  string    `json:"username"`
	OTP       string    `json:"otp"`
	ExpiresAt time.Time `json:"expires_at"`
}

type AccountDeleted struct {
	Username string `json:"username"`
}
