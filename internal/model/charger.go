package model

import (
	"errors"
	"time"
)

type ChargerStatus string

const (
	ChargerActive      ChargerStatus = "active"
	ChargerInactive    ChargerStatus = "inactive"
	ChargerMaintenance ChargerStatus = "maintenance"
)

func (s ChargerStatus) Valid() bool {
	return s == ChargerActive || s == ChargerInactive || s == ChargerMaintenance
}

// Toggled flips active to inactive; every other status returns to active.
func (s ChargerStatus) Toggled() ChargerStatus {
	if s == ChargerActive {
		return ChargerInactive
	}
	return ChargerActive
}

type ChargerType string

const (
	ChargerAC ChargerType = "AC"
	ChargerDC ChargerType = "DC"
)

func (t ChargerType) Valid() bool { return t == ChargerAC || t == ChargerDC }

type Location struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

var (
	ErrLatitudeRange  = errors.New("latitude must be between -90 and 90")
	ErrLongitudeRange = errors.New("longitude must be between -180 and 180")
)

func (l Location) Validate() error {
	if l.Lat < -90 || l.Lat > 90 {
		return ErrLatitudeRange
	}
	if l.Lng < -180 || l.Lng > 180 {
		return ErrLongitudeRange
	}
	return nil
}

// Charger is a charging site owned by a charger_owner. Ports hang off it.
type Charger struct {
	ID                 uint64        `json:"id"`
	OwnerID            uint64        `json:"owner_id"`
	Name               string        `json:"name"`
	Address            string        `json:"address"`
	AddressDetails     string        `json:"address_details,omitempty"`
	Location           Location      `json:"location"`
	Status             ChargerStatus `json:"status"`
	ChargerType        ChargerType   `json:"charger_type"`
	ConnectorTypes     ConnectorList `json:"connector_types"`
	MaxChargingPowerKW float64       `json:"max_charging_power_kw"`
	PricePerKWh        float64       `json:"price_per_kwh"`
	ImageURL           string        `json:"image_url,omitempty"`
	AvgRating          float64       `json:"avg_rating"`
	RatingCount        uint32        `json:"rating_count"`
	TotalSessions      uint32        `json:"total_sessions"`
	CreatedAt          time.Time     `json:"created_at"`
	UpdatedAt          time.Time     `json:"updated_at"`

	// DistanceM is set only on nearby results.
	DistanceM *float64 `json:"distance_m,omitempty"`
}
