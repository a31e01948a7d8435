package model

import "time"

type PortStatus string

const (
	PortAvailable   PortStatus = "available"
	PortOccupied    PortStatus = "occupied"
	PortFaulty      PortStatus = "faulty"
	PortUnavailable PortStatus = "unavailable"
)

func (s PortStatus) Valid() bool {
	switch s {
	case PortAvailable, PortOccupied, PortFaulty, PortUnavailable:
		return true
	}
	return false
}

// ChargerPort is owned through its charger. PortNumber is assigned by the
// store and never reused within a charger.
type ChargerPort struct {
	ID            uint64        `json:"id"`
	ChargerID     uint64        `json:"charger_id"`
	PortNumber    uint32        `json:"port_number"`
	ConnectorType ConnectorType `json:"connector_type"`
	MaxPowerKW    float64       `json:"max_power_kw"`
	PricePerKWh   float64       `json:"price_per_kwh"`
	Status        PortStatus    `json:"status"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}
