package model

import (
	"strings"
	"time"
)

// Vehicle belongs to exactly one vehicle_owner.
type Vehicle struct {
	ID                 uint64        `json:"id"`
	OwnerID            uint64        `json:"owner_id"`
	Company            string        `json:"company"`
	Model              string        `json:"model"`
	LaunchYear         int           `json:"launch_year"`
	LicensePlate       string        `json:"license_plate"`
	BatteryCapacityKWh float64       `json:"battery_capacity_kwh"`
	MaxChargingPowerKW float64       `json:"max_charging_power_kw"`
	ConnectorTypes     ConnectorList `json:"connector_types"`
	CreatedAt          time.Time     `json:"created_at"`
	UpdatedAt          time.Time     `json:"updated_at"`
}

// NormalizePlate upper-cases a plate and strips surrounding space.
func NormalizePlate(s string) string { return strings.ToUpper(strings.TrimSpace(s)) }
