package model

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

type ConnectorType string

const (
	ConnectorType1   ConnectorType = "Type 1"
	ConnectorType2   ConnectorType = "Type 2"
	ConnectorCCS1    ConnectorType = "CCS1"
	ConnectorCCS2    ConnectorType = "CCS2"
	ConnectorCHAdeMO ConnectorType = "CHAdeMO"
	ConnectorGBT     ConnectorType = "GB/T"
	ConnectorTesla   ConnectorType = "Tesla"
)

var connectorTypes = []ConnectorType{
	ConnectorType1, ConnectorType2, ConnectorCCS1, ConnectorCCS2,
	ConnectorCHAdeMO, ConnectorGBT, ConnectorTesla,
}

func ConnectorTypes() []ConnectorType {
	out := make([]ConnectorType, len(connectorTypes))
	copy(out, connectorTypes)
	return out
}

func (c ConnectorType) Valid() bool {
	for _, known := range connectorTypes {
		if c == known {
			return true
		}
	}
	return false
}

// ConnectorList is one or more connector types. JSON input may be an array or
// a single comma-separated string; the column is stored as a JSON array.
type ConnectorList []ConnectorType

func (l *ConnectorList) UnmarshalJSON(b []byte) error {
	var single string
	if err := json.Unmarshal(b, &single); err == nil {
		*l = splitConnectors(single)
		return nil
	}
	var many []string
	if err := json.Unmarshal(b, &many); err != nil {
		return fmt.Errorf("connector_type must be a string or an array of strings")
	}
	out := make(ConnectorList, 0, len(many))
	for _, s := range many {
		out = append(out, splitConnectors(s)...)
	}
	*l = out
	return nil
}

func splitConnectors(s string) ConnectorList {
	var out ConnectorList
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, ConnectorType(p))
		}
	}
	return out
}

// Validate requires at least one entry, every entry known, no duplicates.
func (l ConnectorList) Validate() error {
	if len(l) == 0 {
		return errors.New("at least one connector type is required")
	}
	seen := make(map[ConnectorType]bool, len(l))
	for _, c := range l {
		if !c.Valid() {
			return fmt.Errorf("unknown connector type %q", string(c))
		}
		if seen[c] {
			return fmt.Errorf("duplicate connector type %q", string(c))
		}
		seen[c] = true
	}
	return nil
}

func (l ConnectorList) Value() (driver.Value, error) {
	if l == nil {
		l = ConnectorList{}
	}
	b, err := json.Marshal([]ConnectorType(l))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (l *ConnectorList) Scan(src any) error {
	var b []byte
	switch v := src.(type) {
	case nil:
		*l = nil
		return nil
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return fmt.Errorf("connector list: unsupported column type %T", src)
	}
	var out []ConnectorType
	if err := json.Unmarshal(b, &out); err != nil {
		return fmt.Errorf("connector list: %w", err)
	}
	*l = out
	return nil
}
