// pkg/model/payload.go
package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// Payload is a structured detail map stored as JSONB.
type Payload map[string]interface{}

// Value implements driver.Valuer so payloads can be written to JSONB columns.
func (p Payload) Value() (driver.Value, error) {
	if p == nil {
		return nil, nil
	}
	return json.Marshal(p)
}

// Scan implements sql.Scanner for reading JSONB columns.
func (p *Payload) Scan(src interface{}) error {
	if src == nil {
		*p = nil
		return nil
	}

	var data []byte
	switch v := src.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into Payload", src)
	}

	return json.Unmarshal(data, p)
}
