package model

import (
	"encoding/json"
	"fmt"
)

// portObject mirrors Port for object-form decoding without recursing into
// Port.UnmarshalJSON.
type portObject struct {
	Port                     int    `json:"port"`
	Service                  string `json:"service,omitempty"`
	Protocol                 string `json:"protocol,omitempty"`
	Description              string `json:"description,omitempty"`
	Path                     string `json:"path,omitempty"`
	OnAutoForward            string `json:"onAutoForward,omitempty"`
	ConnectionStringTemplate string `json:"connectionStringTemplate,omitempty"`
}

// UnmarshalJSON accepts both port forms found in overlay metadata:
//
//	"ports": [5432]
//	"ports": [{"port": 5432, "service": "db", "description": "PostgreSQL"}]
//
// A bare number decodes into Port with only the port number set; defaults
// for Service and Protocol are filled in later by Normalize.
func (p *Port) UnmarshalJSON(data []byte) error {
	// Try the bare-integer form first. json.Number avoids float64
	// round-tripping for large values.
	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		v, err := n.Int64()
		if err != nil {
			return fmt.Errorf("invalid port number %s: %w", n, err)
		}
		*p = Port{Port: int(v)}
		return nil
	}

	// Fall back to the object form.
	var obj portObject
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("invalid port entry: %w", err)
	}
	*p = Port(obj)
	return nil
}
