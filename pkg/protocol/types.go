// Package protocol defines the JSON-RPC contract between amgp and external
// component executables, and a Serve helper for component authors.
//
// Messages are framed with Content-Length headers on the plugin's stdin and
// stdout.
package protocol

import (
	"encoding/json"
	"fmt"
)

const (
	MethodIdentity     = "amgp.identity"
	MethodCapabilities = "amgp.capabilities"
	MethodPing         = "amgp.ping"
	MethodShutdown     = "amgp.shutdown"
)

type Identity struct {
	Name string `json:"name"`
	UID  string `json:"uid"`
}

// TimeFormat carries one resolution tag or an ordered list of them. A single
// tag is encoded as a bare string.
type TimeFormat []string

func (f TimeFormat) MarshalJSON() ([]byte, error) {
	if len(f) == 1 {
		return json.Marshal(f[0])
	}
	return json.Marshal([]string(f))
}

func (f *TimeFormat) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*f = TimeFormat{single}
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return fmt.Errorf("time_format must be a string or a list of strings: %w", err)
	}
	*f = list
	return nil
}

type Capability struct {
	Description string              `json:"description"`
	Options     map[string][]string `json:"options,omitempty"`
	TimeFormat  TimeFormat          `json:"time_format"`
	Fill        bool                `json:"fill,omitempty"`
}

type CapabilitiesResult struct {
	Capabilities map[string]Capability `json:"capabilities"`
}

type PingResult struct {
	Status string `json:"status"`
}
