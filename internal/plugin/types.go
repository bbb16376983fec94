package plugin

import "time"

type State string

const (
	StateStopped  State = "stopped"
	StateStarting State = "starting"
	StateReady    State = "ready"
	StateError    State = "error"
)

type ClientStats struct {
	Name         string    `json:"name"`
	State        State     `json:"state"`
	RequestCount int64     `json:"request_count"`
	ErrorCount   int64     `json:"error_count"`
	LastRequest  time.Time `json:"last_request,omitempty"`
}

type Stats struct {
	Path         string        `json:"path"`
	State        State         `json:"state"`
	Breaker      BreakerState  `json:"breaker"`
	RequestCount int64         `json:"request_count"`
	ErrorCount   int64         `json:"error_count"`
	StartedAt    time.Time     `json:"started_at,omitempty"`
	LastRequest  time.Time     `json:"last_request,omitempty"`
	LastErrorMsg string        `json:"last_error_msg,omitempty"`
	Uptime       time.Duration `json:"uptime,omitempty"`
}
