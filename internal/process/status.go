package process

import "time"

// Status is a point-in-time snapshot of a managed service, safe to copy.
type Status struct {
	Name      string    `json:"name"`
	Running   bool      `json:"running"`
	PID       int       `json:"pid"`
	StartedAt time.Time `json:"started_at"`
	StoppedAt time.Time `json:"stopped_at"`
	ExitCode  int       `json:"exit_code"`
	ExitErr   error     `json:"-"`
	Restarts  int       `json:"restarts"`
	State     string    `json:"state"` // stopped, starting, running, stopping, failed
}
