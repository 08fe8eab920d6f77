package mockoon

import (
	"errors"
	"time"
)

// Collection is the store collection holding environment records.
const Collection = "environments"

// Status is the lifecycle state of an environment.
type Status string

const (
	StatusStopped  Status = "stopped"
	StatusStarting Status = "starting"
	StatusRunning  Status = "running"
	StatusError    Status = "error"
)

var (
	ErrNotFound       = errors.New("environment not found")
	ErrAlreadyRunning = errors.New("environment already running")
	ErrPortInUse      = errors.New("port already assigned to another environment")
	ErrNoFreePort     = errors.New("no free port in range")
	ErrInvalidPort    = errors.New("port outside the allowed range")
)

// Record is a persisted environment.
type Record struct {
	ID          string       `json:"id"`
	SpecID      string       `json:"specId"`
	Name        string       `json:"name"`
	Port        int          `json:"port"`
	Status      Status       `json:"status"`
	Error       string       `json:"error,omitempty"`
	Routes      int          `json:"routes"`
	Environment *Environment `json:"environment,omitempty"`
	CreatedAt   time.Time    `json:"createdAt"`
	UpdatedAt   time.Time    `json:"updatedAt"`
	StartedAt   *time.Time   `json:"startedAt,omitempty"`
	StoppedAt   *time.Time   `json:"stoppedAt,omitempty"`
}

// Summary returns a copy without the environment body.
func (r *Record) Summary() *Record {
	c := *r
	c.Environment = nil
	return &c
}

// Running reports whether the record is starting or running.
func (r *Record) Running() bool {
	return r.Status == StatusRunning || r.Status == StatusStarting
}

// CreateRequest creates an environment from a stored specification. Port 0
// allocates one.
type CreateRequest struct {
	SpecID string `json:"specId" validate:"required"`
	Name   string `json:"name" validate:"omitempty,max=200"`
	Port   int    `json:"port" validate:"omitempty,min=1,max=65535"`
	// Start runs the environment right after creation.
	Start bool `json:"start"`
}

// StatusSummary describes the runner and environment counts.
type StatusSummary struct {
	Runner    string `json:"runner"`
	Total     int    `json:"total"`
	Running   int    `json:"running"`
	Stopped   int    `json:"stopped"`
	Errored   int    `json:"errored"`
	PortStart int    `json:"portStart"`
	PortEnd   int    `json:"portEnd"`
}
