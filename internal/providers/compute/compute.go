package compute

import (
	"context"
	"time"
)

// Handle identifies one launched conversational worker.
type Handle struct {
	ID         string    `json:"id"`
	Endpoint   string    `json:"endpoint"`
	LaunchedAt time.Time `json:"launched_at"`
}

// Spec is the launch configuration for a worker. Standby workers are launched
// from the pool's base spec; session-specific behavior reaches the worker
// later over its callback channel.
type Spec struct {
	Image    string `json:"image,omitempty"`
	Region   string `json:"region,omitempty"`
	Language string `json:"language,omitempty"`
}

// Launcher provisions and tears down conversational workers. Provisioning can
// take multiple seconds; callers must pass a bounded context.
type Launcher interface {
	Provision(ctx context.Context, spec Spec) (Handle, error)
	// Reset returns a worker to a clean idle state so it can be reused.
	Reset(ctx context.Context, h Handle) error
	Terminate(ctx context.Context, h Handle) error
}
