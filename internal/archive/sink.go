// Package archive pushes completed transcripts to durable storage once a
// session reaches a terminal state. Delivery is fire-and-forget from the
// core's perspective; retry and durability are the sink's responsibility.
package archive

import (
	"context"

	"github.com/hireloop/hireloop/internal/models"
)

type Sink interface {
	// Archive stores the ordered fragment sequence plus session metadata and
	// returns the location of the stored object.
	Archive(ctx context.Context, s *models.Session, fragments []models.TranscriptFragment) (string, error)
}
