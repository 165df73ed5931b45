package room

import "context"

// Room is an opaque handle to a media room hosted by the provider.
type Room struct {
	Name string `json:"name"`
	URL  string `json:"url,omitempty"`
}

// Participant roles for access tokens.
const (
	RoleParticipant = "participant"
	RoleAgent       = "agent"
)

// Provider is the media room collaborator. Invoked during session start,
// before the pending -> ready transition.
type Provider interface {
	CreateRoom(ctx context.Context, sessionID string) (Room, error)
	IssueAccessToken(ctx context.Context, r Room, role string) (string, error)
	DeleteRoom(ctx context.Context, r Room) error
}
