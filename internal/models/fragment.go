package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Speaker identifies who produced a transcript fragment.
const (
	SpeakerAgent       = "agent"
	SpeakerParticipant = "participant"
)

// TranscriptFragment is one utterance segment pushed by the assigned worker.
// Fragments live in Mongo with a retention TTL; the ordered sequence is
// archived to durable storage when the session reaches a terminal state.
type TranscriptFragment struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	SessionID string             `bson:"session_id" json:"session_id"`
	Seq       uint64             `bson:"seq" json:"seq"`

	Speaker  string `bson:"speaker" json:"speaker"` // agent|participant
	Text     string `bson:"text" json:"text"`
	OffsetMS int64  `bson:"offset_ms" json:"offset_ms"` // offset from session start

	Timestamp time.Time `bson:"timestamp" json:"timestamp"`
	ExpiresAt time.Time `bson:"expires_at" json:"expires_at"` // for TTL index
}
