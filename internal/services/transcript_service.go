package services

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/hireloop/hireloop/internal/broadcast"
	"github.com/hireloop/hireloop/internal/models"
	mongorepo "github.com/hireloop/hireloop/internal/repositories/mongo"
	"github.com/hireloop/hireloop/internal/utils"
)

// TranscriptService ingests fragments reported by the assigned worker: each
// fragment is fanned out live through the hub and buffered in mongo until the
// terminal archive pass picks it up.
type TranscriptService interface {
	Report(ctx context.Context, sessionID, speaker, text string, offsetMS int64) (*models.TranscriptFragment, error)
	ListBySession(ctx context.Context, orgID, sessionID string, limit int64) ([]models.TranscriptFragment, error)
}

type transcriptService struct {
	sessions  SessionService
	fragments mongorepo.FragmentRepository
	hub       *broadcast.Hub
	retention time.Duration
	log       *logrus.Entry
}

func NewTranscriptService(sessions SessionService, fragments mongorepo.FragmentRepository, hub *broadcast.Hub, retention time.Duration, log *logrus.Entry) TranscriptService {
	if retention <= 0 {
		retention = 7 * 24 * time.Hour
	}
	if log == nil {
		log = logrus.NewEntry(logrus.New())
	}
	return &transcriptService{
		sessions:  sessions,
		fragments: fragments,
		hub:       hub,
		retention: retention,
		log:       log,
	}
}

func (s *transcriptService) Report(ctx context.Context, sessionID, speaker, text string, offsetMS int64) (*models.TranscriptFragment, error) {
	const op = "TranscriptService.Report"

	if sessionID == "" || text == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "session_id and text are required", nil)
	}
	if speaker != models.SpeakerAgent && speaker != models.SpeakerParticipant {
		return nil, utils.E(utils.CodeInvalidArgument, op, "speaker must be agent or participant", nil)
	}

	sess, err := s.sessions.Get(ctx, "", sessionID)
	if err != nil {
		return nil, err
	}
	if sess.State != models.StateActive {
		return nil, utils.E(utils.CodeConflict, op,
			"session is "+string(sess.State)+", fragments only flow while active", nil)
	}

	now := time.Now().UTC()
	seq := s.hub.Publish(sessionID, broadcast.Fragment{
		Speaker:   speaker,
		Text:      text,
		OffsetMS:  offsetMS,
		Timestamp: now,
	})

	frag := &models.TranscriptFragment{
		SessionID: sessionID,
		Seq:       seq,
		Speaker:   speaker,
		Text:      text,
		OffsetMS:  offsetMS,
		Timestamp: now,
		ExpiresAt: now.Add(s.retention),
	}
	if err := s.fragments.Insert(ctx, frag); err != nil {
		// Live fan-out already happened; losing the buffered copy only affects
		// the archive, so log and keep going.
		s.log.WithError(err).WithFields(logrus.Fields{
			"session_id": sessionID,
			"seq":        seq,
		}).Warn("fragment buffer insert failed")
	}
	return frag, nil
}

func (s *transcriptService) ListBySession(ctx context.Context, orgID, sessionID string, limit int64) ([]models.TranscriptFragment, error) {
	const op = "TranscriptService.ListBySession"

	if _, err := s.sessions.Get(ctx, orgID, sessionID); err != nil {
		return nil, err
	}
	out, err := s.fragments.ListBySession(ctx, sessionID, limit)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to list fragments", err)
	}
	return out, nil
}
