package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	gcs "cloud.google.com/go/storage"

	"github.com/hireloop/hireloop/internal/models"
)

// transcriptDoc is the archived object layout: session metadata followed by
// the full ordered fragment sequence.
type transcriptDoc struct {
	Session    *models.Session             `json:"session"`
	Fragments  []models.TranscriptFragment `json:"fragments"`
	ArchivedAt time.Time                   `json:"archived_at"`
}

type GCSSink struct {
	client *gcs.Client
	bucket string
}

func NewGCSSink(ctx context.Context, bucket string) (*GCSSink, error) {
	c, err := gcs.NewClient(ctx)
	if err != nil {
		return nil, err
	}
	return &GCSSink{client: c, bucket: bucket}, nil
}

func (s *GCSSink) Close() error { return s.client.Close() }

func (s *GCSSink) Archive(ctx context.Context, sess *models.Session, fragments []models.TranscriptFragment) (string, error) {
	objectName := fmt.Sprintf("transcripts/%s/%s.json", sess.OrgID, sess.ID)
	obj := s.client.Bucket(s.bucket).Object(objectName)

	w := obj.NewWriter(ctx)
	w.ContentType = "application/json"

	doc := transcriptDoc{
		Session:    sess,
		Fragments:  fragments,
		ArchivedAt: time.Now().UTC(),
	}
	if err := json.NewEncoder(w).Encode(doc); err != nil {
		_ = w.Close()
		return "", err
	}
	if err := w.Close(); err != nil {
		return "", err
	}

	return fmt.Sprintf("gs://%s/%s", s.bucket, objectName), nil
}
