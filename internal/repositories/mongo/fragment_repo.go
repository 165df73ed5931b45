package mongo

import (
	"context"
	"time"

	"github.com/hireloop/hireloop/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type FragmentRepository interface {
	Insert(ctx context.Context, f *models.TranscriptFragment) error
	ListBySession(ctx context.Context, sessionID string, limit int64) ([]models.TranscriptFragment, error)
	DeleteBySession(ctx context.Context, sessionID string) error
}

type fragmentRepo struct {
	col *mongo.Collection
}

func NewFragmentRepo(db *mongo.Database) FragmentRepository {
	return &fragmentRepo{col: db.Collection("transcript_fragments")}
}

func (r *fragmentRepo) Insert(ctx context.Context, f *models.TranscriptFragment) error {
	if f.Timestamp.IsZero() {
		f.Timestamp = time.Now().UTC()
	}
	_, err := r.col.InsertOne(ctx, f)
	return err
}

func (r *fragmentRepo) ListBySession(ctx context.Context, sessionID string, limit int64) ([]models.TranscriptFragment, error) {
	if limit <= 0 {
		limit = 5000
	}

	cur, err := r.col.Find(ctx,
		bson.M{"session_id": sessionID},
		options.Find().
			SetSort(bson.D{{Key: "seq", Value: 1}}).
			SetLimit(limit),
	)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.TranscriptFragment
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *fragmentRepo) DeleteBySession(ctx context.Context, sessionID string) error {
	_, err := r.col.DeleteMany(ctx, bson.M{"session_id": sessionID})
	return err
}
