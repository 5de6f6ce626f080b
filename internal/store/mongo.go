package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type mongoRunDoc struct {
	ID          string    `bson:"_id"`
	DocumentURI string    `bson:"document_uri"`
	RunPath     string    `bson:"run_path"`
	Status      Status    `bson:"status"`
	Error       string    `bson:"error"`
	CreatedAt   time.Time `bson:"created_at"`
	UpdatedAt   time.Time `bson:"updated_at"`
}

type mongoStore struct {
	client *mongo.Client
	coll   *mongo.Collection
}

func openMongo(ctx context.Context, cfg *MongoConfig) (Store, error) {
	if cfg == nil {
		return nil, errors.New("store: mongo configuration is required")
	}
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("store: connecting to mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(ctx)
		return nil, fmt.Errorf("store: pinging mongo: %w", err)
	}
	collName := cfg.Collection
	if collName == "" {
		collName = "runs"
	}
	coll := client.Database(cfg.Database).Collection(collName)
	return &mongoStore{client: client, coll: coll}, nil
}

func (s *mongoStore) CreateRun(ctx context.Context, r *Run) error {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	r.UpdatedAt = r.CreatedAt
	if r.Status == "" {
		r.Status = StatusRunning
	}
	doc := mongoRunDoc{
		ID: r.ID, DocumentURI: r.DocumentURI, RunPath: r.RunPath,
		Status: r.Status, Error: r.Error, CreatedAt: r.CreatedAt, UpdatedAt: r.UpdatedAt,
	}
	if _, err := s.coll.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("store: inserting run %q: %w", r.ID, err)
	}
	return nil
}

func (s *mongoStore) UpdateStatus(ctx context.Context, id string, status Status, errMsg string) error {
	res, err := s.coll.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"status": status, "error": errMsg, "updated_at": time.Now().UTC()}},
	)
	if err != nil {
		return fmt.Errorf("store: updating run %q: %w", id, err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *mongoStore) GetRun(ctx context.Context, id string) (*Run, error) {
	var doc mongoRunDoc
	if err := s.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("store: getting run %q: %w", id, err)
	}
	return docToRun(doc), nil
}

func (s *mongoStore) ListRuns(ctx context.Context, limit, offset int) ([]*Run, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(int64(limit)).
		SetSkip(int64(offset))
	cur, err := s.coll.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("store: listing runs: %w", err)
	}
	defer cur.Close(ctx)

	var out []*Run
	for cur.Next(ctx) {
		var doc mongoRunDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("store: decoding run: %w", err)
		}
		out = append(out, docToRun(doc))
	}
	return out, cur.Err()
}

func (s *mongoStore) Close() error {
	return s.client.Disconnect(context.Background())
}

func docToRun(doc mongoRunDoc) *Run {
	return &Run{
		ID:          doc.ID,
		DocumentURI: doc.DocumentURI,
		RunPath:     doc.RunPath,
		Status:      doc.Status,
		Error:       doc.Error,
		CreatedAt:   doc.CreatedAt,
		UpdatedAt:   doc.UpdatedAt,
	}
}
