package sink

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/nao1215/commentcrawl/internal/model"
)

// DefaultMongoCollection is used when the uri has no collection parameter.
const DefaultMongoCollection = "comments"

// mongoDocument is the stored form of one row.
type mongoDocument struct {
	RunID     string    `bson:"run_id"`
	TargetID  string    `bson:"target_id"`
	ID        int64     `bson:"id"`
	Contents  string    `bson:"contents"`
	ParentID  *int64    `bson:"parent_id"`
	PubDate   string    `bson:"pubdate"`
	LikeCount string    `bson:"like_count"`
	StoredAt  time.Time `bson:"stored_at"`
}

// inserter is the part of *mongo.Collection the sink uses.
type inserter interface {
	InsertMany(ctx context.Context, documents []interface{}, opts ...*options.InsertManyOptions) (*mongo.InsertManyResult, error)
}

// MongoSink inserts rows into a MongoDB collection.
type MongoSink struct {
	client     *mongo.Client
	collection inserter
	runID      string
	targetID   string
	logger     *slog.Logger
	closed     bool
}

// OpenMongo connects to the deployment in uri. The database comes from the
// uri path and the collection from its "collection" query parameter.
func OpenMongo(ctx context.Context, uri string, opts Options) (*MongoSink, error) {
	opts = opts.withDefaults()

	clientURI, dbName, collName, err := parseMongoURI(uri)
	if err != nil {
		return nil, err
	}

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(clientURI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	opts.Logger.Debug("mongo sink ready", "database", dbName, "collection", collName)
	return &MongoSink{
		client:     client,
		collection: client.Database(dbName).Collection(collName),
		runID:      opts.RunID,
		targetID:   opts.Target.ID,
		logger:     opts.Logger,
	}, nil
}

// Emit inserts batch as ordered documents.
func (s *MongoSink) Emit(ctx context.Context, batch []model.CommentRecord) error {
	if s.closed {
		return ErrClosed
	}
	docs := mongoDocuments(s.runID, s.targetID, batch, time.Now().UTC())
	if _, err := s.collection.InsertMany(ctx, docs, options.InsertMany().SetOrdered(true)); err != nil {
		return fmt.Errorf("failed to insert comments: %w", err)
	}
	return nil
}

// Close disconnects the client.
func (s *MongoSink) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	if s.client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

func mongoDocuments(runID, targetID string, batch []model.CommentRecord, now time.Time) []interface{} {
	docs := make([]interface{}, len(batch))
	for i, r := range batch {
		doc := mongoDocument{
			RunID:     runID,
			TargetID:  targetID,
			ID:        r.ID,
			Contents:  r.Contents,
			PubDate:   r.PubDate,
			LikeCount: r.LikeCount,
			StoredAt:  now,
		}
		if r.IsReply() {
			parent := int64(r.ParentID)
			doc.ParentID = &parent
		}
		docs[i] = doc
	}
	return docs
}

// parseMongoURI splits uri into the driver connection string, the database
// name and the collection name. The collection parameter is removed because
// the driver rejects unknown options.
func parseMongoURI(uri string) (clientURI, database, collection string, err error) {
	u, err := url.Parse(uri)
	if err != nil {
		return "", "", "", fmt.Errorf("failed to parse mongodb uri: %w", err)
	}
	database = strings.Trim(u.Path, "/")
	if database == "" {
		return "", "", "", fmt.Errorf("%w: mongodb uri needs a database path: %s", ErrUnsupportedOutput, u.Redacted())
	}

	q := u.Query()
	collection = q.Get("collection")
	if collection == "" {
		collection = DefaultMongoCollection
	}
	q.Del("collection")
	u.RawQuery = q.Encode()

	return u.String(), database, collection, nil
}
