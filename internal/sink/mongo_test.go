package sink

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type fakeCollection struct {
	docs    []interface{}
	ordered bool
	err     error
}

func (f *fakeCollection) InsertMany(_ context.Context, documents []interface{}, opts ...*options.InsertManyOptions) (*mongo.InsertManyResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	for _, o := range opts {
		if o.Ordered != nil {
			f.ordered = *o.Ordered
		}
	}
	f.docs = append(f.docs, documents...)
	return &mongo.InsertManyResult{}, nil
}

func TestMongoSinkEmit(t *testing.T) {
	t.Parallel()

	coll := &fakeCollection{}
	s := &MongoSink{collection: coll, runID: "run-1", targetID: testTarget.ID}

	for _, b := range sampleBatches() {
		if err := s.Emit(context.Background(), b); err != nil {
			t.Fatalf("Emit() error = %v", err)
		}
	}
	if len(coll.docs) != 5 || !coll.ordered {
		t.Fatalf("inserted %d docs (ordered=%v), want 5 ordered", len(coll.docs), coll.ordered)
	}

	first := coll.docs[0].(mongoDocument)
	if first.ParentID != nil || first.RunID != "run-1" || first.TargetID != testTarget.ID {
		t.Errorf("first document = %+v", first)
	}
	reply := coll.docs[1].(mongoDocument)
	if reply.ParentID == nil || *reply.ParentID != 1 {
		t.Errorf("reply parent = %v, want 1", reply.ParentID)
	}

	if err := s.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if err := s.Emit(context.Background(), nil); !errors.Is(err, ErrClosed) {
		t.Errorf("Emit() after Close error = %v, want ErrClosed", err)
	}
}

func TestMongoSinkInsertError(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	s := &MongoSink{collection: &fakeCollection{err: boom}}
	if err := s.Emit(context.Background(), sampleBatches()[1]); !errors.Is(err, boom) {
		t.Errorf("Emit() error = %v, want boom", err)
	}
}

func TestMongoDocumentsStoredAt(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	docs := mongoDocuments("r", "t", sampleBatches()[1], now)
	if got := docs[0].(mongoDocument).StoredAt; !got.Equal(now) {
		t.Errorf("StoredAt = %v, want %v", got, now)
	}
}

func TestParseMongoURI(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		uri            string
		wantClient     string
		wantDatabase   string
		wantCollection string
		wantErr        bool
	}{
		{
			name:           "collection parameter is removed",
			uri:            "mongodb://localhost:27017/crawl?collection=bili&w=majority",
			wantClient:     "mongodb://localhost:27017/crawl?w=majority",
			wantDatabase:   "crawl",
			wantCollection: "bili",
		},
		{
			name:           "default collection",
			uri:            "mongodb://localhost/crawl",
			wantClient:     "mongodb://localhost/crawl",
			wantDatabase:   "crawl",
			wantCollection: DefaultMongoCollection,
		},
		{
			name:    "missing database",
			uri:     "mongodb://localhost:27017",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			client, db, coll, err := parseMongoURI(tt.uri)
			if tt.wantErr {
				if err == nil {
					t.Error("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("parseMongoURI() error = %v", err)
			}
			if client != tt.wantClient || db != tt.wantDatabase || coll != tt.wantCollection {
				t.Errorf("parseMongoURI() = %q, %q, %q", client, db, coll)
			}
		})
	}
}
