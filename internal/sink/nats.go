package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/nao1215/commentcrawl/internal/model"
)

// DefaultNATSSubject is used when the uri has no subject path.
const DefaultNATSSubject = "commentcrawl.comments"

// natsPublisher is the part of *nats.Conn the sink uses.
type natsPublisher interface {
	Publish(subject string, data []byte) error
	FlushWithContext(ctx context.Context) error
	Drain() error
}

// BatchMessage is the JSON payload published for every batch.
type BatchMessage struct {
	RunID    string                `json:"run_id"`
	TargetID string                `json:"target_id"`
	URL      string                `json:"url"`
	Records  []model.CommentRecord `json:"records"`
}

// NATSSink publishes every batch as one message.
type NATSSink struct {
	conn    natsPublisher
	subject string
	target  model.Target
	runID   string
	logger  *slog.Logger
	closed  bool
}

// OpenNATS connects to the server in uri and publishes to the subject named by its path.
func OpenNATS(_ context.Context, uri string, opts Options) (*NATSSink, error) {
	opts = opts.withDefaults()

	server, subject, err := parseNATSURI(uri)
	if err != nil {
		return nil, err
	}

	nc, err := nats.Connect(server,
		nats.Name("commentcrawl"),
		nats.MaxReconnects(5),
		nats.ReconnectWait(2*time.Second),
		nats.RetryOnFailedConnect(false),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect %s: %w", server, err)
	}

	opts.Logger.Debug("nats sink ready", "server", server, "subject", subject)
	return newNATSSink(nc, subject, opts), nil
}

func newNATSSink(conn natsPublisher, subject string, opts Options) *NATSSink {
	return &NATSSink{conn: conn, subject: subject, target: opts.Target, runID: opts.RunID, logger: opts.Logger}
}

// Emit publishes batch and waits until the server has received it.
func (s *NATSSink) Emit(ctx context.Context, batch []model.CommentRecord) error {
	if s.closed {
		return ErrClosed
	}
	data, err := json.Marshal(BatchMessage{
		RunID:    s.runID,
		TargetID: s.target.ID,
		URL:      s.target.URL,
		Records:  batch,
	})
	if err != nil {
		return err
	}
	if err := s.conn.Publish(s.subject, data); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", s.subject, err)
	}
	if err := s.conn.FlushWithContext(ctx); err != nil {
		return fmt.Errorf("failed to flush %s: %w", s.subject, err)
	}
	return nil
}

// Close drains the connection.
func (s *NATSSink) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.conn.Drain()
}

// parseNATSURI splits uri into the server url and the subject.
func parseNATSURI(uri string) (server, subject string, err error) {
	u, err := url.Parse(uri)
	if err != nil {
		return "", "", fmt.Errorf("failed to parse nats uri: %w", err)
	}
	subject = strings.ReplaceAll(strings.Trim(u.Path, "/"), "/", ".")
	if subject == "" {
		subject = DefaultNATSSubject
	}
	u.Path = ""
	u.RawPath = ""
	return u.String(), subject, nil
}
