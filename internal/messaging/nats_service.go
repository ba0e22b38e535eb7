package messaging

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/koemaki/koemaki/internal/events"
)

// NATS subjects for synthesis events
const (
	SubjectAttempts = "koemaki.synthesis.attempts"
	SubjectProgress = "koemaki.synthesis.progress"
)

// AttemptPublisher publishes synthesis attempt records to NATS so other
// systems (dashboards, batch monitors) can follow a render in flight. Its
// Report and Attempt methods satisfy the pipeline's Reporter interface.
type AttemptPublisher struct {
	conn    *nats.Conn
	url     string
	subject string

	maxReconnect  int
	reconnectWait time.Duration
}

// PublisherConfig holds NATS publisher configuration
type PublisherConfig struct {
	URL           string
	Subject       string
	MaxReconnect  int
	ReconnectWait time.Duration
}

// NewAttemptPublisher creates a publisher; call Connect before publishing.
func NewAttemptPublisher(cfg PublisherConfig) *AttemptPublisher {
	url := cfg.URL
	if url == "" {
		url = os.Getenv("NATS_URL")
	}
	if url == "" {
		url = nats.DefaultURL
	}
	subject := cfg.Subject
	if subject == "" {
		subject = SubjectAttempts
	}
	wait := cfg.ReconnectWait
	if wait <= 0 {
		wait = 2 * time.Second
	}
	return &AttemptPublisher{
		url:           url,
		subject:       subject,
		maxReconnect:  cfg.MaxReconnect,
		reconnectWait: wait,
	}
}

// Connect establishes connection to NATS server
func (p *AttemptPublisher) Connect() error {
	log.Printf("🔌 Connecting to NATS at %s", p.url)

	maxReconnects := p.maxReconnect
	if maxReconnects == 0 {
		maxReconnects = -1 // Retry indefinitely
	}

	opts := []nats.Option{
		nats.Name("koemaki"),
		nats.ReconnectWait(p.reconnectWait),
		nats.MaxReconnects(maxReconnects),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Printf("⚠️  NATS disconnected: %v", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Printf("🔄 NATS reconnected to %s", nc.ConnectedUrl())
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			log.Println("🔌 NATS connection closed")
		}),
	}

	conn, err := nats.Connect(p.url, opts...)
	if err != nil {
		return fmt.Errorf("failed to connect to NATS: %w", err)
	}

	p.conn = conn
	log.Printf("✅ Connected to NATS server at %s", conn.ConnectedUrl())
	return nil
}

// PublishAttempt publishes one attempt record
func (p *AttemptPublisher) PublishAttempt(a *events.Attempt) error {
	if p.conn == nil {
		return fmt.Errorf("NATS connection not established")
	}

	data, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("failed to marshal attempt: %w", err)
	}

	if err := p.conn.Publish(p.subject, data); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", p.subject, err)
	}
	return nil
}

// Report implements the pipeline Reporter interface: progress messages go
// out on the progress subject as plain text. Failures are logged and
// swallowed.
func (p *AttemptPublisher) Report(msg string) {
	if p.conn == nil {
		return
	}
	if err := p.conn.Publish(SubjectProgress, []byte(msg)); err != nil {
		log.Printf("⚠️  Failed to publish progress message: %v", err)
	}
}

// Attempt implements the pipeline Reporter interface. Publish failures are
// logged and swallowed; reporting never fails a synthesis.
func (p *AttemptPublisher) Attempt(a *events.Attempt) {
	if err := p.PublishAttempt(a); err != nil {
		log.Printf("⚠️  Failed to publish attempt %s: %v", a.UUID, err)
	}
}

// IsConnected reports whether the NATS connection is up
func (p *AttemptPublisher) IsConnected() bool {
	return p.conn != nil && p.conn.IsConnected()
}

// Close drains and closes the connection
func (p *AttemptPublisher) Close() {
	if p.conn != nil {
		if err := p.conn.Drain(); err != nil {
			log.Printf("⚠️  NATS drain failed: %v", err)
		}
		p.conn = nil
	}
}
