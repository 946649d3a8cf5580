// Package messaging provides a NATS client wrapper for pub/sub messaging
// between the triage engine and its decoupled collaborators: submission
// intake, safety alerts, and the positive-language side detector.
package messaging

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
)

// NATS subject patterns used by the triage services.
const (
	SubjectSubmission     = "safety.submission"      // new learner submissions to triage
	SubjectVerdict        = "safety.verdict"         // + .<submission_id> (routing outcome)
	SubjectAlert          = "safety.alert"           // flagged results for human review
	SubjectPositiveCheck  = "safety.positive.check"  // fire-and-forget positivity requests
	SubjectPositiveResult = "safety.positive.result" // positivity verdicts
)

// NATSClient wraps the NATS connection with helper methods for pub/sub.
type NATSClient struct {
	conn *nats.Conn
	mu   sync.Mutex
	subs map[string]*nats.Subscription
}

// NATSConfig holds NATS connection settings.
type NATSConfig struct {
	URL           string        // nats://localhost:4222
	Name          string        // client name for identification
	ReconnectWait time.Duration // time between reconnect attempts
	MaxReconnects int           // max reconnect attempts (-1 for infinite)
}

// DefaultNATSConfig returns sensible defaults.
func DefaultNATSConfig() NATSConfig {
	return NATSConfig{
		URL:           "nats://localhost:4222",
		Name:          "triage",
		ReconnectWait: 2 * time.Second,
		MaxReconnects: -1, // infinite reconnects
	}
}

// NewNATSClient connects to NATS with the given config and returns a ready
// client. It returns an error if the initial connection fails.
func NewNATSClient(config NATSConfig) (*NATSClient, error) {
	opts := []nats.Option{
		nats.Name(config.Name),
		nats.ReconnectWait(config.ReconnectWait),
		nats.MaxReconnects(config.MaxReconnects),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Printf("[nats] disconnected: %v", err)
			} else {
				log.Printf("[nats] disconnected")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Printf("[nats] reconnected to %s", nc.ConnectedUrl())
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			log.Printf("[nats] connection closed")
		}),
	}

	nc, err := nats.Connect(config.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	log.Printf("[nats] connected to %s", nc.ConnectedUrl())

	return &NATSClient{
		conn: nc,
		subs: make(map[string]*nats.Subscription),
	}, nil
}

// Publish sends data to the given NATS subject.
func (c *NATSClient) Publish(subject string, data []byte) error {
	return c.conn.Publish(subject, data)
}

// Subscribe registers a handler for the given subject and stores the
// subscription internally for later cleanup.
func (c *NATSClient) Subscribe(subject string, handler func(msg *nats.Msg)) error {
	sub, err := c.conn.Subscribe(subject, handler)
	if err != nil {
		return fmt.Errorf("nats subscribe %s: %w", subject, err)
	}

	c.mu.Lock()
	c.subs[subject] = sub
	c.mu.Unlock()

	return nil
}

// SubscribeSubmissions subscribes to incoming learner submissions.
func (c *NATSClient) SubscribeSubmissions(handler func(data []byte)) error {
	return c.Subscribe(SubjectSubmission, func(msg *nats.Msg) {
		handler(msg.Data)
	})
}

// PublishSubmission publishes a submission for triage.
func (c *NATSClient) PublishSubmission(data []byte) error {
	return c.Publish(SubjectSubmission, data)
}

// PublishVerdict publishes the routing outcome for a specific submission.
func (c *NATSClient) PublishVerdict(submissionID string, data []byte) error {
	return c.Publish(SubjectVerdict+"."+submissionID, data)
}

// PublishAlert publishes a flagged result for human review.
func (c *NATSClient) PublishAlert(data []byte) error {
	return c.Publish(SubjectAlert, data)
}

// SubscribeAlerts subscribes to flagged-result alerts.
func (c *NATSClient) SubscribeAlerts(handler func(data []byte)) error {
	return c.Subscribe(SubjectAlert, func(msg *nats.Msg) {
		handler(msg.Data)
	})
}

// PublishPositiveCheck publishes a fire-and-forget positivity check request.
func (c *NATSClient) PublishPositiveCheck(data []byte) error {
	return c.Publish(SubjectPositiveCheck, data)
}

// SubscribePositiveCheck subscribes to positivity check requests.
func (c *NATSClient) SubscribePositiveCheck(handler func(data []byte)) error {
	return c.Subscribe(SubjectPositiveCheck, func(msg *nats.Msg) {
		handler(msg.Data)
	})
}

// PublishPositiveResult publishes a positivity verdict.
func (c *NATSClient) PublishPositiveResult(data []byte) error {
	return c.Publish(SubjectPositiveResult, data)
}

// SubscribePositiveResult subscribes to positivity verdicts.
func (c *NATSClient) SubscribePositiveResult(handler func(data []byte)) error {
	return c.Subscribe(SubjectPositiveResult, func(msg *nats.Msg) {
		handler(msg.Data)
	})
}

// Close drains all active subscriptions and closes the NATS connection.
func (c *NATSClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for subject, sub := range c.subs {
		if err := sub.Drain(); err != nil {
			log.Printf("[nats] drain %s: %v", subject, err)
		}
	}
	c.subs = make(map[string]*nats.Subscription)

	if err := c.conn.Drain(); err != nil {
		log.Printf("[nats] connection drain: %v", err)
	}

	log.Printf("[nats] client closed")
}
