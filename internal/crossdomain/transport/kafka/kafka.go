// Package kafka adapts the cross-domain sync transport onto Kafka topics.
// Each domain consumes its own inbox topic (trust.sync.<domain>); publishing
// to a remote means producing to that remote's inbox. The record headers
// carry the origin domain and its authority key, which is the transport
// authentication layer the sync service double-checks on receipt.
package kafka

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	"trustgate/internal/crossdomain"
	id "trustgate/pkg/domain"
)

const (
	topicPrefix        = "trust.sync."
	headerOriginDomain = "origin-domain"
	headerAuthority    = "origin-authority"
)

// TopicFor returns the inbox topic for a domain.
func TopicFor(domain id.DomainID) string {
	return topicPrefix + domain.String()
}

// Transport produces sync payloads to remote inbox topics.
type Transport struct {
	client      *kgo.Client
	localDomain id.DomainID
	authority   crossdomain.AuthorityKey
	logger      *slog.Logger
}

// NewTransport builds a producing transport. localDomain and authority
// identify this ledger to its peers and are stamped on every record.
func NewTransport(brokers []string, localDomain id.DomainID, authority crossdomain.AuthorityKey, logger *slog.Logger) (*Transport, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers are required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ProducerLinger(0),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	return &Transport{
		client:      client,
		localDomain: localDomain,
		authority:   authority,
		logger:      logger,
	}, nil
}

// EnsureTopic creates the local inbox topic if it does not exist.
func (t *Transport) EnsureTopic(ctx context.Context) error {
	adm := kadm.NewClient(t.client)
	resps, err := adm.CreateTopics(ctx, 1, 1, nil, TopicFor(t.localDomain))
	if err != nil {
		return fmt.Errorf("create inbox topic: %w", err)
	}
	for _, resp := range resps {
		if resp.Err != nil && !errors.Is(resp.Err, kerr.TopicAlreadyExists) {
			return fmt.Errorf("create inbox topic %s: %w", resp.Topic, resp.Err)
		}
	}
	return nil
}

// Deliver produces the payload to the remote domain's inbox topic. The
// returned handle is topic/partition/offset of the committed record.
func (t *Transport) Deliver(ctx context.Context, domain id.DomainID, payload []byte) (crossdomain.MessageHandle, error) {
	rec := &kgo.Record{
		Topic: TopicFor(domain),
		Value: payload,
		Headers: []kgo.RecordHeader{
			{Key: headerOriginDomain, Value: []byte(t.localDomain)},
			{Key: headerAuthority, Value: []byte(t.authority)},
		},
	}
	results := t.client.ProduceSync(ctx, rec)
	if err := results.FirstErr(); err != nil {
		return "", fmt.Errorf("produce sync message: %w", err)
	}
	produced, err := results.First()
	if err != nil {
		return "", fmt.Errorf("produce sync message: %w", err)
	}
	handle := fmt.Sprintf("%s/%d/%d", produced.Topic, produced.Partition, produced.Offset)
	return crossdomain.MessageHandle(handle), nil
}

// Close releases the underlying client.
func (t *Transport) Close() {
	t.client.Close()
}

var _ crossdomain.Transport = (*Transport)(nil)

// Receiver is the inbound half of the sync service, invoked per record.
type Receiver interface {
	Receive(ctx context.Context, origin id.DomainID, authority crossdomain.AuthorityKey, payload []byte) error
}

// Consumer drains the local inbox topic and feeds the sync service.
type Consumer struct {
	client   *kgo.Client
	receiver Receiver
	logger   *slog.Logger
}

// NewConsumer subscribes to the local domain's inbox topic with a stable
// consumer group so restarts resume from the committed offset.
func NewConsumer(brokers []string, localDomain id.DomainID, receiver Receiver, logger *slog.Logger) (*Consumer, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers are required")
	}
	if receiver == nil {
		return nil, fmt.Errorf("receiver is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ConsumeTopics(TopicFor(localDomain)),
		kgo.ConsumerGroup("trustgate-sync-"+localDomain.String()),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka consumer: %w", err)
	}
	return &Consumer{client: client, receiver: receiver, logger: logger}, nil
}

// Run polls until the context is cancelled. Rejected messages (untrusted
// sender, malformed payload) are logged and skipped; they are delivery
// attacks or peer bugs, not reasons to stall the inbox.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		fetches := c.client.PollFetches(ctx)
		if fetches.IsClientClosed() {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		fetches.EachError(func(topic string, partition int32, err error) {
			c.logger.ErrorContext(ctx, "sync fetch error",
				"topic", topic,
				"partition", partition,
				"error", err,
			)
		})
		fetches.EachRecord(func(rec *kgo.Record) {
			origin, authority := recordIdentity(rec)
			if err := c.receiver.Receive(ctx, origin, authority, rec.Value); err != nil {
				c.logger.WarnContext(ctx, "sync message rejected",
					"origin", origin,
					"offset", rec.Offset,
					"error", err,
				)
			}
		})
	}
}

// Close releases the underlying client.
func (c *Consumer) Close() {
	c.client.Close()
}

func recordIdentity(rec *kgo.Record) (id.DomainID, crossdomain.AuthorityKey) {
	var origin id.DomainID
	var authority crossdomain.AuthorityKey
	for _, h := range rec.Headers {
		switch h.Key {
		case headerOriginDomain:
			origin = id.DomainID(h.Value)
		case headerAuthority:
			authority = crossdomain.AuthorityKey(h.Value)
		}
	}
	return origin, authority
}
