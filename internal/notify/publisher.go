// Package notify publishes DID lifecycle events to downstream consumers.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/cenkalti/backoff/v4"
	"github.com/kaiacity/kaiapass/internal/logger"
	"github.com/kaiacity/kaiapass/internal/services"
	"go.uber.org/zap"
)

// DIDEvent is the message body sent for every confirmed DID write.
type DIDEvent struct {
	ID          string    `json:"id"`
	EventType   string    `json:"event_type"`
	Operation   string    `json:"operation"`
	Address     string    `json:"address"`
	DID         string    `json:"did"`
	ChainID     uint64    `json:"chain_id"`
	TxHash      string    `json:"tx_hash"`
	BlockNumber *uint64   `json:"block_number,omitempty"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// EventFromRecord builds the published event for a journaled transaction.
func EventFromRecord(r services.TransactionRecord) DIDEvent {
	return DIDEvent{
		ID:          r.ID.String(),
		EventType:   r.Event,
		Operation:   r.Operation,
		Address:     r.Address,
		DID:         services.DIDURI(r.ChainID, r.Address),
		ChainID:     r.ChainID,
		TxHash:      r.TxHash,
		BlockNumber: r.BlockNumber,
		OccurredAt:  r.CreatedAt,
	}
}

//go:generate mockgen -source=publisher.go -destination=../mocks/mock_notify.go -package=mocks

// SQSAPI is the part of the SQS client the publisher uses.
type SQSAPI interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// SQSPublisher sends DID events to a queue. It implements
// services.TransactionObserver.
type SQSPublisher struct {
	client     SQSAPI
	queueURL   string
	maxRetries uint64
	interval   time.Duration
	logger     *zap.Logger
}

// PublisherOption configures an SQSPublisher.
type PublisherOption func(*SQSPublisher)

// WithSendRetries sets how many times a failed send is retried and the
// initial backoff between attempts.
func WithSendRetries(n uint64, initial time.Duration) PublisherOption {
	return func(p *SQSPublisher) {
		p.maxRetries = n
		p.interval = initial
	}
}

// NewSQSPublisher creates a publisher for queueURL.
func NewSQSPublisher(client SQSAPI, queueURL string, opts ...PublisherOption) *SQSPublisher {
	p := &SQSPublisher{
		client:     client,
		queueURL:   queueURL,
		maxRetries: 2,
		interval:   200 * time.Millisecond,
		logger:     logger.Log.Named("notify"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ObserveTransaction publishes the event for r.
func (p *SQSPublisher) ObserveTransaction(ctx context.Context, r services.TransactionRecord) error {
	return p.Publish(ctx, EventFromRecord(r))
}

// Publish sends event, retrying transient failures with exponential backoff.
func (p *SQSPublisher) Publish(ctx context.Context, event DIDEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal DID event: %w", err)
	}

	input := &sqs.SendMessageInput{
		QueueUrl:    aws.String(p.queueURL),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"EventType": {DataType: aws.String("String"), StringValue: aws.String(event.EventType)},
			"Address":   {DataType: aws.String("String"), StringValue: aws.String(event.Address)},
			"ChainID":   {DataType: aws.String("Number"), StringValue: aws.String(strconv.FormatUint(event.ChainID, 10))},
		},
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = p.interval
	retry := backoff.WithContext(backoff.WithMaxRetries(policy, p.maxRetries), ctx)

	var messageID string
	err = backoff.RetryNotify(func() error {
		out, err := p.client.SendMessage(ctx, input)
		if err != nil {
			return err
		}
		messageID = aws.ToString(out.MessageId)
		return nil
	}, retry, func(err error, wait time.Duration) {
		p.logger.Warn("SQS send failed, retrying",
			zap.String("event_id", event.ID),
			zap.Duration("wait", wait),
			zap.Error(err),
		)
	})
	if err != nil {
		return fmt.Errorf("failed to send message to SQS: %w", err)
	}

	p.logger.Info("DID event published",
		zap.String("event_id", event.ID),
		zap.String("event_type", event.EventType),
		zap.String("message_id", messageID),
	)
	return nil
}

// NoopPublisher only logs events. It is used when no queue is configured.
type NoopPublisher struct {
	logger *zap.Logger
}

// NewNoopPublisher creates a NoopPublisher.
func NewNoopPublisher() *NoopPublisher {
	return &NoopPublisher{logger: logger.Log.Named("notify")}
}

// ObserveTransaction implements services.TransactionObserver.
func (p *NoopPublisher) ObserveTransaction(_ context.Context, r services.TransactionRecord) error {
	event := EventFromRecord(r)
	p.logger.Debug("DID event",
		zap.String("event_type", event.EventType),
		zap.String("did", event.DID),
		zap.String("tx_hash", event.TxHash),
	)
	return nil
}
