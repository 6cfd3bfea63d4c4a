package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"go.uber.org/zap"
)

// Supported queue providers.
const (
	QueueProviderAWSSQS = "aws-sqs"
	QueueProviderAWSSNS = "aws-sns"
	QueueProviderGCP    = "gcp"
)

// queueMessage is one encoded output plus the attributes queues index it by.
type queueMessage struct {
	Body       []byte
	Attributes map[string]string
}

// queueSender abstracts provider-specific queue senders.
type queueSender interface {
	Send(ctx context.Context, msg queueMessage) error
	Close() error
}

// Queue publishes each run's output as a single message to a cloud queue.
type Queue struct {
	name     string
	provider string
	sender   queueSender
	log      *zap.Logger
}

func newQueue(name, provider string, sender queueSender, log *zap.Logger) *Queue {
	if log == nil {
		log = zap.NewNop()
	}
	return &Queue{name: name, provider: provider, sender: sender, log: log}
}

func (q *Queue) Name() string { return q.name }

func (q *Queue) Write(ctx context.Context, out Output) error {
	body, err := json.Marshal(out)
	if err != nil {
		return fmt.Errorf("marshal output: %w", err)
	}

	msg := queueMessage{
		Body: body,
		Attributes: map[string]string{
			"run_id":      out.RunID,
			"story_count": strconv.Itoa(len(out.Stories)),
		},
	}
	if err := q.sender.Send(ctx, msg); err != nil {
		return fmt.Errorf("queue provider %s send failed: %w", q.provider, err)
	}
	q.log.Debug("queue message delivered",
		zap.String("sink", q.name),
		zap.String("provider", q.provider),
		zap.String("run_id", out.RunID))
	return nil
}

func (q *Queue) Close() error {
	return q.sender.Close()
}

// newQueueSink creates a queue sink for the configured provider.
func newQueueSink(ctx context.Context, cfg Config, log *zap.Logger) (Sink, error) {
	if cfg.Queue == nil {
		return nil, fmt.Errorf("sink %q missing queue configuration", cfg.ID)
	}

	var (
		sender queueSender
		err    error
	)
	switch cfg.Queue.Provider {
	case QueueProviderAWSSQS:
		sender, err = newAWSSQSSender(ctx, cfg.Queue.SQS)
	case QueueProviderAWSSNS:
		sender, err = newAWSSNSSender(ctx, cfg.Queue.SNS)
	case QueueProviderGCP:
		sender, err = newGCPPubSubSender(ctx, cfg.Queue.GCP)
	default:
		err = fmt.Errorf("queue provider %q is not supported", cfg.Queue.Provider)
	}
	if err != nil {
		return nil, err
	}

	return newQueue(cfg.ID, cfg.Queue.Provider, sender, log), nil
}
