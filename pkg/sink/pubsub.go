package sink

import (
	"context"
	"fmt"

	"cloud.google.com/go/pubsub"
	"google.golang.org/api/option"
)

type gcpPubSubSender struct {
	client *pubsub.Client
	topic  *pubsub.Topic
}

// newGCPPubSubSender builds a Pub/Sub sender for the configured topic.
func newGCPPubSubSender(ctx context.Context, cfg *GCPConfig) (queueSender, error) {
	if cfg == nil {
		return nil, fmt.Errorf("gcp queue configuration is missing")
	}

	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	client, err := pubsub.NewClient(ctx, cfg.ProjectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("create pubsub client: %w", err)
	}

	return &gcpPubSubSender{client: client, topic: client.Topic(cfg.Topic)}, nil
}

func (s *gcpPubSubSender) Send(ctx context.Context, msg queueMessage) error {
	res := s.topic.Publish(ctx, &pubsub.Message{Data: msg.Body, Attributes: msg.Attributes})
	if _, err := res.Get(ctx); err != nil {
		return fmt.Errorf("send message to pubsub: %w", err)
	}
	return nil
}

func (s *gcpPubSubSender) Close() error {
	s.topic.Stop()
	return s.client.Close()
}
