package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"cloud.google.com/go/pubsub"
	"go.uber.org/zap"
)

// PubSubNotifier publishes run completions to a Google Cloud Pub/Sub
// topic. Authentication uses Application Default Credentials.
type PubSubNotifier struct {
	client *pubsub.Client
	topic  *pubsub.Topic
	logger *zap.Logger
}

var _ Notifier = (*PubSubNotifier)(nil)

// NewPubSubNotifier creates a Pub/Sub client and verifies the topic
// exists, failing fast on misconfiguration.
func NewPubSubNotifier(ctx context.Context, projectID, topicID string, logger *zap.Logger) (*PubSubNotifier, error) {
	if projectID == "" || topicID == "" {
		return nil, fmt.Errorf("pubsub project id and topic id are required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	client, err := pubsub.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("create pubsub client: %w", err)
	}
	topic := client.Topic(topicID)
	exists, err := topic.Exists(ctx)
	if err != nil {
		if cerr := client.Close(); cerr != nil {
			logger.Warn("close pubsub client after topic check failure", zap.Error(cerr))
		}
		return nil, fmt.Errorf("check pubsub topic %q: %w", topicID, err)
	}
	if !exists {
		if cerr := client.Close(); cerr != nil {
			logger.Warn("close pubsub client after topic check failure", zap.Error(cerr))
		}
		return nil, fmt.Errorf("pubsub topic %q does not exist in project %q", topicID, projectID)
	}
	return &PubSubNotifier{client: client, topic: topic, logger: logger}, nil
}

// Publish marshals the message to JSON and publishes it, blocking until
// the server acknowledges.
func (n *PubSubNotifier) Publish(ctx context.Context, msg RunCompletion) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal run completion: %w", err)
	}
	result := n.topic.Publish(ctx, &pubsub.Message{
		Data:       data,
		Attributes: map[string]string{"run_id": msg.RunID},
	})
	id, err := result.Get(ctx)
	if err != nil {
		return fmt.Errorf("publish run completion: %w", err)
	}
	n.logger.Debug("run completion published",
		zap.String("run_id", msg.RunID),
		zap.String("message_id", id),
	)
	return nil
}

// Close flushes the topic and releases the client.
func (n *PubSubNotifier) Close() error {
	n.topic.Stop()
	return n.client.Close()
}
