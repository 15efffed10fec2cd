// Package pubsub implements messaging.Publisher on a Google Pub/Sub topic.
package pubsub

import (
	"context"
	"fmt"

	"cloud.google.com/go/pubsub"
	"github.com/airbusgeo/planet-ingester/service"
)

// Publisher sends messages to a Pub/Sub topic
type Publisher struct {
	client *pubsub.Client
	topic  *pubsub.Topic
}

// NewPublisher creates a Publisher on {projectID}/{topicID}
func NewPublisher(ctx context.Context, projectID, topicID string) (*Publisher, error) {
	client, err := pubsub.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("NewPublisher.NewClient: %w", err)
	}
	return &Publisher{client: client, topic: client.Topic(topicID)}, nil
}

// Publish implements messaging.Publisher
func (p *Publisher) Publish(ctx context.Context, data ...[]byte) error {
	var results []*pubsub.PublishResult
	for _, d := range data {
		results = append(results, p.topic.Publish(ctx, &pubsub.Message{Data: d}))
	}
	var err error
	for _, r := range results {
		if _, e := r.Get(ctx); e != nil {
			err = service.MergeErrors(true, err, fmt.Errorf("Publish.Get: %w", e))
		}
	}
	return err
}

// Stop flushes the pending messages and releases the topic
func (p *Publisher) Stop() {
	p.topic.Stop()
	p.client.Close()
}
