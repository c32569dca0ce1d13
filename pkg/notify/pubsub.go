// pkg/notify/pubsub.go
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/minimartlabs/minimart-backend/pkg/config"
	"github.com/minimartlabs/minimart-backend/pkg/logger"
)

const publishTimeout = 10 * time.Second

var errProjectIDRequired = errors.New("gcp project id is required")

// PubSubPublisher publishes order events to a Cloud Pub/Sub topic.
type PubSubPublisher struct {
	client    *pubsub.Client
	publisher *pubsub.Publisher
	logg      *logger.Logger
}

// NewPubSubPublisher creates a Pub/Sub v2 client bound to the configured
// order events topic.
func NewPubSubPublisher(ctx context.Context, gcp config.GCPConfig, cfg config.PubSubConfig, logg *logger.Logger) (*PubSubPublisher, error) {
	if strings.TrimSpace(gcp.ProjectID) == "" {
		return nil, errProjectIDRequired
	}
	topic := strings.TrimSpace(cfg.OrderEventsTopic)
	if topic == "" {
		return nil, errors.New("order events topic is required")
	}

	psClient, err := pubsub.NewClient(ctx, gcp.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	p := &PubSubPublisher{
		client:    psClient,
		publisher: psClient.Publisher(topicResourceName(gcp.ProjectID, topic)),
		logg:      logg,
	}

	if logg != nil {
		logg.Info(ctx, "order events publisher initialized")
	}
	return p, nil
}

// Publish serializes the event and hands it to the topic. Failures are
// logged and otherwise dropped; the caller's work has already committed.
func (p *PubSubPublisher) Publish(ctx context.Context, event OrderEvent) {
	if p == nil || p.publisher == nil {
		return
	}

	data, err := json.Marshal(event)
	if err != nil {
		p.logError(ctx, event, err)
		return
	}

	result := p.publisher.Publish(ctx, &pubsub.Message{
		Data: data,
		Attributes: map[string]string{
			"event":     event.Event,
			"orderCode": event.OrderCode,
		},
	})

	go func() {
		waitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
		defer cancel()
		if _, err := result.Get(waitCtx); err != nil {
			p.logError(waitCtx, event, err)
		}
	}()
}

func (p *PubSubPublisher) logError(ctx context.Context, event OrderEvent, err error) {
	if p.logg == nil {
		return
	}
	ctx = p.logg.WithFields(ctx, map[string]any{
		"event":     event.Event,
		"orderCode": event.OrderCode,
	})
	p.logg.Error(ctx, "publishing order event", err)
}

// Close flushes outstanding messages and releases client resources.
func (p *PubSubPublisher) Close() error {
	if p == nil {
		return nil
	}
	if p.publisher != nil {
		p.publisher.Stop()
	}
	if p.client != nil {
		return p.client.Close()
	}
	return nil
}

func topicResourceName(projectID, name string) string {
	if strings.HasPrefix(name, "projects/") && strings.Contains(name, "/topics/") {
		return name
	}
	return fmt.Sprintf("projects/%s/topics/%s", projectID, name)
}
