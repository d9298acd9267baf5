// internal/popularity/publisher.go
package popularity

import (
	"context"

	"marketplace-engine/internal/common/aws"
)

const reportEventType = "popularity.recomputed"

// Publisher announces a finished recompute to downstream consumers.
type Publisher interface {
	PublishReport(ctx context.Context, report *Report) error
}

type SNSPublisher struct {
	client   *aws.SNSClient
	topicARN string
}

func NewSNSPublisher(client *aws.SNSClient, topicARN string) *SNSPublisher {
	return &SNSPublisher{client: client, topicARN: topicARN}
}

func (p *SNSPublisher) PublishReport(ctx context.Context, report *Report) error {
	_, err := p.client.PublishJSON(ctx, p.topicARN, "Listing popularity recomputed", report, map[string]string{
		"eventType": reportEventType,
		"runId":     report.RunID,
	})
	return err
}
