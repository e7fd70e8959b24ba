package notify

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
)

// snsSubjectLimit is the longest subject SNS accepts
const snsSubjectLimit = 100

// SNSClient is the interface for SNS operations
type SNSClient interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// SNSChannel mails notifications through an SNS topic the administrator's
// address is subscribed to
type SNSChannel struct {
	client   SNSClient
	topicARN string
}

// NewSNSChannel creates a new SNSChannel
func NewSNSChannel(client SNSClient, topicARN string) *SNSChannel {
	return &SNSChannel{client: client, topicARN: topicARN}
}

// Name identifies the channel in logs
func (c *SNSChannel) Name() string {
	return "mail"
}

// Send publishes the notification to the topic
func (c *SNSChannel) Send(ctx context.Context, subject, body string) error {
	if len(subject) > snsSubjectLimit {
		subject = subject[:snsSubjectLimit]
	}
	_, err := c.client.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(c.topicARN),
		Subject:  aws.String(subject),
		Message:  aws.String(body),
	})
	if err != nil {
		return fmt.Errorf("failed to publish to %s: %w", c.topicARN, err)
	}
	return nil
}
