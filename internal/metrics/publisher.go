// Package metrics publishes count metrics to CloudWatch.
package metrics

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
)

// CloudWatchClient is the interface for CloudWatch operations
type CloudWatchClient interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// Publisher publishes metrics to one CloudWatch namespace
type Publisher struct {
	client     CloudWatchClient
	namespace  string
	dimensions []types.Dimension
}

// NewPublisher creates a new Publisher. Dimensions are attached to every
// datum, e.g. {"Function": "provisioner"}.
func NewPublisher(client CloudWatchClient, namespace string, dimensions map[string]string) *Publisher {
	p := &Publisher{client: client, namespace: namespace}
	for name, value := range dimensions {
		p.dimensions = append(p.dimensions, types.Dimension{
			Name:  aws.String(name),
			Value: aws.String(value),
		})
	}
	return p
}

// PublishMetric publishes a single count datum
func (p *Publisher) PublishMetric(ctx context.Context, name string, value float64) error {
	_, err := p.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
		Namespace: aws.String(p.namespace),
		MetricData: []types.MetricDatum{
			{
				MetricName: aws.String(name),
				Value:      aws.Float64(value),
				Unit:       types.StandardUnitCount,
				Dimensions: p.dimensions,
			},
		},
	})
	return err
}
