package queue

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
)

const (
	// sqsWaitSeconds enables long polling so the worker loop does not
	// spin on an empty queue.
	sqsWaitSeconds = 10
	// sqsVisibilitySeconds keeps a received job invisible long enough
	// for a full window analysis; an abandoned job reappears after it.
	sqsVisibilitySeconds = 3600
)

// SQSQueue is the AWS-backed job queue.
type SQSQueue struct {
	client   *sqs.Client
	queueURL string
}

// NewSQSQueue constructs an SQS-backed queue for the given queue URL.
func NewSQSQueue(ctx context.Context, queueURL, region string) (*SQSQueue, error) {
	if strings.TrimSpace(queueURL) == "" {
		return nil, fmt.Errorf("sqs queue url is required")
	}

	var loadOpts []func(*awsconfig.LoadOptions) error
	if region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return &SQSQueue{
		client:   sqs.NewFromConfig(cfg),
		queueURL: queueURL,
	}, nil
}

// Send delivers a job to the configured SQS queue.
func (q *SQSQueue) Send(ctx context.Context, job BatchJob) error {
	payload, err := EncodeJob(job)
	if err != nil {
		return fmt.Errorf("encode sqs job: %w", err)
	}

	_, err = q.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(q.queueURL),
		MessageBody: aws.String(string(payload)),
	})
	if err != nil {
		return fmt.Errorf("sqs send message: %w", err)
	}
	return nil
}

// Receive long-polls for up to max messages.
func (q *SQSQueue) Receive(ctx context.Context, max int) ([]Message, error) {
	if max <= 0 {
		max = 1
	}
	if max > 10 {
		max = 10 // SQS API ceiling
	}

	out, err := q.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(q.queueURL),
		MaxNumberOfMessages: int32(max),
		WaitTimeSeconds:     sqsWaitSeconds,
		VisibilityTimeout:   sqsVisibilitySeconds,
	})
	if err != nil {
		return nil, fmt.Errorf("sqs receive message: %w", err)
	}

	msgs := make([]Message, 0, len(out.Messages))
	for _, m := range out.Messages {
		msgs = append(msgs, Message{
			Body:   []byte(aws.ToString(m.Body)),
			Handle: aws.ToString(m.ReceiptHandle),
		})
	}
	return msgs, nil
}

// Delete acknowledges a finished message.
func (q *SQSQueue) Delete(ctx context.Context, handle string) error {
	_, err := q.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(q.queueURL),
		ReceiptHandle: aws.String(handle),
	})
	if err != nil {
		return fmt.Errorf("sqs delete message: %w", err)
	}
	return nil
}

// Ping verifies the queue exists and the credentials can reach it. Used
// by the health endpoint.
func (q *SQSQueue) Ping(ctx context.Context) error {
	_, err := q.client.GetQueueAttributes(ctx, &sqs.GetQueueAttributesInput{
		QueueUrl: aws.String(q.queueURL),
	})
	if err != nil {
		return fmt.Errorf("sqs get queue attributes: %w", err)
	}
	return nil
}

var _ Queue = (*SQSQueue)(nil)
