// Package sqs implements the queue capability interface on Amazon SQS.
package sqs

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	awssqs "github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"github.com/driftfs/driftfs/pkg/auth"
	dferr "github.com/driftfs/driftfs/pkg/errors"
	"github.com/driftfs/driftfs/pkg/types"
)

// Backend is an SQS queue backend bound to one queue.
type Backend struct {
	client   *awssqs.Client
	name     string
	queueURL string
	closed   bool
}

// Connect resolves the queue URL, which doubles as the construction-time
// existence check.
func Connect(ctx context.Context, a auth.AWS, queueName string) (*Backend, error) {
	cfg, err := a.Config(ctx)
	if err != nil {
		return nil, err
	}
	client := awssqs.NewFromConfig(cfg, func(o *awssqs.Options) {
		if a.Endpoint != "" {
			o.BaseEndpoint = aws.String(a.Endpoint)
		}
	})

	out, err := client.GetQueueUrl(ctx, &awssqs.GetQueueUrlInput{
		QueueName: aws.String(queueName),
	})
	if err != nil {
		var missing *sqstypes.QueueDoesNotExist
		if errors.As(err, &missing) {
			return nil, dferr.NewPath(dferr.CodeQueueNotFound, "queue not found", queueName)
		}
		return nil, fmt.Errorf("resolving queue %q: %w", queueName, err)
	}
	return &Backend{client: client, name: queueName, queueURL: aws.ToString(out.QueueUrl)}, nil
}

func (b *Backend) Name() string { return b.name }

func (b *Backend) guard() error {
	if b.closed {
		return dferr.ResourceClosed()
	}
	return nil
}

func (b *Backend) Send(ctx context.Context, body string) error {
	if err := b.guard(); err != nil {
		return err
	}
	_, err := b.client.SendMessage(ctx, &awssqs.SendMessageInput{
		QueueUrl:    aws.String(b.queueURL),
		MessageBody: aws.String(body),
	})
	return err
}

func (b *Backend) receive(ctx context.Context, max int, visibility int32) ([]types.Message, error) {
	if max > 10 {
		max = 10
	}
	out, err := b.client.ReceiveMessage(ctx, &awssqs.ReceiveMessageInput{
		QueueUrl:            aws.String(b.queueURL),
		MaxNumberOfMessages: int32(max),
		VisibilityTimeout:   visibility,
		MessageSystemAttributeNames: []sqstypes.MessageSystemAttributeName{
			sqstypes.MessageSystemAttributeNameApproximateReceiveCount,
		},
	})
	if err != nil {
		return nil, err
	}
	msgs := make([]types.Message, 0, len(out.Messages))
	for _, m := range out.Messages {
		msg := types.Message{
			ID:      aws.ToString(m.MessageId),
			Body:    aws.ToString(m.Body),
			Receipt: aws.ToString(m.ReceiptHandle),
		}
		if rc, ok := m.Attributes[string(sqstypes.MessageSystemAttributeNameApproximateReceiveCount)]; ok {
			if n, err := strconv.Atoi(rc); err == nil {
				msg.ReceiveCount = n
			}
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}

func (b *Backend) Receive(ctx context.Context, max int) ([]types.Message, error) {
	if err := b.guard(); err != nil {
		return nil, err
	}
	// Default visibility window, so undeleted messages reappear.
	return b.receive(ctx, max, 30)
}

// Peek receives with a zero visibility timeout: the messages stay
// visible, though SQS still bumps each one's receive counter.
func (b *Backend) Peek(ctx context.Context, max int) ([]types.Message, error) {
	if err := b.guard(); err != nil {
		return nil, err
	}
	return b.receive(ctx, max, 0)
}

func (b *Backend) Delete(ctx context.Context, msg types.Message) error {
	if err := b.guard(); err != nil {
		return err
	}
	_, err := b.client.DeleteMessage(ctx, &awssqs.DeleteMessageInput{
		QueueUrl:      aws.String(b.queueURL),
		ReceiptHandle: aws.String(msg.Receipt),
	})
	return err
}

func (b *Backend) Close() error {
	b.closed = true
	return nil
}
