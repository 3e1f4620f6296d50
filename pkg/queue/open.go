package queue

import (
	"context"

	"github.com/driftfs/driftfs/internal/backend/azqueue"
	"github.com/driftfs/driftfs/internal/backend/sqs"
	"github.com/driftfs/driftfs/pkg/auth"
)

// OpenSQSChannel opens a channel on an existing Amazon SQS queue.
// Construction fails with a QUEUE_NOT_FOUND error if the queue does not
// exist.
func OpenSQSChannel(ctx context.Context, a auth.AWS, name string, opts *Options) (*Channel, error) {
	o := opts.orDefault()
	b, err := sqs.Connect(ctx, a, name)
	if err != nil {
		return nil, err
	}
	return &Channel{backend: b, kind: "sqs", metrics: o.Metrics, logger: o.Logger}, nil
}

// OpenAzureQueueChannel opens a channel on an existing Azure Queue
// Storage queue. Construction fails with a QUEUE_NOT_FOUND error if the
// queue does not exist.
func OpenAzureQueueChannel(ctx context.Context, a auth.Azure, name string, opts *Options) (*Channel, error) {
	o := opts.orDefault()
	b, err := azqueue.Connect(ctx, a, name)
	if err != nil {
		return nil, err
	}
	return &Channel{backend: b, kind: "azure_queue", metrics: o.Metrics, logger: o.Logger}, nil
}
